package ingest

import (
	"fmt"
	"math"
	"time"

	"github.com/budapestmetrodisplay/metrodisplay/internal/appconf"
)

type ScheduleType int

const (
	Regular ScheduleType = iota
	Realtime
)

func (t ScheduleType) String() string {
	if t == Realtime {
		return "REALTIME"
	}
	return "REGULAR"
}

// UpdateJob is the payload of the API-update scheduler.
type UpdateJob struct {
	RouteID string
	Type    ScheduleType
	// Alerts marks an alert-only poll of RouteID; Type is ignored.
	Alerts bool
}

func (j UpdateJob) Label() string {
	if j.Alerts {
		return "ALERTS"
	}
	return j.Type.String()
}

type TransitionKind int

const (
	Arrival TransitionKind = iota
	Departure
)

func (k TransitionKind) String() string {
	if k == Departure {
		return "departure"
	}
	return "arrival"
}

// TransitionJob is the payload of the departure scheduler.
type TransitionJob struct {
	StopID   string
	RouteID  string
	TripID   string
	Kind     TransitionKind
	Presence time.Duration
}

// ScheduleKey identifies the poll job of a route and schedule type.
func ScheduleKey(routeName string, t ScheduleType) string {
	return routeName + "_" + t.String()
}

// AlertKey identifies the alert-only poll job of a route.
func AlertKey(routeID string) string {
	return routeID + "_ALERTS"
}

// TransitionKey identifies one arrival or departure of a trip at a stop-id.
func TransitionKey(stopID, tripID string, kind TransitionKind) string {
	return fmt.Sprintf("%s+%s_%s", stopID, tripID, kind)
}

// QueryParams are the per schedule type request settings.
type QueryParams struct {
	MinutesBefore int
	MinutesAfter  int
	Limit         int
	Interval      time.Duration
}

// Config carries the polling cadence.
type Config struct {
	Regular     time.Duration
	Realtime    time.Duration
	Alerts      time.Duration
	CallSpacing time.Duration
	Jitter      time.Duration
	AlertRoutes []string
	// Location is the local time zone for the night window. Nil means time.Local.
	Location *time.Location
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// ConfigFrom converts the YAML sections into engine settings.
func ConfigFrom(bkk appconf.BKKConfig, led appconf.LEDConfig) Config {
	return Config{
		Regular:     seconds(bkk.APIUpdateRegular),
		Realtime:    seconds(bkk.APIUpdateRealtime),
		Alerts:      seconds(bkk.APIUpdateAlerts),
		CallSpacing: seconds(bkk.APIUpdateInterval),
		Jitter:      seconds(led.JitterSeconds),
		AlertRoutes: bkk.AlertRoutes,
	}
}

// Params returns the request window for a schedule type. REGULAR looks
// five minutes past its own interval; REALTIME looks two intervals ahead.
func (c Config) Params(t ScheduleType) QueryParams {
	if t == Realtime {
		return QueryParams{
			MinutesAfter: int(math.Round(c.Realtime.Seconds() * 2 / 60)),
			Limit:        100,
			Interval:     c.Realtime,
		}
	}
	return QueryParams{
		MinutesAfter: int(math.Round((c.Regular.Seconds() + 300) / 60)),
		Limit:        200,
		Interval:     c.Regular,
	}
}
