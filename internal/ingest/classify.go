package ingest

import (
	"errors"
	"time"

	"github.com/budapestmetrodisplay/metrodisplay/internal/models"
	"github.com/budapestmetrodisplay/metrodisplay/internal/topology"
)

// ErrNotEnoughStopTimes means a response had fewer than two stop-times, so no headway can be measured.
var ErrNotEnoughStopTimes = errors.New("not enough stop times for headway")

// Case identifies which timing fields produced a Presence.
type Case int

const (
	CaseSkip Case = iota
	CasePredictedBoth
	CasePredictedSame
	CasePredictedArrival
	CasePredictedDeparture
	CaseScheduledBoth
	CaseScheduledSame
	CaseScheduledArrival
	CaseScheduledDeparture
)

func (c Case) String() string {
	switch c {
	case CasePredictedBoth:
		return "predicted_both"
	case CasePredictedSame:
		return "predicted_same"
	case CasePredictedArrival:
		return "predicted_arrival"
	case CasePredictedDeparture:
		return "predicted_departure"
	case CaseScheduledBoth:
		return "scheduled_both"
	case CaseScheduledSame:
		return "scheduled_same"
	case CaseScheduledArrival:
		return "scheduled_arrival"
	case CaseScheduledDeparture:
		return "scheduled_departure"
	default:
		return "skip"
	}
}

// Presence is when a vehicle shows up at a stop-id and for how long.
type Presence struct {
	Arrival  time.Time
	Duration time.Duration
}

func unix(sec int64) time.Time { return time.Unix(sec, 0) }

// Classify picks the first matching row of the timing decision table.
// delay is the route's departure delay; jitter is added only to estimates
// built from timetable (non-predicted) times. A departure earlier than its
// arrival is read like equal times, so the presence window never runs backwards.
func Classify(st models.StopTime, delay, jitter time.Duration) (Presence, Case) {
	pa, pd := st.PredictedArrivalTime, st.PredictedDepartureTime
	sa, sd := st.ArrivalTime, st.DepartureTime
	certain := !st.IsUncertain()

	switch {
	case certain && pa != nil && pd != nil && *pa < *pd:
		return Presence{Arrival: unix(*pa), Duration: time.Duration(*pd-*pa) * time.Second}, CasePredictedBoth
	case certain && pa != nil && pd != nil:
		return Presence{Arrival: unix(*pd).Add(-delay), Duration: delay}, CasePredictedSame
	case certain && pa != nil:
		return Presence{Arrival: unix(*pa).Add(-delay), Duration: delay}, CasePredictedArrival
	case certain && pd != nil:
		return Presence{Arrival: unix(*pd).Add(-delay), Duration: delay}, CasePredictedDeparture
	case sa != nil && sd != nil && *sa < *sd:
		return Presence{Arrival: unix(*sa).Add(jitter), Duration: time.Duration(*sd-*sa) * time.Second}, CaseScheduledBoth
	case sa != nil && sd != nil:
		return Presence{Arrival: unix(*sd).Add(-delay + jitter), Duration: delay}, CaseScheduledSame
	case sa != nil:
		return Presence{Arrival: unix(*sa).Add(-delay + jitter), Duration: delay}, CaseScheduledArrival
	case sd != nil:
		return Presence{Arrival: unix(*sd).Add(-delay + jitter), Duration: delay}, CaseScheduledDeparture
	default:
		return Presence{}, CaseSkip
	}
}

type delayRow struct {
	upTo      float64
	inclusive bool
	delay     time.Duration
}

type delayCurve struct {
	rows    []delayRow
	beyond  time.Duration
	unknown time.Duration
}

var delayTable = map[topology.RouteType]delayCurve{
	topology.Subway: {
		rows: []delayRow{
			{upTo: 2, inclusive: true, delay: 15 * time.Second},
			{upTo: 5.5, delay: 20 * time.Second},
		},
		beyond:  30 * time.Second,
		unknown: 30 * time.Second,
	},
	topology.Railway: {
		rows: []delayRow{
			{upTo: 5.5, delay: 20 * time.Second},
			{upTo: 10.5, delay: 30 * time.Second},
		},
		beyond:  45 * time.Second,
		unknown: 45 * time.Second,
	},
}

// DepartureDelay maps a route's measured headway in minutes to how long a
// vehicle is shown at a stop. Routes of type other use the railway curve.
func DepartureDelay(routeType topology.RouteType, interval float64) time.Duration {
	curve, ok := delayTable[routeType]
	if !ok {
		curve = delayTable[topology.Railway]
	}
	if interval < 0 {
		return curve.unknown
	}
	for _, row := range curve.rows {
		if interval < row.upTo || (row.inclusive && interval == row.upTo) {
			return row.delay
		}
	}
	return curve.beyond
}

// HeadwayMinutes averages the gaps between consecutive departures that share
// the first stop-time's stop-id and headsign. It returns
// topology.UnknownInterval when no pair is found.
func HeadwayMinutes(stopTimes []models.StopTime) (float64, error) {
	if len(stopTimes) < 2 {
		return topology.UnknownInterval, ErrNotEnoughStopTimes
	}
	first := stopTimes[0]

	last := first.DepartureTime
	var sum int64
	var n int
	for _, st := range stopTimes[1:] {
		if st.StopID != first.StopID || st.StopHeadsign != first.StopHeadsign || st.DepartureTime == nil {
			continue
		}
		if last != nil {
			sum += *st.DepartureTime - *last
			n++
		}
		last = st.DepartureTime
	}
	if n == 0 {
		return topology.UnknownInterval, nil
	}
	return float64(sum) / float64(n) / 60, nil
}

var (
	nightStart = 30 * time.Minute
	nightEnd   = 4 * time.Hour
)

// NextFetchTime decides when a (route, schedule type) pair polls again after
// a successful fetch. found and latest describe the latest arrival stored
// from the response; they only matter for REGULAR.
func NextFetchTime(t ScheduleType, now time.Time, interval time.Duration, found bool, latest time.Time) time.Time {
	if t == Realtime {
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		sinceMidnight := now.Sub(midnight)
		if sinceMidnight >= nightStart && sinceMidnight <= nightEnd {
			return time.Date(now.Year(), now.Month(), now.Day(), 4, 0, 0, 0, now.Location())
		}
		return now.Add(interval)
	}

	next := now.Add(interval)
	if !found {
		return now.Add(time.Minute)
	}
	if latest.Before(next) {
		pulled := latest.Add(-5 * time.Minute)
		if floor := now.Add(time.Minute); pulled.Before(floor) {
			return floor
		}
		return pulled
	}
	return next
}
