package app

import (
	"errors"
	"time"

	"github.com/budapestmetrodisplay/metrodisplay/internal/ingest"
)

var ErrUnknownRoute = errors.New("unknown route")

// UpdateJobView is one pending API poll.
type UpdateJobView struct {
	Key       string    `json:"key"`
	RouteID   string    `json:"routeId"`
	RouteName string    `json:"routeName"`
	Type      string    `json:"type"`
	NextRun   int64     `json:"nextRunTime"`
	At        time.Time `json:"-"`
}

// DepartureView is one pending arrival or departure transition.
type DepartureView struct {
	Key             string    `json:"key"`
	StopID          string    `json:"stopId"`
	StopName        string    `json:"stopName"`
	RouteID         string    `json:"routeId"`
	RouteName       string    `json:"routeName"`
	TripID          string    `json:"tripId"`
	Kind            string    `json:"kind"`
	Time            int64     `json:"time"`
	PresenceSeconds float64   `json:"presenceSeconds"`
	At              time.Time `json:"-"`
}

func (app *Application) routeName(routeID string) string {
	if r, ok := app.Network.Route(routeID); ok {
		return r.Name
	}
	return routeID
}

// UpdateJobs lists the pending API polls in firing order.
func (app *Application) UpdateJobs() []UpdateJobView {
	jobs := app.Ingest.Updates().Jobs()
	out := make([]UpdateJobView, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, UpdateJobView{
			Key:       job.Key,
			RouteID:   job.Payload.RouteID,
			RouteName: app.routeName(job.Payload.RouteID),
			Type:      job.Payload.Label(),
			NextRun:   job.At.UnixMilli(),
			At:        job.At,
		})
	}
	return out
}

// Departures lists pending transitions in firing order. A non-empty routeID
// keeps only the transitions at stops of that route.
func (app *Application) Departures(routeID string) ([]DepartureView, error) {
	if routeID != "" {
		if _, ok := app.Network.Route(routeID); !ok {
			return nil, ErrUnknownRoute
		}
	}

	jobs := app.Ingest.Transitions().Jobs()
	out := make([]DepartureView, 0, len(jobs))
	for _, job := range jobs {
		v := departureView(job.Key, job.At, job.Payload)
		if stop, ok := app.Network.StopForStopID(job.Payload.StopID); ok {
			route := app.Network.RouteAt(stop.Route)
			v.StopName = stop.Name
			v.RouteID = route.ID
			v.RouteName = route.Name
		}
		if routeID != "" && v.RouteID != routeID {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func departureView(key string, at time.Time, t ingest.TransitionJob) DepartureView {
	return DepartureView{
		Key:             key,
		StopID:          t.StopID,
		RouteID:         t.RouteID,
		RouteName:       t.RouteID,
		TripID:          t.TripID,
		Kind:            t.Kind.String(),
		Time:            at.UnixMilli(),
		PresenceSeconds: t.Presence.Seconds(),
		At:              at,
	}
}
