package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/budapestmetrodisplay/metrodisplay/internal/logging"
	"github.com/budapestmetrodisplay/metrodisplay/internal/models"
	"github.com/budapestmetrodisplay/metrodisplay/internal/oba"
	"github.com/budapestmetrodisplay/metrodisplay/internal/scheduler"
	"github.com/budapestmetrodisplay/metrodisplay/internal/topology"
)

const noServiceEffect = "NO_SERVICE"

// FetchSchedule polls one (route, schedule type) pair, applies the response
// and re-arms the pair. It never returns without re-arming.
func (e *Engine) FetchSchedule(ctx context.Context, routeID string, t ScheduleType) {
	route, ok := e.network.Route(routeID)
	if !ok {
		e.logger.Warn("fetch requested for unknown route", slog.String("route", routeID))
		return
	}
	params := e.cfg.Params(t)
	logger := e.logger.With(slog.String("route", route.Name), slog.String("type", t.String()))

	started := e.clock.Now()
	resp, err := e.api.ArrivalsAndDepartures(ctx, oba.ScheduleQuery{
		StopIDs:       e.network.StopIDs(routeID),
		MinutesBefore: params.MinutesBefore,
		MinutesAfter:  params.MinutesAfter,
		Limit:         params.Limit,
	})
	took := e.clock.Now().Sub(started)
	if err != nil {
		e.fetchFailed(logger, route, t, err, took)
		return
	}

	if err := e.validate(resp, routeID); err != nil {
		if errors.Is(err, models.ErrNoRouteID) {
			// No route id means the upstream has no trips for these stops.
			logger.Debug("response names no route, treating as no departures")
			e.metrics.ObserveFetch(t.String(), "no_departures", took)
			e.ScheduleFetch(routeID, t, NextFetchTime(t, e.now(), params.Interval, false, time.Time{}))
			return
		}
		e.fetchFailed(logger, route, t, err, took)
		return
	}
	if resp.LimitExceeded() {
		logger.Warn("upstream result limit exceeded, processing partial response")
	}

	if t == Regular {
		if err := e.RecalculateInterval(route, resp); err != nil {
			logger.Debug("headway not recalculated", slog.String("reason", err.Error()))
		}
	}

	latest, found, err := e.StoreDepartures(route, resp)
	if err != nil {
		e.fetchFailed(logger, route, t, err, took)
		return
	}

	if resp.HasAlerts() {
		if err := e.ProcessAlerts(routeID, resp, false); err != nil {
			logger.Warn("embedded alerts not processed", slog.String("error", err.Error()))
		}
	}

	e.metrics.ObserveFetch(t.String(), "ok", took)
	next := NextFetchTime(t, e.now(), params.Interval, found, latest)
	e.ScheduleFetch(routeID, t, next)
	logger.Debug("schedule fetched",
		slog.Bool("found", found),
		slog.Time("latest", latest),
		slog.Time("next_fetch", next))
}

// FetchAlerts polls route details for alerts only and re-arms the alert job.
func (e *Engine) FetchAlerts(ctx context.Context, routeID string) {
	logger := e.logger.With(slog.String("route", routeID), slog.String("type", "ALERTS"))

	started := e.clock.Now()
	resp, err := e.api.RouteDetails(ctx, routeID)
	took := e.clock.Now().Sub(started)
	if err == nil {
		err = e.ProcessAlerts(routeID, resp, true)
	}
	if err != nil {
		kind := failureKind(err)
		e.logFailure(logger, kind, err)
		e.metrics.ObserveFetch("ALERTS", kind.String(), took)
		e.ScheduleAlerts(routeID, e.now().Add(oba.RetryDelay(kind)))
		return
	}

	e.metrics.ObserveFetch("ALERTS", "ok", took)
	e.ScheduleAlerts(routeID, e.now().Add(e.cfg.Alerts))
}

func (e *Engine) validate(resp *models.ArrivalsResponse, routeID string) error {
	got, err := resp.RouteID()
	if err != nil {
		return err
	}
	if got != routeID {
		return &oba.FetchError{
			Kind: oba.KindRouteMismatch,
			Op:   "arrivals-and-departures-for-stop",
			Err:  fmt.Errorf("response is for route %q, polled %q", got, routeID),
		}
	}
	return nil
}

func failureKind(err error) oba.ErrorKind {
	if errors.Is(err, models.ErrMissingEntry) || errors.Is(err, models.ErrMissingAlerts) {
		return oba.KindMalformed
	}
	return oba.KindOf(err)
}

func (e *Engine) logFailure(logger *slog.Logger, kind oba.ErrorKind, err error) {
	attrs := []any{slog.String("kind", kind.String()), slog.Duration("retry_in", oba.RetryDelay(kind))}
	if kind == oba.KindStatus {
		logging.LogError(logger, "transit API returned an error status", err, attrs...)
		return
	}
	logging.LogWarn(logger, "transit API fetch failed", err, attrs...)
}

func (e *Engine) fetchFailed(logger *slog.Logger, route *topology.Route, t ScheduleType, err error, took time.Duration) {
	kind := failureKind(err)
	e.logFailure(logger, kind, err)
	e.metrics.ObserveFetch(t.String(), kind.String(), took)
	e.ScheduleFetch(route.ID, t, e.now().Add(oba.RetryDelay(kind)))
}

// resolveStopTimes fills stop-times that carry no stop-id with the entry's.
func resolveStopTimes(entry *models.ArrivalsEntry) []models.StopTime {
	out := make([]models.StopTime, len(entry.StopTimes))
	for i, st := range entry.StopTimes {
		if st.StopID == "" {
			st.StopID = entry.StopID
		}
		out[i] = st
	}
	return out
}

// RecalculateInterval measures the route's headway from resp and stores it.
// The stored interval is left alone when resp has fewer than two stop-times.
func (e *Engine) RecalculateInterval(route *topology.Route, resp *models.ArrivalsResponse) error {
	entry, err := resp.Entry()
	if err != nil {
		return err
	}
	interval, err := HeadwayMinutes(resolveStopTimes(entry))
	if err != nil {
		return err
	}
	route.SetScheduleInterval(interval)
	e.metrics.SetScheduleInterval(route.Name, interval)
	e.logger.Debug("headway recalculated",
		slog.String("route", route.Name),
		slog.Float64("interval_minutes", interval),
		slog.Duration("departure_delay", DepartureDelay(route.Type, interval)))
	return nil
}

// StoreDepartures schedules an arrival and a departure transition for every
// usable stop-time of route in resp. It returns the latest arrival seen and
// whether any stop-time was usable.
func (e *Engine) StoreDepartures(route *topology.Route, resp *models.ArrivalsResponse) (time.Time, bool, error) {
	entry, err := resp.Entry()
	if err != nil {
		return time.Time{}, false, err
	}

	interest := make(map[string]struct{})
	for _, key := range e.network.StopIDs(route.ID) {
		interest[key] = struct{}{}
	}
	delay := DepartureDelay(route.Type, route.ScheduleInterval())
	cutoff := e.clock.Now().Add(-staleAfter)

	var latest time.Time
	found := false
	for _, st := range resolveStopTimes(entry) {
		if _, ok := interest[st.StopID]; !ok {
			continue
		}
		if st.TripID == "" {
			// Transition keys are per trip.
			e.logger.Debug("stop-time has no trip id", slog.String("stop_id", st.StopID))
			continue
		}
		presence, c := Classify(st, delay, e.jitter())
		if c == CaseSkip {
			e.logger.Debug("stop-time has no usable times",
				slog.String("stop_id", st.StopID), slog.String("trip_id", st.TripID))
			continue
		}
		if !found || presence.Arrival.After(latest) {
			latest = presence.Arrival
		}
		found = true

		if presence.Arrival.Before(cutoff) {
			continue
		}
		payload := TransitionJob{
			StopID:   st.StopID,
			RouteID:  route.ID,
			TripID:   st.TripID,
			Kind:     Arrival,
			Presence: presence.Duration,
		}
		e.transitions.Schedule(TransitionKey(st.StopID, st.TripID, Arrival), presence.Arrival, payload)
		payload.Kind = Departure
		e.transitions.Schedule(TransitionKey(st.StopID, st.TripID, Departure), presence.Arrival.Add(presence.Duration), payload)
	}
	return latest, found, nil
}

// HasPendingTransition reports whether any arrival or departure is still
// scheduled for stopID.
func (e *Engine) HasPendingTransition(stopID string) bool {
	_, ok := e.transitions.FindSoonest(func(j scheduler.Job[TransitionJob]) bool {
		return j.Payload.StopID == stopID
	})
	return ok
}

// ProcessAlerts applies the NO_SERVICE alerts of resp. Stop-ids of interest
// are those of scope when it is a configured route, otherwise every stop-id
// of the network. A stop-id that still has a pending transition keeps its
// service flag. When fromAlertPoll is set, every route that lost a stop is
// re-fetched at once.
func (e *Engine) ProcessAlerts(scope string, resp *models.ArrivalsResponse, fromAlertPoll bool) error {
	alerts, err := resp.Alerts()
	if err != nil {
		return err
	}

	interested := e.network.HasStopID
	if _, ok := e.network.Route(scope); ok {
		own := make(map[string]struct{})
		for _, key := range e.network.StopIDs(scope) {
			own[key] = struct{}{}
		}
		interested = func(key string) bool {
			_, ok := own[key]
			return ok
		}
	}

	ids := make([]string, 0, len(alerts))
	for id := range alerts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	now := e.clock.Now()
	refetch := make(map[string]struct{})
	for _, id := range ids {
		alert := alerts[id]
		if time.Unix(alert.Start, 0).After(now) {
			continue
		}
		for _, ar := range alert.Routes {
			if ar.EffectType != noServiceEffect {
				continue
			}
			for _, stopID := range ar.StopIDs {
				if !interested(stopID) {
					continue
				}
				inService, _, _ := e.network.StopIDState(stopID)
				if !inService {
					continue
				}
				if e.HasPendingTransition(stopID) {
					e.logger.Debug("NO_SERVICE alert contradicted by pending transitions",
						slog.String("alert", alert.ID), slog.String("stop_id", stopID))
					e.metrics.ObserveAlert("ignored")
					continue
				}

				e.network.SetInService(stopID, false)
				e.metrics.ObserveAlert("applied")
				logging.LogOperation(e.logger, "stop_out_of_service",
					slog.String("alert", alert.ID), slog.String("stop_id", stopID))

				if stop, ok := e.network.StopForStopID(stopID); ok {
					refetch[e.network.RouteAt(stop.Route).ID] = struct{}{}
				}
			}
		}
	}

	if fromAlertPoll {
		now := e.now()
		for routeID := range refetch {
			e.ScheduleFetch(routeID, Regular, now)
		}
	}
	return nil
}
