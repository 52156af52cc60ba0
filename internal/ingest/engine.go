// Package ingest polls the transit API and turns stop-times and alerts into
// timed presence and service flips on the topology.
package ingest

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/budapestmetrodisplay/metrodisplay/internal/clock"
	"github.com/budapestmetrodisplay/metrodisplay/internal/logging"
	"github.com/budapestmetrodisplay/metrodisplay/internal/metrics"
	"github.com/budapestmetrodisplay/metrodisplay/internal/models"
	"github.com/budapestmetrodisplay/metrodisplay/internal/oba"
	"github.com/budapestmetrodisplay/metrodisplay/internal/scheduler"
	"github.com/budapestmetrodisplay/metrodisplay/internal/topology"
)

// A transition callback running later than this after its due time does nothing.
const staleAfter = 20 * time.Second

const (
	UpdateSchedulerName     = "api_updates"
	TransitionSchedulerName = "departures"
)

// API is the part of the transit client the engine calls.
type API interface {
	ArrivalsAndDepartures(ctx context.Context, q oba.ScheduleQuery) (*models.ArrivalsResponse, error)
	RouteDetails(ctx context.Context, routeID string) (*models.ArrivalsResponse, error)
}

type Engine struct {
	cfg     Config
	network *topology.Network
	api     API
	clock   clock.Clock
	logger  *slog.Logger
	metrics *metrics.Metrics
	rand    func() float64

	updates     *scheduler.Scheduler[UpdateJob]
	transitions *scheduler.Scheduler[TransitionJob]
}

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithRand replaces the jitter source. f must return values in [0,1).
func WithRand(f func() float64) Option {
	return func(e *Engine) { e.rand = f }
}

func New(network *topology.Network, api API, c clock.Clock, cfg Config, opts ...Option) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	e := &Engine{
		cfg:     cfg,
		network: network,
		api:     api,
		clock:   c,
		logger:  slog.Default(),
		rand:    rand.Float64,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(slog.String("component", "ingest"))

	observer := e.metrics.ObserveJob
	e.updates = scheduler.New(UpdateSchedulerName, c, e.runUpdate, scheduler.Options{
		Workers:  4,
		Logger:   e.logger,
		Observer: observer,
	})
	e.transitions = scheduler.New(TransitionSchedulerName, c, e.runTransition, scheduler.Options{
		Logger:   e.logger,
		Observer: observer,
	})
	return e
}

func (e *Engine) Updates() *scheduler.Scheduler[UpdateJob]         { return e.updates }
func (e *Engine) Transitions() *scheduler.Scheduler[TransitionJob] { return e.transitions }

func (e *Engine) now() time.Time {
	return e.clock.Now().In(e.cfg.Location)
}

// Arm registers the start-up jobs without starting the dispatchers: a
// REGULAR poll for every route, a REALTIME poll for realtime routes, and the
// alert-only polls spaced by the inter-call delay.
func (e *Engine) Arm() {
	now := e.now()
	for _, route := range e.network.Routes() {
		e.ScheduleFetch(route.ID, Regular, now)
		if route.Realtime {
			e.ScheduleFetch(route.ID, Realtime, now)
		}
		logging.LogOperation(e.logger, "route_updates_armed",
			slog.String("route", route.Name), slog.Bool("realtime", route.Realtime))
	}
	for i, routeID := range e.cfg.AlertRoutes {
		e.ScheduleAlerts(routeID, now.Add(time.Duration(i)*e.cfg.CallSpacing))
	}
}

// Start arms the start-up jobs and runs both schedulers until ctx ends or Shutdown.
func (e *Engine) Start(ctx context.Context) {
	e.Arm()
	e.transitions.Start(ctx)
	e.updates.Start(ctx)
	logging.LogOperation(e.logger, "ingest_started",
		slog.Int("routes", len(e.network.Routes())),
		slog.Int("alert_routes", len(e.cfg.AlertRoutes)))
}

func (e *Engine) Shutdown() {
	e.updates.Shutdown()
	e.transitions.Shutdown()
}

// ScheduleFetch (re)arms the poll of routeID for t at at.
func (e *Engine) ScheduleFetch(routeID string, t ScheduleType, at time.Time) {
	route, ok := e.network.Route(routeID)
	if !ok {
		e.logger.Warn("cannot schedule fetch for unknown route", slog.String("route", routeID))
		return
	}
	e.updates.Schedule(ScheduleKey(route.Name, t), at, UpdateJob{RouteID: routeID, Type: t})
}

// ScheduleAlerts (re)arms the alert-only poll of routeID.
func (e *Engine) ScheduleAlerts(routeID string, at time.Time) {
	e.updates.Schedule(AlertKey(routeID), at, UpdateJob{RouteID: routeID, Alerts: true})
}

func (e *Engine) jitter() time.Duration {
	if e.cfg.Jitter <= 0 {
		return 0
	}
	return time.Duration((e.rand()*2 - 1) * float64(e.cfg.Jitter))
}

func (e *Engine) runUpdate(ctx context.Context, job scheduler.Job[UpdateJob]) {
	if job.Payload.Alerts {
		e.FetchAlerts(ctx, job.Payload.RouteID)
		return
	}
	e.FetchSchedule(ctx, job.Payload.RouteID, job.Payload.Type)
}

func (e *Engine) runTransition(_ context.Context, job scheduler.Job[TransitionJob]) {
	p := job.Payload
	late := e.clock.Now().Sub(job.At)
	if late > staleAfter {
		e.logger.Debug("transition is stale, skipping",
			slog.String("key", job.Key), slog.Duration("late", late))
		e.metrics.ObserveTransition(p.Kind.String(), "stale")
		return
	}

	switch p.Kind {
	case Arrival:
		e.network.MarkArrived(p.StopID)
	case Departure:
		e.network.SetVehiclePresent(p.StopID, false)
	}
	e.metrics.ObserveTransition(p.Kind.String(), "applied")
	e.logger.Debug("transition applied",
		slog.String("kind", p.Kind.String()),
		slog.String("stop_id", p.StopID),
		slog.String("trip_id", p.TripID),
		slog.Duration("presence", p.Presence))
}
