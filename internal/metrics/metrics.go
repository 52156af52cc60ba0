// Package metrics provides Prometheus metrics for the metro display.
package metrics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Sizer reports the number of pending items in a queue.
type Sizer interface {
	Len() int
}

// Metrics holds all Prometheus metrics for the application.
// Every Observe/Inc helper is safe to call on a nil *Metrics.
type Metrics struct {
	// Registry is the Prometheus registry for this metrics instance
	Registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Ingestion metrics
	FetchesTotal       *prometheus.CounterVec
	FetchDuration      *prometheus.HistogramVec
	TransitionsTotal   *prometheus.CounterVec
	AlertsTotal        *prometheus.CounterVec
	ScheduleInterval   *prometheus.GaugeVec
	PendingJobs        *prometheus.GaugeVec
	JobsRunTotal       *prometheus.CounterVec
	JobPanicsTotal     *prometheus.CounterVec

	// Render metrics
	FramesTotal        prometheus.Counter
	FrameDuration      prometheus.Histogram
	FrameOverrunsTotal prometheus.Counter
	SinkErrorsTotal    prometheus.Counter
	Brightness         prometheus.Gauge

	logger *slog.Logger

	// collectorStarted prevents spawning multiple collector goroutines
	collectorStarted atomic.Bool

	// cancel stops the queue collector goroutine
	cancel context.CancelFunc

	// wg tracks the queue collector goroutine for graceful shutdown
	wg sync.WaitGroup
}

// New creates and registers all application metrics with a new registry.
func New() *Metrics {
	return NewWithLogger(nil)
}

// NewWithLogger creates metrics with a logger for error reporting.
func NewWithLogger(logger *slog.Logger) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "metrodisplay_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "metrodisplay_http_request_duration_seconds",
				Help:    "HTTP request latency distribution",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		FetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "metrodisplay_api_fetches_total",
				Help: "Transit API fetches by schedule type and outcome",
			},
			[]string{"type", "outcome"},
		),
		FetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "metrodisplay_api_fetch_duration_seconds",
				Help:    "Transit API call latency",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"type"},
		),
		TransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "metrodisplay_transitions_total",
				Help: "Arrival and departure transitions by result",
			},
			[]string{"kind", "result"},
		),
		AlertsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "metrodisplay_no_service_alerts_total",
				Help: "NO_SERVICE alerts that were applied or ignored",
			},
			[]string{"result"},
		),
		ScheduleInterval: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "metrodisplay_route_schedule_interval_minutes",
				Help: "Measured average headway per route, -1 when unknown",
			},
			[]string{"route"},
		),
		PendingJobs: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "metrodisplay_scheduler_pending_jobs",
				Help: "Jobs waiting in each scheduler",
			},
			[]string{"scheduler"},
		),
		JobsRunTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "metrodisplay_scheduler_jobs_run_total",
				Help: "Scheduled callbacks executed",
			},
			[]string{"scheduler"},
		),
		JobPanicsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "metrodisplay_scheduler_job_panics_total",
				Help: "Scheduled callbacks that panicked",
			},
			[]string{"scheduler"},
		),
		FramesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "metrodisplay_frames_total",
			Help: "Frames rendered",
		}),
		FrameDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "metrodisplay_frame_duration_seconds",
			Help:    "Time spent computing and sending one frame",
			Buckets: []float64{0.0005, 0.001, 0.002, 0.005, 0.01, 0.02, 0.05},
		}),
		FrameOverrunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "metrodisplay_frame_overruns_total",
			Help: "Frames that exceeded the frame budget",
		}),
		SinkErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "metrodisplay_sink_errors_total",
			Help: "Payloads the output sink failed to send",
		}),
		Brightness: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "metrodisplay_reported_brightness",
			Help: "Brightness fraction reported by the LED controller",
		}),
		logger: logger,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.FetchesTotal,
		m.FetchDuration,
		m.TransitionsTotal,
		m.AlertsTotal,
		m.ScheduleInterval,
		m.PendingJobs,
		m.JobsRunTotal,
		m.JobPanicsTotal,
		m.FramesTotal,
		m.FrameDuration,
		m.FrameOverrunsTotal,
		m.SinkErrorsTotal,
		m.Brightness,
	)
	return m
}

func (m *Metrics) ObserveFetch(scheduleType, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.FetchesTotal.WithLabelValues(scheduleType, outcome).Inc()
	m.FetchDuration.WithLabelValues(scheduleType).Observe(took.Seconds())
}

func (m *Metrics) ObserveTransition(kind, result string) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) ObserveAlert(result string) {
	if m == nil {
		return
	}
	m.AlertsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) SetScheduleInterval(route string, minutes float64) {
	if m == nil {
		return
	}
	m.ScheduleInterval.WithLabelValues(route).Set(minutes)
}

// ObserveJob matches the scheduler's observer signature.
func (m *Metrics) ObserveJob(scheduler, _ string, _ time.Duration, panicked bool) {
	if m == nil {
		return
	}
	m.JobsRunTotal.WithLabelValues(scheduler).Inc()
	if panicked {
		m.JobPanicsTotal.WithLabelValues(scheduler).Inc()
	}
}

func (m *Metrics) ObserveFrame(took time.Duration, overrun bool) {
	if m == nil {
		return
	}
	m.FramesTotal.Inc()
	m.FrameDuration.Observe(took.Seconds())
	if overrun {
		m.FrameOverrunsTotal.Inc()
	}
}

func (m *Metrics) IncSinkErrors() {
	if m == nil {
		return
	}
	m.SinkErrorsTotal.Inc()
}

func (m *Metrics) SetBrightness(v float64) {
	if m == nil {
		return
	}
	m.Brightness.Set(v)
}

// StartQueueCollector starts a goroutine that periodically copies the
// length of every named queue into PendingJobs.
// This method is idempotent - calling it multiple times has no effect after the first call.
// Call Shutdown() to stop the collector.
func (m *Metrics) StartQueueCollector(queues map[string]Sizer, interval time.Duration) {
	if len(queues) == 0 {
		return
	}

	if !m.collectorStarted.CompareAndSwap(false, true) {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Add to WaitGroup BEFORE exposing cancel to avoid race with Shutdown
	m.wg.Add(1)
	m.cancel = cancel

	collect := func() {
		for name, q := range queues {
			m.PendingJobs.WithLabelValues(name).Set(float64(q.Len()))
		}
	}

	go func() {
		defer m.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				if m.logger != nil {
					m.logger.Error("panic in queue collector", "error", r)
				}
			}
		}()

		collect()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				collect()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Shutdown stops the queue collector goroutine and waits for it to exit.
// This method is safe to call multiple times.
func (m *Metrics) Shutdown() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}
