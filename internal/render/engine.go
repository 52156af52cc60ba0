// Package render turns the topology's live flags into LED colors, fades
// between them, and pushes one packed frame to the output sink per tick.
package render

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/budapestmetrodisplay/metrodisplay/internal/appconf"
	"github.com/budapestmetrodisplay/metrodisplay/internal/clock"
	"github.com/budapestmetrodisplay/metrodisplay/internal/colormath"
	"github.com/budapestmetrodisplay/metrodisplay/internal/logging"
	"github.com/budapestmetrodisplay/metrodisplay/internal/metrics"
	"github.com/budapestmetrodisplay/metrodisplay/internal/topology"
)

// Sink receives one packed frame per tick.
type Sink interface {
	Send(payload []byte) error
}

// BrightnessSource reports the brightness fraction the LED controller applies.
type BrightnessSource interface {
	Brightness() float64
}

type Config struct {
	DimRatio float64
	FadeTime time.Duration
	FPS      int
}

func ConfigFrom(led appconf.LEDConfig, sacn appconf.SACNConfig) Config {
	return Config{
		DimRatio: led.DimRatio,
		FadeTime: time.Duration(led.FadeTime * float64(time.Second)),
		FPS:      sacn.FPS,
	}
}

// FrameDuration is the budget of one frame.
func (c Config) FrameDuration() time.Duration {
	fps := max(c.FPS, 1)
	return time.Second / time.Duration(fps)
}

type Engine struct {
	cfg        Config
	network    *topology.Network
	sink       Sink
	clock      clock.Clock
	brightness BrightnessSource
	logger     *slog.Logger
	metrics    *metrics.Metrics

	mu      sync.Mutex
	leds    []*topology.LED
	live    []colormath.RGB
	targets []colormath.RGB
	anims   map[int]*animation
	frames  uint64

	sinkFailing bool
}

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithBrightness enables the brightness floor using src.
func WithBrightness(src BrightnessSource) Option {
	return func(e *Engine) { e.brightness = src }
}

// New creates a renderer whose LEDs start at their current target color.
func New(network *topology.Network, sink Sink, c clock.Clock, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:     cfg,
		network: network,
		sink:    sink,
		clock:   c,
		logger:  slog.Default(),
		leds:    network.LEDs(),
		anims:   make(map[int]*animation),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(slog.String("component", "render"))

	e.live = make([]colormath.RGB, len(e.leds))
	e.targets = make([]colormath.RGB, len(e.leds))
	for i, led := range e.leds {
		t := e.Target(led)
		e.live[i] = t
		e.targets[i] = t
	}
	return e
}

// Target derives the color an LED should show: black when every stop on it
// is out of service, the max of the present routes' colors when a vehicle
// is at any of its stops, else its default color dimmed.
func (e *Engine) Target(led *topology.LED) colormath.RGB {
	allDown := true
	var present []colormath.RGB
	for _, si := range led.Stops {
		inService, vehicle := e.network.StopState(si)
		if inService {
			allDown = false
		}
		if vehicle {
			present = append(present, e.network.RouteAt(e.network.Stop(si).Route).Color)
		}
	}
	if allDown {
		return colormath.Black
	}
	if len(present) > 0 {
		return colormath.Max(present...)
	}
	return led.DefaultColor().Scale(e.cfg.DimRatio)
}

// Frame retargets changed LEDs, advances every fade to now and returns the
// packed colors in ascending LED index order.
func (e *Engine) Frame(now time.Time) []byte {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, led := range e.leds {
		target := e.Target(led)
		if target == e.targets[i] {
			continue
		}
		start := e.live[i]
		if a, ok := e.anims[i]; ok {
			start, _ = a.sample(now)
		}
		e.anims[i] = &animation{
			start: start,
			end:   target,
			t0:    now,
			dur:   e.cfg.FadeTime,
			ease:  colormath.EaseInOutQuad,
		}
		e.targets[i] = target
	}

	for i, a := range e.anims {
		c, done := a.sample(now)
		e.live[i] = c
		if done {
			delete(e.anims, i)
		}
	}
	e.frames++
	return Pack(e.live)
}

// Run renders frames at the configured rate until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	frame := e.cfg.FrameDuration()
	logging.LogOperation(e.logger, "renderer_started",
		slog.Int("fps", e.cfg.FPS), slog.Int("leds", len(e.leds)))
	defer logging.LogOperation(e.logger, "renderer_stopped")

	next := e.clock.Now()
	for {
		if ctx.Err() != nil {
			return nil
		}
		started := e.clock.Now()
		payload := e.Frame(started)
		if e.brightness != nil {
			b := e.brightness.Brightness()
			e.metrics.SetBrightness(b)
			ApplyBrightnessFloor(payload, b)
		}
		e.send(payload)

		now := e.clock.Now()
		var wait time.Duration
		next, wait = NextTick(next, now, frame)
		e.metrics.ObserveFrame(now.Sub(started), wait == 0)
		if wait == 0 {
			continue
		}
		if err := clock.Sleep(ctx, e.clock, wait); err != nil {
			return nil
		}
	}
}

func (e *Engine) send(payload []byte) {
	err := e.sink.Send(payload)
	if err != nil {
		e.metrics.IncSinkErrors()
		if !e.sinkFailing {
			logging.LogWarn(e.logger, "output sink rejected frame", err)
		}
		e.sinkFailing = true
		return
	}
	if e.sinkFailing {
		logging.LogOperation(e.logger, "output_sink_recovered")
		e.sinkFailing = false
	}
}

// LEDState is one LED as shown by the status API.
type LEDState struct {
	Index     int           `json:"index"`
	Color     colormath.RGB `json:"color"`
	Target    colormath.RGB `json:"target"`
	Default   colormath.RGB `json:"default"`
	Animating bool          `json:"animating"`
}

// Snapshot returns the current color of every LED.
func (e *Engine) Snapshot() []LEDState {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]LEDState, len(e.leds))
	for i, led := range e.leds {
		_, animating := e.anims[i]
		out[i] = LEDState{
			Index:     led.Index,
			Color:     e.live[i],
			Target:    e.targets[i],
			Default:   led.DefaultColor(),
			Animating: animating,
		}
	}
	return out
}

// Frames is the number of frames rendered so far.
func (e *Engine) Frames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frames
}
