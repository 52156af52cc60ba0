// Package brightness follows the brightness the LED controller reports over MQTT.
package brightness

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/budapestmetrodisplay/metrodisplay/internal/appconf"
	"github.com/budapestmetrodisplay/metrodisplay/internal/logging"
)

const (
	DefaultTopic   = "metrodisplay/light/state"
	connectTimeout = 5 * time.Second
)

var ErrNoBrightness = errors.New("light state carries no brightness")

// LightState is the JSON light state the controller publishes.
type LightState struct {
	State      string   `json:"state"`
	Brightness *float64 `json:"brightness"`
}

// ParseState returns the brightness of a light-state message as a fraction in [0,1].
func ParseState(payload []byte) (float64, error) {
	var s LightState
	if err := json.Unmarshal(payload, &s); err != nil {
		return 0, fmt.Errorf("invalid light state: %w", err)
	}
	if s.Brightness == nil {
		return 0, ErrNoBrightness
	}
	return math.Max(0, math.Min(1, *s.Brightness/255)), nil
}

// Listener holds the latest reported brightness. It reads 1.0 until the
// first message arrives.
type Listener struct {
	cfg    appconf.BrightnessConfig
	topic  string
	client mqtt.Client
	logger *slog.Logger

	bits atomic.Uint64
}

func New(cfg appconf.BrightnessConfig, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	l := &Listener{
		cfg:    cfg,
		topic:  topic,
		logger: logger.With(slog.String("component", "brightness")),
	}
	l.bits.Store(math.Float64bits(1))
	return l
}

// Brightness is the last reported fraction.
func (l *Listener) Brightness() float64 {
	return math.Float64frombits(l.bits.Load())
}

func (l *Listener) set(v float64) {
	l.bits.Store(math.Float64bits(v))
}

// Start connects to the broker and subscribes to the light state topic. The
// subscription is renewed on every reconnect.
func (l *Listener) Start() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(l.cfg.Broker)
	opts.SetClientID("metrodisplay-" + time.Now().Format("150405.000"))
	opts.SetUsername(l.cfg.Username)
	opts.SetPassword(l.cfg.Key)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		logging.LogOperation(l.logger, "brightness_connected", slog.String("broker", l.cfg.Broker))
		token := c.Subscribe(l.topic, 0, l.handle)
		if !token.WaitTimeout(connectTimeout) {
			l.logger.Warn("brightness subscription timeout", slog.String("topic", l.topic))
			return
		}
		if err := token.Error(); err != nil {
			logging.LogWarn(l.logger, "brightness subscription failed", err, slog.String("topic", l.topic))
		}
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logging.LogWarn(l.logger, "brightness connection lost, reconnecting", err)
	}

	l.client = mqtt.NewClient(opts)
	token := l.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		// ConnectRetry keeps trying in the background.
		l.logger.Warn("brightness broker not reachable yet, retrying in background",
			slog.String("broker", l.cfg.Broker))
		return nil
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("brightness mqtt connect: %w", err)
	}
	return nil
}

// Stop disconnects from the broker.
func (l *Listener) Stop() {
	if l.client == nil {
		return
	}
	l.client.Disconnect(250)
	logging.LogOperation(l.logger, "brightness_disconnected")
}

func (l *Listener) handle(_ mqtt.Client, msg mqtt.Message) {
	v, err := ParseState(msg.Payload())
	if err != nil {
		l.logger.Debug("ignoring light state", slog.String("topic", msg.Topic()), slog.String("error", err.Error()))
		return
	}
	l.set(v)
	l.logger.Debug("brightness updated", slog.Float64("brightness", v))
}
