package brightness

import (
	"testing"

	"github.com/budapestmetrodisplay/metrodisplay/internal/appconf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func TestParseState(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    float64
		wantErr bool
	}{
		{name: "full", payload: `{"state":"ON","brightness":255}`, want: 1},
		{name: "half", payload: `{"state":"ON","brightness":127.5}`, want: 0.5},
		{name: "off keeps brightness", payload: `{"state":"OFF","brightness":51}`, want: 0.2},
		{name: "clamped", payload: `{"brightness":300}`, want: 1},
		{name: "missing", payload: `{"state":"ON"}`, wantErr: true},
		{name: "invalid", payload: `not json`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseState([]byte(tt.payload))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestListenerDefaultsToFullBrightness(t *testing.T) {
	l := New(appconf.BrightnessConfig{Enabled: true, Broker: "tcp://localhost:1883", Key: "k"}, nil)
	assert.Equal(t, 1.0, l.Brightness())
	assert.Equal(t, DefaultTopic, l.topic)
}

func TestListenerHandle(t *testing.T) {
	l := New(appconf.BrightnessConfig{Topic: "display/light"}, nil)

	l.handle(nil, fakeMessage{topic: "display/light", payload: []byte(`{"state":"ON","brightness":102}`)})
	assert.InDelta(t, 0.4, l.Brightness(), 1e-9)

	l.handle(nil, fakeMessage{topic: "display/light", payload: []byte(`{"state":"ON"}`)})
	assert.InDelta(t, 0.4, l.Brightness(), 1e-9, "messages without brightness are ignored")
}

func TestStopWithoutStart(t *testing.T) {
	l := New(appconf.BrightnessConfig{}, nil)
	assert.NotPanics(t, l.Stop)
}
