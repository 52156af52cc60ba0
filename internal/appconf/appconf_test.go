package appconf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFile(t *testing.T) {
	t.Run("valid config keeps defaults for omitted keys", func(t *testing.T) {
		t.Setenv(APIKeyEnv, "")
		cfg, err := LoadFromFile("testdata/config_valid.yaml")
		require.NoError(t, err)

		assert.Equal(t, Test, cfg.Env)
		assert.Equal(t, 9090, cfg.HTTP.Port)
		assert.Equal(t, 10, cfg.HTTP.RateLimit)
		assert.Equal(t, 0.3, cfg.LED.DimRatio)
		assert.Equal(t, 1.0, cfg.LED.FadeTime)
		assert.Equal(t, 3.0, cfg.LED.JitterSeconds)
		assert.False(t, cfg.SACN.Multicast)
		assert.Equal(t, "192.168.1.50", cfg.SACN.UnicastIP)
		assert.Equal(t, 7, cfg.SACN.Universe)
		assert.Equal(t, 60, cfg.SACN.FPS)
		assert.Equal(t, "file-key", cfg.BKK.APIKey)
		assert.Equal(t, "http://localhost:8081/api/", cfg.BKK.BaseURL)
		assert.Equal(t, 1800.0, cfg.BKK.APIUpdateRegular)
		assert.Equal(t, []string{"BKK_5100"}, cfg.BKK.AlertRoutes)

		require.Len(t, cfg.Network.Routes, 2)
		assert.Equal(t, "M1", cfg.Network.Routes[0].Name)
		assert.True(t, cfg.Network.Routes[0].Stops[0].Terminus)
		assert.Equal(t, []string{"BKK_F00965", "BKK_F00964"}, cfg.Network.Routes[0].Stops[0].StopIDs)
		assert.True(t, cfg.Network.Routes[1].Realtime)
		require.Len(t, cfg.Network.LEDOverrides, 1)
		assert.Equal(t, "FFFFFF", cfg.Network.LEDOverrides[0].Color)
	})

	t.Run("environment overrides api key", func(t *testing.T) {
		t.Setenv(APIKeyEnv, "env-key")
		cfg, err := LoadFromFile("testdata/config_valid.yaml")
		require.NoError(t, err)
		assert.Equal(t, "env-key", cfg.BKK.APIKey)
	})

	t.Run("invalid values are reported", func(t *testing.T) {
		t.Setenv(APIKeyEnv, "")
		_, err := LoadFromFile("testdata/config_invalid.yaml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DimRatio")
		assert.Contains(t, err.Error(), "Universe")
		assert.Contains(t, err.Error(), "APIKey")
		assert.Contains(t, err.Error(), "Color")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := LoadFromFile("testdata/config_malformed.yaml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFromFile("testdata/nonexistent.yaml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})
}

func validConfig() Config {
	cfg := Default()
	cfg.BKK.APIKey = "key"
	cfg.Network.Routes = []RouteConfig{{
		RouteID: "BKK_5100",
		Stops:   []StopConfig{{Name: "A", LED: 0, StopIDs: []string{"BKK_F1"}}},
	}}
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults plus network", mutate: func(*Config) {}},
		{name: "zero fade", mutate: func(c *Config) { c.LED.FadeTime = 0 }, wantErr: "FadeTime"},
		{name: "zero fps", mutate: func(c *Config) { c.SACN.FPS = 0 }, wantErr: "FPS"},
		{name: "universe zero", mutate: func(c *Config) { c.SACN.Universe = 0 }, wantErr: "Universe"},
		{name: "negative jitter", mutate: func(c *Config) { c.LED.JitterSeconds = -1 }, wantErr: "JitterSeconds"},
		{name: "zero realtime interval", mutate: func(c *Config) { c.BKK.APIUpdateRealtime = 0 }, wantErr: "APIUpdateRealtime"},
		{
			name: "unicast without ip",
			mutate: func(c *Config) {
				c.SACN.Multicast = false
				c.SACN.UnicastIP = ""
			},
			wantErr: "unicast_ip",
		},
		{name: "bad unicast ip", mutate: func(c *Config) { c.SACN.UnicastIP = "not-an-ip" }, wantErr: "UnicastIP"},
		{
			name: "brightness without key",
			mutate: func(c *Config) {
				c.Brightness.Enabled = true
				c.Brightness.Broker = "tcp://localhost:1883"
			},
			wantErr: "Key",
		},
		{
			name: "brightness disabled needs nothing",
			mutate: func(c *Config) {
				c.Brightness.Broker = "tcp://localhost:1883"
			},
		},
		{name: "no routes", mutate: func(c *Config) { c.Network.Routes = nil }, wantErr: "Routes"},
		{
			name:    "duplicate route",
			mutate:  func(c *Config) { c.Network.Routes = append(c.Network.Routes, c.Network.Routes[0]) },
			wantErr: "duplicate route_id",
		},
		{name: "unknown route type", mutate: func(c *Config) { c.Network.Routes[0].Type = "tram" }, wantErr: "Type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnvFlagToEnvironment(t *testing.T) {
	assert.Equal(t, Production, EnvFlagToEnvironment("production"))
	assert.Equal(t, Production, EnvFlagToEnvironment("PROD"))
	assert.Equal(t, Test, EnvFlagToEnvironment("test"))
	assert.Equal(t, Development, EnvFlagToEnvironment("anything"))
	assert.Equal(t, "production", Production.String())
}
