package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/budapestmetrodisplay/metrodisplay/internal/app/apptest"
	"github.com/budapestmetrodisplay/metrodisplay/internal/appconf"
)

func TestParseAPIKeys(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "Single key", input: "test-key", expected: []string{"test-key"}},
		{name: "Multiple keys", input: "key1,key2,key3", expected: []string{"key1", "key2", "key3"}},
		{name: "Keys with spaces", input: " key1 , key2 , key3 ", expected: []string{"key1", "key2", "key3"}},
		{name: "Empty string", input: "", expected: []string{}},
		{name: "Trailing comma", input: "key1,", expected: []string{"key1", ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseAPIKeys(tt.input))
		})
	}
}

// testConfig sends sACN to a local port so no multicast route is needed.
func testConfig(t *testing.T, baseURL string) appconf.Config {
	t.Helper()
	cfg := appconf.Default()
	cfg.Env = appconf.Test
	cfg.HTTP.Port = 8080
	cfg.HTTP.RateLimit = 100
	cfg.SACN.Multicast = false
	cfg.SACN.UnicastIP = "127.0.0.1"
	cfg.BKK.APIKey = "test"
	cfg.BKK.BaseURL = baseURL
	cfg.BKK.APIUpdateInterval = 0.01
	cfg.Network = apptest.NetworkConfig()
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestBuildApplication(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1/")

	coreApp, err := BuildApplication(cfg, nil)
	require.NoError(t, err)
	defer func() { _ = coreApp.Sender.Close() }()

	assert.NotNil(t, coreApp.Logger)
	assert.Equal(t, cfg, coreApp.Config)
	assert.Len(t, coreApp.Network.Routes(), 2)
	assert.Len(t, coreApp.Network.LEDs(), 3)
	assert.NotNil(t, coreApp.Ingest)
	assert.NotNil(t, coreApp.Renderer)
	assert.Nil(t, coreApp.Brightness, "brightness feedback is off by default")
	assert.Equal(t, 0, coreApp.Ingest.Updates().Len(), "nothing is scheduled before Run")
}

func TestBuildApplicationErrorHandling(t *testing.T) {
	t.Run("missing GTFS feed", func(t *testing.T) {
		cfg := testConfig(t, "http://127.0.0.1:1/")
		cfg.GTFS.StaticPath = filepath.Join(t.TempDir(), "missing.zip")

		_, err := BuildApplication(cfg, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load GTFS route catalog")
	})

	t.Run("invalid unicast address", func(t *testing.T) {
		cfg := testConfig(t, "http://127.0.0.1:1/")
		cfg.SACN.UnicastIP = "not-an-ip"

		_, err := BuildApplication(cfg, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to open sACN output")
	})
}

func TestCreateServer(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1/")
	coreApp, err := BuildApplication(cfg, nil)
	require.NoError(t, err)
	defer func() { _ = coreApp.Sender.Close() }()

	srv, api := CreateServer(coreApp, cfg)
	defer api.Shutdown()

	assert.Equal(t, ":8080", srv.Addr)
	assert.NotNil(t, srv.Handler)
	assert.Equal(t, time.Minute, srv.IdleTimeout)
	assert.Equal(t, 5*time.Second, srv.ReadTimeout)
	assert.Equal(t, 10*time.Second, srv.WriteTimeout)
}

func TestCreateServerHandlerResponds(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1/")
	coreApp, err := BuildApplication(cfg, nil)
	require.NoError(t, err)
	defer func() { _ = coreApp.Sender.Close() }()

	srv, api := CreateServer(coreApp, cfg)
	defer api.Shutdown()

	for _, path := range []string{"/api/network", "/schedules", "/jobs", "/healthz", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		srv.Handler.ServeHTTP(w, req)

		assert.NotEqual(t, http.StatusNotFound, w.Code, path)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"), path)
	}
}

func TestRunStartsAndStopsCleanly(t *testing.T) {
	var calls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer upstream.Close()

	cfg := testConfig(t, upstream.URL+"/")
	cfg.HTTP.Port = 0

	coreApp, err := BuildApplication(cfg, nil)
	require.NoError(t, err)
	srv, api := CreateServer(coreApp, cfg)
	srv.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, srv, coreApp, api) }()

	require.Eventually(t, func() bool {
		return calls.Load() >= 2 && coreApp.Renderer.Frames() > 0
	}, 5*time.Second, 10*time.Millisecond, "polls the upstream API and renders frames")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestExampleConfigLoads(t *testing.T) {
	path := filepath.Join("..", "..", "config.example.yaml")
	if _, err := os.Stat(path); err != nil {
		t.Skip("example config not present")
	}
	t.Setenv(appconf.APIKeyEnv, "from-env")

	cfg, err := appconf.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.BKK.APIKey)
	assert.NotEmpty(t, cfg.Network.Routes)
}
