package restapi

import (
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/budapestmetrodisplay/metrodisplay/internal/app"
	"github.com/budapestmetrodisplay/metrodisplay/internal/app/apptest"
)

func TestJobsHandler(t *testing.T) {
	api, _ := createTestApi(t)
	apptest.Seed(api.Application)

	resp, body := serveAndRetrieveEndpoint(t, api, "/api/jobs")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(200), body["code"])
	assert.Equal(t, float64(apptest.Start.UnixMilli()), body["currentTime"])

	list := listOf(t, body)
	require.Len(t, list, 3)
	first := list[0].(map[string]any)
	assert.Equal(t, "M1_REGULAR", first["key"])
	assert.Equal(t, "M1", first["routeName"])
	assert.Equal(t, "REGULAR", first["type"])
	assert.Equal(t, "ALERTS", list[2].(map[string]any)["type"])
}

func TestDeparturesHandler(t *testing.T) {
	api, _ := createTestApi(t)
	apptest.Seed(api.Application)

	t.Run("all routes", func(t *testing.T) {
		_, body := serveAndRetrieveEndpoint(t, api, "/api/departures")
		list := listOf(t, body)
		require.Len(t, list, 2)
		assert.Equal(t, "F3+T2_departure", list[0].(map[string]any)["key"])
	})

	t.Run("one route", func(t *testing.T) {
		_, body := serveAndRetrieveEndpoint(t, api, "/api/departures/BKK_5100")
		list := listOf(t, body)
		require.Len(t, list, 1)
		dep := list[0].(map[string]any)
		assert.Equal(t, "Vörösmarty tér", dep["stopName"])
		assert.Equal(t, "arrival", dep["kind"])
		assert.Equal(t, 30.0, dep["presenceSeconds"])
	})

	t.Run("unknown route", func(t *testing.T) {
		resp, body := serveAndRetrieveEndpoint(t, api, "/api/departures/BKK_0000")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "resource not found", body["text"])
	})
}

func TestNetworkHandlers(t *testing.T) {
	api, _ := createTestApi(t)
	api.Network.SetVehiclePresent("F2a", true)

	_, body := serveAndRetrieveEndpoint(t, api, "/api/network")
	list := listOf(t, body)
	require.Len(t, list, 2)
	assert.Equal(t, "BKK_5100", list[0].(map[string]any)["routeId"])

	_, body = serveAndRetrieveEndpoint(t, api, "/api/network/BKK_5100")
	entry := entryOf(t, body)
	assert.Equal(t, "M1", entry["name"])
	stops := entry["stops"].([]any)
	require.Len(t, stops, 2)
	assert.Equal(t, true, stops[1].(map[string]any)["vehiclePresent"])

	resp, _ := serveAndRetrieveEndpoint(t, api, "/api/network/BKK_0000")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLEDsHandler(t *testing.T) {
	api, _ := createTestApi(t)

	_, body := serveAndRetrieveEndpoint(t, api, "/api/leds")
	entry := entryOf(t, body)
	assert.Equal(t, 1.0, entry["brightness"])
	assert.Equal(t, 0.0, entry["frames"])
	leds := entry["leds"].([]any)
	require.Len(t, leds, 3)
	assert.Equal(t, 2.0, leds[2].(map[string]any)["index"])
}

func TestConfigHandler(t *testing.T) {
	api, _ := createTestApi(t)
	server := newTestServer(t, api)

	resp, err := http.Get(server.URL + "/api/config")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "public, max-age=300", resp.Header.Get("Cache-Control"))
	assert.Contains(t, string(raw), `"destination":"239.255.0.1:5568"`)
	assert.Contains(t, string(raw), `"routes":2`)
	assert.Contains(t, string(raw), `"leds":3`)
	assert.NotContains(t, string(raw), "apiKey")
}

func TestStatusAPIKeys(t *testing.T) {
	api, _ := createTestApi(t, func(a *app.Application) {
		a.Config.HTTP.APIKeys = []string{"secret"}
	})

	resp, body := serveAndRetrieveEndpoint(t, api, "/api/jobs")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "permission denied", body["text"])

	resp, _ = serveAndRetrieveEndpoint(t, api, "/api/jobs?key=secret")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	api, _ := createTestApi(t)
	server := newTestServer(t, api)

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "metrodisplay_frames_total")
}
