package restapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/budapestmetrodisplay/metrodisplay/internal/app"
	"github.com/budapestmetrodisplay/metrodisplay/internal/app/apptest"
	"github.com/budapestmetrodisplay/metrodisplay/internal/clock"
)

// createTestApi wires a RestAPI around apptest's application. configure, if
// given, runs before the API is built.
func createTestApi(t *testing.T, configure ...func(*app.Application)) (*RestAPI, *clock.MockClock) {
	t.Helper()
	a, clk := apptest.New(t)
	for _, fn := range configure {
		fn(a)
	}
	api := NewRestAPI(a)
	t.Cleanup(api.Shutdown)
	return api, clk
}

func newTestServer(t *testing.T, api *RestAPI) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	api.SetRoutes(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// serveAndRetrieveEndpoint GETs path and decodes the JSON envelope.
func serveAndRetrieveEndpoint(t *testing.T, api *RestAPI, path string) (*http.Response, map[string]any) {
	t.Helper()
	server := newTestServer(t, api)

	resp, err := http.Get(server.URL + path)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp, body
}

func listOf(t *testing.T, body map[string]any) []any {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	require.True(t, ok, "data is an object")
	list, ok := data["list"].([]any)
	require.True(t, ok, "data.list is an array")
	return list
}

func entryOf(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	require.True(t, ok, "data is an object")
	entry, ok := data["entry"].(map[string]any)
	require.True(t, ok, "data.entry is an object")
	return entry
}
