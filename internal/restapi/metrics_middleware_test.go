package restapi

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/budapestmetrodisplay/metrodisplay/internal/metrics"
)

func TestMetricsHandler_NilMetrics(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	rec := httptest.NewRecorder()
	MetricsHandler(nil)(inner).ServeHTTP(rec, httptest.NewRequest("GET", "/test", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestMetricsHandler_UsesRoutePattern(t *testing.T) {
	m := metrics.New()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/departures/{routeId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	server := httptest.NewServer(MetricsHandler(m)(mux))
	defer server.Close()

	for _, route := range []string{"BKK_5100", "BKK_5200"} {
		resp, err := http.Get(server.URL + "/api/departures/" + route)
		require.NoError(t, err)
		_ = resp.Body.Close()
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(
		m.HTTPRequestsTotal.WithLabelValues("GET", "GET /api/departures/{routeId}", "201")))
}

func TestMetricsHandler_StatusCodes(t *testing.T) {
	testCases := []struct {
		name       string
		statusCode int
		write      bool
	}{
		{name: "implicit OK", statusCode: http.StatusOK, write: true},
		{name: "BadRequest", statusCode: http.StatusBadRequest},
		{name: "NotFound", statusCode: http.StatusNotFound},
		{name: "InternalServerError", statusCode: http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := metrics.New()
			inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tc.write {
					_, _ = w.Write([]byte("body"))
					return
				}
				w.WriteHeader(tc.statusCode)
			})

			rec := httptest.NewRecorder()
			MetricsHandler(m)(inner).ServeHTTP(rec, httptest.NewRequest("GET", "/unknown", nil))

			assert.Equal(t, tc.statusCode, rec.Code)
			assert.Equal(t, 1.0, testutil.ToFloat64(
				m.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", strconv.Itoa(tc.statusCode))))
		})
	}
}

func TestStatusRecorder(t *testing.T) {
	rec := httptest.NewRecorder()
	w := &statusRecorder{ResponseWriter: rec, statusCode: http.StatusOK}

	w.WriteHeader(http.StatusNotFound)

	assert.Equal(t, http.StatusNotFound, w.statusCode)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Same(t, rec, w.Unwrap())
}
