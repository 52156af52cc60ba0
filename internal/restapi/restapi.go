// Package restapi serves the read-only JSON status API of the display.
package restapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/budapestmetrodisplay/metrodisplay/internal/app"
	"github.com/budapestmetrodisplay/metrodisplay/internal/logging"
)

// RestAPI exposes the schedulers, the network state and the LED output.
type RestAPI struct {
	*app.Application
	rateLimiter *RateLimitMiddleware
}

func NewRestAPI(app *app.Application) *RestAPI {
	return &RestAPI{
		Application: app,
		rateLimiter: NewRateLimitMiddleware(app.Config.HTTP.RateLimit, time.Second, nil, app.Clock),
	}
}

// SetRoutes registers every status endpoint on mux.
func (api *RestAPI) SetRoutes(mux *http.ServeMux) {
	// Live state is never cached; the config only changes on restart.
	live := func(h http.HandlerFunc) http.Handler {
		return CacheControlMiddleware(0, api.rateLimiter.Handler()(api.requireKey(h)))
	}
	static := func(h http.HandlerFunc) http.Handler {
		return CacheControlMiddleware(300, api.rateLimiter.Handler()(api.requireKey(h)))
	}

	mux.Handle("GET /api/jobs", live(api.jobsHandler))
	mux.Handle("GET /api/departures", live(api.departuresHandler))
	mux.Handle("GET /api/departures/{routeId}", live(api.departuresHandler))
	mux.Handle("GET /api/network", live(api.networkHandler))
	mux.Handle("GET /api/network/{routeId}", live(api.routeHandler))
	mux.Handle("GET /api/leds", live(api.ledsHandler))
	mux.Handle("GET /api/config", static(api.configHandler))

	mux.HandleFunc("GET /healthz", api.healthHandler)
	if api.Metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(api.Metrics.Registry, promhttp.HandlerOpts{}))
	}
}

// Shutdown stops the rate limiter's cleanup goroutine.
func (api *RestAPI) Shutdown() {
	if api.rateLimiter != nil {
		api.rateLimiter.Stop()
	}
}

func (api *RestAPI) requireKey(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if api.RequestHasInvalidAPIKey(r) {
			api.sendUnauthorized(w, r)
			return
		}
		next(w, r)
	})
}

func (api *RestAPI) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	logging.LogError(logging.FromContext(r.Context()), "failed to serve status request", err,
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("request_id", GetRequestID(r.Context())))
	http.Error(w, "internal server error", http.StatusInternalServerError)
}
