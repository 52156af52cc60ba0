package restapi

import (
	"errors"
	"net/http"

	"github.com/budapestmetrodisplay/metrodisplay/internal/app"
	"github.com/budapestmetrodisplay/metrodisplay/internal/models"
	"github.com/budapestmetrodisplay/metrodisplay/internal/render"
)

// LEDsEntry is the output side of the display.
type LEDsEntry struct {
	Brightness float64           `json:"brightness"`
	Frames     uint64            `json:"frames"`
	LEDs       []render.LEDState `json:"leds"`
}

func (api *RestAPI) jobsHandler(w http.ResponseWriter, r *http.Request) {
	api.sendResponse(w, r, models.NewListResponse(api.UpdateJobs(), false, api.Clock))
}

// departuresHandler lists pending transitions, optionally for one route.
func (api *RestAPI) departuresHandler(w http.ResponseWriter, r *http.Request) {
	deps, err := api.Departures(r.PathValue("routeId"))
	if errors.Is(err, app.ErrUnknownRoute) {
		api.sendNotFound(w, r)
		return
	}
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	api.sendResponse(w, r, models.NewListResponse(deps, false, api.Clock))
}

func (api *RestAPI) networkHandler(w http.ResponseWriter, r *http.Request) {
	api.sendResponse(w, r, models.NewListResponse(api.Network.Snapshot(), false, api.Clock))
}

func (api *RestAPI) routeHandler(w http.ResponseWriter, r *http.Request) {
	route, ok := api.Network.RouteSnapshot(r.PathValue("routeId"))
	if !ok {
		api.sendNotFound(w, r)
		return
	}
	api.sendResponse(w, r, models.NewEntryResponse(route, api.Clock))
}

func (api *RestAPI) ledsHandler(w http.ResponseWriter, r *http.Request) {
	entry := LEDsEntry{
		Brightness: 1,
		Frames:     api.Renderer.Frames(),
		LEDs:       api.Renderer.Snapshot(),
	}
	if api.Brightness != nil {
		entry.Brightness = api.Brightness.Brightness()
	}
	api.sendResponse(w, r, models.NewEntryResponse(entry, api.Clock))
}
