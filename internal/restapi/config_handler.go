package restapi

import (
	"net"
	"net/http"
	"strconv"

	"github.com/budapestmetrodisplay/metrodisplay/internal/models"
	"github.com/budapestmetrodisplay/metrodisplay/internal/sacn"
)

// configHandler shows the running configuration without credentials.
func (api *RestAPI) configHandler(w http.ResponseWriter, r *http.Request) {
	cfg := api.Config

	dest := cfg.SACN.UnicastIP
	if cfg.SACN.Multicast {
		dest = sacn.MulticastAddr(uint16(cfg.SACN.Universe)).String()
	}
	if api.Sender != nil {
		dest = api.Sender.Destination().String()
	} else {
		dest = net.JoinHostPort(dest, strconv.Itoa(sacn.DefaultPort))
	}

	alertRoutes := cfg.BKK.AlertRoutes
	if alertRoutes == nil {
		alertRoutes = []string{}
	}

	entry := models.ConfigModel{
		ID:                 "metrodisplay",
		Name:               "Budapest Metro Display",
		Env:                cfg.Env.String(),
		Build:              models.CurrentBuild(),
		Routes:             len(api.Network.Routes()),
		LEDs:               len(api.Network.LEDs()),
		Universe:           cfg.SACN.Universe,
		Destination:        dest,
		FPS:                cfg.SACN.FPS,
		DimRatio:           cfg.LED.DimRatio,
		FadeTime:           cfg.LED.FadeTime,
		RegularInterval:    cfg.BKK.APIUpdateRegular,
		RealtimeInterval:   cfg.BKK.APIUpdateRealtime,
		AlertInterval:      cfg.BKK.APIUpdateAlerts,
		AlertRoutes:        alertRoutes,
		BrightnessFeedback: cfg.Brightness.Enabled,
	}

	api.sendResponse(w, r, models.NewEntryResponse(entry, api.Clock))
}
