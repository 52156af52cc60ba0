package webui

import (
	"net/http"

	"github.com/davecgh/go-spew/spew"

	"github.com/budapestmetrodisplay/metrodisplay/internal/appconf"
)

var debugDataTypes = []string{"config", "network", "leds", "jobs", "departures"}

type debugData struct {
	Title string
	Pre   string
	Types []string
}

const redacted = "[redacted]"

// redactedConfig is the running configuration without credentials.
func redactedConfig(cfg appconf.Config) appconf.Config {
	if cfg.BKK.APIKey != "" {
		cfg.BKK.APIKey = redacted
	}
	if cfg.Brightness.Key != "" {
		cfg.Brightness.Key = redacted
	}
	if len(cfg.HTTP.APIKeys) > 0 {
		cfg.HTTP.APIKeys = []string{redacted}
	}
	return cfg
}

func (webUI *WebUI) writeDebugData(w http.ResponseWriter, title string, data any) {
	webUI.render(w, "debug_index.html", debugData{
		Title: title,
		Pre:   spew.Sdump(data),
		Types: debugDataTypes,
	})
}

// debugIndexHandler dumps internal state. It does not exist in production.
func (webUI *WebUI) debugIndexHandler(w http.ResponseWriter, r *http.Request) {
	if webUI.Config.Env == appconf.Production {
		http.NotFound(w, r)
		return
	}

	var data any
	var title string

	switch r.URL.Query().Get("dataType") {
	case "config":
		data = redactedConfig(webUI.Config)
		title = "Configuration"
	case "network":
		data = webUI.Network.Snapshot()
		title = "Network - Routes and Stops"
	case "leds":
		data = webUI.Renderer.Snapshot()
		title = "Renderer - LEDs"
	case "jobs":
		data = webUI.Ingest.Updates().Jobs()
		title = "Scheduler - API Updates"
	case "departures":
		data = webUI.Ingest.Transitions().Jobs()
		title = "Scheduler - Departures"
	default:
		data = map[string]string{
			"error": "Please use one of the following: config, network, leds, jobs, departures.",
		}
		title = "Choose a data type"
	}

	webUI.writeDebugData(w, title, data)
}
