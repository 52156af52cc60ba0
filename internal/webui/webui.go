// Package webui renders the HTML status pages of the display.
package webui

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/budapestmetrodisplay/metrodisplay/internal/app"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.New("pages").Funcs(template.FuncMap{
	"seconds": func(v float64) string { return time.Duration(v * float64(time.Second)).String() },
}).ParseFS(templateFS, "templates/*.html"))

type WebUI struct {
	*app.Application
	// Location formats fire times. Nil means time.Local.
	Location *time.Location
}

func NewWebUI(app *app.Application) *WebUI {
	return &WebUI{Application: app}
}

func (webUI *WebUI) SetWebUIRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /schedules", webUI.schedulesHandler)
	mux.HandleFunc("GET /schedules/{routeId}", webUI.schedulesHandler)
	mux.HandleFunc("GET /jobs", webUI.jobsHandler)
	mux.HandleFunc("GET /debug", webUI.debugIndexHandler)
	mux.HandleFunc("GET /static/{file}", webUI.staticHandler)
}

func (webUI *WebUI) location() *time.Location {
	if webUI.Location != nil {
		return webUI.Location
	}
	return time.Local
}

func (webUI *WebUI) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		webUI.Logger.Error("failed to execute template", "template", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
