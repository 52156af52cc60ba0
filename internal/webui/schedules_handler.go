package webui

import (
	"errors"
	"net/http"

	"github.com/budapestmetrodisplay/metrodisplay/internal/app"
	"github.com/budapestmetrodisplay/metrodisplay/internal/topology"
)

type routeLink struct {
	ID       string
	Name     string
	Selected bool
}

type departureRow struct {
	app.DepartureView
	Clock string
}

type schedulesPage struct {
	Title      string
	Now        string
	Routes     []routeLink
	Departures []departureRow
}

type jobRow struct {
	app.UpdateJobView
	Clock string
}

type jobsPage struct {
	Title string
	Now   string
	Jobs  []jobRow
}

const clockLayout = "15:04:05"

func routeLinks(routes []*topology.Route, selected string) []routeLink {
	links := make([]routeLink, 0, len(routes))
	for _, r := range routes {
		links = append(links, routeLink{ID: r.ID, Name: r.Name, Selected: r.ID == selected})
	}
	return links
}

// schedulesHandler lists pending arrivals and departures, all routes or one.
func (webUI *WebUI) schedulesHandler(w http.ResponseWriter, r *http.Request) {
	routeID := r.PathValue("routeId")
	deps, err := webUI.Departures(routeID)
	if errors.Is(err, app.ErrUnknownRoute) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	loc := webUI.location()
	page := schedulesPage{
		Title:      "Scheduled departures",
		Now:        webUI.Clock.Now().In(loc).Format(clockLayout),
		Routes:     routeLinks(webUI.Network.Routes(), routeID),
		Departures: make([]departureRow, 0, len(deps)),
	}
	if route, ok := webUI.Network.Route(routeID); ok {
		page.Title += " for " + route.Name
	}
	for _, d := range deps {
		page.Departures = append(page.Departures, departureRow{DepartureView: d, Clock: d.At.In(loc).Format(clockLayout)})
	}
	webUI.render(w, "schedules.html", page)
}

func (webUI *WebUI) jobsHandler(w http.ResponseWriter, r *http.Request) {
	loc := webUI.location()
	jobs := webUI.UpdateJobs()
	page := jobsPage{
		Title: "API update jobs",
		Now:   webUI.Clock.Now().In(loc).Format(clockLayout),
		Jobs:  make([]jobRow, 0, len(jobs)),
	}
	for _, j := range jobs {
		page.Jobs = append(page.Jobs, jobRow{UpdateJobView: j, Clock: j.At.In(loc).Format(clockLayout)})
	}
	webUI.render(w, "jobs.html", page)
}
