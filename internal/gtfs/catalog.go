// Package gtfs reads the optional GTFS static feed that fills in route
// names, colors and types the YAML network leaves out.
package gtfs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/OneBusAway/go-gtfs"
	"github.com/budapestmetrodisplay/metrodisplay/internal/logging"
)

const maxStaticSize = 200 * 1024 * 1024

// Route type names used by the topology.
const (
	TypeSubway  = "subway"
	TypeRailway = "railway"
	TypeOther   = "other"
)

// RouteInfo is the part of a GTFS route the display cares about.
type RouteInfo struct {
	ID    string
	Name  string
	Color string
	Type  string
}

// RouteCatalog maps route_id to RouteInfo. A nil catalog is empty.
type RouteCatalog map[string]RouteInfo

// Lookup returns the route and whether it was present.
func (c RouteCatalog) Lookup(routeID string) (RouteInfo, bool) {
	info, ok := c[routeID]
	return info, ok
}

// MapRouteType converts a GTFS route_type to a display route type.
// 1 is metro; 2 and the extended 100-117 range are rail.
func MapRouteType(routeType int) string {
	switch {
	case routeType == 1:
		return TypeSubway
	case routeType == 2, routeType >= 100 && routeType <= 117:
		return TypeRailway
	default:
		return TypeOther
	}
}

// NewRouteCatalog indexes parsed static data.
func NewRouteCatalog(data *gtfs.Static) RouteCatalog {
	catalog := make(RouteCatalog, len(data.Routes))
	for i := range data.Routes {
		route := &data.Routes[i]
		name := route.ShortName
		if name == "" {
			name = route.LongName
		}
		catalog[route.Id] = RouteInfo{
			ID:    route.Id,
			Name:  name,
			Color: strings.ToUpper(route.Color),
			Type:  MapRouteType(int(route.Type)),
		}
	}
	return catalog
}

// LoadRouteCatalog reads a GTFS zip from a local path or an http(s) URL.
// An empty source yields an empty catalog.
func LoadRouteCatalog(ctx context.Context, source string) (RouteCatalog, error) {
	if source == "" {
		return RouteCatalog{}, nil
	}
	b, err := rawGtfsData(ctx, source)
	if err != nil {
		return nil, err
	}
	staticData, err := gtfs.ParseStatic(b, gtfs.ParseStaticOptions{})
	if err != nil {
		return nil, fmt.Errorf("error parsing GTFS data: %w", err)
	}
	return NewRouteCatalog(staticData), nil
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

func rawGtfsData(ctx context.Context, source string) ([]byte, error) {
	if !isRemote(source) {
		b, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("error reading local GTFS file: %w", err)
		}
		return b, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating GTFS request: %w", err)
	}

	client := &http.Client{
		Timeout: 5 * time.Minute,
		Transport: &http.Transport{
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			IdleConnTimeout:       90 * time.Second,
		}}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error downloading GTFS data: %w", err)
	}
	defer logging.SafeCloseWithLogging(resp.Body,
		slog.Default().With(slog.String("component", "gtfs_downloader")),
		"http_response_body")

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download GTFS data: received HTTP status %s", resp.Status)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxStaticSize+1))
	if err != nil {
		return nil, fmt.Errorf("error reading GTFS data: %w", err)
	}
	if int64(len(b)) > maxStaticSize {
		return nil, fmt.Errorf("static GTFS response exceeds size limit of %d bytes", maxStaticSize)
	}
	return b, nil
}
