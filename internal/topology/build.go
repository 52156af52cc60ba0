package topology

import (
	"fmt"

	"github.com/budapestmetrodisplay/metrodisplay/internal/appconf"
	"github.com/budapestmetrodisplay/metrodisplay/internal/colormath"
	"github.com/budapestmetrodisplay/metrodisplay/internal/gtfs"
)

// Build constructs the network from configuration. Route name, color and
// type missing from the YAML are taken from catalog when it knows the route.
func Build(cfg appconf.NetworkConfig, catalog gtfs.RouteCatalog) (*Network, error) {
	n := &Network{
		routeByID:   make(map[string]int),
		stopIDByKey: make(map[string]int),
	}
	ledByIndex := make(map[int]*LED)

	for _, rc := range cfg.Routes {
		if _, dup := n.routeByID[rc.RouteID]; dup {
			return nil, fmt.Errorf("duplicate route %q", rc.RouteID)
		}
		route, err := newRoute(len(n.routes), rc, catalog)
		if err != nil {
			return nil, err
		}
		n.routeByID[route.ID] = route.Index
		n.routes = append(n.routes, route)

		for _, sc := range rc.Stops {
			led, ok := ledByIndex[sc.LED]
			if !ok {
				led = &LED{Index: sc.LED}
				ledByIndex[sc.LED] = led
			}
			stop := &Stop{
				Index:    len(n.stops),
				Name:     sc.Name,
				Route:    route.Index,
				Terminus: sc.Terminus,
				LED:      sc.LED,
			}
			for _, key := range sc.StopIDs {
				if _, dup := n.stopIDByKey[key]; dup {
					return nil, fmt.Errorf("stop id %q is listed more than once", key)
				}
				sid := &StopID{Index: len(n.stopIDs), Key: key, Stop: stop.Index, inService: true}
				n.stopIDByKey[key] = sid.Index
				n.stopIDs = append(n.stopIDs, sid)
				stop.StopIDs = append(stop.StopIDs, sid.Index)
			}
			route.Stops = append(route.Stops, stop.Index)
			led.Stops = append(led.Stops, stop.Index)
			n.stops = append(n.stops, stop)
		}
	}

	for _, o := range cfg.LEDOverrides {
		led, ok := ledByIndex[o.LED]
		if !ok {
			return nil, fmt.Errorf("led override for led %d which no stop drives", o.LED)
		}
		c, err := colormath.ParseHex(o.Color)
		if err != nil {
			return nil, fmt.Errorf("led %d override: %w", o.LED, err)
		}
		led.Override = &c
	}

	for _, led := range ledByIndex {
		n.leds = append(n.leds, led)
	}
	sortLEDs(n.leds)

	for _, led := range n.leds {
		led.defaultColor = n.computeDefaultColor(led)
	}
	return n, nil
}

func newRoute(index int, rc appconf.RouteConfig, catalog gtfs.RouteCatalog) (*Route, error) {
	info, _ := catalog.Lookup(rc.RouteID)

	name := firstNonEmpty(rc.Name, info.Name, rc.RouteID)
	typ := RouteType(firstNonEmpty(rc.Type, info.Type, string(Other)))
	switch typ {
	case Subway, Railway, Other:
	default:
		return nil, fmt.Errorf("route %q: unknown type %q", rc.RouteID, typ)
	}
	color, err := colormath.ParseHex(firstNonEmpty(rc.Color, info.Color))
	if err != nil {
		return nil, fmt.Errorf("route %q: %w", rc.RouteID, err)
	}
	return &Route{
		Index:    index,
		ID:       rc.RouteID,
		Name:     name,
		Type:     typ,
		Color:    color,
		Realtime: rc.Realtime,
		interval: UnknownInterval,
	}, nil
}

func (n *Network) computeDefaultColor(led *LED) colormath.RGB {
	if led.Override != nil {
		return *led.Override
	}
	seen := make(map[int]bool)
	var colors []colormath.RGB
	for _, si := range led.Stops {
		ri := n.stops[si].Route
		if seen[ri] {
			continue
		}
		seen[ri] = true
		colors = append(colors, n.routes[ri].Color)
	}
	return colormath.Max(colors...)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
