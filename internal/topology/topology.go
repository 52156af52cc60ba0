// Package topology holds the fixed route/stop/LED graph of the display and
// the live per-stop-id flags the ingestion engine flips.
//
// Entities live in slices owned by Network and refer to each other by
// index. Route, Stop and StopID never change shape after Build; only the
// flags behind each Stop's lock and each Route's schedule interval move.
package topology

import (
	"sort"
	"sync"

	"github.com/budapestmetrodisplay/metrodisplay/internal/colormath"
)

type RouteType string

const (
	Subway  RouteType = "subway"
	Railway RouteType = "railway"
	Other   RouteType = "other"
)

// UnknownInterval marks a route whose headway has not been measured.
const UnknownInterval = -1.0

type Route struct {
	Index    int
	ID       string
	Name     string
	Type     RouteType
	Color    colormath.RGB
	Realtime bool
	Stops    []int

	mu       sync.RWMutex
	interval float64
}

// ScheduleInterval is the average headway in minutes, or UnknownInterval.
func (r *Route) ScheduleInterval() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.interval
}

func (r *Route) SetScheduleInterval(minutes float64) {
	r.mu.Lock()
	r.interval = minutes
	r.mu.Unlock()
}

type Stop struct {
	Index    int
	Name     string
	Route    int
	Terminus bool
	// LED is the output index of the LED this stop drives, not a slice position.
	LED     int
	StopIDs []int

	mu sync.RWMutex
}

// StopID is one directional variant of a Stop. Its flags are guarded by the
// owning Stop's lock so a stop's combined state is never read mid-update.
type StopID struct {
	Index int
	Key   string
	Stop  int

	inService      bool
	vehiclePresent bool
}

type LED struct {
	Index    int
	Stops    []int
	Override *colormath.RGB

	defaultColor colormath.RGB
}

// DefaultColor is the override if set, else the max of the colors of
// every route driving this LED.
func (l *LED) DefaultColor() colormath.RGB { return l.defaultColor }

type Network struct {
	routes  []*Route
	stops   []*Stop
	stopIDs []*StopID
	leds    []*LED

	routeByID   map[string]int
	stopIDByKey map[string]int
}

func (n *Network) Routes() []*Route { return n.routes }

func (n *Network) Route(routeID string) (*Route, bool) {
	i, ok := n.routeByID[routeID]
	if !ok {
		return nil, false
	}
	return n.routes[i], true
}

func (n *Network) RouteAt(i int) *Route { return n.routes[i] }

func (n *Network) Stop(i int) *Stop { return n.stops[i] }

// LEDs returns every LED ordered by ascending index.
func (n *Network) LEDs() []*LED { return n.leds }

// StopIDs returns the stop-id keys of interest for a route, in config order.
func (n *Network) StopIDs(routeID string) []string {
	r, ok := n.Route(routeID)
	if !ok {
		return nil
	}
	var keys []string
	for _, si := range r.Stops {
		for _, sid := range n.stops[si].StopIDs {
			keys = append(keys, n.stopIDs[sid].Key)
		}
	}
	return keys
}

// HasStopID reports whether key belongs to the network.
func (n *Network) HasStopID(key string) bool {
	_, ok := n.stopIDByKey[key]
	return ok
}

// StopForStopID returns the Stop owning key.
func (n *Network) StopForStopID(key string) (*Stop, bool) {
	i, ok := n.stopIDByKey[key]
	if !ok {
		return nil, false
	}
	return n.stops[n.stopIDs[i].Stop], true
}

func (n *Network) withStopID(key string, fn func(sid *StopID)) bool {
	i, ok := n.stopIDByKey[key]
	if !ok {
		return false
	}
	sid := n.stopIDs[i]
	stop := n.stops[sid.Stop]
	stop.mu.Lock()
	fn(sid)
	stop.mu.Unlock()
	return true
}

// SetInService updates the service flag of a stop-id. It reports false for unknown keys.
func (n *Network) SetInService(key string, inService bool) bool {
	return n.withStopID(key, func(sid *StopID) { sid.inService = inService })
}

// SetVehiclePresent updates the presence flag of a stop-id.
func (n *Network) SetVehiclePresent(key string, present bool) bool {
	return n.withStopID(key, func(sid *StopID) { sid.vehiclePresent = present })
}

// MarkArrived sets a vehicle present and brings the stop-id back into service.
func (n *Network) MarkArrived(key string) bool {
	return n.withStopID(key, func(sid *StopID) {
		sid.vehiclePresent = true
		sid.inService = true
	})
}

// StopIDState returns the flags of one stop-id.
func (n *Network) StopIDState(key string) (inService, vehiclePresent, ok bool) {
	i, found := n.stopIDByKey[key]
	if !found {
		return false, false, false
	}
	sid := n.stopIDs[i]
	stop := n.stops[sid.Stop]
	stop.mu.RLock()
	defer stop.mu.RUnlock()
	return sid.inService, sid.vehiclePresent, true
}

// StopState derives a stop's combined flags. A terminus is in service only
// when all of its stop-ids are; any other stop when at least one is. A
// stop without stop-ids is never in service.
func (n *Network) StopState(stopIndex int) (inService, vehiclePresent bool) {
	stop := n.stops[stopIndex]
	stop.mu.RLock()
	defer stop.mu.RUnlock()

	if len(stop.StopIDs) == 0 {
		return false, false
	}
	all, anyUp := true, false
	for _, i := range stop.StopIDs {
		sid := n.stopIDs[i]
		if sid.inService {
			anyUp = true
		} else {
			all = false
		}
		if sid.vehiclePresent {
			vehiclePresent = true
		}
	}
	if stop.Terminus {
		return all, vehiclePresent
	}
	return anyUp, vehiclePresent
}

func sortLEDs(leds []*LED) {
	sort.Slice(leds, func(a, b int) bool { return leds[a].Index < leds[b].Index })
}
