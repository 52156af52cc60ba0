package topology

import "github.com/budapestmetrodisplay/metrodisplay/internal/colormath"

type StopIDSnapshot struct {
	StopID         string `json:"stopId"`
	InService      bool   `json:"inService"`
	VehiclePresent bool   `json:"vehiclePresent"`
}

type StopSnapshot struct {
	Name           string           `json:"name"`
	LED            int              `json:"led"`
	Terminus       bool             `json:"terminus"`
	InService      bool             `json:"inService"`
	VehiclePresent bool             `json:"vehiclePresent"`
	StopIDs        []StopIDSnapshot `json:"stopIds"`
}

type RouteSnapshot struct {
	RouteID          string         `json:"routeId"`
	Name             string         `json:"name"`
	Type             RouteType      `json:"type"`
	Color            colormath.RGB  `json:"color"`
	Realtime         bool           `json:"realtime"`
	ScheduleInterval float64        `json:"scheduleInterval"`
	Stops            []StopSnapshot `json:"stops"`
}

// Snapshot copies the live state of every route for read-only consumers.
func (n *Network) Snapshot() []RouteSnapshot {
	out := make([]RouteSnapshot, 0, len(n.routes))
	for _, r := range n.routes {
		rs := RouteSnapshot{
			RouteID:          r.ID,
			Name:             r.Name,
			Type:             r.Type,
			Color:            r.Color,
			Realtime:         r.Realtime,
			ScheduleInterval: r.ScheduleInterval(),
			Stops:            make([]StopSnapshot, 0, len(r.Stops)),
		}
		for _, si := range r.Stops {
			rs.Stops = append(rs.Stops, n.stopSnapshot(si))
		}
		out = append(out, rs)
	}
	return out
}

// RouteSnapshot returns the snapshot of a single route.
func (n *Network) RouteSnapshot(routeID string) (RouteSnapshot, bool) {
	i, ok := n.routeByID[routeID]
	if !ok {
		return RouteSnapshot{}, false
	}
	return n.Snapshot()[i], true
}

func (n *Network) stopSnapshot(si int) StopSnapshot {
	stop := n.stops[si]
	inService, present := n.StopState(si)
	ss := StopSnapshot{
		Name:           stop.Name,
		LED:            stop.LED,
		Terminus:       stop.Terminus,
		InService:      inService,
		VehiclePresent: present,
	}

	stop.mu.RLock()
	defer stop.mu.RUnlock()
	for _, i := range stop.StopIDs {
		sid := n.stopIDs[i]
		ss.StopIDs = append(ss.StopIDs, StopIDSnapshot{
			StopID:         sid.Key,
			InService:      sid.inService,
			VehiclePresent: sid.vehiclePresent,
		})
	}
	return ss
}
