package mockserver

import (
	"sync"
	"time"

	"github.com/smukkama/drone-defense/internal/geo"
	"github.com/smukkama/drone-defense/internal/protocol"
)

// DroneSpec describes a simulated drone flying a closed waypoint loop.
type DroneSpec struct {
	ID        protocol.DroneID
	Name      string
	ImageURL  string
	Speed     float64 // meters per second
	POI       float64
	Altitude  float64
	Waypoints []geo.GeoPoint
}

// FleetDrone is a point-in-time view of one simulated drone.
type FleetDrone struct {
	ID       protocol.DroneID
	Name     string
	ImageURL string
	Position geo.GeoPoint
	Speed    float64
	POI      float64
	Altitude float64
	Heading  float64
}

type flyingDrone struct {
	spec    DroneSpec
	pos     geo.GeoPoint
	leg     int // index of the waypoint last reached
	heading float64
}

func (d *flyingDrone) target() geo.GeoPoint {
	return d.spec.Waypoints[(d.leg+1)%len(d.spec.Waypoints)]
}

// Fleet moves drones along their waypoint loops.
type Fleet struct {
	mu     sync.RWMutex
	drones []*flyingDrone
}

// NewFleet places every drone at its first waypoint. Drones without
// waypoints are skipped.
func NewFleet(specs []DroneSpec) *Fleet {
	f := &Fleet{}
	for _, spec := range specs {
		if len(spec.Waypoints) == 0 {
			continue
		}
		spec.Waypoints = append([]geo.GeoPoint(nil), spec.Waypoints...)
		d := &flyingDrone{spec: spec, pos: spec.Waypoints[0]}
		if len(spec.Waypoints) > 1 {
			d.heading = geo.Bearing(d.pos, d.target())
		}
		f.drones = append(f.drones, d)
	}
	return f
}

// Advance moves every drone dt along its loop at its configured speed.
func (f *Fleet) Advance(dt time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, d := range f.drones {
		advance(d, d.spec.Speed*dt.Seconds())
	}
}

func advance(d *flyingDrone, remaining float64) {
	n := len(d.spec.Waypoints)
	if n < 2 || remaining <= 0 {
		return
	}

	// A loop of coincident waypoints has zero length; bound the walk.
	for hops := 0; remaining > 0 && hops <= n; {
		target := d.target()
		dist := geo.DistanceMeters(d.pos, target)
		if dist <= remaining {
			d.pos = target
			d.leg = (d.leg + 1) % n
			remaining -= dist
			if dist == 0 {
				hops++
			}
			continue
		}
		d.pos = geo.Interpolate(d.pos, target, remaining/dist)
		remaining = 0
	}

	if target := d.target(); target != d.pos {
		d.heading = geo.Bearing(d.pos, target)
	}
}

// Drones returns the current state of every drone in seed order.
func (f *Fleet) Drones() []FleetDrone {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]FleetDrone, 0, len(f.drones))
	for _, d := range f.drones {
		out = append(out, FleetDrone{
			ID:       d.spec.ID,
			Name:     d.spec.Name,
			ImageURL: d.spec.ImageURL,
			Position: d.pos,
			Speed:    d.spec.Speed,
			POI:      d.spec.POI,
			Altitude: d.spec.Altitude,
			Heading:  d.heading,
		})
	}
	return out
}

// Len returns the number of drones in the fleet.
func (f *Fleet) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.drones)
}
