package poller

import (
	"github.com/smukkama/drone-defense/internal/alerting"
	"github.com/smukkama/drone-defense/internal/geo"
	"github.com/smukkama/drone-defense/internal/protocol"
	"github.com/smukkama/drone-defense/internal/zone"
)

// Classify tests every drone against both zones. The drone's own
// InDefenseZone flag is overwritten with the local result.
func Classify(drones []protocol.DroneSnapshot, zones zone.Zones) []alerting.ClassifiedDrone {
	out := make([]alerting.ClassifiedDrone, 0, len(drones))
	for _, d := range drones {
		pos := d.Position()
		inDefense := geo.PointInPolygon(pos, zones.DefenseZone)
		d.InDefenseZone = inDefense
		out = append(out, alerting.ClassifiedDrone{
			Drone:         d,
			InAlertZone:   geo.PointInPolygon(pos, zones.AlertZone),
			InDefenseZone: inDefense,
		})
	}
	return out
}
