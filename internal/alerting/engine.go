package alerting

import (
	"fmt"
	"sync"

	"github.com/apex/log"

	"github.com/smukkama/drone-defense/internal/alertlog"
	"github.com/smukkama/drone-defense/internal/protocol"
)

// IntrusionTitle is the title of every intrusion alert.
const IntrusionTitle = "Intrusion Detected!"

// ClassifiedDrone is a drone snapshot together with its zone membership for
// one poll.
type ClassifiedDrone struct {
	Drone         protocol.DroneSnapshot `json:"drone"`
	InAlertZone   bool                   `json:"inAlertZone"`
	InDefenseZone bool                   `json:"inDefenseZone"`
}

// Appender receives emitted alerts. *alertlog.Log satisfies it.
type Appender interface {
	Append(rec alertlog.Record) alertlog.Record
}

// Options tune the engine.
type Options struct {
	// ClearAbsent treats an alerted drone missing from a batch as having
	// left the defense zone. Off by default: absent drones keep their state.
	ClearAbsent bool
}

// Engine turns classified batches into deduplicated intrusion alerts.
type Engine struct {
	mu      sync.Mutex
	states  *StateTracker
	alerts  Appender
	options Options
}

// NewEngine creates an engine that appends alerts to alerts.
func NewEngine(alerts Appender, opts Options) *Engine {
	return &Engine{
		states:  NewStateTracker(),
		alerts:  alerts,
		options: opts,
	}
}

// States exposes the tracker for read-only inspection.
func (e *Engine) States() *StateTracker {
	return e.states
}

// Reconcile applies one poll's classifications and returns the alerts it
// emitted. Drones are independent of one another, so batch order does not
// matter.
func (e *Engine) Reconcile(batch []ClassifiedDrone) []alertlog.Record {
	e.mu.Lock()
	defer e.mu.Unlock()

	var emitted []alertlog.Record
	seen := make(map[string]bool, len(batch))

	for _, cd := range batch {
		id := string(cd.Drone.ID)
		seen[id] = true
		state := e.states.GetState(id)

		if cd.InDefenseZone {
			if rec, ok := e.handleInside(cd, state); ok {
				emitted = append(emitted, rec)
			}
		} else {
			e.handleOutside(cd, state)
		}
	}

	if e.options.ClearAbsent {
		for _, id := range e.states.Alerted() {
			if !seen[id] {
				log.WithField("drone_id", id).Info("alerted drone absent from poll, clearing")
				e.states.Clear(id)
			}
		}
	}

	return emitted
}

func (e *Engine) handleInside(cd ClassifiedDrone, state State) (alertlog.Record, bool) {
	switch state {
	case StateClear:
		return e.triggerAlert(cd), true

	case StateAlerted:
		// Still inside, already reported.
		return alertlog.Record{}, false
	}

	return alertlog.Record{}, false
}

func (e *Engine) handleOutside(cd ClassifiedDrone, state State) {
	if state == StateAlerted {
		log.WithFields(log.Fields{
			"drone_id":   cd.Drone.ID,
			"drone_name": cd.Drone.Name,
		}).Info("drone left the defense zone")
		e.states.Clear(string(cd.Drone.ID))
	}
}

func (e *Engine) triggerAlert(cd ClassifiedDrone) alertlog.Record {
	id := string(cd.Drone.ID)
	name := cd.Drone.Name
	if name == "" {
		name = id
	}

	e.states.SetAlerted(id)

	rec := e.alerts.Append(alertlog.Record{
		Title:     IntrusionTitle,
		Message:   fmt.Sprintf("%s has entered the defense zone.", name),
		DroneID:   id,
		DroneName: name,
	})

	log.WithFields(log.Fields{
		"alert_id":   rec.ID,
		"drone_id":   id,
		"drone_name": name,
		"lat":        cd.Drone.Lat,
		"lon":        cd.Drone.Lon,
	}).Warn("INTRUSION: drone entered the defense zone")

	return rec
}
