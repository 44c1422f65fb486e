package alerting

import (
	"sort"
	"sync"
)

// State is the per-drone intrusion state.
type State string

const (
	StateClear   State = "CLEAR"
	StateAlerted State = "ALERTED"
)

// StateTracker remembers which drones are currently alerted. Only alerted
// drones have entries; every other id is implicitly clear.
type StateTracker struct {
	mu      sync.RWMutex
	alerted map[string]bool
}

// NewStateTracker creates an empty tracker.
func NewStateTracker() *StateTracker {
	return &StateTracker{alerted: make(map[string]bool)}
}

// GetState returns the state for a drone id.
func (st *StateTracker) GetState(droneID string) State {
	st.mu.RLock()
	defer st.mu.RUnlock()

	if st.alerted[droneID] {
		return StateAlerted
	}
	return StateClear
}

// SetAlerted marks a drone as inside the defense zone.
func (st *StateTracker) SetAlerted(droneID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.alerted[droneID] = true
}

// Clear removes a drone's entry (returns it to CLEAR).
func (st *StateTracker) Clear(droneID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.alerted, droneID)
}

// Alerted returns the ids of all alerted drones, sorted.
func (st *StateTracker) Alerted() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()

	ids := make([]string, 0, len(st.alerted))
	for id := range st.alerted {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of alerted drones.
func (st *StateTracker) Count() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.alerted)
}
