package mockserver

import (
	"sort"
	"sync"
	"time"

	"github.com/smukkama/drone-defense/internal/protocol"
)

// EventKind classifies a sighting event.
type EventKind int

const (
	// EventSighted is recorded when a drone becomes visible in the alert zone.
	EventSighted EventKind = iota
	// EventIntrusion is recorded when a drone enters the defense zone.
	EventIntrusion
)

// Event is one entry in the sighting history.
type Event struct {
	DroneID protocol.DroneID
	Name    string
	Kind    EventKind
	At      time.Time
}

var weekdayLabels = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

type droneTrack struct {
	name     string
	visible  bool
	inside   bool
	lastSeen time.Time
}

// History keeps a bounded log of sighting events, derived from per-tick
// observations, and builds the report from it.
type History struct {
	mu     sync.Mutex
	limit  int
	events []Event
	tracks map[protocol.DroneID]*droneTrack
}

// NewHistory creates a history that retains at most limit events.
func NewHistory(limit int) *History {
	if limit < 1 {
		limit = 1
	}
	return &History{
		limit:  limit,
		tracks: make(map[protocol.DroneID]*droneTrack),
	}
}

// Observe records one tick's view of a drone. Events are only appended on
// becoming visible and on entering the defense zone.
func (h *History) Observe(id protocol.DroneID, name string, at time.Time, visible, inDefense bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	tr, ok := h.tracks[id]
	if !ok {
		tr = &droneTrack{}
		h.tracks[id] = tr
	}
	tr.name = name

	if !visible {
		tr.visible = false
		tr.inside = false
		return
	}

	if !tr.visible {
		h.append(Event{DroneID: id, Name: name, Kind: EventSighted, At: at})
	}
	if inDefense && !tr.inside {
		h.append(Event{DroneID: id, Name: name, Kind: EventIntrusion, At: at})
	}

	tr.visible = true
	tr.inside = inDefense
	tr.lastSeen = at
}

func (h *History) append(e Event) {
	h.events = append(h.events, e)
	if over := len(h.events) - h.limit; over > 0 {
		h.events = append(h.events[:0:0], h.events[over:]...)
	}
}

// Events returns a copy of the retained events, oldest first.
func (h *History) Events() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Event(nil), h.events...)
}

// Report summarizes the history as of now. topN bounds the offender list.
func (h *History) Report(now time.Time, topN int) protocol.ReportData {
	h.mu.Lock()
	defer h.mu.Unlock()

	detected := make(map[protocol.DroneID]bool)
	intrusions := make(map[protocol.DroneID]int)
	redZone := 0

	weekStart := now.AddDate(0, 0, -6)
	weekStart = time.Date(weekStart.Year(), weekStart.Month(), weekStart.Day(), 0, 0, 0, 0, now.Location())
	perDay := make([]map[protocol.DroneID]bool, 7)

	for _, e := range h.events {
		detected[e.DroneID] = true
		if e.Kind == EventIntrusion {
			redZone++
			intrusions[e.DroneID]++
		}

		at := e.At.In(now.Location())
		if at.Before(weekStart) || at.After(now) {
			continue
		}
		day := int(at.Weekday())
		if perDay[day] == nil {
			perDay[day] = make(map[protocol.DroneID]bool)
		}
		perDay[day][e.DroneID] = true
	}

	weekly := make([]int, 7)
	for i, ids := range perDay {
		weekly[i] = len(ids)
	}

	offenders := make([]protocol.Offender, 0, len(intrusions))
	for id, count := range intrusions {
		tr := h.tracks[id]
		offenders = append(offenders, protocol.Offender{
			Name:     tr.name,
			Count:    count,
			LastSeen: tr.lastSeen.In(now.Location()).Format("15:04"),
		})
	}
	sort.Slice(offenders, func(i, j int) bool {
		if offenders[i].Count != offenders[j].Count {
			return offenders[i].Count > offenders[j].Count
		}
		return offenders[i].Name < offenders[j].Name
	})
	if topN > 0 && len(offenders) > topN {
		offenders = offenders[:topN]
	}

	return protocol.ReportData{
		Summary: protocol.ReportSummary{
			TotalDetected:   len(detected),
			RedZoneDetected: redZone,
			ActiveHours:     "Now",
		},
		WeeklyStats: protocol.WeeklyStats{
			Labels:   append([]string(nil), weekdayLabels...),
			Datasets: []protocol.Dataset{{Data: weekly}},
		},
		TopOffenders: offenders,
	}
}
