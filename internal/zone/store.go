package zone

import (
	"context"
	"sync"

	"github.com/smukkama/drone-defense/internal/geo"
)

// Zones is the pair of polygons drones are classified against. The defense
// zone is usually nested in the alert zone, but nothing enforces that.
type Zones struct {
	AlertZone   geo.Polygon `json:"alertZone"`
	DefenseZone geo.Polygon `json:"defenseZone"`
}

// Clone returns a deep copy of z.
func (z Zones) Clone() Zones {
	return Zones{
		AlertZone:   z.AlertZone.Clone(),
		DefenseZone: z.DefenseZone.Clone(),
	}
}

// Update replaces whichever zones are non-nil. Polygons are taken as-is:
// no vertex count or self-intersection checks are made.
type Update struct {
	AlertZone   *geo.Polygon `json:"alertZone,omitempty"`
	DefenseZone *geo.Polygon `json:"defenseZone,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u Update) Empty() bool {
	return u.AlertZone == nil && u.DefenseZone == nil
}

// apply returns z with u applied; z itself is not modified.
func (u Update) apply(z Zones) Zones {
	out := z.Clone()
	if u.AlertZone != nil {
		out.AlertZone = u.AlertZone.Clone()
	}
	if u.DefenseZone != nil {
		out.DefenseZone = u.DefenseZone.Clone()
	}
	return out
}

// Repository is a zone store that may sit behind I/O.
type Repository interface {
	Load(ctx context.Context) (Zones, error)
	Apply(ctx context.Context, u Update) (Zones, error)
}

// Store holds the current zones in memory.
type Store struct {
	mu    sync.RWMutex
	zones Zones
}

// NewStore creates a store seeded with initial.
func NewStore(initial Zones) *Store {
	return &Store{zones: initial.Clone()}
}

// Zones returns a copy of the current zones.
func (s *Store) Zones() Zones {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.zones.Clone()
}

// SetZones applies u and returns the resulting zones.
func (s *Store) SetZones(u Update) Zones {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.zones = u.apply(s.zones)
	return s.zones.Clone()
}

// Replace swaps both zones at once. The poller uses it to mirror the zones
// reported by the data source.
func (s *Store) Replace(z Zones) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zones = z.Clone()
}

// Load implements Repository.
func (s *Store) Load(ctx context.Context) (Zones, error) {
	return s.Zones(), nil
}

// Apply implements Repository.
func (s *Store) Apply(ctx context.Context, u Update) (Zones, error) {
	return s.SetZones(u), nil
}
