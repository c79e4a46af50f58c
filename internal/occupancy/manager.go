package occupancy

import (
	"context"
	"sort"
	"sync"

	"github.com/EmpoweredVote/geofence-backend/internal/detector"
	"github.com/EmpoweredVote/geofence-backend/internal/logging"
	"github.com/EmpoweredVote/geofence-backend/internal/regions"
)

// ObserverFactory builds the observers attached to a new device session.
type ObserverFactory func(deviceID string) []detector.Observer

// Manager owns the region catalog and one Session per device.
type Manager struct {
	catalog   *Catalog
	observers ObserverFactory

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager returns a manager over catalog. observers may be nil.
func NewManager(catalog *Catalog, observers ObserverFactory) *Manager {
	return &Manager{
		catalog:   catalog,
		observers: observers,
		sessions:  make(map[string]*Session),
	}
}

func (m *Manager) Catalog() *Catalog { return m.catalog }

// Session returns the session for deviceID, creating it on first use.
func (m *Manager) Session(deviceID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[deviceID]; ok {
		return s
	}
	var obs []detector.Observer
	if m.observers != nil {
		obs = m.observers(deviceID)
	}
	s := newSession(deviceID, m.catalog, obs...)
	m.sessions[deviceID] = s
	logging.Component("occupancy").WithField("device", deviceID).Debug("session created")
	return s
}

// Lookup returns an existing session without creating one.
func (m *Manager) Lookup(deviceID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[deviceID]
	return s, ok
}

// Devices lists devices with a session, sorted.
func (m *Manager) Devices() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Forget drops a device's session. Its occupancy state is discarded.
func (m *Manager) Forget(deviceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, deviceID)
}

// AddRegion stores a new region and makes it visible to every session.
func (m *Manager) AddRegion(ctx context.Context, r regions.Region) error {
	if err := m.catalog.Add(ctx, r); err != nil {
		return err
	}
	logging.Component("occupancy").WithField("region", r.ID).Infof("region %q added", r.Title)
	return nil
}

// DeleteRegion removes a region and stops every session from tracking it.
func (m *Manager) DeleteRegion(ctx context.Context, id string) error {
	removed, err := m.catalog.Delete(ctx, id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.regionRemoved(removed)
	}
	logging.Component("occupancy").WithField("region", id).Infof("region %q deleted", removed.Title)
	return nil
}
