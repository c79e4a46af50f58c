package occupancy

import (
	"errors"
	"fmt"
	"sync"

	"github.com/EmpoweredVote/geofence-backend/internal/detector"
	"github.com/EmpoweredVote/geofence-backend/internal/regions"
)

var (
	ErrUnknownRegion   = errors.New("unknown region")
	ErrUnknownNetwork  = errors.New("unknown network")
	ErrInvalidLocation = errors.New("invalid location")
)

// Session is the occupancy view of one device. It resolves ids against the
// catalog and feeds resolved regions into its detector. Calls are serialised,
// and observers run under the session lock, so they must not call back into
// the session.
type Session struct {
	deviceID string
	catalog  *Catalog

	mu       sync.Mutex
	detector *detector.Detector

	// inside holds the regions whose geofence contained the last reported
	// location, so UpdateLocation only fires on transitions.
	inside map[string]bool
}

func newSession(deviceID string, catalog *Catalog, observers ...detector.Observer) *Session {
	s := &Session{
		deviceID: deviceID,
		catalog:  catalog,
		detector: detector.New(),
		inside:   make(map[string]bool),
	}
	for _, o := range observers {
		s.detector.Subscribe(o)
	}
	return s
}

func (s *Session) DeviceID() string { return s.deviceID }

// Subscribe adds an observer to the session's detector.
func (s *Session) Subscribe(o detector.Observer) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	unsubscribe := s.detector.Subscribe(o)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		unsubscribe()
	}
}

// DidEnterRegion handles a geofence enter event.
func (s *Session) DidEnterRegion(regionID string) error {
	r, ok := s.catalog.Region(regionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRegion, regionID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detector.SetCurrentRegion(r)
	return nil
}

// DidExitRegion handles a geofence exit event.
func (s *Session) DidExitRegion(regionID string) error {
	if _, ok := s.catalog.Region(regionID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRegion, regionID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detector.ExitedRegion()
	return nil
}

// ConnectWifi handles a connect to the network with hotspotID.
func (s *Session) ConnectWifi(hotspotID string) error {
	r, ok := s.catalog.RegionForHotSpot(hotspotID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNetwork, hotspotID)
	}
	return s.connect(r)
}

// ConnectWifiByName handles a connect reported by SSID only.
func (s *Session) ConnectWifiByName(ssid string) error {
	r, ok := s.catalog.RegionForNetworkName(ssid)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownNetwork, ssid)
	}
	return s.connect(r)
}

// ConnectWifiByBSSID handles a connect reported by access point address.
func (s *Session) ConnectWifiByBSSID(bssid string) error {
	r, ok := s.catalog.RegionForBSSID(bssid)
	if !ok {
		return fmt.Errorf("%w: bssid %s", ErrUnknownNetwork, bssid)
	}
	return s.connect(r)
}

func (s *Session) connect(r regions.Region) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detector.SetCurrentWifi(r, r.Network)
	return nil
}

// DisconnectWifi handles a Wi-Fi disconnect.
func (s *Session) DisconnectWifi() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detector.DisconnectWifi()
}

// UpdateLocation checks a position fix against every region and turns
// boundary crossings into enter/exit events.
func (s *Session) UpdateLocation(lat, lng float64) error {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return fmt.Errorf("%w: %f,%f", ErrInvalidLocation, lat, lng)
	}
	all := s.catalog.List()

	s.mu.Lock()
	defer s.mu.Unlock()

	var entered []regions.Region
	for _, r := range all {
		contains := r.Contains(lat, lng)
		switch {
		case contains && !s.inside[r.ID]:
			s.inside[r.ID] = true
			entered = append(entered, r)
		case !contains && s.inside[r.ID]:
			delete(s.inside, r.ID)
			// Leaving a region other than the current one changes nothing.
			if cur := s.detector.Snapshot().CurrentRegion; cur != nil && cur.ID == r.ID {
				s.detector.ExitedRegion()
			}
		}
	}
	// Exits go first so a move between overlapping regions ends inside.
	for _, r := range entered {
		s.detector.SetCurrentRegion(r)
	}
	return nil
}

// Status returns the detector state and the region the device counts as
// occupying, if any.
func (s *Session) Status() (detector.State, *regions.Region) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.detector.Snapshot()
	if r, ok := s.detector.Occupied(); ok {
		return state, &r
	}
	return state, nil
}

// regionRemoved stops tracking a deleted region. A device geofenced inside it
// is treated as having left.
func (s *Session) regionRemoved(r regions.Region) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inside, r.ID)
	state := s.detector.Snapshot()
	if state.CurrentRegion != nil && state.CurrentRegion.ID == r.ID {
		s.detector.ExitedRegion()
	}
}
