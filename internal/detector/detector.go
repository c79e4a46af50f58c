// Package detector fuses geofence and Wi-Fi signals into region occupancy.
//
// Geofence enter/exit events and Wi-Fi connect/disconnect events arrive
// independently. The Detector keeps just enough state to decide whether the
// user is inside a region and notifies its observers on every evaluation.
// Being connected to a region's home network counts as being inside it, even
// without a geofence confirmation.
//
// A Detector is not safe for concurrent use. Callers serialise events.
package detector

import (
	"github.com/EmpoweredVote/geofence-backend/internal/regions"
)

// Observer receives occupancy and connectivity notifications.
type Observer interface {
	RegionEntered(name string)
	RegionExited()
	WifiConnected(networkName string)
	WifiDisconnected()
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnRegionEntered    func(name string)
	OnRegionExited     func()
	OnWifiConnected    func(networkName string)
	OnWifiDisconnected func()
}

func (f ObserverFuncs) RegionEntered(name string) {
	if f.OnRegionEntered != nil {
		f.OnRegionEntered(name)
	}
}

func (f ObserverFuncs) RegionExited() {
	if f.OnRegionExited != nil {
		f.OnRegionExited()
	}
}

func (f ObserverFuncs) WifiConnected(networkName string) {
	if f.OnWifiConnected != nil {
		f.OnWifiConnected(networkName)
	}
}

func (f ObserverFuncs) WifiDisconnected() {
	if f.OnWifiDisconnected != nil {
		f.OnWifiDisconnected()
	}
}

// State is a copy of the detector's fields.
type State struct {
	CurrentRegion *regions.Region  `json:"current_region,omitempty"`
	CurrentWifi   *regions.HotSpot `json:"current_wifi,omitempty"`
	StickyRegion  *regions.Region  `json:"sticky_region,omitempty"`
	WifiRegion    *regions.Region  `json:"wifi_region,omitempty"`
}

type subscription struct {
	id       int
	observer Observer
}

// Detector holds occupancy state for one device.
type Detector struct {
	currentRegion *regions.Region
	currentWifi   *regions.HotSpot

	// stickyRegion is the last region entered through a geofence event. It
	// survives a geofence exit so a later Wi-Fi disconnect can tell "left
	// both signals" from "lost Wi-Fi while still inside".
	stickyRegion *regions.Region

	// wifiRegion owns currentWifi. It is what keeps a device inside after the
	// geofence reports an exit while the home network is still connected.
	wifiRegion *regions.Region

	observers []subscription
	nextID    int
}

// New returns a detector with no occupancy.
func New() *Detector {
	return &Detector{}
}

// Subscribe registers an observer and returns a function that removes it.
func (d *Detector) Subscribe(o Observer) func() {
	d.nextID++
	id := d.nextID
	d.observers = append(d.observers, subscription{id: id, observer: o})
	return func() {
		for i, s := range d.observers {
			if s.id == id {
				d.observers = append(d.observers[:i], d.observers[i+1:]...)
				return
			}
		}
	}
}

// SetCurrentRegion records a geofence enter event for region.
func (d *Detector) SetCurrentRegion(region regions.Region) {
	d.currentRegion = &region
	sticky := region
	d.stickyRegion = &sticky
	d.detectRegionChanges()
}

// SetCurrentWifi records a connect to network, which belongs to region.
func (d *Detector) SetCurrentWifi(region regions.Region, network regions.HotSpot) {
	d.currentWifi = &network
	d.wifiRegion = &region

	// Already inside the region that owns this network: only Wi-Fi changed.
	if d.currentRegion != nil && d.currentRegion.Network.ID == network.ID {
		d.didChangeWifi()
		return
	}

	current := region
	d.currentRegion = &current
	d.didChangeWifi()
	d.detectRegionChanges()
}

// ExitedRegion records a geofence exit. The sticky region is kept.
func (d *Detector) ExitedRegion() {
	d.currentRegion = nil
	d.detectRegionChanges()
}

// DisconnectWifi records a Wi-Fi disconnect. The platform does not say which
// network dropped, so the current one is assumed.
func (d *Detector) DisconnectWifi() {
	if d.exitedRegionAndWifi() {
		d.stickyRegion = nil
		d.clearWifi()
		d.detectRegionChanges()
		d.didChangeWifi()
		return
	}

	if d.currentWifi == nil {
		return
	}
	d.clearWifi()
	d.didChangeWifi()

	// Occupancy came from Wi-Fi alone and nothing corroborates it now.
	if d.stickyRegion == nil {
		d.currentRegion = nil
		d.detectRegionChanges()
	}
}

// Snapshot returns a copy of the current state.
func (d *Detector) Snapshot() State {
	return State{
		CurrentRegion: copyRegion(d.currentRegion),
		CurrentWifi:   copyHotSpot(d.currentWifi),
		StickyRegion:  copyRegion(d.stickyRegion),
		WifiRegion:    copyRegion(d.wifiRegion),
	}
}

// Occupied reports whether the device is considered inside a region, and
// which one.
func (d *Detector) Occupied() (regions.Region, bool) {
	if d.currentRegion != nil {
		return *d.currentRegion, true
	}
	if owner := d.wifiOwner(); owner != nil {
		return *owner, true
	}
	return regions.Region{}, false
}

func (d *Detector) clearWifi() {
	d.currentWifi = nil
	d.wifiRegion = nil
}

// exitedRegionAndWifi reports whether the geofence already reported an exit
// and the network being dropped is the sticky region's own.
func (d *Detector) exitedRegionAndWifi() bool {
	if d.currentWifi == nil || d.stickyRegion == nil {
		return false
	}
	return d.currentWifi.ID == d.stickyRegion.Network.ID && d.currentRegion == nil
}

// wifiOwner resolves the region that owns the connected network.
func (d *Detector) wifiOwner() *regions.Region {
	if d.currentWifi == nil {
		return nil
	}
	if d.stickyRegion != nil && d.stickyRegion.Network.ID == d.currentWifi.ID {
		return d.stickyRegion
	}
	return d.wifiRegion
}

func (d *Detector) detectRegionChanges() {
	switch {
	case d.currentWifi == nil && d.currentRegion == nil:
		d.notifyExited()
	case d.currentRegion != nil:
		// Whether or not the Wi-Fi matches the region's own network, the
		// geofence says the device is inside.
		d.notifyEntered(titleOf(d.currentRegion))
	default:
		// Geofence exited but the device is still on a known network.
		if owner := d.wifiOwner(); owner != nil {
			d.notifyEntered(titleOf(owner))
		}
	}
}

func (d *Detector) didChangeWifi() {
	if d.currentWifi != nil {
		name := d.currentWifi.Name
		d.each(func(o Observer) { o.WifiConnected(name) })
		return
	}
	d.each(func(o Observer) { o.WifiDisconnected() })
}

func (d *Detector) notifyEntered(name string) {
	d.each(func(o Observer) { o.RegionEntered(name) })
}

func (d *Detector) notifyExited() {
	d.each(func(o Observer) { o.RegionExited() })
}

func (d *Detector) each(fn func(Observer)) {
	// Copy so an observer may unsubscribe from inside a callback.
	subs := make([]subscription, len(d.observers))
	copy(subs, d.observers)
	for _, s := range subs {
		fn(s.observer)
	}
}

func titleOf(r *regions.Region) string {
	if r == nil {
		return ""
	}
	return r.Title
}

func copyRegion(r *regions.Region) *regions.Region {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

func copyHotSpot(h *regions.HotSpot) *regions.HotSpot {
	if h == nil {
		return nil
	}
	c := *h
	return &c
}
