// Package notify turns detector callbacks into device notifications and fans
// them out to sinks.
package notify

import (
	"sync"
	"time"

	"github.com/EmpoweredVote/geofence-backend/internal/detector"
)

type Kind string

const (
	KindRegionEntered    Kind = "region_entered"
	KindRegionExited     Kind = "region_exited"
	KindWifiConnected    Kind = "wifi_connected"
	KindWifiDisconnected Kind = "wifi_disconnected"
)

// Notification is one detector callback for one device. Name carries the
// region title or network name and is empty for exits and disconnects.
type Notification struct {
	DeviceID string    `json:"device_id"`
	Kind     Kind      `json:"kind"`
	Name     string    `json:"name,omitempty"`
	At       time.Time `json:"at"`
}

// Sink receives notifications. Deliver runs on the caller's goroutine while
// the device's session lock is held: it must not block for long and must not
// call back into the session.
type Sink interface {
	Deliver(n Notification)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(n Notification)

func (f SinkFunc) Deliver(n Notification) { f(n) }

// Hub fans notifications out to every registered sink in order.
type Hub struct {
	mu    sync.RWMutex
	sinks []Sink
	now   func() time.Time
}

func NewHub(sinks ...Sink) *Hub {
	return &Hub{sinks: sinks, now: time.Now}
}

// Add registers another sink.
func (h *Hub) Add(s Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sinks = append(h.sinks, s)
}

// Publish stamps n if needed and hands it to every sink.
func (h *Hub) Publish(n Notification) {
	if n.At.IsZero() {
		n.At = h.now().UTC()
	}
	h.mu.RLock()
	sinks := h.sinks
	h.mu.RUnlock()
	for _, s := range sinks {
		s.Deliver(n)
	}
}

// Observer returns a detector observer publishing on behalf of deviceID.
func (h *Hub) Observer(deviceID string) detector.Observer {
	return deviceObserver{hub: h, deviceID: deviceID}
}

type deviceObserver struct {
	hub      *Hub
	deviceID string
}

func (o deviceObserver) RegionEntered(name string) {
	o.hub.Publish(Notification{DeviceID: o.deviceID, Kind: KindRegionEntered, Name: name})
}

func (o deviceObserver) RegionExited() {
	o.hub.Publish(Notification{DeviceID: o.deviceID, Kind: KindRegionExited})
}

func (o deviceObserver) WifiConnected(networkName string) {
	o.hub.Publish(Notification{DeviceID: o.deviceID, Kind: KindWifiConnected, Name: networkName})
}

func (o deviceObserver) WifiDisconnected() {
	o.hub.Publish(Notification{DeviceID: o.deviceID, Kind: KindWifiDisconnected})
}
