package notify

import (
	"fmt"
	"sync"
	"time"
)

// Status is what a device's map screen would show: the region banner and the
// Wi-Fi title.
type Status struct {
	DeviceID   string    `json:"device_id"`
	Inside     bool      `json:"inside"`
	Region     string    `json:"region,omitempty"`
	RegionText string    `json:"region_text"`
	Connected  bool      `json:"connected"`
	Network    string    `json:"network,omitempty"`
	WifiText   string    `json:"wifi_text"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// StatusBoard keeps the latest Status per device.
type StatusBoard struct {
	mu      sync.RWMutex
	devices map[string]Status
}

func NewStatusBoard() *StatusBoard {
	return &StatusBoard{devices: make(map[string]Status)}
}

func (b *StatusBoard) Deliver(n Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.devices[n.DeviceID]
	if !ok {
		st = Status{DeviceID: n.DeviceID}
	}
	switch n.Kind {
	case KindRegionEntered:
		st.Inside = true
		st.Region = n.Name
		st.RegionText = fmt.Sprintf("Entered into '%s' region", n.Name)
	case KindRegionExited:
		// Keep the last region name so the banner can say what was left.
		st.Inside = false
		st.RegionText = fmt.Sprintf("Exited from the region '%s'", st.Region)
	case KindWifiConnected:
		st.Connected = true
		st.Network = n.Name
		st.WifiText = "Wifi: " + n.Name
	case KindWifiDisconnected:
		st.Connected = false
		st.Network = ""
		st.WifiText = ""
	}
	st.UpdatedAt = n.At
	b.devices[n.DeviceID] = st
}

// Get returns the status of one device.
func (b *StatusBoard) Get(deviceID string) (Status, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	st, ok := b.devices[deviceID]
	return st, ok
}

// Forget drops a device.
func (b *StatusBoard) Forget(deviceID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.devices, deviceID)
}
