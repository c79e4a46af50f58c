package occupancy

import (
	"errors"
	"fmt"
)

// Event types accepted from devices.
const (
	EventEnter      = "enter"
	EventExit       = "exit"
	EventConnect    = "connect"
	EventDisconnect = "disconnect"
	EventLocation   = "location"
)

// EventInvalid labels events whose type is not one of the above.
const EventInvalid = "invalid"

var ErrInvalidEvent = errors.New("invalid event")

// EventLabel maps an event type onto a bounded set of metric label values.
func EventLabel(eventType string) string {
	switch eventType {
	case EventEnter, EventExit, EventConnect, EventDisconnect, EventLocation:
		return eventType
	default:
		return EventInvalid
	}
}

// Event is a device signal as received over the wire. Connect events name
// their network by hotspot id, SSID or BSSID, in that order of preference.
type Event struct {
	Type      string   `json:"type"`
	RegionID  string   `json:"region_id,omitempty"`
	HotSpotID string   `json:"hotspot_id,omitempty"`
	SSID      string   `json:"ssid,omitempty"`
	BSSID     string   `json:"bssid,omitempty"`
	Latitude  *float64 `json:"lat,omitempty"`
	Longitude *float64 `json:"lng,omitempty"`
}

// Apply routes an event to the matching session operation.
func (s *Session) Apply(ev Event) error {
	switch ev.Type {
	case EventEnter:
		return s.DidEnterRegion(ev.RegionID)
	case EventExit:
		return s.DidExitRegion(ev.RegionID)
	case EventConnect:
		switch {
		case ev.HotSpotID != "":
			return s.ConnectWifi(ev.HotSpotID)
		case ev.SSID != "":
			return s.ConnectWifiByName(ev.SSID)
		case ev.BSSID != "":
			return s.ConnectWifiByBSSID(ev.BSSID)
		}
		return fmt.Errorf("%w: connect without a network", ErrInvalidEvent)
	case EventDisconnect:
		s.DisconnectWifi()
		return nil
	case EventLocation:
		if ev.Latitude == nil || ev.Longitude == nil {
			return fmt.Errorf("%w: location without coordinates", ErrInvalidEvent)
		}
		return s.UpdateLocation(*ev.Latitude, *ev.Longitude)
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, ev.Type)
	}
}
