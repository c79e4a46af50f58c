package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/EmpoweredVote/geofence-backend/internal/detector"
	"github.com/EmpoweredVote/geofence-backend/internal/logging"
	"github.com/EmpoweredVote/geofence-backend/internal/metrics"
	"github.com/EmpoweredVote/geofence-backend/internal/notify"
	"github.com/EmpoweredVote/geofence-backend/internal/occupancy"
	"github.com/EmpoweredVote/geofence-backend/internal/regions"
	"github.com/EmpoweredVote/geofence-backend/internal/utils"
)

var log = logging.Component("api")

type Handler struct {
	manager *occupancy.Manager
	status  *notify.StatusBoard
	metrics *metrics.Metrics
}

func RootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "Server is up!")
}

func (h *Handler) ListRegions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.Catalog().List())
}

func (h *Handler) ListHotSpots(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.Catalog().HotSpots())
}

// regionRequest is the body of POST /regions.
type regionRequest struct {
	regions.Input
	BSSIDs []string `json:"bssids"`
}

type validation struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// ValidateRegion answers whether the form could be saved, without saving.
func (h *Handler) ValidateRegion(w http.ResponseWriter, r *http.Request) {
	var in regions.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := regions.Validate(in); err != nil {
		writeJSON(w, http.StatusOK, validation{Valid: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, validation{Valid: true})
}

func (h *Handler) CreateRegion(w http.ResponseWriter, r *http.Request) {
	var in regionRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	region, err := regions.FromInput(in.Input, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	for _, b := range in.BSSIDs {
		if b = regions.NormalizeBSSID(b); b != "" {
			region.Network.BSSIDs = append(region.Network.BSSIDs, b)
		}
	}

	start := time.Now()
	if err := h.manager.AddRegion(r.Context(), region); err != nil {
		writeServiceError(w, err)
		return
	}
	addServerTiming(w, "save", time.Since(start))
	h.refreshRegionGauge()
	writeJSON(w, http.StatusCreated, region)
}

func (h *Handler) DeleteRegion(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := h.manager.DeleteRegion(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	addServerTiming(w, "save", time.Since(start))
	h.refreshRegionGauge()
	w.WriteHeader(http.StatusNoContent)
}

// DeviceView is the body of GET /devices/{device}/status.
type DeviceView struct {
	DeviceID string          `json:"device_id"`
	State    detector.State  `json:"state"`
	Occupied *regions.Region `json:"occupied,omitempty"`
	Status   *notify.Status  `json:"status,omitempty"`
}

func (h *Handler) view(deviceID string) DeviceView {
	v := DeviceView{DeviceID: deviceID}
	if s, ok := h.manager.Lookup(deviceID); ok {
		v.State, v.Occupied = s.Status()
	}
	if h.status != nil {
		if st, ok := h.status.Get(deviceID); ok {
			v.Status = &st
		}
	}
	return v
}

func (h *Handler) DeviceStatus(w http.ResponseWriter, r *http.Request) {
	deviceID, _ := utils.GetDeviceIDFromContext(r.Context())
	writeJSON(w, http.StatusOK, h.view(deviceID))
}

// ForgetDevice discards a device's occupancy state.
func (h *Handler) ForgetDevice(w http.ResponseWriter, r *http.Request) {
	deviceID, _ := utils.GetDeviceIDFromContext(r.Context())
	h.manager.Forget(deviceID)
	if h.status != nil {
		h.status.Forget(deviceID)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) EnterRegion(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, occupancy.Event{Type: occupancy.EventEnter, RegionID: chi.URLParam(r, "id")})
}

func (h *Handler) ExitRegion(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, occupancy.Event{Type: occupancy.EventExit, RegionID: chi.URLParam(r, "id")})
}

type wifiRequest struct {
	HotSpotID string `json:"hotspot_id"`
	SSID      string `json:"ssid"`
	BSSID     string `json:"bssid"`
}

func (h *Handler) ConnectWifi(w http.ResponseWriter, r *http.Request) {
	var in wifiRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.apply(w, r, occupancy.Event{
		Type:      occupancy.EventConnect,
		HotSpotID: strings.TrimSpace(in.HotSpotID),
		SSID:      in.SSID,
		BSSID:     in.BSSID,
	})
}

func (h *Handler) DisconnectWifi(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, occupancy.Event{Type: occupancy.EventDisconnect})
}

type locationRequest struct {
	Latitude  *float64 `json:"lat"`
	Longitude *float64 `json:"lng"`
}

func (h *Handler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	var in locationRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.apply(w, r, occupancy.Event{Type: occupancy.EventLocation, Latitude: in.Latitude, Longitude: in.Longitude})
}

// PostEvent accepts the same event payload devices publish over MQTT.
func (h *Handler) PostEvent(w http.ResponseWriter, r *http.Request) {
	var ev occupancy.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.apply(w, r, ev)
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request, ev occupancy.Event) {
	deviceID, _ := utils.GetDeviceIDFromContext(r.Context())
	err := h.manager.Session(deviceID).Apply(ev)
	h.metrics.ObserveEvent("http", occupancy.EventLabel(ev.Type), err)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(deviceID))
}

func (h *Handler) refreshRegionGauge() {
	if h.metrics == nil {
		return
	}
	h.metrics.Regions.Set(float64(len(h.manager.Catalog().List())))
}
