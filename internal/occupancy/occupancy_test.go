package occupancy_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EmpoweredVote/geofence-backend/internal/db/dbtest"
	"github.com/EmpoweredVote/geofence-backend/internal/detector"
	"github.com/EmpoweredVote/geofence-backend/internal/notify"
	"github.com/EmpoweredVote/geofence-backend/internal/occupancy"
	"github.com/EmpoweredVote/geofence-backend/internal/regions"
)

// mockDataSource serves a fixed list and records saves.
type mockDataSource struct {
	regions []regions.Region
	saved   [][]regions.Region
	loadErr error
	saveErr error
}

func (m *mockDataSource) LoadAll(context.Context) ([]regions.Region, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if len(m.regions) == 0 {
		return nil, regions.ErrNoDataFound
	}
	return m.regions, nil
}

func (m *mockDataSource) SaveAll(_ context.Context, rs []regions.Region) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, rs)
	m.regions = rs
	return nil
}

var base = time.Date(2021, 1, 2, 0, 0, 0, 0, time.UTC)

// Petronas TTDI, Kuala Lumpur.
func petronas() regions.Region {
	return regions.Region{
		ID:          "R1",
		Title:       "Petronas TTDI",
		Radius:      500,
		Coordinates: regions.Coordinates{ID: "C1", Latitude: 3.1303358056425137, Longitude: 101.62857783322326},
		Network:     regions.HotSpot{ID: "N1", RegionID: "R1", Name: "TestNetwork", Radius: 100, BSSIDs: []string{"AA:BB:CC:DD:EE:01"}},
		Created:     base,
	}
}

// About 2.2 km north of Petronas TTDI; the two do not overlap.
func library() regions.Region {
	return regions.Region{
		ID:          "R2",
		Title:       "Library",
		Radius:      300,
		Coordinates: regions.Coordinates{ID: "C2", Latitude: 3.1503, Longitude: 101.62857783322326},
		Network:     regions.HotSpot{ID: "N2", RegionID: "R2", Name: "Library WiFi", Radius: 100},
		Created:     base.Add(time.Hour),
	}
}

type harness struct {
	source  *mockDataSource
	manager *occupancy.Manager
	events  []notify.Notification
}

func newHarness(t *testing.T, rs ...regions.Region) *harness {
	t.Helper()
	h := &harness{source: &mockDataSource{regions: rs}}
	hub := notify.NewHub(notify.SinkFunc(func(n notify.Notification) { h.events = append(h.events, n) }))
	catalog := occupancy.NewCatalog(h.source)
	require.NoError(t, catalog.Load(context.Background()))
	h.manager = occupancy.NewManager(catalog, func(deviceID string) []detector.Observer {
		return []detector.Observer{hub.Observer(deviceID)}
	})
	return h
}

func (h *harness) take() []string {
	out := make([]string, 0, len(h.events))
	for _, n := range h.events {
		s := string(n.Kind)
		if n.Name != "" {
			s += ":" + n.Name
		}
		out = append(out, s)
	}
	h.events = nil
	return out
}

func TestCatalogLoadEmptyStore(t *testing.T) {
	h := newHarness(t)
	assert.Empty(t, h.manager.Catalog().List())
}

func TestCatalogLoadError(t *testing.T) {
	catalog := occupancy.NewCatalog(&mockDataSource{loadErr: errors.New("boom")})
	assert.Error(t, catalog.Load(context.Background()))
}

func TestCatalogOrderAndHotSpots(t *testing.T) {
	h := newHarness(t, library(), petronas())
	c := h.manager.Catalog()

	list := c.List()
	require.Len(t, list, 2)
	assert.Equal(t, "R1", list[0].ID)

	hotspots := c.HotSpots()
	require.Len(t, hotspots, 2)
	assert.Equal(t, "TestNetwork", hotspots[0].Name)
	assert.Equal(t, "Library WiFi", hotspots[1].Name)
}

func TestCatalogResolvesNetworks(t *testing.T) {
	h := newHarness(t, petronas(), library())
	c := h.manager.Catalog()

	r, ok := c.RegionForHotSpot("N2")
	require.True(t, ok)
	assert.Equal(t, "R2", r.ID)

	r, ok = c.RegionForNetworkName("library wifi")
	require.True(t, ok)
	assert.Equal(t, "R2", r.ID)

	r, ok = c.RegionForBSSID("aa-bb-cc-dd-ee-01")
	require.True(t, ok)
	assert.Equal(t, "R1", r.ID)

	_, ok = c.RegionForHotSpot("missing")
	assert.False(t, ok)
}

func TestAddRegionSavesFullList(t *testing.T) {
	h := newHarness(t, petronas())

	require.NoError(t, h.manager.AddRegion(context.Background(), library()))

	require.Len(t, h.source.saved, 1)
	assert.Len(t, h.source.saved[0], 2)
	_, ok := h.manager.Catalog().Region("R2")
	assert.True(t, ok)
}

func TestAddRegionDuplicate(t *testing.T) {
	h := newHarness(t, petronas())

	err := h.manager.AddRegion(context.Background(), petronas())
	assert.ErrorIs(t, err, regions.ErrDuplicate)

	dupNetwork := library()
	dupNetwork.Network.ID = "N1"
	err = h.manager.AddRegion(context.Background(), dupNetwork)
	assert.ErrorIs(t, err, regions.ErrDuplicate)
	assert.Empty(t, h.source.saved)
}

func TestAddRegionSaveFailureLeavesCatalog(t *testing.T) {
	h := newHarness(t, petronas())
	h.source.saveErr = regions.ErrSaveError

	err := h.manager.AddRegion(context.Background(), library())

	assert.ErrorIs(t, err, regions.ErrSaveError)
	assert.Len(t, h.manager.Catalog().List(), 1)
}

func TestDeleteRegion(t *testing.T) {
	h := newHarness(t, petronas(), library())
	s := h.manager.Session("phone-1")
	require.NoError(t, s.DidEnterRegion("R1"))
	h.take()

	require.NoError(t, h.manager.DeleteRegion(context.Background(), "R1"))

	assert.Equal(t, []string{"region_exited"}, h.take())
	_, ok := h.manager.Catalog().Region("R1")
	assert.False(t, ok)
	assert.ErrorIs(t, h.manager.DeleteRegion(context.Background(), "R1"), regions.ErrNotFound)
}

func TestConnectWifiAndRegion(t *testing.T) {
	h := newHarness(t, petronas())
	s := h.manager.Session("phone-1")

	require.NoError(t, s.ConnectWifi("N1"))

	assert.Equal(t, []string{"wifi_connected:TestNetwork", "region_entered:Petronas TTDI"}, h.take())
}

func TestDisconnectWifi(t *testing.T) {
	h := newHarness(t, petronas())
	s := h.manager.Session("phone-1")

	require.NoError(t, s.ConnectWifi("N1"))
	h.take()
	s.DisconnectWifi()

	assert.Equal(t, []string{"wifi_disconnected", "region_exited"}, h.take())
}

func TestEnterAndExitIntoFence(t *testing.T) {
	h := newHarness(t, petronas())
	s := h.manager.Session("phone-1")

	require.NoError(t, s.DidEnterRegion("R1"))
	require.NoError(t, s.DidExitRegion("R1"))

	assert.Equal(t, []string{"region_entered:Petronas TTDI", "region_exited"}, h.take())
}

func TestConnectWifiAndEnterExitFence(t *testing.T) {
	h := newHarness(t, petronas())
	s := h.manager.Session("phone-1")

	require.NoError(t, s.ConnectWifiByName("testnetwork"))
	require.NoError(t, s.DidEnterRegion("R1"))
	require.NoError(t, s.DidExitRegion("R1"))

	events := h.take()
	assert.Contains(t, events, "region_entered:Petronas TTDI")
	assert.NotContains(t, events, "region_exited")
	_, occupied := s.Status()
	require.NotNil(t, occupied)
	assert.Equal(t, "R1", occupied.ID)
}

func TestUnknownIDs(t *testing.T) {
	h := newHarness(t, petronas())
	s := h.manager.Session("phone-1")

	assert.ErrorIs(t, s.DidEnterRegion("nope"), occupancy.ErrUnknownRegion)
	assert.ErrorIs(t, s.DidExitRegion("nope"), occupancy.ErrUnknownRegion)
	assert.ErrorIs(t, s.ConnectWifi("nope"), occupancy.ErrUnknownNetwork)
	assert.ErrorIs(t, s.ConnectWifiByName("nope"), occupancy.ErrUnknownNetwork)
	assert.ErrorIs(t, s.ConnectWifiByBSSID("00:00:00:00:00:00"), occupancy.ErrUnknownNetwork)
	assert.Empty(t, h.take())
}

func TestUpdateLocation(t *testing.T) {
	h := newHarness(t, petronas(), library())
	s := h.manager.Session("phone-1")

	// Far away: nothing to report.
	require.NoError(t, s.UpdateLocation(3.0, 101.0))
	assert.Empty(t, h.take())

	require.NoError(t, s.UpdateLocation(3.1305, 101.6286))
	assert.Equal(t, []string{"region_entered:Petronas TTDI"}, h.take())

	// Still inside: no repeat.
	require.NoError(t, s.UpdateLocation(3.1306, 101.6286))
	assert.Empty(t, h.take())

	// Straight to the library.
	require.NoError(t, s.UpdateLocation(3.1503, 101.6286))
	assert.Equal(t, []string{"region_exited", "region_entered:Library"}, h.take())

	require.NoError(t, s.UpdateLocation(3.0, 101.0))
	assert.Equal(t, []string{"region_exited"}, h.take())

	assert.ErrorIs(t, s.UpdateLocation(91, 0), occupancy.ErrInvalidLocation)
}

func TestSessionsAreIndependent(t *testing.T) {
	h := newHarness(t, petronas())

	require.NoError(t, h.manager.Session("phone-1").DidEnterRegion("R1"))
	_, occupied := h.manager.Session("phone-2").Status()
	assert.Nil(t, occupied)

	assert.Same(t, h.manager.Session("phone-1"), h.manager.Session("phone-1"))
	assert.Equal(t, []string{"phone-1", "phone-2"}, h.manager.Devices())

	h.manager.Forget("phone-1")
	_, ok := h.manager.Lookup("phone-1")
	assert.False(t, ok)
}

func TestSessionSubscribe(t *testing.T) {
	h := newHarness(t, petronas())
	s := h.manager.Session("phone-1")
	var names []string
	unsubscribe := s.Subscribe(detector.ObserverFuncs{
		OnRegionEntered: func(name string) { names = append(names, name) },
	})

	require.NoError(t, s.DidEnterRegion("R1"))
	unsubscribe()
	require.NoError(t, s.DidEnterRegion("R1"))

	assert.Equal(t, []string{"Petronas TTDI"}, names)
}

func TestCatalogWithStore(t *testing.T) {
	store := regions.NewStore(dbtest.Open(t))
	require.NoError(t, store.Migrate())
	ctx := context.Background()

	catalog := occupancy.NewCatalog(store)
	require.NoError(t, catalog.Load(ctx))
	require.NoError(t, catalog.Add(ctx, petronas()))
	require.NoError(t, catalog.Add(ctx, library()))

	reloaded := occupancy.NewCatalog(store)
	require.NoError(t, reloaded.Load(ctx))
	list := reloaded.List()
	require.Len(t, list, 2)
	assert.Equal(t, "R1", list[0].ID)
	assert.Equal(t, "TestNetwork", list[0].Network.Name)

	_, err := reloaded.Delete(ctx, "R1")
	require.NoError(t, err)
	stored, err := store.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "R2", stored[0].ID)
}

func TestApplyEvents(t *testing.T) {
	h := newHarness(t, petronas())
	s := h.manager.Session("phone-1")
	lat, lng := 3.1305, 101.6286

	require.NoError(t, s.Apply(occupancy.Event{Type: occupancy.EventConnect, BSSID: "aa:bb:cc:dd:ee:01"}))
	require.NoError(t, s.Apply(occupancy.Event{Type: occupancy.EventEnter, RegionID: "R1"}))
	require.NoError(t, s.Apply(occupancy.Event{Type: occupancy.EventLocation, Latitude: &lat, Longitude: &lng}))
	require.NoError(t, s.Apply(occupancy.Event{Type: occupancy.EventExit, RegionID: "R1"}))
	require.NoError(t, s.Apply(occupancy.Event{Type: occupancy.EventDisconnect}))

	events := h.take()
	require.NotEmpty(t, events)
	assert.Equal(t, "wifi_connected:TestNetwork", events[0])
	assert.Equal(t, []string{"region_exited", "wifi_disconnected"}, events[len(events)-2:])

	assert.ErrorIs(t, s.Apply(occupancy.Event{Type: occupancy.EventConnect}), occupancy.ErrInvalidEvent)
	assert.ErrorIs(t, s.Apply(occupancy.Event{Type: occupancy.EventLocation}), occupancy.ErrInvalidEvent)
	assert.ErrorIs(t, s.Apply(occupancy.Event{Type: "teleport"}), occupancy.ErrInvalidEvent)
}

func TestEventLabel(t *testing.T) {
	for _, typ := range []string{occupancy.EventEnter, occupancy.EventExit, occupancy.EventConnect,
		occupancy.EventDisconnect, occupancy.EventLocation} {
		assert.Equal(t, typ, occupancy.EventLabel(typ))
	}
	assert.Equal(t, occupancy.EventInvalid, occupancy.EventLabel("teleport"))
	assert.Equal(t, occupancy.EventInvalid, occupancy.EventLabel(""))
}

func TestSessionConcurrentApply(t *testing.T) {
	var mu sync.Mutex
	delivered := 0
	hub := notify.NewHub(notify.SinkFunc(func(notify.Notification) {
		mu.Lock()
		delivered++
		mu.Unlock()
	}))
	catalog := occupancy.NewCatalog(&mockDataSource{regions: []regions.Region{petronas(), library()}})
	require.NoError(t, catalog.Load(context.Background()))
	manager := occupancy.NewManager(catalog, func(deviceID string) []detector.Observer {
		return []detector.Observer{hub.Observer(deviceID)}
	})
	lat, lng := 3.1503, 101.62857783322326
	events := []occupancy.Event{
		{Type: occupancy.EventEnter, RegionID: "R1"},
		{Type: occupancy.EventConnect, HotSpotID: "N2"},
		{Type: occupancy.EventExit, RegionID: "R1"},
		{Type: occupancy.EventLocation, Latitude: &lat, Longitude: &lng},
		{Type: occupancy.EventDisconnect},
	}

	var wg sync.WaitGroup
	sessions := make([]*occupancy.Session, 8)
	for i := range sessions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := manager.Session("phone-1")
			sessions[i] = s
			for j := 0; j < 100; j++ {
				for _, ev := range events {
					assert.NoError(t, s.Apply(ev))
				}
				s.Status()
			}
		}(i)
	}
	wg.Wait()

	for _, s := range sessions {
		assert.Same(t, sessions[0], s)
	}
	assert.Equal(t, []string{"phone-1"}, manager.Devices())
	mu.Lock()
	defer mu.Unlock()
	assert.Positive(t, delivered)
}
