package occupancy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/EmpoweredVote/geofence-backend/internal/regions"
)

// Catalog is the in-memory index of known regions shared by every session.
// Every mutation is written through to the DataSource as a full list.
type Catalog struct {
	store regions.DataSource

	mu        sync.RWMutex
	byID      map[string]regions.Region
	byNetwork map[string]string // hotspot id -> region id
	order     []string
}

func NewCatalog(store regions.DataSource) *Catalog {
	c := &Catalog{store: store}
	c.reset(nil)
	return c
}

// Load replaces the index with the stored regions. An empty store is not an
// error.
func (c *Catalog) Load(ctx context.Context) error {
	all, err := c.store.LoadAll(ctx)
	if err != nil && !errors.Is(err, regions.ErrNoDataFound) {
		return err
	}
	c.mu.Lock()
	c.reset(all)
	c.mu.Unlock()
	return nil
}

// List returns regions in creation order.
func (c *Catalog) List() []regions.Region {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.listLocked()
}

func (c *Catalog) Region(id string) (regions.Region, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.byID[id]
	return r, ok
}

// RegionForHotSpot returns the region whose home network has hotspotID.
func (c *Catalog) RegionForHotSpot(hotspotID string) (regions.Region, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.byNetwork[hotspotID]
	if !ok {
		return regions.Region{}, false
	}
	return c.byID[id], true
}

// RegionForNetworkName resolves an SSID. The oldest region wins when two
// regions share a network name.
func (c *Catalog) RegionForNetworkName(ssid string) (regions.Region, bool) {
	want := regions.NormalizeNetworkName(ssid)
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, id := range c.order {
		r := c.byID[id]
		if regions.NormalizeNetworkName(r.Network.Name) == want {
			return r, true
		}
	}
	return regions.Region{}, false
}

// RegionForBSSID resolves an access point MAC address.
func (c *Catalog) RegionForBSSID(bssid string) (regions.Region, bool) {
	want := regions.NormalizeBSSID(bssid)
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, id := range c.order {
		r := c.byID[id]
		for _, b := range r.Network.BSSIDs {
			if regions.NormalizeBSSID(b) == want {
				return r, true
			}
		}
	}
	return regions.Region{}, false
}

// HotSpots lists every region's home network.
func (c *Catalog) HotSpots() []regions.HotSpot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]regions.HotSpot, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id].Network)
	}
	return out
}

// Add stores a new region. Region and network ids must be unique.
func (c *Catalog) Add(ctx context.Context, r regions.Region) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.byID[r.ID]; ok {
		return fmt.Errorf("%w: %s", regions.ErrDuplicate, r.ID)
	}
	if _, ok := c.byNetwork[r.Network.ID]; ok {
		return fmt.Errorf("%w: network %s", regions.ErrDuplicate, r.Network.ID)
	}
	r.Network.RegionID = r.ID

	next := append(c.listLocked(), r)
	if err := c.store.SaveAll(ctx, next); err != nil {
		return err
	}
	c.reset(next)
	return nil
}

// Delete removes a region and returns it.
func (c *Catalog) Delete(ctx context.Context, id string) (regions.Region, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed, ok := c.byID[id]
	if !ok {
		return regions.Region{}, regions.ErrNotFound
	}
	next := make([]regions.Region, 0, len(c.order))
	for _, r := range c.listLocked() {
		if r.ID != id {
			next = append(next, r)
		}
	}
	if err := c.store.SaveAll(ctx, next); err != nil {
		return regions.Region{}, err
	}
	c.reset(next)
	return removed, nil
}

func (c *Catalog) listLocked() []regions.Region {
	out := make([]regions.Region, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

func (c *Catalog) reset(all []regions.Region) {
	sorted := make([]regions.Region, len(all))
	copy(sorted, all)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Created.Before(sorted[j].Created)
	})

	c.byID = make(map[string]regions.Region, len(sorted))
	c.byNetwork = make(map[string]string, len(sorted))
	c.order = make([]string, 0, len(sorted))
	for _, r := range sorted {
		c.byID[r.ID] = r
		c.byNetwork[r.Network.ID] = r.ID
		c.order = append(c.order, r.ID)
	}
}
