package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/EmpoweredVote/geofence-backend/internal/db"
	"github.com/EmpoweredVote/geofence-backend/internal/detector"
	"github.com/EmpoweredVote/geofence-backend/internal/notify"
	"github.com/EmpoweredVote/geofence-backend/internal/occupancy"
	"github.com/EmpoweredVote/geofence-backend/internal/regions"
)

// scenario is a recorded sequence of device events against a set of regions.
type scenario struct {
	Device  string           `yaml:"device"`
	Regions []regions.Region `yaml:"regions"`
	Events  []scenarioEvent  `yaml:"events"`
}

type scenarioEvent struct {
	Type      string   `yaml:"type"`
	RegionID  string   `yaml:"region_id,omitempty"`
	HotSpotID string   `yaml:"hotspot_id,omitempty"`
	SSID      string   `yaml:"ssid,omitempty"`
	BSSID     string   `yaml:"bssid,omitempty"`
	Latitude  *float64 `yaml:"lat,omitempty"`
	Longitude *float64 `yaml:"lng,omitempty"`
}

func (e scenarioEvent) event() occupancy.Event {
	return occupancy.Event{
		Type:      e.Type,
		RegionID:  e.RegionID,
		HotSpotID: e.HotSpotID,
		SSID:      e.SSID,
		BSSID:     e.BSSID,
		Latitude:  e.Latitude,
		Longitude: e.Longitude,
	}
}

func replayCommand() *cobra.Command {
	var (
		regionFile string
		strict     bool
	)
	cmd := &cobra.Command{
		Use:   "replay SCENARIO",
		Short: "Run a YAML event scenario through the occupancy detector",
		Long: `Run a recorded event scenario and print every notification it produces.

The scenario names a device, its regions (or use --regions) and a list of
events with the same fields devices send to /devices/{device}/events.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := readScenario(args[0])
			if err != nil {
				return err
			}
			if regionFile != "" {
				if sc.Regions, err = readRegionFile(regionFile); err != nil {
					return err
				}
			}
			return runReplay(cmd.Context(), sc, cmd.OutOrStdout(), strict)
		},
	}
	cmd.Flags().StringVar(&regionFile, "regions", "", "YAML region file replacing the scenario's regions")
	cmd.Flags().BoolVar(&strict, "strict", false, "stop at the first rejected event")
	return cmd
}

func readScenario(path string) (scenario, error) {
	var sc scenario
	data, err := os.ReadFile(path)
	if err != nil {
		return sc, err
	}
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return sc, fmt.Errorf("decode scenario: %w", err)
	}
	for i := range sc.Regions {
		sc.Regions[i].Network.RegionID = sc.Regions[i].ID
		if sc.Regions[i].Network.Radius == 0 {
			sc.Regions[i].Network.Radius = regions.DefaultHotSpotRadius
		}
	}
	return sc, nil
}

// runReplay applies sc to a fresh session backed by an in-memory store.
func runReplay(ctx context.Context, sc scenario, out io.Writer, strict bool) error {
	if err := regions.Check(sc.Regions); err != nil {
		return err
	}
	if sc.Device == "" {
		sc.Device = "replay"
	}

	conn, err := db.OpenMemory()
	if err != nil {
		return err
	}
	defer closeDB(conn)
	store := regions.NewStore(conn)
	if err := store.Migrate(); err != nil {
		return err
	}
	if err := store.SaveAll(ctx, sc.Regions); err != nil {
		return err
	}
	catalog := occupancy.NewCatalog(store)
	if err := catalog.Load(ctx); err != nil {
		return err
	}

	board := notify.NewStatusBoard()
	hub := notify.NewHub(
		notify.SinkFunc(func(n notify.Notification) {
			if n.Name != "" {
				fmt.Fprintf(out, "    -> %s %q\n", n.Kind, n.Name)
				return
			}
			fmt.Fprintf(out, "    -> %s\n", n.Kind)
		}),
		board,
	)
	manager := occupancy.NewManager(catalog, func(deviceID string) []detector.Observer {
		return []detector.Observer{hub.Observer(deviceID)}
	})
	session := manager.Session(sc.Device)

	rejected := 0
	for i, e := range sc.Events {
		fmt.Fprintf(out, "%3d %s%s\n", i+1, e.Type, describe(e))
		if err := session.Apply(e.event()); err != nil {
			rejected++
			fmt.Fprintf(out, "    rejected: %v\n", err)
			if strict {
				return fmt.Errorf("event %d: %w", i+1, err)
			}
		}
	}

	state, occupied := session.Status()
	fmt.Fprintln(out, "final state:")
	fmt.Fprintf(out, "  current region: %s\n", titleOrDash(state.CurrentRegion))
	fmt.Fprintf(out, "  sticky region:  %s\n", titleOrDash(state.StickyRegion))
	if state.CurrentWifi != nil {
		fmt.Fprintf(out, "  wifi:           %s\n", state.CurrentWifi.Name)
	} else {
		fmt.Fprintln(out, "  wifi:           -")
	}
	fmt.Fprintf(out, "  occupied:       %s\n", titleOrDash(occupied))
	if st, ok := board.Get(sc.Device); ok {
		fmt.Fprintf(out, "  banner:         %s\n", st.RegionText)
	}
	if rejected > 0 {
		fmt.Fprintf(out, "%d of %d events rejected\n", rejected, len(sc.Events))
	}
	return nil
}

func describe(e scenarioEvent) string {
	switch {
	case e.RegionID != "":
		return " " + e.RegionID
	case e.HotSpotID != "":
		return " " + e.HotSpotID
	case e.SSID != "":
		return fmt.Sprintf(" %q", e.SSID)
	case e.BSSID != "":
		return " " + e.BSSID
	case e.Latitude != nil && e.Longitude != nil:
		return fmt.Sprintf(" %.6f,%.6f", *e.Latitude, *e.Longitude)
	}
	return ""
}

func titleOrDash(r *regions.Region) string {
	if r == nil {
		return "-"
	}
	return r.Title
}
