package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EmpoweredVote/geofence-backend/internal/logging"
)

func init() { logging.Discard() }

const officeScenario = `
device: phone-1
regions:
  - id: R1
    title: Office
    radius: 200
    coordinates:
      id: C1
      latitude: 3.13
      longitude: 101.62
    network:
      id: N1
      name: Office-Network
    created: 2021-01-01T00:00:00Z
events:
  - type: enter
    region_id: R1
  - type: connect
    hotspot_id: N1
  - type: exit
    region_id: R1
  - type: disconnect
  - type: enter
    region_id: nowhere
`

const regionFile = `
regions:
  - id: R1
    title: Office
    radius: 200
    coordinates:
      id: C1
      latitude: 3.13
      longitude: 101.62
    network:
      id: N1
      name: Office-Network
    created: 2021-01-01T00:00:00Z
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestReplayOfficeScenario(t *testing.T) {
	sc, err := readScenario(writeFile(t, "office.yaml", officeScenario))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, runReplay(context.Background(), sc, &out, false))

	got := out.String()
	assert.Contains(t, got, `region_entered "Office"`)
	assert.Contains(t, got, `wifi_connected "Office-Network"`)
	assert.Contains(t, got, "region_exited")
	assert.Contains(t, got, "wifi_disconnected")
	assert.Contains(t, got, "rejected: unknown region: nowhere")
	assert.Contains(t, got, "occupied:       -")
	assert.Contains(t, got, "banner:         Exited from the region 'Office'")
	assert.Contains(t, got, "1 of 5 events rejected")
}

func TestReplayStrict(t *testing.T) {
	sc, err := readScenario(writeFile(t, "office.yaml", officeScenario))
	require.NoError(t, err)

	err = runReplay(context.Background(), sc, &bytes.Buffer{}, true)

	assert.ErrorContains(t, err, "event 5")
}

func TestValidateCommand(t *testing.T) {
	good := writeFile(t, "good.yaml", regionFile)
	bad := writeFile(t, "bad.yaml", "regions:\n  - id: R1\n    title: x\n")

	out, err := execute(t, "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "ok (1 regions)")

	out, err = execute(t, "validate", good, bad)
	assert.Error(t, err)
	assert.Contains(t, out, "bad.yaml:")
}

func TestSeedAndExport(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "geofence.db")
	file := writeFile(t, "regions.yaml", regionFile)

	out, err := execute(t, "--driver", "sqlite", "--dsn", dsn, "seed", "--file", file, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Dry run complete")

	_, err = execute(t, "--driver", "sqlite", "--dsn", dsn, "seed", "--file", file)
	require.NoError(t, err)

	// A second seed over stored regions needs --confirm.
	_, err = execute(t, "--driver", "sqlite", "--dsn", dsn, "seed", "--file", file)
	assert.ErrorContains(t, err, "--confirm")
	_, err = execute(t, "--driver", "sqlite", "--dsn", dsn, "seed", "--file", file, "--confirm")
	require.NoError(t, err)

	// Merging the same file again is idempotent.
	out, err = execute(t, "--driver", "sqlite", "--dsn", dsn, "seed", "--file", file, "--merge")
	require.NoError(t, err)
	assert.Contains(t, out, "Merged 1 regions")

	out, err = execute(t, "--driver", "sqlite", "--dsn", dsn, "export")
	require.NoError(t, err)
	assert.Contains(t, out, "title: Office")
	assert.Contains(t, out, "name: Office-Network")
}
