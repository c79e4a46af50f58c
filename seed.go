package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/EmpoweredVote/geofence-backend/internal/logging"
	"github.com/EmpoweredVote/geofence-backend/internal/regions"
)

// seedIfEmpty loads path into the store when the store holds no regions.
func seedIfEmpty(ctx context.Context, store *regions.Store, path string) error {
	_, err := store.LoadAll(ctx)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, regions.ErrNoDataFound):
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	list, err := regions.Decode(f)
	if err != nil {
		return err
	}
	if err := store.SaveAll(ctx, list); err != nil {
		return err
	}
	logging.Logger.Infof("Seeded %d regions from %s", len(list), path)
	return nil
}

func splitOrigins(v string) []string {
	var out []string
	for _, o := range strings.Split(v, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
