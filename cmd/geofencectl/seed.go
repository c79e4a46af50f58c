package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/EmpoweredVote/geofence-backend/internal/regions"
)

func seedCommand(g *globalFlags) *cobra.Command {
	var (
		file    string
		dryRun  bool
		confirm bool
		merge   bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Replace the stored regions with a YAML region file",
		Long: `Replace every stored region with the contents of a YAML region file.

Examples:
  # Preview what would be written
  geofencectl seed --file regions.yaml --dry-run

  # Replace the stored regions
  geofencectl seed --file regions.yaml --confirm

  # Add or update the file's regions, keeping every other stored region
  geofencectl seed --file regions.yaml --merge`,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := readRegionFile(file)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Loaded %d regions from %s\n", len(list), file)
			printPlan(cmd, list)
			if dryRun {
				fmt.Fprintln(out, "Dry run complete. No changes made.")
				return nil
			}

			store, conn, err := g.openStore()
			if err != nil {
				return err
			}
			defer closeDB(conn)

			if merge {
				for _, r := range list {
					if err := store.Save(cmd.Context(), r); err != nil {
						return fmt.Errorf("save %s: %w", r.ID, err)
					}
				}
				fmt.Fprintf(out, "Merged %d regions\n", len(list))
				return nil
			}

			existing, err := store.LoadAll(cmd.Context())
			if err != nil && !errors.Is(err, regions.ErrNoDataFound) {
				return err
			}
			if len(existing) > 0 && !confirm {
				return fmt.Errorf("store holds %d regions; refusing to replace them without --confirm", len(existing))
			}
			if err := store.SaveAll(cmd.Context(), list); err != nil {
				return err
			}
			fmt.Fprintf(out, "Replaced %d regions with %d\n", len(existing), len(list))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to the YAML region file (required)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse and validate only; no database writes")
	cmd.Flags().BoolVar(&confirm, "confirm", false, "required to replace a non-empty store")
	cmd.Flags().BoolVar(&merge, "merge", false, "upsert the file's regions instead of replacing the store")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func printPlan(cmd *cobra.Command, list []regions.Region) {
	out := cmd.OutOrStdout()
	for _, r := range list {
		fmt.Fprintf(out, "  %-36s %-24q %8.0fm  wifi %q\n", r.ID, r.Title, r.Radius, r.Network.Name)
	}
}
