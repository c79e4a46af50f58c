package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/EmpoweredVote/geofence-backend/internal/regions"
)

func exportCommand(g *globalFlags) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the stored regions as a YAML region file",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, conn, err := g.openStore()
			if err != nil {
				return err
			}
			defer closeDB(conn)

			list, err := store.LoadAll(cmd.Context())
			if err != nil && !errors.Is(err, regions.ErrNoDataFound) {
				return err
			}
			if out == "" || out == "-" {
				return regions.Encode(cmd.OutOrStdout(), list)
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := regions.Encode(f, list); err != nil {
				_ = f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: stdout)")
	return cmd
}
