// Command geofencectl manages region data and replays device scenarios
// without running the server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/EmpoweredVote/geofence-backend/internal/config"
	"github.com/EmpoweredVote/geofence-backend/internal/db"
	"github.com/EmpoweredVote/geofence-backend/internal/logging"
	"github.com/EmpoweredVote/geofence-backend/internal/regions"
)

type globalFlags struct {
	dsn      string
	driver   string
	logLevel string
}

func main() {
	config.LoadDotEnv()
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "geofencectl",
		Short:         "Manage geofence regions and replay device events",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Init("geofencectl", g.logLevel)
			logging.Logger.SetOutput(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&g.dsn, "dsn", os.Getenv("DATABASE_URL"), "database DSN (default: env DATABASE_URL)")
	root.PersistentFlags().StringVar(&g.driver, "driver", envOr("DB_DRIVER", "postgres"), "database driver: postgres or sqlite")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", envOr("LOG_LEVEL", "warn"), "log level")

	root.AddCommand(
		seedCommand(g),
		exportCommand(g),
		validateCommand(),
		replayCommand(),
	)
	return root
}

// openStore connects to the configured database and migrates the region tables.
func (g *globalFlags) openStore() (*regions.Store, *gorm.DB, error) {
	if g.dsn == "" {
		return nil, nil, fmt.Errorf("--dsn not provided and DATABASE_URL not set")
	}
	conn, err := db.Open(db.Options{Driver: g.driver, DSN: g.dsn, LogLevel: db.ParseLogLevel(g.logLevel)})
	if err != nil {
		return nil, nil, err
	}
	store := regions.NewStore(conn)
	if err := store.Migrate(); err != nil {
		return nil, nil, err
	}
	return store, conn, nil
}

func closeDB(conn *gorm.DB) {
	if sqlDB, err := conn.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func readRegionFile(path string) ([]regions.Region, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	list, err := regions.Decode(f)
	if err != nil {
		return nil, err
	}
	return list, regions.Check(list)
}
