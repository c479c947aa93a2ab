package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/trackerplugins/scheduled/internal/config"
	"github.com/trackerplugins/scheduled/internal/db"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	app := &cli.App{
		Name:  "scheduled",
		Usage: "scheduled-ticket plugin for the tracker",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "migrate the schedule table and start the web surface",
				Action: runServe,
			},
			{
				Name:   "update",
				Usage:  "fire every due schedule once and print a report",
				Action: runUpdate,
			},
			{
				Name:   "migrate",
				Usage:  "bring the schedule table to the supported schema version",
				Action: runMigrate,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("scheduled failed")
	}
}

// openStore loads config, connects to the database and runs the migration
// gate. A schema newer than this build refuses to start.
func openStore() (*config.Config, db.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	conn, err := db.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}

	store := db.NewStore(conn, cfg.DatabaseDriver)
	return cfg, store, nil
}
