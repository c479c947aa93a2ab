package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/trackerplugins/scheduled/internal/db"
)

// runUpdate is the administrative command a periodic job runner invokes: fire
// everything due right now and print a report. Per-record failures are listed
// but do not fail the command.
func runUpdate(_ *cli.Context) error {
	cfg, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	runner, cleanup := buildRunner(cfg, store)
	defer cleanup()

	fired, failed, err := runner.Run(ctx, time.Now())
	if err != nil {
		return err
	}

	fmt.Printf("%d scheduled ticket(s) fired\n", len(fired))
	for _, f := range fired {
		fmt.Printf("  #%d -> ticket %d: %s\n", f.Schedule.ID, f.TicketID, f.Schedule.Summary)
	}
	if len(failed) > 0 {
		fmt.Printf("%d scheduled ticket(s) failed\n", len(failed))
		for _, f := range failed {
			fmt.Printf("  #%d: %v\n", f.Schedule.ID, f.Err)
		}
	}
	return nil
}

func runMigrate(_ *cli.Context) error {
	_, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	ver, _, err := store.CurrentSchemaVersion(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("schedule schema at version %d (supported %d)\n", ver, db.SupportedVersion)
	return nil
}
