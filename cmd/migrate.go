package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/KotFed0t/finance_simulator/data"
	"github.com/google/subcommands"
)

type migrateCmd struct{}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply or revert the database migrations" }
func (*migrateCmd) Usage() string {
	return `migrate up|down

  up applies every pending migration, down reverts all of them.
`
}

func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (*migrateCmd) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	cfg := configFrom(args)

	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "expected exactly one direction: up or down")
		return subcommands.ExitUsageError
	}

	direction := f.Arg(0)
	if direction != "up" && direction != "down" {
		fmt.Fprintf(os.Stderr, "unknown direction %q\n", direction)
		return subcommands.ExitUsageError
	}

	db := data.NewPostgresClientNoMigrate(cfg)
	defer db.Close()

	var err error
	if direction == "up" {
		err = data.MigrateUp(db, cfg.Postgres.MigrationDir)
	} else {
		err = data.MigrateDown(db, cfg.Postgres.MigrationDir)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	slog.Info("migrations applied", slog.String("direction", direction))
	return subcommands.ExitSuccess
}
