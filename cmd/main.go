package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path"

	"github.com/KotFed0t/finance_simulator/config"
	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	commander.Register(&serveCmd{}, "")
	commander.Register(&migrateCmd{}, "")
	commander.Register(&auditCmd{}, "")

	flag.Parse()

	cfg := config.MustLoad()
	setupLogger(cfg)

	slog.Debug("config loaded", slog.String("logLevel", cfg.LogLevel), slog.String("httpAddr", cfg.HTTP.Addr))

	os.Exit(int(commander.Execute(context.Background(), cfg)))
}

func setupLogger(cfg *config.Config) {
	var logLevel slog.Level

	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)
}

func configFrom(args []interface{}) *config.Config {
	return args[0].(*config.Config)
}
