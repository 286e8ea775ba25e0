package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "mintwatch",
		Usage: "Watch a Solana token mint for wallet buys over the Hello Moon balance-change stream",
		Description: `A command-line tool that subscribes to balance changes for one token mint,
keeps the stream connection alive, and reports inbound transfers to wallet-owned accounts.

Configuration is read from the environment (and an optional .env file).`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			watchCommand(),
			{
				Name:  "subscription",
				Usage: "Manage balance-change stream subscriptions",
				Subcommands: []*cli.Command{
					createSubscriptionCommand(),
					deleteSubscriptionCommand(),
				},
			},
			{
				Name:  "mint",
				Usage: "Token mint utilities",
				Subcommands: []*cli.Command{
					mintDecimalsCommand(),
					mintFormatCommand(),
				},
			},
			{
				Name:  "nats",
				Usage: "NATS buy event commands",
				Subcommands: []*cli.Command{
					subscribeCommand(),
				},
			},
		},
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
