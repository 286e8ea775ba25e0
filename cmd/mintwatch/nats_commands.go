package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	natspkg "github.com/brojonat/mintwatch/service/nats"
	"github.com/brojonat/mintwatch/service/stream"
	"github.com/nats-io/nats.go"
	"github.com/urfave/cli/v2"
)

// subscribeCommand tails buy events published by a watcher.
func subscribeCommand() *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Subscribe to buy events published by mintwatch",
		ArgsUsage: "[mint_address]",
		Description: `Subscribe to buy events published to NATS by "mintwatch watch".

Events are published to the subject: {prefix}.{mint_address}
Without a mint address, events for every mint are shown.

Example:
  mintwatch nats subscribe EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v --json`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.StringFlag{
				Name:    "subject-prefix",
				Usage:   "Subject prefix events are published under",
				EnvVars: []string{"NATS_SUBJECT_PREFIX"},
				Value:   natspkg.DefaultSubjectPrefix,
			},
			&cli.StringSliceFlag{
				Name:    "must-jq",
				Usage:   "jq filter expression that must evaluate to true (can be specified multiple times, all must match)",
				Aliases: []string{"jq"},
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output buy events as JSON (one per line)",
			},
		},
		Action: func(c *cli.Context) error {
			filters, err := compileJQFilters(c.StringSlice("must-jq"))
			if err != nil {
				return err
			}

			subject := subscribeSubject(c.String("subject-prefix"), c.Args().First())
			jsonOutput := c.Bool("json")
			logger := setupLogger("error")

			nc, err := nats.Connect(c.String("nats-url"))
			if err != nil {
				return fmt.Errorf("failed to connect to NATS: %w", err)
			}
			defer nc.Close()

			msgChan := make(chan *nats.Msg, 64)
			sub, err := nc.ChanSubscribe(subject, msgChan)
			if err != nil {
				return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
			}
			defer sub.Unsubscribe()

			if !jsonOutput {
				fmt.Fprintf(os.Stderr, "📡 Subscribing to: %s\n", subject)
				fmt.Fprintf(os.Stderr, "   NATS: %s\n", c.String("nats-url"))
				fmt.Fprintf(os.Stderr, "\nWaiting for buys... (Ctrl-C to exit)\n\n")
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			count := 0
			for {
				select {
				case msg := <-msgChan:
					var event stream.BuyEvent
					if err := json.Unmarshal(msg.Data, &event); err != nil {
						fmt.Fprintf(os.Stderr, "Error parsing event: %v\n", err)
						continue
					}
					if !eventMatches(filters, event, logger) {
						continue
					}
					count++
					if err := writeBuyEvent(c.App.Writer, event, jsonOutput); err != nil {
						return err
					}

				case <-ctx.Done():
					if !jsonOutput {
						fmt.Fprintf(os.Stderr, "\n\n✅ Received %d buys\n", count)
					}
					return nil
				}
			}
		},
	}
}

// subscribeSubject returns the subject for one mint, or a wildcard over all
// mints when mint is empty.
func subscribeSubject(prefix, mint string) string {
	if mint == "" {
		return natspkg.Subject(prefix, ">")
	}
	return natspkg.Subject(prefix, mint)
}
