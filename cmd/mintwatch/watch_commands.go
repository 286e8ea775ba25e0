package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"time"

	"github.com/brojonat/mintwatch/service/config"
	"github.com/brojonat/mintwatch/service/metrics"
	natspkg "github.com/brojonat/mintwatch/service/nats"
	"github.com/brojonat/mintwatch/service/server"
	"github.com/brojonat/mintwatch/service/shutdown"
	"github.com/brojonat/mintwatch/service/solana"
	"github.com/brojonat/mintwatch/service/stream"
	"github.com/brojonat/mintwatch/service/subscription"
	"github.com/itchyny/gojq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

// watchOptions are the command-line settings of the watch command.
type watchOptions struct {
	jsonOutput     bool
	filters        []*gojq.Code
	subscriptionID string
	deleteOnExit   bool
	exit           func(code int) // nil means os.Exit
}

// watchContext is cancelled by the first termination signal. It is installed
// before any startup work.
func watchContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, shutdown.Signals...)
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Stream buys of a token mint until interrupted",
		ArgsUsage: "[mint_address]",
		Description: `Create a balance-change subscription for the mint, keep a websocket connection
to the stream open, and report every inbound transfer to a wallet-owned token account.

The mint defaults to MINT_ADDRESS. On SIGINT, SIGTERM or SIGHUP the subscription is
deleted and the process exits.

Examples:
  mintwatch watch EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v
  mintwatch watch --json --must-jq '.raw_amount >= 1000000000'
  mintwatch watch --subscription-id 2f0c1b9e-...`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output buy events as JSON (one per line)",
			},
			&cli.StringSliceFlag{
				Name:    "must-jq",
				Usage:   "jq filter expression that must evaluate to true (can be specified multiple times, all must match)",
				Aliases: []string{"jq"},
			},
			&cli.StringFlag{
				Name:  "subscription-id",
				Usage: "Attach to an existing subscription instead of creating one",
			},
			&cli.BoolFlag{
				Name:  "delete-on-exit",
				Usage: "Delete an attached --subscription-id on shutdown",
			},
		},
		Action: func(c *cli.Context) error {
			ctx, stop := watchContext(c.Context)
			defer stop()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if c.NArg() > 0 {
				cfg.MintAddress = c.Args().First()
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			filters, err := compileJQFilters(c.StringSlice("must-jq"))
			if err != nil {
				return err
			}

			opts := watchOptions{
				jsonOutput:     c.Bool("json"),
				filters:        filters,
				subscriptionID: c.String("subscription-id"),
				deleteOnExit:   c.Bool("delete-on-exit"),
			}

			logger := setupLogger(cfg.LogLevel)
			return runWatch(ctx, cfg, opts, c.App.Writer, logger)
		},
	}
}

// runWatch wires the watcher together. It only returns on startup failures;
// once listening, the process ends through the shutdown coordinator.
func runWatch(ctx context.Context, cfg *config.Config, opts watchOptions, out io.Writer, logger *slog.Logger) error {
	logger.Info("starting mintwatch",
		"mint", cfg.MintAddress,
		"stream_url", cfg.StreamWSURL,
		"log_level", cfg.LogLevel,
	)

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)

	solanaClient, err := solana.NewClientFromEndpoints(cfg.SolanaRPCURLs, m, logger)
	if err != nil {
		return fmt.Errorf("failed to create solana client: %w", err)
	}
	decimals, err := solanaClient.GetMintDecimals(ctx, cfg.MintAddress)
	if err != nil {
		return err
	}

	var publishers []natspkg.Publisher
	closePublishers := func() {
		for _, p := range publishers {
			if err := p.Close(); err != nil {
				logger.Error("failed to close publisher", "error", err)
			}
		}
	}

	if cfg.NATSURL != "" {
		p, err := natspkg.NewPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix, m, logger)
		if err != nil {
			return err
		}
		publishers = append(publishers, p)
	}

	var broadcaster *server.Broadcaster
	if cfg.MetricsAddr != "" {
		broadcaster = server.NewBroadcaster(64, logger)
		publishers = append(publishers, broadcaster)
	}

	subs := subscription.NewClient(cfg.StreamAPIURL, cfg.APIKey, nil, m, logger)

	// Only subscriptions created here are deleted on exit, unless asked otherwise.
	subscriptionID := opts.subscriptionID
	var deleter shutdown.Deleter
	if subscriptionID == "" {
		// Create runs to completion even if a signal arrives meanwhile: the
		// server may already hold the subscription, and the coordinator below
		// deletes it as soon as it sees the cancelled context.
		subscriptionID, err = subs.Create(context.WithoutCancel(ctx), subscription.FilterSpec{Mint: cfg.MintAddress})
		if err != nil {
			closePublishers()
			return err
		}
		deleter = subs
	} else {
		logger.Info("attaching to existing subscription", "subscription_id", subscriptionID)
		if opts.deleteOnExit {
			deleter = subs
		}
	}

	pipeline := stream.NewPipeline(
		cfg.MintAddress,
		decimals,
		newEventHandler(out, opts, logger, publishers...),
		m,
		logger,
	)

	listener := stream.NewListener(stream.ListenerConfig{
		URL:            cfg.StreamWSURL,
		APIKey:         cfg.APIKey,
		SubscriptionID: subscriptionID,
		ReconnectMin:   cfg.ReconnectMinBackoff,
		ReconnectMax:   cfg.ReconnectMaxBackoff,
	}, stream.NewWebsocketDialer(15*time.Second), pipeline.HandleBatch, m, logger)

	if cfg.MetricsAddr != "" {
		httpServer := server.New(cfg.MetricsAddr, registry, func() string {
			return listener.State().String()
		}, broadcaster, logger)
		go func() {
			if err := httpServer.Start(); err != nil {
				logger.Error("HTTP server error", "error", err)
			}
		}()
	}

	listenCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	coordinatorOpts := []shutdown.Option{
		shutdown.WithTimeout(cfg.ShutdownTimeout),
		shutdown.WithStop(func() {
			cancel()
			closePublishers()
		}),
	}
	if opts.exit != nil {
		coordinatorOpts = append(coordinatorOpts, shutdown.WithExit(opts.exit))
	}
	coordinator := shutdown.New(deleter, subscriptionID, logger, coordinatorOpts...)
	coordinator.Start(listenCtx)

	logger.Info("listening for buys",
		"mint", cfg.MintAddress,
		"decimals", decimals,
		"subscription_id", subscriptionID,
	)

	_ = listener.Run(listenCtx)
	coordinator.Shutdown("listener stopped")
	return nil
}

// newEventHandler writes matching buy events to out and hands them to every
// publisher.
func newEventHandler(out io.Writer, opts watchOptions, logger *slog.Logger, publishers ...natspkg.Publisher) stream.EventHandler {
	return func(ctx context.Context, events []stream.BuyEvent) {
		matched := make([]stream.BuyEvent, 0, len(events))
		for _, event := range events {
			if !eventMatches(opts.filters, event, logger) {
				continue
			}
			if err := writeBuyEvent(out, event, opts.jsonOutput); err != nil {
				logger.ErrorContext(ctx, "failed to write buy event", "error", err)
			}
			matched = append(matched, event)
		}

		if len(matched) == 0 {
			return
		}
		for _, p := range publishers {
			if err := p.PublishEvents(ctx, matched); err != nil {
				logger.ErrorContext(ctx, "failed to publish buy events",
					"count", len(matched),
					"error", err,
				)
			}
		}
	}
}
