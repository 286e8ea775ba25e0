package main

import (
	"encoding/json"
	"fmt"

	"github.com/brojonat/mintwatch/service/subscription"
	"github.com/urfave/cli/v2"
)

func apiFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "api-key",
			Usage:    "Hello Moon API key",
			EnvVars:  []string{"HELLOMOON_API_KEY"},
			Required: true,
		},
		&cli.StringFlag{
			Name:    "api-url",
			Usage:   "Subscription management API URL",
			EnvVars: []string{"STREAM_API_URL"},
			Value:   "https://rest-api.hellomoon.io",
		},
	}
}

func newSubscriptionClient(c *cli.Context) *subscription.Client {
	logger := setupLogger(c.String("log-level"))
	return subscription.NewClient(c.String("api-url"), c.String("api-key"), nil, nil, logger)
}

func logLevelFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "log-level",
		Usage:   "Log level (debug, info, warn, error)",
		EnvVars: []string{"LOG_LEVEL"},
		Value:   "error",
	}
}

func createSubscriptionCommand() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "Create a balance-change subscription for a mint",
		ArgsUsage: "MINT_ADDRESS",
		Flags: append(apiFlags(),
			logLevelFlag(),
			&cli.Int64Flag{
				Name:  "min-amount",
				Usage: "Only route balance changes of at least this many raw units",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output as JSON",
			},
		),
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("mint address is required")
			}

			cl := newSubscriptionClient(c)
			id, err := cl.Create(c.Context, subscription.FilterSpec{
				Mint:      c.Args().First(),
				MinAmount: c.Int64("min-amount"),
			})
			if err != nil {
				return err
			}

			if c.Bool("json") {
				data, err := json.Marshal(map[string]string{"subscription_id": id})
				if err != nil {
					return err
				}
				fmt.Fprintln(c.App.Writer, string(data))
				return nil
			}
			fmt.Fprintf(c.App.Writer, "Created subscription: %s\n", id)
			return nil
		},
	}
}

func deleteSubscriptionCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a subscription",
		ArgsUsage: "SUBSCRIPTION_ID",
		Description: `Delete a subscription by ID. Use this to clean up subscriptions left behind by
a watcher that was killed without running its shutdown path.`,
		Flags: append(apiFlags(), logLevelFlag()),
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("subscription ID is required")
			}

			id := c.Args().First()
			cl := newSubscriptionClient(c)
			if err := cl.Delete(c.Context, id); err != nil {
				return err
			}

			fmt.Fprintf(c.App.Writer, "Deleted subscription: %s\n", id)
			return nil
		},
	}
}
