package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/brojonat/mintwatch/service/solana"
	"github.com/brojonat/mintwatch/service/stream"
	"github.com/urfave/cli/v2"
)

func mintDecimalsCommand() *cli.Command {
	return &cli.Command{
		Name:      "decimals",
		Usage:     "Look up the decimal precision of a token mint",
		ArgsUsage: "MINT_ADDRESS",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "rpc-url",
				Usage:   "Solana RPC URL (can be specified multiple times, one is picked at random)",
				EnvVars: []string{"SOLANA_RPC_URLS"},
				Value:   cli.NewStringSlice("https://api.mainnet-beta.solana.com"),
			},
			logLevelFlag(),
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output as JSON",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("mint address is required")
			}
			mint := c.Args().First()

			logger := setupLogger(c.String("log-level"))
			cl, err := solana.NewClientFromEndpoints(c.StringSlice("rpc-url"), nil, logger)
			if err != nil {
				return err
			}

			decimals, err := cl.GetMintDecimals(c.Context, mint)
			if err != nil {
				return err
			}

			if c.Bool("json") {
				data, err := json.Marshal(map[string]any{"mint": mint, "decimals": decimals})
				if err != nil {
					return err
				}
				fmt.Fprintln(c.App.Writer, string(data))
				return nil
			}
			fmt.Fprintf(c.App.Writer, "%d\n", decimals)
			return nil
		},
	}
}

func mintFormatCommand() *cli.Command {
	return &cli.Command{
		Name:      "format",
		Usage:     "Render a raw token amount with the given precision",
		ArgsUsage: "RAW_AMOUNT DECIMALS",
		Description: `Example:
  mintwatch mint format 5000000 6   # 5.000000`,
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("raw amount and decimals are required")
			}

			amount, err := strconv.ParseInt(c.Args().Get(0), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid raw amount %q: %w", c.Args().Get(0), err)
			}
			decimals, err := strconv.Atoi(c.Args().Get(1))
			if err != nil || decimals < 0 {
				return fmt.Errorf("invalid decimals %q", c.Args().Get(1))
			}

			fmt.Fprintln(c.App.Writer, stream.FormatAmount(amount, decimals))
			return nil
		},
	}
}
