package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/brojonat/mintwatch/service/stream"
	"github.com/itchyny/gojq"
)

// compileJQFilters parses and compiles every --must-jq expression.
func compileJQFilters(exprs []string) ([]*gojq.Code, error) {
	compiled := make([]*gojq.Code, len(exprs))
	for i, expr := range exprs {
		query, err := gojq.Parse(expr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jq filter %q: %w", expr, err)
		}
		compiled[i], err = gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("failed to compile jq filter %q: %w", expr, err)
		}
	}
	return compiled, nil
}

// eventMatches reports whether every filter evaluates to a truthy value
// against the JSON form of event.
func eventMatches(filters []*gojq.Code, event stream.BuyEvent, logger *slog.Logger) bool {
	if len(filters) == 0 {
		return true
	}

	// gojq works on plain JSON values, not structs.
	data, err := json.Marshal(event)
	if err != nil {
		return false
	}
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return false
	}

	for _, code := range filters {
		iter := code.Run(doc)
		v, ok := iter.Next()
		if !ok {
			return false
		}
		if err, isErr := v.(error); isErr {
			logger.Debug("jq filter error", "error", err)
			return false
		}
		if !isTruthy(v) {
			return false
		}
	}
	return true
}

// isTruthy checks if a jq result value is truthy.
// In jq, false and null are falsy, everything else is truthy.
func isTruthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

// printBuyEvent writes the human-readable block for one buy.
func printBuyEvent(w io.Writer, event stream.BuyEvent) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "New BUY Txn\n")
	fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "TokenAccount: %s\n", event.Account)
	fmt.Fprintf(w, "AccOwner:     %s\n", event.AccountOwner)
	fmt.Fprintf(w, "Amount:       %s\n", event.Amount)
	fmt.Fprintf(w, "Transaction:  %s\n", event.TransactionID)
	if event.BlockTime > 0 {
		fmt.Fprintf(w, "Block Time:   %s\n", time.Unix(event.BlockTime, 0).UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(w, "\n")
}

// writeBuyEvent writes event as one JSON line or as a human-readable block.
func writeBuyEvent(w io.Writer, event stream.BuyEvent, jsonOutput bool) error {
	if !jsonOutput {
		printBuyEvent(w, event)
		return nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal buy event: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
