package stream

import (
	"context"
	"log/slog"

	"github.com/brojonat/mintwatch/service/metrics"
)

// EventHandler receives the buy events produced from one delivered batch,
// in delivery order.
type EventHandler func(ctx context.Context, events []BuyEvent)

// Pipeline filters decoded batches for a single mint and hands the
// resulting buy events to an EventHandler.
type Pipeline struct {
	mint     string
	decimals int
	handler  EventHandler
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewPipeline creates a pipeline for mint with the given precision.
// If mint is empty, records are not checked against it.
// If metrics is nil, no metrics will be recorded.
func NewPipeline(mint string, decimals int, handler EventHandler, m *metrics.Metrics, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		mint:     mint,
		decimals: decimals,
		handler:  handler,
		logger:   logger,
		metrics:  m,
	}
}

// HandleBatch is a BatchHandler. The event handler is invoked once per batch
// with every event the batch produced, and not at all when it produced none.
func (p *Pipeline) HandleBatch(ctx context.Context, records []TransactionChangeRecord) {
	events := make([]BuyEvent, 0, len(records))

	for _, r := range records {
		// The server-side filter already matches on mint; a record for another
		// mint would be formatted with the wrong precision.
		if p.mint != "" && r.Mint != nil && *r.Mint != p.mint {
			p.logger.WarnContext(ctx, "dropping record for unexpected mint",
				"expected_mint", p.mint,
				"mint", *r.Mint,
				"transaction_id", r.TransactionID,
			)
			p.recordDrop(dropMintMismatch)
			continue
		}

		if r.Decimals != p.decimals {
			p.logger.WarnContext(ctx, "record decimals disagree with mint precision",
				"mint", p.mint,
				"record_decimals", r.Decimals,
				"mint_decimals", p.decimals,
				"transaction_id", r.TransactionID,
			)
		}

		event, reason := classify(r, p.decimals)
		if reason != "" {
			p.logger.DebugContext(ctx, "record filtered out",
				"account", r.Account,
				"transaction_id", r.TransactionID,
				"reason", reason,
			)
			p.recordDrop(reason)
			continue
		}
		if event.Mint == "" {
			event.Mint = p.mint
		}
		events = append(events, event)
	}

	if len(events) == 0 {
		return
	}

	if p.metrics != nil {
		p.metrics.RecordEventsEmitted(p.mint, len(events))
	}
	p.handler(ctx, events)
}

func (p *Pipeline) recordDrop(reason string) {
	if p.metrics != nil {
		p.metrics.RecordRecordDropped(p.mint, reason)
	}
}
