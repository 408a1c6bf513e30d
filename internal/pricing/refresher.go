package pricing

import (
	"context"
	"fmt"

	"paperledger/internal/ledger"
	"paperledger/internal/logger"
)

// Marker is the part of the ledger engine a refresh needs.
type Marker interface {
	HeldCodes(ctx context.Context) ([]string, error)
	MarkPrices(ctx context.Context, prices map[string]float64) (ledger.MarkResult, error)
}

// Refresher pulls quotes for every held code and marks the ledger with them.
type Refresher struct {
	source Source
	ledger Marker
}

func NewRefresher(source Source, m Marker) *Refresher {
	return &Refresher{source: source, ledger: m}
}

func (r *Refresher) Refresh(ctx context.Context) (ledger.MarkResult, error) {
	codes, err := r.ledger.HeldCodes(ctx)
	if err != nil {
		return ledger.MarkResult{}, fmt.Errorf("list held codes: %w", err)
	}
	if len(codes) == 0 {
		return ledger.MarkResult{Unmatched: []string{}}, nil
	}
	quotes, err := r.source.Quotes(ctx, codes)
	if err != nil {
		return ledger.MarkResult{}, fmt.Errorf("fetch quotes: %w", err)
	}
	if len(quotes) < len(codes) {
		logger.Warnf("[pricing] got %d/%d quotes", len(quotes), len(codes))
	}
	return r.ledger.MarkPrices(ctx, quotes)
}
