// Package quote fetches price signals for a ticker and turns them into a
// signed target quantity.
package quote

import (
	"context"

	"tin/internal/domain"
)

// Source abstracts a price-signal provider.
type Source interface {
	// Name returns the source identifier (e.g. "http", "alpaca").
	Name() string

	// Signal returns the previous close and last trade price for ticker.
	Signal(ctx context.Context, ticker string) (domain.PriceSignal, error)
}

// DeriveTarget fetches the price signal for ticker from src and returns the
// target quantity derived from it. Errors from src are returned unchanged.
func DeriveTarget(ctx context.Context, src Source, ticker string) (int64, error) {
	if err := domain.ValidateTicker(ticker); err != nil {
		return 0, err
	}
	sig, err := src.Signal(ctx, ticker)
	if err != nil {
		return 0, err
	}
	return domain.TargetQuantity(sig), nil
}
