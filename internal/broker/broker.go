// Package broker defines the Broker interface and provides implementations
// for reading holdings and submitting orders across different brokerages.
package broker

import (
	"context"

	"tin/internal/domain"
)

// Broker abstracts brokerage operations for order execution and holdings.
type Broker interface {
	// Name returns the broker identifier (e.g. "trading-post", "alpaca").
	Name() string

	// GetPositions returns all current positions held at the brokerage.
	GetPositions(ctx context.Context) ([]domain.Position, error)

	// SubmitOrder sends an order to the brokerage for execution and returns
	// the order as recorded by the brokerage.
	SubmitOrder(ctx context.Context, order *domain.Order) (*domain.Order, error)
}
