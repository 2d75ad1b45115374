package broker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tin/internal/domain"
)

// ErrInsufficientQuantity is returned when a simulated sell exceeds the
// held quantity.
var ErrInsufficientQuantity = errors.New("insufficient quantity")

// Compile-time interface check.
var _ Broker = (*SimulatorBroker)(nil)

// SimulatorBroker implements the Broker interface for paper trading. It
// tracks positions and orders in memory and fills every order immediately.
type SimulatorBroker struct {
	mu        sync.Mutex
	positions map[string]int64
	orders    map[string]domain.Order
	now       func() time.Time
}

// NewSimulatorBroker creates a SimulatorBroker seeded with the given
// positions.
func NewSimulatorBroker(positions ...domain.Position) *SimulatorBroker {
	b := &SimulatorBroker{
		positions: make(map[string]int64),
		orders:    make(map[string]domain.Order),
		now:       time.Now,
	}
	for _, p := range positions {
		if p.Quantity > 0 {
			b.positions[p.Ticker] = p.Quantity
		}
	}
	return b
}

// Name returns "simulator".
func (b *SimulatorBroker) Name() string {
	return "simulator"
}

// GetPositions returns all simulated positions sorted by ticker.
func (b *SimulatorBroker) GetPositions(_ context.Context) ([]domain.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	positions := make([]domain.Position, 0, len(b.positions))
	for ticker, qty := range b.positions {
		positions = append(positions, domain.Position{Ticker: ticker, Quantity: qty})
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Ticker < positions[j].Ticker })
	return positions, nil
}

// SubmitOrder fills the order immediately and adjusts the position.
func (b *SimulatorBroker) SubmitOrder(_ context.Context, order *domain.Order) (*domain.Order, error) {
	if order.Quantity <= 0 {
		return nil, fmt.Errorf("order quantity must be positive, got %d", order.Quantity)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	held := b.positions[order.Ticker]
	switch order.Side {
	case domain.OrderSideBuy:
		held += order.Quantity
	case domain.OrderSideSell:
		if order.Quantity > held {
			return nil, fmt.Errorf("selling %d %s, holding %d: %w", order.Quantity, order.Ticker, held, ErrInsufficientQuantity)
		}
		held -= order.Quantity
	default:
		return nil, fmt.Errorf("unsupported order side %q", order.Side)
	}

	if held == 0 {
		delete(b.positions, order.Ticker)
	} else {
		b.positions[order.Ticker] = held
	}

	filled := *order
	filled.ID = uuid.NewString()
	filled.Status = domain.OrderStatusFilled
	filled.CreatedAt = b.now().UTC()
	b.orders[filled.ID] = filled
	return &filled, nil
}

// Orders returns every order filled so far, oldest first.
func (b *SimulatorBroker) Orders() []domain.Order {
	b.mu.Lock()
	defer b.mu.Unlock()

	orders := make([]domain.Order, 0, len(b.orders))
	for _, o := range b.orders {
		orders = append(orders, o)
	}
	sort.SliceStable(orders, func(i, j int) bool { return orders[i].CreatedAt.Before(orders[j].CreatedAt) })
	return orders
}
