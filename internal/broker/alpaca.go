package broker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"

	"tin/internal/domain"
)

// Compile-time interface check.
var _ Broker = (*AlpacaBroker)(nil)

// alpacaTrading is the part of the Alpaca trading client AlpacaBroker needs.
type alpacaTrading interface {
	GetPositions() ([]alpaca.Position, error)
	PlaceOrder(req alpaca.PlaceOrderRequest) (*alpaca.Order, error)
}

// AlpacaBroker implements the Broker interface using the Alpaca brokerage API.
type AlpacaBroker struct {
	client alpacaTrading
	log    *slog.Logger
}

// NewAlpacaBroker creates a new AlpacaBroker configured with the given
// credentials and API endpoint.
func NewAlpacaBroker(apiKey, apiSecret, baseURL string, log *slog.Logger) *AlpacaBroker {
	if log == nil {
		log = slog.Default()
	}
	return &AlpacaBroker{
		client: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
			BaseURL:   baseURL,
		}),
		log: log.With("broker", "alpaca"),
	}
}

// Name returns "alpaca".
func (b *AlpacaBroker) Name() string {
	return "alpaca"
}

// GetPositions returns all current positions from the Alpaca account.
// Fractional quantities are truncated to whole shares and short positions
// are reported as zero.
func (b *AlpacaBroker) GetPositions(ctx context.Context) ([]domain.Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	positions, err := b.client.GetPositions()
	if err != nil {
		return nil, fmt.Errorf("GetPositions: %w", err)
	}

	out := make([]domain.Position, 0, len(positions))
	for _, p := range positions {
		qty := p.Qty.IntPart()
		if qty < 0 {
			b.log.Warn("ignoring short position", "ticker", p.Symbol, "qty", p.Qty.String())
			qty = 0
		}
		out = append(out, domain.Position{Ticker: p.Symbol, Quantity: qty})
	}
	return out, nil
}

// SubmitOrder sends a market day order to the Alpaca API.
func (b *AlpacaBroker) SubmitOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var side alpaca.Side
	switch order.Side {
	case domain.OrderSideBuy:
		side = alpaca.Buy
	case domain.OrderSideSell:
		side = alpaca.Sell
	default:
		return nil, fmt.Errorf("unsupported order side %q", order.Side)
	}

	qty := decimal.NewFromInt(order.Quantity)
	placed, err := b.client.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:      order.Ticker,
		Qty:         &qty,
		Side:        side,
		Type:        alpaca.Market,
		TimeInForce: alpaca.Day,
	})
	if err != nil {
		return nil, fmt.Errorf("PlaceOrder: %w", err)
	}

	result := &domain.Order{
		ID:        placed.ID,
		Ticker:    placed.Symbol,
		Side:      order.Side,
		Quantity:  order.Quantity,
		Status:    domain.OrderStatus(placed.Status),
		CreatedAt: placed.CreatedAt,
	}
	if placed.Qty != nil {
		result.Quantity = placed.Qty.IntPart()
	}

	b.log.Info("order placed", "id", result.ID, "ticker", result.Ticker,
		"side", result.Side, "quantity", result.Quantity, "status", result.Status)
	return result, nil
}
