package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tin/internal/domain"
	"tin/internal/util"
)

// DefaultTradingPostURL is the trading-post API used when none is configured.
const DefaultTradingPostURL = "https://trading-post.club"

// Compile-time interface check.
var _ Broker = (*TradingPostBroker)(nil)

// APIError is a non-2xx answer from the trading-post API.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("trading-post %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// TradingPostBroker implements the Broker interface against the
// trading-post HTTP API.
type TradingPostBroker struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
	log         *slog.Logger

	// holdings lookups are read-only and retried; orders never are.
	lookupAttempts int
	lookupDelay    time.Duration
}

// NewTradingPostBroker creates a TradingPostBroker authenticating with the
// access token cached in creds. An empty baseURL selects
// DefaultTradingPostURL.
func NewTradingPostBroker(baseURL string, creds *Credentials, log *slog.Logger) *TradingPostBroker {
	if baseURL == "" {
		baseURL = DefaultTradingPostURL
	}
	if log == nil {
		log = slog.Default()
	}
	b := &TradingPostBroker{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		log:            log.With("broker", "trading-post"),
		lookupAttempts: 3,
		lookupDelay:    250 * time.Millisecond,
	}
	if creds != nil {
		b.accessToken = creds.AccessToken
	}
	return b
}

// Name returns "trading-post".
func (b *TradingPostBroker) Name() string {
	return "trading-post"
}

// user is the body of GET /users/me.
type user struct {
	Stocks []domain.Position `json:"stocks"`
}

// orderRequest is the body of POST /buy-orders and POST /sell-orders.
type orderRequest struct {
	Ticker   string `json:"ticker"`
	Quantity int64  `json:"quantity"`
}

// GetPositions returns the stocks listed on the authenticated user.
func (b *TradingPostBroker) GetPositions(ctx context.Context) ([]domain.Position, error) {
	var u user
	err := util.RetryIf(ctx, b.lookupAttempts, b.lookupDelay, func() error {
		return b.do(ctx, http.MethodGet, "/users/me", nil, &u)
	}, retryableLookup)
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u.Stocks, nil
}

// SubmitOrder creates a buy or sell order for the order's ticker and
// quantity.
func (b *TradingPostBroker) SubmitOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	var path string
	switch order.Side {
	case domain.OrderSideBuy:
		path = "/buy-orders"
	case domain.OrderSideSell:
		path = "/sell-orders"
	default:
		return nil, fmt.Errorf("unsupported order side %q", order.Side)
	}

	var created domain.Order
	err := b.do(ctx, http.MethodPost, path, orderRequest{Ticker: order.Ticker, Quantity: order.Quantity}, &created)
	if err != nil {
		return nil, fmt.Errorf("creating %s order: %w", order.Side, err)
	}

	// The API echoes ticker and quantity; side is implied by the endpoint.
	if created.Ticker == "" {
		created.Ticker = order.Ticker
	}
	if created.Quantity == 0 {
		created.Quantity = order.Quantity
	}
	created.Side = order.Side
	if created.Status == "" {
		created.Status = domain.OrderStatusAccepted
	}

	b.log.Info("order created", "id", created.ID, "ticker", created.Ticker,
		"side", created.Side, "quantity", created.Quantity)
	return &created, nil
}

func (b *TradingPostBroker) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if b.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+b.accessToken)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

// retryableLookup retries transport failures and 5xx answers.
func retryableLookup(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
