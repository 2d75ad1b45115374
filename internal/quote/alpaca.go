package quote

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"tin/internal/domain"
)

// Compile-time interface check.
var _ Source = (*AlpacaSource)(nil)

// snapshotClient is the part of the Alpaca market-data client AlpacaSource
// needs.
type snapshotClient interface {
	GetSnapshot(symbol string, req marketdata.GetSnapshotRequest) (*marketdata.Snapshot, error)
}

// AlpacaSource derives price signals from Alpaca market-data snapshots:
// previousClose is the previous daily bar's close and lastTradePriceOnly is
// the latest trade price.
type AlpacaSource struct {
	client snapshotClient
	feed   string
	log    *slog.Logger
}

// NewAlpacaSource creates an AlpacaSource using the given credentials. An
// empty dataURL keeps the SDK default; an empty feed selects "iex".
func NewAlpacaSource(apiKey, apiSecret, dataURL, feed string, log *slog.Logger) *AlpacaSource {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	if feed == "" {
		feed = "iex"
	}
	if log == nil {
		log = slog.Default()
	}
	return &AlpacaSource{
		client: marketdata.NewClient(opts),
		feed:   feed,
		log:    log.With("component", "quote-alpaca"),
	}
}

// Name returns "alpaca".
func (s *AlpacaSource) Name() string { return "alpaca" }

// Signal fetches the latest snapshot for ticker.
func (s *AlpacaSource) Signal(ctx context.Context, ticker string) (domain.PriceSignal, error) {
	if err := ctx.Err(); err != nil {
		return domain.PriceSignal{}, &TransportError{Source: s.Name(), Ticker: ticker, Err: err}
	}

	snap, err := s.client.GetSnapshot(ticker, marketdata.GetSnapshotRequest{
		Feed: marketdata.Feed(s.feed),
	})
	if err != nil {
		return domain.PriceSignal{}, &TransportError{Source: s.Name(), Ticker: ticker, Err: err}
	}
	if snap == nil {
		return domain.PriceSignal{}, &MalformedResponseError{Source: s.Name(), Ticker: ticker, Reason: "empty snapshot"}
	}
	if snap.PrevDailyBar == nil {
		return domain.PriceSignal{}, &MalformedResponseError{Source: s.Name(), Ticker: ticker, Reason: "missing previous daily bar"}
	}
	if snap.LatestTrade == nil {
		return domain.PriceSignal{}, &MalformedResponseError{Source: s.Name(), Ticker: ticker, Reason: "missing latest trade"}
	}

	sig := domain.PriceSignal{
		PreviousClose:      snap.PrevDailyBar.Close,
		LastTradePriceOnly: snap.LatestTrade.Price,
	}
	if !isFinite(sig.PreviousClose) || !isFinite(sig.LastTradePriceOnly) {
		return domain.PriceSignal{}, &MalformedResponseError{Source: s.Name(), Ticker: ticker,
			Reason: fmt.Sprintf("non-finite prices %v / %v", sig.PreviousClose, sig.LastTradePriceOnly)}
	}
	s.log.Debug("snapshot received", "ticker", ticker,
		"previousClose", sig.PreviousClose,
		"lastTradePriceOnly", sig.LastTradePriceOnly,
	)
	return sig, nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
