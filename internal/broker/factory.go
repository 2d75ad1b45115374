package broker

import (
	"fmt"
	"log/slog"
	"sort"

	"tin/internal/config"
	"tin/internal/domain"
)

// FromConfig builds the broker selected by cfg.Broker.Kind. The trading-post
// broker validates its credentials file here.
func FromConfig(cfg *config.Config, log *slog.Logger) (Broker, error) {
	switch cfg.Broker.Kind {
	case "trading-post":
		creds, err := LoadCredentials(cfg.TradingPost.CredentialsFile)
		if err != nil {
			return nil, err
		}
		return NewTradingPostBroker(cfg.TradingPost.BaseURL, creds, log), nil
	case "alpaca":
		return NewAlpacaBroker(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL, log), nil
	case "simulator":
		tickers := make([]string, 0, len(cfg.Simulator.Positions))
		for ticker := range cfg.Simulator.Positions {
			tickers = append(tickers, ticker)
		}
		sort.Strings(tickers)
		positions := make([]domain.Position, 0, len(tickers))
		for _, ticker := range tickers {
			positions = append(positions, domain.Position{Ticker: ticker, Quantity: cfg.Simulator.Positions[ticker]})
		}
		return NewSimulatorBroker(positions...), nil
	default:
		return nil, fmt.Errorf("unknown broker kind %q", cfg.Broker.Kind)
	}
}
