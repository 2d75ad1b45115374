package quote

import (
	"fmt"
	"log/slog"

	"tin/internal/config"
)

// FromConfig builds the quote source selected by cfg.Quote.Kind.
func FromConfig(cfg *config.Config, log *slog.Logger) (Source, error) {
	switch cfg.Quote.Kind {
	case "", "http":
		return NewHTTPSource(cfg.Quote.BaseURL, log), nil
	case "alpaca":
		return NewAlpacaSource(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL, cfg.Quote.Feed, log), nil
	default:
		return nil, fmt.Errorf("unknown quote kind %q", cfg.Quote.Kind)
	}
}
