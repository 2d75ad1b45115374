package quote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tin/internal/domain"
)

// DefaultBaseURL is the stock quote service queried when none is configured.
const DefaultBaseURL = "http://stock.octoblu.com/"

// Compile-time interface check.
var _ Source = (*HTTPSource)(nil)

// HTTPSource reads price signals from a JSON quote service exposing
// GET /stocks/{ticker}.
type HTTPSource struct {
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

// NewHTTPSource creates an HTTPSource rooted at baseURL. An empty baseURL
// selects DefaultBaseURL.
func NewHTTPSource(baseURL string, log *slog.Logger) *HTTPSource {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if log == nil {
		log = slog.Default()
	}
	return &HTTPSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log.With("component", "quote-http"),
	}
}

// Name returns "http".
func (s *HTTPSource) Name() string { return "http" }

// stockResponse is the body of GET /stocks/{ticker}. Pointers distinguish
// absent fields from zero prices.
type stockResponse struct {
	PreviousClose      *price `json:"previousClose"`
	LastTradePriceOnly *price `json:"lastTradePriceOnly"`
}

// price accepts a JSON number or a string holding one.
type price float64

func (p *price) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(strings.TrimSpace(s))
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", b)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("not a finite number: %s", b)
	}
	*p = price(v)
	return nil
}

// Signal performs GET /stocks/{ticker} and decodes the two price fields.
func (s *HTTPSource) Signal(ctx context.Context, ticker string) (domain.PriceSignal, error) {
	u := s.baseURL + "/stocks/" + url.PathEscape(ticker)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.PriceSignal{}, &TransportError{Source: s.Name(), Ticker: ticker, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return domain.PriceSignal{}, &TransportError{Source: s.Name(), Ticker: ticker, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return domain.PriceSignal{}, &UnexpectedStatusError{Source: s.Name(), Ticker: ticker, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.PriceSignal{}, &TransportError{Source: s.Name(), Ticker: ticker, Err: err}
	}

	var sr stockResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return domain.PriceSignal{}, &MalformedResponseError{Source: s.Name(), Ticker: ticker, Reason: "decoding body", Err: err}
	}
	if sr.PreviousClose == nil {
		return domain.PriceSignal{}, &MalformedResponseError{Source: s.Name(), Ticker: ticker, Reason: "missing previousClose"}
	}
	if sr.LastTradePriceOnly == nil {
		return domain.PriceSignal{}, &MalformedResponseError{Source: s.Name(), Ticker: ticker, Reason: "missing lastTradePriceOnly"}
	}

	sig := domain.PriceSignal{
		PreviousClose:      float64(*sr.PreviousClose),
		LastTradePriceOnly: float64(*sr.LastTradePriceOnly),
	}
	s.log.Debug("quote received", "ticker", ticker,
		"previousClose", sig.PreviousClose,
		"lastTradePriceOnly", sig.LastTradePriceOnly,
	)
	return sig, nil
}
