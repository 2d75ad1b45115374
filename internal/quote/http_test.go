package quote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"tin/internal/domain"
)

func newQuoteServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/stocks/AAPL" {
			t.Errorf("path = %s, want /stocks/AAPL", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestHTTPSourceName(t *testing.T) {
	if got := NewHTTPSource("", nil).Name(); got != "http" {
		t.Errorf("HTTPSource.Name() = %q, want %q", got, "http")
	}
}

func TestHTTPSourceDefaultBaseURL(t *testing.T) {
	s := NewHTTPSource("", nil)
	if s.baseURL != "http://stock.octoblu.com" {
		t.Errorf("baseURL = %q, want %q", s.baseURL, "http://stock.octoblu.com")
	}
}

func TestDeriveTargetTruncates(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int64
	}{
		{"accumulate", `{"previousClose": 10.0, "lastTradePriceOnly": 7.8}`, 2},
		{"reduce", `{"previousClose": 7.8, "lastTradePriceOnly": 10.0}`, -2},
		{"hold", `{"previousClose": 10.0, "lastTradePriceOnly": 9.9}`, 0},
		{"numeric strings", `{"previousClose": "25.5", "lastTradePriceOnly": "20"}`, 5},
		{"extra fields", `{"symbol": "AAPL", "previousClose": 100, "lastTradePriceOnly": 103.2}`, -3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newQuoteServer(t, http.StatusOK, tt.body)
			got, err := DeriveTarget(context.Background(), NewHTTPSource(srv.URL, nil), "AAPL")
			if err != nil {
				t.Fatalf("DeriveTarget returned error: %v", err)
			}
			if got != tt.want {
				t.Errorf("DeriveTarget = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDeriveTargetTrailingSlashBase(t *testing.T) {
	srv, hits := newQuoteServer(t, http.StatusOK, `{"previousClose": 1, "lastTradePriceOnly": 1}`)
	if _, err := DeriveTarget(context.Background(), NewHTTPSource(srv.URL+"/", nil), "AAPL"); err != nil {
		t.Fatalf("DeriveTarget returned error: %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("server hits = %d, want 1", hits.Load())
	}
}

func TestDeriveTargetUnexpectedStatus(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusInternalServerError, http.StatusCreated} {
		srv, _ := newQuoteServer(t, status, `{"previousClose": 10, "lastTradePriceOnly": 5}`)
		_, err := DeriveTarget(context.Background(), NewHTTPSource(srv.URL, nil), "AAPL")

		var statusErr *UnexpectedStatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("status %d: error = %v, want *UnexpectedStatusError", status, err)
		}
		if statusErr.StatusCode != status {
			t.Errorf("StatusCode = %d, want %d", statusErr.StatusCode, status)
		}
	}
}

func TestDeriveTargetMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>oops</html>`},
		{"array", `[1, 2]`},
		{"missing previousClose", `{"lastTradePriceOnly": 7.8}`},
		{"missing lastTradePriceOnly", `{"previousClose": 10}`},
		{"null field", `{"previousClose": null, "lastTradePriceOnly": 7.8}`},
		{"non-numeric string", `{"previousClose": "abc", "lastTradePriceOnly": 7.8}`},
		{"boolean", `{"previousClose": true, "lastTradePriceOnly": 7.8}`},
		{"nan string", `{"previousClose": "NaN", "lastTradePriceOnly": 7.8}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newQuoteServer(t, http.StatusOK, tt.body)
			_, err := DeriveTarget(context.Background(), NewHTTPSource(srv.URL, nil), "AAPL")

			var malformed *MalformedResponseError
			if !errors.As(err, &malformed) {
				t.Errorf("error = %v, want *MalformedResponseError", err)
			}
		})
	}
}

func TestDeriveTargetTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := DeriveTarget(context.Background(), NewHTTPSource(url, nil), "AAPL")

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("error = %v, want *TransportError", err)
	}
	if transportErr.Ticker != "AAPL" {
		t.Errorf("Ticker = %q, want %q", transportErr.Ticker, "AAPL")
	}
}

func TestDeriveTargetCancelledContext(t *testing.T) {
	srv, _ := newQuoteServer(t, http.StatusOK, `{"previousClose": 10, "lastTradePriceOnly": 5}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := DeriveTarget(ctx, NewHTTPSource(srv.URL, nil), "AAPL")

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("error = %v, want *TransportError", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("errors.Is(err, context.Canceled) = false for %v", err)
	}
}

func TestDeriveTargetEmptyTicker(t *testing.T) {
	srv, hits := newQuoteServer(t, http.StatusOK, `{}`)
	_, err := DeriveTarget(context.Background(), NewHTTPSource(srv.URL, nil), "")
	if !errors.Is(err, domain.ErrEmptyTicker) {
		t.Errorf("error = %v, want ErrEmptyTicker", err)
	}
	if hits.Load() != 0 {
		t.Errorf("server hits = %d, want 0", hits.Load())
	}
}
