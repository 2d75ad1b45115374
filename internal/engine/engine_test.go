package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"tin/internal/broker"
	"tin/internal/domain"
	"tin/internal/quote"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type stubSource struct {
	sig  domain.PriceSignal
	err  error
	wait func()
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Signal(_ context.Context, _ string) (domain.PriceSignal, error) {
	if s.wait != nil {
		s.wait()
	}
	return s.sig, s.err
}

// recordingBroker wraps a simulator and counts calls.
type recordingBroker struct {
	*broker.SimulatorBroker
	mu          sync.Mutex
	submitted   []domain.Order
	positionErr error
	submitErr   error
	wait        func()
}

func newRecordingBroker(positions ...domain.Position) *recordingBroker {
	return &recordingBroker{SimulatorBroker: broker.NewSimulatorBroker(positions...)}
}

func (b *recordingBroker) GetPositions(ctx context.Context) ([]domain.Position, error) {
	if b.wait != nil {
		b.wait()
	}
	if b.positionErr != nil {
		return nil, b.positionErr
	}
	return b.SimulatorBroker.GetPositions(ctx)
}

func (b *recordingBroker) SubmitOrder(ctx context.Context, o *domain.Order) (*domain.Order, error) {
	b.mu.Lock()
	b.submitted = append(b.submitted, *o)
	b.mu.Unlock()
	if b.submitErr != nil {
		return nil, b.submitErr
	}
	return b.SimulatorBroker.SubmitOrder(ctx, o)
}

type memJournal struct {
	records []domain.DecisionRecord
	err     error
}

func (j *memJournal) SaveDecision(_ context.Context, rec *domain.DecisionRecord) error {
	if j.err != nil {
		return j.err
	}
	rec.ID = int64(len(j.records) + 1)
	j.records = append(j.records, *rec)
	return nil
}

func (j *memJournal) ListDecisions(_ context.Context, _ string, _ int) ([]domain.DecisionRecord, error) {
	return j.records, nil
}

func signal(prevClose, last float64) *stubSource {
	return &stubSource{sig: domain.PriceSignal{PreviousClose: prevClose, LastTradePriceOnly: last}}
}

// ---------------------------------------------------------------------------
// Reconcile
// ---------------------------------------------------------------------------

func TestReconcile(t *testing.T) {
	tests := []struct {
		name            string
		current, target int64
		want            domain.Decision
	}{
		{"buy when flat", 0, 5, domain.Buy(5)},
		{"buy regardless of holdings", 100, 5, domain.Buy(5)},
		{"hold on zero target", 10, 0, domain.NoAction()},
		{"nothing to sell", 0, -3, domain.NoAction()},
		{"sell capped at holdings", 4, -10, domain.Sell(4)},
		{"sell signal magnitude", 10, -3, domain.Sell(3)},
		{"sell exactly holdings", 3, -3, domain.Sell(3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Reconcile(tt.current, tt.target); got != tt.want {
				t.Errorf("Reconcile(%d, %d) = %+v, want %+v", tt.current, tt.target, got, tt.want)
			}
		})
	}
}

func TestReconcileZeroTargetAlwaysNoAction(t *testing.T) {
	for _, current := range []int64{0, 1, 7, 1 << 40} {
		if got := Reconcile(current, 0); !got.IsNoAction() {
			t.Errorf("Reconcile(%d, 0) = %+v, want no action", current, got)
		}
	}
}

func TestReconcileIsPure(t *testing.T) {
	first := Reconcile(4, -10)
	for i := 0; i < 100; i++ {
		if got := Reconcile(4, -10); got != first {
			t.Fatalf("Reconcile(4, -10) call %d = %+v, want %+v", i, got, first)
		}
	}
}

// ---------------------------------------------------------------------------
// Engine
// ---------------------------------------------------------------------------

func TestRunBuy(t *testing.T) {
	b := newRecordingBroker()
	e := NewEngine(b, signal(10.0, 7.8))

	res, err := e.Run(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if res.Decision != domain.Buy(2) {
		t.Errorf("Decision = %+v, want buy 2", res.Decision)
	}
	if res.Order == nil || res.Order.ID == "" || res.Order.Status != domain.OrderStatusFilled {
		t.Errorf("Order = %+v, want a filled order", res.Order)
	}
	if len(b.submitted) != 1 || b.submitted[0].Side != domain.OrderSideBuy || b.submitted[0].Quantity != 2 {
		t.Errorf("submitted = %+v, want one buy of 2", b.submitted)
	}
}

func TestRunSellCapped(t *testing.T) {
	b := newRecordingBroker(domain.Position{Ticker: "AAPL", Quantity: 4})
	e := NewEngine(b, signal(90, 100.5))

	res, err := e.Run(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if res.Current != 4 || res.Target != -10 {
		t.Errorf("current/target = %d/%d, want 4/-10", res.Current, res.Target)
	}
	if res.Decision != domain.Sell(4) {
		t.Errorf("Decision = %+v, want sell 4", res.Decision)
	}
	positions, _ := b.SimulatorBroker.GetPositions(context.Background())
	if len(positions) != 0 {
		t.Errorf("positions after sell = %+v, want none", positions)
	}
}

func TestRunNoAction(t *testing.T) {
	tests := []struct {
		name      string
		positions []domain.Position
		src       *stubSource
	}{
		{"zero target", []domain.Position{{Ticker: "AAPL", Quantity: 10}}, signal(10, 9.5)},
		{"flat with sell signal", []domain.Position{{Ticker: "MSFT", Quantity: 10}}, signal(7, 10)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newRecordingBroker(tt.positions...)
			res, err := NewEngine(b, tt.src).Run(context.Background(), "AAPL")
			if err != nil {
				t.Fatalf("Run returned error: %v", err)
			}
			if !res.Decision.IsNoAction() || res.Order != nil {
				t.Errorf("result = %+v, want no action without order", res)
			}
			if len(b.submitted) != 0 {
				t.Errorf("submitted = %+v, want none", b.submitted)
			}
		})
	}
}

func TestRunQuoteErrorSubmitsNothing(t *testing.T) {
	quoteErr := &quote.UnexpectedStatusError{Source: "stub", Ticker: "AAPL", StatusCode: 503}
	b := newRecordingBroker(domain.Position{Ticker: "AAPL", Quantity: 10})
	j := &memJournal{}

	_, err := NewEngine(b, &stubSource{err: quoteErr}, WithJournal(j)).Run(context.Background(), "AAPL")

	var statusErr *quote.UnexpectedStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != 503 {
		t.Fatalf("error = %v, want *UnexpectedStatusError 503", err)
	}
	if len(b.submitted) != 0 {
		t.Errorf("submitted = %+v, want none", b.submitted)
	}
	if len(j.records) != 0 {
		t.Errorf("journal = %+v, want empty", j.records)
	}
}

func TestRunPositionsErrorSubmitsNothing(t *testing.T) {
	posErr := errors.New("unauthorized")
	b := newRecordingBroker()
	b.positionErr = posErr

	_, err := NewEngine(b, signal(10, 2)).Run(context.Background(), "AAPL")
	if !errors.Is(err, posErr) {
		t.Fatalf("error = %v, want wrapping %v", err, posErr)
	}
	if len(b.submitted) != 0 {
		t.Errorf("submitted = %+v, want none", b.submitted)
	}
}

func TestRunSubmitError(t *testing.T) {
	submitErr := errors.New("market closed")
	b := newRecordingBroker()
	b.submitErr = submitErr

	_, err := NewEngine(b, signal(10, 2)).Run(context.Background(), "AAPL")
	if !errors.Is(err, submitErr) {
		t.Errorf("error = %v, want wrapping %v", err, submitErr)
	}
}

func TestRunEmptyTicker(t *testing.T) {
	b := newRecordingBroker()
	_, err := NewEngine(b, signal(10, 2)).Run(context.Background(), " ")
	if !errors.Is(err, domain.ErrEmptyTicker) {
		t.Errorf("error = %v, want ErrEmptyTicker", err)
	}
}

func TestRunDryRun(t *testing.T) {
	b := newRecordingBroker()
	j := &memJournal{}
	res, err := NewEngine(b, signal(10, 2), WithDryRun(true), WithJournal(j)).Run(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(b.submitted) != 0 {
		t.Errorf("submitted = %+v, want none in dry run", b.submitted)
	}
	if res.Order == nil || res.Order.ID != "" || res.Order.Quantity != 8 {
		t.Errorf("Order = %+v, want unsubmitted buy of 8", res.Order)
	}
	if len(j.records) != 1 || !j.records[0].DryRun {
		t.Errorf("journal = %+v, want one dry-run record", j.records)
	}
}

func TestRunJournal(t *testing.T) {
	b := newRecordingBroker(domain.Position{Ticker: "AAPL", Quantity: 10})
	j := &memJournal{}
	res, err := NewEngine(b, signal(7, 10), WithJournal(j)).Run(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(j.records) != 1 {
		t.Fatalf("journal has %d records, want 1", len(j.records))
	}
	rec := j.records[0]
	if rec.Ticker != "AAPL" || rec.Current != 10 || rec.Target != -3 || rec.Decision != domain.Sell(3) {
		t.Errorf("record = %+v, want AAPL 10/-3 sell 3", rec)
	}
	if rec.OrderID != res.Order.ID || rec.Broker != "simulator" {
		t.Errorf("record order/broker = %q/%q, want %q/simulator", rec.OrderID, rec.Broker, res.Order.ID)
	}
}

func TestRunJournalFailureIsLogged(t *testing.T) {
	var logs bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logs, nil))
	b := newRecordingBroker()
	j := &memJournal{err: errors.New("disk full")}

	if _, err := NewEngine(b, signal(10, 2), WithJournal(j), WithLogger(log)).Run(context.Background(), "AAPL"); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !bytes.Contains(logs.Bytes(), []byte("disk full")) {
		t.Errorf("logs = %q, want journal failure", logs.String())
	}
}

func TestDecideLooksUpConcurrently(t *testing.T) {
	quoteStarted := make(chan struct{})
	holdStarted := make(chan struct{})
	await := func(ch chan struct{}) {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Error("lookups did not overlap")
		}
	}

	src := signal(10, 7.8)
	src.wait = func() { close(quoteStarted); await(holdStarted) }
	b := newRecordingBroker()
	b.wait = func() { close(holdStarted); await(quoteStarted) }

	res, err := NewEngine(b, src).Decide(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Decide returned error: %v", err)
	}
	if res.Decision != domain.Buy(2) {
		t.Errorf("Decision = %+v, want buy 2", res.Decision)
	}
	if len(b.submitted) != 0 {
		t.Errorf("Decide submitted %+v, want nothing", b.submitted)
	}
}

func TestDecideWithHolding(t *testing.T) {
	b := newRecordingBroker()
	b.positionErr = errors.New("should not be called")
	e := NewEngine(b, signal(7.8, 10.0))

	res, err := e.DecideWithHolding(context.Background(), "AAPL", 1)
	if err != nil {
		t.Fatalf("DecideWithHolding returned error: %v", err)
	}
	if res.Decision != domain.Sell(1) {
		t.Errorf("Decision = %+v, want sell 1", res.Decision)
	}

	if _, err := e.DecideWithHolding(context.Background(), "AAPL", -1); err == nil {
		t.Error("DecideWithHolding accepted a negative holding")
	}
}

func TestResultJSON(t *testing.T) {
	tests := []struct {
		name string
		res  Result
		key  string
	}{
		{"buy", Result{Decision: domain.Buy(2), Order: &domain.Order{ID: "o1", Ticker: "AAPL", Side: domain.OrderSideBuy, Quantity: 2}}, "buyOrder"},
		{"sell", Result{Decision: domain.Sell(1), Order: &domain.Order{ID: "o2", Ticker: "AAPL", Side: domain.OrderSideSell, Quantity: 1}}, "sellOrder"},
		{"none", Result{Decision: domain.NoAction()}, "noAction"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.res)
			if err != nil {
				t.Fatalf("Marshal returned error: %v", err)
			}
			var got map[string]json.RawMessage
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("Unmarshal returned error: %v", err)
			}
			if _, ok := got[tt.key]; !ok || len(got) != 1 {
				t.Errorf("JSON = %s, want single key %q", data, tt.key)
			}
		})
	}
}

func TestResultJSONDryRun(t *testing.T) {
	res := Result{
		Decision: domain.Buy(2),
		Order:    &domain.Order{Ticker: "AAPL", Side: domain.OrderSideBuy, Quantity: 2},
		DryRun:   true,
	}
	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	var got struct {
		BuyOrder *domain.Order `json:"buyOrder"`
		DryRun   bool          `json:"dryRun"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if !got.DryRun || got.BuyOrder == nil || got.BuyOrder.Quantity != 2 {
		t.Errorf("JSON = %s, want buyOrder with dryRun true", data)
	}
}
