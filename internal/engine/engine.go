// Package engine turns a price signal and the current holding into a single
// order decision and carries it out through a broker.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"tin/internal/broker"
	"tin/internal/domain"
	"tin/internal/quote"
	"tin/internal/store"
)

// Result is the outcome of one decision cycle.
type Result struct {
	Ticker   string
	Current  int64
	Target   int64
	Decision domain.Decision
	// Order is the order as recorded by the broker, or in dry-run mode the
	// order that would have been submitted. Nil for no action.
	Order  *domain.Order
	DryRun bool
}

// MarshalJSON renders the result as {"buyOrder": …}, {"sellOrder": …} or
// {"noAction": {}}, with "dryRun": true added when nothing was submitted
// because of dry-run mode.
func (r Result) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 2)
	switch r.Decision.Action {
	case domain.ActionBuy:
		out["buyOrder"] = r.Order
	case domain.ActionSell:
		out["sellOrder"] = r.Order
	default:
		out["noAction"] = struct{}{}
	}
	if r.DryRun {
		out["dryRun"] = true
	}
	return json.Marshal(out)
}

// Option configures an Engine.
type Option func(*Engine)

// WithJournal records every completed cycle in s.
func WithJournal(s store.DecisionStore) Option {
	return func(e *Engine) { e.journal = s }
}

// WithDryRun decides without submitting orders.
func WithDryRun(dryRun bool) Option {
	return func(e *Engine) { e.dryRun = dryRun }
}

// WithLogger sets the engine's logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// Engine runs decision cycles against a quote source and a broker.
type Engine struct {
	broker  broker.Broker
	source  quote.Source
	journal store.DecisionStore
	dryRun  bool
	log     *slog.Logger
}

// NewEngine creates a new Engine wired with the given dependencies.
func NewEngine(b broker.Broker, src quote.Source, opts ...Option) *Engine {
	e := &Engine{
		broker: b,
		source: src,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With("component", "engine")
	return e
}

// Decide looks up the current holding and the target quantity for ticker
// concurrently and reconciles them once both are known. It submits nothing.
func (e *Engine) Decide(ctx context.Context, ticker string) (Result, error) {
	if err := domain.ValidateTicker(ticker); err != nil {
		return Result{}, err
	}

	var (
		wg                sync.WaitGroup
		current, target   int64
		holdErr, quoteErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		current, holdErr = e.currentQuantity(ctx, ticker)
	}()
	go func() {
		defer wg.Done()
		target, quoteErr = quote.DeriveTarget(ctx, e.source, ticker)
	}()
	wg.Wait()

	if quoteErr != nil {
		return Result{}, fmt.Errorf("deriving target for %s: %w", ticker, quoteErr)
	}
	if holdErr != nil {
		return Result{}, holdErr
	}
	return e.reconcile(ticker, current, target), nil
}

// DecideWithHolding derives the target for ticker and reconciles it against
// a caller-supplied holding. It submits nothing.
func (e *Engine) DecideWithHolding(ctx context.Context, ticker string, current int64) (Result, error) {
	if current < 0 {
		return Result{}, fmt.Errorf("current quantity must not be negative, got %d", current)
	}
	target, err := quote.DeriveTarget(ctx, e.source, ticker)
	if err != nil {
		return Result{}, fmt.Errorf("deriving target for %s: %w", ticker, err)
	}
	return e.reconcile(ticker, current, target), nil
}

// Run decides for ticker and submits the resulting buy or sell order. In
// dry-run mode the order is built but not submitted. Nothing is submitted
// if either lookup fails.
func (e *Engine) Run(ctx context.Context, ticker string) (Result, error) {
	res, err := e.Decide(ctx, ticker)
	if err != nil {
		return Result{}, err
	}
	res.DryRun = e.dryRun

	order := domain.NewOrder(ticker, res.Decision)
	switch {
	case order == nil:
		e.log.Info("no action", "ticker", ticker, "current", res.Current, "target", res.Target)
	case e.dryRun:
		res.Order = order
		e.log.Info("dry run, order not submitted", "ticker", ticker,
			"side", order.Side, "quantity", order.Quantity)
	default:
		submitted, err := e.broker.SubmitOrder(ctx, order)
		if err != nil {
			return Result{}, fmt.Errorf("submitting %s order for %s via %s: %w",
				order.Side, ticker, e.broker.Name(), err)
		}
		res.Order = submitted
	}

	e.record(ctx, res)
	return res, nil
}

func (e *Engine) currentQuantity(ctx context.Context, ticker string) (int64, error) {
	positions, err := e.broker.GetPositions(ctx)
	if err != nil {
		return 0, fmt.Errorf("getting positions from %s: %w", e.broker.Name(), err)
	}
	qty := domain.QuantityOf(positions, ticker)
	if qty < 0 {
		return 0, fmt.Errorf("%s reported negative quantity %d for %s", e.broker.Name(), qty, ticker)
	}
	return qty, nil
}

func (e *Engine) reconcile(ticker string, current, target int64) Result {
	e.log.Debug("reconciling", "ticker", ticker, "current", current, "target", target)
	return Result{
		Ticker:   ticker,
		Current:  current,
		Target:   target,
		Decision: Reconcile(current, target),
	}
}

// record appends res to the journal. Journal failures never fail a cycle.
func (e *Engine) record(ctx context.Context, res Result) {
	if e.journal == nil {
		return
	}
	rec := &domain.DecisionRecord{
		Ticker:   res.Ticker,
		Current:  res.Current,
		Target:   res.Target,
		Decision: res.Decision,
		Broker:   e.broker.Name(),
		DryRun:   res.DryRun,
	}
	if res.Order != nil {
		rec.OrderID = res.Order.ID
	}
	if err := e.journal.SaveDecision(ctx, rec); err != nil {
		e.log.Warn("journaling decision failed", "ticker", res.Ticker, "error", err)
	}
}
