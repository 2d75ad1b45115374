// Package store defines storage interfaces for the decision journal and
// provides SQLite and Parquet implementations.
package store

import (
	"context"

	"tin/internal/domain"
)

// DecisionStore persists and retrieves completed decision cycles.
type DecisionStore interface {
	// SaveDecision inserts a record and sets its ID.
	SaveDecision(ctx context.Context, rec *domain.DecisionRecord) error

	// ListDecisions returns the most recent records, newest first. An empty
	// ticker matches every ticker; limit <= 0 means no limit.
	ListDecisions(ctx context.Context, ticker string, limit int) ([]domain.DecisionRecord, error)
}
