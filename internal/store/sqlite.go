package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tin/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ DecisionStore = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS decisions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	ticker     TEXT    NOT NULL,
	current    INTEGER NOT NULL,
	target     INTEGER NOT NULL,
	action     TEXT    NOT NULL,
	quantity   INTEGER NOT NULL,
	order_id   TEXT    NOT NULL DEFAULT '',
	broker     TEXT    NOT NULL DEFAULT '',
	dry_run    INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS decisions_ticker_created ON decisions (ticker, created_at);
`

// SQLiteStore implements DecisionStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, creates the
// journal table if needed and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveDecision inserts rec and sets rec.ID. A zero CreatedAt is stamped with
// the current time.
func (s *SQLiteStore) SaveDecision(ctx context.Context, rec *domain.DecisionRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO decisions (ticker, current, target, action, quantity, order_id, broker, dry_run, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Ticker, rec.Current, rec.Target,
		string(rec.Decision.Action), rec.Decision.Quantity,
		rec.OrderID, rec.Broker, rec.DryRun, rec.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("inserting decision: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading decision id: %w", err)
	}
	rec.ID = id
	return nil
}

// ListDecisions returns the most recent decisions for ticker, newest first.
func (s *SQLiteStore) ListDecisions(ctx context.Context, ticker string, limit int) ([]domain.DecisionRecord, error) {
	query := `SELECT id, ticker, current, target, action, quantity, order_id, broker, dry_run, created_at FROM decisions`
	var args []any
	if ticker != "" {
		query += ` WHERE ticker = ?`
		args = append(args, ticker)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying decisions: %w", err)
	}
	defer rows.Close()

	var out []domain.DecisionRecord
	for rows.Next() {
		var (
			rec       domain.DecisionRecord
			action    string
			createdAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.Ticker, &rec.Current, &rec.Target,
			&action, &rec.Decision.Quantity, &rec.OrderID, &rec.Broker, &rec.DryRun, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning decision: %w", err)
		}
		rec.Decision.Action = domain.Action(action)
		rec.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}
