package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"

	"tin/internal/domain"
)

// ParquetStore archives decision records as Parquet files on disk.
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a new ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// DecisionRow is the Parquet schema for a decision record.
type DecisionRow struct {
	ID        int64  `parquet:"id"`
	Ticker    string `parquet:"ticker"`
	Current   int64  `parquet:"current"`
	Target    int64  `parquet:"target"`
	Action    string `parquet:"action"`
	Quantity  int64  `parquet:"quantity"`
	OrderID   string `parquet:"order_id"`
	Broker    string `parquet:"broker"`
	DryRun    bool   `parquet:"dry_run"`
	CreatedAt int64  `parquet:"created_at,timestamp(millisecond)"` // Unix ms
}

func toRow(r domain.DecisionRecord) DecisionRow {
	return DecisionRow{
		ID:        r.ID,
		Ticker:    r.Ticker,
		Current:   r.Current,
		Target:    r.Target,
		Action:    string(r.Decision.Action),
		Quantity:  r.Decision.Quantity,
		OrderID:   r.OrderID,
		Broker:    r.Broker,
		DryRun:    r.DryRun,
		CreatedAt: r.CreatedAt.UnixMilli(),
	}
}

func fromRow(r DecisionRow) domain.DecisionRecord {
	return domain.DecisionRecord{
		ID:        r.ID,
		Ticker:    r.Ticker,
		Current:   r.Current,
		Target:    r.Target,
		Decision:  domain.Decision{Action: domain.Action(r.Action), Quantity: r.Quantity},
		OrderID:   r.OrderID,
		Broker:    r.Broker,
		DryRun:    r.DryRun,
		CreatedAt: time.UnixMilli(r.CreatedAt).UTC(),
	}
}

// ---------------------------------------------------------------------------
// Writing and reading
// ---------------------------------------------------------------------------

// WriteDecisions archives records into one file per UTC day at:
//
//	<DataDir>/decisions/<YYYY-MM-DD>.parquet
//
// Records already archived under the same ID are replaced, so exporting the
// same journal twice is idempotent. It returns the files written.
func (s *ParquetStore) WriteDecisions(records []domain.DecisionRecord) ([]string, error) {
	if len(records) == 0 {
		return nil, nil
	}

	byDay := make(map[string][]DecisionRow)
	for _, r := range records {
		day := r.CreatedAt.UTC().Format("2006-01-02")
		byDay[day] = append(byDay[day], toRow(r))
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	written := make([]string, 0, len(days))
	for _, day := range days {
		path := s.decisionPath(day)
		existing, err := readParquetFile[DecisionRow](path)
		if err != nil && !os.IsNotExist(err) {
			return written, fmt.Errorf("reading %s: %w", path, err)
		}
		if err := writeParquetFile(path, mergeDecisionRows(existing, byDay[day])); err != nil {
			return written, fmt.Errorf("writing %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}

// ReadDecisions returns the records archived for the given UTC day
// (YYYY-MM-DD), oldest first.
func (s *ParquetStore) ReadDecisions(day string) ([]domain.DecisionRecord, error) {
	rows, err := readParquetFile[DecisionRow](s.decisionPath(day))
	if err != nil {
		return nil, err
	}
	out := make([]domain.DecisionRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromRow(r))
	}
	return out, nil
}

// decisionPath returns the filesystem path for a day's decision file.
func (s *ParquetStore) decisionPath(day string) string {
	return filepath.Join(s.DataDir, "decisions", day+".parquet")
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return parquet.ReadFile[T](path)
}

// mergeDecisionRows deduplicates rows by ID, preferring incoming rows.
// Results are sorted by creation time.
func mergeDecisionRows(existing, incoming []DecisionRow) []DecisionRow {
	seen := make(map[int64]DecisionRow, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.ID] = r
	}
	for _, r := range incoming {
		seen[r.ID] = r
	}

	merged := make([]DecisionRow, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].CreatedAt != merged[j].CreatedAt {
			return merged[i].CreatedAt < merged[j].CreatedAt
		}
		return merged[i].ID < merged[j].ID
	})
	return merged
}
