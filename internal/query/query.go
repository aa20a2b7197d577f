// Package query runs generated SQL verbatim against a session's database.
package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/askdb/askdb/internal/observability"
)

// ErrExecution wraps any driver failure while running a statement.
var ErrExecution = errors.New("query execution failed")

// Querier is the subset of *sql.DB and *sql.Conn the executor needs.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Result is a tabular result set. Rows is never nil so an empty result still
// serializes as an empty list alongside its column names.
type Result struct {
	Columns  []string      `json:"columns"`
	Rows     [][]any       `json:"rows"`
	Duration time.Duration `json:"-"`
}

func (r Result) RowCount() int    { return len(r.Rows) }
func (r Result) ColumnCount() int { return len(r.Columns) }

// Records returns each row as a column-name keyed mapping.
func (r Result) Records() []map[string]any {
	records := make([]map[string]any, 0, len(r.Rows))
	for _, row := range r.Rows {
		record := make(map[string]any, len(r.Columns))
		for i, column := range r.Columns {
			if i < len(row) {
				record[column] = row[i]
			}
		}
		records = append(records, record)
	}
	return records
}

type Executor struct {
	DB Querier
}

func NewExecutor(db Querier) *Executor {
	return &Executor{DB: db}
}

// Execute runs sqlText as given. No validation, transaction or timeout is
// applied beyond what ctx carries.
func (e *Executor) Execute(ctx context.Context, sqlText string) (Result, error) {
	start := time.Now()
	result, err := e.execute(ctx, sqlText)
	result.Duration = time.Since(start)
	observability.ObserveQueryExecution(len(result.Rows), result.Duration, err)
	return result, err
}

func (e *Executor) execute(ctx context.Context, sqlText string) (Result, error) {
	if e == nil || e.DB == nil {
		return Result{}, fmt.Errorf("%w: database handle is required", ErrExecution)
	}
	if strings.TrimSpace(sqlText) == "" {
		return Result{}, fmt.Errorf("%w: sql is required", ErrExecution)
	}

	rows, err := e.DB.QueryContext(ctx, sqlText)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrExecution, err)
	}
	columns, values, err := ScanAll(rows)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrExecution, err)
	}
	return Result{Columns: columns, Rows: values}, nil
}

// ScanAll drains and closes rows, returning column names and normalized
// values in result order.
func ScanAll(rows *sql.Rows) ([]string, [][]any, error) {
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, nil, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, NormalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate rows: %w", err)
	}
	return columns, resultRows, nil
}

// NormalizeValues converts driver byte slices to strings. MySQL returns most
// text and decimal columns as []byte when scanning into any.
func NormalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}
