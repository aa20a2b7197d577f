package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/askdb/askdb/internal/audit"
)

type Repository struct {
	db *sql.DB
}

var _ audit.Recorder = (*Repository)(nil)

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping audit db: %w", err)
	}
	return nil
}

func (r *Repository) RecordAsk(ctx context.Context, rec audit.AskRecord) error {
	query := `
INSERT INTO query_audit (session_id, trace_id, database_name, question, generated_sql, provider, model, outcome, error_message, row_count, column_count, generation_ms, execution_ms)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.db.ExecContext(ctx, query,
		rec.SessionID,
		rec.TraceID,
		rec.Database,
		rec.Question,
		rec.GeneratedSQL,
		rec.Provider,
		rec.Model,
		rec.Outcome,
		rec.ErrorMessage,
		rec.RowCount,
		rec.ColumnCount,
		rec.Generation.Milliseconds(),
		rec.Execution.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert query audit: %w", err)
	}
	return nil
}

func (r *Repository) RecordExport(ctx context.Context, rec audit.ExportRecord) error {
	query := `
INSERT INTO export_audit (session_id, trace_id, format, executed_sql, object_key, row_count, size_bytes)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, query,
		rec.SessionID,
		rec.TraceID,
		rec.Format,
		rec.ExecutedSQL,
		rec.ObjectKey,
		rec.RowCount,
		rec.SizeBytes,
	)
	if err != nil {
		return fmt.Errorf("insert export audit: %w", err)
	}
	return nil
}
