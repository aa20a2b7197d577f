// Package assist wires sessions, SQL generation, execution and export into
// the operations exposed over HTTP.
package assist

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/askdb/askdb/internal/audit"
	"github.com/askdb/askdb/internal/export"
	"github.com/askdb/askdb/internal/nl2sql"
	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/schema"
	"github.com/askdb/askdb/internal/session"
)

type Service struct {
	Sessions  *session.Manager
	Generator *nl2sql.Generator
	// Archiver is optional. When set, every export is also stored.
	Archiver *export.Archiver
	Audit    audit.Recorder
	Logger   *slog.Logger
}

type ConnectResult struct {
	SessionID       string    `json:"session_id"`
	Database        string    `json:"database"`
	Tables          []string  `json:"tables"`
	TableCount      int       `json:"table_count"`
	ForeignKeyCount int       `json:"foreign_key_count"`
	CreatedAt       time.Time `json:"created_at"`
}

type SchemaView struct {
	SessionID string           `json:"session_id"`
	Snapshot  *schema.Snapshot `json:"schema"`
	Text      string           `json:"schema_text"`
}

type AskResult struct {
	SQL          string   `json:"sql"`
	Provider     string   `json:"provider"`
	Model        string   `json:"model"`
	Columns      []string `json:"columns"`
	Rows         [][]any  `json:"rows"`
	RowCount     int      `json:"row_count"`
	ColumnCount  int      `json:"column_count"`
	GenerationMS int64    `json:"generation_ms"`
	ExecutionMS  int64    `json:"execution_ms"`
}

type ExportResult struct {
	Format    export.Format `json:"format"`
	FileName  string        `json:"file_name"`
	Data      []byte        `json:"-"`
	RowCount  int           `json:"row_count"`
	ObjectKey string        `json:"object_key,omitempty"`
}

func (s *Service) Connect(ctx context.Context, req session.ConnectRequest) (ConnectResult, error) {
	sess, err := s.Sessions.Connect(ctx, req)
	if err != nil {
		s.logger().WarnContext(ctx, "connect failed",
			slog.String("trace_id", observability.TraceIDFromContext(ctx)),
			slog.String("database", req.Database),
			slog.Any("error", err),
		)
		return ConnectResult{}, err
	}
	names := sess.Snapshot.TableNames()
	return ConnectResult{
		SessionID:       sess.ID,
		Database:        sess.Database,
		Tables:          names,
		TableCount:      len(names),
		ForeignKeyCount: sess.Snapshot.ForeignKeyCount(),
		CreatedAt:       sess.CreatedAt,
	}, nil
}

func (s *Service) Schema(_ context.Context, sessionID string) (SchemaView, error) {
	sess, err := s.Sessions.Get(sessionID)
	if err != nil {
		return SchemaView{}, err
	}
	return SchemaView{
		SessionID: sess.ID,
		Snapshot:  sess.Snapshot,
		Text:      schema.FormatSchema(sess.Snapshot),
	}, nil
}

// Translate generates SQL without running it.
func (s *Service) Translate(ctx context.Context, sessionID, question string) (nl2sql.Result, error) {
	sess, err := s.acquire(sessionID)
	if err != nil {
		return nl2sql.Result{}, err
	}
	defer sess.Release()

	return s.Generator.Generate(ctx, question, sess.Snapshot)
}

// Ask generates SQL and runs it. When execution fails the returned result
// still carries the generated SQL alongside the error.
func (s *Service) Ask(ctx context.Context, sessionID, question string) (AskResult, error) {
	sess, err := s.acquire(sessionID)
	if err != nil {
		return AskResult{}, err
	}
	defer sess.Release()

	ctx = observability.ContextWithSessionID(ctx, sess.ID)
	record := audit.AskRecord{
		SessionID: sess.ID,
		TraceID:   observability.TraceIDFromContext(ctx),
		Database:  sess.Database,
		Question:  question,
	}

	generated, err := s.Generator.Generate(ctx, question, sess.Snapshot)
	if err != nil {
		if !errors.Is(err, nl2sql.ErrQuestionRequired) {
			record.Outcome = audit.OutcomeGenerationError
			record.ErrorMessage = err.Error()
			s.recordAsk(ctx, record)
		}
		return AskResult{}, err
	}
	record.GeneratedSQL = generated.SQL
	record.Provider = generated.Provider
	record.Model = generated.Model
	record.Generation = generated.Duration

	out := AskResult{
		SQL:          generated.SQL,
		Provider:     generated.Provider,
		Model:        generated.Model,
		GenerationMS: generated.Duration.Milliseconds(),
	}

	result, err := sess.Executor().Execute(ctx, generated.SQL)
	out.ExecutionMS = result.Duration.Milliseconds()
	record.Execution = result.Duration
	if err != nil {
		record.Outcome = audit.OutcomeExecutionError
		record.ErrorMessage = err.Error()
		s.recordAsk(ctx, record)
		s.logger().WarnContext(ctx, "generated sql failed",
			slog.String("trace_id", record.TraceID),
			slog.String("session_id", sess.ID),
			slog.String("database", sess.Database),
			slog.String("provider", generated.Provider),
			slog.Any("error", err),
		)
		return out, err
	}

	out.Columns = result.Columns
	out.Rows = result.Rows
	out.RowCount = result.RowCount()
	out.ColumnCount = result.ColumnCount()

	record.Outcome = audit.OutcomeSuccess
	record.RowCount = out.RowCount
	record.ColumnCount = out.ColumnCount
	s.recordAsk(ctx, record)

	s.logger().InfoContext(ctx, "question answered",
		slog.String("trace_id", record.TraceID),
		slog.String("session_id", sess.ID),
		slog.String("database", sess.Database),
		slog.String("provider", generated.Provider),
		slog.String("model", generated.Model),
		slog.Int64("generation_ms", out.GenerationMS),
		slog.Int64("execution_ms", out.ExecutionMS),
		slog.Int("row_count", out.RowCount),
	)
	return out, nil
}

// Export re-runs sqlText and renders the full result in format.
func (s *Service) Export(ctx context.Context, sessionID, sqlText string, format export.Format) (ExportResult, error) {
	format, err := export.ParseFormat(string(format))
	if err != nil {
		return ExportResult{}, err
	}

	sess, err := s.acquire(sessionID)
	if err != nil {
		return ExportResult{}, err
	}
	defer sess.Release()

	result, err := sess.Executor().Execute(ctx, sqlText)
	if err != nil {
		return ExportResult{}, err
	}

	var buf bytes.Buffer
	if err := export.Encode(&buf, format, result); err != nil {
		return ExportResult{}, err
	}
	out := ExportResult{
		Format:   format,
		FileName: format.FileName(),
		Data:     buf.Bytes(),
		RowCount: result.RowCount(),
	}

	traceID := observability.TraceIDFromContext(ctx)
	if s.Archiver != nil {
		info, err := s.Archiver.Archive(ctx, sess.ID, format, out.Data)
		if err != nil {
			s.logger().WarnContext(ctx, "export archive failed",
				slog.String("trace_id", traceID),
				slog.String("session_id", sess.ID),
				slog.Any("error", err),
			)
		} else {
			out.ObjectKey = info.Key
		}
	}

	if s.Audit != nil {
		err := s.Audit.RecordExport(ctx, audit.ExportRecord{
			SessionID:   sess.ID,
			TraceID:     traceID,
			Format:      string(format),
			ExecutedSQL: sqlText,
			ObjectKey:   out.ObjectKey,
			RowCount:    out.RowCount,
			SizeBytes:   int64(len(out.Data)),
		})
		if err != nil {
			s.logger().WarnContext(ctx, "record export audit failed", slog.String("trace_id", traceID), slog.Any("error", err))
		}
	}
	return out, nil
}

func (s *Service) Disconnect(_ context.Context, sessionID string) error {
	return s.Sessions.Close(sessionID)
}

func (s *Service) acquire(sessionID string) (*session.Session, error) {
	sess, err := s.Sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.Acquire(); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Service) recordAsk(ctx context.Context, record audit.AskRecord) {
	if s.Audit == nil {
		return
	}
	if err := s.Audit.RecordAsk(ctx, record); err != nil {
		s.logger().WarnContext(ctx, "record ask audit failed",
			slog.String("trace_id", record.TraceID),
			slog.String("session_id", record.SessionID),
			slog.Any("error", err),
		)
	}
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.New(slog.DiscardHandler)
}
