// Package audit records asked questions and exports. Records are write-only
// and never consulted to answer a question.
package audit

import (
	"context"
	"time"
)

const (
	OutcomeSuccess         = "success"
	OutcomeGenerationError = "generation_error"
	OutcomeExecutionError  = "execution_error"
)

type AskRecord struct {
	SessionID    string
	TraceID      string
	Database     string
	Question     string
	GeneratedSQL string
	Provider     string
	Model        string
	Outcome      string
	ErrorMessage string
	RowCount     int
	ColumnCount  int
	Generation   time.Duration
	Execution    time.Duration
}

type ExportRecord struct {
	SessionID   string
	TraceID     string
	Format      string
	ExecutedSQL string
	ObjectKey   string
	RowCount    int
	SizeBytes   int64
}

type Recorder interface {
	RecordAsk(ctx context.Context, rec AskRecord) error
	RecordExport(ctx context.Context, rec ExportRecord) error
}

// Noop discards every record. It is used when auditing is disabled.
type Noop struct{}

func (Noop) RecordAsk(context.Context, AskRecord) error       { return nil }
func (Noop) RecordExport(context.Context, ExportRecord) error { return nil }
