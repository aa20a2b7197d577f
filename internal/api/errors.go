package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/askdb/askdb/internal/export"
	"github.com/askdb/askdb/internal/mysqldb"
	"github.com/askdb/askdb/internal/nl2sql"
	"github.com/askdb/askdb/internal/query"
	"github.com/askdb/askdb/internal/schema"
	"github.com/askdb/askdb/internal/session"
	"github.com/askdb/askdb/internal/storage"
)

type errorMapping struct {
	target    error
	status    int
	code      string
	retryable bool
}

// Order matters: ErrQuestionRequired wraps ErrGeneration.
var errorMappings = []errorMapping{
	{session.ErrNotFound, http.StatusNotFound, "SESSION_NOT_FOUND", false},
	{session.ErrBusy, http.StatusConflict, "SESSION_BUSY", true},
	{session.ErrLimitReached, http.StatusTooManyRequests, "SESSION_LIMIT", true},
	{mysqldb.ErrConnection, http.StatusBadGateway, "CONNECTION_FAILED", false},
	{schema.ErrIntrospection, http.StatusInternalServerError, "INTROSPECTION_FAILED", false},
	{nl2sql.ErrQuestionRequired, http.StatusBadRequest, "QUESTION_REQUIRED", false},
	{nl2sql.ErrGeneration, http.StatusBadGateway, "GENERATION_FAILED", false},
	{query.ErrExecution, http.StatusBadRequest, "QUERY_EXECUTION_FAILED", false},
	{export.ErrUnsupportedFormat, http.StatusBadRequest, "UNSUPPORTED_FORMAT", false},
	{storage.ErrObjectNotFound, http.StatusNotFound, "EXPORT_NOT_FOUND", false},
}

// writeServiceError maps a service error onto the error envelope. Unknown
// errors become INTERNAL_ERROR.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error, extra map[string]any) {
	for _, mapping := range errorMappings {
		if errors.Is(err, mapping.target) {
			writeError(ctx, w, mapping.status, mapping.code, err.Error(), mapping.retryable, extra)
			return
		}
	}
	writeError(ctx, w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error(), false, extra)
}
