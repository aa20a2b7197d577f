package api

import (
	"net/http"
	"strconv"

	"github.com/askdb/askdb/internal/export"
	"github.com/askdb/askdb/internal/mysqldb"
	"github.com/askdb/askdb/internal/session"
)

type connectRequest struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
}

type questionRequest struct {
	Question string `json:"question"`
}

type exportRequest struct {
	SQL    string `json:"sql"`
	Format string `json:"format"`
}

func handleConnect(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireAssistant(deps, w, r) {
		return
	}
	var req connectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid connect request body", false, map[string]any{"details": err.Error()})
		return
	}

	result, err := deps.Assistant.Connect(r.Context(), session.ConnectRequest{
		Host:     req.Host,
		Port:     req.Port,
		User:     req.User,
		Password: req.Password,
		Database: req.Database,
	})
	if err != nil {
		extra := map[string]any{"database": req.Database}
		if number, ok := mysqldb.ServerErrorNumber(err); ok {
			extra["mysql_error"] = number
		}
		writeServiceError(r.Context(), w, err, extra)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func handleDisconnect(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireAssistant(deps, w, r) {
		return
	}
	sessionID := r.PathValue("id")
	if err := deps.Assistant.Disconnect(r.Context(), sessionID); err != nil {
		writeServiceError(r.Context(), w, err, map[string]any{"session_id": sessionID})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": sessionID, "closed": true})
}

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireAssistant(deps, w, r) {
		return
	}
	sessionID := r.PathValue("id")
	view, err := deps.Assistant.Schema(r.Context(), sessionID)
	if err != nil {
		writeServiceError(r.Context(), w, err, map[string]any{"session_id": sessionID})
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func handleTranslate(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireAssistant(deps, w, r) {
		return
	}
	sessionID := r.PathValue("id")
	var req questionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid translate request body", false, map[string]any{"details": err.Error()})
		return
	}

	result, err := deps.Assistant.Translate(r.Context(), sessionID, req.Question)
	if err != nil {
		writeServiceError(r.Context(), w, err, map[string]any{"session_id": sessionID})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sql":           result.SQL,
		"provider":      result.Provider,
		"model":         result.Model,
		"generation_ms": result.Duration.Milliseconds(),
	})
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireAssistant(deps, w, r) {
		return
	}
	sessionID := r.PathValue("id")
	var req questionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ask request body", false, map[string]any{"details": err.Error()})
		return
	}

	result, err := deps.Assistant.Ask(r.Context(), sessionID, req.Question)
	if err != nil {
		extra := map[string]any{"session_id": sessionID}
		if result.SQL != "" {
			extra["sql"] = result.SQL
		}
		writeServiceError(r.Context(), w, err, extra)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func handleExport(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireAssistant(deps, w, r) {
		return
	}
	sessionID := r.PathValue("id")
	var req exportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid export request body", false, map[string]any{"details": err.Error()})
		return
	}

	result, err := deps.Assistant.Export(r.Context(), sessionID, req.SQL, export.Format(req.Format))
	if err != nil {
		writeServiceError(r.Context(), w, err, map[string]any{"session_id": sessionID, "sql": req.SQL})
		return
	}

	w.Header().Set("Content-Type", result.Format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+result.FileName+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.Header().Set("X-Row-Count", strconv.Itoa(result.RowCount))
	if result.ObjectKey != "" {
		w.Header().Set("X-Export-Key", result.ObjectKey)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func requireAssistant(deps Dependencies, w http.ResponseWriter, r *http.Request) bool {
	if deps.Assistant == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASSISTANT_NOT_CONFIGURED", "assistant service is not configured", false, nil)
		return false
	}
	return true
}
