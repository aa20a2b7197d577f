package api

import (
	"io"
	"net/http"
	"path"
	"strconv"
)

func handleGetArchivedExport(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Exports == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ARCHIVE_NOT_CONFIGURED", "export archiving is not enabled", false, nil)
		return
	}
	key := r.PathValue("key")
	reader, info, err := deps.Exports.Open(r.Context(), key)
	if err != nil {
		writeServiceError(r.Context(), w, err, map[string]any{"key": key})
		return
	}
	defer func() { _ = reader.Close() }()

	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+path.Base(key)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, reader)
}

func handleDeleteArchivedExport(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Exports == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ARCHIVE_NOT_CONFIGURED", "export archiving is not enabled", false, nil)
		return
	}
	key := r.PathValue("key")
	if err := deps.Exports.Remove(r.Context(), key); err != nil {
		writeServiceError(r.Context(), w, err, map[string]any{"key": key})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "deleted": true})
}
