package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/askdb/askdb/internal/export"
)

type exportRequest struct {
	Database string `json:"database"`
	SQL      string `json:"sql"`
	Format   string `json:"format"`
	Upload   bool   `json:"upload"`
}

// handleExport gates and runs the SQL, then streams the encoded result or
// uploads it. Parquet goes to the object store whenever one is configured.
func handleExport(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Service == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "EXPORT_NOT_CONFIGURED", "query service is not configured", false, nil)
		return
	}

	var request exportRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid export request body", false, map[string]any{"details": err.Error()})
		return
	}
	name := strings.TrimSpace(request.Database)
	if name == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "DATABASE_REQUIRED", "database is required", false, nil)
		return
	}
	if strings.TrimSpace(request.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}
	format, err := export.ParseFormat(request.Format)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "UNSUPPORTED_FORMAT", err.Error(), false, nil)
		return
	}
	storeConfigured := deps.Exporter != nil && deps.Exporter.Store != nil
	if request.Upload && !storeConfigured {
		writeError(r.Context(), w, http.StatusNotImplemented, "OBJECT_STORE_NOT_CONFIGURED", "object store is not configured", false, nil)
		return
	}

	result, verdict, err := deps.Service.RunSQL(r.Context(), name, request.SQL)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	if !verdict.Accepted {
		writeError(r.Context(), w, http.StatusUnprocessableEntity, "SQL_REJECTED", verdict.Reason, false, map[string]any{"sql": request.SQL})
		return
	}

	if storeConfigured && (request.Upload || format == export.FormatParquet) {
		upload, err := deps.Exporter.Upload(r.Context(), name, format, result)
		if err != nil {
			writeError(r.Context(), w, http.StatusBadGateway, "EXPORT_UPLOAD_FAILED", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusCreated, upload)
		return
	}

	data, err := export.Encode(format, result)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "EXPORT_ENCODE_FAILED", err.Error(), false, nil)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+"-export."+format.Extension()))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("X-Row-Count", strconv.Itoa(result.RowCount()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
