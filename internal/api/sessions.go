package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/askdb/askdb/internal/database"
	"github.com/askdb/askdb/internal/history"
	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/schema"
	"github.com/askdb/askdb/internal/session"
)

type selectDatabaseRequest struct {
	Database string `json:"database"`
}

type schemaResponse struct {
	SessionID string          `json:"session_id"`
	Database  string          `json:"database"`
	Tables    schema.Snapshot `json:"tables"`
	Stats     schema.Stats    `json:"stats"`
}

type historyResponse struct {
	SessionID string          `json:"session_id"`
	Entries   []history.Entry `json:"entries"`
	Stats     history.Stats   `json:"stats"`
}

func handleCreateSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SESSIONS_NOT_CONFIGURED", "session registry is not configured", false, nil)
		return
	}
	sess := deps.Sessions.Create()
	writeJSON(w, http.StatusCreated, map[string]any{
		"session_id": sess.ID,
		"created_at": sess.CreatedAt.Format(time.RFC3339Nano),
	})
}

func handleDeleteSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SESSIONS_NOT_CONFIGURED", "session registry is not configured", false, nil)
		return
	}
	id := r.PathValue("id")
	if !deps.Sessions.Remove(id) {
		writeError(r.Context(), w, http.StatusNotFound, "SESSION_NOT_FOUND", "session was not found", false, map[string]any{"session_id": id})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func handleSelectDatabase(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	sess, ctx, ok := lookupSession(deps, w, r)
	if !ok {
		return
	}

	var request selectDatabaseRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(ctx, w, http.StatusBadRequest, "INVALID_JSON", "invalid database selection body", false, map[string]any{"details": err.Error()})
		return
	}
	name := strings.TrimSpace(request.Database)
	if name == "" {
		writeError(ctx, w, http.StatusBadRequest, "DATABASE_REQUIRED", "database is required", false, nil)
		return
	}

	snapshot, err := deps.Service.SelectDatabase(ctx, sess, name)
	if err != nil {
		if errors.Is(err, database.ErrDatabaseNotAllowed) {
			writeError(ctx, w, http.StatusForbidden, "DATABASE_NOT_ALLOWED", err.Error(), false, map[string]any{"database": name})
			return
		}
		writeError(ctx, w, http.StatusBadGateway, "SCHEMA_LOAD_FAILED", err.Error(), true, map[string]any{
			"database": name,
			"degraded": true,
		})
		return
	}

	writeJSON(w, http.StatusOK, schemaResponse{
		SessionID: sess.ID,
		Database:  name,
		Tables:    snapshot,
		Stats:     snapshot.Stats(),
	})
}

func handleGetSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	sess, _, ok := lookupSession(deps, w, r)
	if !ok {
		return
	}
	name, snapshot := sess.Schema()
	writeJSON(w, http.StatusOK, schemaResponse{
		SessionID: sess.ID,
		Database:  name,
		Tables:    snapshot,
		Stats:     snapshot.Stats(),
	})
}

func handleGetHistory(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	sess, _, ok := lookupSession(deps, w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{
		SessionID: sess.ID,
		Entries:   sess.History().Entries(),
		Stats:     sess.History().Stats(),
	})
}

func handleReplay(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	sess, ctx, ok := lookupSession(deps, w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(ctx, w, http.StatusBadRequest, "INVALID_INDEX", "history index must be an integer", false, map[string]any{"index": r.PathValue("index")})
		return
	}

	answer, err := deps.Service.Replay(ctx, sess, index)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeAnswer(ctx, w, answer)
}

// lookupSession resolves the {id} path value and tags the request context
// with it for logging.
func lookupSession(deps Dependencies, w http.ResponseWriter, r *http.Request) (*session.Session, context.Context, bool) {
	if deps.Sessions == nil || deps.Service == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SESSIONS_NOT_CONFIGURED", "session registry is not configured", false, nil)
		return nil, nil, false
	}
	id := r.PathValue("id")
	sess, ok := deps.Sessions.Get(id)
	if !ok {
		writeError(r.Context(), w, http.StatusNotFound, "SESSION_NOT_FOUND", "session was not found", false, map[string]any{"session_id": id})
		return nil, nil, false
	}
	return sess, observability.ContextWithSessionID(r.Context(), id), true
}
