package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/askdb/askdb/internal/database"
	"github.com/askdb/askdb/internal/nl2sql"
	"github.com/askdb/askdb/internal/session"
)

type askRequest struct {
	Question string `json:"question"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type askResponse struct {
	SQL      string      `json:"sql"`
	Provider nl2sql.Kind `json:"provider"`
	Model    string      `json:"model"`
	Columns  []string    `json:"columns"`
	Rows     [][]any     `json:"rows"`
	RowCount int         `json:"row_count"`
	Stats    askStats    `json:"stats"`
}

type askStats struct {
	ExecutionSeconds   float64 `json:"execution_seconds"`
	TranslationSeconds float64 `json:"translation_seconds"`
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	sess, ctx, ok := lookupSession(deps, w, r)
	if !ok {
		return
	}
	if deps.AskLimiter != nil && !deps.AskLimiter.Allow() {
		writeError(ctx, w, http.StatusTooManyRequests, "RATE_LIMITED", "too many questions, slow down", true, nil)
		return
	}

	var request askRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(ctx, w, http.StatusBadRequest, "INVALID_JSON", "invalid ask request body", false, map[string]any{"details": err.Error()})
		return
	}
	kind := nl2sql.KindCloud
	if strings.TrimSpace(request.Provider) != "" {
		parsed, err := nl2sql.ParseKind(request.Provider)
		if err != nil {
			writeServiceError(ctx, w, err)
			return
		}
		kind = parsed
	}

	answer, err := deps.Service.Ask(ctx, sess, session.AskRequest{
		Question: strings.TrimSpace(request.Question),
		Provider: kind,
		Model:    strings.TrimSpace(request.Model),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeAnswer(ctx, w, answer)
}

// writeAnswer renders an accepted and executed answer, or the 422 envelope
// for a rejected one.
func writeAnswer(ctx context.Context, w http.ResponseWriter, answer session.Answer) {
	outcome := answer.Outcome
	if outcome.State == nl2sql.StateRejected {
		writeError(ctx, w, http.StatusUnprocessableEntity, "SQL_REJECTED", outcome.Verdict.Reason, false, map[string]any{
			"sql":      outcome.SQL,
			"provider": outcome.Provider,
			"model":    outcome.Model,
		})
		return
	}

	columns := answer.Result.Columns
	if columns == nil {
		columns = []string{}
	}
	rows := answer.Result.Rows
	if rows == nil {
		rows = [][]any{}
	}
	writeJSON(w, http.StatusOK, askResponse{
		SQL:      outcome.SQL,
		Provider: outcome.Provider,
		Model:    outcome.Model,
		Columns:  columns,
		Rows:     rows,
		RowCount: answer.Result.RowCount(),
		Stats: askStats{
			ExecutionSeconds:   answer.Result.Elapsed.Seconds(),
			TranslationSeconds: outcome.Elapsed.Seconds(),
		},
	})
}

func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		unavailable *nl2sql.ProviderUnavailable
		providerErr *nl2sql.ProviderError
		execErr     *session.ExecutionError
	)
	switch {
	case errors.Is(err, session.ErrQuestionRequired):
		writeError(ctx, w, http.StatusBadRequest, "QUESTION_REQUIRED", err.Error(), false, nil)
	case errors.Is(err, session.ErrSchemaRequired):
		writeError(ctx, w, http.StatusConflict, "SCHEMA_REQUIRED", err.Error(), false, nil)
	case errors.Is(err, session.ErrHistoryEntryNotFound):
		writeError(ctx, w, http.StatusNotFound, "HISTORY_ENTRY_NOT_FOUND", err.Error(), false, nil)
	case errors.Is(err, nl2sql.ErrUnknownProvider):
		writeError(ctx, w, http.StatusBadRequest, "UNKNOWN_PROVIDER", err.Error(), false, nil)
	case errors.Is(err, database.ErrDatabaseNotAllowed):
		writeError(ctx, w, http.StatusForbidden, "DATABASE_NOT_ALLOWED", err.Error(), false, nil)
	case errors.As(err, &unavailable):
		writeError(ctx, w, http.StatusServiceUnavailable, "PROVIDER_UNAVAILABLE", unavailable.Error(), true, map[string]any{
			"provider": unavailable.Provider,
			"endpoint": unavailable.Endpoint,
			"reason":   unavailable.Reason,
		})
	case errors.As(err, &providerErr):
		writeError(ctx, w, http.StatusBadGateway, "PROVIDER_ERROR", providerErr.Error(), providerErr.StatusCode == http.StatusTooManyRequests || providerErr.StatusCode >= 500, map[string]any{
			"provider":    providerErr.Provider,
			"status_code": providerErr.StatusCode,
			"body":        providerErr.Body,
		})
	case errors.As(err, &execErr):
		writeError(ctx, w, http.StatusBadRequest, "QUERY_EXECUTION_FAILED", "query execution failed", false, map[string]any{
			"sql":     execErr.SQL,
			"details": execErr.Cause.Error(),
		})
	case errors.Is(err, context.DeadlineExceeded):
		writeError(ctx, w, http.StatusGatewayTimeout, "TIMEOUT", err.Error(), true, nil)
	default:
		writeError(ctx, w, http.StatusInternalServerError, "INTERNAL", err.Error(), true, nil)
	}
}
