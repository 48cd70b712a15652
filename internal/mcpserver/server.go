// Package mcpserver exposes the ask pipeline as MCP tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/askdb/askdb/internal/database"
	"github.com/askdb/askdb/internal/nl2sql"
	"github.com/askdb/askdb/internal/schema"
	"github.com/askdb/askdb/internal/session"
)

type DatabaseLister interface {
	Databases() []string
}

type Dependencies struct {
	Databases DatabaseLister
	Loader    schema.Loader
	Service   *session.Service
	Logger    *slog.Logger
}

type errorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type schemaResult struct {
	Database string          `json:"database"`
	Tables   schema.Snapshot `json:"tables"`
	Stats    schema.Stats    `json:"stats"`
}

type askResult struct {
	SQL      string      `json:"sql"`
	Provider nl2sql.Kind `json:"provider"`
	Model    string      `json:"model"`
	Columns  []string    `json:"columns"`
	Rows     [][]any     `json:"rows"`
	RowCount int         `json:"row_count"`
}

// New builds an MCP server with the askdb tools registered.
func New(name, version string, deps Dependencies) *server.MCPServer {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := server.NewMCPServer(name, version, server.WithToolCapabilities(true))
	registerListDatabases(s, deps)
	registerGetSchema(s, deps)
	registerAskDatabase(s, deps)
	return s
}

// Handler serves s over stateless streamable HTTP. The caller's mux routes
// /mcp to it.
func Handler(s *server.MCPServer) http.Handler {
	return server.NewStreamableHTTPServer(s, server.WithStateLess(true))
}

func registerListDatabases(s *server.MCPServer, deps Dependencies) {
	tool := mcp.NewTool(
		"list_databases",
		mcp.WithDescription("Lists the databases that questions can be asked against."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
	)
	s.AddTool(tool, func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		databases := []string{}
		if deps.Databases != nil {
			databases = append(databases, deps.Databases.Databases()...)
		}
		return jsonResult(map[string]any{"databases": databases})
	})
}

func registerGetSchema(s *server.MCPServer, deps Dependencies) {
	tool := mcp.NewTool(
		"get_schema",
		mcp.WithDescription("Returns the tables, columns and column types of a database."),
		mcp.WithString(
			"database",
			mcp.Required(),
			mcp.Description("Database name as returned by list_databases"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
	)
	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := req.RequireString("database")
		if err != nil {
			return nil, err
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return errorResult("INVALID_PARAMETERS", "parameter 'database' cannot be empty", nil), nil
		}
		snapshot, err := deps.Loader.Load(ctx, name)
		if err != nil {
			deps.Logger.WarnContext(ctx, "mcp schema load failed", slog.String("database", name), slog.String("error", err.Error()))
			return errorResult(errorCode(err), err.Error(), nil), nil
		}
		return jsonResult(schemaResult{Database: name, Tables: snapshot, Stats: snapshot.Stats()})
	})
}

func registerAskDatabase(s *server.MCPServer, deps Dependencies) {
	tool := mcp.NewTool(
		"ask_database",
		mcp.WithDescription(
			"Translates a natural language question into a read-only SELECT, checks it and runs it. "+
				"Statements that are not plain SELECTs are refused and the reason is returned.",
		),
		mcp.WithString("database", mcp.Required(), mcp.Description("Database to query")),
		mcp.WithString("question", mcp.Required(), mcp.Description("Question in plain language")),
		mcp.WithString("provider", mcp.Description("cloud or local, defaults to cloud")),
		mcp.WithString("model", mcp.Description("Model name, defaults to the provider's first model")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)
	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := req.RequireString("database")
		if err != nil {
			return nil, err
		}
		question, err := req.RequireString("question")
		if err != nil {
			return nil, err
		}
		kind := nl2sql.KindCloud
		if raw := optionalString(req, "provider"); strings.TrimSpace(raw) != "" {
			kind, err = nl2sql.ParseKind(raw)
			if err != nil {
				return errorResult("UNKNOWN_PROVIDER", err.Error(), nil), nil
			}
		}

		sess := session.New(uuid.NewString(), time.Now().UTC())
		if _, err := deps.Service.SelectDatabase(ctx, sess, strings.TrimSpace(name)); err != nil {
			return errorResult(errorCode(err), err.Error(), nil), nil
		}
		answer, err := deps.Service.Ask(ctx, sess, session.AskRequest{
			Question: strings.TrimSpace(question),
			Provider: kind,
			Model:    strings.TrimSpace(optionalString(req, "model")),
		})
		if err != nil {
			return errorResult(errorCode(err), err.Error(), nil), nil
		}
		if answer.Outcome.State == nl2sql.StateRejected {
			return errorResult("SQL_REJECTED", answer.Outcome.Verdict.Reason, map[string]any{"sql": answer.Outcome.SQL}), nil
		}

		columns := answer.Result.Columns
		if columns == nil {
			columns = []string{}
		}
		rows := answer.Result.Rows
		if rows == nil {
			rows = [][]any{}
		}
		return jsonResult(askResult{
			SQL:      answer.Outcome.SQL,
			Provider: answer.Outcome.Provider,
			Model:    answer.Outcome.Model,
			Columns:  columns,
			Rows:     rows,
			RowCount: answer.Result.RowCount(),
		})
	})
}

func errorCode(err error) string {
	var (
		unavailable *nl2sql.ProviderUnavailable
		providerErr *nl2sql.ProviderError
		execErr     *session.ExecutionError
		loadErr     *schema.LoadError
	)
	switch {
	case errors.Is(err, database.ErrDatabaseNotAllowed):
		return "DATABASE_NOT_ALLOWED"
	case errors.Is(err, session.ErrSchemaRequired):
		return "SCHEMA_REQUIRED"
	case errors.Is(err, session.ErrQuestionRequired):
		return "QUESTION_REQUIRED"
	case errors.Is(err, nl2sql.ErrUnknownProvider):
		return "UNKNOWN_PROVIDER"
	case errors.As(err, &unavailable):
		return "PROVIDER_UNAVAILABLE"
	case errors.As(err, &providerErr):
		return "PROVIDER_ERROR"
	case errors.As(err, &execErr):
		return "QUERY_EXECUTION_FAILED"
	case errors.As(err, &loadErr):
		return "SCHEMA_LOAD_FAILED"
	default:
		return "INTERNAL"
	}
}

func optionalString(req mcp.CallToolRequest, key string) string {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return ""
	}
	value, _ := args[key].(string)
	return value
}

func errorResult(code, message string, details any) *mcp.CallToolResult {
	payload, _ := json.Marshal(errorResponse{Error: true, Code: code, Message: message, Details: details})
	result := mcp.NewToolResultText(string(payload))
	result.IsError = true
	return result
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
