package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/askdb/askdb/internal/history"
	"github.com/askdb/askdb/internal/nl2sql"
	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/query"
	"github.com/askdb/askdb/internal/schema"
)

var (
	ErrSchemaRequired       = errors.New("select a database with a readable schema before asking a question")
	ErrHistoryEntryNotFound = errors.New("history entry not found")
	ErrQuestionRequired     = errors.New("question is required")
)

// ExecutionError reports a gated query that the database failed to run.
type ExecutionError struct {
	SQL   string
	Cause error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execute query: %v", e.Cause)
}

func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

type Translator interface {
	Translate(ctx context.Context, req nl2sql.Request) (nl2sql.Outcome, error)
}

type AskRequest struct {
	Question string
	Provider nl2sql.Kind
	Model    string
}

// Answer carries the translation outcome and, when the SQL was accepted and
// executed, its result and the history entry recorded for it.
type Answer struct {
	Outcome nl2sql.Outcome
	Result  query.Result
	Entry   history.Entry
}

// Service drives a session through translate, gate, execute and record.
type Service struct {
	Translator Translator
	Executor   query.Executor
	Loader     schema.Loader
	Logger     *slog.Logger
	Now        func() time.Time
}

func NewService(translator Translator, executor query.Executor, loader schema.Loader, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Translator: translator,
		Executor:   executor,
		Loader:     loader,
		Logger:     logger,
		Now:        time.Now,
	}
}

func (svc *Service) SelectDatabase(ctx context.Context, sess *Session, name string) (schema.Snapshot, error) {
	snapshot, err := sess.SelectDatabase(ctx, svc.Loader, name)
	if err != nil {
		svc.Logger.WarnContext(ctx, "schema load failed", append(observability.LogAttrs(ctx),
			slog.String("database", name),
			slog.String("error", err.Error()),
		)...)
		return snapshot, err
	}
	return snapshot, nil
}

// Ask translates the question against the session's schema and runs the SQL
// only when the safety gate accepts it. A rejection is returned as an Answer
// with a rejected outcome and a nil error.
func (svc *Service) Ask(ctx context.Context, sess *Session, req AskRequest) (Answer, error) {
	if req.Question == "" {
		return Answer{}, ErrQuestionRequired
	}
	databaseName, snapshot := sess.Schema()
	if databaseName == "" || snapshot.IsEmpty() {
		return Answer{}, ErrSchemaRequired
	}

	outcome, err := svc.Translator.Translate(ctx, nl2sql.Request{
		NaturalLanguage: req.Question,
		DatabaseName:    databaseName,
		Schema:          snapshot,
		Provider:        req.Provider,
		Model:           req.Model,
	})
	if err != nil {
		return Answer{Outcome: outcome}, err
	}
	if outcome.State != nl2sql.StateAccepted {
		return Answer{Outcome: outcome}, nil
	}

	result, err := svc.execute(ctx, outcome.SQL, databaseName)
	if err != nil {
		return Answer{Outcome: outcome}, err
	}
	entry := history.Entry{
		NaturalLanguage: req.Question,
		SQL:             outcome.SQL,
		DatabaseName:    databaseName,
		Provider:        string(outcome.Provider),
		Model:           outcome.Model,
		ElapsedSeconds:  result.Elapsed.Seconds(),
		RowCount:        result.RowCount(),
		CreatedAt:       svc.Now().UTC(),
	}
	sess.History().Append(entry)
	return Answer{Outcome: outcome, Result: result, Entry: entry}, nil
}

// Replay re-runs a history entry. The stored SQL goes through the safety gate
// again before it is executed.
func (svc *Service) Replay(ctx context.Context, sess *Session, index int) (Answer, error) {
	previous, ok := sess.History().Get(index)
	if !ok {
		return Answer{}, fmt.Errorf("%w: index %d", ErrHistoryEntryNotFound, index)
	}

	verdict := nl2sql.Validate(previous.SQL)
	outcome := nl2sql.Outcome{
		State:    nl2sql.StateAccepted,
		SQL:      previous.SQL,
		Verdict:  verdict,
		Provider: nl2sql.Kind(previous.Provider),
		Model:    previous.Model,
	}
	if !verdict.Accepted {
		outcome.State = nl2sql.StateRejected
		return Answer{Outcome: outcome}, nil
	}

	result, err := svc.execute(ctx, previous.SQL, previous.DatabaseName)
	if err != nil {
		return Answer{Outcome: outcome}, err
	}
	entry := previous
	entry.ElapsedSeconds = result.Elapsed.Seconds()
	entry.RowCount = result.RowCount()
	entry.CreatedAt = svc.Now().UTC()
	sess.History().Append(entry)
	return Answer{Outcome: outcome, Result: result, Entry: entry}, nil
}

// RunSQL gates caller supplied SQL and executes it when accepted.
func (svc *Service) RunSQL(ctx context.Context, databaseName, sql string) (query.Result, nl2sql.Verdict, error) {
	verdict := nl2sql.Validate(sql)
	if !verdict.Accepted {
		return query.Result{}, verdict, nil
	}
	result, err := svc.execute(ctx, sql, databaseName)
	return result, verdict, err
}

func (svc *Service) execute(ctx context.Context, sql, databaseName string) (query.Result, error) {
	result, err := svc.Executor.Run(ctx, sql, databaseName)
	if err != nil {
		svc.Logger.WarnContext(ctx, "query execution failed", append(observability.LogAttrs(ctx),
			slog.String("database", databaseName),
			slog.String("error", err.Error()),
		)...)
		return query.Result{}, &ExecutionError{SQL: sql, Cause: err}
	}
	svc.Logger.InfoContext(ctx, "query executed", append(observability.LogAttrs(ctx),
		slog.String("database", databaseName),
		slog.Int("rows", result.RowCount()),
		slog.String("duration", result.Elapsed.String()),
	)...)
	return result, nil
}
