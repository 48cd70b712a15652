package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/askdb/askdb/internal/database"
	"github.com/askdb/askdb/internal/observability"
)

type connector interface {
	Dialect() database.Dialect
	DB(ctx context.Context, name string) (*sql.DB, error)
}

// SQLExecutor runs queries against the pooled database handles. Where the
// dialect supports it the query runs inside a read-only transaction.
type SQLExecutor struct {
	Pool    connector
	Timeout time.Duration
}

func NewSQLExecutor(pool connector, timeout time.Duration) *SQLExecutor {
	return &SQLExecutor{Pool: pool, Timeout: timeout}
}

func (e *SQLExecutor) Run(ctx context.Context, sqlText string, name string) (result Result, err error) {
	sqlText = stripTrailingSemicolons(sqlText)
	if sqlText == "" {
		return Result{}, fmt.Errorf("sql is required")
	}
	start := time.Now()
	defer func() {
		observability.ObserveQueryExecution(result.RowCount(), err, time.Since(start))
	}()

	db, err := e.Pool.DB(ctx, name)
	if err != nil {
		return Result{}, err
	}
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	if !e.Pool.Dialect().ReadOnlyTx {
		rows, err := db.QueryContext(ctx, sqlText)
		if err != nil {
			return Result{}, fmt.Errorf("execute query: %w", err)
		}
		return collect(rows, start)
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return Result{}, fmt.Errorf("begin read-only transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, sqlText)
	if err != nil {
		return Result{}, fmt.Errorf("execute query: %w", err)
	}
	return collect(rows, start)
}

func collect(rows *sql.Rows, start time.Time) (Result, error) {
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return Result{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("iterate rows: %w", err)
	}

	return Result{
		Columns: columns,
		Rows:    resultRows,
		Elapsed: time.Since(start),
	}, nil
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
