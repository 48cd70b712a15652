package schema

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/askdb/askdb/internal/database"
	"github.com/askdb/askdb/internal/observability"
)

type connector interface {
	Dialect() database.Dialect
	DB(ctx context.Context, name string) (*sql.DB, error)
}

// Introspector reads table and column metadata through the dialect's catalog
// queries. A table whose description fails is skipped and logged.
type Introspector struct {
	Pool   connector
	Logger *slog.Logger
}

func NewIntrospector(pool connector, logger *slog.Logger) *Introspector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Introspector{Pool: pool, Logger: logger}
}

func (i *Introspector) Load(ctx context.Context, name string) (snapshot Snapshot, err error) {
	start := time.Now()
	defer func() {
		observability.IncrementSchemaLoad(err)
	}()

	db, err := i.Pool.DB(ctx, name)
	if err != nil {
		return Snapshot{}, &LoadError{Database: name, Cause: err}
	}
	dialect := i.Pool.Dialect()

	tables, err := listTables(ctx, db, dialect.ListTables)
	if err != nil {
		return Snapshot{}, &LoadError{Database: name, Cause: err}
	}

	described := make(map[string]Table, len(tables))
	for _, table := range tables {
		query, args := dialect.DescribeTable(table)
		columns, err := describeTable(ctx, db, query, args)
		if err != nil {
			if ctx.Err() != nil {
				return Snapshot{}, &LoadError{Database: name, Cause: ctx.Err()}
			}
			i.Logger.WarnContext(ctx, "schema table skipped",
				slog.String("database", name),
				slog.String("table", table),
				slog.String("error", err.Error()),
			)
			continue
		}
		described[table] = columns
	}

	snapshot, err = NewSnapshot(described)
	if err != nil {
		return Snapshot{}, &LoadError{Database: name, Cause: err}
	}
	i.Logger.DebugContext(ctx, "schema loaded",
		slog.String("database", name),
		slog.Int("tables", snapshot.Len()),
		slog.String("duration", time.Since(start).String()),
	)
	return snapshot, nil
}

func listTables(ctx context.Context, db *sql.DB, query string) ([]string, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tables := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return tables, nil
}

// describeTable keeps the first two result columns as name and type; catalog
// queries such as MySQL DESCRIBE return extra metadata after them.
func describeTable(ctx context.Context, db *sql.DB, query string, args []any) (Table, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return Table{}, fmt.Errorf("describe table: %w", err)
	}
	defer func() { _ = rows.Close() }()

	fields, err := rows.Columns()
	if err != nil {
		return Table{}, fmt.Errorf("describe columns: %w", err)
	}
	if len(fields) < 2 {
		return Table{}, fmt.Errorf("describe returned %d columns, want at least 2", len(fields))
	}

	table := Table{Columns: make([]string, 0), Types: map[string]string{}}
	for rows.Next() {
		values := make([]sql.RawBytes, len(fields))
		targets := make([]any, len(fields))
		for idx := range values {
			targets[idx] = &values[idx]
		}
		if err := rows.Scan(targets...); err != nil {
			return Table{}, fmt.Errorf("scan column: %w", err)
		}
		column := string(values[0])
		if _, seen := table.Types[column]; !seen {
			table.Columns = append(table.Columns, column)
		}
		table.Types[column] = string(values[1])
	}
	if err := rows.Err(); err != nil {
		return Table{}, fmt.Errorf("iterate columns: %w", err)
	}
	return table, nil
}
