package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"
)

// DatabasePlaceholder is replaced in DSN templates with the selected database name.
const DatabasePlaceholder = "{database}"

var ErrUnknownDialect = errors.New("unknown database dialect")

// Dialect carries the driver name and catalog queries for one database family.
// ListTables returns one table name per row. DescribeTable returns rows whose
// first two columns are the column name and its raw type.
type Dialect struct {
	Name          string
	Driver        string
	ListTables    string
	DescribeTable func(table string) (string, []any)
	// ReadOnlyTx reports whether the driver honours sql.TxOptions{ReadOnly: true}.
	ReadOnlyTx bool

	dsn func(template, database string) (string, error)
}

// DSN renders the connection string for database from template.
func (d Dialect) DSN(template, database string) (string, error) {
	if strings.TrimSpace(template) == "" {
		return "", fmt.Errorf("%s dsn template is required", d.Name)
	}
	if d.dsn != nil {
		return d.dsn(template, database)
	}
	return strings.ReplaceAll(template, DatabasePlaceholder, database), nil
}

var dialects = map[string]Dialect{
	"mysql": {
		Name:       "mysql",
		Driver:     "mysql",
		ListTables: "SHOW TABLES",
		DescribeTable: func(table string) (string, []any) {
			return "DESCRIBE " + quoteBacktick(table), nil
		},
		ReadOnlyTx: true,
		dsn:        mysqlDSN,
	},
	"postgres": {
		Name:   "postgres",
		Driver: "pgx",
		ListTables: `SELECT table_name FROM information_schema.tables
WHERE table_schema = current_schema() AND table_type IN ('BASE TABLE', 'VIEW')
ORDER BY table_name`,
		DescribeTable: func(table string) (string, []any) {
			return `SELECT column_name, data_type FROM information_schema.columns
WHERE table_schema = current_schema() AND table_name = $1
ORDER BY ordinal_position`, []any{table}
		},
		ReadOnlyTx: true,
	},
	"duckdb": {
		Name:   "duckdb",
		Driver: "duckdb",
		ListTables: `SELECT table_name FROM information_schema.tables
WHERE table_schema = current_schema()
ORDER BY table_name`,
		DescribeTable: func(table string) (string, []any) {
			return `SELECT column_name, data_type FROM information_schema.columns
WHERE table_schema = current_schema() AND table_name = ?
ORDER BY ordinal_position`, []any{table}
		},
	},
	"sqlserver": {
		Name:   "sqlserver",
		Driver: "sqlserver",
		ListTables: `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
WHERE TABLE_SCHEMA = SCHEMA_NAME()
ORDER BY TABLE_NAME`,
		DescribeTable: func(table string) (string, []any) {
			return `SELECT COLUMN_NAME, DATA_TYPE FROM INFORMATION_SCHEMA.COLUMNS
WHERE TABLE_SCHEMA = SCHEMA_NAME() AND TABLE_NAME = @p1
ORDER BY ORDINAL_POSITION`, []any{table}
		},
	},
	"sqlite": {
		Name:   "sqlite",
		Driver: "sqlite",
		ListTables: `SELECT name FROM sqlite_master
WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
ORDER BY name`,
		DescribeTable: func(table string) (string, []any) {
			return "SELECT name, type FROM pragma_table_info(?)", []any{table}
		},
	},
}

func LookupDialect(name string) (Dialect, error) {
	dialect, ok := dialects[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Dialect{}, fmt.Errorf("%w: %q", ErrUnknownDialect, name)
	}
	return dialect, nil
}

// mysqlDSN lets the template omit the database path entirely.
func mysqlDSN(template, database string) (string, error) {
	raw := strings.ReplaceAll(template, DatabasePlaceholder, database)
	cfg, err := mysql.ParseDSN(raw)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	if cfg.DBName == "" {
		cfg.DBName = database
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

func quoteBacktick(value string) string {
	return "`" + strings.ReplaceAll(value, "`", "``") + "`"
}
