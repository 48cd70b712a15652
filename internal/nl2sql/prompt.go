package nl2sql

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/askdb/askdb/internal/schema"
)

// PromptBuilder renders the system prompt for one SQL dialect. Build output is
// a pure function of the snapshot and database name.
type PromptBuilder struct {
	DialectName string
	RowLimit    string
}

func NewPromptBuilder(dialect string) PromptBuilder {
	switch strings.ToLower(dialect) {
	case "postgres":
		return PromptBuilder{DialectName: "PostgreSQL", RowLimit: "LIMIT 100"}
	case "duckdb":
		return PromptBuilder{DialectName: "DuckDB", RowLimit: "LIMIT 100"}
	case "sqlserver":
		return PromptBuilder{DialectName: "SQL Server (T-SQL)", RowLimit: "TOP 100"}
	case "sqlite":
		return PromptBuilder{DialectName: "SQLite", RowLimit: "LIMIT 100"}
	default:
		return PromptBuilder{DialectName: "MySQL", RowLimit: "LIMIT 100"}
	}
}

func (b PromptBuilder) BuildSystemPrompt(snapshot schema.Snapshot, database string) string {
	schemaJSON, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		schemaJSON = []byte("{}")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are an expert %s assistant.\n", b.DialectName)
	fmt.Fprintf(&sb, "The database `%s` has this schema:\n", database)
	sb.Write(schemaJSON)
	sb.WriteString("\n\nRules:\n")
	sb.WriteString("- Generate ONLY safe SELECT statements.\n")
	sb.WriteString("- Use ONLY the tables and columns shown above.\n")
	fmt.Fprintf(&sb, "- Add %s to queries that may return many rows unless the user asks otherwise.\n", b.RowLimit)
	sb.WriteString("- Return ONLY the raw SQL, with no markdown and no explanation.\n")
	sb.WriteString("- Pick INNER JOIN, LEFT JOIN, RIGHT JOIN, FULL JOIN, CROSS JOIN or a self join to match the request. Do not default to plain JOIN.\n")
	return sb.String()
}

func BuildUserMessage(database, naturalLanguage string) string {
	return fmt.Sprintf("Database: %s\nQuery: %s", database, naturalLanguage)
}
