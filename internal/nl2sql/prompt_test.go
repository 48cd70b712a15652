package nl2sql

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askdb/askdb/internal/schema"
)

func ordersSnapshot(t *testing.T) schema.Snapshot {
	t.Helper()
	snapshot, err := schema.NewSnapshot(map[string]schema.Table{
		"orders": {
			Columns: []string{"id", "user_id", "total"},
			Types:   map[string]string{"id": "int", "user_id": "int", "total": "decimal"},
		},
	})
	require.NoError(t, err)
	return snapshot
}

func TestBuildSystemPromptIsDeterministic(t *testing.T) {
	builder := NewPromptBuilder("mysql")
	first := builder.BuildSystemPrompt(ordersSnapshot(t), "shop")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, builder.BuildSystemPrompt(ordersSnapshot(t), "shop"))
	}
}

func TestBuildSystemPromptContent(t *testing.T) {
	prompt := NewPromptBuilder("mysql").BuildSystemPrompt(ordersSnapshot(t), "shop")

	assert.Contains(t, prompt, "expert MySQL assistant")
	assert.Contains(t, prompt, "The database `shop` has this schema:")
	assert.Contains(t, prompt, `"columns": [`)
	assert.Contains(t, prompt, `"total": "decimal"`)
	assert.Contains(t, prompt, "ONLY safe SELECT statements")
	assert.Contains(t, prompt, "ONLY the tables and columns shown above")
	assert.Contains(t, prompt, "LIMIT 100")
	assert.Contains(t, prompt, "no markdown and no explanation")
	for _, join := range []string{"INNER JOIN", "LEFT JOIN", "RIGHT JOIN", "FULL JOIN", "CROSS JOIN", "self join"} {
		assert.Contains(t, prompt, join)
	}
	assert.Less(t, strings.Index(prompt, `"id"`), strings.Index(prompt, `"user_id"`))
}

func TestBuildSystemPromptFollowsDialect(t *testing.T) {
	prompt := NewPromptBuilder("sqlserver").BuildSystemPrompt(schema.Empty(), "hr")
	assert.Contains(t, prompt, "SQL Server")
	assert.Contains(t, prompt, "TOP 100")
	assert.Contains(t, prompt, "has this schema:\n{}")
}

func TestBuildUserMessage(t *testing.T) {
	assert.Equal(t, "Database: shop\nQuery: show all orders", BuildUserMessage("shop", "show all orders"))
}
