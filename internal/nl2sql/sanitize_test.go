package nl2sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "fenced", raw: "```sql\nSELECT 1\n```", want: "SELECT 1"},
		{name: "empty", raw: "", want: ""},
		{name: "language tag line", raw: "sql\nSELECT id\nFROM t", want: "SELECT id FROM t"},
		{name: "blank lines", raw: "\n\nSELECT *\n\n  FROM t  \n", want: "SELECT * FROM t"},
		{name: "inline backticks", raw: "SELECT `id` FROM `orders`", want: "SELECT id FROM orders"},
		{name: "uppercase tag", raw: "SQL:\nSELECT 2", want: "SELECT 2"},
		{name: "indented fence", raw: "   ```\nSELECT 3\n   ```", want: "SELECT 3"},
		{name: "windows newlines", raw: "```sql\r\nSELECT 4\r\n```\r\n", want: "SELECT 4"},
		{name: "only noise", raw: "```\n```", want: ""},
		{name: "carriage return only", raw: "```sql\rSELECT * FROM orders\r```", want: "SELECT * FROM orders"},
		{name: "bare carriage return", raw: "SELECT *\rFROM orders", want: "SELECT * FROM orders"},
		{name: "unicode line separator", raw: "```sql\u2028SELECT id\u2029FROM orders\u2028```", want: "SELECT id FROM orders"},
		{name: "next line and form feed", raw: "SELECT id\u0085FROM orders\fLIMIT 5\vOFFSET 1", want: "SELECT id FROM orders LIMIT 5 OFFSET 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.raw))
		})
	}
}

func TestSanitizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"```sql\nSELECT 1\n```",
		"`sql`\nSELECT 1",
		"SELECT `a`\n\n`b`",
		"  sqlite says hi\nSELECT x FROM y",
		"``` \n `` \nSELECT ` ` 1",
		"Here is your query:\nSELECT * FROM t LIMIT 100",
		"\t\n\r\n",
		"SELECT 'multi\nline' FROM t",
		"```sql\rSELECT * FROM orders\r```",
		"SELECT *\rFROM orders",
		"SELECT 1\u2028FROM t\u0085WHERE x\x1eAND y",
	}
	for _, input := range inputs {
		once := Sanitize(input)
		assert.Equal(t, once, Sanitize(once), "input %q", input)
		assert.NotContains(t, once, "\n")
		assert.NotContains(t, once, "\r")
		assert.NotContains(t, once, "\u2028")
		assert.NotContains(t, once, "`")
	}
}
