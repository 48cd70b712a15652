package nl2sql

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCalibration(t *testing.T) {
	tests := []struct {
		sql      string
		accepted bool
		mention  string
	}{
		{sql: "SELECT * FROM users", accepted: true},
		{sql: "select id from t", accepted: true},
		{sql: "UPDATE t SET x=1", accepted: false, mention: "UPDATE"},
		{sql: "SELECT * FROM t; DROP TABLE t;", accepted: false, mention: "DROP"},
		{sql: "  SELECT 1", accepted: true},
		{sql: "SELECT * FROM orders WHERE total > 100 LIMIT 100", accepted: true},
	}
	for _, tt := range tests {
		verdict := Validate(tt.sql)
		assert.Equal(t, tt.accepted, verdict.Accepted, "sql %q", tt.sql)
		if tt.accepted {
			assert.Equal(t, ReasonSafe, verdict.Reason)
			continue
		}
		assert.Contains(t, verdict.Reason, tt.mention, "sql %q", tt.sql)
	}
}

func TestValidateRejectsNonSelect(t *testing.T) {
	for _, sql := range []string{"", "   ", "WITH x AS (SELECT 1) SELECT * FROM x", "SELECTED FROM t", "(SELECT 1)", "DELETE FROM orders"} {
		verdict := Validate(sql)
		assert.False(t, verdict.Accepted, "sql %q", sql)
		assert.True(t, strings.HasPrefix(verdict.Reason, ReasonNotSelect), "reason %q", verdict.Reason)
	}
}

func TestValidateKeywordScanIsCoarse(t *testing.T) {
	verdict := Validate("SELECT update_count FROM stats")
	assert.False(t, verdict.Accepted)
	assert.Equal(t, `keyword "UPDATE" is prohibited.`, verdict.Reason)

	verdict = Validate("SELECT 1 /* drop */")
	assert.False(t, verdict.Accepted)
	assert.Contains(t, verdict.Reason, "DROP")

	verdict = Validate("SELECT created_at FROM t")
	assert.False(t, verdict.Accepted)
	assert.Contains(t, verdict.Reason, "CREATE")
}
