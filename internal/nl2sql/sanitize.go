package nl2sql

import "strings"

// Sanitize reduces raw model output to a single line of SQL. Blank lines,
// language tag lines and code fences are dropped, the rest are joined with
// single spaces and every backtick is removed. Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(raw string) string {
	kept := make([]string, 0)
	for _, line := range strings.FieldsFunc(raw, isLineBreak) {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			continue
		}
		cleaned := strings.TrimSpace(strings.ReplaceAll(trimmed, "`", ""))
		if cleaned == "" || strings.HasPrefix(strings.ToLower(cleaned), "sql") {
			continue
		}
		kept = append(kept, cleaned)
	}
	return strings.TrimSpace(strings.Join(kept, " "))
}

// isLineBreak matches every separator that ends a line in model output,
// including the bare carriage returns and Unicode separators some models emit.
func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', 0x1c, 0x1d, 0x1e, 0x85, 0x2028, 0x2029:
		return true
	}
	return false
}
