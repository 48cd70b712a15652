package nl2sql

import (
	"fmt"
	"strings"
	"unicode"
)

// ProhibitedKeywords are rejected wherever they appear in a statement.
var ProhibitedKeywords = []string{"DROP", "DELETE", "UPDATE", "INSERT", "ALTER", "CREATE", "TRUNCATE"}

const (
	ReasonSafe       = "safe."
	ReasonNotSelect  = "only SELECT statements are allowed."
	reasonKeywordFmt = "keyword %q is prohibited."
)

type Verdict struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason"`
}

// Validate is a textual gate, not a parser. It matches prohibited keywords as
// case-insensitive substrings anywhere in the statement, so identifiers such
// as update_count are rejected too, and keywords hidden in comments are only
// caught because the scan ignores SQL structure entirely.
func Validate(sql string) Verdict {
	upper := strings.ToUpper(strings.TrimLeftFunc(sql, unicode.IsSpace))
	if word := firstWord(upper); word != "SELECT" {
		if word == "" {
			return Verdict{Accepted: false, Reason: ReasonNotSelect}
		}
		return Verdict{Accepted: false, Reason: fmt.Sprintf("%s Statement starts with %q.", ReasonNotSelect, word)}
	}
	for _, keyword := range ProhibitedKeywords {
		if strings.Contains(upper, keyword) {
			return Verdict{Accepted: false, Reason: fmt.Sprintf(reasonKeywordFmt, keyword)}
		}
	}
	return Verdict{Accepted: true, Reason: ReasonSafe}
}

func firstWord(s string) string {
	end := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
	if end < 0 {
		return s
	}
	return s[:end]
}
