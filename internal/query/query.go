package query

import (
	"context"
	"time"
)

// Result is a tabular result set. Rows is empty, never nil, when the query
// matched nothing.
type Result struct {
	Columns []string
	Rows    [][]any
	Elapsed time.Duration
}

func (r Result) RowCount() int {
	return len(r.Rows)
}

// Executor runs SQL that has already passed the safety gate.
type Executor interface {
	Run(ctx context.Context, sql string, database string) (Result, error)
}
