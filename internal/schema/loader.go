package schema

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
)

const defaultLoadTimeout = 30 * time.Second

// Loader builds a complete snapshot for one database.
type Loader interface {
	Load(ctx context.Context, database string) (Snapshot, error)
}

// LoadError reports that a database schema could not be read at all.
type LoadError struct {
	Database string
	Cause    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load schema for database %q: %v", e.Database, e.Cause)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// CoalescingLoader shares one in-flight load between concurrent callers asking
// for the same database. The shared load ignores caller cancellation and is
// bounded by Timeout. Each caller stops waiting when its own context ends.
type CoalescingLoader struct {
	Loader  Loader
	Timeout time.Duration
	group   singleflight.Group
}

func NewCoalescingLoader(loader Loader) *CoalescingLoader {
	return &CoalescingLoader{Loader: loader, Timeout: defaultLoadTimeout}
}

func (l *CoalescingLoader) Load(ctx context.Context, database string) (Snapshot, error) {
	results := l.group.DoChan(database, func() (any, error) {
		loadCtx := context.WithoutCancel(ctx)
		if l.Timeout > 0 {
			var cancel context.CancelFunc
			loadCtx, cancel = context.WithTimeout(loadCtx, l.Timeout)
			defer cancel()
		}
		return l.Loader.Load(loadCtx, database)
	})

	select {
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case result := <-results:
		if result.Err != nil {
			return Snapshot{}, result.Err
		}
		return result.Val.(Snapshot), nil
	}
}
