package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/askdb/askdb/internal/database"
	"github.com/askdb/askdb/internal/history"
	"github.com/askdb/askdb/internal/schema"
)

// Session holds one user's selected database, its schema snapshot and the
// query history. The snapshot is only ever replaced as a whole.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu       sync.RWMutex
	database string
	snapshot schema.Snapshot
	history  *history.Buffer
}

func New(id string, createdAt time.Time) *Session {
	return &Session{
		ID:        id,
		CreatedAt: createdAt,
		snapshot:  schema.Empty(),
		history:   history.NewBuffer(),
	}
}

// Schema returns the selected database and its snapshot as one consistent pair.
func (s *Session) Schema() (string, schema.Snapshot) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.database, s.snapshot
}

func (s *Session) History() *history.Buffer {
	return s.history
}

// SelectDatabase loads name's schema and installs it. When the load fails the
// session keeps name selected with an empty schema and the error is returned.
// A database outside the allow list leaves the session untouched.
func (s *Session) SelectDatabase(ctx context.Context, loader schema.Loader, name string) (schema.Snapshot, error) {
	snapshot, err := loader.Load(ctx, name)
	if err != nil {
		if errors.Is(err, database.ErrDatabaseNotAllowed) {
			return schema.Snapshot{}, err
		}
		snapshot = schema.Empty()
	}
	s.mu.Lock()
	s.database = name
	s.snapshot = snapshot
	s.mu.Unlock()
	return snapshot, err
}
