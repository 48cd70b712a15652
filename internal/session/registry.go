package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/askdb/askdb/internal/observability"
)

// Registry keeps the most recently used sessions. The least recently used
// session is dropped once capacity is reached.
type Registry struct {
	sessions *lru.Cache[string, *Session]
	now      func() time.Time
}

func NewRegistry(capacity int) (*Registry, error) {
	cache, err := lru.New[string, *Session](capacity)
	if err != nil {
		return nil, fmt.Errorf("create session registry: %w", err)
	}
	return &Registry{sessions: cache, now: time.Now}, nil
}

func (r *Registry) Create() *Session {
	sess := New(uuid.NewString(), r.now().UTC())
	r.sessions.Add(sess.ID, sess)
	observability.SetActiveSessions(r.sessions.Len())
	return sess
}

func (r *Registry) Get(id string) (*Session, bool) {
	return r.sessions.Get(id)
}

func (r *Registry) Remove(id string) bool {
	removed := r.sessions.Remove(id)
	observability.SetActiveSessions(r.sessions.Len())
	return removed
}

func (r *Registry) Len() int {
	return r.sessions.Len()
}
