// Package sessionstore persists the backend session across process
// restarts so a restarted application resumes an authenticated state
// without a fresh sign-in.
package sessionstore

import (
	"context"
	"sync"

	"github.com/studyhall/studyhall-go/internal/model"
)

// Store holds at most one session. Load returns (nil, nil) when no
// session has been saved; that is not an error condition.
type Store interface {
	Load(ctx context.Context) (*model.Session, error)
	Save(ctx context.Context, sess *model.Session) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps the session in process memory. It is the default
// when no database is configured.
type MemoryStore struct {
	mu   sync.Mutex
	sess *model.Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(ctx context.Context) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		return nil, nil
	}
	cp := *s.sess
	return &cp, nil
}

func (s *MemoryStore) Save(ctx context.Context, sess *model.Session) error {
	cp := *sess
	s.mu.Lock()
	s.sess = &cp
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.sess = nil
	s.mu.Unlock()
	return nil
}
