package service

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shhady/leadform/backend/config"
	"github.com/shhady/leadform/backend/model"
)

// SessionStore holds one Submission per form session. Update applies fn
// atomically; a non-nil error from fn discards its changes.
type SessionStore interface {
	Create(ctx context.Context, sub *model.Submission) error
	Get(ctx context.Context, id string) (*model.Submission, error)
	Update(ctx context.Context, id string, fn func(*model.Submission) error) (*model.Submission, error)
	Delete(ctx context.Context, id string) error
}

// NewSessionStore picks the store configured in cfg.
func NewSessionStore(ctx context.Context, cfg *config.SessionConfig) (SessionStore, error) {
	if cfg.Store == "redis" {
		return NewRedisStore(ctx, cfg)
	}
	return NewMemoryStore(cfg), nil
}

// MemoryStore is an in-process session store. Sessions idle for longer than
// the TTL are dropped, and the oldest are evicted past maxSessions.
type MemoryStore struct {
	sessions    map[string]*model.Submission
	mu          sync.RWMutex
	maxSessions int // 0 = unlimited
	ttl         time.Duration
}

func NewMemoryStore(cfg *config.SessionConfig) *MemoryStore {
	maxSessions := cfg.MaxSessions
	if maxSessions < 0 {
		maxSessions = 0
	}
	slog.Info("session store initialized", "store", "memory", "max_sessions", maxSessions, "ttl", cfg.TTL)
	return &MemoryStore{
		sessions:    make(map[string]*model.Submission),
		maxSessions: maxSessions,
		ttl:         cfg.TTL,
	}
}

func (s *MemoryStore) Create(_ context.Context, sub *model.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub.UpdatedAt = time.Now()
	s.sessions[sub.ID] = sub.Clone()
	s.cleanupIfNeeded()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*model.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.sessions[id]
	if !ok || s.expired(sub) {
		return nil, ErrSessionNotFound
	}
	return sub.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, id string, fn func(*model.Submission) error) (*model.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.sessions[id]
	if !ok || s.expired(sub) {
		return nil, ErrSessionNotFound
	}

	working := sub.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	working.UpdatedAt = time.Now()
	s.sessions[id] = working
	return working.Clone(), nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *MemoryStore) expired(sub *model.Submission) bool {
	return s.ttl > 0 && time.Since(sub.UpdatedAt) > s.ttl
}

// cleanupIfNeeded drops expired sessions, then the oldest ones past
// maxSessions. Must be called with lock held.
func (s *MemoryStore) cleanupIfNeeded() {
	for id, sub := range s.sessions {
		if s.expired(sub) {
			delete(s.sessions, id)
		}
	}

	if s.maxSessions <= 0 || len(s.sessions) <= s.maxSessions {
		return
	}

	subs := make([]*model.Submission, 0, len(s.sessions))
	for _, sub := range s.sessions {
		subs = append(subs, sub)
	}
	sort.Slice(subs, func(i, j int) bool {
		return subs[i].CreatedAt.Before(subs[j].CreatedAt)
	})

	removeCount := len(subs) - s.maxSessions
	for i := 0; i < removeCount; i++ {
		slog.Info("evicting old session",
			"session_id", subs[i].ID,
			"created_at", subs[i].CreatedAt,
		)
		delete(s.sessions, subs[i].ID)
	}
}
