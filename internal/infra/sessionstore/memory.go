package sessionstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/callnotes/internal/domain/callnotes"
	"github.com/yanqian/callnotes/pkg/util"
)

type entry struct {
	session   callnotes.Session
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory and expires them lazily.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]entry
	now      util.Clock
}

// NewMemoryStore constructs a store. A nil clock uses util.NowUTC.
func NewMemoryStore(now util.Clock) *MemoryStore {
	if now == nil {
		now = util.NowUTC
	}
	return &MemoryStore{sessions: make(map[uuid.UUID]entry), now: now}
}

// Save replaces the session. A non-positive ttl keeps it until the process exits.
func (s *MemoryStore) Save(_ context.Context, session callnotes.Session, ttl time.Duration) error {
	var exp time.Time
	if ttl > 0 {
		exp = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.sessions[session.ID] = entry{session: session, expiresAt: exp}
	s.mu.Unlock()
	return nil
}

// Get returns the session unless it is unknown or expired.
func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (callnotes.Session, bool, error) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return callnotes.Session{}, false, nil
	}
	if !s.expired(e) {
		return e.session, true, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// A Save may have replaced the entry since the read lock was released.
	current, ok := s.sessions[id]
	if !ok {
		return callnotes.Session{}, false, nil
	}
	if !s.expired(current) {
		return current.session, true, nil
	}
	delete(s.sessions, id)
	return callnotes.Session{}, false, nil
}

// Sweep drops every expired session and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.sessions {
		if s.expired(e) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *MemoryStore) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *MemoryStore) expired(e entry) bool {
	return !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)
}

var _ callnotes.SessionStore = (*MemoryStore)(nil)
