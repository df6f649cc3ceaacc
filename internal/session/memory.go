package session

import (
	"context"
	"sync"

	"carecompanion/pkg"
)

// memoryStore implements Store with an in-process map. Each session carries
// its own mutex so that appends for one id are serialized while distinct ids
// never block each other; the outer lock guards only map membership. Entries
// live for the process lifetime — eviction is an external policy.
type memoryStore struct {
	mu       sync.RWMutex
	closed   bool
	sessions map[string]*memorySession
}

type memorySession struct {
	mu    sync.Mutex
	turns []pkg.Turn
}

func newMemoryStore() *memoryStore {
	return &memoryStore{sessions: make(map[string]*memorySession)}
}

// entry resolves or lazily creates the session for id. A nil result means
// the store has been closed.
func (s *memoryStore) entry(id string) *memorySession {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil
	}
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if sess, ok = s.sessions[id]; ok {
		return sess
	}
	sess = &memorySession{}
	s.sessions[id] = sess
	return sess
}

// Append implements Store.
func (s *memoryStore) Append(ctx context.Context, id string, turn pkg.Turn) ([]pkg.Turn, error) {
	sess := s.entry(id)
	if sess == nil {
		return nil, ErrClosed
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.turns = append(sess.turns, turn)
	snapshot := make([]pkg.Turn, len(sess.turns))
	copy(snapshot, sess.turns)
	return snapshot, nil
}

// History implements Store.
func (s *memoryStore) History(ctx context.Context, id string) ([]pkg.Turn, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrClosed
	}
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	snapshot := make([]pkg.Turn, len(sess.turns))
	copy(snapshot, sess.turns)
	return snapshot, nil
}

// Close implements Store. The map is kept so a racing Append observes the
// closed flag instead of a nil-map write.
func (s *memoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.sessions = make(map[string]*memorySession)
	return nil
}
