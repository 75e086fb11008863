package state

import "sync"

// Store maps chat ids to session values of one kind.
type Store[T any] struct {
	mu       sync.RWMutex
	sessions map[int64]T
}

// NewStore constructs an empty Store.
func NewStore[T any]() *Store[T] {
	return &Store[T]{sessions: make(map[int64]T)}
}

// Get returns the session for chatID and whether one exists.
func (s *Store[T]) Get(chatID int64) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.sessions[chatID]
	return v, ok
}

// Set replaces the session for chatID.
func (s *Store[T]) Set(chatID int64, v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[chatID] = v
}

// Delete removes the session for chatID, if any.
func (s *Store[T]) Delete(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, chatID)
}

// Len reports the number of live sessions.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
