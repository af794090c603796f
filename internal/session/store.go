// Package session provides the in-memory keyed session store.
//
// Each session has its own lock; mutations run under Update so that two
// concurrent turns for the same session can never interleave, while sessions
// remain independent of each other. The lock is held only for the duration of
// a state read-modify-write, never across an LLM call.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/broadway-labs/styleflow/internal/models"
)

type entry struct {
	mu   sync.Mutex
	sess *models.Session
}

// Store holds per-conversation state keyed by session ID.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// getOrCreateEntry returns the entry for id, creating it if absent.
func (s *Store) getOrCreateEntry(id string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		now := time.Now()
		e = &entry{sess: &models.Session{
			ID:        id,
			Slots:     make(map[string]string),
			CreatedAt: now,
			UpdatedAt: now,
		}}
		s.entries[id] = e
		slog.Debug("SessionStore: created session", "sessionID", id)
	}
	return e
}

// GetOrCreate returns a snapshot of the session for id, creating it if it
// does not exist. It never fails for a non-empty id.
func (s *Store) GetOrCreate(id string) models.Session {
	e := s.getOrCreateEntry(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	return snapshot(e.sess)
}

// Update runs fn on the session for id under the session's lock, creating the
// session if it does not exist. fn must not block on network calls; slow
// operations belong between Update calls.
func (s *Store) Update(id string, fn func(*models.Session) error) error {
	if id == "" {
		return models.ErrEmptySessionID
	}
	e := s.getOrCreateEntry(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := fn(e.sess); err != nil {
		return err
	}
	e.sess.UpdatedAt = time.Now()
	return nil
}

// Get is the strict lookup variant: it returns a snapshot of an existing
// session or models.ErrSessionNotFound. Callers may not mutate shared state
// through the snapshot.
func (s *Store) Get(id string) (models.Session, error) {
	s.mu.Lock()
	e, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return models.Session{}, models.ErrSessionNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return snapshot(e.sess), nil
}

// Delete destroys the session for id. Called when the connection closes.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; ok {
		delete(s.entries, id)
		slog.Debug("SessionStore: deleted session", "sessionID", id)
	}
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// snapshot copies a session so readers cannot race with later mutations.
func snapshot(sess *models.Session) models.Session {
	out := *sess
	out.Slots = make(map[string]string, len(sess.Slots))
	for k, v := range sess.Slots {
		out.Slots[k] = v
	}
	out.History = append([]models.Turn(nil), sess.History...)
	return out
}
