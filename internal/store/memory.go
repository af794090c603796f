package store

import (
	"sync"

	"github.com/broadway-labs/styleflow/internal/models"
)

// InMemoryStore is a simple in-memory feedback store, used in tests and when
// no database is configured.
type InMemoryStore struct {
	mu      sync.Mutex
	records []models.FeedbackRecord
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// AddFeedback appends a feedback record.
func (s *InMemoryStore) AddFeedback(record models.FeedbackRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

// ListFeedback returns all recorded feedback in insertion order.
func (s *InMemoryStore) ListFeedback() ([]models.FeedbackRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.FeedbackRecord(nil), s.records...), nil
}

// FeedbackStats returns aggregate counts over all records.
func (s *InMemoryStore) FeedbackStats() (models.FeedbackStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return statsFromRecords(s.records), nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
