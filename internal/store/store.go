// Package store provides persistence backends for feedback records.
//
// It includes an in-memory store for tests, an SQLite store for single-node
// deployments, and a PostgreSQL store. Sessions are deliberately not
// persisted; only feedback records are durable.
package store

import "github.com/broadway-labs/styleflow/internal/models"

// Store is the feedback persistence interface consumed by the recorder and
// the reporting endpoints.
type Store interface {
	AddFeedback(record models.FeedbackRecord) error
	ListFeedback() ([]models.FeedbackRecord, error)
	FeedbackStats() (models.FeedbackStats, error)
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option configures a store backend.
type Option func(*Opts)

// WithDSN sets the database connection string (file path for SQLite).
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// statsFromRecords computes aggregate counts from a record list. Shared by
// backends that do not aggregate in SQL.
func statsFromRecords(records []models.FeedbackRecord) models.FeedbackStats {
	stats := models.FeedbackStats{Total: len(records)}
	sum := 0
	for _, r := range records {
		if r.Rating != nil {
			stats.Rated++
			sum += *r.Rating
		}
	}
	if stats.Rated > 0 {
		stats.AverageRating = float64(sum) / float64(stats.Rated)
	}
	return stats
}
