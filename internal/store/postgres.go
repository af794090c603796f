// Package store provides persistence backends for feedback records.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "embed"

	"github.com/broadway-labs/styleflow/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists feedback records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store from a connection DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgresStore: database ready")
	return &PostgresStore{db: db}, nil
}

// AddFeedback inserts a feedback record.
func (s *PostgresStore) AddFeedback(record models.FeedbackRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO feedback (id, session_id, rating, comment, created_at) VALUES ($1, $2, $3, $4, $5)`,
		record.ID, record.SessionID, nullableInt(record.Rating), nilIfEmpty(record.Comment), record.CreatedAt,
	)
	if err != nil {
		slog.Error("PostgresStore AddFeedback failed", "error", err, "id", record.ID)
		return fmt.Errorf("failed to insert feedback %s: %w", record.ID, err)
	}
	slog.Debug("PostgresStore AddFeedback succeeded", "id", record.ID, "sessionID", record.SessionID)
	return nil
}

// ListFeedback returns all feedback records ordered by creation time.
func (s *PostgresStore) ListFeedback() ([]models.FeedbackRecord, error) {
	rows, err := s.db.Query(`SELECT id, session_id, rating, comment, created_at FROM feedback ORDER BY created_at`)
	if err != nil {
		slog.Error("PostgresStore ListFeedback query failed", "error", err)
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer rows.Close()

	var records []models.FeedbackRecord
	for rows.Next() {
		r, err := scanFeedback(rows)
		if err != nil {
			slog.Error("PostgresStore ListFeedback scan failed", "error", err)
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feedback rows: %w", err)
	}
	slog.Debug("PostgresStore ListFeedback succeeded", "count", len(records))
	return records, nil
}

// FeedbackStats aggregates counts in SQL.
func (s *PostgresStore) FeedbackStats() (models.FeedbackStats, error) {
	var stats models.FeedbackStats
	var avg sql.NullFloat64
	err := s.db.QueryRow(
		`SELECT COUNT(*), COUNT(rating), AVG(rating) FROM feedback`,
	).Scan(&stats.Total, &stats.Rated, &avg)
	if err != nil {
		slog.Error("PostgresStore FeedbackStats failed", "error", err)
		return stats, fmt.Errorf("failed to aggregate feedback: %w", err)
	}
	if avg.Valid {
		stats.AverageRating = avg.Float64
	}
	return stats, nil
}

// Close closes the PostgreSQL connection.
func (s *PostgresStore) Close() error {
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
