// Package store provides persistence backends for feedback records.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/broadway-labs/styleflow/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists feedback records in an SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store. The DSN is a file path to the
// database file; its directory is created if missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(cfg.DSN)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLiteStore: database ready", "dsn", cfg.DSN)
	return &SQLiteStore{db: db}, nil
}

// AddFeedback inserts a feedback record.
func (s *SQLiteStore) AddFeedback(record models.FeedbackRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO feedback (id, session_id, rating, comment, created_at) VALUES (?, ?, ?, ?, ?)`,
		record.ID, record.SessionID, nullableInt(record.Rating), nilIfEmpty(record.Comment), record.CreatedAt,
	)
	if err != nil {
		slog.Error("SQLiteStore AddFeedback failed", "error", err, "id", record.ID)
		return fmt.Errorf("failed to insert feedback %s: %w", record.ID, err)
	}
	slog.Debug("SQLiteStore AddFeedback succeeded", "id", record.ID, "sessionID", record.SessionID)
	return nil
}

// ListFeedback returns all feedback records ordered by creation time.
func (s *SQLiteStore) ListFeedback() ([]models.FeedbackRecord, error) {
	rows, err := s.db.Query(`SELECT id, session_id, rating, comment, created_at FROM feedback ORDER BY created_at`)
	if err != nil {
		slog.Error("SQLiteStore ListFeedback query failed", "error", err)
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer rows.Close()

	var records []models.FeedbackRecord
	for rows.Next() {
		r, err := scanFeedback(rows)
		if err != nil {
			slog.Error("SQLiteStore ListFeedback scan failed", "error", err)
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feedback rows: %w", err)
	}
	slog.Debug("SQLiteStore ListFeedback succeeded", "count", len(records))
	return records, nil
}

// FeedbackStats aggregates counts in SQL.
func (s *SQLiteStore) FeedbackStats() (models.FeedbackStats, error) {
	var stats models.FeedbackStats
	var avg sql.NullFloat64
	err := s.db.QueryRow(
		`SELECT COUNT(*), COUNT(rating), AVG(rating) FROM feedback`,
	).Scan(&stats.Total, &stats.Rated, &avg)
	if err != nil {
		slog.Error("SQLiteStore FeedbackStats failed", "error", err)
		return stats, fmt.Errorf("failed to aggregate feedback: %w", err)
	}
	if avg.Valid {
		stats.AverageRating = avg.Float64
	}
	return stats, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
