package store

import (
	"database/sql"
	"fmt"

	"github.com/broadway-labs/styleflow/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// nullableInt returns nil for an absent rating, otherwise its value.
func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// scanFeedback scans a FeedbackRecord from sql.Rows.
func scanFeedback(rows *sql.Rows) (models.FeedbackRecord, error) {
	var r models.FeedbackRecord
	var rating sql.NullInt64
	var comment sql.NullString
	if err := rows.Scan(&r.ID, &r.SessionID, &rating, &comment, &r.CreatedAt); err != nil {
		return r, fmt.Errorf("scan feedback failed: %w", err)
	}
	if rating.Valid {
		v := int(rating.Int64)
		r.Rating = &v
	}
	r.Comment = comment.String
	return r, nil
}
