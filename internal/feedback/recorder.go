// Package feedback records user feedback on the styling service.
//
// Record construction always succeeds locally; persistence is attempted with
// at most one automatic retry, and a lost record is logged, never surfaced to
// the conversation.
package feedback

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/broadway-labs/styleflow/internal/models"
	"github.com/broadway-labs/styleflow/internal/store"
)

// DefaultRetryDelay is the pause before the single persistence retry.
const DefaultRetryDelay = 2 * time.Second

// Recorder builds and persists feedback records.
type Recorder struct {
	store      store.Store
	retryDelay time.Duration
}

// NewRecorder creates a recorder backed by the given store.
func NewRecorder(st store.Store) *Recorder {
	return &Recorder{store: st, retryDelay: DefaultRetryDelay}
}

// SetRetryDelay overrides the retry pause (used in tests).
func (r *Recorder) SetRetryDelay(d time.Duration) {
	r.retryDelay = d
}

// Record constructs a feedback record and persists it. The record is always
// returned; persistence failure queues exactly one retry and is otherwise
// logged as lost. Feedback loss is non-fatal to the conversation.
func (r *Recorder) Record(ctx context.Context, sessionID string, rating *int, comment string) models.FeedbackRecord {
	record := models.FeedbackRecord{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: time.Now(),
	}

	if err := record.Validate(); err != nil {
		slog.Warn("Recorder.Record: discarding invalid feedback", "error", err, "sessionID", sessionID)
		return record
	}

	if err := r.store.AddFeedback(record); err != nil {
		slog.Warn("Recorder.Record: persistence failed, scheduling retry", "error", err, "id", record.ID)
		go r.retry(record)
		return record
	}

	slog.Info("Recorder.Record: feedback recorded", "id", record.ID, "sessionID", sessionID, "hasRating", rating != nil)
	return record
}

// retry attempts persistence once more after a short delay.
func (r *Recorder) retry(record models.FeedbackRecord) {
	time.Sleep(r.retryDelay)
	if err := r.store.AddFeedback(record); err != nil {
		slog.Error("Recorder.retry: feedback record lost", "error", err, "id", record.ID, "sessionID", record.SessionID)
		return
	}
	slog.Info("Recorder.retry: feedback recorded on retry", "id", record.ID)
}
