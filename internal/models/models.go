// Package models defines the core data structures for Styleflow.
//
// It includes types for sessions, turns, intents, and feedback records,
// which are shared across modules.
package models

import (
	"errors"
	"time"
)

// Intent is the classified service category a user's message belongs to.
type Intent string

const (
	// IntentNone marks a session with no active flow.
	IntentNone Intent = ""
	// IntentOccasionStyling handles event-driven outfit advice (wedding, interview, party).
	IntentOccasionStyling Intent = "occasion_styling"
	// IntentVacationPlanning handles packing/trip outfit advice.
	IntentVacationPlanning Intent = "vacation_planning"
	// IntentStylePairing handles "what goes with X" advice.
	IntentStylePairing Intent = "style_pairing"
	// IntentPersonalStyling handles "does X suit me" advice.
	IntentPersonalStyling Intent = "personal_styling"
	// IntentOutfitRating rates an uploaded outfit photo.
	IntentOutfitRating Intent = "outfit_rating"
	// IntentGeneralStyling is the fallback service; it bypasses slot
	// collection and forwards the message to the LLM with minimal context.
	IntentGeneralStyling Intent = "general_styling"
)

// Validation constants for input validation
const (
	// MaxMessageLength defines the maximum allowed length for a user message
	MaxMessageLength = 4096
	// MaxCommentLength defines the maximum allowed length for a feedback comment
	MaxCommentLength = 2000
	// MinRating and MaxRating bound numeric feedback ratings
	MinRating = 1
	MaxRating = 5
)

// Error variables for better error handling and testability
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrGenerationFailed = errors.New("generation failed")
	ErrEmptySessionID   = errors.New("session id cannot be empty")
	ErrEmptyMessage     = errors.New("message cannot be empty")
	ErrMessageTooLong   = errors.New("message exceeds maximum length")
	ErrInvalidRating    = errors.New("rating out of range")
	ErrEmptyFeedback    = errors.New("feedback requires a rating or a comment")
)

// IsValidIntent checks if the given intent is one of the five services or the fallback.
func IsValidIntent(i Intent) bool {
	switch i {
	case IntentOccasionStyling, IntentVacationPlanning, IntentStylePairing,
		IntentPersonalStyling, IntentOutfitRating, IntentGeneralStyling:
		return true
	default:
		return false
	}
}

// Turn is a single message in a session's conversation history.
// Turns are immutable once appended.
type Turn struct {
	Role      string    `json:"role"`      // "user" or "assistant"
	Content   string    `json:"content"`   // message content
	Timestamp time.Time `json:"timestamp"` // when the message was recorded
}

// Session holds per-conversation state. Sessions live in memory only and are
// destroyed when the connection closes; no durability is required.
type Session struct {
	ID         string            `json:"id"`
	Intent     Intent            `json:"intent"`
	Phase      FlowPhase         `json:"phase"`
	Slots      map[string]string `json:"slots,omitempty"`
	History    []Turn            `json:"history,omitempty"`
	ImageRef   string            `json:"image_ref,omitempty"` // pending uploaded image reference
	StallCount int               `json:"stall_count"`         // consecutive turns with no extraction progress
	Degraded   bool              `json:"degraded"`            // flow handed off to open-ended LLM handling
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// StructuredExtract is machine-parsable data embedded in an LLM reply,
// distinct from its human-readable text.
type StructuredExtract struct {
	Rating *int     `json:"rating,omitempty"` // numeric outfit rating, 1-10
	Items  []string `json:"items,omitempty"`  // suggested item names
}

// FeedbackRecord captures a user's rating and/or comment on the service.
// Records are immutable after creation and persisted by the feedback store.
type FeedbackRecord struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Rating    *int      `json:"rating,omitempty"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks a feedback record before persistence.
func (f *FeedbackRecord) Validate() error {
	if f.SessionID == "" {
		return ErrEmptySessionID
	}
	if f.Rating == nil && f.Comment == "" {
		return ErrEmptyFeedback
	}
	if f.Rating != nil && (*f.Rating < MinRating || *f.Rating > MaxRating) {
		return ErrInvalidRating
	}
	if len(f.Comment) > MaxCommentLength {
		return ErrMessageTooLong
	}
	return nil
}

// FeedbackStats aggregates persisted feedback for reporting endpoints.
type FeedbackStats struct {
	Total         int     `json:"total"`
	Rated         int     `json:"rated"`
	AverageRating float64 `json:"average_rating"`
}

// ChatReply is the core's answer for one turn, returned to the transport layer.
type ChatReply struct {
	SessionID string             `json:"session_id"`
	Intent    Intent             `json:"intent"`
	Phase     FlowPhase          `json:"phase"`
	Text      string             `json:"text"`
	Extract   *StructuredExtract `json:"extract,omitempty"`
}
