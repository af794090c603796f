// Package flow provides the Engine, the core's sole entry point: it routes a
// message through classification, slot collection, and response generation.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/broadway-labs/styleflow/internal/feedback"
	"github.com/broadway-labs/styleflow/internal/images"
	"github.com/broadway-labs/styleflow/internal/models"
	"github.com/broadway-labs/styleflow/internal/session"
)

// Default engine tuning. Both values are configurable via options.
const (
	// DefaultStallLimit is how many consecutive no-progress turns a flow
	// tolerates before degrading to open-ended LLM handling.
	DefaultStallLimit = 3
	// DefaultGenerationTimeout bounds the backend call and the image save.
	DefaultGenerationTimeout = 30 * time.Second
)

// User-facing messages for the local (non-LLM) paths.
const (
	photoRequestMessage  = "I'd love to rate your outfit! Upload a photo and I'll take a look."
	genericFailureReply  = "Sorry, something went wrong on my end. Please send that again and I'll pick up right where we left off."
	feedbackThanksReply  = "Thanks for the feedback, it really helps!"
	emptyUploadReply     = "Got your photo! What would you like me to do with it - rate the outfit?"
	imageStoreFailureMsg = "I couldn't save that photo, sorry. Could you try uploading it again?"
)

// Engine wires the session store, classifier, flow schemas, and response
// generator into the per-turn control flow.
type Engine struct {
	sessions   *session.Store
	classifier Classifier
	responder  *Responder
	images     images.Store
	recorder   *feedback.Recorder
	stallLimit int
	genTimeout time.Duration
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithStallLimit overrides the slot-extraction stall limit.
func WithStallLimit(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.stallLimit = n
		}
	}
}

// WithGenerationTimeout overrides the backend call timeout.
func WithGenerationTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.genTimeout = d
		}
	}
}

// NewEngine creates the dialogue routing engine.
func NewEngine(sessions *session.Store, classifier Classifier, responder *Responder, imgStore images.Store, recorder *feedback.Recorder, opts ...EngineOption) *Engine {
	e := &Engine{
		sessions:   sessions,
		classifier: classifier,
		responder:  responder,
		images:     imgStore,
		recorder:   recorder,
		stallLimit: DefaultStallLimit,
		genTimeout: DefaultGenerationTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// turnPlan is what one locked read-modify-write decides to do. The session
// lock is released before any generation call; the plan carries copies of the
// state the responder needs.
type turnPlan struct {
	localReply string // non-empty: answer locally, no backend call
	generate   bool
	request    GenerationRequest
	finalize   bool // mark Answered (and consume the image) on success
}

// HandleMessage processes one turn: (session_id, message_text, optional image
// bytes) in, displayable reply out. It performs at most one LLM backend call.
func (e *Engine) HandleMessage(ctx context.Context, sessionID, message string, image []byte) (models.ChatReply, error) {
	if sessionID == "" {
		return models.ChatReply{}, models.ErrEmptySessionID
	}
	if message == "" && len(image) == 0 {
		return models.ChatReply{}, models.ErrEmptyMessage
	}
	if len(message) > models.MaxMessageLength {
		return models.ChatReply{}, models.ErrMessageTooLong
	}

	// Feedback-bearing messages bypass the flows entirely.
	if rating, comment, ok := detectFeedback(message); ok {
		return e.handleFeedback(ctx, sessionID, message, rating, comment)
	}

	// Store the upload before touching session state; the save is
	// timeout-bound like any other slow dependency.
	var imageRef string
	if len(image) > 0 {
		saveCtx, cancel := context.WithTimeout(ctx, e.genTimeout)
		ref, err := e.images.Save(saveCtx, image)
		cancel()
		if err != nil {
			slog.Error("Engine.HandleMessage: image save failed", "error", err, "sessionID", sessionID)
			snap := e.sessions.GetOrCreate(sessionID)
			return models.ChatReply{SessionID: sessionID, Intent: snap.Intent, Phase: snap.Phase, Text: imageStoreFailureMsg}, nil
		}
		imageRef = ref
	}

	// Classification may consult the LLM (swappable classifier); it runs on a
	// snapshot so no session lock is held across it.
	snap := e.sessions.GetOrCreate(sessionID)
	hasImage := imageRef != "" || snap.ImageRef != ""
	cls := e.classifier.Classify(ctx, message, &snap, hasImage)
	slog.Debug("Engine.HandleMessage: classified", "sessionID", sessionID, "intent", cls.Intent,
		"continue", cls.Continue, "matched", cls.Matched)

	var plan turnPlan
	var replyIntent models.Intent
	var replyPhase models.FlowPhase
	err := e.sessions.Update(sessionID, func(s *models.Session) error {
		plan = e.advance(s, cls, message, imageRef)
		replyIntent = s.Intent
		replyPhase = s.Phase
		return nil
	})
	if err != nil {
		return models.ChatReply{}, fmt.Errorf("failed to advance session: %w", err)
	}

	if plan.localReply != "" {
		return models.ChatReply{SessionID: sessionID, Intent: replyIntent, Phase: replyPhase, Text: plan.localReply}, nil
	}

	// Backend call with the session lock released, so a slow generation
	// neither blocks other sessions nor a cancellation of this one.
	genCtx, cancel := context.WithTimeout(ctx, e.genTimeout)
	result, genErr := e.responder.Generate(genCtx, plan.request)
	cancel()
	if genErr != nil {
		// Flow state stays at its pre-call value; the next identical message
		// triggers exactly one new backend call.
		slog.Error("Engine.HandleMessage: generation failed, state unchanged", "error", genErr, "sessionID", sessionID)
		return models.ChatReply{SessionID: sessionID, Intent: replyIntent, Phase: replyPhase, Text: genericFailureReply}, nil
	}

	err = e.sessions.Update(sessionID, func(s *models.Session) error {
		now := time.Now()
		if message != "" {
			s.History = append(s.History, models.Turn{Role: "user", Content: message, Timestamp: now})
		}
		s.History = append(s.History, models.Turn{Role: "assistant", Content: result.Text, Timestamp: now})
		if plan.finalize {
			s.Phase = models.PhaseAnswered
			s.Degraded = false
			s.StallCount = 0
			if s.Intent == models.IntentOutfitRating {
				s.ImageRef = "" // the pending image has been consumed
			}
		}
		replyPhase = s.Phase
		return nil
	})
	if err != nil {
		return models.ChatReply{}, fmt.Errorf("failed to record turn: %w", err)
	}

	return models.ChatReply{
		SessionID: sessionID,
		Intent:    replyIntent,
		Phase:     replyPhase,
		Text:      result.Text,
		Extract:   result.Extract,
	}, nil
}

// advance applies one turn to the session state machine under the session
// lock and decides what (if anything) to generate. It never blocks.
func (e *Engine) advance(s *models.Session, cls Classification, message, imageRef string) turnPlan {
	if imageRef != "" {
		s.ImageRef = imageRef
	}

	// Follow-up on an answered flow: forward conversationally, no state reset.
	if cls.Continue && s.Phase == models.PhaseAnswered {
		// An explicit new rating request starts a fresh cycle: the previous
		// upload was consumed by its rating, so rate the photo that arrived
		// this turn or ask for one.
		if s.Intent == models.IntentOutfitRating && cls.Matched != "" {
			s.StallCount = 0
			s.Degraded = false
			if s.ImageRef != "" {
				s.Phase = models.PhaseReady
				return turnPlan{generate: true, finalize: true, request: GenerationRequest{
					Mode:     ModeFinal,
					Intent:   s.Intent,
					Slots:    copySlots(s.Slots),
					History:  append([]models.Turn(nil), s.History...),
					Message:  message,
					ImageRef: s.ImageRef,
				}}
			}
			s.Phase = models.PhaseCollecting
			now := time.Now()
			if message != "" {
				s.History = append(s.History, models.Turn{Role: "user", Content: message, Timestamp: now})
			}
			s.History = append(s.History, models.Turn{Role: "assistant", Content: photoRequestMessage, Timestamp: now})
			return turnPlan{localReply: photoRequestMessage}
		}
		return turnPlan{generate: true, request: GenerationRequest{
			Mode:    ModeFollowUp,
			Intent:  s.Intent,
			History: append([]models.Turn(nil), s.History...),
			Message: message,
		}}
	}

	if !cls.Continue {
		// Topic switch, fresh cycle after Answered, or first classification.
		// Switching intents discards the prior flow's collected slots.
		if s.Intent != cls.Intent || s.Phase == models.PhaseAnswered {
			if s.Intent != cls.Intent && s.Intent != models.IntentNone {
				slog.Debug("Engine.advance: intent switch, discarding collected slots",
					"sessionID", s.ID, "from", s.Intent, "to", cls.Intent)
			}
			s.Intent = cls.Intent
			s.Slots = make(map[string]string)
			s.Phase = models.PhaseCollecting
			s.StallCount = 0
			s.Degraded = false
		}
	}

	// The fallback intent bypasses slot collection entirely.
	if s.Intent == models.IntentGeneralStyling {
		if message == "" {
			return turnPlan{localReply: emptyUploadReply}
		}
		return turnPlan{generate: true, finalize: true, request: GenerationRequest{
			Mode:    ModeGeneral,
			Intent:  s.Intent,
			History: append([]models.Turn(nil), s.History...),
			Message: message,
		}}
	}

	schema, _ := SchemaFor(s.Intent)
	newly := 0
	if message != "" {
		newly = schema.ExtractInto(message, s.Slots)
	}
	if imageRef != "" {
		newly++ // an upload is extraction progress for image-gated flows
	}

	missing := schema.MissingRequired(s.Slots)
	needsImage := s.Intent == models.IntentOutfitRating && s.ImageRef == ""

	if len(missing) == 0 && !needsImage {
		s.Phase = models.PhaseReady
		return turnPlan{generate: true, finalize: true, request: GenerationRequest{
			Mode:     ModeFinal,
			Intent:   s.Intent,
			Slots:    copySlots(s.Slots),
			History:  append([]models.Turn(nil), s.History...),
			Message:  message,
			ImageRef: s.ImageRef,
		}}
	}

	// Still collecting.
	s.Phase = models.PhaseCollecting
	if newly == 0 {
		s.StallCount++
	} else {
		s.StallCount = 0
	}

	if s.Degraded || s.StallCount >= e.stallLimit {
		// Soft degrade: hand the raw conversation to the backend and let it
		// ask its own clarifying questions.
		if !s.Degraded {
			slog.Info("Engine.advance: slot extraction stalled, degrading to open-ended handling",
				"sessionID", s.ID, "intent", s.Intent, "stallCount", s.StallCount)
		}
		s.Degraded = true
		if needsImage {
			missing = append(missing, "outfit photo")
		}
		return turnPlan{generate: true, request: GenerationRequest{
			Mode:         ModeDegraded,
			Intent:       s.Intent,
			Slots:        copySlots(s.Slots),
			History:      append([]models.Turn(nil), s.History...),
			Message:      message,
			MissingSlots: missing,
		}}
	}

	// Clarifying question, answered locally without a backend call.
	question := photoRequestMessage
	if !needsImage {
		question = schema.ClarifyingQuestion(missing)
	}
	now := time.Now()
	if message != "" {
		s.History = append(s.History, models.Turn{Role: "user", Content: message, Timestamp: now})
	}
	s.History = append(s.History, models.Turn{Role: "assistant", Content: question, Timestamp: now})
	return turnPlan{localReply: question}
}

// handleFeedback records a detected feedback message and thanks the user.
// The active flow is left untouched.
func (e *Engine) handleFeedback(ctx context.Context, sessionID, message string, rating *int, comment string) (models.ChatReply, error) {
	record := e.recorder.Record(ctx, sessionID, rating, comment)
	slog.Debug("Engine.handleFeedback: feedback detected", "sessionID", sessionID, "recordID", record.ID)

	var intent models.Intent
	var phase models.FlowPhase
	err := e.sessions.Update(sessionID, func(s *models.Session) error {
		now := time.Now()
		s.History = append(s.History,
			models.Turn{Role: "user", Content: message, Timestamp: now},
			models.Turn{Role: "assistant", Content: feedbackThanksReply, Timestamp: now})
		intent = s.Intent
		phase = s.Phase
		return nil
	})
	if err != nil {
		return models.ChatReply{}, fmt.Errorf("failed to record feedback turn: %w", err)
	}
	return models.ChatReply{SessionID: sessionID, Intent: intent, Phase: phase, Text: feedbackThanksReply}, nil
}

// CloseSession destroys a session when the connection closes.
func (e *Engine) CloseSession(sessionID string) {
	e.sessions.Delete(sessionID)
}

func copySlots(slots map[string]string) map[string]string {
	out := make(map[string]string, len(slots))
	for k, v := range slots {
		out[k] = v
	}
	return out
}
