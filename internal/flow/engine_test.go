package flow

import (
	"context"
	"testing"

	"github.com/broadway-labs/styleflow/internal/feedback"
	"github.com/broadway-labs/styleflow/internal/models"
	"github.com/broadway-labs/styleflow/internal/session"
	"github.com/broadway-labs/styleflow/internal/store"
)

func newTestEngine(client *scriptedClient, opts ...EngineOption) (*Engine, *store.InMemoryStore) {
	st := store.NewInMemoryStore()
	recorder := feedback.NewRecorder(st)
	engine := NewEngine(
		session.NewStore(),
		NewKeywordClassifier(),
		NewResponder(client),
		&fakeImages{},
		recorder,
		opts...,
	)
	return engine, st
}

func TestHandleMessageValidation(t *testing.T) {
	engine, _ := newTestEngine(&scriptedClient{})
	ctx := context.Background()

	if _, err := engine.HandleMessage(ctx, "", "hello", nil); err != models.ErrEmptySessionID {
		t.Errorf("expected ErrEmptySessionID, got %v", err)
	}
	if _, err := engine.HandleMessage(ctx, "s1", "", nil); err != models.ErrEmptyMessage {
		t.Errorf("expected ErrEmptyMessage, got %v", err)
	}
	long := make([]byte, models.MaxMessageLength+1)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := engine.HandleMessage(ctx, "s1", string(long), nil); err != models.ErrMessageTooLong {
		t.Errorf("expected ErrMessageTooLong, got %v", err)
	}
}

func TestCompleteFlowInOneMessage(t *testing.T) {
	client := &scriptedClient{replies: []string{"Wear the navy sherwani.\n```json\n{\"items\": [\"navy sherwani\"]}\n```"}}
	engine, _ := newTestEngine(client)

	reply, err := engine.HandleMessage(context.Background(), "s1", "What should I wear to a wedding?", nil)
	if err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}
	if reply.Intent != models.IntentOccasionStyling {
		t.Errorf("expected occasion_styling, got %s", reply.Intent)
	}
	if reply.Phase != models.PhaseAnswered {
		t.Errorf("expected ANSWERED, got %s", reply.Phase)
	}
	if reply.Text != "Wear the navy sherwani." {
		t.Errorf("unexpected reply text: %q", reply.Text)
	}
	if reply.Extract == nil || len(reply.Extract.Items) != 1 {
		t.Errorf("expected structured extract, got %v", reply.Extract)
	}
	if client.callCount() != 1 {
		t.Errorf("expected exactly one backend call, got %d", client.callCount())
	}
}

func TestClarifyingQuestionIsLocal(t *testing.T) {
	client := &scriptedClient{}
	engine, _ := newTestEngine(client)

	// Triggers the occasion flow without naming a known occasion.
	reply, err := engine.HandleMessage(context.Background(), "s1", "help me dress for an event", nil)
	if err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}
	if reply.Phase != models.PhaseCollecting {
		t.Errorf("expected COLLECTING, got %s", reply.Phase)
	}
	if reply.Text != "What's the occasion you're dressing for?" {
		t.Errorf("unexpected clarifying question: %q", reply.Text)
	}
	if client.callCount() != 0 {
		t.Errorf("clarifying questions must not call the backend, got %d calls", client.callCount())
	}
}

func TestSlotAnswerCompletesFlow(t *testing.T) {
	client := &scriptedClient{replies: []string{"A crisp shirt works."}}
	engine, _ := newTestEngine(client)
	ctx := context.Background()

	if _, err := engine.HandleMessage(ctx, "s1", "help me dress for an event", nil); err != nil {
		t.Fatal(err)
	}
	reply, err := engine.HandleMessage(ctx, "s1", "it's a job interview", nil)
	if err != nil {
		t.Fatal(err)
	}
	if reply.Phase != models.PhaseAnswered {
		t.Errorf("expected ANSWERED after required slot filled, got %s", reply.Phase)
	}
	if client.callCount() != 1 {
		t.Errorf("expected one backend call total, got %d", client.callCount())
	}
}

func TestStallDegradesToOpenEnded(t *testing.T) {
	client := &scriptedClient{replies: []string{"Tell me a bit more about the event?"}}
	engine, _ := newTestEngine(client, WithStallLimit(2))
	ctx := context.Background()

	if _, err := engine.HandleMessage(ctx, "s1", "help me dress for an event", nil); err != nil {
		t.Fatal(err)
	}
	if client.callCount() != 0 {
		t.Fatal("first clarifying turn must be local")
	}

	// Second consecutive no-progress turn hits the stall limit.
	reply, err := engine.HandleMessage(ctx, "s1", "hmm not sure really", nil)
	if err != nil {
		t.Fatal(err)
	}
	if client.callCount() != 1 {
		t.Errorf("expected degrade to call the backend once, got %d", client.callCount())
	}
	if reply.Phase != models.PhaseCollecting {
		t.Errorf("degraded flow stays COLLECTING, got %s", reply.Phase)
	}

	// Once degraded, every turn goes to the backend.
	if _, err := engine.HandleMessage(ctx, "s1", "you pick for me", nil); err != nil {
		t.Fatal(err)
	}
	if client.callCount() != 2 {
		t.Errorf("degraded flow should keep using the backend, got %d calls", client.callCount())
	}
}

func TestIntentSwitchDiscardsSlots(t *testing.T) {
	client := &scriptedClient{}
	engine, _ := newTestEngine(client)
	ctx := context.Background()

	if _, err := engine.HandleMessage(ctx, "s1", "What should I wear to a wedding?", nil); err != nil {
		t.Fatal(err)
	}

	// Mid-everything, the user switches to trip packing with no destination.
	reply, err := engine.HandleMessage(ctx, "s1", "actually, help me with packing instead", nil)
	if err != nil {
		t.Fatal(err)
	}
	if reply.Intent != models.IntentVacationPlanning {
		t.Errorf("expected vacation_planning after switch, got %s", reply.Intent)
	}
	if reply.Phase != models.PhaseCollecting {
		t.Errorf("expected fresh COLLECTING phase, got %s", reply.Phase)
	}
	if reply.Text != "Where are you headed?" {
		t.Errorf("expected destination question, got %q", reply.Text)
	}
}

func TestOutfitRatingGatedOnImage(t *testing.T) {
	client := &scriptedClient{replies: []string{"Sharp look!\n```json\n{\"rating\": 8}\n```"}}
	engine, _ := newTestEngine(client)
	ctx := context.Background()

	// No image yet: the engine asks for one locally.
	reply, err := engine.HandleMessage(ctx, "s1", "rate my outfit", nil)
	if err != nil {
		t.Fatal(err)
	}
	if reply.Intent != models.IntentOutfitRating {
		t.Errorf("expected outfit_rating, got %s", reply.Intent)
	}
	if client.callCount() != 0 {
		t.Error("photo request must be local")
	}

	// The upload completes the flow.
	reply, err = engine.HandleMessage(ctx, "s1", "here you go", []byte{0x1})
	if err != nil {
		t.Fatal(err)
	}
	if reply.Phase != models.PhaseAnswered {
		t.Errorf("expected ANSWERED after upload, got %s", reply.Phase)
	}
	if reply.Extract == nil || reply.Extract.Rating == nil || *reply.Extract.Rating != 8 {
		t.Errorf("expected rating extract, got %v", reply.Extract)
	}
	if client.callCount() != 1 {
		t.Errorf("expected one backend call, got %d", client.callCount())
	}

	// The pending image was consumed; rating again requires a new photo.
	reply, err = engine.HandleMessage(ctx, "s1", "rate this one too", nil)
	if err != nil {
		t.Fatal(err)
	}
	if client.callCount() != 1 {
		t.Error("consumed image must not satisfy a new rating request")
	}
	if reply.Phase != models.PhaseCollecting {
		t.Errorf("expected COLLECTING while waiting for a new photo, got %s", reply.Phase)
	}
}

func TestSecondRatingWithNewPhoto(t *testing.T) {
	client := &scriptedClient{replies: []string{
		"Nice fit.\n```json\n{\"rating\": 8}\n```",
		"Even better.\n```json\n{\"rating\": 9}\n```",
	}}
	sessions := session.NewStore()
	st := store.NewInMemoryStore()
	engine := NewEngine(sessions, NewKeywordClassifier(), NewResponder(client), &fakeImages{}, feedback.NewRecorder(st))
	ctx := context.Background()

	reply, err := engine.HandleMessage(ctx, "s1", "rate my outfit", []byte{0x1})
	if err != nil {
		t.Fatal(err)
	}
	if reply.Phase != models.PhaseAnswered {
		t.Fatalf("expected first rating answered, got %s", reply.Phase)
	}

	// A second rating request carrying a new photo in the same message must
	// start a fresh rated cycle, not a conversational follow-up.
	reply, err = engine.HandleMessage(ctx, "s1", "rate my ootd", []byte{0x2})
	if err != nil {
		t.Fatal(err)
	}
	if reply.Phase != models.PhaseAnswered {
		t.Errorf("expected second rating answered, got %s", reply.Phase)
	}
	if reply.Extract == nil || reply.Extract.Rating == nil || *reply.Extract.Rating != 9 {
		t.Errorf("expected second rating extract, got %v", reply.Extract)
	}
	if client.callCount() != 2 {
		t.Errorf("expected two backend calls, got %d", client.callCount())
	}

	// The new upload was consumed by its rating, not stranded.
	sess, err := sessions.Get("s1")
	if err != nil {
		t.Fatal(err)
	}
	if sess.ImageRef != "" {
		t.Errorf("expected image reference consumed, got %q", sess.ImageRef)
	}

	// So a third request without a photo asks for one locally.
	reply, err = engine.HandleMessage(ctx, "s1", "rate this look", nil)
	if err != nil {
		t.Fatal(err)
	}
	if reply.Phase != models.PhaseCollecting {
		t.Errorf("expected COLLECTING while waiting for a new photo, got %s", reply.Phase)
	}
	if client.callCount() != 2 {
		t.Error("photo request must be local")
	}
}

func TestImageWithRatingTriggerCompletesImmediately(t *testing.T) {
	client := &scriptedClient{replies: []string{"8/10 fit.\n```json\n{\"rating\": 8}\n```"}}
	engine, _ := newTestEngine(client)

	reply, err := engine.HandleMessage(context.Background(), "s1", "ootd, rate this", []byte{0x1, 0x2})
	if err != nil {
		t.Fatal(err)
	}
	if reply.Intent != models.IntentOutfitRating || reply.Phase != models.PhaseAnswered {
		t.Errorf("expected answered outfit_rating, got %s/%s", reply.Intent, reply.Phase)
	}
}

func TestGenerationFailureLeavesStateUnchanged(t *testing.T) {
	client := &scriptedClient{err: errBackendDown}
	engine, _ := newTestEngine(client)
	ctx := context.Background()

	reply, err := engine.HandleMessage(ctx, "s1", "What should I wear to a wedding?", nil)
	if err != nil {
		t.Fatalf("backend failure must not surface as a handler error: %v", err)
	}
	if reply.Text != genericFailureReply {
		t.Errorf("expected generic failure reply, got %q", reply.Text)
	}
	if reply.Phase != models.PhaseReady {
		t.Errorf("flow state should stay at its pre-call value, got %s", reply.Phase)
	}
	if client.callCount() != 1 {
		t.Fatalf("expected one failed call, got %d", client.callCount())
	}

	// Resubmitting triggers exactly one new call and completes.
	client.mu.Lock()
	client.err = nil
	client.replies = []string{"Go with the bandhgala."}
	client.mu.Unlock()

	reply, err = engine.HandleMessage(ctx, "s1", "What should I wear to a wedding?", nil)
	if err != nil {
		t.Fatal(err)
	}
	if reply.Phase != models.PhaseAnswered {
		t.Errorf("expected ANSWERED on retry, got %s", reply.Phase)
	}
	if client.callCount() != 2 {
		t.Errorf("expected exactly one retry call, got %d total", client.callCount())
	}
}

func TestImageSaveFailure(t *testing.T) {
	client := &scriptedClient{}
	st := store.NewInMemoryStore()
	engine := NewEngine(
		session.NewStore(),
		NewKeywordClassifier(),
		NewResponder(client),
		&fakeImages{err: errBackendDown},
		feedback.NewRecorder(st),
	)

	reply, err := engine.HandleMessage(context.Background(), "s1", "rate my outfit", []byte{0x1})
	if err != nil {
		t.Fatalf("image store failure must not surface as a handler error: %v", err)
	}
	if reply.Text != imageStoreFailureMsg {
		t.Errorf("expected image failure message, got %q", reply.Text)
	}
	if client.callCount() != 0 {
		t.Error("no backend call should happen when the image save fails")
	}
}

func TestFollowUpAfterAnswer(t *testing.T) {
	client := &scriptedClient{replies: []string{"Wear the lehenga.", "Silver heels would pair nicely."}}
	engine, _ := newTestEngine(client)
	ctx := context.Background()

	if _, err := engine.HandleMessage(ctx, "s1", "What should I wear to a wedding?", nil); err != nil {
		t.Fatal(err)
	}
	reply, err := engine.HandleMessage(ctx, "s1", "and what shoes would go best?", nil)
	if err != nil {
		t.Fatal(err)
	}
	if reply.Intent != models.IntentOccasionStyling {
		t.Errorf("follow-up keeps the answered intent, got %s", reply.Intent)
	}
	if reply.Text != "Silver heels would pair nicely." {
		t.Errorf("unexpected follow-up reply: %q", reply.Text)
	}
	if client.callCount() != 2 {
		t.Errorf("expected two backend calls, got %d", client.callCount())
	}
}

func TestFeedbackBypassesFlow(t *testing.T) {
	client := &scriptedClient{}
	engine, st := newTestEngine(client)
	ctx := context.Background()

	if _, err := engine.HandleMessage(ctx, "s1", "help me dress for an event", nil); err != nil {
		t.Fatal(err)
	}

	reply, err := engine.HandleMessage(ctx, "s1", "4/5 quick and useful", nil)
	if err != nil {
		t.Fatal(err)
	}
	if reply.Text != feedbackThanksReply {
		t.Errorf("expected thanks reply, got %q", reply.Text)
	}
	if reply.Intent != models.IntentOccasionStyling || reply.Phase != models.PhaseCollecting {
		t.Errorf("feedback must leave the active flow untouched, got %s/%s", reply.Intent, reply.Phase)
	}

	records, err := st.ListFeedback()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one feedback record, got %d", len(records))
	}
	if records[0].Rating == nil || *records[0].Rating != 4 {
		t.Errorf("expected rating 4, got %v", records[0].Rating)
	}
	if records[0].Comment != "quick and useful" {
		t.Errorf("unexpected comment: %q", records[0].Comment)
	}
	if client.callCount() != 0 {
		t.Error("feedback handling must not call the backend")
	}
}

func TestFractionOpenerRoutesToFlow(t *testing.T) {
	client := &scriptedClient{}
	engine, st := newTestEngine(client)

	reply, err := engine.HandleMessage(context.Background(), "s1", "3/5 of my wardrobe is black, what goes with it?", nil)
	if err != nil {
		t.Fatal(err)
	}
	if reply.Intent != models.IntentStylePairing {
		t.Errorf("expected style_pairing, got %s", reply.Intent)
	}
	if reply.Text == feedbackThanksReply {
		t.Error("styling request must not be swallowed as feedback")
	}

	records, err := st.ListFeedback()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("expected no feedback recorded, got %d", len(records))
	}
}

func TestGeneralStylingFallback(t *testing.T) {
	client := &scriptedClient{replies: []string{"Minimalism is in this season."}}
	engine, _ := newTestEngine(client)

	reply, err := engine.HandleMessage(context.Background(), "s1", "tell me about current trends", nil)
	if err != nil {
		t.Fatal(err)
	}
	if reply.Intent != models.IntentGeneralStyling {
		t.Errorf("expected general_styling, got %s", reply.Intent)
	}
	if reply.Phase != models.PhaseAnswered {
		t.Errorf("expected ANSWERED, got %s", reply.Phase)
	}
}

func TestCloseSessionDestroysState(t *testing.T) {
	client := &scriptedClient{replies: []string{"Wear the sherwani."}}
	sessions := session.NewStore()
	st := store.NewInMemoryStore()
	engine := NewEngine(sessions, NewKeywordClassifier(), NewResponder(client), &fakeImages{}, feedback.NewRecorder(st))
	ctx := context.Background()

	if _, err := engine.HandleMessage(ctx, "s1", "What should I wear to a wedding?", nil); err != nil {
		t.Fatal(err)
	}
	engine.CloseSession("s1")
	if _, err := sessions.Get("s1"); err != models.ErrSessionNotFound {
		t.Errorf("expected session destroyed, got %v", err)
	}
}
