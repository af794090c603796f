package session

import (
	"errors"
	"sync"
	"testing"

	"github.com/broadway-labs/styleflow/internal/models"
)

func TestGetOrCreateCreatesSession(t *testing.T) {
	s := NewStore()
	sess := s.GetOrCreate("s1")
	if sess.ID != "s1" {
		t.Errorf("expected ID s1, got %q", sess.ID)
	}
	if sess.Slots == nil {
		t.Error("expected slots map initialized")
	}
	if sess.CreatedAt.IsZero() || sess.UpdatedAt.IsZero() {
		t.Error("expected timestamps set")
	}
	if s.Len() != 1 {
		t.Errorf("expected one session, got %d", s.Len())
	}
}

func TestGetStrictMissingSession(t *testing.T) {
	s := NewStore()
	if _, err := s.Get("nope"); !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestUpdateMutatesState(t *testing.T) {
	s := NewStore()
	err := s.Update("s1", func(sess *models.Session) error {
		sess.Intent = models.IntentVacationPlanning
		sess.Slots["destination"] = "goa"
		return nil
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	sess, err := s.Get("s1")
	if err != nil {
		t.Fatal(err)
	}
	if sess.Intent != models.IntentVacationPlanning || sess.Slots["destination"] != "goa" {
		t.Errorf("mutation not visible: %+v", sess)
	}
}

func TestUpdateEmptyID(t *testing.T) {
	s := NewStore()
	err := s.Update("", func(sess *models.Session) error { return nil })
	if !errors.Is(err, models.ErrEmptySessionID) {
		t.Errorf("expected ErrEmptySessionID, got %v", err)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	s := NewStore()
	if err := s.Update("s1", func(sess *models.Session) error {
		sess.Slots["occasion"] = "wedding"
		sess.History = append(sess.History, models.Turn{Role: "user", Content: "hi"})
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	snap := s.GetOrCreate("s1")
	snap.Slots["occasion"] = "tampered"
	snap.History[0].Content = "tampered"

	fresh, err := s.Get("s1")
	if err != nil {
		t.Fatal(err)
	}
	if fresh.Slots["occasion"] != "wedding" {
		t.Error("mutating a snapshot must not affect stored slots")
	}
	if fresh.History[0].Content != "hi" {
		t.Error("mutating a snapshot must not affect stored history")
	}
}

func TestDelete(t *testing.T) {
	s := NewStore()
	s.GetOrCreate("s1")
	s.Delete("s1")
	if _, err := s.Get("s1"); !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("expected session gone, got %v", err)
	}
	// Deleting twice is harmless.
	s.Delete("s1")
}

func TestConcurrentUpdatesAreSerialized(t *testing.T) {
	s := NewStore()
	const n = 100

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Update("s1", func(sess *models.Session) error {
				sess.StallCount++
				return nil
			})
		}()
	}
	wg.Wait()

	sess, err := s.Get("s1")
	if err != nil {
		t.Fatal(err)
	}
	if sess.StallCount != n {
		t.Errorf("expected %d serialized increments, got %d", n, sess.StallCount)
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	s := NewStore()
	_ = s.Update("a", func(sess *models.Session) error {
		sess.Intent = models.IntentStylePairing
		return nil
	})
	b := s.GetOrCreate("b")
	if b.Intent != models.IntentNone {
		t.Errorf("new session must start empty, got %s", b.Intent)
	}
}
