// Package testutil provides common test utilities and helpers for Styleflow tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/openai/openai-go"

	"github.com/broadway-labs/styleflow/internal/api"
	"github.com/broadway-labs/styleflow/internal/feedback"
	"github.com/broadway-labs/styleflow/internal/flow"
	"github.com/broadway-labs/styleflow/internal/session"
	"github.com/broadway-labs/styleflow/internal/store"
)

// MockGenAIClient is a scripted stand-in for the LLM backend. Replies are
// returned in order; the last reply repeats once the script runs out. A
// non-nil Err fails every call.
type MockGenAIClient struct {
	mu      sync.Mutex
	Replies []string
	Err     error
	Calls   int
}

// GenerateWithMessages returns the next scripted reply.
func (m *MockGenAIClient) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Replies) == 0 {
		return "mock reply", nil
	}
	idx := m.Calls - 1
	if idx >= len(m.Replies) {
		idx = len(m.Replies) - 1
	}
	return m.Replies[idx], nil
}

// CallCount reports how many backend calls were made.
func (m *MockGenAIClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

// MockImageStore stores nothing and hands out deterministic references.
type MockImageStore struct {
	mu    sync.Mutex
	Err   error
	Saved int
}

// Save returns a fake image reference or the configured error.
func (m *MockImageStore) Save(ctx context.Context, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	m.Saved++
	return fmt.Sprintf("img:mock-%d", m.Saved), nil
}

// NewTestServer creates a test API server with in-memory dependencies and a
// scripted LLM backend. This centralizes the wiring used across test files.
func NewTestServer(client *MockGenAIClient) (*api.Server, store.Store) {
	if client == nil {
		client = &MockGenAIClient{}
	}
	st := store.NewInMemoryStore()
	recorder := feedback.NewRecorder(st)
	engine := flow.NewEngine(
		session.NewStore(),
		flow.NewKeywordClassifier(),
		flow.NewResponder(client),
		&MockImageStore{},
		recorder,
	)
	return api.NewServer(engine, recorder, st), st
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes JSON response and validates the status field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}

	return response
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	return req
}
