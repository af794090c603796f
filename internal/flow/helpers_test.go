package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/openai/openai-go"
)

// scriptedClient returns canned replies in order and counts calls. The last
// reply repeats when the script runs out.
type scriptedClient struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   int
}

func (c *scriptedClient) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	if len(c.replies) == 0 {
		return "canned reply", nil
	}
	idx := c.calls - 1
	if idx >= len(c.replies) {
		idx = len(c.replies) - 1
	}
	return c.replies[idx], nil
}

func (c *scriptedClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// fakeImages hands out deterministic references without touching disk.
type fakeImages struct {
	mu    sync.Mutex
	err   error
	saved int
}

func (f *fakeImages) Save(ctx context.Context, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.saved++
	return fmt.Sprintf("img:test-%d", f.saved), nil
}

var errBackendDown = errors.New("backend unavailable")
