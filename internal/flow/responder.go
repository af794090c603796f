// Package flow provides the response generator that talks to the LLM backend.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openai/openai-go"

	"github.com/broadway-labs/styleflow/internal/genai"
	"github.com/broadway-labs/styleflow/internal/models"
)

// DefaultHistoryWindow bounds how many recent turns are sent as context.
const DefaultHistoryWindow = 10

// GenerationMode selects how the request to the backend is framed.
type GenerationMode string

const (
	// ModeFinal produces the flow's final advice from collected slots.
	ModeFinal GenerationMode = "final"
	// ModeDegraded forwards the raw conversation after slot extraction stalled.
	ModeDegraded GenerationMode = "degraded"
	// ModeGeneral handles the fallback intent with minimal context.
	ModeGeneral GenerationMode = "general"
	// ModeFollowUp continues an answered flow conversationally.
	ModeFollowUp GenerationMode = "followup"
)

// GenerationRequest carries everything the responder needs for one call.
type GenerationRequest struct {
	Mode         GenerationMode
	Intent       models.Intent
	Slots        map[string]string
	History      []models.Turn // prior turns, excluding the current message
	Message      string        // the current user message
	ImageRef     string
	MissingSlots []string // for ModeDegraded: what extraction could not determine
}

// GenerationResult is the parsed backend reply.
type GenerationResult struct {
	Text    string
	Extract *models.StructuredExtract
}

// Responder builds LLM requests and parses replies. It performs at most one
// backend call per turn.
type Responder struct {
	client           genai.ClientInterface
	systemPrompt     string
	systemPromptFile string
	historyWindow    int
}

// NewResponder creates a responder with the default system prompt.
func NewResponder(client genai.ClientInterface) *Responder {
	return &Responder{
		client:        client,
		systemPrompt:  DefaultSystemPrompt,
		historyWindow: DefaultHistoryWindow,
	}
}

// NewResponderWithPromptFile creates a responder whose system prompt is
// loaded from a file, falling back to the default when the file is missing.
func NewResponderWithPromptFile(client genai.ClientInterface, promptFile string) *Responder {
	r := NewResponder(client)
	r.systemPromptFile = promptFile
	return r
}

// SetHistoryWindow overrides the number of recent turns sent as context.
func (r *Responder) SetHistoryWindow(n int) {
	if n > 0 {
		r.historyWindow = n
	}
}

// LoadSystemPrompt loads the system prompt from the configured file.
func (r *Responder) LoadSystemPrompt() error {
	if r.systemPromptFile == "" {
		return nil
	}
	content, err := os.ReadFile(r.systemPromptFile)
	if err != nil {
		slog.Warn("Responder.LoadSystemPrompt: using default system prompt", "file", r.systemPromptFile, "error", err)
		return fmt.Errorf("failed to read system prompt file: %w", err)
	}
	r.systemPrompt = strings.TrimSpace(string(content))
	slog.Info("Responder.LoadSystemPrompt: system prompt loaded", "file", r.systemPromptFile, "length", len(r.systemPrompt))
	return nil
}

// Generate performs one backend call and parses the reply. Failures are
// reported as models.ErrGenerationFailed; the caller leaves flow state
// untouched in that case so the same information is not requested twice.
func (r *Responder) Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	messages := r.buildMessages(req)

	raw, err := r.client.GenerateWithMessages(ctx, messages)
	if err != nil {
		slog.Error("Responder.Generate: backend call failed", "mode", req.Mode, "intent", req.Intent, "error", err)
		return nil, fmt.Errorf("%w: %v", models.ErrGenerationFailed, err)
	}
	if strings.TrimSpace(raw) == "" {
		slog.Error("Responder.Generate: backend returned empty reply", "mode", req.Mode, "intent", req.Intent)
		return nil, fmt.Errorf("%w: empty reply", models.ErrGenerationFailed)
	}

	text, extract := parseStructuredReply(raw)
	slog.Debug("Responder.Generate: reply parsed", "mode", req.Mode, "intent", req.Intent,
		"textLength", len(text), "hasExtract", extract != nil)
	return &GenerationResult{Text: text, Extract: extract}, nil
}

// buildMessages assembles the chat request: system preamble, intent
// instruction, bounded history window, then the current user message.
func (r *Responder) buildMessages(req GenerationRequest) []openai.ChatCompletionMessageParamUnion {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(r.systemPrompt),
	}

	switch req.Mode {
	case ModeFinal:
		messages = append(messages, openai.SystemMessage(buildInstruction(req.Intent, req.Slots, req.ImageRef)))
	case ModeDegraded:
		missing := strings.Join(req.MissingSlots, ", ")
		if missing == "" {
			missing = "the remaining details"
		}
		messages = append(messages, openai.SystemMessage(fmt.Sprintf(degradeInstruction, missing)))
	case ModeGeneral:
		messages = append(messages, openai.SystemMessage(intentInstructions[models.IntentGeneralStyling]))
	case ModeFollowUp:
		messages = append(messages, openai.SystemMessage("The user is following up on the advice above. Answer in context; do not restart the consultation."))
	}

	for _, turn := range boundHistory(req.History, r.historyWindow) {
		switch turn.Role {
		case "user":
			messages = append(messages, openai.UserMessage(turn.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(turn.Content))
		}
	}

	if req.Message != "" {
		messages = append(messages, openai.UserMessage(req.Message))
	}
	return messages
}

// boundHistory returns the last window exchanges (two messages per turn).
func boundHistory(history []models.Turn, window int) []models.Turn {
	limit := window * 2
	if len(history) <= limit {
		return history
	}
	return history[len(history)-limit:]
}
