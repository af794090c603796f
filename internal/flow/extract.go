package flow

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/broadway-labs/styleflow/internal/models"
)

// parseStructuredReply splits an LLM reply into its human-readable text and
// the embedded structured extract, if any. The delimiter convention is a
// trailing fenced JSON block; as a fallback, a trailing bare JSON object is
// accepted since models do not always respect the fence. A malformed block is
// treated as absent rather than failing the turn.
func parseStructuredReply(raw string) (string, *models.StructuredExtract) {
	text := strings.TrimSpace(raw)

	if idx := strings.LastIndex(text, "```json"); idx >= 0 {
		block := text[idx+len("```json"):]
		if end := strings.Index(block, "```"); end >= 0 {
			if extract := unmarshalExtract(block[:end]); extract != nil {
				return strings.TrimSpace(text[:idx]), extract
			}
		}
	}

	// Fallback: bare JSON object at the end of the reply.
	if strings.HasSuffix(text, "}") {
		if idx := strings.LastIndex(text, "\n{"); idx >= 0 {
			if extract := unmarshalExtract(text[idx:]); extract != nil {
				return strings.TrimSpace(text[:idx]), extract
			}
		}
	}

	return text, nil
}

func unmarshalExtract(block string) *models.StructuredExtract {
	var extract models.StructuredExtract
	if err := json.Unmarshal([]byte(strings.TrimSpace(block)), &extract); err != nil {
		slog.Debug("flow.unmarshalExtract: discarding malformed structured block", "error", err)
		return nil
	}
	if extract.Rating == nil && len(extract.Items) == 0 {
		return nil
	}
	return &extract
}
