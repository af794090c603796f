// Package flow provides intent classification for incoming messages.
package flow

import (
	"context"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"

	"github.com/broadway-labs/styleflow/internal/genai"
	"github.com/broadway-labs/styleflow/internal/models"
)

// Classification is the outcome of classifying one message.
type Classification struct {
	Intent   models.Intent
	Continue bool   // true when the in-progress flow should keep running
	Matched  string // trigger phrase that decided the intent, for logging
}

// Classifier maps a free-text message plus session state to an intent.
// Implementations must be swappable; the keyword baseline is always available
// for fast-path matching without a network call.
type Classifier interface {
	Classify(ctx context.Context, message string, sess *models.Session, hasImage bool) Classification
}

// triggers maps each service intent to its trigger phrases. Matching is
// case-insensitive substring matching; the longest matched phrase wins.
var triggers = map[models.Intent][]string{
	models.IntentOccasionStyling: {
		"wedding", "interview", "party", "event", "occasion", "graduation",
		"what should i wear to", "dress for", "brunch", "concert", "festival",
	},
	models.IntentVacationPlanning: {
		"pack", "packing", "trip", "vacation", "holiday", "getaway", "travelling", "traveling",
	},
	models.IntentStylePairing: {
		"goes with", "go with", "goes well with", "pair with", "pair this", "what to wear with", "match with",
	},
	models.IntentPersonalStyling: {
		"suit me", "suits me", "look good on me", "looks good on me", "flatter me", "my body type", "my skin tone",
	},
	models.IntentOutfitRating: {
		"rate my", "rate this", "ootd", "otd", "outfit check", "how do i look", "score my outfit",
	},
}

// KeywordClassifier is the heuristic baseline classifier.
type KeywordClassifier struct{}

// NewKeywordClassifier creates the baseline keyword classifier.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

// Classify matches the message against intent trigger phrases.
//
// Tie-break policy: longest trigger phrase wins; among equal-length matches
// the active flow's intent is preferred, then OutfitRating when an image is
// attached (the strongest signal), then general styling. With an active flow
// and no topic-switch signal the classification is Continue.
func (c *KeywordClassifier) Classify(ctx context.Context, message string, sess *models.Session, hasImage bool) Classification {
	lower := strings.ToLower(message)

	type match struct {
		intent models.Intent
		phrase string
	}
	var matches []match
	longest := 0
	for intent, phrases := range triggers {
		for _, phrase := range phrases {
			if !strings.Contains(lower, phrase) {
				continue
			}
			if len(phrase) > longest {
				longest = len(phrase)
				matches = matches[:0]
			}
			if len(phrase) == longest {
				matches = append(matches, match{intent, phrase})
			}
		}
	}

	// Equal-length triggers of the same intent are one match, not a tie.
	seen := make(map[models.Intent]bool, len(matches))
	distinct := matches[:0]
	for _, m := range matches {
		if !seen[m.intent] {
			seen[m.intent] = true
			distinct = append(distinct, m)
		}
	}
	matches = distinct

	active := sess != nil && sess.Intent != models.IntentNone && sess.Intent != models.IntentGeneralStyling

	if len(matches) == 0 {
		if active {
			slog.Debug("KeywordClassifier.Classify: continuing active flow", "sessionID", sess.ID, "intent", sess.Intent)
			return Classification{Intent: sess.Intent, Continue: true}
		}
		if hasImage {
			return Classification{Intent: models.IntentOutfitRating, Matched: "image attachment"}
		}
		return Classification{Intent: models.IntentGeneralStyling}
	}

	// A single dominant trigger decides directly. When it matches the active
	// flow's own intent this is not a topic switch.
	if len(matches) == 1 {
		m := matches[0]
		if active && m.intent == sess.Intent {
			return Classification{Intent: sess.Intent, Continue: true, Matched: m.phrase}
		}
		slog.Debug("KeywordClassifier.Classify: matched trigger", "intent", m.intent, "phrase", m.phrase)
		return Classification{Intent: m.intent, Matched: m.phrase}
	}

	// Multiple intents tied on phrase length.
	if active {
		for _, m := range matches {
			if m.intent == sess.Intent {
				return Classification{Intent: sess.Intent, Continue: true, Matched: m.phrase}
			}
		}
	}
	if hasImage {
		for _, m := range matches {
			if m.intent == models.IntentOutfitRating {
				return Classification{Intent: models.IntentOutfitRating, Matched: m.phrase}
			}
		}
		return Classification{Intent: models.IntentOutfitRating, Matched: "image attachment"}
	}
	slog.Debug("KeywordClassifier.Classify: unresolved tie, falling back to general styling", "candidates", len(matches))
	return Classification{Intent: models.IntentGeneralStyling}
}

// GenAIClassifier wraps a baseline classifier and consults the LLM backend
// only when the baseline falls through to general styling. The baseline
// remains the fast path; a backend failure silently keeps the baseline result.
type GenAIClassifier struct {
	base   Classifier
	client genai.ClientInterface
}

// NewGenAIClassifier creates an LLM-backed classifier around a baseline.
func NewGenAIClassifier(base Classifier, client genai.ClientInterface) *GenAIClassifier {
	return &GenAIClassifier{base: base, client: client}
}

const classifierSystemPrompt = `You are the intent router for a fashion styling assistant offering five services.
Reply with exactly one of these tokens and nothing else:
occasion_styling - dressing for a specific event
vacation_planning - packing or shopping for a trip
style_pairing - what goes well with an item the user already owns
personal_styling - whether an item would suit the user personally
outfit_rating - rating an outfit or photo
general_styling - none of the above`

// Classify delegates to the baseline and escalates unresolved messages to the LLM.
func (c *GenAIClassifier) Classify(ctx context.Context, message string, sess *models.Session, hasImage bool) Classification {
	result := c.base.Classify(ctx, message, sess, hasImage)
	if result.Intent != models.IntentGeneralStyling || result.Continue {
		return result
	}

	reply, err := c.client.GenerateWithMessages(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(classifierSystemPrompt),
		openai.UserMessage(message),
	})
	if err != nil {
		slog.Warn("GenAIClassifier.Classify: backend classification failed, keeping baseline result", "error", err)
		return result
	}

	intent := models.Intent(strings.TrimSpace(strings.ToLower(reply)))
	if !models.IsValidIntent(intent) {
		slog.Warn("GenAIClassifier.Classify: unrecognized intent from backend", "reply", reply)
		return result
	}
	slog.Debug("GenAIClassifier.Classify: backend resolved intent", "intent", intent)
	return Classification{Intent: intent, Matched: "llm classification"}
}
