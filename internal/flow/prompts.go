// Package flow holds the prompt templates used to build LLM requests.
package flow

import (
	"sort"
	"strings"

	"github.com/broadway-labs/styleflow/internal/models"
)

// DefaultSystemPrompt identifies the assistant's role and the five services.
// It can be overridden from a file via Responder.LoadSystemPrompt.
const DefaultSystemPrompt = `You are Broadway's fashion styling assistant. You help users through five services:
occasion styling (dressing for an event), vacation planning (packing for a trip),
style pairing (what goes with an item they own), personal styling (whether an item suits them),
and outfit rating (scoring an uploaded outfit photo).
Keep the tone warm and conversational, like a stylish friend who knows current trends.
Tailor advice to an Indian fashion context when no other context is given.`

// structuredBlockInstruction tells the model how to embed the machine-parsable
// portion of its reply. The parser in extract.go strips this block.
const structuredBlockInstruction = `After your advice, append a fenced JSON block in this exact shape:
` + "```json" + `
{"items": ["suggested item", "..."]}
` + "```" + `
List 2-5 concrete, searchable item names.`

const ratingBlockInstruction = `After your feedback, append a fenced JSON block in this exact shape:
` + "```json" + `
{"rating": 7, "items": ["improvement item", "..."]}
` + "```" + `
The rating is an integer from 1 to 10.`

// degradeInstruction is used when local slot extraction has stalled and the
// raw conversation is handed to the model.
const degradeInstruction = `The assistant could not determine the following details from the conversation: %s.
Read the conversation, infer what you can, and ask the user brief, friendly questions for whatever is still unclear. Do not repeat questions the user has already answered.`

var intentInstructions = map[models.Intent]string{
	models.IntentOccasionStyling:  "The user is dressing for a specific occasion. Recommend a complete outfit that fits the occasion and any details below, and explain the choice in one or two sentences.",
	models.IntentVacationPlanning: "The user is packing for a trip. Suggest a packing list of outfits suited to the destination and any details below, grouped by activity or setting.",
	models.IntentStylePairing:     "The user wants pieces that go well with an item they already own. Suggest complementary items that match its style, color, and the occasion if given.",
	models.IntentPersonalStyling:  "The user wants to know whether an item suits them personally. Assess fit, color harmony, and styling, say what works and what to adjust.",
	models.IntentOutfitRating:     "The user uploaded an outfit photo for rating. Rate the outfit, name what works, and suggest one or two concrete improvements.",
	models.IntentGeneralStyling:   "The user's request doesn't match a specific service. Work out what they are looking for and either help directly or ask one to three short clarifying questions.",
}

// buildInstruction assembles the intent-specific instruction, interpolated
// with the collected slot values.
func buildInstruction(intent models.Intent, slots map[string]string, imageRef string) string {
	var b strings.Builder
	b.WriteString(intentInstructions[intent])

	if len(slots) > 0 {
		b.WriteString("\n\nKnown details:")
		names := make([]string, 0, len(slots))
		for name := range slots {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			b.WriteString("\n- ")
			b.WriteString(strings.ReplaceAll(name, "_", " "))
			b.WriteString(": ")
			b.WriteString(slots[name])
		}
	}

	if imageRef != "" && intent == models.IntentOutfitRating {
		b.WriteString("\n\nUploaded outfit photo reference: ")
		b.WriteString(imageRef)
	}

	switch intent {
	case models.IntentOutfitRating:
		b.WriteString("\n\n")
		b.WriteString(ratingBlockInstruction)
	case models.IntentOccasionStyling, models.IntentVacationPlanning, models.IntentStylePairing:
		b.WriteString("\n\n")
		b.WriteString(structuredBlockInstruction)
	}
	return b.String()
}
