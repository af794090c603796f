// Package flow implements the dialogue routing core: intent classification,
// per-intent slot collection state machines, and response generation.
package flow

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/broadway-labs/styleflow/internal/models"
)

// SlotExtractor attempts to pull a slot value out of a user message.
// Extraction is deliberately shallow keyword/pattern matching; anything it
// cannot determine locally is delegated to the LLM via the degrade path.
type SlotExtractor func(message string) (string, bool)

// SlotSpec describes one slot a flow collects.
type SlotSpec struct {
	Name     string
	Question string // clarifying question asked while the slot is empty
	Extract  SlotExtractor
}

// Schema is the slot schema for one intent.
type Schema struct {
	Intent   models.Intent
	Required []SlotSpec
	Optional []SlotSpec
}

var (
	dateRe     = regexp.MustCompile(`(?i)\b(today|tonight|tomorrow|this (?:weekend|week|evening)|next (?:week|month|year|monday|tuesday|wednesday|thursday|friday|saturday|sunday)|in \d+ (?:days?|weeks?))\b`)
	budgetRe   = regexp.MustCompile(`(?i)\b(?:under|around|about|budget(?: of| is)?|upto|up to)\s*(?:rs\.?|₹|\$)?\s*(\d[\d,]*k?)\b`)
	durationRe = regexp.MustCompile(`(?i)\b(\d+)\s*[- ]?\s*(days?|weeks?|nights?)\b`)
	seasonRe   = regexp.MustCompile(`(?i)\b(summer|winter|monsoon|spring|autumn|fall|rainy season)\b`)
	pairWithRe = regexp.MustCompile(`(?i)\bwith (?:my |a |an |the |this )?([a-z][a-z0-9 \-']{2,40}?)(?:[.!?,]|$)`)
	suitMeRe   = regexp.MustCompile(`(?i)\b(?:do|does|would|will)\s+(?:a |an |the |this |these |those )?(.{3,40}?)\s+(?:suit me|suits me|look good on me|looks good on me|flatter me|work on me)`)
	tripToRe   = regexp.MustCompile(`(?i)\b(?:trip to|travelling to|traveling to|going to|visiting|vacation in|holiday in|flying to|pack(?:ing)? for)\s+(?:a |an |the )?([a-z][a-z \-']{2,30}?)(?:\s+(?:next|this|in|for|on)\b|[.!?,]|$)`)
)

var occasionKeywords = []string{
	"wedding", "interview", "party", "date night", "brunch", "concert",
	"festival", "graduation", "office", "work", "meeting", "reception",
	"birthday", "dinner", "funeral",
}

var locationKeywords = []string{
	"beach", "outdoor", "indoors", "indoor", "restaurant", "office", "home", "rooftop", "club",
}

var bodyTypeKeywords = []string{
	"petite", "tall", "curvy", "athletic", "slim", "plus-size", "plus size", "broad shoulders",
}

var skinToneKeywords = []string{
	"fair skin", "dusky", "olive skin", "dark skin", "wheatish", "pale skin",
}

func keywordExtractor(keywords []string) SlotExtractor {
	return func(message string) (string, bool) {
		lower := strings.ToLower(message)
		best := ""
		for _, kw := range keywords {
			if strings.Contains(lower, kw) && len(kw) > len(best) {
				best = kw
			}
		}
		return best, best != ""
	}
}

func regexExtractor(re *regexp.Regexp) SlotExtractor {
	return func(message string) (string, bool) {
		m := re.FindStringSubmatch(message)
		if len(m) < 2 {
			return "", false
		}
		v := strings.TrimSpace(strings.ToLower(m[1]))
		return v, v != ""
	}
}

func genderExtractor(message string) (string, bool) {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "men's") || strings.Contains(lower, "mens ") ||
		strings.Contains(lower, "for him") || strings.Contains(lower, " male"):
		return "male", true
	case strings.Contains(lower, "women's") || strings.Contains(lower, "womens ") ||
		strings.Contains(lower, "for her") || strings.Contains(lower, " female"):
		return "female", true
	}
	return "", false
}

var schemas = map[models.Intent]Schema{
	models.IntentOccasionStyling: {
		Intent: models.IntentOccasionStyling,
		Required: []SlotSpec{
			{Name: "occasion", Question: "What's the occasion you're dressing for?", Extract: keywordExtractor(occasionKeywords)},
		},
		Optional: []SlotSpec{
			{Name: "date", Question: "When is it happening?", Extract: regexExtractor(dateRe)},
			{Name: "location", Question: "Where will it be?", Extract: keywordExtractor(locationKeywords)},
			{Name: "budget", Question: "What's your budget?", Extract: regexExtractor(budgetRe)},
			{Name: "gender", Question: "Are we looking at men's or women's styles?", Extract: genderExtractor},
		},
	},
	models.IntentVacationPlanning: {
		Intent: models.IntentVacationPlanning,
		Required: []SlotSpec{
			{Name: "destination", Question: "Where are you headed?", Extract: regexExtractor(tripToRe)},
		},
		Optional: []SlotSpec{
			{Name: "duration", Question: "How long is the trip?", Extract: func(m string) (string, bool) {
				match := durationRe.FindStringSubmatch(m)
				if len(match) < 3 {
					return "", false
				}
				return strings.ToLower(match[1] + " " + match[2]), true
			}},
			{Name: "season", Question: "What season will it be there?", Extract: regexExtractor(seasonRe)},
		},
	},
	models.IntentStylePairing: {
		Intent: models.IntentStylePairing,
		Required: []SlotSpec{
			{Name: "base_item", Question: "Which piece are we building around?", Extract: regexExtractor(pairWithRe)},
		},
		Optional: []SlotSpec{
			{Name: "occasion", Question: "Any particular occasion in mind?", Extract: keywordExtractor(occasionKeywords)},
		},
	},
	models.IntentPersonalStyling: {
		Intent: models.IntentPersonalStyling,
		Required: []SlotSpec{
			{Name: "item", Question: "Which item are you wondering about?", Extract: regexExtractor(suitMeRe)},
		},
		Optional: []SlotSpec{
			{Name: "body_type", Question: "How would you describe your body type?", Extract: keywordExtractor(bodyTypeKeywords)},
			{Name: "skin_tone", Question: "What's your skin tone?", Extract: keywordExtractor(skinToneKeywords)},
		},
	},
	// OutfitRating collects no text slots; it is gated on a pending image
	// reference instead (see Engine).
	models.IntentOutfitRating: {
		Intent: models.IntentOutfitRating,
	},
}

// SchemaFor returns the slot schema for an intent. The fallback
// general-styling intent has no schema and returns false.
func SchemaFor(intent models.Intent) (Schema, bool) {
	s, ok := schemas[intent]
	return s, ok
}

// ExtractInto runs every extractor over the message and fills empty slots.
// It returns the number of newly filled slots. Already-collected values are
// never overwritten within a flow.
func (s Schema) ExtractInto(message string, slots map[string]string) int {
	filled := 0
	for _, spec := range append(append([]SlotSpec{}, s.Required...), s.Optional...) {
		if slots[spec.Name] != "" || spec.Extract == nil {
			continue
		}
		if v, ok := spec.Extract(message); ok {
			slots[spec.Name] = v
			filled++
		}
	}
	return filled
}

// MissingRequired lists required slots that are still empty, in schema order.
func (s Schema) MissingRequired(slots map[string]string) []string {
	var missing []string
	for _, spec := range s.Required {
		if slots[spec.Name] == "" {
			missing = append(missing, spec.Name)
		}
	}
	return missing
}

// ClarifyingQuestion bundles the questions for up to two missing slots into a
// single message, mirroring how a stylist would ask.
func (s Schema) ClarifyingQuestion(missing []string) string {
	if len(missing) == 0 {
		return ""
	}
	questions := make([]string, 0, 2)
	for _, name := range missing {
		for _, spec := range s.Required {
			if spec.Name == name && spec.Question != "" {
				questions = append(questions, spec.Question)
			}
		}
		if len(questions) == 2 {
			break
		}
	}
	if len(questions) == 0 {
		return fmt.Sprintf("Could you tell me more about the %s?", strings.ReplaceAll(missing[0], "_", " "))
	}
	return strings.Join(questions, " ")
}
