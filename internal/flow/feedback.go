package flow

import (
	"regexp"
	"strings"
)

// Feedback-bearing messages are detected with narrow patterns so ordinary
// styling questions ("rate my outfit") never match. A leading "N/5" carries a
// rating; "feedback:" and thumbs phrases carry comments.
var ratingMessageRe = regexp.MustCompile(`^\s*([1-5])\s*/\s*5\b[\s:,.!-]*(.*)$`)

// detectFeedback reports whether the message is a feedback message rather
// than a styling request, and extracts its rating and/or comment. A leading
// fraction followed by a service trigger ("3/5 of my wardrobe... what goes
// with it?") is a styling request, not feedback.
func detectFeedback(message string) (*int, string, bool) {
	if m := ratingMessageRe.FindStringSubmatch(message); m != nil {
		comment := strings.TrimSpace(m[2])
		if !containsTrigger(comment) {
			rating := int(m[1][0] - '0')
			return &rating, comment, true
		}
	}

	lower := strings.ToLower(strings.TrimSpace(message))
	if rest, ok := strings.CutPrefix(lower, "feedback:"); ok {
		return nil, strings.TrimSpace(rest), true
	}
	if strings.HasPrefix(lower, "thumbs up") {
		rating := 5
		return &rating, strings.TrimSpace(message), true
	}
	if strings.HasPrefix(lower, "thumbs down") {
		rating := 1
		return &rating, strings.TrimSpace(message), true
	}
	return nil, "", false
}

// containsTrigger reports whether the text contains any service trigger
// phrase, meaning it should be routed as a styling request.
func containsTrigger(text string) bool {
	lower := strings.ToLower(text)
	for _, phrases := range triggers {
		for _, phrase := range phrases {
			if strings.Contains(lower, phrase) {
				return true
			}
		}
	}
	return false
}
