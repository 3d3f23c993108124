package conversation

import (
	"strings"
	"time"
)

// Keyword sets for the outcome heuristics. Matching is case-insensitive
// substring search over the accumulated transcript.
var (
	callbackPhrases   = []string{"yes, schedule", "book a call", "interested in meeting"}
	interestedPhrases = []string{"sounds good", "interested", "tell me more"}
	rejectionPhrases  = []string{"not interested", "no thanks", "busy"}

	qualifyingWords = []string{"budget", "timeline", "decision"}
	contactWords    = []string{"email", "contact", "schedule"}
	stallingWords   = []string{"busy", "not now", "call back later"}
)

// classifyOutcome maps a finished conversation to an outcome by first
// match in priority order: an explicit callback request always wins,
// then interest signals, then rejections, else incomplete.
func classifyOutcome(transcript string, callbackRequested bool) Outcome {
	t := strings.ToLower(transcript)

	if callbackRequested || containsAny(t, callbackPhrases) {
		return OutcomeCallbackRequested
	}
	if containsAny(t, interestedPhrases) {
		return OutcomeInterested
	}
	if containsAny(t, rejectionPhrases) {
		return OutcomeNotInterested
	}
	return OutcomeIncomplete
}

// leadScore scores conversation quality on a 0-100 scale, starting at a
// neutral 50 and adjusting for duration and keyword signals.
func leadScore(transcript string, duration time.Duration) int {
	score := 50
	t := strings.ToLower(transcript)

	switch {
	case duration > 120*time.Second:
		score += 20
	case duration > 60*time.Second:
		score += 10
	}

	if containsAny(t, qualifyingWords) {
		score += 15
	}
	if containsAny(t, contactWords) {
		score += 10
	}
	if containsAny(t, stallingWords) {
		score -= 10
	}

	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return score
}

// extractDetails builds the opaque details map persisted with the
// outcome. The engagement threshold uses the same duration comparison
// as leadScore, so a call scored for length is also marked high.
func extractDetails(userPhone string, userDetails map[string]any, duration time.Duration) map[string]any {
	engagement := "medium"
	if duration > 120*time.Second {
		engagement = "high"
	}
	return map[string]any{
		"phone":            userPhone,
		"initial_details":  userDetails,
		"duration_seconds": int(duration.Seconds()),
		"engagement_level": engagement,
	}
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
