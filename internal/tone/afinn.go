package tone

import "strings"

// Text-sentiment fallback used when no audio-derived tone is available for a
// caption. Scores the transcript against a trimmed AFINN word list; crude,
// but it keeps captions from sitting on a permanent blank tone while the
// prosody path is degraded.

var afinnScores = map[string]int{
	"good":          3,
	"great":         3,
	"excellent":     3,
	"happy":         3,
	"love":          3,
	"wonderful":     3,
	"fantastic":     3,
	"amazing":       3,
	"perfect":       3,
	"bad":           -3,
	"terrible":      -3,
	"awful":         -3,
	"horrible":      -3,
	"hate":          -3,
	"worried":       -2,
	"concerned":     -2,
	"serious":       -2,
	"unfortunately": -2,
	"pain":          -2,
	"hurt":          -2,
	"problem":       -2,
	"risk":          -2,
	"danger":        -3,
	"sorry":         -1,
	"difficult":     -1,
	"hard":          -1,
	"ok":            1,
	"fine":          1,
	"well":          1,
	"better":        2,
	"improve":       2,
	"thank":         2,
	"please":        1,
	"help":          1,
}

var negations = map[string]bool{
	"not":     true,
	"no":      true,
	"never":   true,
	"don't":   true,
	"doesn't": true,
	"isn't":   true,
	"won't":   true,
}

// AnalyzeTextSentiment scores text with AFINN word weights and returns a
// provisional tone decision with source "text". A single negation word flips
// the sign of the next scored word.
func AnalyzeTextSentiment(text string) Decision {
	score := 0
	negated := false
	for _, word := range strings.Fields(strings.ToLower(text)) {
		clean := strings.Trim(word, ".,!?;:'\"")

		if negations[clean] {
			negated = true
			continue
		}
		if s, ok := afinnScores[clean]; ok {
			if negated {
				s = -s
			}
			score += s
		}
		negated = false
	}

	switch {
	case score >= 2:
		return Decision{Label: "positively", Confidence: 0.6, Source: "text"}
	case score <= -2:
		return Decision{Label: "with concern", Confidence: 0.6, Source: "text"}
	default:
		return Decision{Label: "speaking", Confidence: 0.5, Source: "text"}
	}
}
