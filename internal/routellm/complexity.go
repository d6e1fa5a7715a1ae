package routellm

import (
	"math"
	"strings"
	"unicode"
)

const (
	// Word count at which the length component saturates
	lengthSaturationWords = 60
	lengthWeight          = 0.45

	reasoningWeight = 0.20
	depthWeight     = 0.15
	codeWeight      = 0.10
	questionsWeight = 0.10
	sentencesWeight = 0.05
)

// Words that signal the query needs reasoning, not recall
var reasoningWords = map[string]bool{
	"why": true, "explain": true, "analyze": true, "analyse": true,
	"compare": true, "evaluate": true, "strategy": true, "plan": true,
	"tradeoff": true, "tradeoffs": true, "reflect": true, "interpret": true,
	"prioritize": true, "diagnose": true,
}

var depthPhrases = []string{
	"step by step", "in detail", "detailed", "comprehensive", "thorough",
	"deep dive", "long-term", "long term", "pros and cons", "trade-off",
	"root cause", "what if",
}

var codeMarkers = []string{"```", "func ", "def ", "=>", "{", "};"}

// Prior difficulty of each feature's typical request
var featurePriors = map[Feature]float64{
	FeatureChatCoaching:        0.05,
	FeaturePersonalityAnalysis: 0.30,
	FeatureGoalPlanning:        0.20,
	FeatureJournalReflection:   0.15,
	FeatureWeeklyReport:        0.25,
	FeatureQuickTip:            0,
}

// ScoreComplexity estimates how demanding a query is, from 0 (trivial) to 1.
// The score is deterministic and never decreases as whole words are appended.
// Extending the last word can lose a cue ("why" matches, "whys" does not).
func ScoreComplexity(query string, feature Feature) float64 {
	text := strings.ToLower(query)
	words := strings.Fields(text)

	score := math.Min(1, float64(len(words))/lengthSaturationWords) * lengthWeight

	for _, w := range words {
		if reasoningWords[strings.TrimFunc(w, isEdgePunct)] {
			score += reasoningWeight
			break
		}
	}
	if containsAny(text, depthPhrases) {
		score += depthWeight
	}
	if containsAny(text, codeMarkers) {
		score += codeWeight
	}
	if strings.Count(text, "?") >= 2 {
		score += questionsWeight
	}
	if countSentences(text) > 3 {
		score += sentencesWeight
	}

	score += featurePriors[feature]

	return clamp01(score)
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

func countSentences(text string) int {
	return strings.Count(text, ".") + strings.Count(text, "!") + strings.Count(text, "?")
}

func isEdgePunct(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
