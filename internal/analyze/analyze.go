// Package analyze extracts task state from a captured conversation:
// task description, decisions, blockers, and completed steps.
// Grounded on the teacher's lexical/structural extraction style
// (internal/insight's heuristic-driven generation path) generalized
// from "build a summary prompt" to "extract task/decisions/blockers".
package analyze

import (
	"regexp"
	"strings"

	"github.com/wesm/braindump/internal/dedup"
	"github.com/wesm/braindump/internal/session"
)

var sentenceSplitRe = regexp.MustCompile(`(?:[.!?]+\s+|\n+)`)

var decisionMarkers = []string{
	"decided to", "will use", "approach:", "going with", "chose to",
}

var blockerMarkers = []string{
	"blocked by", "waiting on", "cannot", "can't", "fails with",
	"rate limit", "rate-limited",
}

var completedMarkers = []string{
	"done", "completed", "finished",
}

// Result is the analyzer's extracted task state, merged onto
// session.Task by the caller.
type Result struct {
	TaskDescription string
	Completed       []string
	Decisions       []string
	Blockers        []string
}

// Analyze scans an ordered message list for task state. It never
// fails; absence of a signal yields an empty list.
func Analyze(messages []session.Message) Result {
	var r Result

	decisions := dedup.NewBuilder()
	blockers := dedup.NewBuilder()
	completed := dedup.NewBuilder()
	seen := make(map[string]bool)

	for _, m := range messages {
		if m.Role != session.RoleAssistant && m.Role != session.RoleUser {
			continue
		}
		if r.TaskDescription == "" && m.Role == session.RoleUser {
			r.TaskDescription = firstSentence(m.Content)
		}
		if m.Role != session.RoleAssistant {
			continue
		}
		for _, sentence := range splitSentences(m.Content) {
			// The splitter drops the terminal punctuation of every sentence
			// but the last, so compare repeats without it.
			key := strings.TrimRight(sentence, ".!?")
			if seen[key] {
				continue
			}
			seen[key] = true
			lower := strings.ToLower(sentence)
			switch {
			case containsAny(lower, decisionMarkers):
				decisions.Add(sentence)
			case containsAny(lower, blockerMarkers):
				blockers.Add(sentence)
			case containsAny(lower, completedMarkers) && looksPastTense(lower):
				completed.Add(sentence)
			}
		}
	}

	if r.TaskDescription == "" {
		r.TaskDescription = "Unknown task"
	}
	r.Decisions = decisions.Values()
	r.Blockers = blockers.Values()
	r.Completed = completed.Values()
	return r
}

func splitSentences(text string) []string {
	parts := sentenceSplitRe.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// looksPastTense is a cheap heuristic for "assistant statements
// past-tense about file writes": a completed/done/finished mention
// plus a verb ending in -ed, or the word "wrote"/"created"/"fixed".
func looksPastTense(lower string) bool {
	for _, verb := range []string{"wrote", "created", "fixed", "added", "updated", "removed"} {
		if strings.Contains(lower, verb) {
			return true
		}
	}
	return strings.Contains(lower, "ed ") || strings.HasSuffix(lower, "ed")
}

func firstSentence(text string) string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return ""
	}
	s := sentences[0]
	const maxLen = 200
	if len(s) > maxLen {
		return s[:maxLen]
	}
	return s
}
