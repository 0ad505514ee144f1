// Package compress packs a captured session's content into
// priority-ranked layers under a token budget. Grounded on the
// teacher's layered-report construction in internal/summary/prompt.go
// (strings.Builder-based section assembly), generalized into a Layer
// type and the monotonic packing algorithm of spec.md §4.5.
package compress

import (
	"fmt"
	"strings"

	"github.com/wesm/braindump/internal/registry"
	"github.com/wesm/braindump/internal/session"
	"github.com/wesm/braindump/internal/tokenest"
)

// Layer priorities, lower sorts first. 4.5 sits between the project
// context and session-overview layers per spec.md's table.
const (
	PriorityTaskState       = 1
	PriorityActiveFiles     = 2
	PriorityDecisions       = 3
	PriorityProjectContext  = 4
	PriorityToolActivity    = 4.5
	PrioritySessionOverview = 5
	PriorityRecentMessages  = 6
	PriorityFullHistory     = 7
)

const recentMessageCount = 20

// Layer is one section of the handoff document.
type Layer struct {
	Name     string
	Priority float64
	Content  string
	Tokens   int
}

// Result is the packing outcome: the layers actually emitted (in
// priority order), the names of layers dropped for budget, and the
// total tokens spent.
type Result struct {
	Included []Layer
	Dropped  []string
	Tokens   int
}

// Build constructs all eight layers for cs and packs them against
// the usable-token budget for target (an AgentID, "file", or
// "clipboard"; unknown targets use registry.GenericFileBudget).
func Build(cs *session.Captured, target string) Result {
	return BuildWithBudget(cs, registry.BudgetFor(target))
}

// BuildWithBudget is Build with an explicit token budget, used when
// the caller has its own override (e.g. the --tokens flag) instead
// of the registry's per-target default.
func BuildWithBudget(cs *session.Captured, budget int) Result {
	layers := buildLayers(cs)
	return pack(layers, budget)
}

func buildLayers(cs *session.Captured) []Layer {
	layers := []Layer{
		newLayer("Task state", PriorityTaskState, renderTaskState(cs)),
		newLayer("Active files", PriorityActiveFiles, renderActiveFiles(cs)),
		newLayer("Decisions & blockers", PriorityDecisions, renderDecisionsBlockers(cs)),
		newLayer("Project context", PriorityProjectContext, renderProjectContext(cs)),
		newLayer("Tool activity", PriorityToolActivity, renderToolActivity(cs)),
		newLayer("Session overview", PrioritySessionOverview, renderSessionOverview(cs)),
		newLayer("Recent messages", PriorityRecentMessages, renderRecentMessages(cs)),
		newLayer("Full history", PriorityFullHistory, renderFullHistory(cs)),
	}
	return layers
}

func newLayer(name string, priority float64, content string) Layer {
	return Layer{
		Name:     name,
		Priority: priority,
		Content:  content,
		Tokens:   tokenest.Estimate(content),
	}
}

// pack sorts layers by priority ascending, always emits priorities
// 1–3, and includes subsequent layers while the running total stays
// within budget; the first overflowing layer and every
// strictly-lower-priority layer after it are dropped.
func pack(layers []Layer, budget int) Result {
	sortByPriority(layers)

	var result Result
	overflowed := false
	for _, l := range layers {
		if l.Priority <= PriorityDecisions {
			result.Included = append(result.Included, l)
			result.Tokens += l.Tokens
			continue
		}
		if overflowed {
			result.Dropped = append(result.Dropped, l.Name)
			continue
		}
		if result.Tokens+l.Tokens > budget {
			overflowed = true
			result.Dropped = append(result.Dropped, l.Name)
			continue
		}
		result.Included = append(result.Included, l)
		result.Tokens += l.Tokens
	}
	return result
}

func sortByPriority(layers []Layer) {
	for i := 1; i < len(layers); i++ {
		for j := i; j > 0 && layers[j].Priority < layers[j-1].Priority; j-- {
			layers[j], layers[j-1] = layers[j-1], layers[j]
		}
	}
}

func renderTaskState(cs *session.Captured) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n", cs.Task.Description)
	if cs.Task.InProgress != "" {
		fmt.Fprintf(&b, "In progress: %s\n", cs.Task.InProgress)
	}
	writeBulletList(&b, "Completed", cs.Task.Completed)
	writeBulletList(&b, "Remaining", cs.Task.Remaining)
	writeBulletList(&b, "Blockers", cs.Task.Blockers)
	return strings.TrimRight(b.String(), "\n")
}

func renderActiveFiles(cs *session.Captured) string {
	if len(cs.FileChanges) == 0 {
		return "No file changes recorded."
	}
	var b strings.Builder
	for _, fc := range cs.FileChanges {
		fmt.Fprintf(&b, "- [%s] %s", fc.Type, fc.Path)
		if fc.Language != "" {
			fmt.Fprintf(&b, " (%s)", fc.Language)
		}
		b.WriteString("\n")
		if fc.Diff != "" {
			fmt.Fprintf(&b, "  %s\n", fc.Diff)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderDecisionsBlockers(cs *session.Captured) string {
	var b strings.Builder
	writeBulletList(&b, "Decisions", cs.Decisions)
	writeBulletList(&b, "Blockers", cs.Blockers)
	if b.Len() == 0 {
		return "No decisions or blockers recorded."
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderProjectContext(cs *session.Captured) string {
	p := cs.Project
	var b strings.Builder
	if p.Name != "" {
		fmt.Fprintf(&b, "Project: %s\n", p.Name)
	}
	if p.Path != "" {
		fmt.Fprintf(&b, "Path: %s\n", p.Path)
	}
	if p.GitBranch != "" {
		fmt.Fprintf(&b, "Branch: %s\n", p.GitBranch)
	}
	if p.GitStatus != "" {
		fmt.Fprintf(&b, "Status: %s\n", p.GitStatus)
	}
	if len(p.GitLog) > 0 {
		b.WriteString("Recent commits:\n")
		for _, l := range p.GitLog {
			fmt.Fprintf(&b, "  %s\n", l)
		}
	}
	if p.Tree != "" {
		b.WriteString("Directory tree:\n")
		b.WriteString(p.Tree)
		b.WriteString("\n")
	}
	if p.Memory != "" {
		b.WriteString("Memory:\n")
		b.WriteString(p.Memory)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderToolActivity(cs *session.Captured) string {
	if len(cs.ToolActivity) == 0 {
		return ""
	}
	var b strings.Builder
	for _, ta := range cs.ToolActivity {
		fmt.Fprintf(&b, "- %s: %d calls\n", ta.Category, ta.Count)
		for _, s := range ta.Samples {
			fmt.Fprintf(&b, "  %s\n", s)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderSessionOverview(cs *session.Captured) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Agent: %s\n", cs.Source)
	fmt.Fprintf(&b, "Session: %s\n", cs.SessionID)
	fmt.Fprintf(&b, "Messages: %d\n", cs.Conversation.MessageCount)
	fmt.Fprintf(&b, "Estimated tokens: %d\n", cs.Conversation.EstimatedTokens)
	if cs.SessionStartedAt != nil {
		fmt.Fprintf(&b, "Started: %s\n", cs.SessionStartedAt.Format("2006-01-02 15:04:05"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderRecentMessages(cs *session.Captured) string {
	msgs := cs.Conversation.Messages
	start := 0
	if len(msgs) > recentMessageCount {
		start = len(msgs) - recentMessageCount
	}
	return renderMessages(msgs[start:])
}

func renderFullHistory(cs *session.Captured) string {
	msgs := cs.Conversation.Messages
	if len(msgs) <= recentMessageCount {
		return ""
	}
	return renderMessages(msgs[:len(msgs)-recentMessageCount])
}

func renderMessages(msgs []session.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&b, "[%s] %s\n", m.Role, m.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeBulletList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", label)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}
