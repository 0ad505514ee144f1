package assemble

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wesm/braindump/internal/compress"
	"github.com/wesm/braindump/internal/session"
)

func fixtureCaptured() *session.Captured {
	return &session.Captured{
		Version:   session.SchemaVersion,
		Source:    session.AgentClaudeCode,
		SessionID: "sess-1",
		Task:      session.Task{Description: "Build the handoff pipeline"},
	}
}

func fixtureResult() compress.Result {
	return compress.Result{
		Included: []compress.Layer{
			{Name: "Task state", Priority: compress.PriorityTaskState, Content: "Task: Build the handoff pipeline", Tokens: 10},
			{Name: "Decisions & blockers", Priority: compress.PriorityDecisions, Content: "No decisions or blockers recorded.", Tokens: 5},
		},
		Dropped: []string{"Full history"},
		Tokens:  15,
	}
}

func TestBuild_RendersBannerHeadingsAndFooter(t *testing.T) {
	doc := Build(fixtureCaptured(), "file", fixtureResult(), "/repo/.handoff/RESUME.md")

	assert.Contains(t, doc.Full, "# Session handoff: sess-1 (claude-code)")
	assert.Contains(t, doc.Full, "## Task state")
	assert.Contains(t, doc.Full, "## Decisions & blockers")
	assert.Contains(t, doc.Full, "Paste this document into your coding agent of choice")
	assert.Equal(t, doc.Full, doc.Prompt)
	assert.False(t, doc.IsReference)
}

func TestBuild_TargetSpecificFooter(t *testing.T) {
	doc := Build(fixtureCaptured(), "codex", fixtureResult(), "/repo/.handoff/RESUME.md")
	assert.Contains(t, doc.Full, "This handoff was prepared for codex.")
}

func TestBuild_OversizedDocumentBecomesReference(t *testing.T) {
	cs := fixtureCaptured()
	huge := compress.Result{
		Included: []compress.Layer{
			{Name: "Full history", Priority: compress.PriorityFullHistory, Content: strings.Repeat("x", 60_000), Tokens: 15_000},
		},
	}

	doc := Build(cs, "file", huge, "/repo/.handoff/RESUME.md")

	assert.True(t, doc.IsReference)
	assert.NotEqual(t, doc.Full, doc.Prompt)
	assert.Contains(t, doc.Prompt, "/repo/.handoff/RESUME.md")
	assert.Greater(t, len(doc.Full), len(doc.Prompt))
}
