package compress

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesm/braindump/internal/session"
)

func fixtureSession() *session.Captured {
	started := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	msgs := make([]session.Message, 0, 30)
	for i := 0; i < 30; i++ {
		msgs = append(msgs, session.Message{
			Role:    session.RoleUser,
			Content: "message body text",
		})
	}
	return &session.Captured{
		Version:          session.SchemaVersion,
		Source:           session.AgentClaudeCode,
		CapturedAt:       started,
		SessionID:        "sess-1",
		SessionStartedAt: &started,
		Project: session.Project{
			Path:      "/repo",
			Name:      "repo",
			GitBranch: "main",
			GitStatus: "2 modified",
			GitLog:    []string{"abc123 fix thing"},
			Tree:      "repo/\n  main.go\n",
			Memory:    "project conventions",
		},
		Conversation: session.Conversation{
			MessageCount:    len(msgs),
			EstimatedTokens: 500,
			Messages:        msgs,
		},
		FileChanges: []session.FileChange{
			{Path: "main.go", Type: session.ChangeModified, Language: "go"},
		},
		Decisions: []string{"use cobra for the CLI"},
		Blockers:  []string{"waiting on API key"},
		Task: session.Task{
			Description: "Build the handoff pipeline",
			Completed:   []string{"adapter framework"},
			Remaining:   []string{"watcher"},
			InProgress:  "compression engine",
			Blockers:    []string{"waiting on API key"},
		},
		ToolActivity: []session.ToolActivity{
			{Category: "Edit", Count: 5, Samples: []string{"main.go"}},
		},
	}
}

func TestBuild_InfiniteBudgetIncludesAllLayers(t *testing.T) {
	cs := fixtureSession()
	result := BuildWithBudget(cs, math.MaxInt32)
	assert.Len(t, result.Included, 8)
	assert.Empty(t, result.Dropped)
}

func TestBuild_ZeroBudgetIncludesOnlyPriorityThreeAndBelow(t *testing.T) {
	cs := fixtureSession()
	result := BuildWithBudget(cs, 0)
	for _, l := range result.Included {
		assert.LessOrEqual(t, l.Priority, float64(PriorityDecisions))
	}
	assert.NotEmpty(t, result.Dropped)
}

func TestBuild_MonotonePacking(t *testing.T) {
	cs := fixtureSession()
	small := BuildWithBudget(cs, 50)
	large := BuildWithBudget(cs, 5000)

	smallNames := make(map[string]bool, len(small.Included))
	for _, l := range small.Included {
		smallNames[l.Name] = true
	}
	largeNames := make(map[string]bool, len(large.Included))
	for _, l := range large.Included {
		largeNames[l.Name] = true
	}
	for name := range smallNames {
		assert.True(t, largeNames[name], "layer %q included at smaller budget should remain included at a larger one", name)
	}
}

func TestBuild_DropIsMonotoneFromFirstOverflow(t *testing.T) {
	cs := fixtureSession()
	result := BuildWithBudget(cs, 1)

	seenIncludedAboveThree := false
	for _, l := range result.Included {
		if l.Priority > PriorityDecisions {
			seenIncludedAboveThree = true
		}
	}
	// At budget 1, every layer above priority 3 has nonzero tokens in
	// this fixture, so none should fit.
	assert.False(t, seenIncludedAboveThree)
	assert.NotEmpty(t, result.Dropped)
}

func TestBuild_TokensSumsIncludedLayers(t *testing.T) {
	cs := fixtureSession()
	result := BuildWithBudget(cs, math.MaxInt32)

	sum := 0
	for _, l := range result.Included {
		sum += l.Tokens
	}
	assert.Equal(t, sum, result.Tokens)
}

func TestRenderTaskState_IncludesDescriptionAndBuckets(t *testing.T) {
	cs := fixtureSession()
	layers := buildLayers(cs)
	var taskState Layer
	for _, l := range layers {
		if l.Name == "Task state" {
			taskState = l
		}
	}
	require.NotEmpty(t, taskState.Content)
	assert.Contains(t, taskState.Content, "Build the handoff pipeline")
	assert.Contains(t, taskState.Content, "compression engine")
	assert.Contains(t, taskState.Content, "watcher")
}

func TestRenderFullHistory_EmptyWhenUnderThreshold(t *testing.T) {
	cs := fixtureSession()
	cs.Conversation.Messages = cs.Conversation.Messages[:10]
	layers := buildLayers(cs)
	for _, l := range layers {
		if l.Name == "Full history" {
			assert.Empty(t, l.Content)
		}
	}
}

func TestRenderRecentMessages_CapsAtTwenty(t *testing.T) {
	cs := fixtureSession()
	layers := buildLayers(cs)
	for _, l := range layers {
		if l.Name == "Recent messages" {
			lines := 0
			for _, r := range l.Content {
				if r == '\n' {
					lines++
				}
			}
			assert.LessOrEqual(t, lines+1, recentMessageCount)
		}
	}
}

func TestBuild_UsesRegistryBudgetForTarget(t *testing.T) {
	cs := fixtureSession()
	result := Build(cs, "claude-code")
	assert.NotZero(t, result.Tokens)
}
