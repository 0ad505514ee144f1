package parser

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesm/braindump/internal/session"
	"github.com/wesm/braindump/internal/testjsonl"
)

func writeClaudeSession(t *testing.T, projectsDir, projectDirName, sessionID, cwd string) string {
	t.Helper()
	dir := filepath.Join(projectsDir, projectDirName)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	content := testjsonl.JoinJSONL(
		testjsonl.ClaudeUserJSON("Set up the handoff CLI.", "2026-03-05T10:00:00Z", cwd),
		testjsonl.ClaudeAssistantJSON(
			[]map[string]string{{"type": "text", "text": "I decided to use cobra for the CLI.\n\nCompleted: wired up the root command."}},
			"2026-03-05T10:01:00Z",
		),
	)
	path := filepath.Join(dir, sessionID+".jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestClaudeAdapter_DetectFalseWhenNoSessions(t *testing.T) {
	a := NewClaudeAdapter(t.TempDir())
	assert.False(t, a.Detect())
}

func TestClaudeAdapter_DetectTrueWhenSessionsExist(t *testing.T) {
	projectsDir := t.TempDir()
	cwd := t.TempDir()
	writeClaudeSession(t, projectsDir, "-some-encoded-path", "sess-1", cwd)

	a := NewClaudeAdapter(projectsDir)
	assert.True(t, a.Detect())
}

func TestClaudeAdapter_ListSessionsFiltersByProjectPath(t *testing.T) {
	projectsDir := t.TempDir()
	cwdA := t.TempDir()
	cwdB := t.TempDir()
	writeClaudeSession(t, projectsDir, "-proj-a", "sess-a", cwdA)
	writeClaudeSession(t, projectsDir, "-proj-b", "sess-b", cwdB)

	a := NewClaudeAdapter(projectsDir)
	infos, err := a.ListSessions(context.Background(), cwdA)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "sess-a", infos[0].ID)
}

func TestClaudeAdapter_ListSessionsSkipsSubagentTranscripts(t *testing.T) {
	projectsDir := t.TempDir()
	cwd := t.TempDir()
	writeClaudeSession(t, projectsDir, "-proj-a", "sess-a", cwd)

	subagentsDir := filepath.Join(projectsDir, "-proj-a", "sess-a", "subagents")
	require.NoError(t, os.MkdirAll(subagentsDir, 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(subagentsDir, "agent-1.jsonl"),
		[]byte(testjsonl.ClaudeUserJSON("sub task", "2026-03-05T10:02:00Z", cwd)),
		0o644,
	))

	a := NewClaudeAdapter(projectsDir)
	infos, err := a.ListSessions(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "sess-a", infos[0].ID)
}

func TestClaudeAdapter_CaptureReturnsValidatedSession(t *testing.T) {
	projectsDir := t.TempDir()
	cwd := t.TempDir()
	writeClaudeSession(t, projectsDir, "-proj-a", "sess-a", cwd)

	a := NewClaudeAdapter(projectsDir)
	cs, err := a.Capture(context.Background(), "sess-a")
	require.NoError(t, err)
	require.NotNil(t, cs)

	assert.Equal(t, session.AgentClaudeCode, cs.Source)
	assert.Equal(t, "sess-a", cs.SessionID)
	assert.Equal(t, "Set up the handoff CLI.", cs.Task.Description)
	assert.Contains(t, cs.Decisions, "I decided to use cobra for the CLI")
	assert.NotEmpty(t, cs.Task.Completed)
	assert.Equal(t, cwd, cs.Project.Path)
}

func TestClaudeAdapter_CaptureUnknownSessionErrors(t *testing.T) {
	a := NewClaudeAdapter(t.TempDir())
	_, err := a.Capture(context.Background(), "does-not-exist")
	assert.Error(t, err)
}

func TestClaudeAdapter_CaptureLatestPicksMostRecentSession(t *testing.T) {
	projectsDir := t.TempDir()
	cwd := t.TempDir()
	writeClaudeSession(t, projectsDir, "-proj-a", "sess-old", cwd)
	writeClaudeSession(t, projectsDir, "-proj-a", "sess-new", cwd)

	// Give sess-new a later in-content timestamp so it sorts first.
	newPath := filepath.Join(projectsDir, "-proj-a", "sess-new.jsonl")
	future := "2026-03-05T11:00:00Z"
	content := testjsonl.JoinJSONL(
		testjsonl.ClaudeUserJSON("Set up the handoff CLI.", future, cwd),
		testjsonl.ClaudeAssistantJSON(
			[]map[string]string{{"type": "text", "text": "Working on it."}},
			future,
		),
	)
	require.NoError(t, os.WriteFile(newPath, []byte(content), 0o644))

	a := NewClaudeAdapter(projectsDir)
	cs, err := a.CaptureLatest(context.Background(), cwd)
	require.NoError(t, err)
	assert.Equal(t, "sess-new", cs.SessionID)
}

func TestIsClaudeSystemMessage(t *testing.T) {
	assert.True(t, isClaudeSystemMessage("This session is being continued from a prior one."))
	assert.True(t, isClaudeSystemMessage("<command-name>foo</command-name>"))
	assert.False(t, isClaudeSystemMessage("Please add a health check endpoint."))
}

func TestFirstSentence(t *testing.T) {
	assert.Equal(t, "Hello world", firstSentence("Hello world. More text follows."))
	assert.Equal(t, "no terminator here", firstSentence("no terminator here"))
}
