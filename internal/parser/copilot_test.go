package parser

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesm/braindump/internal/session"
)

func copilotLine(t *testing.T, typ string, data map[string]any, timestamp string) string {
	t.Helper()
	line := map[string]any{"type": typ, "timestamp": timestamp, "data": data}
	b, err := json.Marshal(line)
	require.NoError(t, err)
	return string(b)
}

func writeCopilotSession(t *testing.T, copilotDir, sessionID, cwd string) string {
	t.Helper()
	dir := filepath.Join(copilotDir, "session-state", sessionID)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	lines := []string{
		copilotLine(t, copilotEventSessionStart, map[string]any{"sessionId": sessionID}, "2026-03-05T10:00:00Z"),
		copilotLine(t, copilotEventUserMessage, map[string]any{"content": "Add retry logic to the HTTP client."}, "2026-03-05T10:00:01Z"),
		copilotLine(t, copilotEventAssistantMsg, map[string]any{"content": "I decided to use exponential backoff."}, "2026-03-05T10:00:02Z"),
	}
	events := ""
	for _, l := range lines {
		events += l + "\n"
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "events.jsonl"), []byte(events), 0o644))

	ws := "cwd: " + cwd + "\nbranch: main\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "workspace.yaml"), []byte(ws), 0o644))

	return dir
}

func TestCopilotAdapter_DetectFalseWhenEmpty(t *testing.T) {
	a := NewCopilotAdapter(t.TempDir())
	assert.False(t, a.Detect())
}

func TestCopilotAdapter_ListSessionsFiltersByWorkspaceCwd(t *testing.T) {
	copilotDir := t.TempDir()
	cwd := t.TempDir()
	writeCopilotSession(t, copilotDir, "sess-copilot-1", cwd)

	a := NewCopilotAdapter(copilotDir)
	infos, err := a.ListSessions(context.Background(), cwd)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "sess-copilot-1", infos[0].ID)
}

func TestCopilotAdapter_CaptureReturnsValidatedSession(t *testing.T) {
	copilotDir := t.TempDir()
	cwd := t.TempDir()
	writeCopilotSession(t, copilotDir, "sess-copilot-1", cwd)

	a := NewCopilotAdapter(copilotDir)
	cs, err := a.Capture(context.Background(), "sess-copilot-1")
	require.NoError(t, err)
	assert.Equal(t, session.AgentCopilot, cs.Source)
	assert.Equal(t, "sess-copilot-1", cs.SessionID)
	assert.Equal(t, "Add retry logic to the HTTP client.", cs.Task.Description)
	assert.Equal(t, cwd, cs.Project.Path)
}

func TestCopilotAdapter_CaptureUnknownSessionErrors(t *testing.T) {
	a := NewCopilotAdapter(t.TempDir())
	_, err := a.Capture(context.Background(), "missing")
	assert.Error(t, err)
}
