package parser

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/wesm/braindump/internal/session"
)

func droidJSONLine(t *testing.T, v map[string]any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func writeDroidSession(t *testing.T, droidDir, slug, cwd string) (string, string) {
	t.Helper()
	id := uuid.NewString()
	dir := filepath.Join(droidDir, "sessions", slug)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	lines := []string{
		droidJSONLine(t, map[string]any{
			"type": droidEventSessionStart, "timestamp": "2026-03-05T10:00:00Z",
		}),
		droidJSONLine(t, map[string]any{
			"type": droidEventMessage, "role": "user", "timestamp": "2026-03-05T10:00:01Z",
			"content": "Add a health check endpoint to the service.",
		}),
		droidJSONLine(t, map[string]any{
			"type": droidEventMessage, "role": "assistant", "timestamp": "2026-03-05T10:00:02Z",
			"content": "I decided to expose /healthz returning 200 when ready.",
		}),
	}
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	path := filepath.Join(dir, id+".jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	if cwd != "" {
		settings := droidJSONLine(t, map[string]any{"cwd": cwd})
		require.NoError(t, os.WriteFile(
			filepath.Join(dir, id+".settings.json"), []byte(settings), 0o644,
		))
	}
	return id, path
}

func TestDroidAdapter_DetectFalseWhenEmpty(t *testing.T) {
	a := NewDroidAdapter(t.TempDir())
	assert.False(t, a.Detect())
}

func TestDroidAdapter_ListSessionsFiltersByProjectPath(t *testing.T) {
	droidDir := t.TempDir()
	cwd := t.TempDir()
	id, _ := writeDroidSession(t, droidDir, "my-app", cwd)

	a := NewDroidAdapter(droidDir)
	infos, err := a.ListSessions(context.Background(), cwd)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "my-app:"+id, infos[0].ID)
}

func TestDroidAdapter_CaptureReturnsValidatedSession(t *testing.T) {
	droidDir := t.TempDir()
	cwd := t.TempDir()
	id, _ := writeDroidSession(t, droidDir, "my-app", cwd)

	a := NewDroidAdapter(droidDir)
	cs, err := a.Capture(context.Background(), "my-app:"+id)
	require.NoError(t, err)
	assert.Equal(t, session.AgentDroid, cs.Source)
	assert.Equal(t, "my-app:"+id, cs.SessionID)
	assert.Equal(t, "Add a health check endpoint to the service.", cs.Task.Description)
	assert.Contains(t, cs.Decisions, "I decided to expose /healthz returning 200 when ready")
	assert.Equal(t, cwd, cs.Project.Path)
}

func TestDroidAdapter_CaptureUnknownSessionErrors(t *testing.T) {
	a := NewDroidAdapter(t.TempDir())
	_, err := a.Capture(context.Background(), "my-app:"+uuid.NewString())
	assert.Error(t, err)
}

func TestDroidAdapter_CaptureBareUUIDFallsBackToScan(t *testing.T) {
	droidDir := t.TempDir()
	cwd := t.TempDir()
	id, _ := writeDroidSession(t, droidDir, "my-app", cwd)

	a := NewDroidAdapter(droidDir)
	cs, err := a.Capture(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "my-app:"+id, cs.SessionID)
}

func TestSplitDroidSessionID_ValidUUIDSuffix(t *testing.T) {
	id := uuid.NewString()
	slug, got, ok := splitDroidSessionID("my-app:with:colons:" + id)
	assert.True(t, ok)
	assert.Equal(t, "my-app:with:colons", slug)
	assert.Equal(t, id, got)
}

func TestSplitDroidSessionID_NonUUIDSuffixFails(t *testing.T) {
	_, _, ok := splitDroidSessionID("my-app:not-a-uuid")
	assert.False(t, ok)
}

func TestSplitDroidSessionID_NoColonFails(t *testing.T) {
	_, _, ok := splitDroidSessionID("bare-id")
	assert.False(t, ok)
}

func TestParseDroidTodoState_ParsesStatuses(t *testing.T) {
	text := "1. [completed] Write the handler\n2. [pending] Add tests\n3. [in_progress] Wire routing\n"
	items := parseDroidTodoState(text)
	require.Len(t, items, 3)
	assert.Equal(t, "Write the handler", items[0].text)
	assert.Equal(t, "completed", items[0].status)
	assert.Equal(t, "pending", items[1].status)
	assert.Equal(t, "in_progress", items[2].status)
}

func TestDroidAdapter_CaptureMapsTodoStateIntoTaskFields(t *testing.T) {
	droidDir := t.TempDir()
	cwd := t.TempDir()
	slug := "my-app"
	id, path := writeDroidSession(t, droidDir, slug, cwd)

	todoLine := droidJSONLine(t, map[string]any{
		"type": droidEventTodoState, "timestamp": "2026-03-05T10:00:03Z",
		"text": "1. [completed] Setup project\n" +
			"2. [in_progress] Fix auth bug\n" +
			"3. [pending] Add tests\n",
	})
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, append(data, []byte(todoLine+"\n")...), 0o644))

	a := NewDroidAdapter(droidDir)
	cs, err := a.Capture(context.Background(), slug+":"+id)
	require.NoError(t, err)

	assert.Equal(t, "Fix auth bug", cs.Task.InProgress)
	assert.Contains(t, cs.Task.Remaining, "Fix auth bug")
	assert.Contains(t, cs.Task.Remaining, "Add tests")
	assert.Contains(t, cs.Task.Completed, "Setup project")
}

func TestExtractDroidContent_PlainString(t *testing.T) {
	content, calls := extractDroidContent(gjson.Parse(`"just text"`))
	assert.Equal(t, "just text", content)
	assert.Empty(t, calls)
}

func TestExtractDroidContent_ToolUseBlockProducesCall(t *testing.T) {
	content, calls := extractDroidContent(gjson.Parse(`[
		{"type":"tool_use","id":"call-1","name":"Bash","input":{"command":"go test ./..."}}
	]`))
	require.Len(t, calls, 1)
	assert.Equal(t, "Bash", calls[0].ToolName)
	assert.Contains(t, content, "[Bash: Bash]")
}
