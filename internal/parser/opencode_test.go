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

func writeJSONFile(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func writeOpenCodeStorageSession(t *testing.T, dataDir, projectID, worktree, sessionID string) {
	t.Helper()
	storageRoot := filepath.Join(dataDir, "storage")

	writeJSONFile(t, filepath.Join(storageRoot, "project", projectID+".json"), map[string]any{
		"id": projectID, "worktree": worktree,
	})
	writeJSONFile(t, filepath.Join(storageRoot, "session", sessionID+".json"), map[string]any{
		"id": sessionID, "projectID": projectID, "timeCreated": 1700000000000, "timeUpdated": 1700000100000,
	})
	writeJSONFile(t, filepath.Join(storageRoot, "message", sessionID, "msg-1.json"), map[string]any{
		"id": "msg-1", "role": "user", "timeCreated": 1700000000000,
	})
	writeJSONFile(t, filepath.Join(storageRoot, "part", sessionID, "part-1.json"), map[string]any{
		"messageID": "msg-1", "timeCreated": 1700000000000,
		"type": "text", "text": "Write an opencode storage fallback loader.",
	})
	writeJSONFile(t, filepath.Join(storageRoot, "message", sessionID, "msg-2.json"), map[string]any{
		"id": "msg-2", "role": "assistant", "timeCreated": 1700000050000,
	})
	writeJSONFile(t, filepath.Join(storageRoot, "part", sessionID, "part-2.json"), map[string]any{
		"messageID": "msg-2", "timeCreated": 1700000050000,
		"type": "text", "text": "I decided to walk the storage tree directly.",
	})
}

func TestOpenCodeAdapter_DetectFalseWhenEmpty(t *testing.T) {
	a := NewOpenCodeAdapter(t.TempDir())
	assert.False(t, a.Detect())
}

func TestOpenCodeAdapter_ListSessionsFromStorageFallback(t *testing.T) {
	dataDir := t.TempDir()
	worktree := t.TempDir()
	writeOpenCodeStorageSession(t, dataDir, "proj-1", worktree, "ses-1")

	a := NewOpenCodeAdapter(dataDir)
	infos, err := a.ListSessions(context.Background(), worktree)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "opencode:ses-1", infos[0].ID)
}

func TestOpenCodeAdapter_CaptureReturnsValidatedSession(t *testing.T) {
	dataDir := t.TempDir()
	worktree := t.TempDir()
	writeOpenCodeStorageSession(t, dataDir, "proj-1", worktree, "ses-1")

	a := NewOpenCodeAdapter(dataDir)
	cs, err := a.Capture(context.Background(), "opencode:ses-1")
	require.NoError(t, err)
	assert.Equal(t, session.AgentOpenCode, cs.Source)
	assert.Equal(t, "opencode:ses-1", cs.SessionID)
	assert.Equal(t, "Write an opencode storage fallback loader.", cs.Task.Description)
}

func TestOpenCodeAdapter_CaptureUnknownSessionErrors(t *testing.T) {
	a := NewOpenCodeAdapter(t.TempDir())
	_, err := a.Capture(context.Background(), "opencode:missing")
	assert.Error(t, err)
}

func TestNormalizeOpenCodeRole(t *testing.T) {
	assert.Equal(t, session.RoleUser, normalizeOpenCodeRole("user"))
	assert.Equal(t, session.RoleAssistant, normalizeOpenCodeRole("assistant"))
	assert.Equal(t, session.Role(""), normalizeOpenCodeRole("system"))
}

func TestMillisToTime(t *testing.T) {
	assert.True(t, millisToTime(0).IsZero())
	assert.False(t, millisToTime(1700000000000).IsZero())
}
