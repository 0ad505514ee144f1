package parser

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/wesm/braindump/internal/session"
)

func writeGeminiSession(t *testing.T, geminiDir, hash, sessionID string) string {
	t.Helper()
	chatsDir := filepath.Join(geminiDir, "tmp", hash, "chats")
	require.NoError(t, os.MkdirAll(chatsDir, 0o755))

	doc := map[string]any{
		"sessionId":   sessionID,
		"startTime":   "2026-03-05T10:00:00Z",
		"lastUpdated": "2026-03-05T10:05:00Z",
		"messages": []map[string]any{
			{"type": "user", "content": "Refactor the parser for readability.", "timestamp": "2026-03-05T10:00:00Z"},
			{"type": "gemini", "content": "I decided to split the parser into smaller functions.", "timestamp": "2026-03-05T10:01:00Z"},
		},
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)

	path := filepath.Join(chatsDir, "session-"+sessionID+".json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestGeminiAdapter_DetectFalseWhenEmpty(t *testing.T) {
	a := NewGeminiAdapter(t.TempDir())
	assert.False(t, a.Detect())
}

func TestGeminiAdapter_ListSessionsReturnsSessionInfo(t *testing.T) {
	geminiDir := t.TempDir()
	writeGeminiSession(t, geminiDir, "abcd1234", "sess-gemini-1")

	a := NewGeminiAdapter(geminiDir)
	infos, err := a.ListSessions(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "sess-gemini-1", infos[0].ID)
}

func TestGeminiAdapter_CaptureReturnsValidatedSession(t *testing.T) {
	geminiDir := t.TempDir()
	writeGeminiSession(t, geminiDir, "abcd1234", "sess-gemini-1")

	a := NewGeminiAdapter(geminiDir)
	cs, err := a.Capture(context.Background(), "sess-gemini-1")
	require.NoError(t, err)
	assert.Equal(t, session.AgentGemini, cs.Source)
	assert.Equal(t, "sess-gemini-1", cs.SessionID)
	assert.Equal(t, "Refactor the parser for readability.", cs.Task.Description)
}

func TestGeminiAdapter_CaptureUnknownSessionErrors(t *testing.T) {
	a := NewGeminiAdapter(t.TempDir())
	_, err := a.Capture(context.Background(), "sess-missing-1")
	assert.Error(t, err)
}

func TestGeminiSessionID_ExtractsFromRawBytes(t *testing.T) {
	data := []byte(`{"sessionId":"abc-123"}`)
	assert.Equal(t, "abc-123", GeminiSessionID(data))
}

func TestFormatGeminiDiffStat_SumsModelAndAICounts(t *testing.T) {
	out := formatGeminiDiffStat(gjson.Parse(`{"model_added_lines":3,"ai_added_lines":2,"model_removed_lines":1,"ai_removed_lines":0}`))
	assert.Equal(t, "+5 -1", out)
}
