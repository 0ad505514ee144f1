package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/wesm/braindump/internal/braindumperr"
	"github.com/wesm/braindump/internal/session"
)

// Droid JSONL event types.
const (
	droidEventSessionStart    = "session_start"
	droidEventMessage         = "message"
	droidEventTodoState       = "todo_state"
	droidEventCompactionState = "compaction_state"
)

// DroidAdapter reads line-delimited JSON under
// <droidDir>/sessions/<workspaceSlug>/<uuid>.jsonl, with an optional
// companion <uuid>.settings.json. Grounded on the teacher's claude.go
// JSONL-streaming idiom (linereader.go, line-by-line gjson scanning,
// block-type dispatch in content.go) since droid has no counterpart
// in the teacher's own agent set.
type DroidAdapter struct {
	DroidDir string // ~/.factory
}

func NewDroidAdapter(droidDir string) *DroidAdapter {
	return &DroidAdapter{DroidDir: droidDir}
}

func (a *DroidAdapter) ID() session.AgentID { return session.AgentDroid }

func (a *DroidAdapter) Detect() bool {
	return len(DiscoverDroidSessions(a.DroidDir)) > 0
}

func (a *DroidAdapter) ListSessions(
	ctx context.Context, projectPath string,
) ([]session.SessionInfo, error) {
	_ = ctx
	files := DiscoverDroidSessions(a.DroidDir)
	var out []session.SessionInfo
	for _, f := range files {
		info, cwd, err := droidSessionInfo(f.Path, f.Project)
		if err != nil {
			continue
		}
		if projectPath != "" && cwd != "" && !PathsEqual(cwd, projectPath) {
			continue
		}
		info.ProjectPath = cwd
		out = append(out, info)
	}
	SortSessionInfos(out)
	return out, nil
}

func (a *DroidAdapter) Capture(
	ctx context.Context, sessionID string,
) (*session.Captured, error) {
	_ = ctx
	path := findDroidSourceFile(a.DroidDir, sessionID)
	if path == "" {
		return nil, fmt.Errorf(
			"%w: droid session %q", braindumperr.ErrSessionNotFound, sessionID,
		)
	}
	return parseDroidFile(path)
}

func (a *DroidAdapter) CaptureLatest(
	ctx context.Context, projectPath string,
) (*session.Captured, error) {
	infos, err := a.ListSessions(ctx, projectPath)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, braindumperr.ErrNoSessions
	}
	return a.Capture(ctx, infos[0].ID)
}

// findDroidSourceFile resolves a composite "<slug>:<uuid>" or bare
// uuid session id back to its JSONL file.
func findDroidSourceFile(droidDir, sessionID string) string {
	slug, id, ok := splitDroidSessionID(sessionID)
	if ok {
		path := filepath.Join(droidDir, "sessions", slug, id+".jsonl")
		if IsRegularFile(path) {
			return path
		}
		return ""
	}
	for _, f := range DiscoverDroidSessions(droidDir) {
		if strings.TrimSuffix(filepath.Base(f.Path), ".jsonl") == sessionID {
			return f.Path
		}
	}
	return ""
}

// splitDroidSessionID splits a composite "<slug>:<id>" session id,
// requiring the trailing component to actually parse as a UUID so a
// slug that legitimately contains a colon of its own is never
// mistaken for the separator.
func splitDroidSessionID(sessionID string) (slug, id string, ok bool) {
	idx := strings.LastIndex(sessionID, ":")
	if idx < 0 {
		return "", "", false
	}
	candidate := sessionID[idx+1:]
	if _, err := uuid.Parse(candidate); err != nil {
		return "", "", false
	}
	return sessionID[:idx], candidate, true
}

func droidSessionID(slug, path string) string {
	uuid := strings.TrimSuffix(filepath.Base(path), ".jsonl")
	return slug + ":" + uuid
}

func droidSettingsPath(jsonlPath string) string {
	uuid := strings.TrimSuffix(filepath.Base(jsonlPath), ".jsonl")
	return filepath.Join(filepath.Dir(jsonlPath), uuid+".settings.json")
}

// droidSettings is the optional companion file; absence or
// malformed content degrades to a zero value rather than failing
// the capture, per spec.md §7's EnrichmentFailure policy.
type droidSettings struct {
	Cwd string `json:"cwd"`
}

func readDroidSettings(jsonlPath string) droidSettings {
	data, err := os.ReadFile(droidSettingsPath(jsonlPath))
	if err != nil {
		return droidSettings{}
	}
	var s droidSettings
	_ = json.Unmarshal(data, &s)
	return s
}

func droidSessionInfo(path, slug string) (session.SessionInfo, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return session.SessionInfo{}, "", err
	}
	defer f.Close()

	settings := readDroidSettings(path)

	lr := newLineReader(f, maxLineSize)
	var first, last time.Time
	var preview string
	count := 0
	for {
		line, ok := lr.next()
		if !ok {
			break
		}
		if !gjson.Valid(line) {
			continue
		}
		ts := parseTimestamp(gjson.Get(line, "timestamp").Str)
		if !ts.IsZero() {
			if first.IsZero() {
				first = ts
			}
			last = ts
		}
		if gjson.Get(line, "type").Str != droidEventMessage {
			continue
		}
		role := gjson.Get(line, "role").Str
		count++
		if preview == "" && role == "user" {
			if t := droidMessageText(gjson.Get(line, "content")); t != "" {
				preview = truncate(strings.ReplaceAll(t, "\n", " "), 200)
			}
		}
	}

	info := session.SessionInfo{
		ID:           droidSessionID(slug, path),
		MessageCount: intPtr(count),
		Preview:      preview,
	}
	if !first.IsZero() {
		info.StartedAt = timePtr(first)
	}
	if !last.IsZero() {
		info.LastActiveAt = timePtr(last)
	}
	return info, settings.Cwd, nil
}

func parseDroidFile(path string) (*session.Captured, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", braindumperr.ErrParseFailure, err)
	}
	defer f.Close()

	slug := filepath.Base(filepath.Dir(path))
	settings := readDroidSettings(path)

	b := newSessionBuilder()
	var taskDescription string

	lr := newLineReader(f, maxLineSize)
	for {
		line, ok := lr.next()
		if !ok {
			break
		}
		if !gjson.Valid(line) {
			continue
		}
		ts := parseTimestamp(gjson.Get(line, "timestamp").Str)

		switch gjson.Get(line, "type").Str {
		case droidEventMessage:
			role := session.RoleUser
			switch gjson.Get(line, "role").Str {
			case "assistant":
				role = session.RoleAssistant
			case "system":
				role = session.RoleSystem
			}
			content, tcs := extractDroidContent(gjson.Get(line, "content"))
			content = strings.TrimSpace(content)
			if content != "" {
				b.addMessage(role, content, ts)
				if role == session.RoleUser && taskDescription == "" {
					taskDescription = content
				}
				if role == session.RoleAssistant {
					b.decisionHints.Add(firstSentence(content))
				}
			}
			for _, tc := range tcs {
				b.addToolUse(tc, ts)
			}
			gjson.Get(line, "content").ForEach(func(_, block gjson.Result) bool {
				if block.Get("type").Str == "tool_result" {
					b.addToolResult(rawToolResult{ToolUseID: block.Get("tool_use_id").Str}, ts)
				}
				return true
			})
		case droidEventTodoState:
			for _, item := range parseDroidTodoState(gjson.Get(line, "text").Str) {
				b.addTodoItem(item.text, item.status)
			}
		}
	}
	if err := lr.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", braindumperr.ErrParseFailure, err)
	}

	cs := &session.Captured{
		Version:      session.SchemaVersion,
		Source:       session.AgentDroid,
		CapturedAt:   time.Now().UTC(),
		SessionID:    droidSessionID(slug, path),
		Project:      session.Project{Path: settings.Cwd},
		Conversation: b.buildConversation(),
		FileChanges:  b.fileChanges,
		Decisions:    b.decisionHints.Values(),
		Task: session.Task{
			Description: firstNonEmpty(taskDescription, "Unknown task"),
			InProgress:  b.inProgress(),
			Remaining:   b.taskRemainingValues(),
			Completed:   b.taskCompletedValues(),
		},
		ToolActivity: b.buildToolActivity(),
	}
	if !b.startedAt.IsZero() {
		cs.SessionStartedAt = timePtr(b.startedAt)
	}
	return finalizeCaptured(cs)
}

// extractDroidContent flattens a droid message's content blocks
// (text, thinking, tool_use, tool_result) into display text plus
// any tool calls found, the same dispatch shape as content.go's
// ExtractTextContent for claude-code blocks.
func extractDroidContent(content gjson.Result) (string, []rawToolCall) {
	if content.Type == gjson.String {
		return content.Str, nil
	}

	var parts []string
	var calls []rawToolCall
	content.ForEach(func(_, block gjson.Result) bool {
		switch block.Get("type").Str {
		case "text":
			if t := block.Get("text").Str; t != "" {
				parts = append(parts, t)
			}
		case "thinking":
			if t := block.Get("thinking").Str; t != "" {
				parts = append(parts, "[Thinking]\n"+t+"\n[/Thinking]")
			}
		case "tool_use":
			name := block.Get("name").Str
			calls = append(calls, rawToolCall{
				ToolUseID: block.Get("id").Str,
				ToolName:  name,
				Category:  NormalizeToolCategory(name),
				InputJSON: block.Get("input").Raw,
			})
			parts = append(parts, formatToolHeader(NormalizeToolCategory(name), name))
		case "tool_result":
			// acknowledged via a separate tool message from addToolResult upstream; no text here
		}
		return true
	})
	return strings.Join(parts, "\n"), calls
}

func droidMessageText(content gjson.Result) string {
	if content.Type == gjson.String {
		return content.Str
	}
	var parts []string
	content.ForEach(func(_, block gjson.Result) bool {
		if block.Get("type").Str == "text" {
			if t := block.Get("text").Str; t != "" {
				parts = append(parts, t)
			}
		}
		return true
	})
	return strings.Join(parts, "\n")
}

type droidTodoItem struct {
	text   string
	status string
}

var droidTodoLineRe = regexp.MustCompile(`(?m)^\s*\d+\.\s*\[([a-zA-Z_-]+)\]\s*(.+)$`)

// parseDroidTodoState parses free-text numbered lines of the form
// "1. [status] text", recognizing statuses {completed, in_progress,
// pending, done, in-progress}.
func parseDroidTodoState(text string) []droidTodoItem {
	matches := droidTodoLineRe.FindAllStringSubmatch(text, -1)
	items := make([]droidTodoItem, 0, len(matches))
	for _, m := range matches {
		items = append(items, droidTodoItem{
			text:   strings.TrimSpace(m[2]),
			status: strings.ToLower(m[1]),
		})
	}
	return items
}
