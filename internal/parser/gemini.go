package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/wesm/braindump/internal/braindumperr"
	"github.com/wesm/braindump/internal/session"
)

// GeminiAdapter reads one JSON document per session at
// ~/.gemini/tmp/<projectHash>/chats/session-*.json. Grounded on the
// teacher's gemini.go extractGeminiContent/formatGeminiToolCall,
// extended with a diffStat branch the teacher's tool-call formatter
// lacked (spec.md's "+X -Y" rendering for a resultDisplay.diffStat).
type GeminiAdapter struct {
	GeminiDir string // ~/.gemini
}

func NewGeminiAdapter(geminiDir string) *GeminiAdapter {
	return &GeminiAdapter{GeminiDir: geminiDir}
}

func (a *GeminiAdapter) ID() session.AgentID { return session.AgentGemini }

func (a *GeminiAdapter) Detect() bool {
	return len(DiscoverGeminiSessions(a.GeminiDir)) > 0
}

func (a *GeminiAdapter) ListSessions(
	ctx context.Context, projectPath string,
) ([]session.SessionInfo, error) {
	files := DiscoverGeminiSessions(a.GeminiDir)
	var out []session.SessionInfo
	for _, f := range files {
		info, _, err := geminiSessionInfo(f.Path)
		if err != nil {
			continue
		}
		out = append(out, info)
	}
	_ = projectPath // gemini session files don't carry an absolute cwd to filter on
	SortSessionInfos(out)
	return out, nil
}

func (a *GeminiAdapter) Capture(
	ctx context.Context, sessionID string,
) (*session.Captured, error) {
	path := FindGeminiSourceFile(a.GeminiDir, sessionID)
	if path == "" {
		return nil, fmt.Errorf(
			"%w: gemini session %q", braindumperr.ErrSessionNotFound, sessionID,
		)
	}
	return parseGeminiFile(path, geminiProjectForPath(a.GeminiDir, path))
}

// geminiProjectForPath resolves the project name for a gemini
// session file by re-deriving its ~/.gemini/tmp/<hash>/chats hash
// directory component and looking it up in the projects map.
func geminiProjectForPath(geminiDir, path string) string {
	dir := filepath.Dir(filepath.Dir(path)) // .../tmp/<hash>
	hash := filepath.Base(dir)
	return ResolveGeminiProject(hash, BuildGeminiProjectMap(geminiDir))
}

func (a *GeminiAdapter) CaptureLatest(
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

func geminiSessionInfo(path string) (session.SessionInfo, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return session.SessionInfo{}, "", err
	}
	if !gjson.ValidBytes(data) {
		return session.SessionInfo{}, "", fmt.Errorf("invalid JSON in %s", path)
	}
	root := gjson.ParseBytes(data)

	sessionID := root.Get("sessionId").Str
	if sessionID == "" {
		return session.SessionInfo{}, "", fmt.Errorf("missing sessionId in %s", path)
	}

	startTime := parseTimestamp(root.Get("startTime").Str)
	lastUpdated := parseTimestamp(root.Get("lastUpdated").Str)

	var preview string
	count := 0
	root.Get("messages").ForEach(func(_, msg gjson.Result) bool {
		msgType := msg.Get("type").Str
		if msgType != "user" && msgType != "gemini" {
			return true
		}
		count++
		if preview == "" && msgType == "user" {
			if t := msg.Get("content").Str; t != "" {
				preview = truncate(strings.ReplaceAll(t, "\n", " "), 200)
			}
		}
		return true
	})

	info := session.SessionInfo{
		ID:           sessionID,
		MessageCount: intPtr(count),
		Preview:      preview,
	}
	if !startTime.IsZero() {
		info.StartedAt = timePtr(startTime)
	}
	if !lastUpdated.IsZero() {
		info.LastActiveAt = timePtr(lastUpdated)
	} else if !startTime.IsZero() {
		info.LastActiveAt = timePtr(startTime)
	}
	return info, "", nil
}

func parseGeminiFile(path, project string) (*session.Captured, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", braindumperr.ErrParseFailure, err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON in %s", braindumperr.ErrParseFailure, path)
	}
	root := gjson.ParseBytes(data)

	sessionID := root.Get("sessionId").Str
	if sessionID == "" {
		return nil, fmt.Errorf("%w: missing sessionId in %s", braindumperr.ErrParseFailure, path)
	}

	b := newSessionBuilder()
	var taskDescription string

	root.Get("messages").ForEach(func(_, msg gjson.Result) bool {
		msgType := msg.Get("type").Str
		if msgType != "user" && msgType != "gemini" {
			return true
		}
		ts := parseTimestamp(msg.Get("timestamp").Str)
		role := session.RoleUser
		if msgType == "gemini" {
			role = session.RoleAssistant
		}

		content, hasThinking, tcs := extractGeminiContent(msg)
		content = strings.TrimSpace(content)
		if content == "" && len(tcs) == 0 {
			return true
		}
		if hasThinking {
			// thinking text is already folded into content as a marker block
		}
		if content != "" {
			b.addMessage(role, content, ts)
			if role == session.RoleUser && taskDescription == "" {
				taskDescription = content
			}
		}
		for _, tc := range tcs {
			b.addToolUse(tc, ts)
		}
		return true
	})

	cs := &session.Captured{
		Version:      session.SchemaVersion,
		Source:       session.AgentGemini,
		CapturedAt:   time.Now().UTC(),
		SessionID:    sessionID,
		Project:      session.Project{Name: project},
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

// extractGeminiContent builds readable text from a Gemini message,
// including its thoughts and tool calls. Any resultDisplay.diffStat
// is kept on the tool call as "+X -Y"; in the display text only
// write_file/edit_file headers carry it, other tools' lines omit it.
func extractGeminiContent(
	msg gjson.Result,
) (string, bool, []rawToolCall) {
	var (
		parts       []string
		calls       []rawToolCall
		hasThinking bool
	)

	msg.Get("thoughts").ForEach(func(_, thought gjson.Result) bool {
		desc := thought.Get("description").Str
		if desc == "" {
			return true
		}
		hasThinking = true
		if subj := thought.Get("subject").Str; subj != "" {
			parts = append(parts, fmt.Sprintf("[Thinking]\n%s\n%s\n[/Thinking]", subj, desc))
		} else {
			parts = append(parts, "[Thinking]\n"+desc+"\n[/Thinking]")
		}
		return true
	})

	content := msg.Get("content")
	if content.Type == gjson.String {
		if t := content.Str; t != "" {
			parts = append(parts, t)
		}
	} else if content.IsArray() {
		content.ForEach(func(_, part gjson.Result) bool {
			if t := part.Get("text").Str; t != "" {
				parts = append(parts, t)
			}
			return true
		})
	}

	msg.Get("toolCalls").ForEach(func(_, tc gjson.Result) bool {
		name := tc.Get("name").Str
		rc := rawToolCall{
			ToolName:  name,
			Category:  NormalizeToolCategory(name),
			InputJSON: tc.Get("args").Raw,
		}
		if diffStat := tc.Get("resultDisplay.diffStat"); diffStat.Exists() {
			rc.Diff = formatGeminiDiffStat(diffStat)
		}
		if name != "" {
			calls = append(calls, rc)
		}
		parts = append(parts, formatGeminiToolCall(tc, rc.Diff))
		return true
	})

	return strings.Join(parts, "\n"), hasThinking, calls
}

// formatGeminiDiffStat renders a gemini diffStat block as "+X -Y",
// per spec.md concrete scenario 3.
func formatGeminiDiffStat(diffStat gjson.Result) string {
	added := diffStat.Get("model_added_lines").Int() + diffStat.Get("ai_added_lines").Int()
	removed := diffStat.Get("model_removed_lines").Int() + diffStat.Get("ai_removed_lines").Int()
	return fmt.Sprintf("+%d -%d", added, removed)
}

func formatGeminiToolCall(tc gjson.Result, diff string) string {
	name := tc.Get("name").Str
	displayName := tc.Get("displayName").Str
	args := tc.Get("args")

	switch name {
	case "read_file":
		return fmt.Sprintf("[Read: %s]", args.Get("file_path").Str)
	case "write_file", "edit_file":
		header := fmt.Sprintf("[Write: %s]", args.Get("file_path").Str)
		if diff != "" {
			return header + " " + diff
		}
		return header
	case "run_command", "execute_command":
		return fmt.Sprintf("[Bash]\n$ %s", args.Get("command").Str)
	case "list_directory":
		return fmt.Sprintf("[List: %s]", args.Get("dir_path").Str)
	case "search_files", "grep":
		query := args.Get("query").Str
		if query == "" {
			query = args.Get("pattern").Str
		}
		return fmt.Sprintf("[Grep: %s]", query)
	default:
		label := firstNonEmpty(displayName, name)
		return fmt.Sprintf("[Tool: %s]", label)
	}
}

// GeminiSessionID extracts the sessionId field from raw Gemini
// session JSON data without fully parsing.
func GeminiSessionID(data []byte) string {
	return gjson.GetBytes(data, "sessionId").Str
}
