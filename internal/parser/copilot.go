package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/wesm/braindump/internal/braindumperr"
	"github.com/wesm/braindump/internal/session"
)

// Copilot JSONL event types.
const (
	copilotEventSessionStart    = "session.start"
	copilotEventUserMessage     = "user.message"
	copilotEventAssistantMsg    = "assistant.message"
	copilotEventToolComplete    = "tool.execution_complete"
	copilotEventAssistantReason = "assistant.reasoning"
)

// copilotWorkspace is the structure of the sibling workspace.yaml
// metadata file spec.md adds to the teacher's events.jsonl format.
type copilotWorkspace struct {
	Cwd     string `yaml:"cwd"`
	Branch  string `yaml:"branch"`
	Summary string `yaml:"summary"`
}

// CopilotAdapter reads <copilotDir>/session-state/<id>/events.jsonl
// plus a sibling workspace.yaml. Grounded on the teacher's
// copilotSessionBuilder event dispatch; extended to read
// workspace.yaml via gopkg.in/yaml.v3 for project metadata and an
// optional summary, which the teacher's copilot.go never had
// (it only had the JSONL events).
type CopilotAdapter struct {
	CopilotDir string // ~/.copilot
}

func NewCopilotAdapter(copilotDir string) *CopilotAdapter {
	return &CopilotAdapter{CopilotDir: copilotDir}
}

func (a *CopilotAdapter) ID() session.AgentID { return session.AgentCopilot }

func (a *CopilotAdapter) Detect() bool {
	return len(DiscoverCopilotSessions(a.CopilotDir)) > 0
}

func (a *CopilotAdapter) ListSessions(
	ctx context.Context, projectPath string,
) ([]session.SessionInfo, error) {
	files := DiscoverCopilotSessions(a.CopilotDir)
	var out []session.SessionInfo
	for _, f := range files {
		ws := readCopilotWorkspace(f.Path)
		if projectPath != "" && ws.Cwd != "" && !PathsEqual(ws.Cwd, projectPath) {
			continue
		}
		info, err := copilotSessionInfo(f.Path)
		if err != nil {
			continue
		}
		info.ProjectPath = ws.Cwd
		out = append(out, info)
	}
	SortSessionInfos(out)
	return out, nil
}

func (a *CopilotAdapter) Capture(
	ctx context.Context, sessionID string,
) (*session.Captured, error) {
	path := FindCopilotSourceFile(a.CopilotDir, sessionID)
	if path == "" {
		return nil, fmt.Errorf(
			"%w: copilot session %q", braindumperr.ErrSessionNotFound, sessionID,
		)
	}
	return parseCopilotFile(path)
}

func (a *CopilotAdapter) CaptureLatest(
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

// readCopilotWorkspace reads the workspace.yaml sibling of an
// events.jsonl file. Missing or malformed files degrade to a zero
// value rather than failing the capture (spec.md §7's
// EnrichmentFailure policy: optional companion artifacts degrade
// gracefully).
func readCopilotWorkspace(eventsPath string) copilotWorkspace {
	wsPath := filepath.Join(filepath.Dir(eventsPath), "workspace.yaml")
	data, err := os.ReadFile(wsPath)
	if err != nil {
		return copilotWorkspace{}
	}
	var ws copilotWorkspace
	if err := yaml.Unmarshal(data, &ws); err != nil {
		return copilotWorkspace{}
	}
	return ws
}

func copilotSessionInfo(path string) (session.SessionInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return session.SessionInfo{}, err
	}
	defer f.Close()

	lr := newLineReader(f, maxLineSize)
	var first, last time.Time
	var preview, sessionID string
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
		data := gjson.Get(line, "data")
		switch gjson.Get(line, "type").Str {
		case copilotEventSessionStart:
			if id := data.Get("sessionId").Str; id != "" {
				sessionID = id
			}
		case copilotEventUserMessage:
			if preview == "" {
				if c := strings.TrimSpace(data.Get("content").Str); c != "" {
					preview = truncate(strings.ReplaceAll(c, "\n", " "), 200)
				}
			}
			count++
		case copilotEventAssistantMsg:
			count++
		}
	}
	if sessionID == "" {
		sessionID = copilotSessionIDFromPath(path)
	}
	info := session.SessionInfo{
		ID:           sessionID,
		MessageCount: intPtr(count),
		Preview:      preview,
	}
	if !first.IsZero() {
		info.StartedAt = timePtr(first)
	}
	if !last.IsZero() {
		info.LastActiveAt = timePtr(last)
	}
	return info, nil
}

func parseCopilotFile(path string) (*session.Captured, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", braindumperr.ErrParseFailure, err)
	}
	defer f.Close()

	b := newSessionBuilder()
	var sessionID, taskDescription string

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
		data := gjson.Get(line, "data")

		switch gjson.Get(line, "type").Str {
		case copilotEventSessionStart:
			if id := data.Get("sessionId").Str; id != "" {
				sessionID = id
			}
		case copilotEventUserMessage:
			content := strings.TrimSpace(data.Get("content").Str)
			if content == "" {
				break
			}
			b.addMessage(session.RoleUser, content, ts)
			if taskDescription == "" {
				taskDescription = content
			}
		case copilotEventAssistantMsg:
			content := strings.TrimSpace(data.Get("content").Str)
			if reasoning := strings.TrimSpace(data.Get("reasoningText").Str); reasoning != "" {
				b.decisionHints.Add(firstSentence(reasoning))
				content = fmt.Sprintf("[Thinking]\n%s\n[/Thinking]\n%s", reasoning, content)
			}
			if content != "" {
				b.addMessage(session.RoleAssistant, content, ts)
			}
			data.Get("toolRequests").ForEach(func(_, req gjson.Result) bool {
				name := req.Get("name").Str
				if name == "" {
					return true
				}
				args := req.Get("arguments")
				inputJSON := args.Str
				if args.Type != gjson.String && args.Raw != "" {
					inputJSON = args.Raw
				}
				b.addToolUse(rawToolCall{
					ToolUseID: req.Get("toolCallId").Str,
					ToolName:  name,
					Category:  NormalizeToolCategory(name),
					InputJSON: inputJSON,
				}, ts)
				return true
			})
		case copilotEventToolComplete:
			if data.Get("toolCallId").Str != "" {
				b.addToolResult(rawToolResult{
					ToolUseID: data.Get("toolCallId").Str,
				}, ts)
			}
		case copilotEventAssistantReason:
			if reasoning := strings.TrimSpace(data.Get("text").Str); reasoning != "" {
				b.decisionHints.Add(firstSentence(reasoning))
			}
		}
	}
	if err := lr.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", braindumperr.ErrParseFailure, err)
	}

	if sessionID == "" {
		sessionID = copilotSessionIDFromPath(path)
	}

	ws := readCopilotWorkspace(path)
	proj := session.Project{Path: ws.Cwd, GitBranch: ws.Branch}
	if ws.Summary != "" {
		b.decisionHints.Add(firstSentence(ws.Summary))
	}

	cs := &session.Captured{
		Version:      session.SchemaVersion,
		Source:       session.AgentCopilot,
		CapturedAt:   time.Now().UTC(),
		SessionID:    sessionID,
		Project:      proj,
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

// copilotSessionIDFromPath extracts the session ID from the
// containing directory of an events.jsonl file.
func copilotSessionIDFromPath(path string) string {
	return filepath.Base(filepath.Dir(path))
}
