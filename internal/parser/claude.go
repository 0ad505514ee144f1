package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/wesm/braindump/internal/braindumperr"
	"github.com/wesm/braindump/internal/session"
)

// ClaudeAdapter reads Claude Code's JSONL session files, one per
// project directory under ~/.claude/projects/<projectHash>/<id>.jsonl.
// Grounded on the teacher's claude.go, but entries are sorted by
// timestamp and processed as one linear transcript: uuid/parentUuid
// links are not followed, forks are neither detected nor split, and
// subagent ("agent-*") transcripts are not read, so capture()
// returns exactly one record per session id.
type ClaudeAdapter struct {
	ProjectsDir string // ~/.claude/projects
}

func NewClaudeAdapter(projectsDir string) *ClaudeAdapter {
	return &ClaudeAdapter{ProjectsDir: projectsDir}
}

func (a *ClaudeAdapter) ID() session.AgentID { return session.AgentClaudeCode }

func (a *ClaudeAdapter) Detect() bool {
	return len(DiscoverClaudeProjects(a.ProjectsDir)) > 0
}

func (a *ClaudeAdapter) ListSessions(
	ctx context.Context, projectPath string,
) ([]session.SessionInfo, error) {
	files := DiscoverClaudeProjects(a.ProjectsDir)
	var out []session.SessionInfo
	for _, f := range files {
		if strings.HasPrefix(filepath.Base(f.Path), "agent-") {
			continue // subagent transcripts are not top-level sessions
		}
		cwd := ExtractCwdFromSession(f.Path)
		if projectPath != "" && !PathsEqual(cwd, projectPath) {
			continue
		}
		info, err := claudeSessionInfo(f.Path)
		if err != nil {
			continue
		}
		info.ProjectPath = cwd
		out = append(out, info)
	}
	SortSessionInfos(out)
	return out, nil
}

func (a *ClaudeAdapter) Capture(
	ctx context.Context, sessionID string,
) (*session.Captured, error) {
	path, err := a.findSessionFile(sessionID)
	if err != nil {
		return nil, err
	}
	return parseClaudeFile(path)
}

func (a *ClaudeAdapter) CaptureLatest(
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

func (a *ClaudeAdapter) findSessionFile(sessionID string) (string, error) {
	for _, f := range DiscoverClaudeProjects(a.ProjectsDir) {
		if strings.TrimSuffix(filepath.Base(f.Path), ".jsonl") == sessionID {
			return f.Path, nil
		}
	}
	return "", fmt.Errorf(
		"%w: claude-code session %q", braindumperr.ErrSessionNotFound, sessionID,
	)
}

// claudeLine is one JSONL row kept for ordering/timestamp purposes.
type claudeLine struct {
	entryType string
	uuid      string
	line      string
	timestamp time.Time
}

func claudeSessionInfo(path string) (session.SessionInfo, error) {
	f, err := openNoFollow(path)
	if err != nil {
		return session.SessionInfo{}, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return session.SessionInfo{}, err
	}

	lr := newLineReader(f, maxLineSize)
	var first, last time.Time
	count := 0
	var preview string
	for {
		line, ok := lr.next()
		if !ok {
			break
		}
		if !gjson.Valid(line) {
			continue
		}
		et := gjson.Get(line, "type").Str
		if et != "user" && et != "assistant" {
			continue
		}
		ts := extractTimestamp(line)
		if !ts.IsZero() {
			if first.IsZero() {
				first = ts
			}
			last = ts
		}
		if preview == "" && et == "user" {
			text, _, _, _ := ExtractTextContent(gjson.Get(line, "message.content"))
			if t := strings.TrimSpace(text); t != "" && !isClaudeSystemMessage(t) {
				preview = truncate(t, 200)
			}
		}
		count++
	}
	if last.IsZero() {
		last = fi.ModTime()
	}

	id := strings.TrimSuffix(filepath.Base(path), ".jsonl")
	info := session.SessionInfo{
		ID:           id,
		MessageCount: intPtr(count),
		Preview:      preview,
	}
	if !first.IsZero() {
		info.StartedAt = timePtr(first)
	}
	info.LastActiveAt = timePtr(last)
	return info, nil
}

func parseClaudeFile(path string) (*session.Captured, error) {
	f, err := openNoFollow(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", braindumperr.ErrParseFailure, err)
	}
	defer f.Close()

	sessionID := strings.TrimSuffix(filepath.Base(path), ".jsonl")
	b := newSessionBuilder()

	lr := newLineReader(f, maxLineSize)
	var lines []claudeLine
	for {
		line, ok := lr.next()
		if !ok {
			break
		}
		if !gjson.Valid(line) {
			continue // malformed lines are skipped, not fatal
		}
		et := gjson.Get(line, "type").Str
		if et != "user" && et != "assistant" {
			continue
		}
		lines = append(lines, claudeLine{
			entryType: et,
			uuid:      gjson.Get(line, "uuid").Str,
			line:      line,
			timestamp: extractTimestamp(line),
		})
	}
	if err := lr.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", braindumperr.ErrParseFailure, err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf(
			"%w: no user/assistant entries in %s",
			braindumperr.ErrParseFailure, path,
		)
	}

	// Lines are file-order already, which for claude-code is
	// chronological; sort defensively by timestamp when present so
	// malformed reorderings never invert the transcript.
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].timestamp.IsZero() || lines[j].timestamp.IsZero() {
			return false
		}
		return lines[i].timestamp.Before(lines[j].timestamp)
	})

	var taskDescription string
	var tokens int
	for _, e := range lines {
		if e.entryType == "user" {
			if gjson.Get(e.line, "isMeta").Bool() ||
				gjson.Get(e.line, "isCompactSummary").Bool() {
				continue
			}
		}

		content := gjson.Get(e.line, "message.content")
		text, hasThinking, tcs, trs := ExtractTextContent(content)
		text = strings.TrimSpace(text)
		if text == "" && len(trs) == 0 {
			continue
		}
		if e.entryType == "user" && isClaudeSystemMessage(text) {
			continue
		}

		role := NormalizeRole(e.entryType)
		if hasThinking {
			b.decisionHints.Add(firstSentence(text))
		}
		if text != "" {
			b.addMessage(role, text, e.timestamp)
			if role == session.RoleUser && taskDescription == "" {
				taskDescription = text
			}
		}
		for _, tc := range tcs {
			b.addToolUse(tc, e.timestamp)
		}
		for _, tr := range trs {
			b.addToolResult(tr, e.timestamp)
		}

		if u := gjson.Get(e.line, "message.usage"); u.Exists() {
			tokens += int(u.Get("input_tokens").Int())
			tokens += int(u.Get("output_tokens").Int())
			tokens += int(u.Get("cache_creation_input_tokens").Int())
		}
	}
	b.addTokens(tokens)

	cwd, _ := ExtractClaudeProjectHints(path)
	if cwd == "" {
		cwd, _ = os.Getwd()
	}

	cs := &session.Captured{
		Version:    session.SchemaVersion,
		Source:     session.AgentClaudeCode,
		CapturedAt: time.Now().UTC(),
		SessionID:  sessionID,
		Project:    session.Project{Path: cwd},
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

// extractTimestamp parses the timestamp from a JSONL line, checking
// both top-level and snapshot timestamps.
func extractTimestamp(line string) time.Time {
	ts := parseTimestamp(gjson.Get(line, "timestamp").Str)
	if ts.IsZero() {
		ts = parseTimestamp(gjson.Get(line, "snapshot.timestamp").Str)
	}
	return ts
}

// ExtractClaudeProjectHints reads the cwd/gitBranch recorded on the
// first user entry of a Claude Code JSONL session file.
func ExtractClaudeProjectHints(path string) (cwd, gitBranch string) {
	f, err := os.Open(path)
	if err != nil {
		return "", ""
	}
	defer f.Close()

	lr := newLineReader(f, maxLineSize)
	for {
		line, ok := lr.next()
		if !ok {
			break
		}
		if !gjson.Valid(line) {
			continue
		}
		if gjson.Get(line, "type").Str == "user" {
			if cwd == "" {
				cwd = gjson.Get(line, "cwd").Str
			}
			if gitBranch == "" {
				gitBranch = gjson.Get(line, "gitBranch").Str
			}
			if cwd != "" && gitBranch != "" {
				return cwd, gitBranch
			}
		}
	}
	return cwd, gitBranch
}

// ExtractCwdFromSession reads the first cwd field from a Claude Code
// JSONL session file.
func ExtractCwdFromSession(path string) string {
	cwd, _ := ExtractClaudeProjectHints(path)
	return cwd
}

func truncate(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// isClaudeSystemMessage returns true if the content matches a known
// system-injected user message pattern.
func isClaudeSystemMessage(content string) bool {
	trimmed := strings.TrimSpace(content)
	prefixes := [...]string{
		"This session is being continued",
		"[Request interrupted",
		"<task-notification>",
		"<command-message>",
		"<command-name>",
		"<local-command-",
		"Stop hook feedback:",
	}
	for _, p := range prefixes {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return false
}

func firstSentence(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, ".\n"); i > 0 {
		return s[:i]
	}
	return truncate(s, 200)
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}

func intPtr(i int) *int           { return &i }
func timePtr(t time.Time) *time.Time { return &t }
