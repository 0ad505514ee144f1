package parser

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	// Registers the "sqlite3" database/sql driver used by the cursor
	// and opencode adapters to open their state/session databases
	// read-only.
	_ "github.com/mattn/go-sqlite3"

	"github.com/wesm/braindump/internal/analyze"
	"github.com/wesm/braindump/internal/dedup"
	"github.com/wesm/braindump/internal/enrich"
	"github.com/wesm/braindump/internal/schema"
	"github.com/wesm/braindump/internal/session"
)

// filePathKeys are the argument names adapters have observed across
// the seven agent formats for "the path this tool call touched".
var filePathKeys = []string{
	"file_path", "path", "filePath", "notebook_path",
}

// sessionBuilder implements the shared capture protocol of spec.md
// §4.1: every adapter streams its primary artifact through one of
// these, which flattens tool_use/tool_result blocks into tool
// messages, upserts file changes keyed by path, tallies tool
// activity, and accumulates token usage and session bounds. This is
// a generalization of the per-parser accumulation idiom the teacher
// repeats in claude.go/codex.go/gemini.go/copilot.go (local
// "messages", "firstMessage", "startedAt", "endedAt" state scanned
// line by line) into one reusable type, since spec.md requires the
// additional file-change/tool-activity synthesis the teacher's
// per-agent builders didn't need.
type sessionBuilder struct {
	messages     []session.Message
	fileChanges  []session.FileChange
	fileIndex    map[string]int
	toolActivity map[string]*session.ToolActivity
	activityKeys []string // insertion order for toolActivity

	startedAt time.Time
	endedAt   time.Time
	tokens    int

	lastAssistantText string
	decisionHints      *dedup.Builder

	taskRemaining  *dedup.Builder
	taskCompleted  *dedup.Builder
	taskInProgress string
}

func newSessionBuilder() *sessionBuilder {
	return &sessionBuilder{
		fileIndex:     make(map[string]int),
		toolActivity:  make(map[string]*session.ToolActivity),
		decisionHints: dedup.NewBuilder(),
		taskRemaining: dedup.NewBuilder(),
		taskCompleted: dedup.NewBuilder(),
	}
}

// observe widens the session's started/ended bounds to include ts.
func (b *sessionBuilder) observe(ts time.Time) {
	if ts.IsZero() {
		return
	}
	if b.startedAt.IsZero() || ts.Before(b.startedAt) {
		b.startedAt = ts
	}
	if ts.After(b.endedAt) {
		b.endedAt = ts
	}
}

// addTokens accumulates token usage read from a per-message or
// global usage block (input + output + optional cache-creation).
func (b *sessionBuilder) addTokens(n int) {
	if n > 0 {
		b.tokens += n
	}
}

// addMessage appends a plain user/assistant/system message.
func (b *sessionBuilder) addMessage(role session.Role, content string, ts time.Time) {
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}
	var tsPtr *time.Time
	if !ts.IsZero() {
		t := ts
		tsPtr = &t
	}
	b.messages = append(b.messages, session.Message{
		Role:      role,
		Content:   content,
		Timestamp: tsPtr,
	})
	if role == session.RoleAssistant {
		b.lastAssistantText = content
	}
	b.observe(ts)
}

// addToolUse appends a tool message for a tool invocation, records
// a tool-activity sample, and upserts a FileChange when the call's
// arguments reference a file path.
func (b *sessionBuilder) addToolUse(tc rawToolCall, ts time.Time) {
	b.observe(ts)

	display := formatToolDisplay(tc)
	var tsPtr *time.Time
	if !ts.IsZero() {
		t := ts
		tsPtr = &t
	}
	b.messages = append(b.messages, session.Message{
		Role:      session.RoleTool,
		Content:   display,
		ToolName:  tc.ToolName,
		Timestamp: tsPtr,
	})

	b.recordActivity(tc.Category, display)

	if path := extractFilePath(tc.InputJSON); path != "" {
		b.upsertFileChange(path, tc.ToolName, tc.Diff)
	}
	if tc.ToolName == "TodoWrite" {
		b.applyTodoWriteInput(tc.InputJSON)
	}
}

// applyTodoWriteInput folds a TodoWrite tool call's structured todo
// list into Task.Remaining/Completed/InProgress, the same task state
// droid's todo_state events feed through addTodoItem.
func (b *sessionBuilder) applyTodoWriteInput(inputJSON string) {
	if inputJSON == "" {
		return
	}
	gjson.Get(inputJSON, "todos").ForEach(func(_, todo gjson.Result) bool {
		b.addTodoItem(todo.Get("content").Str, todo.Get("status").Str)
		return true
	})
}

// addTodoItem folds one normalized todo-list entry into the task
// state: completed/done items go to Task.Completed, in-progress
// items set Task.InProgress and also count as remaining work, and
// pending (or any other open status) items go to Task.Remaining.
func (b *sessionBuilder) addTodoItem(text, status string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	switch strings.ToLower(status) {
	case "completed", "done":
		b.taskCompleted.Add(text)
	case "in_progress", "in-progress":
		b.taskRemaining.Add(text)
		b.taskInProgress = truncate(text, 200)
	default:
		b.taskRemaining.Add(text)
	}
}

func (b *sessionBuilder) taskRemainingValues() []string { return b.taskRemaining.Values() }
func (b *sessionBuilder) taskCompletedValues() []string { return b.taskCompleted.Values() }

// addToolResult appends a tool message for a tool result paired to
// a prior tool_use.
func (b *sessionBuilder) addToolResult(tr rawToolResult, ts time.Time) {
	b.observe(ts)
	var tsPtr *time.Time
	if !ts.IsZero() {
		t := ts
		tsPtr = &t
	}
	b.messages = append(b.messages, session.Message{
		Role:      session.RoleTool,
		Content:   "",
		Timestamp: tsPtr,
	})
	_ = tr // content length is not surfaced in the canonical record; presence is
}

func (b *sessionBuilder) recordActivity(category, sample string) {
	if category == "" {
		category = "Tool"
	}
	a, ok := b.toolActivity[category]
	if !ok {
		a = &session.ToolActivity{Category: category}
		b.toolActivity[category] = a
		b.activityKeys = append(b.activityKeys, category)
	}
	a.Count++
	if sample != "" && len(a.Samples) < 3 {
		a.Samples = append(a.Samples, sample)
	}
}

// upsertFileChange records or updates a FileChange for path. Last
// write wins for the change type, per the round-trip law: two tool
// uses touching the same path collapse into one entry.
func (b *sessionBuilder) upsertFileChange(path, toolName, diff string) {
	ct := classifyChange(toolName)
	lang := languageFromPath(path)
	if idx, ok := b.fileIndex[path]; ok {
		b.fileChanges[idx].Type = ct
		if diff != "" {
			b.fileChanges[idx].Diff = diff
		}
		return
	}
	b.fileIndex[path] = len(b.fileChanges)
	b.fileChanges = append(b.fileChanges, session.FileChange{
		Path:     path,
		Type:     ct,
		Diff:     diff,
		Language: lang,
	})
}

func classifyChange(toolName string) session.ChangeType {
	lower := strings.ToLower(toolName)
	switch {
	case strings.Contains(lower, "delete"), strings.Contains(lower, "remove"):
		return session.ChangeDeleted
	case strings.Contains(lower, "create"), strings.Contains(lower, "write"):
		return session.ChangeCreated
	default:
		return session.ChangeModified
	}
}

func languageFromPath(path string) string {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	return ext
}

func extractFilePath(inputJSON string) string {
	if inputJSON == "" {
		return ""
	}
	for _, key := range filePathKeys {
		if v := gjson.Get(inputJSON, key).Str; v != "" {
			return v
		}
	}
	return ""
}

func formatToolDisplay(tc rawToolCall) string {
	if tc.Diff != "" {
		return formatToolHeader(tc.Category, tc.ToolName) + " " + tc.Diff
	}
	return formatToolHeader(tc.Category, tc.ToolName)
}

func formatToolHeader(category, name string) string {
	if name == "" {
		return "[Tool]"
	}
	return "[" + category + ": " + name + "]"
}

// inProgress returns the explicit in-progress todo item if the
// session reported one, else falls back to the last assistant text
// truncated to 200 characters.
func (b *sessionBuilder) inProgress() string {
	if b.taskInProgress != "" {
		return b.taskInProgress
	}
	return truncate(b.lastAssistantText, 200)
}

// buildConversation assembles the final session.Conversation from
// accumulated state.
func (b *sessionBuilder) buildConversation() session.Conversation {
	tokens := b.tokens
	if tokens == 0 {
		tokens = estimateFromMessages(b.messages)
	}
	return session.Conversation{
		MessageCount:    len(b.messages),
		EstimatedTokens: tokens,
		Messages:        b.messages,
	}
}

func (b *sessionBuilder) buildToolActivity() []session.ToolActivity {
	if len(b.activityKeys) == 0 {
		return nil
	}
	out := make([]session.ToolActivity, 0, len(b.activityKeys))
	for _, k := range b.activityKeys {
		out = append(out, *b.toolActivity[k])
	}
	return out
}

func estimateFromMessages(msgs []session.Message) int {
	total := 0
	for _, m := range msgs {
		total += (len(m.Content) + 3) / 4
	}
	return total
}

// finalizeCaptured applies the tail of the shared capture protocol
// that is identical across all seven formats: enrich the project
// directory, run the conversation analyzer, merge its findings into
// whatever task/decision state the format-specific builder already
// accumulated, and validate the result before handing it back to the
// caller. Every adapter's Capture/CaptureLatest routes its record
// through this instead of returning cs directly.
func finalizeCaptured(cs *session.Captured) (*session.Captured, error) {
	path := cs.Project.Path
	if path == "" {
		path, _ = os.Getwd()
	}
	cs.Project = enrich.Enrich(path)

	result := analyze.Analyze(cs.Conversation.Messages)
	if result.TaskDescription != "" && (cs.Task.Description == "" || cs.Task.Description == "Unknown task") {
		cs.Task.Description = result.TaskDescription
	}
	cs.Task.Completed = mergeUnique(cs.Task.Completed, result.Completed)
	cs.Task.Blockers = mergeUnique(cs.Task.Blockers, result.Blockers)
	cs.Decisions = mergeUnique(cs.Decisions, result.Decisions)
	cs.Blockers = mergeUnique(cs.Blockers, result.Blockers)

	if err := schema.Validate(cs); err != nil {
		return nil, err
	}
	return cs, nil
}

// mergeUnique appends b's entries onto a, skipping trimmed-text
// duplicates already present, preserving first-occurrence order per
// spec.md §4.1(h).
func mergeUnique(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]struct{}, len(a))
	for _, v := range a {
		seen[strings.TrimSpace(v)] = struct{}{}
	}
	out := a
	for _, v := range b {
		key := strings.TrimSpace(v)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
