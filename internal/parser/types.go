// Package parser implements the adapter framework: one file per
// supported agent format (claude.go, codex.go, gemini.go,
// copilot.go, cursor.go, opencode.go, droid.go) plus the shared
// primitives they all compose from (content.go, taxonomy.go,
// linereader.go, project.go, rolemap.go, builder.go) rather than a
// common base type, per the polymorphism design note.
package parser

import "time"

// FileInfo holds filesystem metadata for a session's primary
// artifact.
type FileInfo struct {
	Path  string
	Size  int64
	Mtime int64
}

// rawToolCall is an in-progress tool invocation extracted from a
// message, before it is flattened into session.Message entries and
// folded into tool-activity/file-change tracking by a
// sessionBuilder.
type rawToolCall struct {
	ToolUseID string
	ToolName  string
	Category  string // normalized: Edit, Read, Bash, MCP, Tool
	InputJSON string
	Diff      string // rendered "+X -Y" when the tool surfaces a diff stat
}

// rawToolResult is the paired response to a prior rawToolCall.
type rawToolResult struct {
	ToolUseID     string
	ContentLength int
}

// rawMessage is an adapter-internal representation of one
// conversation turn before it is lowered into session.Message and
// fed through the shared capture protocol in builder.go.
type rawMessage struct {
	Role          string // "user", "assistant", "system", "tool", or a source-specific string to be normalized
	Content       string
	Timestamp     time.Time
	HasThinking   bool
	ToolCalls     []rawToolCall
	ToolResults   []rawToolResult
}
