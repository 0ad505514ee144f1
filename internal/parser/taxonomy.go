package parser

import "strings"

// NormalizeToolCategory maps a raw tool name from any of the seven
// agent formats to braindump's closed tool-class set: Edit, Read,
// Bash, MCP, Tool. This is a collapse of the teacher's finer
// {Read,Edit,Write,Bash,Grep,Glob,Task,Other} taxonomy down to
// spec.md §3's smaller ToolActivitySummary classes: Write/NotebookEdit
// fold into Edit, Grep/Glob/LS fold into Read, Task/Skill fold into
// Tool, and anything whose name carries an "mcp__" style prefix or
// otherwise isn't recognized folds into MCP or Tool respectively.
func NormalizeToolCategory(rawName string) string {
	switch rawName {
	// Claude Code tools
	case "Read", "Grep", "Glob", "LS":
		return "Read"
	case "Edit", "Write", "NotebookEdit", "StrReplace", "apply_patch":
		return "Edit"
	case "Bash", "Shell":
		return "Bash"
	case "Task", "Skill", "skill":
		return "Tool"

	// Codex tools
	case "shell_command", "exec_command", "write_stdin", "shell":
		return "Bash"

	// Gemini tools
	case "read_file", "search_files", "grep", "list_directory":
		return "Read"
	case "write_file", "edit_file":
		return "Edit"
	case "run_command", "execute_command":
		return "Bash"
	}

	if strings.HasPrefix(rawName, "mcp__") || strings.HasPrefix(rawName, "mcp_") {
		return "MCP"
	}
	if rawName == "" {
		return "Tool"
	}
	return "Tool"
}
