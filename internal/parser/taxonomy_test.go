package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeToolCategory(t *testing.T) {
	cases := map[string]string{
		"Read":            "Read",
		"Grep":            "Read",
		"Glob":            "Read",
		"LS":              "Read",
		"Edit":            "Edit",
		"Write":           "Edit",
		"NotebookEdit":    "Edit",
		"apply_patch":     "Edit",
		"Bash":            "Bash",
		"Shell":           "Bash",
		"Task":            "Tool",
		"Skill":           "Tool",
		"shell_command":   "Bash",
		"exec_command":    "Bash",
		"read_file":       "Read",
		"grep":            "Read",
		"write_file":      "Edit",
		"run_command":     "Bash",
		"mcp__github__pr": "MCP",
		"mcp_custom_tool": "MCP",
		"SomeUnknownTool": "Tool",
		"":                "Tool",
	}
	for raw, want := range cases {
		assert.Equal(t, want, NormalizeToolCategory(raw), "raw=%q", raw)
	}
}
