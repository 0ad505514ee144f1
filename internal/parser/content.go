package parser

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// ExtractTextContent extracts readable text from a claude-code/codex
// style message content value, which is either a plain string or a
// JSON array of typed blocks ("text", "thinking", "tool_use",
// "tool_result"). Returns the rendered text, whether a thinking
// block was present, the tool calls found, and the tool results
// found, per the shared capture protocol.
func ExtractTextContent(
	content gjson.Result,
) (string, bool, []rawToolCall, []rawToolResult) {
	if content.Type == gjson.String {
		return content.Str, false, nil, nil
	}

	if !content.IsArray() {
		return "", false, nil, nil
	}

	var (
		parts       []string
		toolCalls   []rawToolCall
		toolResults []rawToolResult
		hasThinking bool
	)
	content.ForEach(func(_, block gjson.Result) bool {
		switch block.Get("type").Str {
		case "text":
			text := block.Get("text").Str
			if text != "" {
				parts = append(parts, text)
			}
		case "thinking":
			thinking := block.Get("thinking").Str
			if thinking != "" {
				hasThinking = true
				parts = append(parts,
					"[Thinking]\n"+thinking+"\n[/Thinking]")
			}
		case "tool_use":
			name := block.Get("name").Str
			if name != "" {
				toolCalls = append(toolCalls, rawToolCall{
					ToolUseID: block.Get("id").Str,
					ToolName:  name,
					Category:  NormalizeToolCategory(name),
					InputJSON: block.Get("input").Raw,
				})
			}
			parts = append(parts, formatToolUse(block))
		case "tool_result":
			tuid := block.Get("tool_use_id").Str
			if tuid != "" {
				rc := block.Get("content")
				toolResults = append(toolResults, rawToolResult{
					ToolUseID:     tuid,
					ContentLength: toolResultContentLength(rc),
				})
			}
		}
		return true
	})

	return strings.Join(parts, "\n"), hasThinking, toolCalls, toolResults
}

func toolResultContentLength(content gjson.Result) int {
	if content.Type == gjson.String {
		return len(content.Str)
	}
	if content.IsArray() {
		total := 0
		content.ForEach(func(_, block gjson.Result) bool {
			total += len(block.Get("text").Str)
			return true
		})
		return total
	}
	return 0
}

var todoIcons = map[string]string{
	"completed":   "✓",
	"in_progress": "→",
	"pending":     "○",
}

func formatToolUse(block gjson.Result) string {
	name := block.Get("name").Str
	input := block.Get("input")

	switch name {
	case "AskUserQuestion":
		return formatAskUserQuestion(name, input)
	case "TodoWrite":
		return formatTodoWrite(input)
	case "EnterPlanMode":
		return "[Entering Plan Mode]"
	case "ExitPlanMode":
		return "[Exiting Plan Mode]"
	case "Read":
		path := input.Get("file_path").Str
		if path == "" {
			path = input.Get("path").Str
		}
		return fmt.Sprintf("[Read: %s]", path)
	case "Glob":
		return formatGlob(input)
	case "Grep":
		return fmt.Sprintf("[Grep: %s]", input.Get("pattern").Str)
	case "Edit":
		return fmt.Sprintf("[Edit: %s]", input.Get("file_path").Str)
	case "Write":
		return fmt.Sprintf("[Write: %s]", input.Get("file_path").Str)
	case "Bash":
		return formatBash(input)
	case "apply_patch":
		return fmt.Sprintf("[Patch: %s]", input.Get("path").Str)
	case "Task":
		return formatTask(input)
	case "Skill", "skill":
		skill := input.Get("skill").Str
		if skill == "" {
			skill = input.Get("name").Str
		}
		return fmt.Sprintf("[Skill: %s]", skill)
	default:
		return fmt.Sprintf("[Tool: %s]", name)
	}
}

func formatAskUserQuestion(
	name string, input gjson.Result,
) string {
	var lines []string
	lines = append(lines, fmt.Sprintf("[Question: %s]", name))
	input.Get("questions").ForEach(func(_, q gjson.Result) bool {
		lines = append(lines, "  "+q.Get("question").Str)
		q.Get("options").ForEach(func(_, opt gjson.Result) bool {
			lines = append(lines, fmt.Sprintf(
				"    - %s: %s",
				opt.Get("label").Str,
				opt.Get("description").Str,
			))
			return true
		})
		return true
	})
	return strings.Join(lines, "\n")
}

func formatTodoWrite(input gjson.Result) string {
	var lines []string
	lines = append(lines, "[Todo List]")
	input.Get("todos").ForEach(func(_, todo gjson.Result) bool {
		status := todo.Get("status").Str
		icon := todoIcons[status]
		if icon == "" {
			icon = "○"
		}
		lines = append(lines, fmt.Sprintf(
			"  %s %s", icon, todo.Get("content").Str,
		))
		return true
	})
	return strings.Join(lines, "\n")
}

func formatGlob(input gjson.Result) string {
	return fmt.Sprintf("[Glob: %s in %s]",
		input.Get("pattern").Str,
		orDefault(input.Get("path").Str, "."))
}

func formatBash(input gjson.Result) string {
	cmd := input.Get("command").Str
	desc := input.Get("description").Str
	if desc != "" {
		return fmt.Sprintf("[Bash: %s]\n$ %s", desc, cmd)
	}
	return fmt.Sprintf("[Bash]\n$ %s", cmd)
}

func formatTask(input gjson.Result) string {
	desc := input.Get("description").Str
	agentType := input.Get("subagent_type").Str
	return fmt.Sprintf("[Task: %s (%s)]", desc, agentType)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
