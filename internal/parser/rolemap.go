package parser

import "github.com/wesm/braindump/internal/session"

// NormalizeRole centralizes the source-role-string mapping so no
// adapter re-invents it: "model" and "assistant" map to assistant,
// "human" and "user" map to user, "system" and "tool" pass through,
// and anything unrecognized defaults to assistant.
func NormalizeRole(raw string) session.Role {
	switch raw {
	case "model", "assistant":
		return session.RoleAssistant
	case "human", "user":
		return session.RoleUser
	case "system":
		return session.RoleSystem
	case "tool":
		return session.RoleTool
	default:
		return session.RoleAssistant
	}
}
