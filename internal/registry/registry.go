// Package registry holds the process-wide immutable configuration
// for each supported agent: display name, per-platform storage path
// templates, context window, usable token budget, and memory-file
// names. It is grounded on the teacher's internal/config.Config
// pattern of iterating a per-agent definition table to resolve
// default directories, generalized into a proper agent registry
// since braindump (unlike the teacher) needs the registry for
// budget selection, not just default-directory seeding.
package registry

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/wesm/braindump/internal/session"
)

// Platform identifies one of the three path-template classes a
// registry entry can carry.
type Platform string

const (
	PlatformUnix    Platform = "unix"
	PlatformDarwin  Platform = "darwin"
	PlatformWindows Platform = "windows"
)

// Entry describes one agent's registry metadata.
type Entry struct {
	ID             session.AgentID
	DisplayName    string
	PathTemplates  map[Platform][]string // relative to the platform base dir, or absolute on Windows via %LOCALAPPDATA%
	ContextWindow  int
	UsableBudget   int
	MemoryFileName []string
}

// envLookup abstracts os.Getenv so platform-base resolution is a
// pure function of (goos, lookup) and therefore independently
// testable for every platform regardless of the host running the
// test, per spec.md §9's open question.
type envLookup func(string) string

// Registry is the closed, process-wide table of agent definitions.
var Registry = map[session.AgentID]Entry{
	session.AgentClaudeCode: {
		ID:          session.AgentClaudeCode,
		DisplayName: "Claude Code",
		PathTemplates: map[Platform][]string{
			PlatformUnix:    {".claude/projects"},
			PlatformDarwin:  {".claude/projects"},
			PlatformWindows: {".claude/projects"},
		},
		ContextWindow:  200_000,
		UsableBudget:   40_000,
		MemoryFileName: []string{"CLAUDE.md", ".claude/CLAUDE.md"},
	},
	session.AgentCursor: {
		ID:          session.AgentCursor,
		DisplayName: "Cursor",
		PathTemplates: map[Platform][]string{
			PlatformUnix:    {".config/Cursor/User/workspaceStorage"},
			PlatformDarwin:  {"Library/Application Support/Cursor/User/workspaceStorage"},
			PlatformWindows: {"Cursor/User/workspaceStorage"},
		},
		ContextWindow: 200_000,
		UsableBudget:  40_000,
	},
	session.AgentCodex: {
		ID:          session.AgentCodex,
		DisplayName: "Codex",
		PathTemplates: map[Platform][]string{
			PlatformUnix:    {".codex/sessions"},
			PlatformDarwin:  {".codex/sessions"},
			PlatformWindows: {".codex/sessions"},
		},
		ContextWindow: 128_000,
		UsableBudget:  25_000,
	},
	session.AgentCopilot: {
		ID:          session.AgentCopilot,
		DisplayName: "GitHub Copilot CLI",
		PathTemplates: map[Platform][]string{
			PlatformUnix:    {".copilot/session-state"},
			PlatformDarwin:  {".copilot/session-state"},
			PlatformWindows: {".copilot/session-state"},
		},
		ContextWindow: 128_000,
		UsableBudget:  25_000,
	},
	session.AgentGemini: {
		ID:          session.AgentGemini,
		DisplayName: "Gemini CLI",
		PathTemplates: map[Platform][]string{
			PlatformUnix:    {".gemini/tmp"},
			PlatformDarwin:  {".gemini/tmp"},
			PlatformWindows: {".gemini/tmp"},
		},
		ContextWindow: 1_000_000,
		UsableBudget:  60_000,
	},
	session.AgentOpenCode: {
		ID:          session.AgentOpenCode,
		DisplayName: "OpenCode",
		PathTemplates: map[Platform][]string{
			PlatformUnix:    {".local/share/opencode"},
			PlatformDarwin:  {".local/share/opencode"},
			PlatformWindows: {"opencode"},
		},
		ContextWindow: 200_000,
		UsableBudget:  40_000,
	},
	session.AgentDroid: {
		ID:          session.AgentDroid,
		DisplayName: "Factory Droid",
		PathTemplates: map[Platform][]string{
			PlatformUnix:    {".factory/sessions"},
			PlatformDarwin:  {".factory/sessions"},
			PlatformWindows: {".factory/sessions"},
		},
		ContextWindow: 200_000,
		UsableBudget:  40_000,
	},
}

// GenericFileBudget is the fallback usable-token budget used by the
// compression engine when the target is "file" rather than a known
// agent identifier.
const GenericFileBudget = 19_000

// BudgetFor returns the usable-token budget for target, which may be
// an AgentID, "file", or "clipboard". Unknown targets use the
// generic file budget.
func BudgetFor(target string) int {
	if e, ok := Registry[session.AgentID(target)]; ok {
		return e.UsableBudget
	}
	return GenericFileBudget
}

// BasePath resolves the platform-specific base directory an agent's
// PathTemplates are relative to: the user's home directory on
// Unix/macOS, or %LOCALAPPDATA% on Windows. goos and lookup are
// passed explicitly so platform resolution is a pure function,
// independently testable for every platform.
func BasePath(goos string, home string, lookup envLookup) string {
	if goos == "windows" {
		if v := lookup("LOCALAPPDATA"); v != "" {
			return v
		}
		return home
	}
	return home
}

// ResolveDirs returns the absolute candidate directories for agent
// on the current platform, using the real OS/home/env.
func ResolveDirs(agent session.AgentID) []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	plat := hostPlatform(runtime.GOOS)
	base := BasePath(runtime.GOOS, home, os.Getenv)

	entry, ok := Registry[agent]
	if !ok {
		return nil
	}
	templates := entry.PathTemplates[plat]
	dirs := make([]string, 0, len(templates))
	for _, t := range templates {
		dirs = append(dirs, filepath.Join(base, t))
	}
	return dirs
}

func hostPlatform(goos string) Platform {
	switch goos {
	case "windows":
		return PlatformWindows
	case "darwin":
		return PlatformDarwin
	default:
		return PlatformUnix
	}
}
