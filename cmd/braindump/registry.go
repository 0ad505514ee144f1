package main

import (
	"os"
	"path/filepath"

	"github.com/wesm/braindump/internal/adapter"
	"github.com/wesm/braindump/internal/config"
	"github.com/wesm/braindump/internal/parser"
	"github.com/wesm/braindump/internal/session"
)

// buildRegistry instantiates one concrete Adapter per agent using
// cfg's resolved directories, preferring a candidate directory that
// already exists on disk so Detect() reflects the real installation
// rather than always the first platform template.
func buildRegistry(cfg config.Config) *adapter.Registry {
	return adapter.NewRegistry(
		parser.NewClaudeAdapter(pickDir(cfg.ResolveDirs(session.AgentClaudeCode))),
		parser.NewCodexAdapter(pickDir(cfg.ResolveDirs(session.AgentCodex))),
		parser.NewGeminiAdapter(pickDir(cfg.ResolveDirs(session.AgentGemini))),
		parser.NewCopilotAdapter(pickDir(cfg.ResolveDirs(session.AgentCopilot))),
		parser.NewOpenCodeAdapter(pickDir(cfg.ResolveDirs(session.AgentOpenCode))),
		parser.NewDroidAdapter(pickDir(cfg.ResolveDirs(session.AgentDroid))),
		newCursorAdapter(cfg.ResolveDirs(session.AgentCursor)),
	)
}

// pickDir returns the first directory in dirs that exists, or the
// first candidate if none do (so the adapter still has a path to
// report in error messages).
func pickDir(dirs []string) string {
	for _, d := range dirs {
		if _, err := os.Stat(d); err == nil {
			return d
		}
	}
	if len(dirs) > 0 {
		return dirs[0]
	}
	return ""
}

// newCursorAdapter derives cursor's global state.vscdb path as a
// sibling of the chosen workspaceStorage directory: both live under
// the same Cursor "User" directory on every platform.
func newCursorAdapter(dirs []string) *parser.CursorAdapter {
	workspace := pickDir(dirs)
	var globalDB string
	if workspace != "" {
		globalDB = filepath.Join(filepath.Dir(workspace), "globalStorage", "state.vscdb")
	}
	return parser.NewCursorAdapter(workspace, globalDB)
}
