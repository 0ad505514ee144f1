// Package config resolves the effective runtime configuration for
// the braindump CLI: per-agent session directories, the default
// compression target and token budget, and environment overrides.
// Adapted from the teacher's internal/config/config.go layering
// (defaults < env < flags, with an agentDirSource bookkeeping map so
// an env override is never silently clobbered by a lower layer),
// generalized from per-agent single directories to the registry's
// multi-candidate PathTemplates and from a web server's
// Host/Port/DataDir surface to braindump's one-shot CLI surface.
package config

import (
	"flag"
	"os"
	"strconv"
	"strings"

	"github.com/wesm/braindump/internal/registry"
	"github.com/wesm/braindump/internal/session"
)

// Config holds the resolved settings for one CLI invocation.
type Config struct {
	// AgentDirs maps each AgentID to its configured candidate
	// directories. Unconfigured agents fall back to
	// registry.ResolveDirs at use time.
	AgentDirs map[session.AgentID][]string

	// Target is the default handoff target ("file", "clipboard", or
	// an AgentID) used when --target is not given.
	Target string

	// Tokens, when non-zero, overrides the registry's usable-token
	// budget for the chosen target.
	Tokens int

	// Verbose enables debug-level structured logging.
	Verbose bool

	agentDirSource map[session.AgentID]dirSource
}

type dirSource int

const (
	dirDefault dirSource = iota
	dirEnv
)

const defaultTarget = "file"

// envPrefix namespaces every environment override this package
// recognizes, e.g. BRAINDUMP_CLAUDE_CODE_DIR, BRAINDUMP_TARGET.
const envPrefix = "BRAINDUMP_"

// Default returns a Config seeded from the registry's per-agent
// default directories, with no env or flag overrides applied.
func Default() Config {
	agentDirs := make(map[session.AgentID][]string, len(session.AllAgents))
	agentDirSource := make(map[session.AgentID]dirSource, len(session.AllAgents))
	for _, id := range session.AllAgents {
		agentDirs[id] = registry.ResolveDirs(id)
		agentDirSource[id] = dirDefault
	}
	return Config{
		AgentDirs:      agentDirs,
		Target:         defaultTarget,
		agentDirSource: agentDirSource,
	}
}

// Load builds a Config by layering defaults, environment variables,
// and explicitly-set CLI flags, in that order. fs must already be
// parsed by the caller; a nil fs skips the flag layer.
func Load(fs *flag.FlagSet) Config {
	cfg := Default()
	cfg.loadEnv()
	applyFlags(&cfg, fs)
	return cfg
}

// ResolveDirs returns the effective candidate directories for agent:
// the configured override if one was set by environment variable, otherwise
// the registry's platform defaults.
func (c *Config) ResolveDirs(agent session.AgentID) []string {
	if dirs, ok := c.AgentDirs[agent]; ok && len(dirs) > 0 {
		return dirs
	}
	return registry.ResolveDirs(agent)
}

// EffectiveBudget returns c.Tokens if set, otherwise the registry's
// usable-token budget for target.
func (c *Config) EffectiveBudget(target string) int {
	if c.Tokens > 0 {
		return c.Tokens
	}
	return registry.BudgetFor(target)
}

func (c *Config) loadEnv() {
	for _, id := range session.AllAgents {
		key := envPrefix + envKeyForAgent(id) + "_DIR"
		if v := os.Getenv(key); v != "" {
			c.AgentDirs[id] = []string{v}
			c.agentDirSource[id] = dirEnv
		}
	}
	if v := os.Getenv(envPrefix + "TARGET"); v != "" {
		c.Target = v
	}
	if v := os.Getenv(envPrefix + "TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Tokens = n
		}
	}
}

// envKeyForAgent turns an AgentID like "claude-code" into the
// SCREAMING_SNAKE_CASE fragment "CLAUDE_CODE" used in its env var.
func envKeyForAgent(id session.AgentID) string {
	return strings.ToUpper(strings.ReplaceAll(string(id), "-", "_"))
}

// RegisterFlags registers the handoff/watch command's shared flags
// on fs. The caller must call fs.Parse before passing fs to Load.
func RegisterFlags(fs *flag.FlagSet) {
	fs.String("target", defaultTarget, "handoff target: file, clipboard, or an agent id")
	fs.Int("tokens", 0, "override the target's usable-token budget")
	fs.Bool("verbose", false, "enable debug-level logging")
}

// applyFlags copies explicitly-set flags from fs into cfg.
func applyFlags(cfg *Config, fs *flag.FlagSet) {
	if fs == nil {
		return
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "target":
			cfg.Target = f.Value.String()
		case "tokens":
			cfg.Tokens, _ = strconv.Atoi(f.Value.String())
		case "verbose":
			cfg.Verbose = f.Value.String() == "true"
		}
	})
}
