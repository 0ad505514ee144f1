package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/wesm/braindump/internal/session"
)

// uuidRe matches a standard UUID (8-4-4-4-12 hex) at the end of a rollout filename stem.
var uuidRe = regexp.MustCompile(
	`^rollout-.*-([0-9a-fA-F]{8}-[0-9a-fA-F]{4}-` +
		`[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12})$`,
)

// isDirOrSymlink reports whether the entry is a directory or a
// symlink that resolves to a directory. parentDir is needed to
// build the full path for symlink resolution.
func isDirOrSymlink(entry os.DirEntry, parentDir string) bool {
	if entry.IsDir() {
		return true
	}
	if entry.Type()&os.ModeSymlink == 0 {
		return false
	}
	fi, err := os.Stat(filepath.Join(parentDir, entry.Name()))
	return err == nil && fi.IsDir()
}

// DiscoveredFile holds a discovered session file.
type DiscoveredFile struct {
	Path    string
	Project string // pre-extracted project name, when cheaply derivable
	Agent   session.AgentID
}

// DiscoverClaudeProjects finds all project directories under the
// Claude projects dir and returns their JSONL session files, plus
// any subagent transcripts nested under a session's subagents/ dir.
func DiscoverClaudeProjects(projectsDir string) []DiscoveredFile {
	entries, err := os.ReadDir(projectsDir)
	if err != nil {
		return nil
	}

	var files []DiscoveredFile
	for _, entry := range entries {
		if !isDirOrSymlink(entry, projectsDir) {
			continue
		}

		projDir := filepath.Join(projectsDir, entry.Name())
		sessionFiles, err := os.ReadDir(projDir)
		if err != nil {
			continue
		}

		for _, sf := range sessionFiles {
			if sf.IsDir() {
				continue
			}
			name := sf.Name()
			if !strings.HasSuffix(name, ".jsonl") {
				continue
			}
			files = append(files, DiscoveredFile{
				Path:    filepath.Join(projDir, name),
				Project: entry.Name(),
				Agent:   session.AgentClaudeCode,
			})
		}

		for _, sf := range sessionFiles {
			if !sf.IsDir() {
				continue
			}
			subagentsDir := filepath.Join(projDir, sf.Name(), "subagents")
			subFiles, err := os.ReadDir(subagentsDir)
			if err != nil {
				continue
			}
			for _, sub := range subFiles {
				if sub.IsDir() {
					continue
				}
				name := sub.Name()
				if !strings.HasPrefix(name, "agent-") ||
					!strings.HasSuffix(name, ".jsonl") {
					continue
				}
				files = append(files, DiscoveredFile{
					Path:    filepath.Join(subagentsDir, name),
					Project: entry.Name(),
					Agent:   session.AgentClaudeCode,
				})
			}
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files
}

// DiscoverCodexSessions finds all JSONL files under the Codex
// sessions dir (year/month/day structure).
func DiscoverCodexSessions(sessionsDir string) []DiscoveredFile {
	var files []DiscoveredFile

	walkCodexDayDirs(sessionsDir, func(dayPath string) bool {
		entries, err := os.ReadDir(dayPath)
		if err != nil {
			return true
		}
		for _, sf := range entries {
			if sf.IsDir() {
				continue
			}
			if !strings.HasSuffix(sf.Name(), ".jsonl") {
				continue
			}
			files = append(files, DiscoveredFile{
				Path:  filepath.Join(dayPath, sf.Name()),
				Agent: session.AgentCodex,
			})
		}
		return true
	})

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files
}

// FindCodexSourceFile finds a Codex session file by UUID. Searches
// the year/month/day directory structure for files matching
// rollout-{timestamp}-{uuid}.jsonl.
func FindCodexSourceFile(sessionsDir, sessionID string) string {
	if !IsValidSessionID(sessionID) {
		return ""
	}

	var result string
	walkCodexDayDirs(sessionsDir, func(dayPath string) bool {
		if result != "" {
			return false
		}
		entries, err := os.ReadDir(dayPath)
		if err != nil {
			return true
		}
		for _, f := range entries {
			if f.IsDir() {
				continue
			}
			name := f.Name()
			if !strings.HasPrefix(name, "rollout-") ||
				!strings.HasSuffix(name, ".jsonl") {
				continue
			}
			if extractUUIDFromRollout(name) == sessionID {
				result = filepath.Join(dayPath, name)
				return false
			}
		}
		return true
	})
	return result
}

// walkCodexDayDirs traverses a Codex sessions directory with
// year/month/day structure, calling fn for each valid day directory.
// fn returns false to stop traversal.
func walkCodexDayDirs(root string, fn func(dayPath string) bool) {
	years, err := os.ReadDir(root)
	if err != nil {
		return
	}
	for _, year := range years {
		if !year.IsDir() || !IsDigits(year.Name()) {
			continue
		}
		yearPath := filepath.Join(root, year.Name())
		months, err := os.ReadDir(yearPath)
		if err != nil {
			continue
		}
		for _, month := range months {
			if !month.IsDir() || !IsDigits(month.Name()) {
				continue
			}
			monthPath := filepath.Join(yearPath, month.Name())
			days, err := os.ReadDir(monthPath)
			if err != nil {
				continue
			}
			for _, day := range days {
				if !day.IsDir() || !IsDigits(day.Name()) {
					continue
				}
				if !fn(filepath.Join(monthPath, day.Name())) {
					return
				}
			}
		}
	}
}

// extractUUIDFromRollout extracts the UUID from a Codex filename
// like rollout-{timestamp}-{uuid}.jsonl using regex matching on the
// standard 8-4-4-4-12 hex format.
func extractUUIDFromRollout(filename string) string {
	stem := strings.TrimSuffix(filename, ".jsonl")
	match := uuidRe.FindStringSubmatch(stem)
	if len(match) < 2 {
		return ""
	}
	return match[1]
}

// IsDigits reports whether s is non-empty and contains only Unicode
// digit characters.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// IsValidSessionID reports whether id contains only alphanumeric
// characters, dashes, and underscores.
func IsValidSessionID(id string) bool {
	if id == "" {
		return false
	}
	for _, c := range id {
		if !isAlphanumOrDashUnderscore(c) {
			return false
		}
	}
	return true
}

func isAlphanumOrDashUnderscore(c rune) bool {
	return isAlphanum(c) || c == '-' || c == '_'
}

func isAlphanum(c rune) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

// DiscoverGeminiSessions finds all session JSON files under the
// Gemini directory (~/.gemini/tmp/*/chats/session-*.json).
func DiscoverGeminiSessions(geminiDir string) []DiscoveredFile {
	if geminiDir == "" {
		return nil
	}

	tmpDir := filepath.Join(geminiDir, "tmp")
	hashDirs, err := os.ReadDir(tmpDir)
	if err != nil {
		return nil
	}

	projectMap := BuildGeminiProjectMap(geminiDir)

	var files []DiscoveredFile
	for _, hd := range hashDirs {
		if !isDirOrSymlink(hd, tmpDir) {
			continue
		}
		hash := hd.Name()
		chatsDir := filepath.Join(tmpDir, hash, "chats")
		entries, err := os.ReadDir(chatsDir)
		if err != nil {
			continue
		}

		project := ResolveGeminiProject(hash, projectMap)

		for _, sf := range entries {
			if sf.IsDir() {
				continue
			}
			name := sf.Name()
			if !strings.HasPrefix(name, "session-") ||
				!strings.HasSuffix(name, ".json") {
				continue
			}
			files = append(files, DiscoveredFile{
				Path:    filepath.Join(chatsDir, name),
				Project: project,
				Agent:   session.AgentGemini,
			})
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files
}

// FindGeminiSourceFile locates a Gemini session file by its session
// UUID. Searches all project hash directories.
func FindGeminiSourceFile(geminiDir, sessionID string) string {
	if geminiDir == "" || !IsValidSessionID(sessionID) || len(sessionID) < 8 {
		return ""
	}

	tmpDir := filepath.Join(geminiDir, "tmp")
	hashDirs, err := os.ReadDir(tmpDir)
	if err != nil {
		return ""
	}

	for _, hd := range hashDirs {
		if !isDirOrSymlink(hd, tmpDir) {
			continue
		}
		chatsDir := filepath.Join(tmpDir, hd.Name(), "chats")
		entries, err := os.ReadDir(chatsDir)
		if err != nil {
			continue
		}
		for _, sf := range entries {
			if sf.IsDir() {
				continue
			}
			name := sf.Name()
			if !strings.HasPrefix(name, "session-") ||
				!strings.HasSuffix(name, ".json") {
				continue
			}
			if strings.Contains(name, sessionID[:8]) {
				path := filepath.Join(chatsDir, name)
				if confirmGeminiSessionID(path, sessionID) {
					return path
				}
			}
		}
	}
	return ""
}

func confirmGeminiSessionID(path, sessionID string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return GeminiSessionID(data) == sessionID
}

// DiscoverCursorSessions finds all workspace storage directories
// under projectsDir, each holding a state.vscdb SQLite database.
func DiscoverCursorSessions(projectsDir string) []DiscoveredFile {
	if projectsDir == "" {
		return nil
	}
	entries, err := os.ReadDir(projectsDir)
	if err != nil {
		return nil
	}

	var files []DiscoveredFile
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dbPath := filepath.Join(projectsDir, entry.Name(), "state.vscdb")
		if !IsRegularFile(dbPath) {
			continue
		}
		files = append(files, DiscoveredFile{
			Path:  dbPath,
			Agent: session.AgentCursor,
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files
}

// geminiProjectsFile holds the structure of ~/.gemini/projects.json.
type geminiProjectsFile struct {
	Projects map[string]string `json:"projects"`
}

// geminiTrustedFoldersFile holds the structure of
// ~/.gemini/trustedFolders.json.
type geminiTrustedFoldersFile struct {
	TrustedFolders []string `json:"trustedFolders"`
}

// BuildGeminiProjectMap reads Gemini config files and returns a map
// from directory name to resolved project name.
func BuildGeminiProjectMap(geminiDir string) map[string]string {
	result := make(map[string]string)

	data, err := os.ReadFile(filepath.Join(geminiDir, "projects.json"))
	if err == nil {
		var pf geminiProjectsFile
		if err := json.Unmarshal(data, &pf); err == nil {
			addProjectPaths(result, pf.Projects)
		}
	}

	tfData, err := os.ReadFile(filepath.Join(geminiDir, "trustedFolders.json"))
	if err == nil {
		var tf geminiTrustedFoldersFile
		if err := json.Unmarshal(tfData, &tf); err == nil {
			paths := make(map[string]string, len(tf.TrustedFolders))
			for _, p := range tf.TrustedFolders {
				paths[p] = ""
			}
			addProjectPaths(result, paths)
		}
	}

	return result
}

func addProjectPaths(result map[string]string, paths map[string]string) {
	sorted := make([]string, 0, len(paths))
	for absPath := range paths {
		sorted = append(sorted, absPath)
	}
	sort.Strings(sorted)

	for _, absPath := range sorted {
		name := paths[absPath]
		project := ExtractProjectFromCwd(absPath)
		if project == "" {
			project = "unknown"
		}
		hash := geminiPathHash(absPath)
		if _, exists := result[hash]; !exists {
			result[hash] = project
		}
		if name != "" {
			if _, exists := result[name]; !exists {
				result[name] = project
			}
		}
	}
}

func geminiPathHash(path string) string {
	h := sha256.Sum256([]byte(path))
	return fmt.Sprintf("%x", h)
}

func isHexHash(s string) bool {
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// ResolveGeminiProject maps a tmp/ subdirectory name to a project
// name using the project map.
func ResolveGeminiProject(dirName string, projectMap map[string]string) string {
	if p := projectMap[dirName]; p != "" {
		return p
	}
	if isHexHash(dirName) {
		return "unknown"
	}
	return normalizeName(dirName)
}

// DiscoverCopilotSessions finds all session directories under
// <copilotDir>/session-state/<id>/ containing an events.jsonl file.
func DiscoverCopilotSessions(copilotDir string) []DiscoveredFile {
	if copilotDir == "" {
		return nil
	}

	stateDir := filepath.Join(copilotDir, "session-state")
	entries, err := os.ReadDir(stateDir)
	if err != nil {
		return nil
	}

	var files []DiscoveredFile
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		eventsPath := filepath.Join(stateDir, entry.Name(), "events.jsonl")
		if !IsRegularFile(eventsPath) {
			continue
		}
		files = append(files, DiscoveredFile{
			Path:  eventsPath,
			Agent: session.AgentCopilot,
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files
}

// FindCopilotSourceFile locates a Copilot session's events.jsonl by
// session UUID.
func FindCopilotSourceFile(copilotDir, rawID string) string {
	if copilotDir == "" || !IsValidSessionID(rawID) {
		return ""
	}
	candidate := filepath.Join(copilotDir, "session-state", rawID, "events.jsonl")
	if IsRegularFile(candidate) {
		return candidate
	}
	return ""
}

// DiscoverOpenCodeSessions reports the primary opencode.db path when
// it exists, otherwise the storage/ directory-tree fallback root when
// that exists; at most one entry is returned.
func DiscoverOpenCodeSessions(dataDir string) []DiscoveredFile {
	if dataDir == "" {
		return nil
	}
	dbPath := filepath.Join(dataDir, "opencode.db")
	if IsRegularFile(dbPath) {
		return []DiscoveredFile{{Path: dbPath, Agent: session.AgentOpenCode}}
	}
	storageRoot := filepath.Join(dataDir, "storage")
	if fi, err := os.Stat(storageRoot); err == nil && fi.IsDir() {
		return []DiscoveredFile{{Path: storageRoot, Agent: session.AgentOpenCode}}
	}
	return nil
}

// DiscoverDroidSessions finds all JSONL session files under
// <droidDir>/sessions/<workspaceSlug>/<uuid>.jsonl.
func DiscoverDroidSessions(droidDir string) []DiscoveredFile {
	if droidDir == "" {
		return nil
	}
	sessionsDir := filepath.Join(droidDir, "sessions")
	slugs, err := os.ReadDir(sessionsDir)
	if err != nil {
		return nil
	}

	var files []DiscoveredFile
	for _, slugEntry := range slugs {
		if !isDirOrSymlink(slugEntry, sessionsDir) {
			continue
		}
		slugDir := filepath.Join(sessionsDir, slugEntry.Name())
		entries, err := os.ReadDir(slugDir)
		if err != nil {
			continue
		}
		for _, sf := range entries {
			if sf.IsDir() {
				continue
			}
			name := sf.Name()
			if !strings.HasSuffix(name, ".jsonl") ||
				strings.HasSuffix(name, ".settings.json") {
				continue
			}
			files = append(files, DiscoveredFile{
				Path:    filepath.Join(slugDir, name),
				Project: slugEntry.Name(),
				Agent:   session.AgentDroid,
			})
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files
}

// IsRegularFile reports whether path is a regular file (not a
// symlink, directory, or special file).
func IsRegularFile(path string) bool {
	info, err := os.Lstat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}
