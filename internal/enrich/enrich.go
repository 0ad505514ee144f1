// Package enrich attaches repository context to a captured session's
// project block: package.json name, git branch/status/log, a
// shallow directory tree, and memory-file excerpts. Grounded on the
// teacher's go-git usage in cmd/entire/cli/state.go (openRepository,
// Worktree().Status(), Head()/CommitObject()-based log walking) from
// the mreferre-entirecli example, used here for read-only repository
// inspection instead of shelling out to the git binary.
package enrich

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/google/shlex"

	"github.com/wesm/braindump/internal/session"
)

// extraMemoryFilesEnv, when set, is a shell-quoted list of additional
// memory-file names (relative to the project root) to read alongside
// the two built-in defaults, e.g. `AGENTS.md ".cursor/rules.md"`.
const extraMemoryFilesEnv = "BRAINDUMP_EXTRA_MEMORY_FILES"

const (
	maxTreeLines   = 40
	maxTreeDepth   = 2
	maxMemoryChars = 2000
	maxLogCommits  = 10
)

var excludedDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	".next":        true,
	"dist":         true,
	"__pycache__":  true,
	".venv":        true,
}

var memoryFileNames = []string{"CLAUDE.md", filepath.Join(".claude", "CLAUDE.md")}

// Enrich fills in a Project's Name, GitBranch, GitStatus, GitLog,
// Tree, and Memory fields given a project path. Every sub-step
// tolerates failure and contributes nothing on error; Enrich itself
// never fails.
func Enrich(path string) session.Project {
	p := session.Project{Path: path}
	if path == "" {
		return p
	}

	p.Name = projectName(path)
	p.GitBranch, p.GitStatus, p.GitLog = gitInfo(path)
	p.Tree = directoryTree(path)
	p.Memory = memoryExcerpt(path)
	return p
}

// projectName reads package.json's "name" field, falling back to
// the directory basename.
func projectName(path string) string {
	data, err := os.ReadFile(filepath.Join(path, "package.json"))
	if err == nil {
		var pkg struct {
			Name string `json:"name"`
		}
		if json.Unmarshal(data, &pkg) == nil && pkg.Name != "" {
			return pkg.Name
		}
	}
	return filepath.Base(filepath.Clean(path))
}

// gitInfo returns the current branch, a short status summary, and
// the last ten commit one-liners. Each independently tolerates
// failure and contributes its zero value on error.
func gitInfo(path string) (branch, status string, log []string) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", "", nil
	}

	if head, err := repo.Head(); err == nil && head.Name().IsBranch() {
		branch = head.Name().Short()
	}

	if wt, err := repo.Worktree(); err == nil {
		if st, err := wt.Status(); err == nil {
			status = summarizeStatus(st)
		}
	}

	log = commitLog(repo)
	return branch, status, log
}

func summarizeStatus(st git.Status) string {
	if st.IsClean() {
		return "clean"
	}
	var modified, added, deleted, untracked int
	for _, fs := range st {
		switch {
		case fs.Worktree == git.Untracked:
			untracked++
		case fs.Worktree == git.Deleted || fs.Staging == git.Deleted:
			deleted++
		case fs.Worktree == git.Added || fs.Staging == git.Added:
			added++
		default:
			modified++
		}
	}
	var parts []string
	if modified > 0 {
		parts = append(parts, pluralCount(modified, "modified"))
	}
	if added > 0 {
		parts = append(parts, pluralCount(added, "added"))
	}
	if deleted > 0 {
		parts = append(parts, pluralCount(deleted, "deleted"))
	}
	if untracked > 0 {
		parts = append(parts, pluralCount(untracked, "untracked"))
	}
	return strings.Join(parts, ", ")
}

func pluralCount(n int, label string) string {
	return strconv.Itoa(n) + " " + label
}

func commitLog(repo *git.Repository) []string {
	head, err := repo.Head()
	if err != nil {
		return nil
	}
	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil
	}
	defer iter.Close()

	var lines []string
	_ = iter.ForEach(func(c *object.Commit) error {
		if len(lines) >= maxLogCommits {
			return storer.ErrStop
		}
		summary := strings.SplitN(c.Message, "\n", 2)[0]
		lines = append(lines, c.Hash.String()[:7]+" "+summary)
		return nil
	})
	return lines
}

// directoryTree walks path to depth 2, alphabetizing directories
// before files within each level, skipping the fixed exclusion set,
// capped at 40 lines total.
func directoryTree(root string) string {
	var lines []string
	walkTree(root, "", 0, &lines)
	if len(lines) > maxTreeLines {
		lines = lines[:maxTreeLines]
	}
	return strings.Join(lines, "\n")
}

func walkTree(dir, prefix string, depth int, lines *[]string) {
	if depth > maxTreeDepth || len(*lines) >= maxTreeLines {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	var dirs, files []os.DirEntry
	for _, e := range entries {
		if excludedDirs[e.Name()] {
			continue
		}
		if e.IsDir() {
			dirs = append(dirs, e)
		} else {
			files = append(files, e)
		}
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].Name() < dirs[j].Name() })
	sort.Slice(files, func(i, j int) bool { return files[i].Name() < files[j].Name() })

	for _, d := range dirs {
		if len(*lines) >= maxTreeLines {
			return
		}
		*lines = append(*lines, prefix+d.Name()+"/")
		walkTree(filepath.Join(dir, d.Name()), prefix+"  ", depth+1, lines)
	}
	for _, f := range files {
		if len(*lines) >= maxTreeLines {
			return
		}
		*lines = append(*lines, prefix+f.Name())
	}
}

// memoryExcerpt reads the default memory files plus any extra names
// listed in BRAINDUMP_EXTRA_MEMORY_FILES, concatenates them, and
// truncates to 2000 characters.
func memoryExcerpt(root string) string {
	var parts []string
	for _, name := range memoryFileNamesWithExtras() {
		data, err := os.ReadFile(filepath.Join(root, name))
		if err != nil {
			continue
		}
		parts = append(parts, string(data))
	}
	joined := strings.Join(parts, "\n\n")
	if len(joined) > maxMemoryChars {
		return joined[:maxMemoryChars]
	}
	return joined
}

// memoryFileNamesWithExtras appends any names the user configured via
// extraMemoryFilesEnv, shell-tokenized so a name containing a space
// can be quoted. A malformed value is ignored rather than failing
// enrichment.
func memoryFileNamesWithExtras() []string {
	raw := os.Getenv(extraMemoryFilesEnv)
	if raw == "" {
		return memoryFileNames
	}
	extra, err := shlex.Split(raw)
	if err != nil || len(extra) == 0 {
		return memoryFileNames
	}
	return append(append([]string{}, memoryFileNames...), extra...)
}
