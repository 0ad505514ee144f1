package parser

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/wesm/braindump/internal/braindumperr"
	"github.com/wesm/braindump/internal/session"
)

// CursorAdapter reads a workspace's state.vscdb (an ItemTable row
// keyed "composer.composerData" listing composer ids for that
// workspace) and resolves each composer's full conversation from the
// global state.vscdb's cursorDiskKV table (rows keyed
// "composerData:<id>"). Grounded on the teacher's opencode.go
// (openOpenCodeDB read-only DSN, row scanning) since the teacher's
// own cursor.go assumed a flat ".txt" transcript that spec.md's
// relational store format does not have.
type CursorAdapter struct {
	WorkspaceStorageDir string // .../User/workspaceStorage
	GlobalDBPath        string // .../User/globalStorage/state.vscdb
}

func NewCursorAdapter(workspaceStorageDir, globalDBPath string) *CursorAdapter {
	return &CursorAdapter{
		WorkspaceStorageDir: workspaceStorageDir,
		GlobalDBPath:        globalDBPath,
	}
}

func (a *CursorAdapter) ID() session.AgentID { return session.AgentCursor }

func (a *CursorAdapter) Detect() bool {
	return len(DiscoverCursorSessions(a.WorkspaceStorageDir)) > 0
}

func (a *CursorAdapter) ListSessions(
	ctx context.Context, projectPath string,
) ([]session.SessionInfo, error) {
	_ = ctx
	files := DiscoverCursorSessions(a.WorkspaceStorageDir)
	var out []session.SessionInfo
	for _, f := range files {
		metas, folder, err := cursorWorkspaceMeta(f.Path)
		if err != nil {
			continue
		}
		if projectPath != "" && folder != "" && !PathsEqual(folder, projectPath) {
			continue
		}
		for _, m := range metas {
			info, err := cursorComposerInfo(a.GlobalDBPath, m.composerID)
			if err != nil {
				continue
			}
			info.ProjectPath = folder
			out = append(out, info)
		}
	}
	SortSessionInfos(out)
	return out, nil
}

func (a *CursorAdapter) Capture(
	ctx context.Context, sessionID string,
) (*session.Captured, error) {
	_ = ctx
	composerID := strings.TrimPrefix(sessionID, "cursor:")
	project := a.projectForComposer(composerID)
	return parseCursorComposer(a.GlobalDBPath, composerID, project)
}

func (a *CursorAdapter) CaptureLatest(
	ctx context.Context, projectPath string,
) (*session.Captured, error) {
	infos, err := a.ListSessions(ctx, projectPath)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, braindumperr.ErrNoSessions
	}
	return a.Capture(ctx, infos[0].ID)
}

// projectForComposer walks every known workspace db looking for one
// whose composer-id list contains composerID, returning its decoded
// folder path.
func (a *CursorAdapter) projectForComposer(composerID string) string {
	for _, f := range DiscoverCursorSessions(a.WorkspaceStorageDir) {
		metas, folder, err := cursorWorkspaceMeta(f.Path)
		if err != nil {
			continue
		}
		for _, m := range metas {
			if m.composerID == composerID {
				return folder
			}
		}
	}
	return ""
}

func openCursorDB(dbPath string) (*sql.DB, error) {
	dsn := dbPath + "?mode=ro&_journal_mode=WAL&_busy_timeout=3000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening cursor db %s: %w", dbPath, err)
	}
	return db, nil
}

type cursorComposerMeta struct {
	composerID string
	createdAt  int64
}

// cursorWorkspaceMeta reads the composer.composerData row from a
// workspace's ItemTable for its list of composer ids, and decodes a
// folder path from the most recent history.entries resource; when
// neither is present the workspace directory's own name is decoded
// via DecodeCursorProjectDir as a last resort.
func cursorWorkspaceMeta(dbPath string) ([]cursorComposerMeta, string, error) {
	db, err := openCursorDB(dbPath)
	if err != nil {
		return nil, "", err
	}
	defer db.Close()

	var composerRaw, folderRaw string
	row := db.QueryRow(
		`SELECT value FROM ItemTable WHERE key = 'composer.composerData'`,
	)
	_ = row.Scan(&composerRaw) // absent is not an error

	row = db.QueryRow(
		`SELECT value FROM ItemTable WHERE key = 'history.entries'`,
	)
	_ = row.Scan(&folderRaw)

	var folder string
	if folderRaw != "" {
		folder = extractCursorFolderFromHistory(folderRaw)
	}
	if folder == "" {
		folder = DecodeCursorProjectDir(filepath.Base(filepath.Dir(dbPath)))
	}

	if composerRaw == "" {
		return nil, folder, nil
	}

	var doc struct {
		AllComposers []struct {
			ComposerID string `json:"composerId"`
			CreatedAt  int64  `json:"createdAt"`
		} `json:"allComposers"`
	}
	if err := json.Unmarshal([]byte(composerRaw), &doc); err != nil {
		return nil, folder, fmt.Errorf("parsing composerData in %s: %w", dbPath, err)
	}

	metas := make([]cursorComposerMeta, 0, len(doc.AllComposers))
	for _, c := range doc.AllComposers {
		if c.ComposerID == "" {
			continue
		}
		metas = append(metas, cursorComposerMeta{
			composerID: c.ComposerID,
			createdAt:  c.CreatedAt,
		})
	}
	return metas, folder, nil
}

// extractCursorFolderFromHistory pulls a resource path out of the
// first history.entries row, which cursor stores as a JSON array of
// {editor: {resource: "file:///abs/path"}} objects.
func extractCursorFolderFromHistory(raw string) string {
	var entries []struct {
		Editor struct {
			Resource string `json:"resource"`
		} `json:"editor"`
	}
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return ""
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Editor.Resource, "file://") {
			path := strings.TrimPrefix(e.Editor.Resource, "file://")
			return filepath.Dir(path)
		}
	}
	return ""
}

// cursorBubble is one turn of a cursor composer conversation, stored
// in the global db's cursorDiskKV table under "composerData:<id>".
type cursorBubble struct {
	Type           int    `json:"type"` // 1 = user, 2 = assistant
	Text           string `json:"text"`
	ToolFormerData struct {
		Name   string          `json:"name"`
		Params json.RawMessage `json:"rawArgs"`
	} `json:"toolFormerData"`
}

type cursorComposerData struct {
	ComposerID   string         `json:"composerId"`
	CreatedAt    int64          `json:"createdAt"`
	LastUpdated  int64          `json:"lastUpdatedAt"`
	Conversation []cursorBubble `json:"conversation"`
}

func loadCursorComposerData(dbPath, composerID string) (*cursorComposerData, error) {
	db, err := openCursorDB(dbPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var raw string
	row := db.QueryRow(
		`SELECT value FROM cursorDiskKV WHERE key = ?`,
		"composerData:"+composerID,
	)
	if err := row.Scan(&raw); err != nil {
		return nil, fmt.Errorf("composer %s not found in %s: %w", composerID, dbPath, err)
	}

	var data cursorComposerData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("parsing composer %s: %w", composerID, err)
	}
	if data.ComposerID == "" {
		data.ComposerID = composerID
	}
	return &data, nil
}

func cursorComposerInfo(globalDBPath, composerID string) (session.SessionInfo, error) {
	data, err := loadCursorComposerData(globalDBPath, composerID)
	if err != nil {
		return session.SessionInfo{}, err
	}

	var preview string
	count := 0
	for _, bub := range data.Conversation {
		if bub.Text == "" {
			continue
		}
		count++
		if preview == "" && bub.Type == 1 {
			preview = truncate(strings.ReplaceAll(bub.Text, "\n", " "), 200)
		}
	}

	info := session.SessionInfo{
		ID:           "cursor:" + data.ComposerID,
		MessageCount: intPtr(count),
		Preview:      preview,
	}
	if data.CreatedAt > 0 {
		info.StartedAt = timePtr(time.UnixMilli(data.CreatedAt))
	}
	if data.LastUpdated > 0 {
		info.LastActiveAt = timePtr(time.UnixMilli(data.LastUpdated))
	} else if data.CreatedAt > 0 {
		info.LastActiveAt = timePtr(time.UnixMilli(data.CreatedAt))
	}
	return info, nil
}

func parseCursorComposer(globalDBPath, composerID, project string) (*session.Captured, error) {
	data, err := loadCursorComposerData(globalDBPath, composerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", braindumperr.ErrParseFailure, err)
	}

	b := newSessionBuilder()
	var taskDescription string

	// Cursor's composerData carries no per-bubble timestamp; the
	// whole conversation is timestamped at the composer's own bounds.
	ts := time.UnixMilli(data.CreatedAt)

	for _, bub := range data.Conversation {
		role := session.RoleUser
		if bub.Type == 2 {
			role = session.RoleAssistant
		}
		text := strings.TrimSpace(bub.Text)
		if text != "" {
			b.addMessage(role, text, ts)
			if role == session.RoleUser && taskDescription == "" {
				taskDescription = text
			}
			if role == session.RoleAssistant {
				b.decisionHints.Add(firstSentence(text))
			}
		}
		if name := bub.ToolFormerData.Name; name != "" {
			b.addToolUse(rawToolCall{
				ToolName:  name,
				Category:  NormalizeToolCategory(name),
				InputJSON: string(bub.ToolFormerData.Params),
			}, ts)
		}
	}

	cs := &session.Captured{
		Version:      session.SchemaVersion,
		Source:       session.AgentCursor,
		CapturedAt:   time.Now().UTC(),
		SessionID:    "cursor:" + data.ComposerID,
		Project:      session.Project{Path: project},
		Conversation: b.buildConversation(),
		FileChanges:  b.fileChanges,
		Decisions:    b.decisionHints.Values(),
		Task: session.Task{
			Description: firstNonEmpty(taskDescription, "Unknown task"),
			InProgress:  b.inProgress(),
			Remaining:   b.taskRemainingValues(),
			Completed:   b.taskCompletedValues(),
		},
		ToolActivity: b.buildToolActivity(),
	}
	if !b.startedAt.IsZero() {
		cs.SessionStartedAt = timePtr(b.startedAt)
	} else if data.CreatedAt > 0 {
		cs.SessionStartedAt = timePtr(ts)
	}
	return finalizeCaptured(cs)
}

// DecodeCursorProjectDir extracts a clean project name from a
// Cursor-style hyphenated directory name. Cursor encodes absolute
// paths by replacing / and . with hyphens, e.g.
// "Users-fiona-fan-Documents-mcp-cursor-analytics".
func DecodeCursorProjectDir(dirName string) string {
	if dirName == "" {
		return ""
	}

	parts := strings.Split(dirName, "-")

	markers := map[string]bool{
		"Documents": true, "Code": true,
		"code": true, "projects": true,
		"repos": true, "src": true,
		"work": true, "dev": true,
	}

	lastMarkerIdx := -1
	for i, part := range parts {
		if markers[part] {
			lastMarkerIdx = i
		}
	}

	if lastMarkerIdx >= 0 && lastMarkerIdx+1 < len(parts) {
		result := strings.Join(parts[lastMarkerIdx+1:], "-")
		if result != "" {
			return normalizeName(result)
		}
	}

	if len(parts) >= 2 {
		return normalizeName(strings.Join(parts[len(parts)-2:], "-"))
	}
	return normalizeName(dirName)
}
