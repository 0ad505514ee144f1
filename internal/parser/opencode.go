package parser

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/wesm/braindump/internal/braindumperr"
	"github.com/wesm/braindump/internal/session"
)

// OpenCodeAdapter reads opencode.db, a SQLite database of
// project/session/message/part tables, falling back to a directory
// tree of the same tables serialized one JSON file per row
// (storage/{session,project,message,part}/**/*.json) when the
// database is absent or yields nothing. Grounded on the teacher's
// opencode.go (openOpenCodeDB, loadOpenCodeProjects/Sessions, the
// message/part join), extended with the directory-tree path per
// spec.md §4.1, which the teacher never needed since it only ever
// shipped against the DB form.
type OpenCodeAdapter struct {
	DataDir string // parent of opencode.db and storage/
}

func NewOpenCodeAdapter(dataDir string) *OpenCodeAdapter {
	return &OpenCodeAdapter{DataDir: dataDir}
}

func (a *OpenCodeAdapter) ID() session.AgentID { return session.AgentOpenCode }

func (a *OpenCodeAdapter) Detect() bool {
	return len(DiscoverOpenCodeSessions(a.DataDir)) > 0
}

func (a *OpenCodeAdapter) ListSessions(
	ctx context.Context, projectPath string,
) ([]session.SessionInfo, error) {
	_ = ctx
	sessions, err := a.loadAll()
	if err != nil {
		return nil, err
	}
	var out []session.SessionInfo
	for _, s := range sessions {
		if projectPath != "" && s.worktree != "" && !PathsEqual(s.worktree, projectPath) {
			continue
		}
		out = append(out, s.info)
	}
	SortSessionInfos(out)
	return out, nil
}

func (a *OpenCodeAdapter) Capture(
	ctx context.Context, sessionID string,
) (*session.Captured, error) {
	_ = ctx
	id := strings.TrimPrefix(sessionID, "opencode:")
	sessions, err := a.loadAll()
	if err != nil {
		return nil, err
	}
	for _, s := range sessions {
		if s.id == id {
			return finalizeCaptured(buildOpenCodeCaptured(s))
		}
	}
	return nil, fmt.Errorf("%w: opencode session %q", braindumperr.ErrSessionNotFound, sessionID)
}

func (a *OpenCodeAdapter) CaptureLatest(
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

// loadAll tries opencode.db first, falling back to the storage/
// directory tree on open failure or an empty result, per spec.md
// §4.1's stated fallback order.
func (a *OpenCodeAdapter) loadAll() ([]openCodeSession, error) {
	dbPath := filepath.Join(a.DataDir, "opencode.db")
	if IsRegularFile(dbPath) {
		sessions, err := loadOpenCodeFromDB(dbPath)
		if err == nil && len(sessions) > 0 {
			return sessions, nil
		}
	}
	storageRoot := filepath.Join(a.DataDir, "storage")
	if fi, err := os.Stat(storageRoot); err == nil && fi.IsDir() {
		return loadOpenCodeFromStorage(storageRoot)
	}
	return nil, nil
}

// openCodeSession is a normalized session independent of which
// source (DB or directory tree) it was loaded from.
type openCodeSession struct {
	id       string
	worktree string
	info     session.SessionInfo
	messages []openCodeNormalizedMessage
}

type openCodeNormalizedMessage struct {
	role    session.Role
	ts      time.Time
	texts   []string
	toolUse []rawToolCall
}

func buildOpenCodeCaptured(s openCodeSession) *session.Captured {
	b := newSessionBuilder()
	var taskDescription string

	for _, m := range s.messages {
		content := strings.TrimSpace(strings.Join(m.texts, "\n"))
		if content != "" {
			b.addMessage(m.role, content, m.ts)
			if m.role == session.RoleUser && taskDescription == "" {
				taskDescription = content
			}
			if m.role == session.RoleAssistant {
				b.decisionHints.Add(firstSentence(content))
			}
		}
		for _, tc := range m.toolUse {
			b.addToolUse(tc, m.ts)
		}
	}

	project := ExtractProjectFromCwd(s.worktree)

	cs := &session.Captured{
		Version:      session.SchemaVersion,
		Source:       session.AgentOpenCode,
		CapturedAt:   time.Now().UTC(),
		SessionID:    "opencode:" + s.id,
		Project:      session.Project{Path: s.worktree, Name: project},
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
	}
	return cs
}

func openOpenCodeDB(dbPath string) (*sql.DB, error) {
	dsn := dbPath + "?mode=ro&_journal_mode=WAL&_busy_timeout=3000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening opencode db %s: %w", dbPath, err)
	}
	return db, nil
}

func loadOpenCodeFromDB(dbPath string) ([]openCodeSession, error) {
	db, err := openOpenCodeDB(dbPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	projects, err := loadOpenCodeProjectsDB(db)
	if err != nil {
		return nil, fmt.Errorf("loading opencode projects: %w", err)
	}
	rows, err := loadOpenCodeSessionRows(db)
	if err != nil {
		return nil, fmt.Errorf("loading opencode sessions: %w", err)
	}

	var out []openCodeSession
	for _, r := range rows {
		msgRows, err := loadOpenCodeMessageRows(db, r.id)
		if err != nil {
			return nil, fmt.Errorf("loading messages for %s: %w", r.id, err)
		}
		partRows, err := loadOpenCodePartRows(db, r.id)
		if err != nil {
			return nil, fmt.Errorf("loading parts for %s: %w", r.id, err)
		}
		out = append(out, normalizeOpenCodeSession(
			r.id, projects[r.projectID], r.timeCreated, r.timeUpdated, msgRows, partRows,
		))
	}
	return out, nil
}

type openCodeSessionRow struct {
	id          string
	projectID   string
	timeCreated int64
	timeUpdated int64
}

func loadOpenCodeProjectsDB(db *sql.DB) (map[string]string, error) {
	rows, err := db.Query("SELECT id, worktree FROM project")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := make(map[string]string)
	for rows.Next() {
		var id, worktree string
		if err := rows.Scan(&id, &worktree); err != nil {
			return nil, err
		}
		projects[id] = worktree
	}
	return projects, rows.Err()
}

func loadOpenCodeSessionRows(db *sql.DB) ([]openCodeSessionRow, error) {
	rows, err := db.Query(`
		SELECT s.id, s.project_id, s.time_created, s.time_updated
		FROM session s
		ORDER BY s.time_created
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []openCodeSessionRow
	for rows.Next() {
		var r openCodeSessionRow
		if err := rows.Scan(&r.id, &r.projectID, &r.timeCreated, &r.timeUpdated); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type openCodeMessageRow struct {
	id          string
	role        string
	timeCreated int64
}

func loadOpenCodeMessageRows(db *sql.DB, sessionID string) ([]openCodeMessageRow, error) {
	rows, err := db.Query(`
		SELECT id, data, time_created FROM message
		WHERE session_id = ? ORDER BY time_created
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []openCodeMessageRow
	for rows.Next() {
		var id, data string
		var tc int64
		if err := rows.Scan(&id, &data, &tc); err != nil {
			return nil, err
		}
		var md struct {
			Role string `json:"role"`
		}
		_ = json.Unmarshal([]byte(data), &md)
		out = append(out, openCodeMessageRow{id: id, role: md.Role, timeCreated: tc})
	}
	return out, rows.Err()
}

type openCodePartRow struct {
	messageID   string
	data        string
	timeCreated int64
}

func loadOpenCodePartRows(db *sql.DB, sessionID string) ([]openCodePartRow, error) {
	rows, err := db.Query(`
		SELECT message_id, COALESCE(data, '{}'), time_created
		FROM part WHERE session_id = ? ORDER BY time_created
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []openCodePartRow
	for rows.Next() {
		var p openCodePartRow
		if err := rows.Scan(&p.messageID, &p.data, &p.timeCreated); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// loadOpenCodeFromStorage walks the directory-tree fallback:
// storage/{session,project,message,part}/**/*.json, one JSON object
// per row, named after its row id.
func loadOpenCodeFromStorage(storageRoot string) ([]openCodeSession, error) {
	projects, err := loadOpenCodeProjectsStorage(storageRoot)
	if err != nil {
		return nil, err
	}
	sessionFiles, err := listOpenCodeStorageFiles(filepath.Join(storageRoot, "session"))
	if err != nil {
		return nil, err
	}

	var out []openCodeSession
	for _, sf := range sessionFiles {
		data, err := os.ReadFile(sf)
		if err != nil {
			continue
		}
		var sRow struct {
			ID          string `json:"id"`
			ProjectID   string `json:"projectID"`
			TimeCreated int64  `json:"timeCreated"`
			TimeUpdated int64  `json:"timeUpdated"`
		}
		if err := json.Unmarshal(data, &sRow); err != nil || sRow.ID == "" {
			continue
		}

		msgFiles, _ := listOpenCodeStorageFiles(filepath.Join(storageRoot, "message", sRow.ID))
		var msgRows []openCodeMessageRow
		for _, mf := range msgFiles {
			mdata, err := os.ReadFile(mf)
			if err != nil {
				continue
			}
			var md struct {
				ID          string `json:"id"`
				Role        string `json:"role"`
				TimeCreated int64  `json:"timeCreated"`
			}
			if err := json.Unmarshal(mdata, &md); err != nil || md.ID == "" {
				continue
			}
			msgRows = append(msgRows, openCodeMessageRow{
				id: md.ID, role: md.Role, timeCreated: md.TimeCreated,
			})
		}

		partFiles, _ := listOpenCodeStorageFiles(filepath.Join(storageRoot, "part", sRow.ID))
		var partRows []openCodePartRow
		for _, pf := range partFiles {
			pdata, err := os.ReadFile(pf)
			if err != nil {
				continue
			}
			var pd struct {
				MessageID   string `json:"messageID"`
				TimeCreated int64  `json:"timeCreated"`
			}
			_ = json.Unmarshal(pdata, &pd)
			partRows = append(partRows, openCodePartRow{
				messageID: pd.MessageID, data: string(pdata), timeCreated: pd.TimeCreated,
			})
		}

		out = append(out, normalizeOpenCodeSession(
			sRow.ID, projects[sRow.ProjectID], sRow.TimeCreated, sRow.TimeUpdated, msgRows, partRows,
		))
	}
	return out, nil
}

func loadOpenCodeProjectsStorage(storageRoot string) (map[string]string, error) {
	files, err := listOpenCodeStorageFiles(filepath.Join(storageRoot, "project"))
	if err != nil {
		return nil, err
	}
	projects := make(map[string]string)
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			continue
		}
		var p struct {
			ID       string `json:"id"`
			Worktree string `json:"worktree"`
		}
		if err := json.Unmarshal(data, &p); err == nil && p.ID != "" {
			projects[p.ID] = p.Worktree
		}
	}
	return projects, nil
}

// listOpenCodeStorageFiles walks root for *.json files at any depth.
func listOpenCodeStorageFiles(root string) ([]string, error) {
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() && strings.HasSuffix(path, ".json") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func normalizeOpenCodeSession(
	id, worktree string, timeCreated, timeUpdated int64,
	msgRows []openCodeMessageRow, partRows []openCodePartRow,
) openCodeSession {
	partsByMsg := make(map[string][]openCodePartRow)
	for _, p := range partRows {
		partsByMsg[p.messageID] = append(partsByMsg[p.messageID], p)
	}

	var preview string
	var normMsgs []openCodeNormalizedMessage
	count := 0
	for _, m := range msgRows {
		role := normalizeOpenCodeRole(m.role)
		if role == "" {
			continue
		}
		parts := partsByMsg[m.id]
		sort.Slice(parts, func(a, bb int) bool { return parts[a].timeCreated < parts[bb].timeCreated })

		var texts []string
		var toolCalls []rawToolCall
		for _, p := range parts {
			partType := gjsonGetPartType(p.data)
			switch partType {
			case "text":
				if t := gjsonGetPartText(p.data); t != "" {
					texts = append(texts, t)
				}
			case "reasoning":
				if t := gjsonGetPartText(p.data); t != "" {
					texts = append(texts, "[Thinking]\n"+t+"\n[/Thinking]")
				}
			case "tool":
				tc := extractOpenCodeToolCall(p.data)
				if tc.ToolName != "" {
					toolCalls = append(toolCalls, tc)
				}
			}
		}

		content := strings.TrimSpace(strings.Join(texts, "\n"))
		if content == "" && len(toolCalls) == 0 {
			continue
		}
		count++
		if preview == "" && role == session.RoleUser && content != "" {
			preview = truncate(strings.ReplaceAll(content, "\n", " "), 200)
		}

		normMsgs = append(normMsgs, openCodeNormalizedMessage{
			role: role, ts: millisToTime(m.timeCreated), texts: texts, toolUse: toolCalls,
		})
	}

	info := session.SessionInfo{
		ID:           "opencode:" + id,
		MessageCount: intPtr(count),
		Preview:      preview,
	}
	if timeCreated > 0 {
		info.StartedAt = timePtr(millisToTime(timeCreated))
	}
	if timeUpdated > 0 {
		info.LastActiveAt = timePtr(millisToTime(timeUpdated))
	}
	info.ProjectPath = worktree

	return openCodeSession{id: id, worktree: worktree, info: info, messages: normMsgs}
}

func normalizeOpenCodeRole(role string) session.Role {
	switch role {
	case "user":
		return session.RoleUser
	case "assistant":
		return session.RoleAssistant
	default:
		return ""
	}
}

func gjsonGetPartType(data string) string {
	var d struct {
		Type string `json:"type"`
	}
	if json.Unmarshal([]byte(data), &d) != nil {
		return ""
	}
	return d.Type
}

func gjsonGetPartText(data string) string {
	var d struct {
		Content string `json:"content"`
		Text    string `json:"text"`
	}
	if json.Unmarshal([]byte(data), &d) != nil {
		return ""
	}
	if d.Content != "" {
		return d.Content
	}
	return d.Text
}

func extractOpenCodeToolCall(data string) rawToolCall {
	var d struct {
		ToolName string          `json:"tool"`
		CallID   string          `json:"callID"`
		State    json.RawMessage `json:"state"`
	}
	if json.Unmarshal([]byte(data), &d) != nil {
		return rawToolCall{}
	}
	var inputJSON string
	if len(d.State) > 0 {
		var state struct {
			Input json.RawMessage `json:"input"`
		}
		if json.Unmarshal(d.State, &state) == nil && len(state.Input) > 0 {
			inputJSON = string(state.Input)
		}
	}
	return rawToolCall{
		ToolUseID: d.CallID,
		ToolName:  d.ToolName,
		Category:  NormalizeToolCategory(d.ToolName),
		InputJSON: inputJSON,
	}
}

func millisToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
