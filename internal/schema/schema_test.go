package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wesm/braindump/internal/braindumperr"
	"github.com/wesm/braindump/internal/session"
)

func validSession() *session.Captured {
	return &session.Captured{
		Version:   session.SchemaVersion,
		Source:    session.AgentClaudeCode,
		SessionID: "sess-1",
		Conversation: session.Conversation{
			MessageCount: 2,
			Messages: []session.Message{
				{Role: session.RoleUser, Content: "hi"},
				{Role: session.RoleAssistant, Content: "hello"},
			},
		},
		FileChanges: []session.FileChange{
			{Path: "a.go", Type: session.ChangeCreated},
		},
	}
}

func TestValidate_AcceptsWellFormedSession(t *testing.T) {
	assert.NoError(t, Validate(validSession()))
}

func TestValidate_RejectsNil(t *testing.T) {
	assert.ErrorIs(t, Validate(nil), braindumperr.ErrSchemaInvalid)
}

func TestValidate_RejectsWrongVersion(t *testing.T) {
	cs := validSession()
	cs.Version = "0.9"
	assert.ErrorIs(t, Validate(cs), braindumperr.ErrSchemaInvalid)
}

func TestValidate_RejectsUnknownSource(t *testing.T) {
	cs := validSession()
	cs.Source = session.AgentID("not-a-real-agent")
	assert.ErrorIs(t, Validate(cs), braindumperr.ErrSchemaInvalid)
}

func TestValidate_RejectsMismatchedMessageCount(t *testing.T) {
	cs := validSession()
	cs.Conversation.MessageCount = 99
	assert.ErrorIs(t, Validate(cs), braindumperr.ErrSchemaInvalid)
}

func TestValidate_RejectsUnknownRole(t *testing.T) {
	cs := validSession()
	cs.Conversation.Messages = append(cs.Conversation.Messages, session.Message{Role: "narrator"})
	cs.Conversation.MessageCount = len(cs.Conversation.Messages)
	assert.ErrorIs(t, Validate(cs), braindumperr.ErrSchemaInvalid)
}

func TestValidate_RejectsEmptyFileChangePath(t *testing.T) {
	cs := validSession()
	cs.FileChanges = append(cs.FileChanges, session.FileChange{Path: "", Type: session.ChangeModified})
	assert.ErrorIs(t, Validate(cs), braindumperr.ErrSchemaInvalid)
}

func TestValidate_RejectsDuplicateFileChangePaths(t *testing.T) {
	cs := validSession()
	cs.FileChanges = append(cs.FileChanges, session.FileChange{Path: "a.go", Type: session.ChangeModified})
	assert.ErrorIs(t, Validate(cs), braindumperr.ErrSchemaInvalid)
}

func TestValidate_RejectsOversizedInProgress(t *testing.T) {
	cs := validSession()
	cs.Task.InProgress = strings.Repeat("x", 201)
	assert.ErrorIs(t, Validate(cs), braindumperr.ErrSchemaInvalid)
}

func TestValidate_RejectsOversizedMemory(t *testing.T) {
	cs := validSession()
	cs.Project.Memory = strings.Repeat("x", 2001)
	assert.ErrorIs(t, Validate(cs), braindumperr.ErrSchemaInvalid)
}

func TestValidate_AcceptsMemoryAtExactlyTheCap(t *testing.T) {
	cs := validSession()
	cs.Project.Memory = strings.Repeat("x", 2000)
	assert.NoError(t, Validate(cs))
}

func TestValidate_RejectsDuplicateDecisions(t *testing.T) {
	cs := validSession()
	cs.Decisions = []string{"use cobra", "use cobra"}
	assert.ErrorIs(t, Validate(cs), braindumperr.ErrSchemaInvalid)
}

func TestValidate_RejectsBlankDecision(t *testing.T) {
	cs := validSession()
	cs.Decisions = []string{"use cobra", ""}
	assert.ErrorIs(t, Validate(cs), braindumperr.ErrSchemaInvalid)
}

func TestValidate_RejectsDuplicateRemainingTasks(t *testing.T) {
	cs := validSession()
	cs.Task.Remaining = []string{"ship it", "ship it"}
	assert.ErrorIs(t, Validate(cs), braindumperr.ErrSchemaInvalid)
}

func TestValidate_RejectsBlankRemainingTask(t *testing.T) {
	cs := validSession()
	cs.Task.Remaining = []string{""}
	assert.ErrorIs(t, Validate(cs), braindumperr.ErrSchemaInvalid)
}
