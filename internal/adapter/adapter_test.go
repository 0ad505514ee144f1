package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesm/braindump/internal/braindumperr"
	"github.com/wesm/braindump/internal/session"
)

type stubAdapter struct {
	id       session.AgentID
	detected bool
}

func (s *stubAdapter) ID() session.AgentID { return s.id }
func (s *stubAdapter) Detect() bool        { return s.detected }
func (s *stubAdapter) ListSessions(context.Context, string) ([]session.SessionInfo, error) {
	return nil, nil
}
func (s *stubAdapter) Capture(context.Context, string) (*session.Captured, error) {
	return nil, nil
}
func (s *stubAdapter) CaptureLatest(context.Context, string) (*session.Captured, error) {
	return nil, nil
}

func TestRegistry_GetReturnsRegisteredAdapter(t *testing.T) {
	reg := NewRegistry(&stubAdapter{id: session.AgentClaudeCode, detected: true})
	a, err := reg.Get(session.AgentClaudeCode)
	require.NoError(t, err)
	assert.Equal(t, session.AgentClaudeCode, a.ID())
}

func TestRegistry_GetUnknownAgentErrors(t *testing.T) {
	reg := NewRegistry(&stubAdapter{id: session.AgentClaudeCode})
	_, err := reg.Get(session.AgentCursor)
	assert.ErrorIs(t, err, braindumperr.ErrUnknownAgent)
}

func TestRegistry_AllPreservesRegistrationOrder(t *testing.T) {
	reg := NewRegistry(
		&stubAdapter{id: session.AgentDroid},
		&stubAdapter{id: session.AgentClaudeCode},
		&stubAdapter{id: session.AgentCodex},
	)
	ids := make([]session.AgentID, 0, 3)
	for _, a := range reg.All() {
		ids = append(ids, a.ID())
	}
	assert.Equal(t, []session.AgentID{session.AgentDroid, session.AgentClaudeCode, session.AgentCodex}, ids)
}

func TestRegistry_DetectedFiltersByDetect(t *testing.T) {
	reg := NewRegistry(
		&stubAdapter{id: session.AgentClaudeCode, detected: true},
		&stubAdapter{id: session.AgentCursor, detected: false},
	)
	detected := reg.Detected()
	require.Len(t, detected, 1)
	assert.Equal(t, session.AgentClaudeCode, detected[0].ID())
}

func TestRegistry_DuplicateIDKeepsFirst(t *testing.T) {
	first := &stubAdapter{id: session.AgentClaudeCode, detected: true}
	second := &stubAdapter{id: session.AgentClaudeCode, detected: false}
	reg := NewRegistry(first, second)

	a, err := reg.Get(session.AgentClaudeCode)
	require.NoError(t, err)
	assert.True(t, a.Detect())
	assert.Len(t, reg.All(), 1)
}
