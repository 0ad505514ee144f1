package watch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesm/braindump/internal/adapter"
	"github.com/wesm/braindump/internal/braindumperr"
	"github.com/wesm/braindump/internal/session"
)

type fakeAdapter struct {
	id    session.AgentID
	infos []session.SessionInfo
}

func (f *fakeAdapter) ID() session.AgentID      { return f.id }
func (f *fakeAdapter) Detect() bool             { return true }
func (f *fakeAdapter) ListSessions(context.Context, string) ([]session.SessionInfo, error) {
	return f.infos, nil
}
func (f *fakeAdapter) Capture(context.Context, string) (*session.Captured, error) {
	return nil, nil
}
func (f *fakeAdapter) CaptureLatest(context.Context, string) (*session.Captured, error) {
	return nil, nil
}

func intPtr(i int) *int { return &i }

func TestSnapshotKeyRoundTrip(t *testing.T) {
	key := snapshotKey(session.AgentDroid, "slug:uuid-with-colons:1234")
	agent, id := splitSnapshotKey(key)
	assert.Equal(t, session.AgentDroid, agent)
	assert.Equal(t, "slug:uuid-with-colons:1234", id)
}

func TestDiffSnapshots_NewSessionFiresOnce(t *testing.T) {
	prev := map[string]SessionObservation{}
	current := map[string]SessionObservation{
		snapshotKey(session.AgentClaudeCode, "sess-A"): {MessageCount: 3, LastCheckedAt: time.Now()},
	}

	events := diffSnapshots(prev, current)
	require.Len(t, events, 1)
	assert.Equal(t, EventNewSession, events[0].Kind)
	assert.Equal(t, "sess-A", events[0].SessionID)
}

func TestDiffSnapshots_RateLimitFiresOnSecondIdenticalCount(t *testing.T) {
	key := snapshotKey(session.AgentClaudeCode, "sess-A")

	tick1 := map[string]SessionObservation{key: {MessageCount: 5, LastCheckedAt: time.Now()}}
	events := diffSnapshots(map[string]SessionObservation{}, tick1)
	require.Len(t, events, 1)
	assert.Equal(t, EventNewSession, events[0].Kind)

	tick2 := map[string]SessionObservation{key: {MessageCount: 5, LastCheckedAt: time.Now()}}
	events = diffSnapshots(tick1, tick2)
	require.Len(t, events, 1, "the second consecutive identical count should fire rate-limit")
	assert.Equal(t, EventRateLimit, events[0].Kind)

	tick3 := map[string]SessionObservation{key: {MessageCount: 5, LastCheckedAt: time.Now()}}
	events = diffSnapshots(tick2, tick3)
	assert.Empty(t, events, "rate-limit fires at most once per stall episode")
}

func TestDiffSnapshots_IncreaseResetsRateLimitAndFiresUpdate(t *testing.T) {
	key := snapshotKey(session.AgentClaudeCode, "sess-A")
	stalled := map[string]SessionObservation{key: {MessageCount: 5, unchangedRun: 2, rateLimited: true}}
	grown := map[string]SessionObservation{key: {MessageCount: 8, LastCheckedAt: time.Now()}}

	events := diffSnapshots(stalled, grown)
	require.Len(t, events, 1)
	assert.Equal(t, EventSessionUpdate, events[0].Kind)
	assert.False(t, grown[key].rateLimited)
	assert.Equal(t, 0, grown[key].unchangedRun)
}

func TestTakeSnapshot_BuildsOneKeyPerSession(t *testing.T) {
	reg := adapter.NewRegistry(&fakeAdapter{
		id: session.AgentClaudeCode,
		infos: []session.SessionInfo{
			{ID: "sess-A", MessageCount: intPtr(4)},
			{ID: "sess-B", MessageCount: intPtr(1)},
		},
	})
	w := New(reg)

	snap := w.TakeSnapshot(context.Background(), []session.AgentID{session.AgentClaudeCode}, "/repo")
	require.Len(t, snap, 2)
	assert.Equal(t, 4, snap[snapshotKey(session.AgentClaudeCode, "sess-A")].MessageCount)
	assert.Equal(t, 1, snap[snapshotKey(session.AgentClaudeCode, "sess-B")].MessageCount)
}

func TestStart_SecondCallReturnsAlreadyRunning(t *testing.T) {
	reg := adapter.NewRegistry(&fakeAdapter{id: session.AgentClaudeCode})
	w := New(reg)

	require.NoError(t, w.Start(Options{Interval: time.Hour}))
	defer w.Stop()

	err := w.Start(Options{Interval: time.Hour})
	assert.ErrorIs(t, err, braindumperr.ErrAlreadyRunning)
}

func TestStop_AllowsRestarting(t *testing.T) {
	reg := adapter.NewRegistry(&fakeAdapter{id: session.AgentClaudeCode})
	w := New(reg)

	require.NoError(t, w.Start(Options{Interval: time.Hour}))
	w.Stop()
	assert.NoError(t, w.Start(Options{Interval: time.Hour}))
	w.Stop()
}
