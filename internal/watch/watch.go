// Package watch polls the configured adapters' session lists on a
// timer and emits new-session, session-update, and rate-limit
// events. Grounded on the teacher's internal/sync/watcher.go
// ticker/stop/done/mutex idiom, redesigned from fsnotify-driven
// filesystem events to ticker-driven Adapter.ListSessions polling:
// none of the seven agent formats offers a filesystem-event-friendly
// single-file-per-write layout (several are SQLite stores or
// directory trees written to out of process), so a fixed-interval
// poll of each adapter's own listing is the only observation point
// every format supports uniformly.
package watch

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/wesm/braindump/internal/adapter"
	"github.com/wesm/braindump/internal/braindumperr"
	"github.com/wesm/braindump/internal/session"
)

// EventKind identifies the kind of change observed for one
// (agent, sessionID) key on a given tick.
type EventKind string

const (
	EventNewSession    EventKind = "new-session"
	EventSessionUpdate EventKind = "session-update"
	EventRateLimit     EventKind = "rate-limit"
)

// Event is delivered to the caller's callback for one watched key.
type Event struct {
	Kind      EventKind
	Agent     session.AgentID
	SessionID string
	Details   string
}

// State is the snapshot returned by GetState.
type State struct {
	Timestamp      time.Time
	Agents         []session.AgentID
	ActiveSessions map[string]SessionObservation
	Running        bool
}

// SessionObservation is one watched key's last-known shape.
type SessionObservation struct {
	MessageCount  int
	LastCheckedAt time.Time
	LastChangedAt time.Time
	unchangedRun  int
	rateLimited   bool
}

// Options configures Start.
type Options struct {
	Agents      []session.AgentID // default: all detected adapters
	Interval    time.Duration     // default: 30s
	ProjectPath string
	OnEvent     func(Event)
}

const defaultInterval = 30 * time.Second

// Watcher runs at most one polling loop at a time: Start fails with
// braindumperr.ErrAlreadyRunning if called again before Stop.
type Watcher struct {
	registry *adapter.Registry

	mu      sync.Mutex
	running bool
	agents  []session.AgentID
	project string
	onEvent func(Event)
	snap    map[string]SessionObservation

	stop chan struct{}
	done chan struct{}
}

// New builds a Watcher over reg. reg's adapter set is fixed for the
// Watcher's lifetime.
func New(reg *adapter.Registry) *Watcher {
	return &Watcher{registry: reg}
}

// Start transitions the watcher to running and begins ticking in a
// background goroutine. It returns once the state transition is
// recorded; the first tick runs asynchronously.
func (w *Watcher) Start(opts Options) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return braindumperr.ErrAlreadyRunning
	}

	agents := opts.Agents
	if len(agents) == 0 {
		for _, a := range w.registry.Detected() {
			agents = append(agents, a.ID())
		}
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultInterval
	}

	w.running = true
	w.agents = agents
	w.project = opts.ProjectPath
	w.onEvent = opts.OnEvent
	w.snap = make(map[string]SessionObservation)
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	stop := w.stop
	done := w.done
	w.mu.Unlock()

	go w.loop(interval, stop, done)
	return nil
}

// Stop cancels the periodic task and waits for the in-flight tick,
// if any, to finish before returning.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	stop := w.stop
	done := w.done
	w.mu.Unlock()

	close(stop)
	<-done

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
}

// GetState returns the watcher's current snapshot. Safe to call
// whether running or idle.
func (w *Watcher) GetState() State {
	w.mu.Lock()
	defer w.mu.Unlock()

	active := make(map[string]SessionObservation, len(w.snap))
	for k, v := range w.snap {
		active[k] = v
	}
	return State{
		Timestamp:      time.Now(),
		Agents:         append([]session.AgentID(nil), w.agents...),
		ActiveSessions: active,
		Running:        w.running,
	}
}

// TakeSnapshot performs a one-shot capture of every watched agent's
// session list without touching the running tick state. Safe to
// call whether running or idle.
func (w *Watcher) TakeSnapshot(ctx context.Context, agents []session.AgentID, projectPath string) map[string]SessionObservation {
	now := time.Now()
	snap := make(map[string]SessionObservation)
	for _, id := range agents {
		a, err := w.registry.Get(id)
		if err != nil {
			continue
		}
		infos, err := a.ListSessions(ctx, projectPath)
		if err != nil {
			log.Printf("watch: %s: list sessions: %v", id, err)
			continue
		}
		for _, info := range infos {
			key := snapshotKey(id, info.ID)
			count := 0
			if info.MessageCount != nil {
				count = *info.MessageCount
			}
			snap[key] = SessionObservation{MessageCount: count, LastCheckedAt: now}
		}
	}
	return snap
}

func (w *Watcher) loop(interval time.Duration, stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			w.tick()
		}
	}
}

func (w *Watcher) tick() {
	w.mu.Lock()
	agents := append([]session.AgentID(nil), w.agents...)
	project := w.project
	prev := w.snap
	onEvent := w.onEvent
	w.mu.Unlock()

	current := w.TakeSnapshot(context.Background(), agents, project)
	events := diffSnapshots(prev, current)

	w.mu.Lock()
	w.snap = current
	w.mu.Unlock()

	if onEvent != nil {
		for _, ev := range events {
			onEvent(ev)
		}
	}
}

// diffSnapshots compares current against prev, carrying forward
// LastChangedAt/unchangedRun/rateLimited bookkeeping from prev into
// current, and returns the events this tick produced.
func diffSnapshots(prev, current map[string]SessionObservation) []Event {
	var events []Event
	for key, cur := range current {
		agent, sessionID := splitSnapshotKey(key)
		old, existed := prev[key]
		if !existed {
			cur.LastChangedAt = cur.LastCheckedAt
			current[key] = cur
			events = append(events, Event{Kind: EventNewSession, Agent: agent, SessionID: sessionID})
			continue
		}

		switch {
		case cur.MessageCount > old.MessageCount:
			cur.LastChangedAt = cur.LastCheckedAt
			cur.unchangedRun = 0
			cur.rateLimited = false
			current[key] = cur
			events = append(events, Event{Kind: EventSessionUpdate, Agent: agent, SessionID: sessionID})
		default:
			cur.LastChangedAt = old.LastChangedAt
			cur.unchangedRun = old.unchangedRun + 1
			cur.rateLimited = old.rateLimited
			current[key] = cur
			if cur.unchangedRun >= 1 && !cur.rateLimited {
				cur.rateLimited = true
				current[key] = cur
				events = append(events, Event{
					Kind:      EventRateLimit,
					Agent:     agent,
					SessionID: sessionID,
					Details:   "no new messages across two consecutive ticks; the agent may be rate-limited or idle",
				})
			}
		}
	}
	return events
}

func snapshotKey(agent session.AgentID, sessionID string) string {
	return fmt.Sprintf("%s\x00%s", agent, sessionID)
}

func splitSnapshotKey(key string) (session.AgentID, string) {
	for i := 0; i < len(key); i++ {
		if key[i] == 0 {
			return session.AgentID(key[:i]), key[i+1:]
		}
	}
	return session.AgentID(key), ""
}
