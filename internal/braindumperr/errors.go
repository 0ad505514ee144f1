// Package braindumperr defines the sentinel error kinds used across
// the handoff pipeline, per the error taxonomy: conditions, not
// concrete types, so callers match with errors.Is.
package braindumperr

import "errors"

var (
	// ErrNotDetected means no adapter's Detect() returned true.
	ErrNotDetected = errors.New("no supported agent detected on this machine")
	// ErrNoSessions means a (possibly filtered) session list was empty.
	ErrNoSessions = errors.New("no sessions found")
	// ErrSessionNotFound means the requested session id does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrParseFailure means the session's primary artifact could not
	// be decoded at all.
	ErrParseFailure = errors.New("session could not be parsed")
	// ErrSchemaInvalid means a captured session failed validation.
	ErrSchemaInvalid = errors.New("captured session failed schema validation")
	// ErrAlreadyRunning means the watcher singleton is already started.
	ErrAlreadyRunning = errors.New("watcher is already running")
	// ErrLaunchFailure means the launcher subprocess failed to start.
	ErrLaunchFailure = errors.New("failed to launch target agent")
	// ErrUnknownAgent means the requested agent id is not in the
	// closed seven-agent enumeration.
	ErrUnknownAgent = errors.New("unknown agent")
)
