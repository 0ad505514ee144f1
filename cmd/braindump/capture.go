package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wesm/braindump/internal/adapter"
	"github.com/wesm/braindump/internal/braindumperr"
	"github.com/wesm/braindump/internal/session"
)

// errSessionWithoutSource means --session was given without --source,
// which is ambiguous since a session id alone does not identify its
// agent.
var errSessionWithoutSource = errors.New("--session requires --source")

const handoffDirName = ".handoff"

func newCaptureCmd() *cobra.Command {
	var source, sessionID, project string

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture a session into the canonical record and write .handoff/session.json",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCapture(cmd, source, sessionID, project)
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "agent id to capture from")
	cmd.Flags().StringVar(&sessionID, "session", "", "capture this session id instead of the latest")
	cmd.Flags().StringVar(&project, "project", "", "project path (defaults to the current directory)")
	return cmd
}

func runCapture(cmd *cobra.Command, source, sessionID, project string) error {
	cs, err := captureSession(buildRegistry(cfg), source, sessionID, project)
	if err != nil {
		exitWith(exitCaptureOrHandoff, err)
		return nil
	}

	outDir := filepath.Join(resolveProject(project), handoffDirName)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		exitWith(exitCaptureOrHandoff, err)
		return nil
	}
	out := filepath.Join(outDir, "session.json")

	data, err := json.MarshalIndent(cs, "", "  ")
	if err != nil {
		exitWith(exitCaptureOrHandoff, err)
		return nil
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		exitWith(exitCaptureOrHandoff, err)
		return nil
	}

	cmd.Printf("wrote %s\n", out)
	return nil
}

// resolveProject returns project if set, otherwise the process
// working directory.
func resolveProject(project string) string {
	if project != "" {
		return project
	}
	wd, _ := os.Getwd()
	return wd
}

// captureSession resolves source/sessionID/project into one captured
// record: an explicit --source goes straight to that adapter, an
// explicit --session additionally requires --source since a session
// id alone does not identify its agent; otherwise every detected
// adapter is tried in registration order and the first with a
// session under project wins.
func captureSession(reg *adapter.Registry, source, sessionID, project string) (*session.Captured, error) {
	ctx := context.Background()
	project = resolveProject(project)

	if source != "" {
		a, err := reg.Get(session.AgentID(source))
		if err != nil {
			return nil, err
		}
		if sessionID != "" {
			return a.Capture(ctx, sessionID)
		}
		return a.CaptureLatest(ctx, project)
	}

	if sessionID != "" {
		return nil, errSessionWithoutSource
	}

	var lastErr error = braindumperr.ErrNoSessions
	for _, a := range reg.Detected() {
		cs, err := a.CaptureLatest(ctx, project)
		if err == nil {
			return cs, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
