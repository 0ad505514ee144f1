package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wesm/braindump/internal/logging"
	"github.com/wesm/braindump/internal/session"
	"github.com/wesm/braindump/internal/watch"
)

func newWatchCmd() *cobra.Command {
	var agentsCSV, project string
	var intervalSeconds int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll agent session lists and report new-session/update/rate-limit events",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd, agentsCSV, project, intervalSeconds)
		},
	}

	cmd.Flags().StringVar(&agentsCSV, "agents", "", "comma-separated agent ids (defaults to every detected agent)")
	cmd.Flags().StringVar(&project, "project", "", "restrict to sessions under this project path")
	cmd.Flags().IntVar(&intervalSeconds, "interval", 30, "poll interval in seconds")
	return cmd
}

func runWatch(cmd *cobra.Command, agentsCSV, project string, intervalSeconds int) error {
	reg := buildRegistry(cfg)

	var agents []session.AgentID
	if agentsCSV != "" {
		for _, raw := range strings.Split(agentsCSV, ",") {
			id := session.AgentID(strings.TrimSpace(raw))
			if id.Valid() {
				agents = append(agents, id)
			}
		}
	} else {
		for _, a := range reg.Detected() {
			agents = append(agents, a.ID())
		}
	}

	w := watch.New(reg)
	opts := watch.Options{
		Agents:      agents,
		Interval:    time.Duration(intervalSeconds) * time.Second,
		ProjectPath: project,
		OnEvent: func(ev watch.Event) {
			logging.Logger.Info().
				Str("kind", string(ev.Kind)).
				Str("agent", string(ev.Agent)).
				Str("session", ev.SessionID).
				Msg(ev.Details)
			cmd.Printf("%s %s %s: %s\n", ev.Kind, ev.Agent, ev.SessionID, ev.Details)
		},
	}

	if err := w.Start(opts); err != nil {
		exitWith(exitCaptureOrHandoff, err)
		return nil
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	<-sigs

	w.Stop()
	return nil
}
