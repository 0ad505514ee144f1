package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wesm/braindump/internal/braindumperr"
	"github.com/wesm/braindump/internal/session"
)

func newListCmd() *cobra.Command {
	var source string
	var asJSON bool
	var asJSONL bool
	var project string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List discoverable sessions for one or all detected agents",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd, source, project, asJSON, asJSONL)
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "restrict to this agent id")
	cmd.Flags().StringVar(&project, "project", "", "restrict to sessions under this project path")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit a JSON array")
	cmd.Flags().BoolVar(&asJSONL, "jsonl", false, "emit one JSON object per line")
	return cmd
}

type listRow struct {
	Agent session.AgentID   `json:"agent"`
	Info  session.SessionInfo `json:"session"`
}

func runList(cmd *cobra.Command, source, project string, asJSON, asJSONL bool) error {
	ctx := context.Background()
	reg := buildRegistry(cfg)

	var adapters []session.AgentID
	if source != "" {
		a, err := reg.Get(session.AgentID(source))
		if err != nil {
			exitWith(exitDetectOrArgs, err)
			return nil
		}
		adapters = []session.AgentID{a.ID()}
	} else {
		for _, a := range reg.Detected() {
			adapters = append(adapters, a.ID())
		}
	}

	var rows []listRow
	for _, id := range adapters {
		a, err := reg.Get(id)
		if err != nil {
			continue
		}
		infos, err := a.ListSessions(ctx, project)
		if err != nil {
			exitWith(exitListingError, err)
			return nil
		}
		for _, info := range infos {
			rows = append(rows, listRow{Agent: id, Info: info})
		}
	}

	if len(rows) == 0 {
		exitWith(exitListingError, braindumperr.ErrNoSessions)
		return nil
	}

	switch {
	case asJSONL:
		enc := json.NewEncoder(cmd.OutOrStdout())
		for _, r := range rows {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
	case asJSON:
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	default:
		for _, r := range rows {
			fmt.Fprintf(cmd.OutOrStdout(), "%-12s %-36s %s\n", r.Agent, r.Info.ID, r.Info.Preview)
		}
	}
	return nil
}
