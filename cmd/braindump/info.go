package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wesm/braindump/internal/registry"
	"github.com/wesm/braindump/internal/session"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the registry entry and detection status for every supported agent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInfo(cmd)
		},
	}
}

func runInfo(cmd *cobra.Command) error {
	reg := buildRegistry(cfg)

	for _, id := range session.AllAgents {
		entry, ok := registry.Registry[id]
		if !ok {
			continue
		}

		mark := color.RedString("✕")
		if a, err := reg.Get(id); err == nil && a.Detect() {
			mark = color.GreenString("✓")
		}

		fmt.Fprintf(
			cmd.OutOrStdout(),
			"%s %-14s %-18s context=%-8d budget=%-8d memory=%v\n",
			mark, id, entry.DisplayName, entry.ContextWindow, entry.UsableBudget, entry.MemoryFileName,
		)
	}
	return nil
}
