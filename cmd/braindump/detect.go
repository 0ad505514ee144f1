package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newDetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect",
		Short: "List which supported agents are installed on this machine",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDetect(cmd)
		},
	}
}

func runDetect(cmd *cobra.Command) error {
	reg := buildRegistry(cfg)
	detected := reg.Detected()

	for _, a := range reg.All() {
		mark := color.RedString("✕")
		for _, d := range detected {
			if d.ID() == a.ID() {
				mark = color.GreenString("✓")
				break
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", mark, a.ID())
	}

	if len(detected) == 0 {
		exitWith(exitDetectOrArgs, nil)
	}
	return nil
}
