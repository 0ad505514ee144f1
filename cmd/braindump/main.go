// Command braindump captures an in-progress coding-agent session
// from disk and distills it into a token-budgeted handoff document
// for a different tool to resume. Grounded on the teacher's
// cmd/agentsview/main.go entry-point shape, rebuilt on cobra per
// mreferre-entirecli's cmd/entire/cli command-tree style since
// braindump is a one-shot CLI, not a long-lived web server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wesm/braindump/internal/config"
	"github.com/wesm/braindump/internal/logging"
)

// Exit codes per the command surface's documented contract.
const (
	exitSuccess          = 0
	exitDetectOrArgs     = 1
	exitListingError     = 2
	exitCaptureOrHandoff = 3
)

var cfg config.Config

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(exitDetectOrArgs)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:           "braindump",
		Short:         "Capture an in-progress agent session and hand it off to another tool",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			cfg = config.Load(nil)
			if verbose {
				cfg.Verbose = true
			}
			logging.Init(cfg.Verbose)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug-level logging")

	cmd.AddCommand(
		newDetectCmd(),
		newListCmd(),
		newCaptureCmd(),
		newHandoffCmd(),
		newWatchCmd(),
		newResumeCmd(),
		newInfoCmd(),
	)
	return cmd
}

func exitWith(code int, err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "braindump:", err)
	}
	os.Exit(code)
}
