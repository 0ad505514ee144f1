package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wesm/braindump/internal/logging"
)

func newResumeCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Print a previously written handoff document and copy it to the clipboard",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runResume(cmd, file)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "handoff file to resume (defaults to .handoff/RESUME.md in the current directory)")
	return cmd
}

func runResume(cmd *cobra.Command, file string) error {
	if file == "" {
		file = filepath.Join(resolveProject(""), handoffDirName, "RESUME.md")
	}

	data, err := os.ReadFile(file)
	if err != nil {
		exitWith(exitCaptureOrHandoff, err)
		return nil
	}

	text := string(data)
	cmd.Println(text)

	if err := copyToClipboard(text); err != nil {
		logging.Logger.Warn().Err(err).Msg("clipboard copy failed")
	}
	return nil
}
