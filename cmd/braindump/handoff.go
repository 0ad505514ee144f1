package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wesm/braindump/internal/assemble"
	"github.com/wesm/braindump/internal/compress"
	"github.com/wesm/braindump/internal/logging"
)

func newHandoffCmd() *cobra.Command {
	var source, target, sessionID, project, outPath string
	var tokens int
	var dryRun, noClipboard, launch bool

	cmd := &cobra.Command{
		Use:   "handoff",
		Short: "Capture a session and produce a token-budgeted handoff document",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHandoff(cmd, handoffArgs{
				source: source, target: target, sessionID: sessionID, project: project,
				outPath: outPath, tokens: tokens, dryRun: dryRun, noClipboard: noClipboard, launch: launch,
			})
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "agent id to capture from")
	cmd.Flags().StringVar(&target, "target", "", "handoff target: file, clipboard, or an agent id")
	cmd.Flags().StringVar(&sessionID, "session", "", "capture this session id instead of the latest")
	cmd.Flags().StringVar(&project, "project", "", "project path (defaults to the current directory)")
	cmd.Flags().IntVar(&tokens, "tokens", 0, "override the target's usable-token budget")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the prompt instead of writing it")
	cmd.Flags().BoolVar(&noClipboard, "no-clipboard", false, "skip copying the prompt to the clipboard")
	cmd.Flags().BoolVar(&launch, "launch", false, "launch the target agent with the prompt")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "write RESUME.md to this path instead of .handoff/RESUME.md")
	return cmd
}

type handoffArgs struct {
	source, target, sessionID, project, outPath string
	tokens                                      int
	dryRun, noClipboard, launch                 bool
}

func runHandoff(cmd *cobra.Command, args handoffArgs) error {
	project := resolveProject(args.project)

	target := args.target
	if target == "" {
		target = cfg.Target
	}

	cs, err := captureSession(buildRegistry(cfg), args.source, args.sessionID, project)
	if err != nil {
		exitWith(exitCaptureOrHandoff, err)
		return nil
	}

	budget := cfg.EffectiveBudget(target)
	if args.tokens > 0 {
		budget = args.tokens
	}
	result := compress.BuildWithBudget(cs, budget)
	for _, name := range result.Dropped {
		logging.Logger.Debug().Str("layer", name).Msg("dropped for budget")
	}

	outPath := args.outPath
	if outPath == "" {
		outPath = filepath.Join(project, handoffDirName, "RESUME.md")
	}

	doc := assemble.Build(cs, target, result, outPath)

	if args.dryRun {
		cmd.Println(doc.Prompt)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		exitWith(exitCaptureOrHandoff, err)
		return nil
	}
	if err := os.WriteFile(outPath, []byte(doc.Full), 0o644); err != nil {
		exitWith(exitCaptureOrHandoff, err)
		return nil
	}
	cmd.Printf("wrote %s\n", outPath)

	if !args.noClipboard {
		if err := copyToClipboard(doc.Prompt); err != nil {
			logging.Logger.Warn().Err(err).Msg("clipboard copy failed")
		}
	}

	if args.launch {
		if err := launchTarget(target, doc.Prompt, outPath, doc.IsReference); err != nil {
			exitWith(exitCaptureOrHandoff, err)
			return nil
		}
	}

	return nil
}
