/*
Copyright (c) 2026 The ast-intelligence-hooks Authors (SwiftEnProfundidad)
*/

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/app/ui"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/config"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/logging"
	appver "github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/version"
)

// Exit codes. A blocked gate is not an error of the tool.
const (
	exitAllowed = 0
	exitBlocked = 1
	exitFailure = 2
)

var (
	version = appver.Value

	repoRoot  string
	debug     bool
	jsonOut   bool
	hardMode  bool
	stageFlag string

	logger *zap.SugaredLogger
)

// exitError carries a process exit code through cobra without printing.
type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

var rootCmd = &cobra.Command{
	Use:           "pumuki",
	Short:         "pumuki is a code-governance gate that analyzes a repository scope, applies stage policy and leaves tamper-evident evidence.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(debug)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		ui.PrintGradientAsciiArt(os.Stdout, ui.PaletteFor(os.Stdout))
		_ = cmd.Help()
	},
}

// loadConfig reads .pumuki.yaml under --repo and applies flag overrides.
func loadConfig(cmd *cobra.Command) (config.RunConfig, error) {
	cfg, err := config.Load(repoRoot)
	if err != nil {
		return cfg, err
	}
	if f := cmd.Flags().Lookup("hard-mode"); f != nil && f.Changed {
		cfg.HardMode = hardMode
	}
	for _, w := range cfg.Validate() {
		logger.Warnw("config", "warning", w)
	}
	return cfg, nil
}

func Execute() {
	ctx, cancel := ui.WaitForCancel(context.Background())
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err == nil {
		return
	}
	var ee exitError
	if errors.As(err, &ee) {
		os.Exit(ee.code)
	}
	fmt.Fprintln(os.Stderr, ui.PaletteFor(os.Stderr).Wrap(ui.ColorRed, "Error: "+err.Error()))
	os.Exit(exitFailure)
}

func init() {
	rootCmd.Version = version

	rootCmd.PersistentFlags().StringVar(&repoRoot, "repo", ".", "Repository root")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Verbose logging to stderr")

	rootCmd.Long = ui.AsciiArt + `
pumuki evaluates a repository scope against stage policy.

Usage:
   pumuki gate  --stage PRE_COMMIT --scope staged
   pumuki gate  --stage CI --scope range --from origin/main --to HEAD
   pumuki check --stage PRE_WRITE
   pumuki verify [evidence-file]
   pumuki watch --stage PRE_COMMIT

Exit codes:
  0  ALLOWED
  1  BLOCKED, or evidence invalid
  2  the tool could not run (bad flags, unreadable repository)
`
}
