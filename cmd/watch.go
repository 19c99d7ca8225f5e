/*
Copyright (c) 2026 The ast-intelligence-hooks Authors (SwiftEnProfundidad)
*/

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/app/output"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/app/scan"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/app/watch"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/config"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/gate"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/gitexec"
	msges "github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/messages"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/scope"
)

var (
	watchStage    string
	watchScope    string
	watchInterval time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rerun the gate when source or governance files change",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		req, err := buildRequest(watchStage, watchScope)
		if err != nil {
			return err
		}

		runner := &scan.Runner{Git: gitexec.New(cfg.RepoRoot), Logger: logger}
		printer := output.NewPrinter(os.Stdout)
		w := &watch.Watcher{
			Cfg:     cfg,
			Limiter: rate.NewLimiter(rate.Every(watchInterval), 1),
			Logger:  logger,
			Load:    func() (config.RunConfig, error) { return loadConfig(cmd) },
			Trigger: func(ctx context.Context, cfg config.RunConfig) {
				runner.Git = gitexec.New(cfg.RepoRoot)
				res, err := runner.Run(ctx, cfg, req)
				if err != nil {
					logger.Errorw("gate run failed", "error", err)
					return
				}
				printer.PrintDecision(res.Decision)
			},
		}

		fmt.Fprintln(os.Stdout, msges.GetUIMessage("WatchStarted", cfg.RepoRoot, req.Stage))
		w.Trigger(cmd.Context(), cfg)
		err = w.Run(cmd.Context())
		fmt.Fprintln(os.Stdout, msges.GetUIMessage("WatchStopped"))
		return err
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchStage, "stage", string(gate.PreCommit), "Stage: PRE_WRITE, PRE_COMMIT, PRE_PUSH or CI")
	watchCmd.Flags().StringVar(&watchScope, "scope", string(scope.KindWorkingTree), "Scope: repo, staged or working-tree")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", watch.DefaultInterval, "Minimum time between runs")
	watchCmd.Flags().BoolVar(&hardMode, "hard-mode", false, "Block at ERROR on every stage")

	rootCmd.AddCommand(watchCmd)
}
