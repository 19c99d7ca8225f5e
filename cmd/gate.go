/*
Copyright (c) 2026 The ast-intelligence-hooks Authors (SwiftEnProfundidad)
*/

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/app/output"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/app/scan"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/gate"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/gitexec"
	msges "github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/messages"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/scope"
)

var (
	scopeFlag  string
	fromRef    string
	toRef      string
	reportPath string
	dryRun     bool
)

var gateCmd = &cobra.Command{
	Use:   "gate",
	Short: "Analyze a scope, decide ALLOWED or BLOCKED and write evidence",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		req, err := buildRequest(stageFlag, scopeFlag)
		if err != nil {
			return err
		}

		runner := &scan.Runner{Git: gitexec.New(cfg.RepoRoot), Logger: logger, DryRun: dryRun}
		res, err := runner.Run(cmd.Context(), cfg, req)
		if err != nil {
			if cmd.Context().Err() != nil {
				fmt.Fprintln(os.Stderr, msges.GetUIMessage("ScanCancelled"))
			}
			return err
		}

		if reportPath != "" {
			if err := output.SaveJSONReport(reportPath, output.NewReport(res)); err != nil {
				logger.Errorw("report not saved", "path", reportPath, "error", err)
			}
		}
		if jsonOut {
			if err := output.WriteJSON(os.Stdout, output.NewReport(res)); err != nil {
				return err
			}
		} else {
			output.NewPrinter(os.Stdout).PrintRun(res)
		}
		return decisionExit(res.Decision)
	},
}

func buildRequest(stage, kind string) (scan.Request, error) {
	st, err := gate.ParseStage(stage)
	if err != nil {
		return scan.Request{}, err
	}
	k, err := scope.ParseKind(kind)
	if err != nil {
		return scan.Request{}, err
	}
	req := scan.Request{Stage: st, Scope: scope.Request{Kind: k, FromRef: fromRef, ToRef: toRef}}
	if err := req.Scope.Validate(); err != nil {
		return scan.Request{}, err
	}
	return req, nil
}

func decisionExit(d gate.Decision) error {
	if d.Blocked() {
		return exitError{code: exitBlocked}
	}
	return nil
}

func init() {
	gateCmd.Flags().StringVar(&stageFlag, "stage", string(gate.PreCommit), "Stage: PRE_WRITE, PRE_COMMIT, PRE_PUSH or CI")
	gateCmd.Flags().StringVar(&scopeFlag, "scope", string(scope.KindStaged), "Scope: repo, staged, range or working-tree")
	gateCmd.Flags().StringVar(&fromRef, "from", "", "Range start ref (scope=range)")
	gateCmd.Flags().StringVar(&toRef, "to", "", "Range end ref (scope=range)")
	gateCmd.Flags().BoolVar(&jsonOut, "json", false, "Print the result as JSON")
	gateCmd.Flags().StringVar(&reportPath, "report", "", "Also save the JSON result to this file")
	gateCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Decide without writing the evidence file")
	gateCmd.Flags().BoolVar(&hardMode, "hard-mode", false, "Block at ERROR on every stage")

	rootCmd.AddCommand(gateCmd)
}
