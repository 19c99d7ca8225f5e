/*
Copyright (c) 2026 The ast-intelligence-hooks Authors (SwiftEnProfundidad)
*/

package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/app/output"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/app/scan"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/evidence"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/gate"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/gitexec"
)

var checkStage string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Judge the persisted evidence for a stage without scanning",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		stage, err := gate.ParseStage(checkStage)
		if err != nil {
			return err
		}
		runner := &scan.Runner{Git: gitexec.New(cfg.RepoRoot), Logger: logger}
		d := runner.Check(cmd.Context(), cfg, stage)
		if jsonOut {
			if err := output.WriteJSON(os.Stdout, d); err != nil {
				return err
			}
		} else {
			output.NewPrinter(os.Stdout).PrintDecision(d)
		}
		return decisionExit(d)
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify [evidence-file]",
	Short: "Check the schema and integrity hash of an evidence file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		path := cfg.EvidenceFile()
		if len(args) == 1 {
			path = args[0]
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		v := evidence.Verify(data)
		if jsonOut {
			doc := map[string]any{"path": path, "valid": v.Valid, "source_version": v.SourceVersion}
			if v.Valid && v.Contract != nil && v.Contract.Integrity != nil {
				doc["payload_hash"] = v.Contract.Integrity.PayloadHash
				doc["snapshot_id"] = evidence.SnapshotID(v.Contract.Integrity.PayloadHash)
			} else {
				doc["reason"] = v.Reason
				doc["detail"] = v.Detail
			}
			if err := output.WriteJSON(os.Stdout, doc); err != nil {
				return err
			}
		} else {
			output.NewPrinter(os.Stdout).PrintVerify(path, v)
		}
		if !v.Valid {
			return exitError{code: exitBlocked}
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkStage, "stage", string(gate.PreWrite), "Stage: PRE_WRITE, PRE_COMMIT, PRE_PUSH or CI")
	checkCmd.Flags().BoolVar(&jsonOut, "json", false, "Print the decision as JSON")
	checkCmd.Flags().BoolVar(&hardMode, "hard-mode", false, "Block at ERROR on every stage")

	verifyCmd.Flags().BoolVar(&jsonOut, "json", false, "Print the result as JSON")

	rootCmd.AddCommand(checkCmd, verifyCmd)
}
