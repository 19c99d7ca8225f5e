/*
Copyright (c) 2026 The ast-intelligence-hooks Authors (SwiftEnProfundidad)
*/

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	appver "github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), appver.EvidenceGenerator())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
