package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/pifaas/internal/version"
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Long:  `Display the version, build time, git commit and Go version of pifaas.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprint(cmd.OutOrStdout(), version.Format())
	},
}
