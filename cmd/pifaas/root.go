package main

import (
	"github.com/spf13/cobra"

	"github.com/aatumaykin/pifaas/internal/constants"
)

var (
	configPath string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pifaas",
	Short: "pifaas - minimal function host with crontab scheduling",
	Long: `pifaas runs executable scripts from a functions directory over HTTP,
passing the request body on stdin, and schedules them through the host crontab.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", constants.DefaultConfigPath, "path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(invokeCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(logsCmd)
}
