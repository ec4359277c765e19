package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/aatumaykin/pifaas/internal/config"
	"github.com/aatumaykin/pifaas/internal/constants"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Validate and inspect pifaas configuration.`,
}

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate [config-file]",
	Short: "Validate configuration file",
	Long:  `Validate the configuration file and check for errors.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if len(args) > 0 {
			path = args[0]
		}

		cfg, err := config.Load(path)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), constants.MsgConfigLoadError, err)
			return &exitCodeError{code: 1}
		}

		if errs := cfg.Validate(); len(errs) > 0 {
			fmt.Fprint(cmd.ErrOrStderr(), constants.MsgConfigValidationFailed)
			for _, e := range errs {
				fmt.Fprintf(cmd.ErrOrStderr(), constants.MsgConfigValidationItem, e)
			}
			return &exitCodeError{code: 1}
		}

		fmt.Fprintf(cmd.OutOrStdout(), constants.MsgConfigValid, path)
		return nil
	},
}

// configShowCmd prints the effective configuration
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as TOML",
	Long: `Print the configuration after defaults and environment variables are
applied. Without a config file the built-in defaults are shown.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if _, err := os.Stat(configPath); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), constants.MsgConfigDefaults, configPath)
		}
		cfg, err := config.LoadOptional(configPath)
		if err != nil {
			return err
		}
		return toml.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
}
