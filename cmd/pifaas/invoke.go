package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var invokeCmd = &cobra.Command{
	Use:   "invoke <function>",
	Short: "Run a function once, reading the payload from stdin",
	Long: `Run a function through the same executor the HTTP server uses.
Stdin is passed to the function, its combined output is written to stdout and
the run is appended to the function's log. The command exits with the
function's exit status, so it can be used directly in a crontab line.`,
	Args: cobra.ExactArgs(1),
	RunE: runInvoke,
}

func runInvoke(cmd *cobra.Command, args []string) error {
	application, err := newApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	payload, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("failed to read stdin: %w", err)
	}

	result, err := application.Executor().Execute(args[0], payload)
	if err != nil {
		return err
	}

	if _, err := cmd.OutOrStdout().Write(result.Output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if !result.Success {
		return &exitCodeError{code: result.ExitCode}
	}
	return nil
}
