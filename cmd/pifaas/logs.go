package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/pifaas/internal/constants"
	"github.com/aatumaykin/pifaas/internal/functions"
	"github.com/aatumaykin/pifaas/internal/runlog"
)

var logsCmd = &cobra.Command{
	Use:   "logs <function>",
	Short: "Print a function's run log",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogs,
}

func runLogs(cmd *cobra.Command, args []string) error {
	name := args[0]
	if err := functions.ValidateName(name); err != nil {
		return err
	}

	application, err := newApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	data, err := application.RunLog().Read(name)
	if errors.Is(err, runlog.ErrNotFound) {
		fmt.Fprintf(cmd.ErrOrStderr(), constants.MsgNoLogs, name)
		return &exitCodeError{code: 1}
	}
	if err != nil {
		return err
	}

	_, err = cmd.OutOrStdout().Write(data)
	return err
}
