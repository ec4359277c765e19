package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/aatumaykin/pifaas/internal/constants"
)

var scheduleOutput string

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage function schedules in the host crontab",
}

var scheduleSetCmd = &cobra.Command{
	Use:   "set <function> <cron-expression>",
	Short: "Install or replace the schedule of a function",
	Long: `Install or replace the schedule of a function. The expression needs at
least five fields; quote it so the shell passes it as one argument:

  pifaas schedule set backup "0 3 * * *"`,
	Args: cobra.MinimumNArgs(2),
	RunE: runScheduleSet,
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List mirrored schedules with their next run",
	Args:  cobra.NoArgs,
	RunE:  runScheduleList,
}

var scheduleRemoveCmd = &cobra.Command{
	Use:   "remove <function>",
	Short: "Remove the schedule of a function",
	Args:  cobra.ExactArgs(1),
	RunE:  runScheduleRemove,
}

var scheduleDriftCmd = &cobra.Command{
	Use:   "drift",
	Short: "Compare the schedule mirror with the crontab (read-only)",
	Args:  cobra.NoArgs,
	RunE:  runScheduleDrift,
}

func init() {
	scheduleListCmd.Flags().StringVarP(&scheduleOutput, "output", "o", "table", "output format: table, json, yaml")
	scheduleDriftCmd.Flags().StringVarP(&scheduleOutput, "output", "o", "table", "output format: table, json, yaml")

	scheduleCmd.AddCommand(scheduleSetCmd)
	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleRemoveCmd)
	scheduleCmd.AddCommand(scheduleDriftCmd)
}

func runScheduleSet(cmd *cobra.Command, args []string) error {
	name := args[0]
	// Непроквоченное выражение приходит несколькими аргументами.
	expr := strings.Join(args[1:], " ")

	application, err := newApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	if err := application.SetSchedule(cmd.Context(), name, expr); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), constants.MsgScheduleSet, name, strings.TrimSpace(expr))
	return nil
}

func runScheduleRemove(cmd *cobra.Command, args []string) error {
	application, err := newApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	if err := application.RemoveSchedule(cmd.Context(), args[0]); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), constants.MsgScheduleRemoved, args[0])
	return nil
}

func runScheduleList(cmd *cobra.Command, _ []string) error {
	application, err := newApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	list, err := application.Schedules(time.Now())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if scheduleOutput != "table" {
		return encode(out, scheduleOutput, list)
	}

	if len(list) == 0 {
		fmt.Fprint(out, constants.MsgSchedulesNotFound)
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FUNCTION\tSCHEDULE\tNEXT RUN")
	for _, s := range list {
		next := "-"
		if s.NextRun != nil {
			next = s.NextRun.Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Function, s.Expression, next)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, constants.MsgSchedulesTotal, len(list))
	return nil
}

func runScheduleDrift(cmd *cobra.Command, _ []string) error {
	application, err := newApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	drift, err := application.Drift(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if scheduleOutput != "table" {
		return encode(out, scheduleOutput, drift)
	}

	if len(drift) == 0 {
		fmt.Fprint(out, constants.MsgNoDrift)
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FUNCTION\tKIND\tMIRROR\tTABLE")
	for _, d := range drift {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Function, d.Kind, dash(d.Mirror), dash(d.Table))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, constants.MsgDriftFound, len(drift))
	return nil
}

func encode(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format: %s (expected: table, json, yaml)", format)
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
