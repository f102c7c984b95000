package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/reconcile/internal/dispatch"
	"github.com/roach88/reconcile/internal/ir"
	"github.com/roach88/reconcile/internal/store"
)

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var cronExpr string
	cmd := &cobra.Command{
		Use:   "create <request-file>",
		Short: "Compile a request and submit it to a worker",
		Long: `Compile a transfer request, submit the graph to the first configured
worker that accepts it and record the run.

Example:
  reconcile create requests/employees.yaml
  reconcile create requests/employees.cue --cron "0 2 * * *"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			req, err := loadRequest(f, args[0])
			if err != nil {
				return err
			}
			if cronExpr != "" {
				req.CronExpression = cronExpr
			}

			a, err := openApp(rootOpts, f)
			if err != nil {
				return err
			}
			defer a.Close()

			h, err := a.svc.CreateTransfer(cmd.Context(), req)
			if err != nil {
				var dispatchErr *dispatch.DispatchError
				if errors.As(err, &dispatchErr) {
					return f.Fail(ExitFailure, ErrCodeDispatch, "submitting pipeline", err, nil)
				}
				return reportSpecErrors(f, err)
			}
			return f.Success(h, fmt.Sprintf("Transfer %d: %s", h.ID, h.Status))
		},
	}
	cmd.Flags().StringVar(&cronExpr, "cron", "", "cron expression (overrides the request file)")
	return cmd
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:           "query <id>",
		Short:         "Show a transfer's status",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			id, err := parseID(f, args[0])
			if err != nil {
				return err
			}
			a, err := openApp(rootOpts, f)
			if err != nil {
				return err
			}
			defer a.Close()

			if full {
				rec, err := a.svc.Transfer(cmd.Context(), id)
				if errors.Is(err, store.ErrNotFound) {
					return notFound(f, id)
				}
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeStore, "reading record", err, nil)
				}
				return f.Success(rec, formatRecord(rec))
			}

			h, ok, err := a.svc.QueryTransfer(cmd.Context(), id)
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeStore, "reading record", err, nil)
			}
			if !ok {
				return notFound(f, id)
			}
			return f.Success(h, fmt.Sprintf("Transfer %d: %s", h.ID, h.Status))
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "show the whole record")
	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a transfer record",
		Long: `Delete a transfer record and stop tracking it. A run the worker
already accepted keeps running.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			id, err := parseID(f, args[0])
			if err != nil {
				return err
			}
			a, err := openApp(rootOpts, f)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.svc.DeleteTransfer(cmd.Context(), id); err != nil {
				return f.Fail(ExitCommandError, ErrCodeStore, "deleting record", err, nil)
			}
			return f.Success(map[string]int64{"deleted": id}, fmt.Sprintf("Deleted transfer %d", id))
		},
	}
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "history <id>",
		Short:         "List a transfer's terminal transitions",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			id, err := parseID(f, args[0])
			if err != nil {
				return err
			}
			a, err := openApp(rootOpts, f)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.svc.History(cmd.Context(), id)
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeStore, "reading history", err, nil)
			}
			return f.Success(entries, formatHistory(id, entries))
		},
	}
}

// NewPurgeCommand creates the purge command.
func NewPurgeCommand(rootOpts *RootOptions) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete old finished transfer records",
		Long: `Delete FINISHED and ERROR records without a cron expression whose last
update is older than --older-than. History entries are kept.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			if olderThan < 0 {
				return f.Fail(ExitCommandError, ErrCodeBadArgument, "--older-than must not be negative", nil, nil)
			}
			a, err := openApp(rootOpts, f)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.svc.Purge(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeStore, "purging records", err, nil)
			}
			return f.Success(map[string]int64{"purged": n}, fmt.Sprintf("Purged %d record(s)", n))
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "minimum age of purged records")
	return cmd
}

func parseID(f *OutputFormatter, arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, f.Fail(ExitCommandError, ErrCodeBadArgument, fmt.Sprintf("invalid id %q", arg), nil, nil)
	}
	return id, nil
}

func notFound(f *OutputFormatter, id int64) error {
	return f.Fail(ExitFailure, ErrCodeNotFound, fmt.Sprintf("transfer %d not found", id), nil, map[string]int64{"id": id})
}

func formatRecord(rec ir.TransferRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Transfer %d: %s\n", rec.ID, rec.Status)
	fmt.Fprintf(&b, "  name:     %s\n", rec.Name)
	fmt.Fprintf(&b, "  run id:   %s\n", rec.RunID)
	fmt.Fprintf(&b, "  worker:   %s\n", rec.Hostname)
	if rec.CronExpression != "" {
		fmt.Fprintf(&b, "  cron:     %s\n", rec.CronExpression)
	}
	if rec.ErrorMessage != "" {
		fmt.Fprintf(&b, "  error:    %s\n", rec.ErrorMessage)
	}
	fmt.Fprintf(&b, "  created:  %s\n", rec.CreateTime.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "  updated:  %s", rec.UpdateTime.UTC().Format(time.RFC3339))
	return b.String()
}

func formatHistory(id int64, entries []ir.HistoryEntry) string {
	if len(entries) == 0 {
		return fmt.Sprintf("Transfer %d has no terminal transitions", id)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Transfer %d: %d transition(s)", id, len(entries))
	for _, e := range entries {
		fmt.Fprintf(&b, "\n  %s  %-8s %s", e.Timestamp.UTC().Format(time.RFC3339), e.Status, e.RunID)
		if e.ErrorMessage != "" {
			fmt.Fprintf(&b, "  (%s)", e.ErrorMessage)
		}
	}
	return b.String()
}
