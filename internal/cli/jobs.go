package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/reconcile/internal/ir"
)

// NewJobsCommand creates the jobs command group.
func NewJobsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage job dependencies",
	}
	cmd.AddCommand(newJobsLinkCommand(rootOpts))
	cmd.AddCommand(newJobsListCommand(rootOpts))
	cmd.AddCommand(newJobsDeleteCommand(rootOpts))
	return cmd
}

func newJobsLinkCommand(rootOpts *RootOptions) *cobra.Command {
	var trans, jobs []int64
	cmd := &cobra.Command{
		Use:   "link <master-id>",
		Short: "Record dependents of a job",
		Long: `Record that transfers (--trans) and jobs (--job) depend on a master
job, so deleting the master deletes them too.

Example:
  reconcile jobs link 12 --trans 13,14 --job 20`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			master, err := parseID(f, args[0])
			if err != nil {
				return err
			}
			if len(trans)+len(jobs) == 0 {
				return f.Fail(ExitCommandError, ErrCodeBadArgument, "at least one --trans or --job is required", nil, nil)
			}

			edges := make([]ir.DependencyEdge, 0, len(trans)+len(jobs))
			for _, id := range trans {
				edges = append(edges, ir.DependencyEdge{DependentID: id, DependentType: ir.DependentTrans})
			}
			for _, id := range jobs {
				edges = append(edges, ir.DependencyEdge{DependentID: id, DependentType: ir.DependentJob})
			}

			a, err := openApp(rootOpts, f)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.svc.SaveDependents(cmd.Context(), master, edges); err != nil {
				return f.Fail(ExitFailure, ErrCodeStore, "saving dependents", err, nil)
			}
			return f.Success(edges, fmt.Sprintf("Linked %d dependent(s) to job %d", len(edges), master))
		},
	}
	cmd.Flags().Int64SliceVar(&trans, "trans", nil, "dependent transfer ids")
	cmd.Flags().Int64SliceVar(&jobs, "job", nil, "dependent job ids")
	return cmd
}

func newJobsListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list <master-id>",
		Short:         "List dependents of a job",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			master, err := parseID(f, args[0])
			if err != nil {
				return err
			}
			a, err := openApp(rootOpts, f)
			if err != nil {
				return err
			}
			defer a.Close()

			edges, err := a.svc.Dependents(cmd.Context(), master)
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeStore, "reading dependents", err, nil)
			}
			text := fmt.Sprintf("Job %d: %d dependent(s)", master, len(edges))
			for _, e := range edges {
				text += fmt.Sprintf("\n  %s %d", e.DependentType, e.DependentID)
			}
			return f.Success(edges, text)
		},
	}
}

func newJobsDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <master-id>",
		Short: "Delete a job and everything depending on it",
		Long: `Delete every dependent of a job (recursing into dependent jobs), then
the job itself. The cascade is not transactional: on failure the records
already deleted stay deleted and rerunning the command finishes the rest.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			master, err := parseID(f, args[0])
			if err != nil {
				return err
			}
			a, err := openApp(rootOpts, f)
			if err != nil {
				return err
			}
			defer a.Close()

			deleted, err := a.svc.DeleteJob(cmd.Context(), master)
			if err != nil {
				return f.Fail(ExitFailure, ErrCodeCascade, "cascade delete incomplete", err, map[string][]int64{"deleted": deleted})
			}
			return f.Success(map[string][]int64{"deleted": deleted}, fmt.Sprintf("Deleted %d record(s)", len(deleted)))
		},
	}
}
