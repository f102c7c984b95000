package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/reconcile/internal/compiler"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <request-file>...",
		Short: "Check transfer requests without compiling them",
		Long: `Validate one or more transfer request files. Every problem in every
file is reported; the command fails if any file is invalid.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}
	return cmd
}

// ValidationResult is the JSON payload for one validated file.
type ValidationResult struct {
	Path   string              `json:"path"`
	Valid  bool                `json:"valid"`
	Errors compiler.SpecErrors `json:"errors,omitempty"`
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	results := make([]ValidationResult, 0, len(paths))
	invalid := 0
	for _, path := range paths {
		req, err := loadRequest(f, path)
		if err != nil {
			return err
		}
		errs := compiler.ValidateRequest(req)
		results = append(results, ValidationResult{Path: path, Valid: len(errs) == 0, Errors: errs})
		if len(errs) > 0 {
			invalid++
		}
	}

	if f.Format == "json" {
		if err := f.Success(results, ""); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			if r.Valid {
				fmt.Fprintf(f.Writer, "✓ %s\n", r.Path)
				continue
			}
			fmt.Fprintf(f.Writer, "✗ %s\n", r.Path)
			for _, e := range r.Errors {
				fmt.Fprintf(f.Writer, "  [%s] %s: %s\n", e.Code, e.Field, e.Message)
			}
		}
	}

	if invalid > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d request(s) invalid", invalid, len(paths)))
	}
	return nil
}
