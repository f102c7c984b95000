package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/reconcile/internal/compiler"
	"github.com/roach88/reconcile/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output   string // output file path
	Name     string // fixed graph name instead of a generated one
	Describe bool   // print the topology instead of JSON
}

// CompilationResult is the JSON payload of a successful compile.
type CompilationResult struct {
	Fingerprint string           `json:"fingerprint"`
	Graph       ir.PipelineGraph `json:"graph"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <request-file>",
		Short: "Compile a transfer request into a pipeline graph",
		Long: `Compile a source/target transfer request (.cue, .yaml or .json) into a
reconciliation pipeline graph and print it as canonical JSON.

Example:
  reconcile compile requests/employees.yaml
  reconcile compile requests/employees.cue --describe
  reconcile compile requests/employees.yaml -o graph.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write canonical graph JSON to this file")
	cmd.Flags().StringVar(&opts.Name, "name", "", "graph name (default: generated)")
	cmd.Flags().BoolVar(&opts.Describe, "describe", false, "print the graph topology as text")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	req, err := loadRequest(f, path)
	if err != nil {
		return err
	}
	f.VerboseLog("Loaded request %s", path)

	var g ir.PipelineGraph
	if opts.Name != "" {
		g, err = compiler.CompileNamed(opts.Name, req.Source, req.Target)
	} else {
		g, err = compiler.Compile(req.Source, req.Target)
	}
	if err != nil {
		return reportSpecErrors(f, err)
	}

	canonical, err := ir.MarshalCanonical(g)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeGeneric, "encoding graph", err, nil)
	}
	fingerprint, err := ir.GraphFingerprint(g)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeGeneric, "fingerprinting graph", err, nil)
	}
	f.VerboseLog("Graph %s: %d node(s), %d edge(s)", g.Name, len(g.Nodes), len(g.Edges))

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, append(canonical, '\n'), 0o644); err != nil {
			return f.Fail(ExitCommandError, ErrCodeWriteFailed, "writing output file", err, nil)
		}
	}

	text := string(canonical)
	if opts.Describe {
		text = compiler.Describe(g)
	}
	if opts.Output != "" {
		text = fmt.Sprintf("Wrote %s (fingerprint %s)", opts.Output, fingerprint)
	}
	return f.Success(CompilationResult{Fingerprint: fingerprint, Graph: g}, text)
}

// loadRequest reads a request file, reporting failures with ErrCodeLoadFailed.
func loadRequest(f *OutputFormatter, path string) (ir.TransferRequest, error) {
	req, err := compiler.LoadRequest(path)
	if err != nil {
		var loadErr *compiler.LoadError
		if errors.As(err, &loadErr) {
			return req, f.Fail(ExitCommandError, ErrCodeLoadFailed, "loading request", err, loadErr)
		}
		return req, f.Fail(ExitCommandError, ErrCodeLoadFailed, "loading request", err, nil)
	}
	return req, nil
}

// reportSpecErrors prints every SpecError. Other errors are reported as
// generic failures.
func reportSpecErrors(f *OutputFormatter, err error) error {
	var specErrs compiler.SpecErrors
	if !errors.As(err, &specErrs) || len(specErrs) == 0 {
		return f.Fail(ExitFailure, ErrCodeGeneric, "compiling request", err, nil)
	}
	if f.Format == "json" {
		_ = f.Error(specErrs[0].Code, specErrs[0].Message, specErrs)
	} else {
		for _, e := range specErrs {
			fmt.Fprintf(f.Writer, "Error [%s] %s: %s\n", e.Code, e.Field, e.Message)
		}
	}
	return WrapExitError(ExitFailure, fmt.Sprintf("%d request error(s)", len(specErrs)), err)
}
