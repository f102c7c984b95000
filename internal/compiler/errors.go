package compiler

import (
	"fmt"
	"strings"
)

// Spec error codes (E200-E299)
const (
	// Request errors (E201-E209)
	ErrEmptyColumns        = "E201" // column list is empty
	ErrKeyNotInColumns     = "E202" // primary-key column missing from columns
	ErrColumnCountMismatch = "E203" // source and target column counts differ
	ErrMissingTable        = "E204" // target table name is required
	ErrEmptyPrimaryKey     = "E205" // target needs at least one key column
	ErrDuplicateColumn     = "E206" // column listed twice
	ErrEmptyQuery          = "E207" // extract query is required
	ErrInvalidCron         = "E208" // cron expression does not parse

	// Graph invariant errors (E210-E219)
	ErrGraphCycle       = "E210" // graph contains a cycle
	ErrGraphNoInbound   = "E211" // non-source node has no inbound edge
	ErrGraphBranches    = "E212" // classifier lacks exactly one true and one false edge
	ErrGraphUnknownNode = "E213" // edge references an undeclared node
	ErrGraphDuplicateID = "E214" // node id declared twice
)

// SpecError describes one problem with a request pair or a compiled graph.
type SpecError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e SpecError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// SpecErrors is every problem found in one validation pass.
type SpecErrors []SpecError

// Error implements the error interface.
func (es SpecErrors) Error() string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (es SpecErrors) Unwrap() []error {
	errs := make([]error, len(es))
	for i, e := range es {
		errs[i] = e
	}
	return errs
}

// Codes returns the error codes in order, for tests and CLI output.
func (es SpecErrors) Codes() []string {
	codes := make([]string, len(es))
	for i, e := range es {
		codes[i] = e.Code
	}
	return codes
}
