package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/roach88/reconcile/internal/ir"
)

// ValidateRequest checks a full request: the source/target pair plus the
// optional cron expression.
func ValidateRequest(req ir.TransferRequest) SpecErrors {
	errs := Validate(req.Source, req.Target)
	if req.CronExpression != "" {
		if _, err := cron.ParseStandard(req.CronExpression); err != nil {
			errs = append(errs, SpecError{
				Field:   "cron_expression",
				Message: err.Error(),
				Code:    ErrInvalidCron,
			})
		}
	}
	return errs
}

// Validate checks a source/target pair before compilation.
// Returns all errors found (does not fail-fast).
func Validate(source, target ir.TransferSpec) SpecErrors {
	var errs SpecErrors
	errs = append(errs, validateSide("source", source)...)
	errs = append(errs, validateSide("target", target)...)

	// E203: rename is positional, so the column lists must line up
	if len(source.Columns) > 0 && len(target.Columns) > 0 && len(source.Columns) != len(target.Columns) {
		errs = append(errs, SpecError{
			Field:   "columns",
			Message: fmt.Sprintf("source has %d columns, target has %d", len(source.Columns), len(target.Columns)),
			Code:    ErrColumnCountMismatch,
		})
	}

	// E204
	if strings.TrimSpace(target.TableName) == "" {
		errs = append(errs, SpecError{
			Field:   "target.table_name",
			Message: "table name is required on the target",
			Code:    ErrMissingTable,
		})
	}

	// E205: updates and deletes address rows by the target key
	if len(target.PrimaryKeyColumns) == 0 {
		errs = append(errs, SpecError{
			Field:   "target.primary_key_columns",
			Message: "at least one primary-key column is required",
			Code:    ErrEmptyPrimaryKey,
		})
	}

	return errs
}

func validateSide(side string, spec ir.TransferSpec) SpecErrors {
	var errs SpecErrors

	if strings.TrimSpace(spec.Query) == "" {
		errs = append(errs, SpecError{
			Field:   side + ".query",
			Message: "query is required",
			Code:    ErrEmptyQuery,
		})
	}

	if len(spec.Columns) == 0 {
		errs = append(errs, SpecError{
			Field:   side + ".columns",
			Message: "at least one column is required",
			Code:    ErrEmptyColumns,
		})
	}

	seen := make(map[string]bool, len(spec.Columns))
	for i, col := range spec.Columns {
		if seen[col] {
			errs = append(errs, SpecError{
				Field:   fmt.Sprintf("%s.columns[%d]", side, i),
				Message: fmt.Sprintf("column %q listed twice", col),
				Code:    ErrDuplicateColumn,
			})
		}
		seen[col] = true
	}

	for i, key := range spec.PrimaryKeyColumns {
		if !slices.Contains(spec.Columns, key) {
			errs = append(errs, SpecError{
				Field:   fmt.Sprintf("%s.primary_key_columns[%d]", side, i),
				Message: fmt.Sprintf("key column %q is not in columns", key),
				Code:    ErrKeyNotInColumns,
			})
		}
	}

	return errs
}
