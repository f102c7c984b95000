package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/reconcile/internal/ir"
)

// AssertionError describes one failed assertion.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

func evaluate(r *Result, a Assertion) error {
	switch a.Type {
	case AssertClassCount:
		return assertClassCount(r, a)
	case AssertClassOf:
		return assertClassOf(r, a)
	case AssertRoutesTo:
		return assertRoutesTo(r, a)
	case AssertTotal:
		if got := len(r.Outcomes); got != a.Count {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%d rows", a.Count), Actual: fmt.Sprintf("%d rows", got)}
		}
		return nil
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertClassCount(r *Result, a Assertion) error {
	if got := r.Counts[a.Class]; got != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d %s rows", a.Count, a.Class),
			Actual:   fmt.Sprintf("%d", got),
		}
	}
	return nil
}

func assertClassOf(r *Result, a Assertion) error {
	key, err := ir.RowFromMap(a.Key)
	if err != nil {
		return fmt.Errorf("%s: key: %w", a.Type, err)
	}
	cols := make([]string, 0, len(key))
	for col := range key {
		cols = append(cols, col)
	}
	slices.Sort(cols)

	for _, o := range r.Outcomes {
		if ir.CompareKeys(o.Row, key, cols) != 0 {
			continue
		}
		if o.Class != a.Class {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%s for %s", a.Class, formatColumns(key, cols)),
				Actual:   string(o.Class),
			}
		}
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%s for %s", a.Class, formatColumns(key, cols)),
		Actual:   "no such row",
	}
}

func assertRoutesTo(r *Result, a Assertion) error {
	var wrong []string
	for _, o := range r.Outcomes {
		if o.Class == a.Class && o.Node != a.Node {
			wrong = append(wrong, o.Node)
		}
	}
	if len(wrong) > 0 {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s rows at %s", a.Class, a.Node),
			Actual:   strings.Join(wrong, ","),
		}
	}
	return nil
}

func formatColumns(row ir.Row, cols []string) string {
	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = col + "=" + ir.FormatValue(row.Get(col))
	}
	return strings.Join(parts, " ")
}
