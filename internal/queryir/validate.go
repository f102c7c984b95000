package queryir

import (
	"errors"
	"fmt"
)

// Validate checks a statement is complete enough to render.
// All problems are reported together.
func Validate(stmt Statement) error {
	v := &validator{}
	v.statement(stmt)
	return errors.Join(v.errs...)
}

type validator struct {
	errs []error
}

func (v *validator) addf(format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf(format, args...))
}

func (v *validator) statement(stmt Statement) {
	switch s := stmt.(type) {
	case Insert:
		v.table(s.Table)
		v.fields("insert", s.Fields)
	case Update:
		v.table(s.Table)
		v.fields("update", s.Set)
		v.where("update", s.Where)
	case Delete:
		v.table(s.Table)
		v.where("delete", s.Where)
	case nil:
		v.addf("nil statement")
	default:
		v.addf("unsupported statement %T", stmt)
	}
}

func (v *validator) table(name string) {
	if name == "" {
		v.addf("table name is required")
	}
}

func (v *validator) fields(op string, fields []string) {
	if len(fields) == 0 {
		v.addf("%s requires at least one field", op)
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f == "" {
			v.addf("%s has an empty field name", op)
			continue
		}
		if seen[f] {
			v.addf("%s lists field %q twice", op, f)
		}
		seen[f] = true
	}
}

// where rejects unconditional updates and deletes.
func (v *validator) where(op string, p Predicate) {
	if p == nil {
		v.addf("%s requires a key predicate", op)
		return
	}
	v.predicate(op, p)
}

func (v *validator) predicate(op string, p Predicate) {
	switch pred := p.(type) {
	case KeyEquals:
		if pred.Column == "" {
			v.addf("%s predicate has an empty column", op)
		}
	case And:
		if len(pred.Predicates) == 0 {
			v.addf("%s predicate is an empty conjunction", op)
		}
		for _, inner := range pred.Predicates {
			v.predicate(op, inner)
		}
	default:
		v.addf("unsupported predicate %T", p)
	}
}
