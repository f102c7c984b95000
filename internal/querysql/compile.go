package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/reconcile/internal/queryir"
)

// Rendered is a parameterized statement. Params names the row field bound
// to each placeholder, in order.
type Rendered struct {
	SQL    string
	Params []string
}

// Render converts a statement into parameterized SQL.
// Values are never interpolated; every value is a ? placeholder.
func Render(stmt queryir.Statement) (Rendered, error) {
	if err := queryir.Validate(stmt); err != nil {
		return Rendered{}, fmt.Errorf("invalid statement: %w", err)
	}

	switch s := stmt.(type) {
	case queryir.Insert:
		return renderInsert(s), nil
	case queryir.Update:
		return renderUpdate(s)
	case queryir.Delete:
		return renderDelete(s)
	default:
		return Rendered{}, fmt.Errorf("unsupported statement type: %T", stmt)
	}
}

func renderInsert(s queryir.Insert) Rendered {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(s.Fields)), ", ")
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.Table, strings.Join(s.Fields, ", "), placeholders)
	return Rendered{SQL: sql, Params: append([]string(nil), s.Fields...)}
}

func renderUpdate(s queryir.Update) (Rendered, error) {
	sets := make([]string, len(s.Set))
	for i, f := range s.Set {
		sets[i] = f + " = ?"
	}
	where, whereParams, err := renderPredicate(s.Where)
	if err != nil {
		return Rendered{}, err
	}
	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s", s.Table, strings.Join(sets, ", "), where)
	params := append(append([]string(nil), s.Set...), whereParams...)
	return Rendered{SQL: sql, Params: params}, nil
}

func renderDelete(s queryir.Delete) (Rendered, error) {
	where, params, err := renderPredicate(s.Where)
	if err != nil {
		return Rendered{}, err
	}
	return Rendered{SQL: fmt.Sprintf("DELETE FROM %s WHERE %s", s.Table, where), Params: params}, nil
}

func renderPredicate(p queryir.Predicate) (string, []string, error) {
	switch pred := p.(type) {
	case queryir.KeyEquals:
		return pred.Column + " = ?", []string{pred.Column}, nil
	case queryir.And:
		parts := make([]string, 0, len(pred.Predicates))
		var params []string
		for _, inner := range pred.Predicates {
			sql, innerParams, err := renderPredicate(inner)
			if err != nil {
				return "", nil, err
			}
			if _, nested := inner.(queryir.And); nested {
				sql = "(" + sql + ")"
			}
			parts = append(parts, sql)
			params = append(params, innerParams...)
		}
		return strings.Join(parts, " AND "), params, nil
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}
