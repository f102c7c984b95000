package harness

import (
	"fmt"

	"github.com/roach88/reconcile/internal/compiler"
	"github.com/roach88/reconcile/internal/diff"
	"github.com/roach88/reconcile/internal/ir"
)

// Run compiles the scenario's request, classifies its rows and evaluates
// its assertions. Failed assertions land in Result.Errors; the returned
// error is reserved for scenarios that cannot run at all.
func Run(s *Scenario) (*Result, error) {
	req, err := compiler.LoadRequest(s.Request)
	if err != nil {
		return nil, fmt.Errorf("load request: %w", err)
	}
	// A fixed name keeps golden output stable across runs.
	g, err := compiler.CompileNamed(compiler.NamePrefix+s.Name, req.Source, req.Target)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	rename, err := nodeConfig[ir.RenameConfig](&g, compiler.NodeRename)
	if err != nil {
		return nil, err
	}
	merge, err := nodeConfig[ir.MergeDiffConfig](&g, compiler.NodeMergeDiff)
	if err != nil {
		return nil, err
	}

	compare, err := convertRows("source", s.Source, &rename)
	if err != nil {
		return nil, err
	}
	reference, err := convertRows("target", s.Target, nil)
	if err != nil {
		return nil, err
	}

	classified, err := diff.Merge(reference, compare, merge.KeyColumns, merge.ValueColumns)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	result := NewResult()
	result.Keys = merge.KeyColumns
	result.Values = merge.ValueColumns
	for _, c := range classified {
		node, ok := diff.Walk(g, compiler.NodeClassifyIdentical, c.Class)
		if !ok {
			return nil, fmt.Errorf("class %s reaches no terminal node", c.Class)
		}
		result.Outcomes = append(result.Outcomes, Outcome{Class: c.Class, Node: node.ID, Row: c.Row})
		result.Counts[c.Class]++
	}

	for _, a := range s.Assertions {
		if err := evaluate(result, a); err != nil {
			result.AddError(err.Error())
		}
	}
	return result, nil
}

func nodeConfig[T ir.NodeConfig](g *ir.PipelineGraph, id string) (T, error) {
	var zero T
	n, ok := g.Node(id)
	if !ok {
		return zero, fmt.Errorf("graph has no node %s", id)
	}
	cfg, ok := n.Config.(T)
	if !ok {
		return zero, fmt.Errorf("node %s has config %T", id, n.Config)
	}
	return cfg, nil
}

// convertRows turns decoded YAML rows into ir rows, applying rename when
// it is non-nil.
func convertRows(side string, rows []map[string]any, rename *ir.RenameConfig) ([]ir.Row, error) {
	out := make([]ir.Row, 0, len(rows))
	for i, m := range rows {
		row, err := ir.RowFromMap(m)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", side, i, err)
		}
		if rename != nil {
			renamed := make(ir.Row, len(rename.To))
			for j, from := range rename.From {
				renamed[rename.To[j]] = row.Get(from)
			}
			row = renamed
		}
		out = append(out, row)
	}
	return out, nil
}
