package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/reconcile/internal/ir"
)

// Describe renders a graph as line-oriented text: the header, one line per
// connection, one per node, one per edge. Output is stable for a given graph.
func Describe(g ir.PipelineGraph) string {
	var b strings.Builder
	fmt.Fprintf(&b, "graph %s version=%s\n", g.Name, g.Version)
	for _, c := range g.Connections {
		fmt.Fprintf(&b, "connection %s engine=%s access=%s at=%s:%d/%s\n",
			c.Name, c.EngineType, c.AccessMode, c.Host, c.Port, c.Database)
	}
	for _, n := range g.Nodes {
		fmt.Fprintf(&b, "node %s %s", n.ID, n.Kind)
		if detail := describeConfig(n.Config); detail != "" {
			b.WriteString(" " + detail)
		}
		b.WriteByte('\n')
	}
	for _, e := range g.Edges {
		fmt.Fprintf(&b, "edge %s -> %s", e.From, e.To)
		if e.Label != "" {
			fmt.Fprintf(&b, " [%s]", e.Label)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func describeConfig(cfg ir.NodeConfig) string {
	switch c := cfg.(type) {
	case ir.ExtractConfig:
		return fmt.Sprintf("connection=%s columns=%s query=%q", c.Connection, list(c.Columns), c.Query)
	case ir.RenameConfig:
		pairs := make([]string, len(c.From))
		for i := range c.From {
			pairs[i] = c.From[i] + ">" + c.To[i]
		}
		return "map=" + list(pairs)
	case ir.MergeDiffConfig:
		return fmt.Sprintf("reference=%s compare=%s keys=%s values=%s flag=%s",
			c.Reference, c.Compare, list(c.KeyColumns), list(c.ValueColumns), c.FlagField)
	case ir.ClassifyConfig:
		return fmt.Sprintf("%s==%s", c.Field, c.Equals)
	case ir.ApplyConfig:
		s := fmt.Sprintf("connection=%s table=%s fields=%s batch=%d", c.Connection, c.Table, list(c.Fields), c.BatchSize)
		if len(c.KeyColumns) > 0 {
			s += fmt.Sprintf(" keys=%s conditions=%s", list(c.KeyColumns), list(c.KeyConditions))
		}
		return s + fmt.Sprintf(" sql=%q", c.Statement)
	default:
		return ""
	}
}

func list(items []string) string {
	return "[" + strings.Join(items, ",") + "]"
}
