package diff

import "github.com/roach88/reconcile/internal/ir"

// priority is the classifier chain order. A row takes the sink of the first
// class it matches; anything left over is deleted.
var priority = []struct {
	class ir.Class
	sink  ir.NodeKind
}{
	{ir.ClassIdentical, ir.KindNoop},
	{ir.ClassNew, ir.KindInsert},
	{ir.ClassChanged, ir.KindUpdate},
}

// Route returns the apply action a row of the given class reaches.
func Route(class ir.Class) ir.NodeKind {
	for _, p := range priority {
		if class == p.class {
			return p.sink
		}
	}
	return ir.KindDelete
}

// Walk follows a compiled graph from its first classifier, taking the true
// branch when the class matches, and returns the terminal node reached.
// It returns false if the walk leaves the classifier chain without reaching
// a terminal node.
func Walk(g ir.PipelineGraph, start string, class ir.Class) (ir.Node, bool) {
	id := start
	for range len(g.Nodes) {
		n, ok := g.Node(id)
		if !ok {
			return ir.Node{}, false
		}
		if n.Kind.Terminal() {
			return n, true
		}
		cfg, ok := n.Config.(ir.ClassifyConfig)
		if !ok {
			return ir.Node{}, false
		}
		want := ir.BranchFalse
		if cfg.Equals == class {
			want = ir.BranchTrue
		}
		next := ""
		for _, e := range g.Outgoing(id) {
			if e.Label == want {
				next = e.To
			}
		}
		if next == "" {
			return ir.Node{}, false
		}
		id = next
	}
	return ir.Node{}, false
}
