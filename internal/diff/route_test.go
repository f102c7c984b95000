package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reconcile/internal/compiler"
	"github.com/roach88/reconcile/internal/ir"
)

func TestRoute(t *testing.T) {
	assert.Equal(t, ir.KindNoop, Route(ir.ClassIdentical))
	assert.Equal(t, ir.KindInsert, Route(ir.ClassNew))
	assert.Equal(t, ir.KindUpdate, Route(ir.ClassChanged))
	assert.Equal(t, ir.KindDelete, Route(ir.ClassDeleted))
}

// TestWalkMatchesRoute checks the compiled classifier chain sends every
// class to the same action Route does.
func TestWalkMatchesRoute(t *testing.T) {
	source := ir.TransferSpec{
		Host: "db1", Database: "a", Query: "SELECT id, v FROM s",
		Columns: []string{"id", "v"}, PrimaryKeyColumns: []string{"id"},
	}
	target := ir.TransferSpec{
		Host: "db2", Database: "b", Query: "SELECT id, v FROM t",
		Columns: []string{"id", "v"}, PrimaryKeyColumns: []string{"id"}, TableName: "t",
	}
	g, err := compiler.Compile(source, target)
	require.NoError(t, err)

	for _, class := range []ir.Class{ir.ClassIdentical, ir.ClassNew, ir.ClassChanged, ir.ClassDeleted} {
		n, ok := Walk(g, compiler.NodeClassifyIdentical, class)
		require.True(t, ok, class)
		assert.Equal(t, Route(class), n.Kind, class)
	}
}

func TestWalkBrokenChain(t *testing.T) {
	g := ir.PipelineGraph{Nodes: []ir.Node{
		{ID: "c", Kind: ir.KindClassify, Config: ir.ClassifyConfig{Field: ir.FlagField, Equals: ir.ClassNew}},
	}}
	_, ok := Walk(g, "c", ir.ClassNew)
	assert.False(t, ok)

	_, ok = Walk(g, "missing", ir.ClassNew)
	assert.False(t, ok)
}
