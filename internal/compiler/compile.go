package compiler

import (
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/roach88/reconcile/internal/ir"
	"github.com/roach88/reconcile/internal/queryir"
	"github.com/roach88/reconcile/internal/querysql"
)

// Node identifiers of a compiled graph. They are fixed so that two
// compilations of the same pair differ only in the graph name.
const (
	NodeExtractSource     = "extract-source"
	NodeRename            = "rename"
	NodeExtractTarget     = "extract-target"
	NodeMergeDiff         = "merge-diff"
	NodeClassifyIdentical = "classify-identical"
	NodeClassifyNew       = "classify-new"
	NodeClassifyChanged   = "classify-changed"
	NodeNoop              = "noop"
	NodeInsert            = "insert"
	NodeUpdate            = "update"
	NodeDelete            = "delete"
)

// NamePrefix starts every generated graph name.
const NamePrefix = "reconcile-"

// TargetConnectionSuffix is appended to the target connection name when it
// shares host and database with the source but differs in any other setting.
const TargetConnectionSuffix = "_target"

// Compile builds the reconciliation graph for a source/target pair under a
// freshly generated name. It is pure apart from name generation.
func Compile(source, target ir.TransferSpec) (ir.PipelineGraph, error) {
	return CompileNamed(NamePrefix+uuid.Must(uuid.NewV7()).String(), source, target)
}

// CompileNamed builds the reconciliation graph under the given name.
//
// The graph reads both sides, renames source columns onto target columns by
// position, merge-diffs the renamed source (compare) against the target
// (reference) on the target key, and routes each class through three
// binary classifiers in the order identical, new, changed. Whatever is left
// is deleted.
//
// On a SpecErrors failure no graph is returned.
func CompileNamed(name string, source, target ir.TransferSpec) (ir.PipelineGraph, error) {
	if errs := Validate(source, target); len(errs) > 0 {
		return ir.PipelineGraph{}, errs
	}

	srcConn := source.Connection()
	tgtConn := target.Connection()
	connections := []ir.Connection{srcConn}
	if tgtConn != srcConn {
		// Same host and database reached with different settings.
		if tgtConn.Name == srcConn.Name {
			tgtConn.Name += TargetConnectionSuffix
		}
		connections = append(connections, tgtConn)
	}

	insert, err := applyNode(NodeInsert, ir.KindInsert, tgtConn.Name, target,
		queryir.Insert{Table: target.TableName, Fields: target.Columns})
	if err != nil {
		return ir.PipelineGraph{}, err
	}
	update, err := applyNode(NodeUpdate, ir.KindUpdate, tgtConn.Name, target,
		queryir.Update{Table: target.TableName, Set: target.Columns, Where: queryir.KeyMatch(target.PrimaryKeyColumns)})
	if err != nil {
		return ir.PipelineGraph{}, err
	}
	del, err := applyNode(NodeDelete, ir.KindDelete, tgtConn.Name, target,
		queryir.Delete{Table: target.TableName, Where: queryir.KeyMatch(target.PrimaryKeyColumns)})
	if err != nil {
		return ir.PipelineGraph{}, err
	}

	g := ir.PipelineGraph{
		Version:     ir.GraphVersion,
		Name:        name,
		Connections: connections,
		Nodes: []ir.Node{
			{ID: NodeExtractSource, Kind: ir.KindExtract, Config: ir.ExtractConfig{
				Connection: srcConn.Name,
				Query:      source.Query,
				Columns:    slices.Clone(source.Columns),
			}},
			{ID: NodeRename, Kind: ir.KindRename, Config: ir.RenameConfig{
				From: slices.Clone(source.Columns),
				To:   slices.Clone(target.Columns),
			}},
			{ID: NodeExtractTarget, Kind: ir.KindExtract, Config: ir.ExtractConfig{
				Connection: tgtConn.Name,
				Query:      target.Query,
				Columns:    slices.Clone(target.Columns),
			}},
			{ID: NodeMergeDiff, Kind: ir.KindMergeDiff, Config: ir.MergeDiffConfig{
				Reference:    NodeExtractTarget,
				Compare:      NodeRename,
				KeyColumns:   slices.Clone(target.PrimaryKeyColumns),
				ValueColumns: target.ValueColumns(),
				FlagField:    ir.FlagField,
			}},
			classifier(NodeClassifyIdentical, ir.ClassIdentical),
			classifier(NodeClassifyNew, ir.ClassNew),
			classifier(NodeClassifyChanged, ir.ClassChanged),
			{ID: NodeNoop, Kind: ir.KindNoop, Config: ir.NoopConfig{}},
			insert,
			update,
			del,
		},
		Edges: []ir.Edge{
			{From: NodeExtractSource, To: NodeRename},
			{From: NodeRename, To: NodeMergeDiff},
			{From: NodeExtractTarget, To: NodeMergeDiff},
			{From: NodeMergeDiff, To: NodeClassifyIdentical},
			{From: NodeClassifyIdentical, To: NodeNoop, Label: ir.BranchTrue},
			{From: NodeClassifyIdentical, To: NodeClassifyNew, Label: ir.BranchFalse},
			{From: NodeClassifyNew, To: NodeInsert, Label: ir.BranchTrue},
			{From: NodeClassifyNew, To: NodeClassifyChanged, Label: ir.BranchFalse},
			{From: NodeClassifyChanged, To: NodeUpdate, Label: ir.BranchTrue},
			{From: NodeClassifyChanged, To: NodeDelete, Label: ir.BranchFalse},
		},
	}

	if errs := CheckGraph(g); len(errs) > 0 {
		return ir.PipelineGraph{}, fmt.Errorf("compiled graph violates invariants: %w", errs)
	}
	return g, nil
}

func classifier(id string, class ir.Class) ir.Node {
	return ir.Node{ID: id, Kind: ir.KindClassify, Config: ir.ClassifyConfig{Field: ir.FlagField, Equals: class}}
}

// applyNode renders stmt and wraps it in an apply node writing to target.
func applyNode(id string, kind ir.NodeKind, conn string, target ir.TransferSpec, stmt queryir.Statement) (ir.Node, error) {
	rendered, err := querysql.Render(stmt)
	if err != nil {
		return ir.Node{}, fmt.Errorf("render %s: %w", id, err)
	}

	cfg := ir.ApplyConfig{
		Connection: conn,
		Table:      target.TableName,
		Fields:     slices.Clone(target.Columns),
		BatchSize:  ir.DefaultBatchSize,
		Statement:  rendered.SQL,
		Params:     rendered.Params,
	}
	if kind != ir.KindInsert {
		cfg.KeyColumns = slices.Clone(target.PrimaryKeyColumns)
		cfg.KeyConditions = make([]string, len(target.PrimaryKeyColumns))
		for i := range cfg.KeyConditions {
			cfg.KeyConditions[i] = "="
		}
	}
	if kind == ir.KindDelete {
		cfg.Fields = slices.Clone(target.PrimaryKeyColumns)
	}
	return ir.Node{ID: id, Kind: kind, Config: cfg}, nil
}
