package ir

import (
	"encoding/json"
	"fmt"
)

// NodeKind identifies the variant carried by a Node.
type NodeKind string

const (
	KindExtract   NodeKind = "extract"
	KindRename    NodeKind = "rename"
	KindMergeDiff NodeKind = "merge_diff"
	KindClassify  NodeKind = "classify"
	KindNoop      NodeKind = "noop"
	KindInsert    NodeKind = "insert"
	KindUpdate    NodeKind = "update"
	KindDelete    NodeKind = "delete"
)

// Terminal reports whether nodes of this kind are sinks.
func (k NodeKind) Terminal() bool {
	switch k {
	case KindNoop, KindInsert, KindUpdate, KindDelete:
		return true
	}
	return false
}

// Class is the merge-diff classification of one key.
type Class string

const (
	ClassIdentical Class = "identical"
	ClassNew       Class = "new"
	ClassChanged   Class = "changed"
	ClassDeleted   Class = "deleted"
)

// Branch labels on edges leaving a classifier node.
const (
	BranchTrue  = "true"
	BranchFalse = "false"
)

// PipelineGraph is the compiled reconciliation DAG handed to a worker.
//
// Name is generated per compilation and is the only field that differs
// between two compilations of the same request pair.
type PipelineGraph struct {
	Version     string       `json:"version"`
	Name        string       `json:"name"`
	Connections []Connection `json:"connections"`
	Nodes       []Node       `json:"nodes"`
	Edges       []Edge       `json:"edges"`
}

// Connection is a named database connection referenced by extract and apply nodes.
type Connection struct {
	Name       string `json:"name"`
	EngineType string `json:"engine_type"`
	AccessMode string `json:"access_mode"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Database   string `json:"database"`
	User       string `json:"user,omitempty"`
	Password   string `json:"password,omitempty"`
}

// Edge connects two nodes. Label is BranchTrue or BranchFalse on classifier
// outputs and empty everywhere else.
type Edge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label,omitempty"`
}

// Node is one step of the pipeline: an identifier, a kind, and the config
// payload for that kind.
type Node struct {
	ID     string
	Kind   NodeKind
	Config NodeConfig
}

// NodeConfig is the per-kind payload of a Node.
//
// This is a sealed interface. Consumers switch on the concrete type:
//
//	switch cfg := node.Config.(type) {
//	case ExtractConfig:
//	case RenameConfig:
//	case MergeDiffConfig:
//	case ClassifyConfig:
//	case NoopConfig:
//	case ApplyConfig:
//	}
type NodeConfig interface {
	nodeConfig()
}

// ExtractConfig runs Query against Connection producing rows typed by Columns.
type ExtractConfig struct {
	Connection string   `json:"connection"`
	Query      string   `json:"query"`
	Columns    []string `json:"columns"`
}

// RenameConfig maps From[i] to To[i] for every i.
type RenameConfig struct {
	From []string `json:"from"`
	To   []string `json:"to"`
}

// MergeDiffConfig joins Reference and Compare streams on KeyColumns and
// writes the class of each key into FlagField.
type MergeDiffConfig struct {
	Reference    string   `json:"reference"`
	Compare      string   `json:"compare"`
	KeyColumns   []string `json:"key_columns"`
	ValueColumns []string `json:"value_columns"`
	FlagField    string   `json:"flag_field"`
}

// ClassifyConfig is a binary router: rows whose Field equals Equals take
// the true branch.
type ClassifyConfig struct {
	Field  string `json:"field"`
	Equals Class  `json:"equals"`
}

// NoopConfig discards rows.
type NoopConfig struct{}

// ApplyConfig writes rows into Table in batches. KeyColumns and
// KeyConditions are empty for inserts. Statement is the parameterized SQL
// one row binds into, with Params naming the row fields in bind order.
type ApplyConfig struct {
	Connection    string   `json:"connection"`
	Table         string   `json:"table"`
	Fields        []string `json:"fields"`
	KeyColumns    []string `json:"key_columns,omitempty"`
	KeyConditions []string `json:"key_conditions,omitempty"`
	BatchSize     int      `json:"batch_size"`
	Statement     string   `json:"statement"`
	Params        []string `json:"params"`
}

func (ExtractConfig) nodeConfig()   {}
func (RenameConfig) nodeConfig()    {}
func (MergeDiffConfig) nodeConfig() {}
func (ClassifyConfig) nodeConfig()  {}
func (NoopConfig) nodeConfig()      {}
func (ApplyConfig) nodeConfig()     {}

type nodeJSON struct {
	ID     string          `json:"id"`
	Kind   NodeKind        `json:"kind"`
	Config json.RawMessage `json:"config"`
}

// MarshalJSON encodes the node with its config inline under "config".
func (n Node) MarshalJSON() ([]byte, error) {
	cfg, err := json.Marshal(n.Config)
	if err != nil {
		return nil, fmt.Errorf("marshal %s config: %w", n.ID, err)
	}
	return json.Marshal(nodeJSON{ID: n.ID, Kind: n.Kind, Config: cfg})
}

// UnmarshalJSON decodes the config payload selected by kind.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw nodeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	cfg, err := decodeConfig(raw.Kind, raw.Config)
	if err != nil {
		return fmt.Errorf("node %s: %w", raw.ID, err)
	}
	n.ID, n.Kind, n.Config = raw.ID, raw.Kind, cfg
	return nil
}

func decodeConfig(kind NodeKind, data json.RawMessage) (NodeConfig, error) {
	switch kind {
	case KindExtract:
		return decodeAs[ExtractConfig](data)
	case KindRename:
		return decodeAs[RenameConfig](data)
	case KindMergeDiff:
		return decodeAs[MergeDiffConfig](data)
	case KindClassify:
		return decodeAs[ClassifyConfig](data)
	case KindNoop:
		return NoopConfig{}, nil
	case KindInsert, KindUpdate, KindDelete:
		return decodeAs[ApplyConfig](data)
	default:
		return nil, fmt.Errorf("unknown node kind %q", kind)
	}
}

func decodeAs[T NodeConfig](data json.RawMessage) (NodeConfig, error) {
	var cfg T
	if len(data) == 0 || string(data) == "null" {
		return cfg, nil
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Node returns the node with the given id.
func (g *PipelineGraph) Node(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Outgoing returns the edges leaving id, in graph order.
func (g *PipelineGraph) Outgoing(id string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.From == id {
			out = append(out, e)
		}
	}
	return out
}

// Incoming returns the edges entering id, in graph order.
func (g *PipelineGraph) Incoming(id string) []Edge {
	var in []Edge
	for _, e := range g.Edges {
		if e.To == id {
			in = append(in, e)
		}
	}
	return in
}

// CountKind returns how many nodes have the given kind.
func (g *PipelineGraph) CountKind(kind NodeKind) int {
	n := 0
	for _, node := range g.Nodes {
		if node.Kind == kind {
			n++
		}
	}
	return n
}
