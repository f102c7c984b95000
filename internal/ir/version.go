package ir

// Version constants for the graph schema.
const (
	// GraphVersion is the pipeline graph schema version sent to workers.
	GraphVersion = "1"

	// DefaultBatchSize is the commit size of every apply node.
	DefaultBatchSize = 100

	// DefaultAccessMode is the connection access mode when a request omits it.
	DefaultAccessMode = "Native"

	// FlagField is the stream field the merge-diff node writes the class into.
	FlagField = "flagfield"
)
