// Package diff is the reference implementation of the merge-diff node.
//
// Merge walks a reference stream and a compare stream that are both sorted
// ascending on the key columns and classifies every distinct key exactly
// once as identical, new, changed or deleted. Route maps a class onto the
// apply action a compiled graph sends it to.
//
// Workers execute compiled graphs themselves; this package exists so the
// classification semantics have one executable definition that the harness
// and tests can check against.
package diff
