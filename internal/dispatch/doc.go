// Package dispatch submits compiled pipeline graphs to remote workers and
// tracks the resulting runs as records.
//
// Submission returns once a worker accepts the graph, not once it finishes.
// Completion is only observable through the poller updating the record.
// Deleting a record is bookkeeping: it does not stop a run that a worker has
// already accepted.
package dispatch
