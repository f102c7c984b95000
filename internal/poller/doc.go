// Package poller keeps transfer records in step with the workers running
// them. Each worker gets its own repeating task that asks the worker for
// the status of every tracked run and writes the changes back to the
// record store.
package poller
