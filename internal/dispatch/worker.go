package dispatch

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/roach88/reconcile/internal/ir"
)

// ErrNoWorker is returned when no worker is available or none accepted a
// submission.
var ErrNoWorker = errors.New("no remote worker available")

// Acceptance is a worker's reply to a submission.
type Acceptance struct {
	RunID  string    `json:"run_id"`
	Status ir.Status `json:"status"`
}

// RemoteStatus is a worker's report on one run.
type RemoteStatus struct {
	RunID        string    `json:"run_id"`
	Status       ir.Status `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// Worker is a remote process that executes compiled graphs.
type Worker interface {
	// Hostname identifies the worker in records and logs.
	Hostname() string
	// Submit hands g to the worker and returns once it is accepted.
	Submit(ctx context.Context, g ir.PipelineGraph) (Acceptance, error)
	// Statuses reports on the given runs. Runs the worker does not know
	// are omitted.
	Statuses(ctx context.Context, runIDs []string) ([]RemoteStatus, error)
}

// Pool chooses which worker receives a submission.
type Pool interface {
	Select(ctx context.Context) (Worker, error)
	Workers() []Worker
}

// RoundRobinPool hands out workers in turn.
type RoundRobinPool struct {
	workers []Worker
	next    atomic.Uint64
}

// NewRoundRobinPool returns a pool cycling through workers in order.
func NewRoundRobinPool(workers ...Worker) *RoundRobinPool {
	return &RoundRobinPool{workers: workers}
}

// Select returns the next worker, or ErrNoWorker if the pool is empty.
func (p *RoundRobinPool) Select(ctx context.Context) (Worker, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(p.workers) == 0 {
		return nil, ErrNoWorker
	}
	i := p.next.Add(1) - 1
	return p.workers[i%uint64(len(p.workers))], nil
}

// Workers returns every worker in the pool.
func (p *RoundRobinPool) Workers() []Worker {
	return p.workers
}
