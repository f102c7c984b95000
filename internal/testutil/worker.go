package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/reconcile/internal/dispatch"
	"github.com/roach88/reconcile/internal/ir"
)

// FakeWorker is an in-memory dispatch.Worker.
//
// Submissions are accepted with run ids "<hostname>-run-<n>" and start in
// InitialStatus (RUNNING unless changed). Tests move runs along with
// SetStatus and inject failures with FailSubmissions and FailStatuses.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeWorker struct {
	mu            sync.Mutex
	hostname      string
	initialStatus ir.Status
	runs          map[string]dispatch.RemoteStatus
	submitted     []ir.PipelineGraph
	submitErr     error
	statusErr     error
	statusCalls   int
}

var _ dispatch.Worker = (*FakeWorker)(nil)

// NewFakeWorker creates a worker that accepts every submission.
func NewFakeWorker(hostname string) *FakeWorker {
	return &FakeWorker{
		hostname:      hostname,
		initialStatus: ir.StatusRunning,
		runs:          make(map[string]dispatch.RemoteStatus),
	}
}

// Hostname implements dispatch.Worker.
func (w *FakeWorker) Hostname() string {
	return w.hostname
}

// Submit implements dispatch.Worker.
func (w *FakeWorker) Submit(ctx context.Context, g ir.PipelineGraph) (dispatch.Acceptance, error) {
	if err := ctx.Err(); err != nil {
		return dispatch.Acceptance{}, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.submitErr != nil {
		return dispatch.Acceptance{}, w.submitErr
	}
	w.submitted = append(w.submitted, g)
	runID := fmt.Sprintf("%s-run-%d", w.hostname, len(w.submitted))
	w.runs[runID] = dispatch.RemoteStatus{RunID: runID, Status: w.initialStatus}
	return dispatch.Acceptance{RunID: runID, Status: w.initialStatus}, nil
}

// Statuses implements dispatch.Worker. Unknown run ids are omitted.
func (w *FakeWorker) Statuses(ctx context.Context, runIDs []string) ([]dispatch.RemoteStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	w.statusCalls++
	if w.statusErr != nil {
		return nil, w.statusErr
	}
	out := make([]dispatch.RemoteStatus, 0, len(runIDs))
	for _, id := range runIDs {
		if st, ok := w.runs[id]; ok {
			out = append(out, st)
		}
	}
	return out, nil
}

// SetInitialStatus changes the status new submissions are accepted in.
func (w *FakeWorker) SetInitialStatus(s ir.Status) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.initialStatus = s
}

// SetStatus changes what the worker reports for runID.
func (w *FakeWorker) SetStatus(runID string, status ir.Status, errorMessage string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.runs[runID] = dispatch.RemoteStatus{RunID: runID, Status: status, ErrorMessage: errorMessage}
}

// Forget drops runID so the worker no longer reports it.
func (w *FakeWorker) Forget(runID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.runs, runID)
}

// FailSubmissions makes every Submit return err. Nil restores acceptance.
func (w *FakeWorker) FailSubmissions(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitErr = err
}

// FailStatuses makes every Statuses call return err. Nil restores reporting.
func (w *FakeWorker) FailStatuses(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.statusErr = err
}

// Submitted returns the graphs accepted so far.
func (w *FakeWorker) Submitted() []ir.PipelineGraph {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]ir.PipelineGraph(nil), w.submitted...)
}

// StatusCalls returns how many times Statuses was called.
func (w *FakeWorker) StatusCalls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.statusCalls
}
