package poller

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/reconcile/internal/dispatch"
	"github.com/roach88/reconcile/internal/ir"
)

// handler reconciles the records tracked for one worker.
type handler struct {
	worker dispatch.Worker
	store  RecordStore
	logger *slog.Logger

	mu      sync.Mutex
	tracked map[int64]struct{}
}

func newHandler(w dispatch.Worker, store RecordStore, logger *slog.Logger) *handler {
	return &handler{
		worker:  w,
		store:   store,
		logger:  logger,
		tracked: make(map[int64]struct{}),
	}
}

func (h *handler) track(id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tracked[id] = struct{}{}
}

func (h *handler) untrack(id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.tracked, id)
}

func (h *handler) ids() []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]int64, 0, len(h.tracked))
	for id := range h.tracked {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// TickResult counts what one tick did.
type TickResult struct {
	Checked   int
	Updated   int
	Untracked int
}

// Tick fetches the worker's statuses for every tracked record and writes
// back the ones that changed. Records that vanished from the store or
// became inactive stop being tracked.
func (h *handler) Tick(ctx context.Context) (TickResult, error) {
	var res TickResult
	ids := h.ids()
	if len(ids) == 0 {
		return res, nil
	}

	recs, err := h.store.GetMany(ctx, ids)
	if err != nil {
		return res, fmt.Errorf("load tracked records: %w", err)
	}
	res.Checked = len(recs)

	present := make(map[int64]bool, len(recs))
	runIDs := make([]string, 0, len(recs))
	for _, rec := range recs {
		present[rec.ID] = true
		if rec.RunID != "" {
			runIDs = append(runIDs, rec.RunID)
		}
	}
	for _, id := range ids {
		if !present[id] {
			h.untrack(id)
			res.Untracked++
		}
	}

	statuses, err := h.worker.Statuses(ctx, runIDs)
	if err != nil {
		return res, fmt.Errorf("fetch statuses: %w", err)
	}
	byRun := make(map[string]dispatch.RemoteStatus, len(statuses))
	for _, st := range statuses {
		byRun[st.RunID] = st
	}

	var changed []ir.TransferRecord
	for _, rec := range recs {
		st, ok := byRun[rec.RunID]
		if !ok {
			continue
		}
		if !st.Status.Valid() {
			h.logger.Warn("worker reported unknown status", "id", rec.ID, "run_id", rec.RunID, "status", st.Status)
			continue
		}
		if st.Status == rec.Status && st.ErrorMessage == rec.ErrorMessage && rec.Hostname == h.worker.Hostname() {
			continue
		}
		rec.Status = st.Status
		rec.ErrorMessage = st.ErrorMessage
		rec.Hostname = h.worker.Hostname()
		changed = append(changed, rec)
	}

	if len(changed) > 0 {
		n, err := h.store.UpdateBatch(ctx, changed)
		if err != nil {
			return res, fmt.Errorf("write statuses: %w", err)
		}
		res.Updated = n
	}

	for _, rec := range changed {
		if !rec.Active() {
			h.untrack(rec.ID)
			res.Untracked++
		}
	}
	return res, nil
}
