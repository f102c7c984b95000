package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/roach88/reconcile/internal/dispatch"
	"github.com/roach88/reconcile/internal/ir"
)

// Polling cadence used when Options leaves it unset.
const (
	DefaultPeriod  = 10 * time.Second
	DefaultStagger = 2 * time.Second
)

// RecordStore is the subset of the record store the poller reads and writes.
type RecordStore interface {
	GetMany(ctx context.Context, ids []int64) ([]ir.TransferRecord, error)
	UpdateBatch(ctx context.Context, recs []ir.TransferRecord) (int, error)
	ActiveSet(ctx context.Context) ([]ir.TransferRecord, error)
	ActiveByHostname(ctx context.Context, hostname string) ([]ir.TransferRecord, error)
}

// Options configures a Poller. Zero values take the defaults.
type Options struct {
	Period      time.Duration
	Stagger     time.Duration
	TickTimeout time.Duration
	Logger      *slog.Logger
}

// Poller runs one repeating reconcile task per worker.
//
// Task k first fires k*Stagger after Start and then every Period. A task
// never overlaps itself; tasks for different workers run concurrently.
type Poller struct {
	store    RecordStore
	logger   *slog.Logger
	opts     Options
	handlers []*handler
	byHost   map[string]*handler

	mu      sync.Mutex
	cron    *cron.Cron
	baseCtx context.Context
	cancel  context.CancelFunc
}

// New creates a Poller for workers. Workers must have distinct hostnames.
func New(store RecordStore, workers []dispatch.Worker, opts Options) (*Poller, error) {
	if opts.Period <= 0 {
		opts.Period = DefaultPeriod
	}
	if opts.Stagger < 0 {
		return nil, fmt.Errorf("negative stagger %s", opts.Stagger)
	}
	if opts.TickTimeout <= 0 {
		opts.TickTimeout = opts.Period
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	p := &Poller{
		store:  store,
		logger: opts.Logger,
		opts:   opts,
		byHost: make(map[string]*handler, len(workers)),
	}
	for _, w := range workers {
		if _, dup := p.byHost[w.Hostname()]; dup {
			return nil, fmt.Errorf("duplicate worker hostname %q", w.Hostname())
		}
		h := newHandler(w, store, opts.Logger.With("worker", w.Hostname()))
		p.handlers = append(p.handlers, h)
		p.byHost[w.Hostname()] = h
	}
	return p, nil
}

// Attach starts tracking rec on the handler for its hostname. It returns
// false when no configured worker has that hostname.
func (p *Poller) Attach(rec ir.TransferRecord) bool {
	h, ok := p.byHost[rec.Hostname]
	if !ok {
		return false
	}
	h.track(rec.ID)
	return true
}

// Detach stops tracking id on every handler.
func (p *Poller) Detach(id int64) {
	for _, h := range p.handlers {
		h.untrack(id)
	}
}

// Tracked returns the ids tracked for hostname, ascending.
func (p *Poller) Tracked(hostname string) []int64 {
	h, ok := p.byHost[hostname]
	if !ok {
		return nil
	}
	return h.ids()
}

// RecoveryResult summarizes a recovery pass.
type RecoveryResult struct {
	Attached int
	Orphans  []int64
}

// Recover attaches every active record to the handler of the worker that
// last reported it. Active records whose hostname matches no worker are
// returned as orphans and left untouched.
func (p *Poller) Recover(ctx context.Context) (RecoveryResult, error) {
	var res RecoveryResult
	for _, h := range p.handlers {
		recs, err := p.store.ActiveByHostname(ctx, h.worker.Hostname())
		if err != nil {
			return res, fmt.Errorf("recover %s: %w", h.worker.Hostname(), err)
		}
		for _, rec := range recs {
			h.track(rec.ID)
		}
		res.Attached += len(recs)
	}

	active, err := p.store.ActiveSet(ctx)
	if err != nil {
		return res, fmt.Errorf("recover: %w", err)
	}
	for _, rec := range active {
		if _, ok := p.byHost[rec.Hostname]; !ok {
			res.Orphans = append(res.Orphans, rec.ID)
			p.logger.Warn("active record has no configured worker",
				"id", rec.ID,
				"hostname", rec.Hostname,
				"status", rec.Status)
		}
	}

	p.logger.Info("recovered active records", "attached", res.Attached, "orphans", len(res.Orphans))
	return res, nil
}

// Start runs a recovery pass bounded by TickTimeout and schedules one task
// per worker. The tasks run until Stop is called or ctx is cancelled.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cron != nil {
		return errors.New("poller already started")
	}

	rctx, rcancel := context.WithTimeout(ctx, p.opts.TickTimeout)
	_, err := p.Recover(rctx)
	rcancel()
	if err != nil {
		return err
	}

	logger := cronLogger{p.logger}
	c := cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)), cron.WithLogger(logger))
	for k, h := range p.handlers {
		offset := time.Duration(k) * p.opts.Stagger
		c.Schedule(newStaggeredSchedule(offset, p.opts.Period), cron.FuncJob(func() {
			p.runTick(h)
		}))
	}

	p.baseCtx, p.cancel = context.WithCancel(ctx)
	p.cron = c
	c.Start()
	p.logger.Info("poller started",
		"workers", len(p.handlers),
		"period", p.opts.Period,
		"stagger", p.opts.Stagger)
	return nil
}

// Stop cancels in-flight ticks and waits for them to return.
func (p *Poller) Stop() {
	p.mu.Lock()
	c, cancel := p.cron, p.cancel
	p.cron, p.cancel = nil, nil
	p.mu.Unlock()

	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
	p.logger.Info("poller stopped")
}

// runTick runs one bounded tick for h. A failed tick is logged and
// dropped; the next scheduled tick retries.
func (p *Poller) runTick(h *handler) {
	p.mu.Lock()
	base := p.baseCtx
	p.mu.Unlock()
	if base == nil {
		return
	}

	ctx, cancel := context.WithTimeout(base, p.opts.TickTimeout)
	defer cancel()

	res, err := h.Tick(ctx)
	if err != nil {
		h.logger.Error("poll tick failed", "error", err)
		return
	}
	if res.Updated > 0 || res.Untracked > 0 {
		h.logger.Info("poll tick reconciled",
			"checked", res.Checked,
			"updated", res.Updated,
			"untracked", res.Untracked)
	}
}

// TickAll runs one tick for every worker sequentially and returns the
// first error. Intended for tests and one-shot CLI use.
func (p *Poller) TickAll(ctx context.Context) error {
	var errs []error
	for _, h := range p.handlers {
		if _, err := h.Tick(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", h.worker.Hostname(), err))
		}
	}
	return errors.Join(errs...)
}

// Hostnames returns the configured worker hostnames in schedule order.
func (p *Poller) Hostnames() []string {
	names := make([]string, len(p.handlers))
	for i, h := range p.handlers {
		names[i] = h.worker.Hostname()
	}
	return names
}
