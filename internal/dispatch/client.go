package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/reconcile/internal/ir"
	"github.com/roach88/reconcile/internal/store"
)

// DispatchError reports a submission no worker accepted.
type DispatchError struct {
	Graph    string
	Attempts int
	Err      error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s: no worker accepted after %d attempt(s): %v", e.Graph, e.Attempts, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// RecordStore is the subset of the record store the client writes through.
type RecordStore interface {
	Insert(ctx context.Context, rec ir.TransferRecord) (ir.TransferRecord, error)
	Get(ctx context.Context, id int64) (ir.TransferRecord, error)
	Delete(ctx context.Context, id int64) error
}

// Client submits graphs to a worker pool and keeps one record per run.
type Client struct {
	pool          Pool
	store         RecordStore
	logger        *slog.Logger
	submitTimeout time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the client's logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// WithSubmitTimeout bounds each submission attempt. Zero means no bound.
func WithSubmitTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.submitTimeout = d }
}

// NewClient creates a Client over pool and store.
func NewClient(pool Pool, store RecordStore, opts ...ClientOption) *Client {
	c := &Client{pool: pool, store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubmitOptions carries per-submission record fields.
type SubmitOptions struct {
	CronExpression string
}

// Submit hands g to a worker and records the accepted run.
//
// Workers are tried in pool order until one accepts, at most once each.
// If none does, Submit returns a *DispatchError wrapping ErrNoWorker and no
// record is written. The record starts in the status the worker reported
// when that is APPLY or RUNNING, and APPLY otherwise.
func (c *Client) Submit(ctx context.Context, g ir.PipelineGraph, opts SubmitOptions) (ir.Handle, error) {
	worker, acc, attempts, err := c.submit(ctx, g)
	if err != nil {
		return ir.Handle{}, &DispatchError{Graph: g.Name, Attempts: attempts, Err: err}
	}

	status := acc.Status
	if status != ir.StatusApply && status != ir.StatusRunning {
		status = ir.StatusApply
	}

	rec, err := c.store.Insert(ctx, ir.TransferRecord{
		Name:           g.Name,
		RunID:          acc.RunID,
		Status:         status,
		Hostname:       worker.Hostname(),
		CronExpression: opts.CronExpression,
	})
	if err != nil {
		// The worker already runs the graph; without a record nothing tracks it.
		c.logger.Error("record accepted run",
			"graph", g.Name,
			"run_id", acc.RunID,
			"worker", worker.Hostname(),
			"error", err)
		return ir.Handle{}, fmt.Errorf("record run %s: %w", acc.RunID, err)
	}

	c.logger.Info("pipeline submitted",
		"id", rec.ID,
		"graph", g.Name,
		"run_id", acc.RunID,
		"worker", worker.Hostname(),
		"status", rec.Status)
	return ir.Handle{ID: rec.ID, Status: rec.Status}, nil
}

func (c *Client) submit(ctx context.Context, g ir.PipelineGraph) (Worker, Acceptance, int, error) {
	attempts := max(len(c.pool.Workers()), 1)
	var lastErr error
	for i := 0; i < attempts; i++ {
		worker, err := c.pool.Select(ctx)
		if err != nil {
			if errors.Is(err, ErrNoWorker) {
				return nil, Acceptance{}, i + 1, err
			}
			return nil, Acceptance{}, i + 1, fmt.Errorf("%w: %w", ErrNoWorker, err)
		}

		acc, err := c.submitOne(ctx, worker, g)
		if err == nil {
			return worker, acc, i + 1, nil
		}
		lastErr = err
		c.logger.Warn("worker rejected submission",
			"graph", g.Name,
			"worker", worker.Hostname(),
			"attempt", i+1,
			"error", err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, Acceptance{}, attempts, fmt.Errorf("%w: %w", ErrNoWorker, lastErr)
}

func (c *Client) submitOne(ctx context.Context, w Worker, g ir.PipelineGraph) (Acceptance, error) {
	if c.submitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.submitTimeout)
		defer cancel()
	}
	acc, err := w.Submit(ctx, g)
	if err != nil {
		return Acceptance{}, err
	}
	if acc.RunID == "" {
		return Acceptance{}, fmt.Errorf("worker %s accepted without a run id", w.Hostname())
	}
	return acc, nil
}

// Query returns the id and status of a record. The boolean is false when
// the record does not exist.
func (c *Client) Query(ctx context.Context, id int64) (ir.Handle, bool, error) {
	rec, err := c.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ir.Handle{}, false, nil
	}
	if err != nil {
		return ir.Handle{}, false, err
	}
	return ir.Handle{ID: rec.ID, Status: rec.Status}, true, nil
}

// Delete removes the record for id. A run the worker already accepted is
// not stopped.
func (c *Client) Delete(ctx context.Context, id int64) error {
	if err := c.store.Delete(ctx, id); err != nil {
		return err
	}
	c.logger.Info("record deleted", "id", id)
	return nil
}
