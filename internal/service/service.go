// Package service is the application context: it owns the record store,
// the dispatch client, the status poller and the dependency manager, and
// exposes the operations the API and CLI call.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/reconcile/internal/compiler"
	"github.com/roach88/reconcile/internal/dependency"
	"github.com/roach88/reconcile/internal/dispatch"
	"github.com/roach88/reconcile/internal/ir"
	"github.com/roach88/reconcile/internal/poller"
)

// RecordStore is the record store a Service runs on. *store.Store
// implements it.
type RecordStore interface {
	Insert(ctx context.Context, rec ir.TransferRecord) (ir.TransferRecord, error)
	Get(ctx context.Context, id int64) (ir.TransferRecord, error)
	GetMany(ctx context.Context, ids []int64) ([]ir.TransferRecord, error)
	UpdateBatch(ctx context.Context, recs []ir.TransferRecord) (int, error)
	Delete(ctx context.Context, id int64) error
	ActiveSet(ctx context.Context) ([]ir.TransferRecord, error)
	ActiveByHostname(ctx context.Context, hostname string) ([]ir.TransferRecord, error)
	PurgeTerminal(ctx context.Context, before time.Time) (int64, error)
	History(ctx context.Context, id int64) ([]ir.HistoryEntry, error)
	SaveDependents(ctx context.Context, masterID int64, edges []ir.DependencyEdge) error
	Dependents(ctx context.Context, masterID int64) ([]ir.DependencyEdge, error)
	DeleteDependents(ctx context.Context, masterID int64) error
}

// Options wires a Service. Store and Workers are required.
type Options struct {
	Store         RecordStore
	Workers       []dispatch.Worker
	Logger        *slog.Logger
	StoreTimeout  time.Duration // bounds each store call; zero means unbounded
	SubmitTimeout time.Duration // bounds each submission attempt
	Poller        poller.Options
}

// Service implements createTransfer, queryTransfer and deleteTransfer plus
// dependency and history operations.
type Service struct {
	store        RecordStore
	client       *dispatch.Client
	poller       *poller.Poller
	deps         *dependency.Manager
	logger       *slog.Logger
	storeTimeout time.Duration
}

// New builds a Service. It does not start polling; call Start.
func New(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("service: store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pollOpts := opts.Poller
	if pollOpts.Logger == nil {
		pollOpts.Logger = logger.With("component", "poller")
	}
	bounded := boundedStore{opts.Store, opts.StoreTimeout}
	p, err := poller.New(bounded, opts.Workers, pollOpts)
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}

	client := dispatch.NewClient(
		dispatch.NewRoundRobinPool(opts.Workers...),
		bounded,
		dispatch.WithLogger(logger.With("component", "dispatch")),
		dispatch.WithSubmitTimeout(opts.SubmitTimeout),
	)
	deps := dependency.NewManager(bounded,
		dependency.WithLogger(logger.With("component", "dependency")),
		dependency.WithOnDelete(p.Detach),
	)

	return &Service{
		store:        opts.Store,
		client:       client,
		poller:       p,
		deps:         deps,
		logger:       logger,
		storeTimeout: opts.StoreTimeout,
	}, nil
}

// Start recovers active records and begins polling workers.
func (s *Service) Start(ctx context.Context) error {
	return s.poller.Start(ctx)
}

// Stop halts polling and waits for in-flight ticks.
func (s *Service) Stop() {
	s.poller.Stop()
}

func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return withTimeout(ctx, s.storeTimeout)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// boundedStore gives every store call made by the dispatch client, the
// poller and the dependency manager its own deadline.
type boundedStore struct {
	s       RecordStore
	timeout time.Duration
}

func (b boundedStore) Insert(ctx context.Context, rec ir.TransferRecord) (ir.TransferRecord, error) {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()
	return b.s.Insert(ctx, rec)
}

func (b boundedStore) Get(ctx context.Context, id int64) (ir.TransferRecord, error) {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()
	return b.s.Get(ctx, id)
}

func (b boundedStore) GetMany(ctx context.Context, ids []int64) ([]ir.TransferRecord, error) {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()
	return b.s.GetMany(ctx, ids)
}

func (b boundedStore) UpdateBatch(ctx context.Context, recs []ir.TransferRecord) (int, error) {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()
	return b.s.UpdateBatch(ctx, recs)
}

func (b boundedStore) ActiveSet(ctx context.Context) ([]ir.TransferRecord, error) {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()
	return b.s.ActiveSet(ctx)
}

func (b boundedStore) ActiveByHostname(ctx context.Context, hostname string) ([]ir.TransferRecord, error) {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()
	return b.s.ActiveByHostname(ctx, hostname)
}

func (b boundedStore) SaveDependents(ctx context.Context, masterID int64, edges []ir.DependencyEdge) error {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()
	return b.s.SaveDependents(ctx, masterID, edges)
}

func (b boundedStore) Dependents(ctx context.Context, masterID int64) ([]ir.DependencyEdge, error) {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()
	return b.s.Dependents(ctx, masterID)
}

func (b boundedStore) DeleteDependents(ctx context.Context, masterID int64) error {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()
	return b.s.DeleteDependents(ctx, masterID)
}

func (b boundedStore) Delete(ctx context.Context, id int64) error {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()
	return b.s.Delete(ctx, id)
}

// CreateTransfer compiles req, submits the graph and starts tracking the
// run. Invalid requests fail with compiler.SpecErrors before anything is
// submitted; a submission no worker accepts fails with
// *dispatch.DispatchError.
func (s *Service) CreateTransfer(ctx context.Context, req ir.TransferRequest) (ir.Handle, error) {
	if errs := compiler.ValidateRequest(req); len(errs) > 0 {
		return ir.Handle{}, errs
	}
	g, err := compiler.Compile(req.Source, req.Target)
	if err != nil {
		return ir.Handle{}, err
	}

	h, err := s.client.Submit(ctx, g, dispatch.SubmitOptions{CronExpression: req.CronExpression})
	if err != nil {
		return ir.Handle{}, err
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	rec, err := s.store.Get(sctx, h.ID)
	if err != nil {
		return ir.Handle{}, fmt.Errorf("load submitted record %d: %w", h.ID, err)
	}
	if !s.poller.Attach(rec) {
		s.logger.Warn("submitted record has no polled worker", "id", rec.ID, "hostname", rec.Hostname)
	}
	return h, nil
}

// QueryTransfer returns the id and status of a record. The boolean is
// false when the record does not exist.
func (s *Service) QueryTransfer(ctx context.Context, id int64) (ir.Handle, bool, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.client.Query(ctx, id)
}

// Transfer returns the full record for id, or store.ErrNotFound.
func (s *Service) Transfer(ctx context.Context, id int64) (ir.TransferRecord, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.store.Get(ctx, id)
}

// DeleteTransfer removes the record for id and stops polling it. The run
// itself is not cancelled. Deleting an unknown id is a no-op.
func (s *Service) DeleteTransfer(ctx context.Context, id int64) error {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.client.Delete(ctx, id); err != nil {
		return err
	}
	s.poller.Detach(id)
	return nil
}

// ActiveTransfers returns every record still being polled.
func (s *Service) ActiveTransfers(ctx context.Context) ([]ir.TransferRecord, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.store.ActiveSet(ctx)
}

// History returns the terminal transitions recorded for id.
func (s *Service) History(ctx context.Context, id int64) ([]ir.HistoryEntry, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.store.History(ctx, id)
}

// SaveDependents links masterID to each dependent.
func (s *Service) SaveDependents(ctx context.Context, masterID int64, edges []ir.DependencyEdge) error {
	return s.deps.SaveDependents(ctx, masterID, edges)
}

// Dependents returns the edges leaving masterID.
func (s *Service) Dependents(ctx context.Context, masterID int64) ([]ir.DependencyEdge, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.store.Dependents(ctx, masterID)
}

// DeleteJob cascades the delete of masterID through its dependents. The
// store timeout applies to each store call, not to the whole cascade.
func (s *Service) DeleteJob(ctx context.Context, masterID int64) ([]int64, error) {
	return s.deps.DeleteCascade(ctx, masterID)
}

// Purge deletes terminal records without a cron expression last updated
// before cutoff.
func (s *Service) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.store.PurgeTerminal(ctx, cutoff)
}

// PollOnce runs one reconcile tick for every worker.
func (s *Service) PollOnce(ctx context.Context) error {
	return s.poller.TickAll(ctx)
}

// Workers returns the polled worker hostnames.
func (s *Service) Workers() []string {
	return s.poller.Hostnames()
}
