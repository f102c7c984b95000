package cli

import (
	"errors"
	"io"
	"log/slog"

	"github.com/roach88/reconcile/internal/config"
	"github.com/roach88/reconcile/internal/dispatch"
	"github.com/roach88/reconcile/internal/logging"
	"github.com/roach88/reconcile/internal/poller"
	"github.com/roach88/reconcile/internal/service"
	"github.com/roach88/reconcile/internal/store"
)

// app is everything a service-backed command needs, built from config.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	workers []*dispatch.HTTPWorker
	svc     *service.Service
	closers []io.Closer
}

// openApp loads configuration and wires the service. Failures are
// reported through f and returned as ExitErrors.
func openApp(opts *RootOptions, f *OutputFormatter) (*app, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, "loading config", err, nil)
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}

	logger, logCloser, err := logging.New(cfg.Log)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, "configuring logging", err, nil)
	}
	a := &app{cfg: cfg, logger: logger, closers: []io.Closer{logCloser}}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		a.Close()
		return nil, f.Fail(ExitCommandError, ErrCodeStore, "opening record store", err, map[string]string{"path": cfg.Store.Path})
	}
	a.store = st

	workers := make([]dispatch.Worker, 0, len(cfg.Dispatch.Workers))
	for _, wc := range cfg.Dispatch.Workers {
		w := dispatch.NewHTTPWorker(wc.Hostname, wc.URL, cfg.Dispatch.SubmitTimeout, logger)
		a.workers = append(a.workers, w)
		workers = append(workers, w)
	}

	svc, err := service.New(service.Options{
		Store:         st,
		Workers:       workers,
		Logger:        logger,
		StoreTimeout:  cfg.Store.Timeout,
		SubmitTimeout: cfg.Dispatch.SubmitTimeout,
		Poller: poller.Options{
			Period:      cfg.Poller.Period,
			Stagger:     cfg.Poller.Stagger,
			TickTimeout: cfg.Poller.TickTimeout,
		},
	})
	if err != nil {
		a.Close()
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, "wiring service", err, nil)
	}
	a.svc = svc
	return a, nil
}

// Close releases workers, the store and the log file.
func (a *app) Close() error {
	var errs []error
	for _, w := range a.workers {
		errs = append(errs, w.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
