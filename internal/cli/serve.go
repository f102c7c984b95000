package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/roach88/reconcile/internal/api"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and status poller",
		Long: `Start the reconcile service: recover active records from the store,
poll every configured worker and serve the HTTP API until interrupted.

Example:
  reconcile serve --config configs/reconcile.yaml
  RECONCILE_SERVER_ADDR=:9000 reconcile serve`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides server.addr)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	a, err := openApp(opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			a.logger.Error("error closing resources", "error", closeErr)
		}
	}()

	addr := a.cfg.Server.Addr
	if opts.Addr != "" {
		addr = opts.Addr
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.svc.Start(ctx); err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "starting poller", err, nil)
	}
	defer a.svc.Stop()

	gin.SetMode(a.cfg.Server.Mode)
	srv := &http.Server{
		Addr:         addr,
		Handler:      api.NewRouter(a.svc, a.logger.With("component", "api")),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server listening", "addr", addr, "workers", a.svc.Workers())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return f.Fail(ExitFailure, ErrCodeGeneric, "http server exited", err, nil)
		}
	case <-ctx.Done():
		a.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return f.Fail(ExitFailure, ErrCodeGeneric, "server shutdown failed", err, nil)
		}
	}

	a.logger.Info("server stopped")
	return nil
}
