package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"resty.dev/v3"

	"github.com/roach88/reconcile/internal/ir"
)

// Worker HTTP endpoints, relative to the worker's base URL.
const (
	submitPath   = "/pipelines"
	statusesPath = "/pipelines/status"
)

// HTTPWorker talks to a remote worker over its JSON HTTP API.
type HTTPWorker struct {
	hostname string
	client   *resty.Client
}

type statusesRequest struct {
	RunIDs []string `json:"run_ids"`
}

type statusesResponse struct {
	Statuses []RemoteStatus `json:"statuses"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewHTTPWorker creates a worker client for baseURL. A zero timeout leaves
// requests bounded only by their context.
func NewHTTPWorker(hostname, baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPWorker {
	if logger == nil {
		logger = slog.Default()
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetLogger(restyLogger{logger.With("worker", hostname)})
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &HTTPWorker{hostname: hostname, client: client}
}

// Hostname implements Worker.
func (w *HTTPWorker) Hostname() string {
	return w.hostname
}

// Submit implements Worker by posting the graph as JSON.
func (w *HTTPWorker) Submit(ctx context.Context, g ir.PipelineGraph) (Acceptance, error) {
	var acc Acceptance
	var apiErr errorResponse
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(g).
		SetResult(&acc).
		SetError(&apiErr).
		Post(submitPath)
	if err != nil {
		return Acceptance{}, fmt.Errorf("submit to %s: %w", w.hostname, err)
	}
	if !resp.IsSuccess() {
		return Acceptance{}, fmt.Errorf("submit to %s: %s: %s", w.hostname, resp.Status(), apiErr.Error)
	}
	return acc, nil
}

// Statuses implements Worker.
func (w *HTTPWorker) Statuses(ctx context.Context, runIDs []string) ([]RemoteStatus, error) {
	var out statusesResponse
	var apiErr errorResponse
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(statusesRequest{RunIDs: runIDs}).
		SetResult(&out).
		SetError(&apiErr).
		Post(statusesPath)
	if err != nil {
		return nil, fmt.Errorf("statuses from %s: %w", w.hostname, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("statuses from %s: %s: %s", w.hostname, resp.Status(), apiErr.Error)
	}
	return out.Statuses, nil
}

// Close releases the underlying HTTP client.
func (w *HTTPWorker) Close() error {
	return w.client.Close()
}

// restyLogger forwards resty's printf-style logging to slog.
type restyLogger struct {
	l *slog.Logger
}

func (r restyLogger) Errorf(format string, v ...any) { r.l.Error(fmt.Sprintf(format, v...)) }
func (r restyLogger) Warnf(format string, v ...any)  { r.l.Warn(fmt.Sprintf(format, v...)) }
func (r restyLogger) Debugf(format string, v ...any) { r.l.Debug(fmt.Sprintf(format, v...)) }
