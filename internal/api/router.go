// Package api exposes the service operations over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roach88/reconcile/internal/ir"
)

// Service is what the HTTP surface calls into.
type Service interface {
	CreateTransfer(ctx context.Context, req ir.TransferRequest) (ir.Handle, error)
	QueryTransfer(ctx context.Context, id int64) (ir.Handle, bool, error)
	Transfer(ctx context.Context, id int64) (ir.TransferRecord, error)
	DeleteTransfer(ctx context.Context, id int64) error
	ActiveTransfers(ctx context.Context) ([]ir.TransferRecord, error)
	History(ctx context.Context, id int64) ([]ir.HistoryEntry, error)
	SaveDependents(ctx context.Context, masterID int64, edges []ir.DependencyEdge) error
	Dependents(ctx context.Context, masterID int64) ([]ir.DependencyEdge, error)
	DeleteJob(ctx context.Context, masterID int64) ([]int64, error)
}

// NewRouter builds the gin engine serving svc.
//
//	POST   /transfers                create a transfer
//	GET    /transfers                list active transfers
//	GET    /transfers/:id            id and status
//	GET    /transfers/:id/record     full record
//	DELETE /transfers/:id            delete a transfer record
//	GET    /transfers/:id/history    terminal transitions
//	POST   /jobs/:id/dependents      link dependents to a job
//	GET    /jobs/:id/dependents      list a job's dependents
//	DELETE /jobs/:id                 cascade delete a job
//	GET    /healthz                  liveness
func NewRouter(svc Service, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{svc: svc, logger: logger}

	r := gin.New()
	r.Use(requestLogger(logger), recovery(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	transfers := r.Group("/transfers")
	transfers.POST("", h.createTransfer)
	transfers.GET("", h.listTransfers)
	transfers.GET("/:id", h.queryTransfer)
	transfers.GET("/:id/record", h.getRecord)
	transfers.DELETE("/:id", h.deleteTransfer)
	transfers.GET("/:id/history", h.history)

	jobs := r.Group("/jobs")
	jobs.POST("/:id/dependents", h.saveDependents)
	jobs.GET("/:id/dependents", h.dependents)
	jobs.DELETE("/:id", h.deleteJob)

	return r
}
