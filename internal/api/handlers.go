package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/roach88/reconcile/internal/compiler"
	"github.com/roach88/reconcile/internal/dispatch"
	"github.com/roach88/reconcile/internal/ir"
	"github.com/roach88/reconcile/internal/store"
)

type handler struct {
	svc    Service
	logger *slog.Logger
}

type errorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

type dependentsRequest struct {
	Dependents []ir.DependencyEdge `json:"dependents" binding:"required"`
}

type deleteJobResponse struct {
	Deleted []int64 `json:"deleted"`
}

// writeError maps service errors onto status codes.
func (h *handler) writeError(c *gin.Context, err error) {
	var specErrs compiler.SpecErrors
	var dispatchErr *dispatch.DispatchError
	switch {
	case errors.As(err, &specErrs):
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid transfer request", Details: specErrs})
	case errors.As(err, &dispatchErr):
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, store.ErrInvalidRecord):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		h.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid id %q", c.Param("id"))})
		return 0, false
	}
	return id, true
}

func (h *handler) createTransfer(c *gin.Context) {
	var req ir.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body: " + err.Error()})
		return
	}
	handle, err := h.svc.CreateTransfer(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handle)
}

func (h *handler) listTransfers(c *gin.Context) {
	recs, err := h.svc.ActiveTransfers(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, recs)
}

func (h *handler) queryTransfer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	handle, found, err := h.svc.QueryTransfer(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, errorResponse{Error: fmt.Sprintf("transfer %d not found", id)})
		return
	}
	c.JSON(http.StatusOK, handle)
}

func (h *handler) getRecord(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	rec, err := h.svc.Transfer(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *handler) deleteTransfer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteTransfer(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) history(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	entries, err := h.svc.History(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *handler) saveDependents(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req dependentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body: " + err.Error()})
		return
	}
	if err := h.svc.SaveDependents(c.Request.Context(), id, req.Dependents); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) dependents(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	edges, err := h.svc.Dependents(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, edges)
}

func (h *handler) deleteJob(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	deleted, err := h.svc.DeleteJob(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("cascade delete failed", "master_id", id, "deleted", deleted, "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{
			Error:   "cascade delete incomplete: " + err.Error(),
			Details: deleteJobResponse{Deleted: deleted},
		})
		return
	}
	c.JSON(http.StatusOK, deleteJobResponse{Deleted: deleted})
}
