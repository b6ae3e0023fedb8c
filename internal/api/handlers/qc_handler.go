package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/minhngvu/stocktrace/internal/domain"
	"github.com/minhngvu/stocktrace/internal/normalize"
	"github.com/minhngvu/stocktrace/internal/qc"
	"github.com/minhngvu/stocktrace/internal/repository"
	"github.com/minhngvu/stocktrace/internal/service"
)

type QCHandler struct {
	service *service.QCService
}

func NewQCHandler(service *service.QCService) *QCHandler {
	return &QCHandler{service: service}
}

type transitionRequest struct {
	Disposition string `json:"disposition" binding:"required"`
	InspectorID string `json:"inspector_id"`
}

type scanRequest struct {
	Payload string `json:"payload" binding:"required"`
}

// Transition applies a disposition change to a lot. Rule violations (unknown
// state, illegal move, missing inspector) come back as 422 with the reason;
// only store failures are 500.
func (h *QCHandler) Transition(c *gin.Context) {
	lotID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lot id"})
		return
	}

	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	lot, err := h.service.Transition(c.Request.Context(), lotID, domain.QCState(req.Disposition), req.InspectorID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "lot not found"})
		case errors.Is(err, qc.ErrNoInspector),
			errors.Is(err, qc.ErrInvalidTransition),
			errors.Is(err, qc.ErrUnknownState):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to apply transition", "details": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, lot)
}

// Scan resolves a pipe-delimited QR payload to the lot it names. A malformed
// payload reports which segment failed, a well-formed one that matches no lot
// reports the full identity.
func (h *QCHandler) Scan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	lot, err := h.service.ResolveScan(c.Request.Context(), req.Payload)
	if err != nil {
		var scanErr *normalize.ScanError
		if errors.As(err, &scanErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": scanErr.Error(), "field": scanErr.Field})
			return
		}
		var notResolved *service.ErrLotNotResolved
		if errors.As(err, &notResolved) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":         notResolved.Error(),
				"material_code": notResolved.MaterialCode,
				"po_number":     notResolved.PONumber,
				"imd":           notResolved.IMD,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve scan", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, lot)
}

func (h *QCHandler) GetCounters(c *gin.Context) {
	counters, err := h.service.Counters(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to derive counters", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, counters)
}
