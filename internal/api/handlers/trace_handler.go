package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/minhngvu/stocktrace/internal/service"
)

type TraceHandler struct {
	service *service.TraceService
}

func NewTraceHandler(service *service.TraceService) *TraceHandler {
	return &TraceHandler{service: service}
}

// GetLedger builds the audit timeline for a material code, optionally scoped
// to one PO. A partially degraded trace (some source collection unreachable)
// still returns 200; the missing sections are listed in missing_sources.
func (h *TraceHandler) GetLedger(c *gin.Context) {
	materialCode := strings.TrimSpace(c.Query("material_code"))
	if materialCode == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "material_code is required"})
		return
	}
	poNumber := strings.TrimSpace(c.Query("po_number"))

	led, err := h.service.BuildLedger(c.Request.Context(), materialCode, poNumber)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build ledger", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, led)
}
