package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/minhngvu/stocktrace/internal/service"
)

type ReconcileHandler struct {
	service *service.ReconcileService
}

func NewReconcileHandler(service *service.ReconcileService) *ReconcileHandler {
	return &ReconcileHandler{service: service}
}

// GetRecentResults lists the latest matcher decisions for audit review.
func (h *ReconcileHandler) GetRecentResults(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 {
		limit = 100
	}

	results, err := h.service.RecentResults(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch match results", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"total":   len(results),
	})
}
