package api

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/minhngvu/stocktrace/internal/api/handlers"
	"github.com/minhngvu/stocktrace/internal/api/middleware"
	"github.com/minhngvu/stocktrace/internal/service"
)

type Services struct {
	TraceService     *service.TraceService
	QCService        *service.QCService
	ReconcileService *service.ReconcileService
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())

	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	apiGroup := router.Group("/api/v1")

	if services != nil {
		if services.TraceService != nil {
			traceHandler := handlers.NewTraceHandler(services.TraceService)
			traceGroup := apiGroup.Group("/trace")
			{
				traceGroup.GET("/ledger", traceHandler.GetLedger)
			}
		}

		if services.QCService != nil {
			qcHandler := handlers.NewQCHandler(services.QCService)
			qcGroup := apiGroup.Group("/qc")
			{
				qcGroup.POST("/lots/:id/transition", qcHandler.Transition)
				qcGroup.POST("/scan", qcHandler.Scan)
				qcGroup.GET("/counters", qcHandler.GetCounters)
			}
		}

		if services.ReconcileService != nil {
			reconcileHandler := handlers.NewReconcileHandler(services.ReconcileService)
			reconcileGroup := apiGroup.Group("/reconcile")
			{
				reconcileGroup.GET("/results", reconcileHandler.GetRecentResults)
			}
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
