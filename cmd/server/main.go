package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/minhngvu/stocktrace/internal/api"
	"github.com/minhngvu/stocktrace/internal/cache"
	"github.com/minhngvu/stocktrace/internal/config"
	"github.com/minhngvu/stocktrace/internal/ledger"
	"github.com/minhngvu/stocktrace/internal/match"
	"github.com/minhngvu/stocktrace/internal/qc"
	"github.com/minhngvu/stocktrace/internal/repository/postgres"
	"github.com/minhngvu/stocktrace/internal/service"
	"github.com/minhngvu/stocktrace/internal/storage"
	"github.com/minhngvu/stocktrace/pkg/logger"
)

func main() {
	cfg := config.Load()

	logger.SetLevel(cfg.Server.Mode)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	lotRepo := postgres.NewLotRepository(db)
	intakeRepo := postgres.NewIntakeRepository(db)
	outboundRepo := postgres.NewOutboundRepository(db)
	resultRepo := postgres.NewMatchResultRepository(db)

	ledgerCache, err := cache.NewLedgerCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Ledger cache unavailable, continuing without caching")
		ledgerCache = cache.NewNoopLedgerCache()
	}

	var archive storage.ObjectStorage
	if cfg.Archive.Enabled {
		minioClient, err := storage.NewMinioClient(cfg.Archive)
		if err != nil {
			logger.Log.Warn().Err(err).Msg("Report archive unavailable, run reports will not be stored")
		} else {
			archive = minioClient
		}
	}

	matcher := match.New(match.Config{
		LoosePOFallback: cfg.Recon.LoosePOFallback,
		AcceptThreshold: cfg.Recon.AcceptThreshold,
	})
	builder := ledger.NewBuilder(ledger.Config{
		QCWindow:        time.Duration(cfg.Recon.QCWindowHours) * time.Hour,
		BypassLocations: cfg.QC.BypassLocations,
	})
	workflow := qc.NewWorkflow(lotRepo, lotRepo, cfg.QC.BypassLocations, cfg.QC.RecentCheckedLimit)

	traceService := service.NewTraceService(intakeRepo, outboundRepo, lotRepo, builder, ledgerCache)
	qcService := service.NewQCService(lotRepo, workflow,
		ledgerCache, time.Duration(cfg.QC.RefreshIntervalSeconds)*time.Second)
	reconcileService := service.NewReconcileService(lotRepo, outboundRepo, resultRepo, matcher, archive, ledgerCache)

	refreshCtx, stopRefresh := context.WithCancel(context.Background())
	defer stopRefresh()
	qcService.StartRefresh(refreshCtx)

	router := api.NewRouter(&api.Services{
		TraceService:     traceService,
		QCService:        qcService,
		ReconcileService: reconcileService,
	}, cfg.Server.AllowedOrigins)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")
	stopRefresh()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}
