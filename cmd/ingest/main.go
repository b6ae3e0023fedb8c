package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/minhngvu/stocktrace/internal/cache"
	"github.com/minhngvu/stocktrace/internal/config"
	"github.com/minhngvu/stocktrace/internal/ingest"
	"github.com/minhngvu/stocktrace/internal/repository/postgres"
	"github.com/minhngvu/stocktrace/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger.SetLevel(cfg.Server.Mode)

	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	ledgerCache, err := cache.NewLedgerCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Ledger cache unavailable, ingest will not invalidate traces")
		ledgerCache = cache.NewNoopLedgerCache()
	}

	ingestService := ingest.NewService(
		postgres.NewIntakeRepository(db),
		postgres.NewOutboundRepository(db),
		postgres.NewLotRepository(db),
		ledgerCache,
	)

	r := mux.NewRouter()
	ingest.NewHandler(ingestService).RegisterRoutes(r)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	addr := fmt.Sprintf(":%s", cfg.Ingest.Port)
	log.Printf("Ingest server starting on %s\n", addr)
	log.Fatal(http.ListenAndServe(addr, r))
}
