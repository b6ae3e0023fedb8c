package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/minhngvu/stocktrace/internal/cache"
	"github.com/minhngvu/stocktrace/internal/config"
	"github.com/minhngvu/stocktrace/internal/match"
	"github.com/minhngvu/stocktrace/internal/repository/postgres"
	"github.com/minhngvu/stocktrace/internal/service"
	"github.com/minhngvu/stocktrace/internal/storage"
	"github.com/minhngvu/stocktrace/pkg/logger"
)

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "db-url",
		Usage:    "Database connection string",
		Required: true,
		EnvVars:  []string{"DATABASE_URL"},
	}
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: could not load .env file: %v", err)
	}

	app := &cli.App{
		Name:  "reconcile",
		Usage: "Link outbound stock movements to material lots",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run one reconciliation batch over pending movements",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of movements to process",
						Value: 500,
					},
				},
				Action: runBatch,
			},
			{
				Name:  "migrate",
				Usage: "Apply the schema migration files",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.StringFlag{
						Name:  "dir",
						Usage: "Directory containing migration SQL files",
						Value: "./migrations",
					},
				},
				Action: runMigrations,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runBatch(c *cli.Context) error {
	cfg := config.Load()
	logger.SetLevel(cfg.Server.Mode)

	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	ledgerCache, err := cache.NewLedgerCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Ledger cache unavailable, continuing without invalidation")
		ledgerCache = cache.NewNoopLedgerCache()
	}

	var archive storage.ObjectStorage
	if cfg.Archive.Enabled {
		minioClient, err := storage.NewMinioClient(cfg.Archive)
		if err != nil {
			logger.Log.Warn().Err(err).Msg("Report archive unavailable, run report will not be stored")
		} else {
			archive = minioClient
		}
	}

	matcher := match.New(match.Config{
		LoosePOFallback: cfg.Recon.LoosePOFallback,
		AcceptThreshold: cfg.Recon.AcceptThreshold,
	})

	svc := service.NewReconcileService(
		postgres.NewLotRepository(db),
		postgres.NewOutboundRepository(db),
		postgres.NewMatchResultRepository(db),
		matcher,
		archive,
		ledgerCache,
	)

	report, err := svc.Run(c.Context, c.Int("limit"))
	if err != nil {
		return fmt.Errorf("reconciliation run failed: %w", err)
	}

	fmt.Printf("processed=%d linked=%d auto_created=%d duration=%s\n",
		report.Processed, report.Linked, report.AutoCreated,
		report.FinishedAt.Sub(report.StartedAt))
	return nil
}

func runMigrations(c *cli.Context) error {
	db, err := sql.Open("pgx", c.String("db-url"))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(c.Context); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	entries, err := os.ReadDir(c.String("dir"))
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		path := c.String("dir") + "/" + entry.Name()
		contents, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		if _, err := db.ExecContext(c.Context, string(contents)); err != nil {
			return fmt.Errorf("failed to apply %s: %w", path, err)
		}
		log.Printf("applied %s\n", path)
	}

	return nil
}
