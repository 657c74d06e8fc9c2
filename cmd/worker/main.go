package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"venuecrawl/internal/config"
	"venuecrawl/internal/downloader"
	"venuecrawl/internal/migrate"
	"venuecrawl/internal/pipeline"
	"venuecrawl/internal/politeness"
	"venuecrawl/internal/store"
	"venuecrawl/internal/worker"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	workers := flag.Int("workers", 0, "number of concurrent poll loops (0 = 1)")
	batchSize := flag.Int("batch-size", 0, "jobs claimed per poll (0 = config default)")
	flag.Parse()

	cfg := config.Load(*configPath)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	if err := migrate.Run(cfg.Database.DSN); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	db, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		log.Fatalf("open db failed: %v", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	st := store.New(db)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{}))

	dl := downloader.New(
		cfg.Downloader.UserAgent,
		time.Duration(cfg.Downloader.ConnectTimeoutS)*time.Second,
		time.Duration(cfg.Downloader.TTFBTimeoutS)*time.Second,
		time.Duration(cfg.Downloader.ReadTimeoutS)*time.Second,
		cfg.Downloader.PageSizeLimitBytes,
		cfg.Downloader.StoreRawHTML,
		time.Duration(cfg.Downloader.RobotsTTLSeconds)*time.Second,
	)

	if cfg.Redis.URL != "" && cfg.Politeness.MinGapMs > 0 {
		if opt, err := redis.ParseURL(cfg.Redis.URL); err == nil {
			rdb := redis.NewClient(opt)
			dl.Politeness = politeness.New(
				rdb,
				time.Duration(cfg.Politeness.MinGapMs)*time.Millisecond,
				time.Duration(cfg.Politeness.LeaseMs)*time.Millisecond,
			)
		} else {
			logger.Warn("invalid redis url, politeness limiter disabled", "error", err)
		}
	}

	pl := pipeline.New(
		dl,
		cfg.Crawler.MinVisibleChars,
		3,
		cfg.Crawler.BudgetMs,
		pipeline.TTLConfig{
			HoursDays:            cfg.Freshness.HoursDays,
			MenuContactPriceDays: cfg.Freshness.MenuContactPriceDays,
			DescFeaturesDays:     cfg.Freshness.DescFeaturesDays,
		},
	)

	batch := *batchSize
	if batch <= 0 {
		batch = cfg.Worker.MaxConcurrentJobs
	}
	if batch <= 0 {
		batch = 4
	}

	numWorkers := *workers
	if numWorkers <= 0 {
		numWorkers = 1
	}

	w := worker.New(st, pl, nil, cfg.Crawler.PerHostConcurrency, logger)

	pollInterval := time.Duration(cfg.Worker.PollIntervalMs) * time.Millisecond
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received, stopping worker loop")
		cancel()
	}()

	runWorkers(ctx, w, numWorkers, pollInterval, batch, logger)
	logger.Info("worker loop stopped")
}

// runWorkers starts n concurrent poll loops against the shared queue, the
// way worker.py spins up N process-level worker_loop instances, and blocks
// until every loop has returned (i.e. until ctx is canceled).
func runWorkers(ctx context.Context, w *worker.Worker, n int, pollInterval time.Duration, batchSize int, logger *slog.Logger) {
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("worker loop started", "worker_id", i)
			w.Run(ctx, pollInterval, batchSize)
			logger.Info("worker loop exited", "worker_id", i)
		}()
	}
	wg.Wait()
}
