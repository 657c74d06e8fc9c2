package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"venuecrawl/internal/config"
	"venuecrawl/internal/downloader"
	"venuecrawl/internal/httpapi"
	"venuecrawl/internal/migrate"
	"venuecrawl/internal/pipeline"
	"venuecrawl/internal/politeness"
	"venuecrawl/internal/store"
	"venuecrawl/internal/worker"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
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

	// In dev/single-process deployments the API also runs an embedded
	// worker loop against the same queue, the way raito-api starts its
	// background crawl worker alongside the HTTP server.
	startEmbeddedWorker(context.Background(), cfg, st, logger)

	s := httpapi.NewServer(cfg, st, logger)
	if err := s.Listen(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func startEmbeddedWorker(ctx context.Context, cfg *config.Config, st *store.Store, logger *slog.Logger) {
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

	w := worker.New(st, pl, nil, cfg.Crawler.PerHostConcurrency, logger)

	batch := cfg.Worker.MaxConcurrentJobs
	if batch <= 0 {
		batch = 4
	}
	pollInterval := time.Duration(cfg.Worker.PollIntervalMs) * time.Millisecond
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}

	go w.Run(ctx, pollInterval, batch)
}
