package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"venuecrawl/internal/config"
	"venuecrawl/internal/migrate"
	"venuecrawl/internal/scheduler"
	"venuecrawl/internal/store"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	sleepSeconds := flag.Int("sleep-seconds", 0, "seconds between selection passes (0 = config default)")
	batchSize := flag.Int("batch-size", 0, "venues considered per pass (0 = config default)")
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
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	st := store.New(db)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{}))

	windows := scheduler.Windows{
		OpeningHoursDays:        cfg.Freshness.HoursDays,
		MenuContactPriceDays:    cfg.Freshness.MenuContactPriceDays,
		DescriptionFeaturesDays: cfg.Freshness.DescFeaturesDays,
	}

	batch := *batchSize
	if batch <= 0 {
		batch = cfg.Scheduler.BatchSize
	}

	staleCutoff := widestWindow(windows)

	sch := scheduler.New(st, windows, batch, cfg.Scheduler.TopPopularityPct, staleCutoff, logger)

	interval := time.Duration(*sleepSeconds) * time.Second
	if *sleepSeconds <= 0 {
		interval = time.Duration(cfg.Scheduler.IntervalMinutes) * time.Minute
	}
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received, stopping scheduler loop")
		cancel()
	}()

	sch.Run(ctx, interval)
	logger.Info("scheduler loop stopped")
}

// widestWindow returns the largest freshness window as a staleness cutoff,
// so every venue ListStaleOrMissing returns (apart from never-enriched ones)
// is past all freshness windows. Venues enriched more recently than the
// widest window are not returned, even when a shorter window has lapsed.
func widestWindow(w scheduler.Windows) time.Duration {
	days := w.OpeningHoursDays
	if w.MenuContactPriceDays > days {
		days = w.MenuContactPriceDays
	}
	if w.DescriptionFeaturesDays > days {
		days = w.DescriptionFeaturesDays
	}
	return time.Duration(days) * 24 * time.Hour
}
