package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
server:
  host: "0.0.0.0"
  port: 8080
downloader:
  userAgent: "test-bot/1.0"
  connectTimeoutS: 1
  ttfbTimeoutS: 1
  readTimeoutS: 1
  pageSizeLimitBytes: 2097152
  storeRawHTML: false
  robotsTTLSeconds: 3600
crawler:
  budgetMs: 5000
  minVisibleChars: 200
  perHostConcurrency: 2
robots:
  respect: true
database:
  dsn: "postgres://localhost/test"
redis:
  url: "redis://localhost:6379/0"
worker:
  maxConcurrentJobs: 4
  pollIntervalMs: 500
scheduler:
  intervalMinutes: 15
  batchSize: 50
  topPopularityPct: 10
freshness:
  hoursDays: 3
  menuContactPriceDays: 14
  descFeaturesDays: 30
politeness:
  minGapMs: 500
  leaseMs: 2000
`

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadParsesYAML(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	cfg := Load(path)

	if cfg.Server.Port != 8080 {
		t.Fatalf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Crawler.BudgetMs != 5000 {
		t.Fatalf("expected budgetMs 5000, got %d", cfg.Crawler.BudgetMs)
	}
	if cfg.Database.DSN != "postgres://localhost/test" {
		t.Fatalf("unexpected dsn: %s", cfg.Database.DSN)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)

	t.Setenv("DATABASE_URL", "postgres://override/db")
	t.Setenv("CRAWL_BUDGET_MS", "9000")
	t.Setenv("CRAWL_STORE_RAW_HTML", "true")

	cfg := Load(path)

	if cfg.Database.DSN != "postgres://override/db" {
		t.Fatalf("expected env override for dsn, got %s", cfg.Database.DSN)
	}
	if cfg.Crawler.BudgetMs != 9000 {
		t.Fatalf("expected env override for budgetMs, got %d", cfg.Crawler.BudgetMs)
	}
	if !cfg.Downloader.StoreRawHTML {
		t.Fatalf("expected env override for storeRawHTML")
	}
}

func TestValidateRejectsMissingDSN(t *testing.T) {
	cfg := &Config{Crawler: CrawlerConfig{BudgetMs: 1, PerHostConcurrency: 1}, Downloader: DownloaderConfig{PageSizeLimitBytes: 1}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing DSN")
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	cfg := Load(path)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got error: %v", err)
	}
}
