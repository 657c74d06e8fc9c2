package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DownloaderConfig controls the per-phase fetch budgets and limits that the
// Downloader enforces against every request.
type DownloaderConfig struct {
	UserAgent             string `yaml:"userAgent"`
	ConnectTimeoutS        int  `yaml:"connectTimeoutS"`
	TTFBTimeoutS           int  `yaml:"ttfbTimeoutS"`
	ReadTimeoutS           int  `yaml:"readTimeoutS"`
	PageSizeLimitBytes     int  `yaml:"pageSizeLimitBytes"`
	StoreRawHTML           bool `yaml:"storeRawHTML"`
	RobotsTTLSeconds       int  `yaml:"robotsTTLSeconds"`
}

// CrawlerConfig controls the per-site pipeline budget and quality gate.
type CrawlerConfig struct {
	BudgetMs           int `yaml:"budgetMs"`
	MinVisibleChars    int `yaml:"minVisibleChars"`
	PerHostConcurrency int `yaml:"perHostConcurrency"`
}

type RobotsConfig struct {
	Respect bool `yaml:"respect"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig backs the cross-process politeness limiter.
type RedisConfig struct {
	URL string `yaml:"url"`
}

type WorkerConfig struct {
	MaxConcurrentJobs int `yaml:"maxConcurrentJobs"`
	PollIntervalMs    int `yaml:"pollIntervalMs"`
}

// SchedulerConfig controls the background-refresh selection loop.
type SchedulerConfig struct {
	IntervalMinutes    int `yaml:"intervalMinutes"`
	BatchSize          int `yaml:"batchSize"`
	TopPopularityPct   int `yaml:"topPopularityPct"`
}

// FreshnessConfig controls the per-field staleness windows the Freshness
// Evaluator applies. Values are in days.
type FreshnessConfig struct {
	HoursDays             int `yaml:"hoursDays"`
	MenuContactPriceDays  int `yaml:"menuContactPriceDays"`
	DescFeaturesDays      int `yaml:"descFeaturesDays"`
}

// PolitenessConfig controls the minimum per-host gap enforced across the
// whole worker fleet, on top of the per-host concurrency cap.
type PolitenessConfig struct {
	MinGapMs int `yaml:"minGapMs"`
	LeaseMs  int `yaml:"leaseMs"`
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Downloader DownloaderConfig `yaml:"downloader"`
	Crawler    CrawlerConfig    `yaml:"crawler"`
	Robots     RobotsConfig     `yaml:"robots"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Worker     WorkerConfig     `yaml:"worker"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Freshness  FreshnessConfig  `yaml:"freshness"`
	Politeness PolitenessConfig `yaml:"politeness"`
}

func Load(path string) *Config {
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("failed to open config file: %v", err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		log.Fatalf("failed to decode config: %v", err)
	}

	cfg.applyEnvOverrides()

	return &cfg
}

// applyEnvOverrides lets deploy environments override individual fields
// without editing the YAML file, mirroring the named environment variables.
func (cfg *Config) applyEnvOverrides() {
	cfg.Database.DSN = getEnv("DATABASE_URL", cfg.Database.DSN)

	cfg.Downloader.ConnectTimeoutS = getEnvAsInt("CRAWL_CONNECT_TIMEOUT_S", cfg.Downloader.ConnectTimeoutS)
	cfg.Downloader.TTFBTimeoutS = getEnvAsInt("CRAWL_TTFB_TIMEOUT_S", cfg.Downloader.TTFBTimeoutS)
	cfg.Downloader.ReadTimeoutS = getEnvAsInt("CRAWL_READ_TIMEOUT_S", cfg.Downloader.ReadTimeoutS)
	cfg.Downloader.PageSizeLimitBytes = getEnvAsInt("CRAWL_PAGE_SIZE_LIMIT_BYTES", cfg.Downloader.PageSizeLimitBytes)
	cfg.Downloader.UserAgent = getEnv("CRAWL_USER_AGENT", cfg.Downloader.UserAgent)
	cfg.Downloader.StoreRawHTML = getEnvAsBool("CRAWL_STORE_RAW_HTML", cfg.Downloader.StoreRawHTML)
	cfg.Downloader.RobotsTTLSeconds = getEnvAsInt("CRAWL_ROBOTS_TTL_SECONDS", cfg.Downloader.RobotsTTLSeconds)

	cfg.Crawler.BudgetMs = getEnvAsInt("CRAWL_BUDGET_MS", cfg.Crawler.BudgetMs)
	cfg.Crawler.MinVisibleChars = getEnvAsInt("CRAWL_MIN_VISIBLE_CHARS", cfg.Crawler.MinVisibleChars)
	cfg.Crawler.PerHostConcurrency = getEnvAsInt("CRAWL_PER_HOST_CONCURRENCY", cfg.Crawler.PerHostConcurrency)

	cfg.Freshness.HoursDays = getEnvAsInt("FRESH_HOURS_DAYS", cfg.Freshness.HoursDays)
	cfg.Freshness.MenuContactPriceDays = getEnvAsInt("FRESH_MENU_CONTACT_PRICE_DAYS", cfg.Freshness.MenuContactPriceDays)
	cfg.Freshness.DescFeaturesDays = getEnvAsInt("FRESH_DESC_FEATURES_DAYS", cfg.Freshness.DescFeaturesDays)
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value, exists := os.LookupEnv(key); exists {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if v, err := strconv.ParseBool(value); err == nil {
			return v
		}
	}
	return defaultVal
}

// Validate performs basic sanity checks on the loaded configuration so
// obviously broken deployments fail fast at startup.
func (cfg *Config) Validate() error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if cfg.Database.DSN == "" {
		return errors.New("database.dsn (or DATABASE_URL) must be set")
	}
	if cfg.Crawler.BudgetMs <= 0 {
		return fmt.Errorf("crawler.budgetMs must be positive, got %d", cfg.Crawler.BudgetMs)
	}
	if cfg.Downloader.PageSizeLimitBytes <= 0 {
		return fmt.Errorf("downloader.pageSizeLimitBytes must be positive, got %d", cfg.Downloader.PageSizeLimitBytes)
	}
	if cfg.Crawler.PerHostConcurrency <= 0 {
		return fmt.Errorf("crawler.perHostConcurrency must be positive, got %d", cfg.Crawler.PerHostConcurrency)
	}
	return nil
}
