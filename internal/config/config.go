// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/aristath/portfin/internal/modules/backtest"
)

// Price sources
const (
	PriceSourceSQLite = "sqlite"
	PriceSourceCSV    = "csv"
)

// Config holds application configuration
type Config struct {
	DataDir      string    `yaml:"data_dir"` // Directory for the history and results databases, always absolute
	Port         int       `yaml:"port"`
	LogLevel     string    `yaml:"log_level"`
	LogPretty    bool      `yaml:"log_pretty"`
	DevMode      bool      `yaml:"dev_mode"`
	CORSOrigins  []string  `yaml:"cors_origins"`
	PriceSource  string    `yaml:"price_source"`
	CSVDir       string    `yaml:"csv_dir"`
	HistoryStart time.Time `yaml:"history_start"` // First date fetched for symbols with no stored history

	Schedule ScheduleConfig   `yaml:"schedule"`
	Backtest backtest.Request `yaml:"backtest"` // Defaults for scheduled and API-submitted runs
	Export   ExportConfig     `yaml:"export"`
}

// ScheduleConfig holds cron expressions with a leading seconds field. Empty disables a job.
type ScheduleConfig struct {
	PriceSync string `yaml:"price_sync"`
	Backtest  string `yaml:"backtest"`
}

// ExportConfig locates the object store runs are exported to. Empty bucket disables export.
type ExportConfig struct {
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"-"`
	SecretAccessKey string `yaml:"-"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// Defaults returns the configuration used when nothing is set
func Defaults() *Config {
	return &Config{
		DataDir:      "./data",
		Port:         8080,
		LogLevel:     "info",
		PriceSource:  PriceSourceSQLite,
		HistoryStart: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		Backtest: backtest.Request{
			Name:      "scheduled",
			Benchmark: "SPY",
			Config:    backtest.DefaultConfig(),
		},
		Export: ExportConfig{Prefix: "backtests"},
	}
}

// Load reads .env, then the YAML file named by PORTFIN_CONFIG, then
// environment overrides, in that order of increasing precedence.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := Defaults()
	if path := getEnv("PORTFIN_CONFIG", ""); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	absDataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	cfg.DataDir = absDataDir

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(content, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.DataDir = getEnv("PORTFIN_DATA_DIR", c.DataDir)
	c.Port = getEnvAsInt("PORTFIN_PORT", c.Port)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogPretty = getEnvAsBool("LOG_PRETTY", c.LogPretty)
	c.DevMode = getEnvAsBool("DEV_MODE", c.DevMode)
	if origins := getEnv("PORTFIN_CORS_ORIGINS", ""); origins != "" {
		c.CORSOrigins = splitList(origins)
	}
	c.PriceSource = strings.ToLower(getEnv("PORTFIN_PRICE_SOURCE", c.PriceSource))
	c.CSVDir = getEnv("PORTFIN_CSV_DIR", c.CSVDir)

	c.Schedule.PriceSync = getEnv("PORTFIN_PRICE_SYNC_SCHEDULE", c.Schedule.PriceSync)
	c.Schedule.Backtest = getEnv("PORTFIN_BACKTEST_SCHEDULE", c.Schedule.Backtest)

	if universe := getEnv("PORTFIN_UNIVERSE", ""); universe != "" {
		c.Backtest.Universe = splitList(universe)
	}
	c.Backtest.Benchmark = getEnv("PORTFIN_BENCHMARK", c.Backtest.Benchmark)
	c.Backtest.Config.InitialCapital = getEnvAsFloat("PORTFIN_INITIAL_CAPITAL", c.Backtest.Config.InitialCapital)
	c.Backtest.Config.ReinvestAmount = getEnvAsFloat("PORTFIN_REINVEST_AMOUNT", c.Backtest.Config.ReinvestAmount)

	c.Export.Bucket = getEnv("PORTFIN_S3_BUCKET", c.Export.Bucket)
	c.Export.Prefix = getEnv("PORTFIN_S3_PREFIX", c.Export.Prefix)
	c.Export.Region = getEnv("PORTFIN_S3_REGION", c.Export.Region)
	c.Export.Endpoint = getEnv("PORTFIN_S3_ENDPOINT", c.Export.Endpoint)
	c.Export.UsePathStyle = getEnvAsBool("PORTFIN_S3_PATH_STYLE", c.Export.UsePathStyle)
	c.Export.AccessKeyID = getEnv("AWS_ACCESS_KEY_ID", c.Export.AccessKeyID)
	c.Export.SecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", c.Export.SecretAccessKey)
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	switch c.PriceSource {
	case PriceSourceSQLite:
	case PriceSourceCSV:
		if c.CSVDir == "" {
			return fmt.Errorf("csv price source requires csv_dir")
		}
	default:
		return fmt.Errorf("unknown price source %q", c.PriceSource)
	}
	if err := c.Backtest.Config.Validate(); err != nil {
		return fmt.Errorf("backtest defaults: %w", err)
	}
	if c.Schedule.Backtest != "" && (len(c.Backtest.Universe) == 0 || c.Backtest.Benchmark == "") {
		return fmt.Errorf("scheduled backtest requires a universe and benchmark")
	}
	return nil
}

// HistoryDBPath returns the price history database path
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

// ResultsDBPath returns the results database path
func (c *Config) ResultsDBPath() string {
	return filepath.Join(c.DataDir, "results.db")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
