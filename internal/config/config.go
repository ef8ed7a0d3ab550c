// Package config loads the pipeline configuration from a JSON file and
// applies environment variable overrides for deployment-specific settings.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"nseingest/internal/dateutil"
)

// Config holds all application configuration. The JSON layout of the
// pipeline sections (index_name, output_paths, price_fetch_settings) is
// part of the on-disk contract shared with earlier deployments.
type Config struct {
	IndexName          string             `json:"index_name"`
	OutputPaths        OutputPaths        `json:"output_paths"`
	PriceFetchSettings PriceFetchSettings `json:"price_fetch_settings"`
	MetadataFile       string             `json:"metadata_file"`
	LogLevel           string             `json:"log_level"`
	Schedule           string             `json:"schedule"`
	NSE                NSEConfig          `json:"nse"`
	Database           DatabaseConfig     `json:"database"`
	Kafka              KafkaConfig        `json:"kafka"`
	Redis              RedisConfig        `json:"redis"`
	Server             ServerConfig       `json:"server"`
}

// OutputPaths holds the file path templates for persisted pipeline state.
// stock_prices contains a {symbol} placeholder; stock_list contains an
// {index_name} placeholder.
type OutputPaths struct {
	StockList            string `json:"stock_list"`
	TransformedStockList string `json:"transformed_stock_list"`
	StockPrices          string `json:"stock_prices"`
	StockNames           string `json:"stock_names"`
}

// PriceFetchSettings holds the requested fetch window, YYYY-MM-DD.
type PriceFetchSettings struct {
	FromDate string `json:"from_date"`
	ToDate   string `json:"to_date"`
}

// NSEConfig holds the remote data provider endpoint settings.
type NSEConfig struct {
	BaseURL         string `json:"base_url"`
	TimeoutSeconds  int    `json:"timeout_seconds"`
	RateLimitPerSec int    `json:"rate_limit_per_sec"`
}

// DatabaseConfig holds PostgreSQL settings. Empty Host disables the DB
// ingestion step.
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

// KafkaConfig holds event publishing settings. Empty Brokers disables
// event publishing.
type KafkaConfig struct {
	Brokers []string `json:"brokers"`
	Topic   string   `json:"topic"`
}

// RedisConfig holds the run-lock settings. Empty Addr disables the lock.
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// ServerConfig holds the status HTTP server listener settings.
type ServerConfig struct {
	Host string `json:"host"`
	Port string `json:"port"`
}

// Load reads configuration from a JSON file and applies environment
// variable overrides. A missing or malformed file is a fatal
// configuration error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.MetadataFile == "" {
		c.MetadataFile = "symbol_metadata.json"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.NSE.TimeoutSeconds == 0 {
		c.NSE.TimeoutSeconds = 30
	}
	if c.Database.Port == "" {
		c.Database.Port = "5432"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "ingest-events"
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
}

func (c *Config) applyEnvOverrides() {
	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnv("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.DBName = getEnv("DB_NAME", c.Database.DBName)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	c.Kafka.Topic = getEnv("KAFKA_TOPIC", c.Kafka.Topic)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)

	c.NSE.BaseURL = getEnv("NSE_BASE_URL", c.NSE.BaseURL)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
}

// Validate checks the required configuration keys. An error here aborts
// the run before any fetch begins.
func (c *Config) Validate() error {
	if c.IndexName == "" {
		return fmt.Errorf("missing required config key: index_name")
	}

	required := map[string]string{
		"output_paths.stock_list":             c.OutputPaths.StockList,
		"output_paths.transformed_stock_list": c.OutputPaths.TransformedStockList,
		"output_paths.stock_prices":           c.OutputPaths.StockPrices,
		"output_paths.stock_names":            c.OutputPaths.StockNames,
	}
	for key, val := range required {
		if val == "" {
			return fmt.Errorf("missing required config key: %s", key)
		}
	}

	if !strings.Contains(c.OutputPaths.StockPrices, "{symbol}") {
		return fmt.Errorf("output_paths.stock_prices must contain a {symbol} placeholder")
	}
	return nil
}

// ApplyDateDefaults fills an absent from_date with the global floor date
// and an absent to_date with today.
func (c *Config) ApplyDateDefaults(now time.Time) {
	if c.PriceFetchSettings.FromDate == "" {
		c.PriceFetchSettings.FromDate = dateutil.FloorDate
	}
	if c.PriceFetchSettings.ToDate == "" {
		c.PriceFetchSettings.ToDate = dateutil.FormatISO(now)
	}
}

// StockListPath resolves the stock list path template for the configured
// index, replacing spaces in the index name with underscores.
func (c *Config) StockListPath() string {
	name := strings.ReplaceAll(c.IndexName, " ", "_")
	return strings.ReplaceAll(c.OutputPaths.StockList, "{index_name}", name)
}

// DatabaseEnabled reports whether the DB ingestion step is configured.
func (c *Config) DatabaseEnabled() bool {
	return c.Database.Host != ""
}

// KafkaEnabled reports whether event publishing is configured.
func (c *Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}

// RedisEnabled reports whether the run lock is configured.
func (c *Config) RedisEnabled() bool {
	return c.Redis.Addr != ""
}

// ConnectionString returns the PostgreSQL connection string.
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
