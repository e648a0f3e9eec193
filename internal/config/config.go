package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/vjranagit/influxseed/pkg/influx"
	"github.com/vjranagit/influxseed/pkg/journal"
	"github.com/vjranagit/influxseed/pkg/lineproto"
	"github.com/vjranagit/influxseed/pkg/seeder"
	"github.com/vjranagit/influxseed/pkg/types"
)

// Config holds the application configuration
type Config struct {
	Influx  InfluxConfig  `yaml:"influx"`
	Seed    SeedConfig    `yaml:"seed"`
	Journal JournalConfig `yaml:"journal"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// InfluxConfig holds the database connection settings
type InfluxConfig struct {
	URL       string `yaml:"url"`
	OrgID     string `yaml:"org_id"`
	Org       string `yaml:"org"`
	TokenFile string `yaml:"token_file"`
	// Token is only taken from the environment, never from the file
	Token           string        `yaml:"-"`
	Timeout         time.Duration `yaml:"timeout"`
	Gzip            bool          `yaml:"gzip"`
	WritesPerSecond float64       `yaml:"writes_per_second"`
}

// SeedConfig describes what gets written
type SeedConfig struct {
	Bucket      string        `yaml:"bucket"`
	Measurement string        `yaml:"measurement"`
	Start       string        `yaml:"start"`
	End         string        `yaml:"end"`
	Step        time.Duration `yaml:"step"`
	BatchSize   int           `yaml:"batch_size"`
	SettleDelay time.Duration `yaml:"settle_delay"`
}

// JournalConfig holds local run history settings
type JournalConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Path             string `yaml:"path"`
	CompressionLevel int    `yaml:"compression_level"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics export settings
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

func baseConfig() *Config {
	return &Config{
		Influx: InfluxConfig{
			URL:       "http://localhost:8086",
			OrgID:     "9c7a0f5daecd9269",
			Org:       "QBRX",
			TokenFile: "./influxDbToken.txt",
			Timeout:   30 * time.Second,
		},
		Seed: SeedConfig{
			Bucket:      "test",
			Measurement: "testMeasurement",
			Start:       "2020-01-01T00:00:00Z",
			End:         "2020-03-01T00:00:00Z",
			Step:        time.Minute,
			BatchSize:   1000,
			SettleDelay: 100 * time.Millisecond,
		},
		Journal: JournalConfig{
			Enabled:          true,
			Path:             "./.seed-journal",
			CompressionLevel: 3,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// DefaultConfig returns default configuration with environment overrides
func DefaultConfig() *Config {
	cfg := baseConfig()
	cfg.applyEnv()
	return cfg
}

// LoadFromFile loads configuration from a YAML file on top of the
// defaults, with environment variable overrides
func LoadFromFile(path string) (*Config, error) {
	cfg := baseConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Influx.URL = getEnv("SEED_INFLUX_URL", c.Influx.URL)
	c.Influx.OrgID = getEnv("SEED_INFLUX_ORG_ID", c.Influx.OrgID)
	c.Influx.Org = getEnv("SEED_INFLUX_ORG", c.Influx.Org)
	c.Influx.TokenFile = getEnv("SEED_INFLUX_TOKEN_FILE", c.Influx.TokenFile)
	c.Influx.Token = getEnv("SEED_INFLUX_TOKEN", c.Influx.Token)
	c.Influx.Timeout = getEnvDuration("SEED_INFLUX_TIMEOUT", c.Influx.Timeout)
	c.Influx.Gzip = getEnvBool("SEED_INFLUX_GZIP", c.Influx.Gzip)
	c.Influx.WritesPerSecond = getEnvFloat("SEED_WRITES_PER_SECOND", c.Influx.WritesPerSecond)

	c.Seed.Bucket = getEnv("SEED_BUCKET", c.Seed.Bucket)
	c.Seed.Measurement = getEnv("SEED_MEASUREMENT", c.Seed.Measurement)
	c.Seed.Start = getEnv("SEED_START", c.Seed.Start)
	c.Seed.End = getEnv("SEED_END", c.Seed.End)
	c.Seed.Step = getEnvDuration("SEED_STEP", c.Seed.Step)
	c.Seed.BatchSize = getEnvInt("SEED_BATCH_SIZE", c.Seed.BatchSize)
	c.Seed.SettleDelay = getEnvDuration("SEED_SETTLE_DELAY", c.Seed.SettleDelay)

	c.Journal.Enabled = getEnvBool("SEED_JOURNAL_ENABLED", c.Journal.Enabled)
	c.Journal.Path = getEnv("SEED_JOURNAL_PATH", c.Journal.Path)
	c.Journal.CompressionLevel = getEnvInt("SEED_JOURNAL_COMPRESSION_LEVEL", c.Journal.CompressionLevel)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOG_FORMAT", c.Logging.Format)

	c.Metrics.Textfile = getEnv("SEED_METRICS_TEXTFILE", c.Metrics.Textfile)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Influx.URL == "" {
		return fmt.Errorf("influx url is required")
	}
	if u, err := url.Parse(c.Influx.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("influx url %q is not an absolute url", c.Influx.URL)
	}
	if c.Influx.OrgID == "" {
		return fmt.Errorf("influx org id is required")
	}
	if c.Influx.Org == "" {
		return fmt.Errorf("influx org is required")
	}
	if c.Influx.Token == "" && c.Influx.TokenFile == "" {
		return fmt.Errorf("influx token or token file is required")
	}
	if c.Influx.Timeout < 0 {
		return fmt.Errorf("influx timeout must not be negative")
	}
	if c.Influx.WritesPerSecond < 0 {
		return fmt.Errorf("writes per second must not be negative")
	}

	if c.Seed.Bucket == "" {
		return fmt.Errorf("bucket name is required")
	}
	if err := lineproto.ValidateMeasurement(c.Seed.Measurement); err != nil {
		return err
	}
	if _, err := c.Range(); err != nil {
		return err
	}
	if c.Seed.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1")
	}
	if c.Seed.SettleDelay < 0 {
		return fmt.Errorf("settle delay must not be negative")
	}

	if c.Journal.Enabled {
		if c.Journal.Path == "" {
			return fmt.Errorf("journal path is required")
		}
		if c.Journal.CompressionLevel < 1 || c.Journal.CompressionLevel > 4 {
			return fmt.Errorf("journal compression level must be between 1 and 4")
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}

	return nil
}

// Range parses the seed window
func (c *Config) Range() (types.Range, error) {
	start, err := time.Parse(time.RFC3339Nano, c.Seed.Start)
	if err != nil {
		return types.Range{}, fmt.Errorf("invalid seed start: %w", err)
	}
	end, err := time.Parse(time.RFC3339Nano, c.Seed.End)
	if err != nil {
		return types.Range{}, fmt.Errorf("invalid seed end: %w", err)
	}
	if !start.Before(end) {
		return types.Range{}, fmt.Errorf("seed start %s must be before end %s", c.Seed.Start, c.Seed.End)
	}
	if c.Seed.Step <= 0 {
		return types.Range{}, fmt.Errorf("seed step must be positive")
	}
	return types.Range{Start: start, End: end, Step: c.Seed.Step}, nil
}

// LoadToken returns the API token, reading the token file unless a token
// was supplied through the environment
func (c *Config) LoadToken() (string, error) {
	if c.Influx.Token != "" {
		return c.Influx.Token, nil
	}

	data, err := os.ReadFile(c.Influx.TokenFile)
	if err != nil {
		return "", fmt.Errorf("failed to read token file: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", errors.New("token file is empty")
	}
	return token, nil
}

// ToSeederConfig converts to seeder.Config
func (c *Config) ToSeederConfig() (seeder.Config, error) {
	r, err := c.Range()
	if err != nil {
		return seeder.Config{}, err
	}
	return seeder.Config{
		Bucket:      c.Seed.Bucket,
		Measurement: c.Seed.Measurement,
		Range:       r,
		BatchSize:   c.Seed.BatchSize,
		SettleDelay: c.Seed.SettleDelay,
	}, nil
}

// ToJournalConfig converts to journal.Config
func (c *Config) ToJournalConfig() *journal.Config {
	return &journal.Config{
		Path:             c.Journal.Path,
		CompressionLevel: c.Journal.CompressionLevel,
	}
}

// ToInfluxOptions converts to influx.Options
func (c *Config) ToInfluxOptions(token string, logger *zap.Logger) influx.Options {
	return influx.Options{
		URL:             c.Influx.URL,
		Token:           token,
		OrgID:           c.Influx.OrgID,
		Org:             c.Influx.Org,
		Timeout:         c.Influx.Timeout,
		Gzip:            c.Influx.Gzip,
		WritesPerSecond: c.Influx.WritesPerSecond,
		Logger:          logger,
	}
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
