package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "http://localhost:8086", cfg.Influx.URL)
	assert.Equal(t, "9c7a0f5daecd9269", cfg.Influx.OrgID)
	assert.Equal(t, "QBRX", cfg.Influx.Org)
	assert.Equal(t, "test", cfg.Seed.Bucket)
	assert.Equal(t, "testMeasurement", cfg.Seed.Measurement)
	assert.Equal(t, time.Minute, cfg.Seed.Step)
	assert.Equal(t, 1000, cfg.Seed.BatchSize)
	assert.Equal(t, 100*time.Millisecond, cfg.Seed.SettleDelay)
	require.NoError(t, cfg.Validate())

	r, err := cfg.Range()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), r.Start.UTC())
	assert.Equal(t, time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC), r.End.UTC())
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("SEED_BUCKET", "scratch")
	t.Setenv("SEED_BATCH_SIZE", "250")
	t.Setenv("SEED_SETTLE_DELAY", "2s")
	t.Setenv("SEED_INFLUX_GZIP", "true")
	t.Setenv("SEED_WRITES_PER_SECOND", "12.5")
	t.Setenv("SEED_INFLUX_TOKEN", "from-env")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	assert.Equal(t, "scratch", cfg.Seed.Bucket)
	assert.Equal(t, 250, cfg.Seed.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.Seed.SettleDelay)
	assert.True(t, cfg.Influx.Gzip)
	assert.Equal(t, 12.5, cfg.Influx.WritesPerSecond)
	assert.Equal(t, "debug", cfg.Logging.Level)

	token, err := cfg.LoadToken()
	require.NoError(t, err)
	assert.Equal(t, "from-env", token)
}

func TestInvalidEnvironmentValuesKeepDefaults(t *testing.T) {
	t.Setenv("SEED_BATCH_SIZE", "lots")
	t.Setenv("SEED_STEP", "1 minute")

	cfg := DefaultConfig()
	assert.Equal(t, 1000, cfg.Seed.BatchSize)
	assert.Equal(t, time.Minute, cfg.Seed.Step)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	content := `
influx:
  url: http://influx.internal:8086
  org: acme
  gzip: true
seed:
  bucket: fixtures
  start: "2021-01-01T00:00:00Z"
  end: "2021-01-02T00:00:00Z"
  step: 30s
  settle_delay: 250ms
journal:
  enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("SEED_BUCKET", "from-env")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "http://influx.internal:8086", cfg.Influx.URL)
	assert.Equal(t, "acme", cfg.Influx.Org)
	assert.True(t, cfg.Influx.Gzip)
	// untouched keys keep their defaults
	assert.Equal(t, "9c7a0f5daecd9269", cfg.Influx.OrgID)
	assert.Equal(t, "testMeasurement", cfg.Seed.Measurement)
	// environment beats the file
	assert.Equal(t, "from-env", cfg.Seed.Bucket)
	assert.Equal(t, 30*time.Second, cfg.Seed.Step)
	assert.Equal(t, 250*time.Millisecond, cfg.Seed.SettleDelay)
	assert.False(t, cfg.Journal.Enabled)
	require.NoError(t, cfg.Validate())

	sc, err := cfg.ToSeederConfig()
	require.NoError(t, err)
	assert.Equal(t, "from-env", sc.Bucket)
	assert.Equal(t, 30*time.Second, sc.Range.Step)
	assert.Equal(t, 24*time.Hour, sc.Range.End.Sub(sc.Range.Start))
}

func TestLoadFromFileErrors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("seed: [not, a, map"), 0o644))
	_, err = LoadFromFile(path)
	assert.Error(t, err)
}

func TestLoadToken(t *testing.T) {
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Influx.Token = ""
	cfg.Influx.TokenFile = filepath.Join(dir, "token.txt")

	_, err := cfg.LoadToken()
	assert.Error(t, err, "missing file")

	require.NoError(t, os.WriteFile(cfg.Influx.TokenFile, []byte("  \n"), 0o600))
	_, err = cfg.LoadToken()
	assert.Error(t, err, "blank file")

	require.NoError(t, os.WriteFile(cfg.Influx.TokenFile, []byte("abc123==\n"), 0o600))
	token, err := cfg.LoadToken()
	require.NoError(t, err)
	assert.Equal(t, "abc123==", token)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty url", func(c *Config) { c.Influx.URL = "" }},
		{"relative url", func(c *Config) { c.Influx.URL = "localhost:8086/api" }},
		{"empty org id", func(c *Config) { c.Influx.OrgID = "" }},
		{"empty org", func(c *Config) { c.Influx.Org = "" }},
		{"no token source", func(c *Config) { c.Influx.Token = ""; c.Influx.TokenFile = "" }},
		{"negative pacing", func(c *Config) { c.Influx.WritesPerSecond = -1 }},
		{"empty bucket", func(c *Config) { c.Seed.Bucket = "" }},
		{"empty measurement", func(c *Config) { c.Seed.Measurement = "" }},
		{"measurement with newline", func(c *Config) { c.Seed.Measurement = "a\nb" }},
		{"measurement with carriage return", func(c *Config) { c.Seed.Measurement = "a\rb" }},
		{"negative timeout", func(c *Config) { c.Influx.Timeout = -time.Second }},
		{"bad start", func(c *Config) { c.Seed.Start = "yesterday" }},
		{"start after end", func(c *Config) { c.Seed.Start, c.Seed.End = c.Seed.End, c.Seed.Start }},
		{"zero step", func(c *Config) { c.Seed.Step = 0 }},
		{"zero batch", func(c *Config) { c.Seed.BatchSize = 0 }},
		{"negative settle", func(c *Config) { c.Seed.SettleDelay = -time.Second }},
		{"journal level", func(c *Config) { c.Journal.CompressionLevel = 5 }},
		{"journal path", func(c *Config) { c.Journal.Path = "" }},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("disabled journal skips journal checks", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Journal.Enabled = false
		cfg.Journal.Path = ""
		assert.NoError(t, cfg.Validate())
	})
}

func TestConversions(t *testing.T) {
	cfg := baseConfig()
	cfg.Influx.WritesPerSecond = 4
	cfg.Influx.Timeout = 250 * time.Millisecond

	opts := cfg.ToInfluxOptions("tok", nil)
	assert.Equal(t, "tok", opts.Token)
	assert.Equal(t, cfg.Influx.URL, opts.URL)
	assert.Equal(t, cfg.Influx.OrgID, opts.OrgID)
	assert.Equal(t, cfg.Influx.Org, opts.Org)
	assert.Equal(t, 4.0, opts.WritesPerSecond)
	assert.Equal(t, 250*time.Millisecond, opts.Timeout)

	jc := cfg.ToJournalConfig()
	assert.Equal(t, cfg.Journal.Path, jc.Path)
	assert.Equal(t, cfg.Journal.CompressionLevel, jc.CompressionLevel)
}
