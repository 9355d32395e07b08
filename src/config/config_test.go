package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"mxshs/oddscrawler/src/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10*time.Minute, cfg.Scrape.Duration)
	assert.Equal(t, 10*time.Second, cfg.Scrape.Interval)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, "csv", cfg.Storage.Backend)
}

func TestLoad(t *testing.T) {
	cfg, err := Load("testdata/config.yaml")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 30*time.Minute, cfg.Scrape.Duration)
	assert.Equal(t, 15*time.Second, cfg.Scrape.Interval)
	// untouched keys keep their defaults
	assert.Equal(t, 30*time.Second, cfg.Scrape.PageLoadTimeout)
	assert.Equal(t, 1920, cfg.Browser.Width)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "postgres", cfg.Storage.Backend)
	assert.Equal(t, ":9102", cfg.Metrics.Addr)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load("testdata/missing.yaml")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scrape: [1, 2"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"DB_HOST":         "db.internal",
		"DB_PORT":         "5433",
		"DB_USER":         "scraper",
		"DB_PASS":         "secret",
		"DB":              "odds",
		"REDIS_ADDR":      "redis:6379",
		"ODDS_OUTPUT_DIR": "/var/lib/odds",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	cfg.ApplyEnv(lookup)

	assert.Equal(t, "db.internal", cfg.Storage.Database.Host)
	assert.Equal(t, "secret", cfg.Storage.Database.Password)
	assert.Equal(t, "redis:6379", cfg.Storage.Redis.Addr)
	assert.Equal(t, "/var/lib/odds", cfg.Storage.OutputDir)
	assert.Empty(t, cfg.Storage.DSN)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ODDS_TEST_DOTENV=loaded\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("ODDS_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "loaded", os.Getenv("ODDS_TEST_DOTENV"))
}

func TestConnString(t *testing.T) {
	db := DatabaseConfig{Host: "localhost", Port: "5432", User: "u", Password: "p", Name: "odds"}

	pg := StorageConfig{Backend: "postgres", Database: db}
	assert.Equal(t, "host=localhost port=5432 user=u password=p dbname=odds sslmode=disable", pg.ConnString())

	db.Port = "3306"
	my := StorageConfig{Backend: "mysql", Database: db}
	assert.Equal(t, "u:p@tcp(localhost:3306)/odds?parseTime=true", my.ConnString())

	explicit := StorageConfig{Backend: "mysql", DSN: "root@/x", Database: db}
	assert.Equal(t, "root@/x", explicit.ConnString())

	assert.Empty(t, StorageConfig{Backend: "csv"}.ConnString())

	// names are matched the way storage.New matches them
	mixed := StorageConfig{Backend: " Postgres", Database: db}
	assert.Equal(t, "host=localhost port=3306 user=u password=p dbname=odds sslmode=disable", mixed.ConnString())
}

func TestValidate_BackendCase(t *testing.T) {
	for _, name := range []string{"CSV ", "Postgres", " mySQL", "REDIS", ""} {
		cfg := Default()
		cfg.Storage.Backend = name
		assert.NoError(t, cfg.Validate(), name)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"negative duration", func(c *Config) { c.Scrape.Duration = -time.Second }},
		{"zero interval", func(c *Config) { c.Scrape.Interval = 0 }},
		{"negative timeout", func(c *Config) { c.Scrape.WaitTimeout = -time.Second }},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "sqlite" }},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad port", func(c *Config) { c.Storage.Database.Port = "fivefour" }},
		{"bad window", func(c *Config) { c.Browser.Width = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			assert.ErrorIs(t, cfg.Validate(), domain.ErrInvalidConfig)
		})
	}

	oneShot := Default()
	oneShot.Scrape.Duration, oneShot.Scrape.Interval = 0, 0
	assert.NoError(t, oneShot.Validate())
}
