package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"mxshs/oddscrawler/src/domain"
	"mxshs/oddscrawler/src/storage"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Scrape  ScrapeConfig  `yaml:"scrape"`
	Browser BrowserConfig `yaml:"browser"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type ScrapeConfig struct {
	URL string `yaml:"url"`
	// Source forces a parser instead of picking one by host.
	Source          string        `yaml:"source"`
	Duration        time.Duration `yaml:"duration"`
	Interval        time.Duration `yaml:"interval"`
	PageLoadTimeout time.Duration `yaml:"page_load_timeout"`
	WaitTimeout     time.Duration `yaml:"wait_timeout"`
}

type BrowserConfig struct {
	Headless  bool   `yaml:"headless"`
	UserAgent string `yaml:"user_agent"`
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	ExecPath  string `yaml:"exec_path"`
}

type StorageConfig struct {
	Backend   string `yaml:"backend"`
	OutputDir string `yaml:"output_dir"`
	Prefix    string `yaml:"prefix"`
	SessionID string `yaml:"session_id"`
	// DSN wins over Database when both are set.
	DSN      string         `yaml:"dsn"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	// File enables a rotated JSON log file next to stdout.
	File string `yaml:"file"`
}

type MetricsConfig struct {
	// Addr of the /metrics listener; empty disables it.
	Addr string `yaml:"addr"`
}

func Default() *Config {
	return &Config{
		Scrape: ScrapeConfig{
			Duration:        10 * time.Minute,
			Interval:        10 * time.Second,
			PageLoadTimeout: 30 * time.Second,
			WaitTimeout:     10 * time.Second,
		},
		Browser: BrowserConfig{
			Headless: true,
			Width:    1920,
			Height:   1080,
		},
		Storage: StorageConfig{
			Backend:   storage.BackendCSV,
			OutputDir: "data",
			Prefix:    "odds",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load layers the YAML file at path (optional), the .env file and the
// environment over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.LookupEnv)

	return cfg, nil
}

// LoadDotEnv exports the variables of the given files. Missing files are
// skipped; variables already set are kept.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides connection settings from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	set(&c.Storage.Database.Host, "DB_HOST")
	set(&c.Storage.Database.Port, "DB_PORT")
	set(&c.Storage.Database.User, "DB_USER")
	set(&c.Storage.Database.Password, "DB_PASS")
	set(&c.Storage.Database.Name, "DB")
	set(&c.Storage.DSN, "DB_DSN")
	set(&c.Storage.Redis.Addr, "REDIS_ADDR")
	set(&c.Storage.Redis.Password, "REDIS_PASSWORD")
	set(&c.Storage.OutputDir, "ODDS_OUTPUT_DIR")
}

func (c *Config) Validate() error {
	var errs []error

	s := c.Scrape
	if s.Duration < 0 {
		errs = append(errs, fmt.Errorf("duration must not be negative, got %s", s.Duration))
	}
	if s.Duration > 0 && s.Interval <= 0 {
		errs = append(errs, fmt.Errorf("interval must be positive when duration is %s", s.Duration))
	}
	if s.PageLoadTimeout < 0 || s.WaitTimeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}

	if c.Browser.Width < 0 || c.Browser.Height < 0 {
		errs = append(errs, fmt.Errorf("invalid window size %dx%d", c.Browser.Width, c.Browser.Height))
	}

	if !knownBackend(c.Storage.Backend) {
		errs = append(errs, fmt.Errorf("unknown storage backend %q (available: %v)", c.Storage.Backend, storage.Backends()))
	}
	if _, err := c.Storage.Database.PortNumber(); err != nil {
		errs = append(errs, fmt.Errorf("invalid database port %q", c.Storage.Database.Port))
	}
	if c.Storage.Redis.TTL < 0 {
		errs = append(errs, errors.New("redis ttl must not be negative"))
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}
	return nil
}

func knownBackend(name string) bool {
	name = storage.NormalizeBackend(name)
	for _, b := range storage.Backends() {
		if b == name {
			return true
		}
	}
	return false
}

// ConnString is the DSN handed to the SQL driver of the configured backend.
func (s StorageConfig) ConnString() string {
	if s.DSN != "" {
		return s.DSN
	}

	db := s.Database
	if db.Host == "" {
		return ""
	}

	switch storage.NormalizeBackend(s.Backend) {
	case storage.BackendPostgres:
		return fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			db.Host,
			db.Port,
			db.User,
			db.Password,
			db.Name,
		)
	case storage.BackendMySQL:
		cfg := mysql.NewConfig()
		cfg.Net = "tcp"
		cfg.Addr = db.Host
		if db.Port != "" {
			cfg.Addr = net.JoinHostPort(db.Host, db.Port)
		}
		cfg.User = db.User
		cfg.Passwd = db.Password
		cfg.DBName = db.Name
		cfg.ParseTime = true
		return cfg.FormatDSN()
	}

	return ""
}

// Options translates the storage section for storage.New.
func (s StorageConfig) Options(label string) []storage.Option {
	return []storage.Option{
		storage.WithLabel(label),
		storage.WithSessionID(s.SessionID),
		storage.WithOutputDir(s.OutputDir),
		storage.WithPrefix(s.Prefix),
		storage.WithDSN(s.ConnString()),
		storage.WithRedis(s.Redis.Addr, s.Redis.Password, s.Redis.DB),
		storage.WithTTL(s.Redis.TTL),
	}
}

// PortNumber returns the database port as a number, 0 when unset.
func (d DatabaseConfig) PortNumber() (int, error) {
	if d.Port == "" {
		return 0, nil
	}
	return strconv.Atoi(d.Port)
}
