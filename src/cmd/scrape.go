package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mxshs/oddscrawler/src/config"
	"mxshs/oddscrawler/src/core"
	"mxshs/oddscrawler/src/domain"
	"mxshs/oddscrawler/src/log"
	"mxshs/oddscrawler/src/metrics"
	"mxshs/oddscrawler/src/scraper"
	"mxshs/oddscrawler/src/storage"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type scrapeFlags struct {
	config          string
	duration        time.Duration
	interval        time.Duration
	headless        bool
	source          string
	storage         string
	outputDir       string
	sessionID       string
	pageLoadTimeout time.Duration
	waitTimeout     time.Duration
	logLevel        string
	logFile         string
	metricsAddr     string
}

func newScrapeCmd() *cobra.Command {
	f := &scrapeFlags{}
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:   "oddscrawler <url>",
		Short: "poll a live betting page and store its odds.",
		Long: "poll a live betting page at a fixed interval for a bounded duration " +
			"and append every complete set of odds to the configured storage.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.resolve(cmd, args)
			if err != nil {
				return err
			}
			return runScrape(cmd, cfg)
		},
	}

	f.bind(cmd, defaults)

	return cmd
}

func (f *scrapeFlags) bind(cmd *cobra.Command, defaults *config.Config) {
	fs := cmd.Flags()
	fs.StringVar(&f.config, "config", "", "YAML configuration file")
	fs.DurationVar(&f.duration, "duration", defaults.Scrape.Duration, "how long to poll, 0 polls once")
	fs.DurationVar(&f.interval, "interval", defaults.Scrape.Interval, "time between polls")
	fs.BoolVar(&f.headless, "headless", defaults.Browser.Headless, "run the browser without a window")
	fs.StringVar(&f.source, "source", "", fmt.Sprintf("parser to use %v, default picked from the url", core.AvailableParsers()))
	fs.StringVar(&f.storage, "storage", defaults.Storage.Backend, fmt.Sprintf("storage backend %v", storage.Backends()))
	fs.StringVar(&f.outputDir, "output-dir", defaults.Storage.OutputDir, "directory of csv output")
	fs.StringVar(&f.sessionID, "session-id", "", "session id, default derived from source and start time")
	fs.DurationVar(&f.pageLoadTimeout, "page-load-timeout", defaults.Scrape.PageLoadTimeout, "time allowed for the first page load")
	fs.DurationVar(&f.waitTimeout, "wait-timeout", defaults.Scrape.WaitTimeout, "time allowed for each poll")
	fs.StringVar(&f.logLevel, "log-level", defaults.Log.Level, "debug, info, warn or error")
	fs.StringVar(&f.logFile, "log-file", "", "also write JSON logs to this rotated file")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
}

// resolve layers the flags the user set over the loaded configuration.
func (f *scrapeFlags) resolve(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := config.Load(f.config)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}

	changed := cmd.Flags().Changed
	if changed("duration") {
		cfg.Scrape.Duration = f.duration
	}
	if changed("interval") {
		cfg.Scrape.Interval = f.interval
	}
	if changed("headless") {
		cfg.Browser.Headless = f.headless
	}
	if changed("source") {
		cfg.Scrape.Source = f.source
	}
	if changed("storage") {
		cfg.Storage.Backend = f.storage
	}
	if changed("output-dir") {
		cfg.Storage.OutputDir = f.outputDir
	}
	if changed("session-id") {
		cfg.Storage.SessionID = f.sessionID
	}
	if changed("page-load-timeout") {
		cfg.Scrape.PageLoadTimeout = f.pageLoadTimeout
	}
	if changed("wait-timeout") {
		cfg.Scrape.WaitTimeout = f.waitTimeout
	}
	if changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if changed("log-file") {
		cfg.Log.File = f.logFile
	}
	if changed("metrics-addr") {
		cfg.Metrics.Addr = f.metricsAddr
	}

	if len(args) == 1 {
		cfg.Scrape.URL = args[0]
	}
	if cfg.Scrape.URL == "" {
		return nil, fmt.Errorf("%w: a url is required", domain.ErrInvalidConfig)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func selectParser(cfg *config.Config) (core.OddsParser, error) {
	if cfg.Scrape.Source != "" {
		return core.GetParser(cfg.Scrape.Source)
	}
	return core.ParserForURL(cfg.Scrape.URL)
}

func runScrape(cmd *cobra.Command, cfg *config.Config) error {
	parser, err := selectParser(cfg)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}

	logger, closer, err := log.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}
	defer closer.Close()
	defer logger.Sync()

	st, err := storage.New(cfg.Storage.Backend,
		append(cfg.Storage.Options(parser.Name()), storage.WithLogger(logger))...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Addr != "" {
		srv := metrics.NewServer(cfg.Metrics.Addr, m)
		go func() {
			if err := srv.Serve(); err != nil {
				logger.Error("metrics server", zap.Error(err))
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	browser, err := core.NewChrome(core.ChromeOptions{
		Headless:  cfg.Browser.Headless,
		UserAgent: cfg.Browser.UserAgent,
		Width:     cfg.Browser.Width,
		Height:    cfg.Browser.Height,
		ExecPath:  cfg.Browser.ExecPath,
	}, logger)
	if err != nil {
		st.Close()
		return fmt.Errorf("%w: %w", domain.ErrSetup, err)
	}
	defer browser.Close()

	s := scraper.New(browser, parser, st, scraper.WithLogger(logger), scraper.WithMetrics(m))

	summary, err := s.Run(ctx, scraper.Params{
		URL:             cfg.Scrape.URL,
		Duration:        cfg.Scrape.Duration,
		Interval:        cfg.Scrape.Interval,
		PageLoadTimeout: cfg.Scrape.PageLoadTimeout,
		WaitTimeout:     cfg.Scrape.WaitTimeout,
	})
	if summary != nil {
		fmt.Fprint(cmd.OutOrStdout(), summary.String())
	}

	return err
}
