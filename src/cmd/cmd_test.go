package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mxshs/oddscrawler/src/config"
	"mxshs/oddscrawler/src/domain"
	"mxshs/oddscrawler/src/storage"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sisalURL = "https://www.sisal.it/scommesse-live/evento/calcio/irlanda/premier-division/sligo-rovers-waterford-fc"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version:")
}

func TestScrapeCmd_InvalidArguments(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no url", []string{"--duration", "1m"}},
		{"zero interval", []string{sisalURL, "--interval", "0s"}},
		{"negative duration", []string{sisalURL, "--duration", "-1m"}},
		{"unknown storage", []string{sisalURL, "--storage", "sqlite"}},
		{"unknown source", []string{sisalURL, "--source", "leon"}},
		{"unsupported host", []string{"https://example.com/match/1"}},
		{"bad log level", []string{sisalURL, "--log-level", "loud"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.ErrorIs(t, err, domain.ErrInvalidConfig)
		})
	}

	_, err := execute(t, sisalURL, "another-url")
	assert.Error(t, err)
}

func TestScrapeFlags_Resolve(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
scrape:
  url: https://www.lottomatica.it/scommesse/live/calcio/inter-milan
  duration: 30m
  interval: 20s
storage:
  backend: redis
`), 0o644))

	f := &scrapeFlags{}
	cmd := &cobra.Command{}
	f.bind(cmd, config.Default())
	require.NoError(t, cmd.ParseFlags([]string{
		"--config", cfgPath,
		"--interval", "5s",
		"--headless=false",
		"--session-id", "manual",
	}))

	cfg, err := f.resolve(cmd, nil)
	require.NoError(t, err)

	// flags win over the file, the file over the defaults
	assert.Equal(t, 30*time.Minute, cfg.Scrape.Duration)
	assert.Equal(t, 5*time.Second, cfg.Scrape.Interval)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "redis", cfg.Storage.Backend)
	assert.Equal(t, "manual", cfg.Storage.SessionID)
	assert.Equal(t, 10*time.Second, cfg.Scrape.WaitTimeout)

	p, err := selectParser(cfg)
	require.NoError(t, err)
	assert.Equal(t, "lottomatica", p.Name())

	cfg, err = f.resolve(cmd, []string{sisalURL})
	require.NoError(t, err)
	assert.Equal(t, sisalURL, cfg.Scrape.URL)
}

func writeSession(t *testing.T, dir, source string, x12 [3]float64) string {
	t.Helper()
	ctx := context.Background()

	s, err := storage.New(storage.BackendCSV, storage.WithOutputDir(dir), storage.WithLabel(source))
	require.NoError(t, err)
	require.NoError(t, s.Initialize(ctx))

	rec, err := domain.NewOddsRecord(
		domain.Match{Source: source, URL: "https://" + source + ".it/inter-milan", HomeTeam: "Inter", AwayTeam: "Milan"},
		domain.MarketOdds{
			domain.Market1X2:          {"home": x12[0], "draw": x12[1], "away": x12[2]},
			domain.MarketDoubleChance: {"1x": 1.25, "x2": 1.60, "12": 1.30},
			domain.MarketOverUnder:    {"over_2_5": 1.85, "under_2_5": 1.90},
			domain.MarketGoalNoGoal:   {"goal": 1.80, "nogoal": 1.95},
		},
		time.Date(2026, 10, 19, 14, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	require.NoError(t, s.Store(ctx, *rec))
	require.NoError(t, s.Close())

	return s.Path()
}

func TestAnalyzeCmd(t *testing.T) {
	dir := t.TempDir()
	a := writeSession(t, dir, "sisal", [3]float64{2.50, 3.20, 3.00})
	b := writeSession(t, dir, "lottomatica", [3]float64{2.20, 3.60, 3.40})

	out, err := execute(t, "analyze", a, b)
	require.NoError(t, err)

	assert.Contains(t, out, "compared sources: lottomatica, sisal")
	assert.Contains(t, out, "1x2")
	assert.Contains(t, out, "profit 2.81%")
	assert.Contains(t, out, "sisal @ 2.50")
	assert.NotContains(t, out, "over_under")

	out, err = execute(t, "analyze", a)
	require.NoError(t, err)
	assert.Contains(t, out, "no arbitrage found")

	_, err = execute(t, "analyze", a, "--stake=-5")
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	_, err = execute(t, "analyze")
	assert.Error(t, err)
}
