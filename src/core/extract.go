package core

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"mxshs/oddscrawler/src/domain"

	"github.com/PuerkitoBio/goquery"
)

const cookieTimeout = 3 * time.Second

// Open loads the page and waits until the parser's odds are rendered.
// Every error returned wraps domain.ErrSetup.
func Open(ctx context.Context, b Browser, p OddsParser, pageURL string) error {
	sel := p.Selectors()

	if err := b.Navigate(ctx, pageURL); err != nil {
		return fmt.Errorf("%w: navigate to %s: %w", domain.ErrSetup, pageURL, err)
	}

	if sel.Cookie != "" {
		cctx, cancel := context.WithTimeout(ctx, cookieTimeout)
		// No banner is the common case on repeated visits.
		_ = b.Click(cctx, sel.Cookie)
		cancel()
	}

	if err := b.WaitVisible(ctx, sel.Ready); err != nil {
		return fmt.Errorf("%w: page never showed %q: %w", domain.ErrSetup, sel.Ready, err)
	}

	return nil
}

// Extract reads the current state of an already opened page into a record.
// Every error returned wraps domain.ErrExtraction.
func Extract(ctx context.Context, b Browser, p OddsParser, pageURL string) (*domain.OddsRecord, error) {
	sel := p.Selectors()

	if err := b.WaitVisible(ctx, sel.Ready); err != nil {
		return nil, fmt.Errorf("%w: wait for %q: %w", domain.ErrExtraction, sel.Ready, err)
	}

	domNode, err := b.InnerHTML(ctx, sel.Root)
	if err != nil {
		return nil, fmt.Errorf("%w: read %q: %w", domain.ErrExtraction, sel.Root, err)
	}
	capturedAt := time.Now()

	reader := strings.NewReader(domNode)

	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrExtraction, err)
	}

	return ParseDocument(doc.Selection, p, pageURL, capturedAt)
}

// ParseDocument applies p to an already parsed page.
func ParseDocument(s *goquery.Selection, p OddsParser, pageURL string, capturedAt time.Time) (*domain.OddsRecord, error) {
	home, away, err := p.ParseMatchData(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrExtraction, p.Name(), err)
	}

	markets, err := p.ParseMatchBets(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrExtraction, p.Name(), err)
	}

	match := domain.Match{
		Source:   p.Name(),
		URL:      pageURL,
		HomeTeam: home,
		AwayTeam: away,
	}

	return domain.NewOddsRecord(match, markets, capturedAt)
}

// liveClock matches the running score or minute live pages append to names.
var liveClock = regexp.MustCompile(`\d+:\d+.*`)

// splitTeams splits a "Home - Away" headline on the first separator found.
func splitTeams(text string, separators []string) (string, string, bool) {
	text = strings.Join(strings.Fields(text), " ")

	for _, sep := range separators {
		parts := strings.SplitN(text, sep, 2)
		if len(parts) != 2 {
			continue
		}

		home := strings.TrimSpace(liveClock.ReplaceAllString(parts[0], ""))
		away := strings.TrimSpace(liveClock.ReplaceAllString(parts[1], ""))
		if home != "" && away != "" {
			return home, away, true
		}
	}

	return "", "", false
}

// missingOutcomes lists schema outcomes absent from markets, for error messages.
func missingOutcomes(markets domain.MarketOdds) []string {
	var missing []string
	for _, m := range domain.Schema {
		for _, o := range m.Outcomes {
			if _, ok := markets[m.Name][o]; !ok {
				missing = append(missing, m.Name+"/"+o)
			}
		}
	}
	return missing
}
