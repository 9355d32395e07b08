package core

import (
	"context"

	"mxshs/oddscrawler/src/domain"

	"github.com/PuerkitoBio/goquery"
)

// Browser is the subset of browser automation the scraper consumes.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, sel string) error
	Click(ctx context.Context, sel string) error
	Text(ctx context.Context, sel string) (string, error)
	InnerHTML(ctx context.Context, sel string) (string, error)
	Close() error
}

// OddsParser turns the DOM of one betting site into the canonical markets.
type OddsParser interface {
	Name() string
	Hosts() []string
	Selectors() Selector
	ParseMatchData(s *goquery.Selection) (home string, away string, err error)
	ParseMatchBets(s *goquery.Selection) (domain.MarketOdds, error)
}

// Parser carries the site description shared by every OddsParser.
type Parser struct {
	name      string
	hosts     []string
	selectors Selector
}

func (p *Parser) Name() string {
	return p.name
}

func (p *Parser) Hosts() []string {
	return p.hosts
}

func (p *Parser) Selectors() Selector {
	return p.selectors
}

type Selector struct {
	// Ready is visible once the odds have been rendered.
	Ready string
	// Root is the element whose inner HTML is handed to the parser.
	Root   string
	Cookie string
}
