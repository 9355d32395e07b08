package domain

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// MarketOdds maps a market name to the decimal odds of each of its outcomes.
type MarketOdds map[string]map[string]float64

// Match is what a parser knows about the event before the markets are read.
type Match struct {
	Source   string
	URL      string
	ID       string
	HomeTeam string
	AwayTeam string
}

// OddsRecord is one observation of a page at one point in time.
type OddsRecord struct {
	Timestamp time.Time  `json:"timestamp"`
	Source    string     `json:"source"`
	MatchID   string     `json:"match_id"`
	HomeTeam  string     `json:"home_team"`
	AwayTeam  string     `json:"away_team"`
	Markets   MarketOdds `json:"market_odds"`
	SourceURL string     `json:"source_url"`
	SessionID string     `json:"session_id"`
}

// NewOddsRecord builds a record only when every required market is complete.
// Markets outside the schema are dropped.
func NewOddsRecord(match Match, markets MarketOdds, capturedAt time.Time) (*OddsRecord, error) {
	rec := &OddsRecord{
		Timestamp: capturedAt.UTC(),
		Source:    strings.TrimSpace(match.Source),
		MatchID:   strings.TrimSpace(match.ID),
		HomeTeam:  strings.TrimSpace(match.HomeTeam),
		AwayTeam:  strings.TrimSpace(match.AwayTeam),
		Markets:   canonical(markets),
		SourceURL: match.URL,
	}

	if rec.MatchID == "" {
		rec.MatchID = MatchID(rec.SourceURL, rec.HomeTeam, rec.AwayTeam)
	}

	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtraction, err)
	}

	return rec, nil
}

// Validate checks the fail-closed invariant on an already built record.
func (r *OddsRecord) Validate() error {
	if r.Source == "" {
		return fmt.Errorf("%w: empty source", ErrInvalidRecord)
	}
	if r.HomeTeam == "" || r.AwayTeam == "" {
		return fmt.Errorf(
			"%w: team names must not be empty (got %q, %q)",
			ErrInvalidRecord, r.HomeTeam, r.AwayTeam,
		)
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("%w: zero timestamp", ErrInvalidRecord)
	}

	for _, m := range Schema {
		outcomes, ok := r.Markets[m.Name]
		if !ok {
			return fmt.Errorf("%w: market %s missing", ErrInvalidRecord, m.Name)
		}
		for _, o := range m.Outcomes {
			v, ok := outcomes[o]
			if !ok {
				return fmt.Errorf("%w: outcome %s/%s missing", ErrInvalidRecord, m.Name, o)
			}
			if !ValidOdds(v) {
				return fmt.Errorf("%w: outcome %s/%s has invalid odds %v", ErrInvalidRecord, m.Name, o, v)
			}
		}
		for _, o := range m.Optional {
			if v, ok := outcomes[o]; ok && !ValidOdds(v) {
				return fmt.Errorf("%w: outcome %s/%s has invalid odds %v", ErrInvalidRecord, m.Name, o, v)
			}
		}
	}

	return nil
}

// Odds returns a single outcome value and whether it is present.
func (r *OddsRecord) Odds(market, outcome string) (float64, bool) {
	outcomes, ok := r.Markets[market]
	if !ok {
		return 0, false
	}
	v, ok := outcomes[outcome]
	return v, ok
}

// ValidOdds reports whether v is usable decimal odds.
func ValidOdds(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 1.0
}

func canonical(markets MarketOdds) MarketOdds {
	out := MarketOdds{}
	for _, m := range Schema {
		src, ok := markets[m.Name]
		if !ok {
			continue
		}
		dst := make(map[string]float64, len(m.Outcomes))
		for _, o := range m.All() {
			if v, ok := src[o]; ok {
				dst[o] = v
			}
		}
		out[m.Name] = dst
	}
	return out
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// MatchID takes the last non-empty URL path segment, falling back to a slug
// of the team names.
func MatchID(rawURL, home, away string) string {
	if u, err := url.Parse(rawURL); err == nil {
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if last := parts[len(parts)-1]; last != "" {
			return last
		}
	}

	slug := func(s string) string {
		return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "_"), "_")
	}

	return slug(home) + "_vs_" + slug(away)
}
