package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Market1X2          = "1x2"
	MarketDoubleChance = "double_chance"
	MarketOverUnder    = "over_under"
	MarketGoalNoGoal   = "goal_nogoal"
)

// Market is one entry of the canonical schema.
type Market struct {
	Name string
	// Outcomes must all be present for a record to exist.
	Outcomes []string
	// Optional outcomes are kept when a page shows them and left blank otherwise.
	Optional []string
}

// All lists required outcomes first, then optional ones, in column order.
func (m Market) All() []string {
	return append(append([]string{}, m.Outcomes...), m.Optional...)
}

// Schema is the fixed market set every record must carry, in column order.
var Schema = []Market{
	{Name: Market1X2, Outcomes: []string{"home", "draw", "away"}},
	{Name: MarketDoubleChance, Outcomes: []string{"1x", "x2", "12"}},
	{
		Name:     MarketOverUnder,
		Outcomes: []string{"over_2_5", "under_2_5"},
		Optional: []string{"over_1_5", "under_1_5", "over_3_5", "under_3_5"},
	},
	{Name: MarketGoalNoGoal, Outcomes: []string{"goal", "nogoal"}},
}

// OddsPrecision is the number of decimal places odds are rounded to.
const OddsPrecision = 2

var baseColumns = []string{
	"timestamp",
	"session_id",
	"source",
	"match_id",
	"source_url",
	"home_team",
	"away_team",
}

// Column is the flattened column name of a market outcome.
func Column(market, outcome string) string {
	return "market_" + market + "_" + outcome
}

// Columns returns the flattened header, base fields first.
func Columns() []string {
	cols := append([]string{}, baseColumns...)
	for _, m := range Schema {
		for _, o := range m.All() {
			cols = append(cols, Column(m.Name, o))
		}
	}
	return cols
}

// Row flattens the record in Columns order.
func (r *OddsRecord) Row() []string {
	row := []string{
		r.Timestamp.UTC().Format(time.RFC3339Nano),
		r.SessionID,
		r.Source,
		r.MatchID,
		r.SourceURL,
		r.HomeTeam,
		r.AwayTeam,
	}
	for _, m := range Schema {
		for _, o := range m.All() {
			v, ok := r.Odds(m.Name, o)
			if !ok {
				row = append(row, "")
				continue
			}
			row = append(row, FormatOdds(v))
		}
	}
	return row
}

// Fields is Row keyed by column name.
func (r *OddsRecord) Fields() map[string]string {
	cols := Columns()
	row := r.Row()
	fields := make(map[string]string, len(cols))
	for i, c := range cols {
		fields[c] = row[i]
	}
	return fields
}

// RecordFromFields rebuilds a record from a flattened mapping. The same
// fail-closed rules as NewOddsRecord apply.
func RecordFromFields(fields map[string]string) (*OddsRecord, error) {
	ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(fields["timestamp"]))
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp: %w", ErrInvalidRecord, err)
	}

	markets := MarketOdds{}
	for _, m := range Schema {
		outcomes := map[string]float64{}
		for _, o := range m.All() {
			raw, ok := fields[Column(m.Name, o)]
			if !ok || strings.TrimSpace(raw) == "" {
				continue
			}
			v, err := ParseOdds(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrInvalidRecord, Column(m.Name, o), err)
			}
			outcomes[o] = v
		}
		markets[m.Name] = outcomes
	}

	rec := &OddsRecord{
		Timestamp: ts.UTC(),
		SessionID: fields["session_id"],
		Source:    fields["source"],
		MatchID:   fields["match_id"],
		SourceURL: fields["source_url"],
		HomeTeam:  fields["home_team"],
		AwayTeam:  fields["away_team"],
		Markets:   markets,
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	return rec, nil
}

// ParseOdds reads decimal odds as printed on a page ("1,85", " 2.10 ").
func ParseOdds(text string) (float64, error) {
	text = strings.TrimSpace(strings.ReplaceAll(text, ",", "."))
	if text == "" {
		return 0, fmt.Errorf("empty odds text")
	}

	d, err := decimal.NewFromString(text)
	if err != nil {
		return 0, fmt.Errorf("parse odds %q: %w", text, err)
	}

	v := d.Round(OddsPrecision).InexactFloat64()
	if !ValidOdds(v) {
		return 0, fmt.Errorf("odds %q out of range (must be > 1.0)", text)
	}

	return v, nil
}

// FormatOdds prints odds with the canonical precision.
func FormatOdds(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(OddsPrecision)
}
