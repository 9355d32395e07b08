package analysis

import (
	"errors"
	"fmt"
	"sort"

	"mxshs/oddscrawler/src/domain"

	"github.com/shopspring/decimal"
)

// Line is a set of outcomes of one market that covers every result, so
// backing all of them at the best prices can lock in a profit.
type Line struct {
	Name     string
	Market   string
	Outcomes []string
}

// ArbitrageLines are priced in this order.
var ArbitrageLines = []Line{
	{Name: domain.Market1X2, Market: domain.Market1X2, Outcomes: []string{"home", "draw", "away"}},
	{Name: "over_under_2_5", Market: domain.MarketOverUnder, Outcomes: []string{"over_2_5", "under_2_5"}},
	{Name: "over_under_3_5", Market: domain.MarketOverUnder, Outcomes: []string{"over_3_5", "under_3_5"}},
	{Name: domain.MarketGoalNoGoal, Market: domain.MarketGoalNoGoal, Outcomes: []string{"goal", "nogoal"}},
}

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Opportunity is a market where the best prices across sources imply a total
// probability below one.
type Opportunity struct {
	Line     string
	Market   string
	Outcomes []string
	// ProfitMarginPercent is the guaranteed return on the total stake.
	ProfitMarginPercent     decimal.Decimal
	TotalImpliedProbability decimal.Decimal
	BestOdds                map[string]float64
	Sources                 map[string]string
	// Stakes split the requested total so every outcome pays the same.
	Stakes map[string]decimal.Decimal
	Profit decimal.Decimal
}

func ImpliedProbability(odds float64) (decimal.Decimal, error) {
	if odds <= 0 {
		return decimal.Zero, fmt.Errorf("odds must be positive, got %v", odds)
	}
	return one.Div(decimal.NewFromFloat(odds)), nil
}

// Margin is the bookmaker margin of a set of implied probabilities. A
// negative margin is an arbitrage.
func Margin(probabilities []decimal.Decimal) decimal.Decimal {
	return decimal.Sum(decimal.Zero, probabilities...).Sub(one)
}

// StakeDistribution splits total across outcomes so that each pays the same.
func StakeDistribution(odds []float64, total decimal.Decimal) ([]decimal.Decimal, error) {
	if len(odds) == 0 {
		return nil, errors.New("no odds given")
	}

	inverse := decimal.Zero
	for _, o := range odds {
		p, err := ImpliedProbability(o)
		if err != nil {
			return nil, err
		}
		inverse = inverse.Add(p)
	}

	stakes := make([]decimal.Decimal, 0, len(odds))
	for _, o := range odds {
		stakes = append(stakes, total.Div(inverse.Mul(decimal.NewFromFloat(o))).Round(2))
	}

	return stakes, nil
}

// LatestBySource keeps the most recent record of every source, ordered by
// source name.
func LatestBySource(records []domain.OddsRecord) []domain.OddsRecord {
	latest := map[string]domain.OddsRecord{}
	for _, rec := range records {
		if cur, ok := latest[rec.Source]; !ok || rec.Timestamp.After(cur.Timestamp) {
			latest[rec.Source] = rec
		}
	}

	out := make([]domain.OddsRecord, 0, len(latest))
	for _, rec := range latest {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })

	return out
}

// FindOpportunities compares records of the same event from different
// sources. At least two records carrying a line are needed to price it.
func FindOpportunities(records []domain.OddsRecord, stake decimal.Decimal) []Opportunity {
	if len(records) < 2 {
		return nil
	}

	var out []Opportunity
	for _, line := range ArbitrageLines {
		if opp, ok := analyzeLine(records, line, stake); ok {
			out = append(out, opp)
		}
	}

	return out
}

func analyzeLine(records []domain.OddsRecord, line Line, stake decimal.Decimal) (Opportunity, bool) {
	market, outcomes := line.Market, line.Outcomes

	var complete []domain.OddsRecord
	for _, rec := range records {
		if hasAll(rec, market, outcomes) {
			complete = append(complete, rec)
		}
	}
	if len(complete) < 2 {
		return Opportunity{}, false
	}

	opp := Opportunity{
		Line:     line.Name,
		Market:   market,
		Outcomes: outcomes,
		BestOdds: map[string]float64{},
		Sources:  map[string]string{},
		Stakes:   map[string]decimal.Decimal{},
	}

	best := make([]float64, 0, len(outcomes))
	probabilities := make([]decimal.Decimal, 0, len(outcomes))
	for _, o := range outcomes {
		for _, rec := range complete {
			v, _ := rec.Odds(market, o)
			if v > opp.BestOdds[o] {
				opp.BestOdds[o] = v
				opp.Sources[o] = rec.Source
			}
		}

		p, err := ImpliedProbability(opp.BestOdds[o])
		if err != nil {
			return Opportunity{}, false
		}
		best = append(best, opp.BestOdds[o])
		probabilities = append(probabilities, p)
	}

	margin := Margin(probabilities)
	if !margin.IsNegative() {
		return Opportunity{}, false
	}

	opp.ProfitMarginPercent = margin.Abs().Mul(hundred).Round(2)
	opp.TotalImpliedProbability = margin.Add(one).Round(4)
	opp.Profit = stake.Mul(opp.ProfitMarginPercent).Div(hundred).Round(2)

	stakes, err := StakeDistribution(best, stake)
	if err != nil {
		return Opportunity{}, false
	}
	for i, o := range outcomes {
		opp.Stakes[o] = stakes[i]
	}

	return opp, true
}

func hasAll(rec domain.OddsRecord, market string, outcomes []string) bool {
	for _, o := range outcomes {
		if v, ok := rec.Odds(market, o); !ok || !domain.ValidOdds(v) {
			return false
		}
	}
	return len(outcomes) > 0
}
