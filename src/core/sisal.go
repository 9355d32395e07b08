package core

import (
	"fmt"
	"strings"

	"mxshs/oddscrawler/src/domain"

	"github.com/PuerkitoBio/goquery"
)

// sisalPatterns maps outcomes to suffixes of the data-qa attribute of the
// odds buttons, most specific first.
var sisalPatterns = map[string]map[string][]string{
	domain.Market1X2: {
		"home": {"_3_0_1"},
		"draw": {"_3_0_2"},
		"away": {"_3_0_3"},
	},
	domain.MarketDoubleChance: {
		"1x": {"_99999_0_1"},
		"x2": {"_99999_0_2"},
		"12": {"_99999_0_3"},
	},
	domain.MarketOverUnder: {
		"under_1_5": {"_7989_150_1", "_150_1"},
		"over_1_5":  {"_7989_150_2", "_150_2"},
		"under_2_5": {"_7989_250_1", "_250_1"},
		"over_2_5":  {"_7989_250_2", "_250_2"},
		"under_3_5": {"_7989_350_1", "_350_1"},
		"over_3_5":  {"_7989_350_2", "_350_2"},
	},
	domain.MarketGoalNoGoal: {
		"goal":   {"_18_0_1"},
		"nogoal": {"_18_0_2"},
	},
}

func GetSisalParser() OddsParser {
	parser := SisalParser{}
	parser.name = "sisal"
	parser.hosts = []string{"sisal.it"}
	parser.selectors = Selector{
		Ready:  `button[data-qa$="_3_0_1"]`,
		Root:   `body`,
		Cookie: `#onetrust-accept-btn-handler`,
	}

	return &parser
}

type SisalParser struct {
	Parser
}

func (sp *SisalParser) ParseMatchData(s *goquery.Selection) (string, string, error) {
	title := strings.TrimSpace(
		s.Find(`button[data-qa="regulator-live-detail-dropdown-toggle"] div`).First().Text())

	if len(title) == 0 {
		return "", "", fmt.Errorf("could not find match title (possibly HTML changed)")
	}

	home, away, ok := splitTeams(title, []string{" - "})
	if !ok {
		return "", "", fmt.Errorf("could not split match title %q into teams", title)
	}

	return home, away, nil
}

func (sp *SisalParser) ParseMatchBets(s *goquery.Selection) (domain.MarketOdds, error) {
	markets := domain.MarketOdds{}

	for market, outcomes := range sisalPatterns {
		markets[market] = map[string]float64{}

		for outcome, patterns := range outcomes {
			if v, ok := sp.oddsByPattern(s, patterns); ok {
				markets[market][outcome] = v
			}
		}
	}

	if missing := missingOutcomes(markets); len(missing) > 0 {
		return nil, fmt.Errorf("missing odds for %s", strings.Join(missing, ", "))
	}

	return markets, nil
}

// oddsByPattern returns the odds of the first button whose data-qa ends with
// one of patterns. The value is the last span of the button; suspended
// markets show a lock icon instead and are skipped.
func (sp *SisalParser) oddsByPattern(s *goquery.Selection, patterns []string) (float64, bool) {
	for _, pattern := range patterns {
		var (
			value float64
			found bool
		)

		s.Find(fmt.Sprintf(`button[data-qa$="%s"]`, pattern)).EachWithBreak(
			func(i int, s *goquery.Selection) bool {
				v, err := domain.ParseOdds(s.Find(`span`).Last().Text())
				if err != nil {
					return true
				}

				value, found = v, true
				return false
			},
		)

		if found {
			return value, true
		}
	}

	return 0, false
}
