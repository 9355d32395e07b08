package core

import (
	"fmt"
	"strings"

	"mxshs/oddscrawler/src/domain"

	"github.com/PuerkitoBio/goquery"
)

// labelSet maps the labels printed above the odds to canonical outcomes.
type labelSet map[string]string

var lottomaticaMarkets = []struct {
	market string
	// candidates are tried in order, the first fully present one wins
	candidates []labelSet
	container  string
}{
	{
		market:     domain.Market1X2,
		candidates: []labelSet{{"1": "home", "X": "draw", "2": "away"}},
		container:  `div.quote-wrapper`,
	},
	{
		market:     domain.MarketDoubleChance,
		candidates: []labelSet{{"1X": "1x", "X2": "x2", "12": "12"}},
		container:  `div.quote-wrapper`,
	},
	{
		market:     domain.MarketOverUnder,
		candidates: []labelSet{{"Over": "over_2_5", "Under": "under_2_5"}},
		container:  `div.quote-wrapper.column-2[data-spreadid="2.5"]`,
	},
	// the 1.5 and 3.5 lines are not always offered
	{
		market:     domain.MarketOverUnder,
		candidates: []labelSet{{"Over": "over_1_5", "Under": "under_1_5"}},
		container:  `div.quote-wrapper.column-2[data-spreadid="1.5"]`,
	},
	{
		market:     domain.MarketOverUnder,
		candidates: []labelSet{{"Over": "over_3_5", "Under": "under_3_5"}},
		container:  `div.quote-wrapper.column-2[data-spreadid="3.5"]`,
	},
	{
		market: domain.MarketGoalNoGoal,
		candidates: []labelSet{
			{"GOAL": "goal", "NOGOAL": "nogoal"},
			{"SI": "goal", "NO": "nogoal"},
			{"YES": "goal", "NO": "nogoal"},
			{"Gol": "goal", "No Gol": "nogoal"},
		},
		container: `div.quote-wrapper`,
	},
}

var lottomaticaTitles = []string{
	`h1.match-title`,
	`.match-header h1`,
	`.event-title`,
	`.teams-title`,
}

func GetLottomaticaParser() OddsParser {
	parser := LottomaticaParser{}
	parser.name = "lottomatica"
	parser.hosts = []string{"lottomatica.it"}
	parser.selectors = Selector{
		Ready:  `div.quote-wrapper .single-quota-wrapper`,
		Root:   `body`,
		Cookie: `#onetrust-accept-btn-handler`,
	}

	return &parser
}

type LottomaticaParser struct {
	Parser
}

func (lp *LottomaticaParser) ParseMatchData(s *goquery.Selection) (string, string, error) {
	for _, sel := range lottomaticaTitles {
		title := strings.TrimSpace(s.Find(sel).First().Text())
		if len(title) == 0 {
			continue
		}

		if home, away, ok := splitTeams(title, []string{" vs ", " - ", " V ", " v "}); ok {
			return home, away, nil
		}
	}

	return "", "", fmt.Errorf("could not parse team names (possibly HTML changed)")
}

func (lp *LottomaticaParser) ParseMatchBets(s *goquery.Selection) (domain.MarketOdds, error) {
	markets := domain.MarketOdds{}

	for _, m := range lottomaticaMarkets {
		for _, labels := range m.candidates {
			outcomes, ok := lp.findMarket(s.Find(m.container), labels)
			if !ok {
				continue
			}

			if markets[m.market] == nil {
				markets[m.market] = map[string]float64{}
			}
			for outcome, v := range outcomes {
				markets[m.market][outcome] = v
			}
			break
		}
	}

	if missing := missingOutcomes(markets); len(missing) > 0 {
		return nil, fmt.Errorf("missing odds for %s", strings.Join(missing, ", "))
	}

	return markets, nil
}

// findMarket returns the first container carrying every label of labels with
// a usable value. A disabled market has no value element and does not count.
func (lp *LottomaticaParser) findMarket(containers *goquery.Selection, labels labelSet) (map[string]float64, bool) {
	var (
		result map[string]float64
		found  bool
	)

	containers.EachWithBreak(func(i int, container *goquery.Selection) bool {
		outcomes := map[string]float64{}

		container.Find(`.single-quota-wrapper`).Each(func(i int, s *goquery.Selection) {
			label := strings.TrimSpace(s.Find(`.item--mercato span`).First().Text())
			outcome, ok := labels[label]
			if !ok {
				return
			}

			v, err := domain.ParseOdds(s.Find(`.item--valore span`).First().Text())
			if err != nil {
				return
			}

			outcomes[outcome] = v
		})

		if len(outcomes) == len(labels) {
			result, found = outcomes, true
			return false
		}

		return true
	})

	return result, found
}
