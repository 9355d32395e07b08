package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"mxshs/oddscrawler/src/analysis"
	"mxshs/oddscrawler/src/domain"
	"mxshs/oddscrawler/src/storage"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newAnalyzeCmd() *cobra.Command {
	var stake string

	cmd := &cobra.Command{
		Use:   "analyze <csv>...",
		Short: "look for arbitrage across stored sessions.",
		Long: "compare the latest record of every source found in the given csv files " +
			"and print the markets whose best prices add up to an arbitrage.",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			total, err := decimal.NewFromString(stake)
			if err != nil || !total.IsPositive() {
				return fmt.Errorf("%w: invalid stake %q", domain.ErrInvalidConfig, stake)
			}

			var records []domain.OddsRecord
			for _, path := range args {
				recs, err := storage.ReadCSV(path)
				if err != nil {
					return err
				}
				records = append(records, recs...)
			}

			latest := analysis.LatestBySource(records)
			opps := analysis.FindOpportunities(latest, total)

			return printOpportunities(cmd.OutOrStdout(), latest, opps, total)
		},
	}

	cmd.Flags().StringVar(&stake, "stake", "100", "total stake to distribute")

	return cmd
}

func printOpportunities(w io.Writer, latest []domain.OddsRecord, opps []analysis.Opportunity, stake decimal.Decimal) error {
	sources := make([]string, 0, len(latest))
	for _, rec := range latest {
		sources = append(sources, rec.Source)
	}
	fmt.Fprintf(w, "compared sources: %s\n", strings.Join(sources, ", "))

	if len(opps) == 0 {
		fmt.Fprintln(w, "no arbitrage found")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, opp := range opps {
		fmt.Fprintf(tw, "%s\tprofit %s%%\tcombined probability %s\treturn on %s: %s\n",
			opp.Line,
			opp.ProfitMarginPercent.StringFixed(2),
			opp.TotalImpliedProbability.StringFixed(4),
			stake.StringFixed(2),
			opp.Profit.StringFixed(2),
		)
		for _, o := range opp.Outcomes {
			fmt.Fprintf(tw, "\t%s\t%s @ %s\tstake %s\n",
				o,
				opp.Sources[o],
				domain.FormatOdds(opp.BestOdds[o]),
				opp.Stakes[o].StringFixed(2),
			)
		}
	}

	return tw.Flush()
}
