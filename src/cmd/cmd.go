package cmd

import (
	"mxshs/oddscrawler/src/version"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print version.",
		Long:  "print version.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			version.Printer(cmd.OutOrStdout())
		},
	}
}

// NewRootCmd assembles the command tree; the root command scrapes.
func NewRootCmd() *cobra.Command {
	rootCmd := newScrapeCmd()
	rootCmd.AddCommand(newAnalyzeCmd(), newVersionCmd())
	return rootCmd
}

func Execute() error {
	return NewRootCmd().Execute()
}
