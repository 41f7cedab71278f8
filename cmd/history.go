package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var flagHistoryClear bool

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show or clear recent search queries",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().BoolVar(&flagHistoryClear, "clear", false, "Forget every recorded query")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, true)
	if err != nil {
		return err
	}
	defer s.close()

	if flagHistoryClear {
		s.svc.ClearHistory()
		if err := s.svc.Save(ctx); err != nil {
			return err
		}
		printOK("", "search history cleared")
		return nil
	}

	h := s.svc.History()
	printSection("Search History")
	if len(h) == 0 {
		printMiss("", "no searches recorded")
		return nil
	}
	for i, q := range h {
		fmt.Fprintf(stdout, "  %2d. %s\n", i+1, q)
	}
	return nil
}
