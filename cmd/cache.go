package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/oxide-lab/discover/internal/searchcache"
)

var (
	flagCacheClear  bool
	flagCacheRemove string
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Show or clear cached search results",
	Long: `List every cached query with its pages, or drop cached pages.

Examples:
  discover cache
  discover cache --remove "llama 3"
  discover cache --remove ""        # the query-less trending pages
  discover cache --clear`,
	Args: cobra.NoArgs,
	RunE: runCache,
}

func init() {
	cacheCmd.Flags().BoolVar(&flagCacheClear, "clear", false, "Drop every cached page")
	cacheCmd.Flags().StringVar(&flagCacheRemove, "remove", "", "Drop every cached page of one query")
	cacheCmd.MarkFlagsMutuallyExclusive("clear", "remove")
	rootCmd.AddCommand(cacheCmd)
}

func runCache(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, true)
	if err != nil {
		return err
	}
	defer s.close()

	if flagCacheClear {
		s.svc.ClearCache()
		if err := s.svc.Save(ctx); err != nil {
			return err
		}
		printOK("", "search cache cleared")
		return nil
	}

	if cmd.Flags().Changed("remove") {
		label := queryLabel(searchcache.NormalizeQuery(flagCacheRemove))
		if !s.svc.RemoveQuery(flagCacheRemove) {
			printMiss(label, "not cached")
			return nil
		}
		if err := s.svc.Save(ctx); err != nil {
			return err
		}
		printOK(label, "removed from search cache")
		return nil
	}

	entries := s.svc.Snapshot().Entries()
	printSection("Search Cache")
	if len(entries) == 0 {
		printMiss("", "cache is empty")
		return nil
	}
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  QUERY\tPAGES\tOFFSETS\tITEMS\tUPDATED")
	for _, e := range entries {
		fmt.Fprintf(w, "  %s\t%d\t%s\t%d\t%s\n",
			queryLabel(e.Query), len(e.Pages), offsetsLabel(e), e.ItemCount(), e.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	_ = w.Flush()
	fmt.Fprintf(stdout, "\n%d of %d entries used\n", len(entries), s.cfg.Cache.MaxEntries)
	return nil
}

func queryLabel(q string) string {
	if q == searchcache.TrendingKey {
		return "(trending)"
	}
	return q
}

func offsetsLabel(e searchcache.Entry) string {
	out := ""
	for i, p := range e.Pages {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprint(p.Offset)
	}
	return out
}
