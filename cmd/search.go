package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/oxide-lab/discover/internal/discovery"
	"github.com/oxide-lab/discover/internal/filter"
	"github.com/oxide-lab/discover/internal/model"
)

var (
	flagSearchOffset       int
	flagSearchLimit        int
	flagSearchRefresh      bool
	flagSearchOffline      bool
	flagSearchFormat       string
	flagSearchArch         []string
	flagSearchQuant        string
	flagSearchLicense      string
	flagSearchPipeline     string
	flagSearchLanguage     string
	flagSearchMinParams    float64
	flagSearchMaxParams    float64
	flagSearchSize         string
	flagSearchTags         []string
	flagSearchMinDownloads int64
	flagSearchSort         string
	flagSearchAsc          bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query...]",
	Short: "Search the model catalog through the local cache",
	Long: `Search the model catalog. Without a query the trending list is shown.
Pages already fetched are answered from the cache; when the catalog fails,
cached results for the same or a similar query are shown instead.`,
	RunE: runSearch,
}

func init() {
	f := searchCmd.Flags()
	f.IntVar(&flagSearchOffset, "offset", 0, "Index of the first result")
	f.IntVar(&flagSearchLimit, "limit", 0, "Results per page (default from config)")
	f.BoolVar(&flagSearchRefresh, "refresh", false, "Ignore the cached page and ask the catalog again")
	f.BoolVar(&flagSearchOffline, "offline", false, "Never call the catalog; answer from the cache only")
	f.StringVar(&flagSearchFormat, "format", filter.Any, "File format (any or gguf)")
	f.StringSliceVar(&flagSearchArch, "arch", nil, "Architecture, e.g. llama or qwen2 (repeatable)")
	f.StringVar(&flagSearchQuant, "quant", filter.Any, "Quantization, e.g. Q4_K_M")
	f.StringVar(&flagSearchLicense, "license", filter.Any, "License, e.g. apache-2.0")
	f.StringVar(&flagSearchPipeline, "pipeline", filter.Any, "Pipeline tag, e.g. text-generation")
	f.StringVar(&flagSearchLanguage, "language", filter.Any, "Language code, e.g. en")
	f.Float64Var(&flagSearchMinParams, "min-params", 0, "Minimum parameter count in billions (inclusive)")
	f.Float64Var(&flagSearchMaxParams, "max-params", 0, "Maximum parameter count in billions (exclusive)")
	f.StringVar(&flagSearchSize, "size", string(filter.SizeAny), "Primary file size: any, small (<=4GiB), medium (<=8GiB) or large")
	f.StringSliceVar(&flagSearchTags, "tag", nil, "Required tag (repeatable)")
	f.Int64Var(&flagSearchMinDownloads, "min-downloads", 0, "Minimum download count")
	f.StringVar(&flagSearchSort, "sort", string(filter.SortDownloads), "Sort by downloads, likes, updated or size")
	f.BoolVar(&flagSearchAsc, "asc", false, "Sort ascending")
	rootCmd.AddCommand(searchCmd)
}

// searchFilters builds the filter selection from the command's flags.
func searchFilters(cmd *cobra.Command) (filter.Filters, error) {
	f := filter.Default()
	f.Format = flagSearchFormat
	f.Architectures = flagSearchArch
	f.Quantization = flagSearchQuant
	f.License = flagSearchLicense
	f.PipelineTag = flagSearchPipeline
	f.Language = flagSearchLanguage
	f.Tags = flagSearchTags
	f.MinDownloads = flagSearchMinDownloads
	f.Descending = !flagSearchAsc

	if cmd.Flags().Changed("min-params") {
		v := flagSearchMinParams
		f.ParamMin = &v
	}
	if cmd.Flags().Changed("max-params") {
		v := flagSearchMaxParams
		f.ParamMax = &v
	}
	if f.ParamMin != nil && f.ParamMax != nil && *f.ParamMin >= *f.ParamMax {
		return f, fmt.Errorf("--min-params must be below --max-params")
	}

	var err error
	if f.Size, err = filter.ParseSize(flagSearchSize); err != nil {
		return f, err
	}
	if f.SortBy, err = filter.ParseSort(flagSearchSort); err != nil {
		return f, err
	}
	return f, nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	filters, err := searchFilters(cmd)
	if err != nil {
		return err
	}
	query := strings.Join(args, " ")

	ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
	defer cancel()

	s, err := openSession(ctx, flagSearchOffline)
	if err != nil {
		return err
	}
	defer s.close()

	res, searchErr := s.svc.Search(ctx, discovery.Request{
		Query:   query,
		Filters: filters,
		Offset:  flagSearchOffset,
		Limit:   flagSearchLimit,
		Refresh: flagSearchRefresh,
		Offline: flagSearchOffline,
	})
	if err := s.svc.Save(ctx); err != nil {
		printWarn("", fmt.Sprintf("cannot save cache: %v", err))
	}
	if searchErr != nil {
		return searchErr
	}

	printSearchResults(stdout, res)
	return nil
}

func printSearchResults(out io.Writer, res discovery.Result) {
	title := res.Query
	if title == "" {
		title = "(trending)"
	}
	fmt.Fprintf(out, "\ndiscover search %q\n\n", title)
	if res.LiveErr != nil {
		printWarn("", fmt.Sprintf("catalog unavailable: %v", res.LiveErr))
	}
	if res.Source != "" {
		printInfo(string(res.Source), fmt.Sprintf("%d shown of %d", len(res.Records), res.Total))
	}
	if res.Filtered && res.Total > len(res.Records) {
		printLine(out, "~", "filters", fmt.Sprintf("%d hidden by active filters", res.Total-len(res.Records)))
	}
	fmt.Fprintf(out, "Results (%d found):\n", len(res.Records))
	if len(res.Records) == 0 {
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  #\tREPOSITORY\tPARAMS\tQUANT\tSIZE\tVRAM\tDOWNLOADS\tLIKES\tUPDATED")
	for i, r := range res.Records {
		fmt.Fprintf(w, "  %d.\t%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			i+1, r.ID, dash(r.ParameterCount), dash(quantLabel(r)),
			sizeLabel(primarySize(r)), sizeLabel(filter.EstimateVRAM(r)),
			r.Downloads, r.Likes, timeLabel(r.LastModified))
	}
	_ = w.Flush()
}

func quantLabel(r model.Record) string {
	if r.IsPlaceholder() {
		return "?"
	}
	if len(r.Quantizations) <= 3 {
		return strings.Join(r.Quantizations, ",")
	}
	return strings.Join(r.Quantizations[:3], ",") + ",+" + strconv.Itoa(len(r.Quantizations)-3)
}

func primarySize(r model.Record) int64 {
	if f, ok := r.PrimaryFile(); ok {
		return f.Size
	}
	return 0
}

// sizeLabel formats a byte count in GiB or MiB.
func sizeLabel(n int64) string {
	const mib = 1 << 20
	switch {
	case n <= 0:
		return "-"
	case n >= 1<<30:
		return fmt.Sprintf("%.1fG", float64(n)/(1<<30))
	default:
		return fmt.Sprintf("%dM", (n+mib-1)/mib)
	}
}

func timeLabel(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
