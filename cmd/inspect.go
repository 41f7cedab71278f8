package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oxide-lab/discover/internal/filter"
	"github.com/oxide-lab/discover/internal/model"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <repository>",
	Short: "Show everything cached about one repository",
	Long: `Print the cached record of a repository: metadata, detected
architectures, every GGUF file with its quantization and size, and the
estimated VRAM needed for the smallest file.

Only cached results are consulted; run 'discover search' first.

Example:
  discover inspect bartowski/Meta-Llama-3.1-8B-Instruct-GGUF`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer s.close()

	r, ok := s.svc.Snapshot().Lookup(args[0])
	if !ok {
		return fmt.Errorf("%s is not in the search cache; run 'discover search %s' first", args[0], args[0])
	}
	printInspect(stdout, r)
	return nil
}

// printInspect displays the formatted inspection output for one record.
func printInspect(out io.Writer, r model.Record) {
	fmt.Fprintf(out, "📦 Model: %s\n", r.ID)
	fmt.Fprintf(out, "Author:   %s\n", r.Author)
	if r.Description != "" {
		fmt.Fprintf(out, "Summary:  %s\n", strings.ReplaceAll(strings.TrimSpace(r.Description), "\n", " "))
	}
	if r.IsPlaceholder() {
		fmt.Fprintln(out, "  (seed entry, files not resolved yet)")
	}
	fields := []struct{ label, value string }{
		{"Params", r.ParameterCount},
		{"Pipeline", r.PipelineTag},
		{"Library", r.Library},
		{"License", strings.Join(filter.Licenses(r), ", ")},
		{"Languages", strings.Join(filter.Languages(r), ", ")},
		{"Arch", strings.Join(filter.Architectures(r), ", ")},
	}
	for _, f := range fields {
		if f.value != "" {
			fmt.Fprintf(out, "%-9s %s\n", f.label+":", f.value)
		}
	}
	if r.ContextLength > 0 {
		fmt.Fprintf(out, "Context:  %d tokens\n", r.ContextLength)
	}
	fmt.Fprintf(out, "Stats:    %d downloads, %d likes, updated %s\n", r.Downloads, r.Likes, timeLabel(r.LastModified))

	if len(r.Files) > 0 {
		primary, _ := r.PrimaryFile()
		fmt.Fprintln(out, "\nFiles:")
		for _, f := range r.Files {
			mark := " "
			if f.Filename == primary.Filename {
				mark = "*"
			}
			fmt.Fprintf(out, " %s %-48s %-8s %s\n", mark, f.Filename, dash(f.Quantization), sizeLabel(f.Size))
		}
		if v := filter.EstimateVRAM(r); v > 0 {
			fmt.Fprintf(out, "\nEstimated VRAM (* file): %s (%s bucket)\n", sizeLabel(v), filter.SizeBucketOf(r))
		}
	}
	if len(r.Tags) > 0 {
		fmt.Fprintf(out, "\nTags: %s\n", strings.Join(r.Tags, ", "))
	}
}
