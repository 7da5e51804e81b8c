package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var loadCmd = &cobra.Command{
	Use:   "load [path-or-url...]",
	Short: "Ingest reference PDFs",
	Long: `Extracts the text of each PDF, splits it into chunks, embeds them and
upserts the chunks. Loading the same location again replaces its chunks.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLoad,
}

var (
	searchLimit int
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the reference corpus",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 5, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(loadCmd, searchCmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
	failed := 0
	for _, location := range args {
		report, err := corpus.Ingest(cmd.Context(), location)
		if err != nil {
			failed++
			cmd.PrintErrf("%s: %v\n", location, err)
			continue
		}
		cmd.Printf("%s: %d chunks, %d characters\n", report.Source, report.Chunks, report.Chars)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(args))
	}
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	hits, err := corpus.Search(cmd.Context(), args[0], searchLimit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		data, err := json.MarshalIndent(hits, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(hits) == 0 {
		cmd.Println("No results found.")
		return nil
	}
	for i, h := range hits {
		cmd.Printf("  [%d] %s #%d (%.3f)\n", i+1, h.Source, h.ChunkIndex, h.Score)
		cmd.Printf("      %s\n", snippet(h.Content, 160))
	}
	return nil
}

func snippet(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
