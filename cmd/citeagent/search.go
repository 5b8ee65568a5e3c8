// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/citeagent/internal/bibtex"
	"github.com/pdiddy/citeagent/internal/paperindex"
	"github.com/pdiddy/citeagent/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the paper index for candidate papers",
	Long: `Search queries the configured paper index (Semantic Scholar or OpenAlex)
and applies the same citation filter the agent uses. Results can be printed
as a table, JSON, CSL-YAML, or BibTeX entries keyed the way the agent keys
them.

Use --id to look up a single Semantic Scholar paper by its identifier.`,
	RunE: runSearch,
}

func init() {
	addSearchFlags(searchCmd)
	rootCmd.AddCommand(searchCmd)
}

func addSearchFlags(cmd *cobra.Command) {
	cmd.Flags().Int("limit", 0, "maximum number of results (0 = configured default)")
	cmd.Flags().Int("min-citations", -1, "minimum citation count (-1 = configured default)")
	cmd.Flags().String("format", "table", "output format: table, json, csl, or bibtex")
	cmd.Flags().String("id", "", "look up a single Semantic Scholar paper by ID")
}

func runSearch(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	id, _ := cmd.Flags().GetString("id")
	limit, _ := cmd.Flags().GetInt("limit")
	minCitations, _ := cmd.Flags().GetInt("min-citations")

	cfg := appConfig.Index
	backend, err := paperindex.NewBackend(cfg, logger)
	if err != nil {
		return err
	}

	var records []types.PaperRecord
	if id != "" {
		s2, ok := backend.(*paperindex.SemanticScholarBackend)
		if !ok {
			return fmt.Errorf("--id lookups need the semantic_scholar backend, not %s", backend.Name())
		}
		paper, err := s2.GetPaper(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("looking up paper %s: %w", id, err)
		}
		records = []types.PaperRecord{paper}
	} else {
		query := strings.TrimSpace(strings.Join(args, " "))
		if query == "" {
			return fmt.Errorf("provide a search query or --id")
		}
		client := paperindex.NewClient(backend, cfg, logger)
		records = client.Search(cmd.Context(), query, limit, minCitations)
	}

	return writeRecords(cmd.OutOrStdout(), records, format)
}

func writeRecords(w io.Writer, records []types.PaperRecord, format string) error {
	switch format {
	case "table", "":
		paperindex.FormatTable(records, w)
		return nil
	case "json":
		return paperindex.FormatJSON(records, w)
	case "csl":
		return paperindex.FormatCSL(records, bibtex.DeriveKey, w)
	case "bibtex":
		entries := make([]string, len(records))
		for i, r := range records {
			entries[i] = bibtex.RenderEntry(r)
		}
		if len(entries) > 0 {
			fmt.Fprintln(w, strings.Join(entries, "\n\n"))
		}
		return nil
	default:
		return fmt.Errorf("unsupported format %q: use table, json, csl, or bibtex", format)
	}
}
