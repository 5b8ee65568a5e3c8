// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/citeagent/internal/bibtex"
	"github.com/pdiddy/citeagent/internal/editor"
	"github.com/pdiddy/citeagent/internal/syncproto"
)

var bibCmd = &cobra.Command{
	Use:   "bib",
	Short: "Manage the live editor's bibliography file",
}

var bibAppendCmd = &cobra.Command{
	Use:   "append <file.bib>",
	Short: "Append entries from a local .bib file to the editor's bibliography",
	Long: `Append reads BibTeX entries from a local file (or stdin with "-") and
commits each one to the bibliography buffer of the live editor. Entries whose
key the buffer already defines are skipped, as are "Paper not found"
placeholders. The main file is reselected afterwards.`,
	Args: cobra.ExactArgs(1),
	RunE: runBibAppend,
}

func init() {
	bibCmd.AddCommand(bibAppendCmd)
	rootCmd.AddCommand(bibCmd)
}

func runBibAppend(cmd *cobra.Command, args []string) error {
	data, err := readSource(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}
	entries := bibtex.Split(data)
	if len(entries) == 0 {
		return fmt.Errorf("no BibTeX entries in %s", args[0])
	}

	ctx := cmd.Context()
	ch, err := editor.Open(ctx, appConfig.Channel, logger)
	if err != nil {
		return err
	}
	defer ch.Close()

	proto := syncproto.New(ch, appConfig.Channel, logger)
	report, err := proto.AppendBibliography(ctx, entries)
	printBibReport(cmd.OutOrStdout(), report)
	return err
}

func printBibReport(w io.Writer, r syncproto.BibReport) {
	if len(r.Added) > 0 {
		fmt.Fprintf(w, "Added %d entries to %s: %s\n", len(r.Added), r.Buffer, strings.Join(r.Added, ", "))
	}
	if len(r.Skipped) > 0 {
		fmt.Fprintf(w, "Skipped %d entries: %s\n", len(r.Skipped), strings.Join(r.Skipped, ", "))
	}
}

// readSource reads a file, or stdin when name is "-".
func readSource(stdin io.Reader, name string) (string, error) {
	if name == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", name, err)
	}
	return string(data), nil
}
