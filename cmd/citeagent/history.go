// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/citeagent/internal/history"
	"github.com/pdiddy/citeagent/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect archived citation runs",
	Long: `History lists, shows, and exports finished runs recorded by cite. The
archive is a SQLite database at history.path (default .citeagent/history.db).`,
	RunE: runHistoryList,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one run and its BibTeX entries",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every run as YAML to stdout",
	RunE:  runHistoryExport,
}

func init() {
	historyCmd.PersistentFlags().Int("limit", 20, "maximum runs to list")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyExportCmd)
	rootCmd.AddCommand(historyCmd)
}

func openHistory() (*history.Store, error) {
	return history.Open(appConfig.History.Path)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(cmd.Context(), limit)
	if err != nil {
		return err
	}
	formatRuns(cmd.OutOrStdout(), runs)
	return nil
}

func formatRuns(w io.Writer, runs []types.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}

	fmt.Fprintf(w, "%-36s  %-20s  %-10s  %-24s  %-13s  %s\n",
		"ID", "Started", "Provider", "Model", "State", "Iterations")
	fmt.Fprintln(w, strings.Repeat("-", 120))
	for _, r := range runs {
		fmt.Fprintf(w, "%-36s  %-20s  %-10s  %-24s  %-13s  %d\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Provider, r.Model, r.State, r.Iterations)
	}
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Run:        %s\n", run.ID)
	fmt.Fprintf(w, "Started:    %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Model:      %s/%s\n", run.Provider, run.Model)
	fmt.Fprintf(w, "State:      %s after %d iterations\n", run.State, run.Iterations)
	fmt.Fprintf(w, "Characters: %d in, %d out\n", run.InputChars, run.OutputChars)
	if run.Error != "" {
		fmt.Fprintf(w, "Error:      %s\n", run.Error)
	}
	if len(run.Entries) > 0 {
		fmt.Fprintf(w, "\n--- BibTeX Entries (%d) ---\n", len(run.Entries))
		fmt.Fprintln(w, strings.Join(run.Entries, "\n\n"))
	}
	return nil
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	return store.ExportYAML(cmd.Context(), cmd.OutOrStdout())
}
