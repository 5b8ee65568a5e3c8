// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pdiddy/citeagent/internal/agent"
	"github.com/pdiddy/citeagent/internal/editor"
	"github.com/pdiddy/citeagent/internal/history"
	"github.com/pdiddy/citeagent/internal/llm"
	"github.com/pdiddy/citeagent/internal/paperindex"
	"github.com/pdiddy/citeagent/internal/syncproto"
	"github.com/pdiddy/citeagent/pkg/types"
)

var citeCmd = &cobra.Command{
	Use:   "cite [file]",
	Short: "Annotate LaTeX text with citations",
	Long: `Cite sends LaTeX text to the configured model, which searches the paper
index and inserts \cite{} commands. The annotated text and the BibTeX entries
for every cited key are written out.

Input is a file, stdin ("-"), or the live editor (--from-editor). The editor
selection is used unless --full asks for the whole document. With --apply the
annotated text replaces the selection (or the document) after confirmation,
and the entries are appended to the bibliography buffer.

A file input without --out writes <name>_cited.tex and <name>_cited.bib next
to it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCite,
}

func init() {
	addCiteFlags(citeCmd)
	rootCmd.AddCommand(citeCmd)
}

func addCiteFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("from-editor", false, "read text from the live editor")
	cmd.Flags().Bool("full", false, "with --from-editor, use the whole document instead of the selection")
	cmd.Flags().Bool("apply", false, "write the result back to the editor and update the bibliography")
	cmd.Flags().String("out", "", "write the annotated text to this file")
	cmd.Flags().String("bib-out", "", "write the BibTeX entries to this file")
	cmd.Flags().String("context", "", "file with background about the document, offered to the model")
	cmd.Flags().BoolP("yes", "y", false, "apply without asking for confirmation")
}

// citeOptions are the parsed cite flags.
type citeOptions struct {
	fromEditor bool
	full       bool
	apply      bool
	yes        bool
	out        string
	bibOut     string
	contextIn  string
	input      string
}

func citeOptionsFromFlags(cmd *cobra.Command, args []string) (citeOptions, error) {
	var o citeOptions
	o.fromEditor, _ = cmd.Flags().GetBool("from-editor")
	o.full, _ = cmd.Flags().GetBool("full")
	o.apply, _ = cmd.Flags().GetBool("apply")
	o.yes, _ = cmd.Flags().GetBool("yes")
	o.out, _ = cmd.Flags().GetString("out")
	o.bibOut, _ = cmd.Flags().GetString("bib-out")
	o.contextIn, _ = cmd.Flags().GetString("context")
	if len(args) > 0 {
		o.input = args[0]
	}

	switch {
	case o.fromEditor && o.input != "":
		return o, fmt.Errorf("give either an input file or --from-editor, not both")
	case !o.fromEditor && o.input == "":
		return o, fmt.Errorf("provide an input file, - for stdin, or --from-editor")
	case o.apply && !o.fromEditor:
		return o, fmt.Errorf("--apply needs --from-editor")
	case o.full && !o.fromEditor:
		return o, fmt.Errorf("--full needs --from-editor")
	}

	// A file input gets sibling outputs unless told otherwise.
	if o.input != "" && o.input != "-" {
		if o.out == "" {
			o.out = citedPath(o.input, ".tex")
		}
		if o.bibOut == "" {
			o.bibOut = citedPath(o.input, ".bib")
		}
	}
	return o, nil
}

// citedPath derives <name>_cited<ext> next to input.
func citedPath(input, ext string) string {
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return base + "_cited" + ext
}

func runCite(cmd *cobra.Command, args []string) error {
	opts, err := citeOptionsFromFlags(cmd, args)
	if err != nil {
		return err
	}
	if opts.apply && !opts.yes && !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("stdin is not a terminal: pass --yes to apply without confirmation")
	}
	ctx := cmd.Context()
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	var proto *syncproto.Protocol
	if opts.fromEditor {
		ch, err := editor.Open(ctx, appConfig.Channel, logger)
		if err != nil {
			return err
		}
		defer ch.Close()

		proto = syncproto.New(ch, appConfig.Channel, logger)
		if !proto.AwaitReady(ctx, "") {
			return fmt.Errorf("%w: no editor view in the target page", editor.ErrNotAvailable)
		}
	}

	text, err := citeInput(ctx, cmd.InOrStdin(), proto, opts)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("no text to process")
	}

	var docContext string
	if opts.contextIn != "" {
		if docContext, err = readSource(cmd.InOrStdin(), opts.contextIn); err != nil {
			return err
		}
	}

	orch, err := newOrchestrator(ctx)
	if err != nil {
		return err
	}

	provider, model := modelIdentity(appConfig.Model)
	fmt.Fprintf(stderr, "Processing %d characters with %s/%s...\n", utf8.RuneCountInString(text), provider, model)
	started := time.Now()
	res := orch.Process(ctx, text, docContext)
	recordRun(ctx, started, text, res)
	reportResult(stderr, res)

	if err := writeCiteOutputs(stdout, stderr, opts, res); err != nil {
		return err
	}

	if opts.apply {
		if err := applyResult(ctx, cmd.InOrStdin(), stderr, proto, opts, res); err != nil {
			return err
		}
	}

	if res.Err != nil {
		return fmt.Errorf("citation session ended early: %w", res.Err)
	}
	return nil
}

// citeInput reads the text to process from the editor, stdin, or a file.
func citeInput(ctx context.Context, stdin io.Reader, proto *syncproto.Protocol, opts citeOptions) (string, error) {
	if !opts.fromEditor {
		return readSource(stdin, opts.input)
	}

	surface := proto.Surface()
	if opts.full {
		content, ok := surface.GetContent(ctx)
		if !ok {
			return "", fmt.Errorf("%w: could not read the document", editor.ErrNotAvailable)
		}
		return content, nil
	}
	selection, ok := surface.GetSelection(ctx)
	if !ok {
		return "", fmt.Errorf("nothing selected in the editor: select text or use --full")
	}
	return selection, nil
}

func newOrchestrator(ctx context.Context) (*agent.Orchestrator, error) {
	model, err := llm.New(ctx, appConfig.Model, nil, logger)
	if err != nil {
		return nil, err
	}

	backend, err := paperindex.NewBackend(appConfig.Index, logger)
	if err != nil {
		return nil, err
	}
	index := paperindex.NewClient(backend, appConfig.Index, logger)

	return agent.New(model, index, agent.Options{
		MaxIterations: appConfig.Agent.MaxIterations,
		MinCitations:  -1,
		DefaultLimit:  appConfig.Index.DefaultLimit,
	}, logger), nil
}

// modelIdentity returns the provider and model a session will use.
func modelIdentity(cfg types.ModelConfig) (provider, model string) {
	provider = strings.ToLower(cfg.Provider)
	if provider == "" {
		provider = types.ProviderGemini
	}
	model = cfg.Model
	if model == "" {
		model = llm.DefaultModel(provider)
	}
	return provider, model
}

func reportResult(w io.Writer, res agent.Result) {
	switch res.State {
	case agent.StateDegradedDone:
		reason := res.FinishReason
		if res.Err != nil {
			reason = res.Err.Error()
		}
		fmt.Fprintf(w, "Warning: the model stopped early (%s); the text is unchanged.\n", reason)
	default:
		fmt.Fprintf(w, "Done after %d iterations, %d BibTeX entries.\n", res.Iterations, len(res.Entries))
	}
	if len(res.MissingKeys) > 0 {
		fmt.Fprintf(w, "Warning: cited keys without entries: %s\n", strings.Join(res.MissingKeys, ", "))
	}
}

// writeCiteOutputs writes the annotated text and entries to their files,
// or to stdout and stderr when no file was named.
func writeCiteOutputs(stdout, stderr io.Writer, opts citeOptions, res agent.Result) error {
	if opts.out != "" {
		if err := os.WriteFile(opts.out, []byte(res.Text), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", opts.out, err)
		}
		fmt.Fprintf(stderr, "Annotated text saved to: %s\n", opts.out)
	} else {
		fmt.Fprintln(stdout, res.Text)
	}

	if len(res.Entries) == 0 {
		return nil
	}
	bib := strings.Join(res.Entries, "\n\n") + "\n"
	if opts.bibOut != "" {
		if err := os.WriteFile(opts.bibOut, []byte(bib), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", opts.bibOut, err)
		}
		fmt.Fprintf(stderr, "BibTeX entries saved to: %s\n", opts.bibOut)
		return nil
	}
	fmt.Fprintf(stderr, "\n--- BibTeX Entries (%d) ---\n%s", len(res.Entries), bib)
	return nil
}

// applyResult commits the annotated text to the editor and appends the
// entries to the bibliography buffer.
func applyResult(ctx context.Context, stdin io.Reader, w io.Writer, proto *syncproto.Protocol, opts citeOptions, res agent.Result) error {
	if res.State == agent.StateDegradedDone {
		fmt.Fprintln(w, "Not applying: the session did not complete.")
		return nil
	}

	prompt := "Apply changes to the selection?"
	if opts.full {
		prompt = "This replaces the ENTIRE document. Apply changes?"
	}
	if !opts.yes && !confirm(stdin, w, prompt) {
		fmt.Fprintln(w, "Changes not applied.")
		return nil
	}

	if opts.full {
		if err := proto.Write(ctx, "", res.Text); err != nil {
			return fmt.Errorf("updating document: %w", err)
		}
	} else if !proto.Surface().ReplaceSelection(ctx, res.Text) {
		return fmt.Errorf("%w: selection was not replaced", editor.ErrNotAvailable)
	}
	fmt.Fprintln(w, "Text updated in the editor.")

	if len(res.Entries) == 0 {
		return nil
	}
	report, err := proto.AppendBibliography(ctx, res.Entries)
	printBibReport(w, report)
	if err != nil {
		if errors.Is(err, syncproto.ErrBufferNotFound) {
			fmt.Fprintln(w, "Could not open the bibliography file; add the entries manually.")
		}
		return fmt.Errorf("updating bibliography: %w", err)
	}
	return nil
}

// confirm asks a yes/no question and reads one line of answer.
func confirm(r io.Reader, w io.Writer, prompt string) bool {
	fmt.Fprintf(w, "%s (yes/no): ", prompt)
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// recordRun archives a finished session. Archive failures are logged and
// never fail the command.
func recordRun(ctx context.Context, started time.Time, text string, res agent.Result) {
	if !appConfig.History.Enabled {
		return
	}
	store, err := history.Open(appConfig.History.Path)
	if err != nil {
		logger.Warn("could not open history", "path", appConfig.History.Path, "error", err)
		return
	}
	defer store.Close()

	if _, err := store.Record(ctx, runRecord(started, text, res)); err != nil {
		logger.Warn("could not record run", "session", res.SessionID, "error", err)
	}
}

func runRecord(started time.Time, text string, res agent.Result) types.RunRecord {
	provider, model := modelIdentity(appConfig.Model)
	run := types.RunRecord{
		ID:          res.SessionID,
		StartedAt:   started,
		Provider:    provider,
		Model:       model,
		State:       string(res.State),
		Iterations:  res.Iterations,
		InputChars:  utf8.RuneCountInString(text),
		OutputChars: utf8.RuneCountInString(res.Text),
		Entries:     res.Entries,
	}
	switch {
	case res.Err != nil:
		run.Error = res.Err.Error()
	case res.State == agent.StateDegradedDone:
		run.Error = "finish reason: " + res.FinishReason
	}
	return run
}
