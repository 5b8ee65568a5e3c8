// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package agent runs the citation plan/execute loop: it drives a
// tool-calling model through search and get_entry calls until the model
// returns annotated text, collecting the BibTeX entries it fetched.
package agent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/pdiddy/citeagent/internal/bibtex"
	"github.com/pdiddy/citeagent/internal/toolcache"
	"github.com/pdiddy/citeagent/pkg/types"
)

// ModelBackend is a tool-calling model. SendTurn returns the model's next
// assistant turn for the transcript. An error means the model channel
// itself failed; terminal model refusals are reported in Turn.Finish.
type ModelBackend interface {
	SendTurn(ctx context.Context, transcript []types.Turn, tools []types.ToolSpec) (types.Turn, error)
}

// State is a session state.
type State string

const (
	StatePlanning       State = "planning"
	StateExecutingTools State = "executing_tools"
	StateDone           State = "done"
	StateDegradedDone   State = "degraded_done"
)

const defaultMaxIterations = 10

// Options configures an Orchestrator. Zero values take defaults.
type Options struct {
	// MaxIterations bounds plan/execute round trips (default 10).
	MaxIterations int

	// MinCitations is passed to every index search. Negative defers to
	// the index client's configured minimum.
	MinCitations int

	// DefaultLimit is used when a search call omits its limit (default 5).
	DefaultLimit int
}

// Result is the outcome of one session.
type Result struct {
	SessionID string

	// Text is the annotated text, or the original text when the session
	// degraded or never produced a final answer.
	Text string

	// Entries are the BibTeX entries returned by get_entry calls, in call
	// order. Repeated keys repeat their entry; placeholders are included.
	Entries []string

	State        State
	Iterations   int
	FinishReason string

	// MissingKeys are keys cited in Text that no get_entry call requested.
	MissingKeys []string

	// Err is the model channel error that aborted the session, if any.
	Err error
}

// Orchestrator runs citation sessions against one model and index.
type Orchestrator struct {
	model  ModelBackend
	index  toolcache.Searcher
	opts   Options
	logger *slog.Logger
}

// New returns an Orchestrator.
func New(model ModelBackend, index toolcache.Searcher, opts Options, logger *slog.Logger) *Orchestrator {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = defaultMaxIterations
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{model: model, index: index, opts: opts, logger: logger}
}

// session is the transient state of one Process call.
type session struct {
	id         string
	transcript []types.Turn
	cache      *toolcache.Cache
	entries    []string
	requested  map[string]bool
	state      State
	logger     *slog.Logger
}

// Process annotates text with citations. docContext, when non-empty, is
// offered to the model as background about the document.
//
// Process never fails: a model channel error or a terminal model refusal
// ends the session in StateDegradedDone with the original text and the
// entries collected so far.
func (o *Orchestrator) Process(ctx context.Context, text, docContext string) Result {
	s := &session{
		id:        uuid.NewString(),
		requested: make(map[string]bool),
		state:     StatePlanning,
	}
	s.logger = o.logger.With("component", "agent", "session", s.id)
	s.cache = toolcache.New(o.index, o.opts.MinCitations, s.logger)

	res := Result{SessionID: s.id, Text: text}

	prompt, err := renderPrompt(text, docContext)
	if err != nil {
		res.Err = err
		res.State = StateDegradedDone
		return res
	}
	s.transcript = []types.Turn{{Role: types.RoleUser, Text: prompt}}
	tools := Specs()
	var lastText string

	for {
		if res.Iterations >= o.opts.MaxIterations {
			s.logger.Warn("iteration bound reached", "iterations", res.Iterations)
			if lastText != "" {
				res.Text = lastText
			}
			s.state = StateDone
			break
		}
		res.Iterations++

		turn, err := o.model.SendTurn(ctx, s.transcript, tools)
		if err != nil {
			s.logger.Error("model request failed, keeping original text",
				"iteration", res.Iterations, "error", err)
			res.Err = err
			s.state = StateDegradedDone
			break
		}
		turn.Role = types.RoleAssistant
		s.transcript = append(s.transcript, turn)
		res.FinishReason = turn.FinishReason

		if turn.Finish.Terminal() {
			s.logger.Warn("model stopped with terminal finish reason, keeping collected entries",
				"iteration", res.Iterations, "finish", turn.Finish, "reason", turn.FinishReason,
				"entries", len(s.entries))
			s.state = StateDegradedDone
			break
		}

		if len(turn.Calls) == 0 {
			if strings.TrimSpace(turn.Text) != "" {
				res.Text = turn.Text
			} else {
				s.logger.Warn("model returned no text, keeping original text", "iteration", res.Iterations)
			}
			s.state = StateDone
			break
		}

		if strings.TrimSpace(turn.Text) != "" {
			lastText = turn.Text
		}
		s.state = StateExecutingTools
		for _, call := range turn.Calls {
			s.transcript = append(s.transcript, types.Turn{
				Role:     types.RoleTool,
				CallID:   call.ID,
				ToolName: call.Name,
				Text:     s.dispatch(ctx, call, o.opts.DefaultLimit),
			})
		}
		s.state = StatePlanning
	}

	res.State = s.state
	res.Entries = s.entries
	if res.State == StateDone {
		res.MissingKeys = s.missingKeys(res.Text)
	}
	s.logger.Info("session finished", "state", res.State, "iterations", res.Iterations,
		"entries", len(res.Entries), "searches", s.cache.Searches())
	return res
}

// dispatch executes one raw tool call and returns the tool result text.
// Failures become error strings so the model can react.
func (s *session) dispatch(ctx context.Context, call types.ToolCall, defaultLimit int) string {
	s.logger.Debug("tool call", "tool", call.Name, "args", call.Args)

	calls, err := Normalize(call, defaultLimit)
	if err != nil {
		s.logger.Warn("rejected tool call", "tool", call.Name, "error", err)
		return "Error: " + err.Error()
	}

	parts := make([]string, 0, len(calls))
	for _, c := range calls {
		switch c := c.(type) {
		case SearchCall:
			papers := s.cache.LookupOrSearch(ctx, c.Query, c.Limit)
			parts = append(parts, formatSearchResult(c.Query, papers))
		case GetEntryCall:
			entry, _ := s.cache.LookupOrRender(c.Key)
			s.requested[c.Key] = true
			s.entries = append(s.entries, entry)
			parts = append(parts, entry)
		}
	}
	return strings.Join(parts, "\n\n")
}

// missingKeys reports cited keys that were never fetched.
func (s *session) missingKeys(text string) []string {
	var missing []string
	for _, k := range bibtex.CitedKeys(text) {
		if !s.requested[k] {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		s.logger.Warn("text cites keys that were never fetched", "keys", missing)
	}
	return missing
}
