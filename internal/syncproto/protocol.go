// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package syncproto commits text into a remote editor buffer over a channel
// whose messages are size-bounded and not atomic. Content is sent as an
// accumulate-then-materialize sequence: the remote side collects chunks in
// an accumulator and replaces the buffer only after every chunk has been
// acknowledged.
//
// The protocol assumes a single writer per buffer; it provides no
// cross-writer concurrency control.
package syncproto

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pdiddy/citeagent/internal/editor"
	"github.com/pdiddy/citeagent/pkg/types"
)

// Errors reported by Write.
var (
	ErrAckMismatch    = errors.New("chunk acknowledgment mismatch")
	ErrMaterialize    = errors.New("materialize failed")
	ErrBufferNotFound = errors.New("buffer not found")
)

const (
	defaultChunkSize    = 2000
	defaultPollInterval = 500 * time.Millisecond
	defaultPollAttempts = 10

	ackInitialized = "initialized"
	ackSuccess     = "success"
)

// Accumulator commands. The accumulator lives on the page's window object
// between commands.
const (
	accumulator  = "window.__citeChunks"
	initScript   = accumulator + " = []; '" + ackInitialized + "';"
	pushPrefix   = accumulator + ".push("
	pushAckInfix = "); 'chunk_"
)

func pushScript(i int, chunk string) string {
	return pushPrefix + jsString(chunk) + pushAckInfix + fmt.Sprint(i) + "';"
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func chunkAck(i int) string { return fmt.Sprintf("chunk_%d", i) }

// materializeScript joins the accumulator, clears it, and replaces the
// active buffer with the result.
var materializeScript = editor.SetContentScript(
	"(function() { var joined = " + accumulator + ".join(''); delete " + accumulator + "; return joined; })()")

// Protocol writes to the buffers of one editor page.
type Protocol struct {
	ch      editor.Channel
	surface *editor.Surface
	cfg     types.ChannelConfig
	logger  *slog.Logger

	// active is the buffer most recently selected through this Protocol.
	active string
}

// New returns a Protocol over ch. Zero config values take defaults.
func New(ch editor.Channel, cfg types.ChannelConfig, logger *slog.Logger) *Protocol {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = defaultPollAttempts
	}
	logger = logger.With("component", "syncproto")
	return &Protocol{
		ch:      ch,
		surface: editor.NewSurface(ch, logger),
		cfg:     cfg,
		logger:  logger,
	}
}

// Surface returns the document surface the protocol operates on.
func (p *Protocol) Surface() *editor.Surface { return p.surface }

// Active returns the buffer most recently selected, or "" if none was.
func (p *Protocol) Active() string { return p.active }

// Write replaces the content of bufferID with content. An empty bufferID
// writes to the active buffer. Any missing or garbled acknowledgment
// aborts the write before the materialize command, leaving the buffer
// unchanged.
func (p *Protocol) Write(ctx context.Context, bufferID, content string) error {
	if bufferID != "" && bufferID != p.active {
		if _, ok := p.SelectBuffer(ctx, bufferID); !ok {
			return fmt.Errorf("%w: %s", ErrBufferNotFound, bufferID)
		}
	}

	chunks := Chunks(content, p.cfg.ChunkSize)
	log := p.logger.With("buffer", p.bufferName(bufferID), "chars", len([]rune(content)), "chunks", len(chunks))
	log.Debug("writing buffer")

	if err := p.command(ctx, initScript, ackInitialized); err != nil {
		return fmt.Errorf("initializing accumulator: %w", err)
	}
	for i, chunk := range chunks {
		if err := p.command(ctx, pushScript(i, chunk), chunkAck(i)); err != nil {
			log.Warn("chunk not acknowledged, write aborted", "chunk", i, "error", err)
			return fmt.Errorf("sending chunk %d of %d: %w", i+1, len(chunks), err)
		}
	}

	out, err := p.ch.Eval(ctx, materializeScript)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMaterialize, err)
	}
	if !strings.Contains(out, ackSuccess) {
		return fmt.Errorf("%w: editor replied %q", ErrMaterialize, out)
	}
	log.Info("buffer written")
	return nil
}

// command evaluates script and requires the exact acknowledgment want.
func (p *Protocol) command(ctx context.Context, script, want string) error {
	out, err := p.ch.Eval(ctx, script)
	if err != nil {
		return err
	}
	if strings.TrimSpace(out) != want {
		return fmt.Errorf("%w: want %q, got %q", ErrAckMismatch, want, out)
	}
	return nil
}

func (p *Protocol) bufferName(bufferID string) string {
	if bufferID != "" {
		return bufferID
	}
	return p.active
}

// AwaitReady polls for an editor view every PollInterval, up to
// PollAttempts times. It reports readiness instead of failing so callers
// may proceed with a warning.
func (p *Protocol) AwaitReady(ctx context.Context, bufferID string) bool {
	for attempt := 1; attempt <= p.cfg.PollAttempts; attempt++ {
		if p.surface.Ready(ctx) {
			return true
		}
		if attempt == p.cfg.PollAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(p.cfg.PollInterval):
		}
	}
	p.logger.Warn("editor not ready", "buffer", bufferID, "attempts", p.cfg.PollAttempts)
	return false
}

// SelectBuffer switches the editor to name, falling back to each of
// alternates in order. It returns the buffer that became active.
func (p *Protocol) SelectBuffer(ctx context.Context, name string, alternates ...string) (string, bool) {
	tried := make(map[string]bool)
	for _, candidate := range append([]string{name}, alternates...) {
		if candidate == "" || tried[candidate] {
			continue
		}
		tried[candidate] = true

		if !p.surface.SelectBuffer(ctx, candidate) {
			p.logger.Debug("buffer not in file tree", "buffer", candidate)
			continue
		}
		// The previous buffer's view is still present right after the
		// click; give the switch one interval to start.
		select {
		case <-ctx.Done():
			return "", false
		case <-time.After(p.cfg.PollInterval):
		}
		if p.AwaitReady(ctx, candidate) {
			if candidate != name {
				p.logger.Info("using alternate buffer", "wanted", name, "buffer", candidate)
			}
			p.active = candidate
			return candidate, true
		}
	}
	p.logger.Warn("could not select buffer", "buffer", name, "alternates", alternates)
	return "", false
}

// Chunks splits s into pieces of at most size characters.
func Chunks(s string, size int) []string {
	if size <= 0 {
		size = defaultChunkSize
	}
	runes := []rune(s)
	if len(runes) == 0 {
		return []string{""}
	}
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
