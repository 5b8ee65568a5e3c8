// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package editor

import (
	"context"
	"log/slog"
	"strings"
)

// Surface is the document surface of the editor page. Its primitives never
// return errors: channel failures and a surface that is not ready both
// report "not available" (false) and are logged.
type Surface struct {
	ch     Channel
	logger *slog.Logger
}

// NewSurface returns a Surface over ch.
func NewSurface(ch Channel, logger *slog.Logger) *Surface {
	if logger == nil {
		logger = slog.Default()
	}
	return &Surface{ch: ch, logger: logger.With("component", "editor")}
}

// Channel returns the underlying channel.
func (s *Surface) Channel() Channel { return s.ch }

func (s *Surface) eval(ctx context.Context, op, script string) (string, bool) {
	out, err := s.ch.Eval(ctx, script)
	if err != nil {
		s.logger.Warn("editor command failed", "op", op, "error", err)
		return "", false
	}
	if msg, failed := strings.CutPrefix(out, resultScriptError); failed {
		s.logger.Warn("editor script error", "op", op, "error", msg)
		return "", false
	}
	return out, true
}

// Ready reports whether an editor view is present.
func (s *Surface) Ready(ctx context.Context) bool {
	out, ok := s.eval(ctx, "ready", ReadyScript())
	return ok && out == resultReady
}

// GetContent returns the active buffer's content.
func (s *Surface) GetContent(ctx context.Context) (string, bool) {
	out, ok := s.eval(ctx, "get_content", GetContentScript())
	if !ok || out == resultUnavailable {
		return "", false
	}
	return out, true
}

// SetContent replaces the active buffer's content in one command. Content
// beyond the channel's message limit must go through the chunked writer.
func (s *Surface) SetContent(ctx context.Context, content string) bool {
	out, ok := s.eval(ctx, "set_content", SetContentScript(jsString(content)))
	return ok && out == resultSuccess
}

// GetSelection returns the selected text; false when nothing is selected.
func (s *Surface) GetSelection(ctx context.Context) (string, bool) {
	out, ok := s.eval(ctx, "get_selection", GetSelectionScript())
	if !ok || out == resultUnavailable || out == "" {
		return "", false
	}
	return out, true
}

// ReplaceSelection replaces the selected text with text.
func (s *Surface) ReplaceSelection(ctx context.Context, text string) bool {
	out, ok := s.eval(ctx, "replace_selection", ReplaceSelectionScript(text))
	if ok && out != resultSuccess {
		s.logger.Warn("selection not replaced", "result", out)
	}
	return ok && out == resultSuccess
}

// SelectBuffer clicks the named buffer in the file tree. It does not wait
// for the buffer to load.
func (s *Surface) SelectBuffer(ctx context.Context, name string) bool {
	out, ok := s.eval(ctx, "select_buffer", SelectBufferScript(name))
	return ok && out == resultSuccess
}
