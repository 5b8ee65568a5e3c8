// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package editor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/pdiddy/citeagent/pkg/types"
)

const binOsascript = "osascript"

// executor abstracts command execution for testing.
type executor interface {
	Output(ctx context.Context, name string, args ...string) (string, error)
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) Output(ctx context.Context, name string, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%w: %s", err, msg)
		}
		return "", err
	}
	return stdout.String(), nil
}

// Safari is a Channel that runs JavaScript in the current Safari tab via
// AppleScript. Safari must allow JavaScript from Apple Events.
type Safari struct {
	exec    executor
	timeout time.Duration
	logger  *slog.Logger
}

// NewSafari returns a Safari channel.
func NewSafari(cfg types.ChannelConfig, logger *slog.Logger) *Safari {
	return newSafari(&osExecutor{}, cfg, logger)
}

func newSafari(exec executor, cfg types.ChannelConfig, logger *slog.Logger) *Safari {
	timeout := cfg.CommandTimeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	return &Safari{
		exec:    exec,
		timeout: timeout,
		logger:  logger.With("component", "editor", "channel", types.ChannelSafari),
	}
}

// Eval implements Channel. AppleScript returns null and undefined as "".
func (s *Safari) Eval(ctx context.Context, script string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.exec.Output(ctx, binOsascript, "-e", appleScriptFor(script))
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%w: %s not found", ErrNotAvailable, binOsascript)
		}
		if ctx.Err() != nil {
			return "", fmt.Errorf("applescript timed out after %s: %w", s.timeout, ctx.Err())
		}
		return "", fmt.Errorf("applescript: %w", err)
	}
	return strings.TrimSuffix(out, "\n"), nil
}

// Close implements Channel. Safari stays open.
func (s *Safari) Close() error { return nil }

// appleScriptFor wraps script in a "do JavaScript" command. The script is
// flattened to one line, so it must not contain line comments.
func appleScriptFor(script string) string {
	escaped := strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		"\r\n", " ",
		"\n", " ",
		"\r", " ",
	).Replace(script)
	return `tell application "Safari" to do JavaScript "` + escaped + `" in current tab of front window`
}
