// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package editor reaches a live browser editor (Overleaf) through a
// script-evaluation channel and exposes the document surface primitives
// built on it: read and write content, read and replace the selection,
// switch the active buffer, and check readiness.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/pdiddy/citeagent/pkg/types"
)

// ErrNotAvailable means the remote surface cannot be reached: no browser,
// no matching tab, or no script host.
var ErrNotAvailable = errors.New("editor not available")

// Channel evaluates JavaScript in the editor page and returns the result
// as a string. Null and undefined results are returned as "".
type Channel interface {
	Eval(ctx context.Context, script string) (string, error)
	Close() error
}

// Open connects the channel selected by cfg.Kind.
func Open(ctx context.Context, cfg types.ChannelConfig, logger *slog.Logger) (Channel, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Kind {
	case types.ChannelCDP, "":
		return DialCDP(ctx, cfg, http.DefaultClient, logger)
	case types.ChannelSafari:
		return NewSafari(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown channel kind %q (want %s or %s)", cfg.Kind, types.ChannelCDP, types.ChannelSafari)
	}
}
