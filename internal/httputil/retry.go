// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared across index backends.
package httputil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// RetryBaseDelay is the backoff unit used when a Policy leaves BaseDelay
// unset. Tests override this to avoid real sleeps.
var RetryBaseDelay = 2 * time.Second

const defaultMaxAttempts = 3

// Policy configures DoWithRetry. Zero fields take the package defaults.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first (default 3).
	MaxAttempts int

	// BaseDelay is the backoff unit (default RetryBaseDelay).
	BaseDelay time.Duration

	// Logger receives one record per retry. Nil means slog.Default().
	Logger *slog.Logger
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = RetryBaseDelay
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	return p
}

// DoWithRetry executes an HTTP request, retrying throttled and failed
// attempts until the policy's attempt budget is spent.
//
// HTTP 429 waits BaseDelay multiplied by the 1-based attempt number, so the
// waits grow linearly: 2 s, 4 s, ... Transport errors and every other
// non-2xx response wait a fixed BaseDelay. A 2xx is returned immediately.
//
// When the budget runs out on a non-2xx status, the last response is returned
// so the caller can inspect it. When it runs out on a transport error, that
// error is returned wrapped. If the context is cancelled during a backoff
// wait the function returns ctx.Err().
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, policy Policy) (*http.Response, error) {
	p := policy.withDefaults()

	for attempt := 1; ; attempt++ {
		var backoff time.Duration

		resp, err := client.Do(req.Clone(ctx))
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if attempt >= p.MaxAttempts {
				return nil, fmt.Errorf("after %d attempts: %w", attempt, err)
			}
			backoff = p.BaseDelay
			p.Logger.Debug("request failed, retrying",
				"url", req.URL.Redacted(), "attempt", attempt, "wait", backoff, "error", err)

		case resp.StatusCode == http.StatusTooManyRequests:
			if attempt >= p.MaxAttempts {
				return resp, nil
			}
			drain(resp)
			backoff = p.BaseDelay * time.Duration(attempt)
			p.Logger.Debug("rate limited, retrying",
				"url", req.URL.Redacted(), "attempt", attempt, "wait", backoff)

		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			if attempt >= p.MaxAttempts {
				return resp, nil
			}
			drain(resp)
			backoff = p.BaseDelay
			p.Logger.Debug("request rejected, retrying",
				"url", req.URL.Redacted(), "status", resp.StatusCode, "attempt", attempt, "wait", backoff)

		default:
			return resp, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// drain discards and closes a response body so the connection can be reused.
func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
