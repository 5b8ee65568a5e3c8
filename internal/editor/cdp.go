// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pdiddy/citeagent/pkg/types"
)

const defaultCommandTimeout = 10 * time.Second

// cdpTarget is one entry of the DevTools /json target list.
type cdpTarget struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

type cdpRequest struct {
	ID     int64          `json:"id"`
	Method string         `json:"method"`
	Params map[string]any `json:"params,omitempty"`
}

type cdpRemoteObject struct {
	Type        string          `json:"type"`
	Subtype     string          `json:"subtype,omitempty"`
	Value       json.RawMessage `json:"value,omitempty"`
	Description string          `json:"description,omitempty"`
}

type cdpResponse struct {
	ID     int64 `json:"id"`
	Result *struct {
		Result           cdpRemoteObject `json:"result"`
		ExceptionDetails *struct {
			Text      string           `json:"text"`
			Exception *cdpRemoteObject `json:"exception"`
		} `json:"exceptionDetails"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// CDP is a Channel over the Chrome DevTools Protocol. Commands are
// serialized; one command is in flight at a time.
type CDP struct {
	conn    *websocket.Conn
	target  cdpTarget
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	nextID int64
}

// DialCDP discovers the first page target whose URL contains
// cfg.TargetMatch and opens its DevTools websocket.
func DialCDP(ctx context.Context, cfg types.ChannelConfig, client *http.Client, logger *slog.Logger) (*CDP, error) {
	logger = logger.With("component", "editor", "channel", types.ChannelCDP)

	target, err := discoverTarget(ctx, client, cfg.DebugURL, cfg.TargetMatch)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target.WebSocketDebuggerURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to %s: %w", ErrNotAvailable, target.WebSocketDebuggerURL, err)
	}

	timeout := cfg.CommandTimeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	logger.Info("connected to editor tab", "title", target.Title, "url", target.URL)
	return &CDP{conn: conn, target: target, timeout: timeout, logger: logger}, nil
}

func discoverTarget(ctx context.Context, client *http.Client, debugURL, match string) (cdpTarget, error) {
	endpoint := strings.TrimRight(debugURL, "/") + "/json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return cdpTarget{}, fmt.Errorf("building target request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return cdpTarget{}, fmt.Errorf("%w: listing targets at %s: %w", ErrNotAvailable, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return cdpTarget{}, fmt.Errorf("%w: listing targets at %s: HTTP %d", ErrNotAvailable, endpoint, resp.StatusCode)
	}

	var targets []cdpTarget
	if err := json.NewDecoder(resp.Body).Decode(&targets); err != nil {
		return cdpTarget{}, fmt.Errorf("decoding target list: %w", err)
	}

	for _, t := range targets {
		if t.Type == "page" && strings.Contains(t.URL, match) && t.WebSocketDebuggerURL != "" {
			return t, nil
		}
	}
	return cdpTarget{}, fmt.Errorf("%w: no page matching %q among %d targets", ErrNotAvailable, match, len(targets))
}

// Eval runs script with Runtime.evaluate and returns the value by string.
func (c *CDP) Eval(ctx context.Context, script string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.conn.SetWriteDeadline(deadline)
	c.conn.SetReadDeadline(deadline)

	err := c.conn.WriteJSON(cdpRequest{
		ID:     id,
		Method: "Runtime.evaluate",
		Params: map[string]any{"expression": script, "returnByValue": true},
	})
	if err != nil {
		return "", fmt.Errorf("sending command %d: %w", id, err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		var resp cdpResponse
		if err := c.conn.ReadJSON(&resp); err != nil {
			return "", fmt.Errorf("reading reply to command %d: %w", id, err)
		}
		if resp.ID != id {
			// Event or stale reply.
			continue
		}
		return evalResult(resp)
	}
}

func evalResult(resp cdpResponse) (string, error) {
	if resp.Error != nil {
		return "", fmt.Errorf("cdp error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	if resp.Result == nil {
		return "", errors.New("cdp reply without result")
	}
	if ex := resp.Result.ExceptionDetails; ex != nil {
		msg := ex.Text
		if ex.Exception != nil && ex.Exception.Description != "" {
			msg = ex.Exception.Description
		}
		return "", fmt.Errorf("script exception: %s", msg)
	}

	obj := resp.Result.Result
	if obj.Type == "undefined" || obj.Subtype == "null" || len(obj.Value) == 0 || string(obj.Value) == "null" {
		return "", nil
	}
	if obj.Type == "string" {
		var s string
		if err := json.Unmarshal(obj.Value, &s); err != nil {
			return "", fmt.Errorf("decoding string result: %w", err)
		}
		return s, nil
	}
	return string(obj.Value), nil
}

// Close closes the DevTools connection.
func (c *CDP) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}
