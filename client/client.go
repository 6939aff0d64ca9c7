// Package client talks to the wasmship daemon over its Unix socket.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/wasmship/wasmship/errors"
	"github.com/wasmship/wasmship/protocol"
)

// baseURL is a placeholder host; the transport always dials the socket.
const baseURL = "http://wasmship"

// Client sends commands to one daemon socket.
type Client struct {
	http       *http.Client
	socketPath string
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds each request, including the streamed body.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// New returns a client for the daemon listening on socketPath.
func New(socketPath string, opts ...Option) *Client {
	if socketPath == "" {
		socketPath = protocol.DefaultSocketPath
	}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		},
		DisableKeepAlives: true,
	}

	c := &Client{
		http:       &http.Client{Transport: transport},
		socketPath: socketPath,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SocketPath returns the socket the client dials.
func (c *Client) SocketPath() string {
	return c.socketPath
}

// ResponseError is a non-2xx daemon response.
type ResponseError struct {
	Kind    errors.Kind
	Message string
	Status  int
}

func (e *ResponseError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("daemon returned %d (%s): %s", e.Status, e.Kind, e.Message)
	}
	return fmt.Sprintf("daemon returned %d: %s", e.Status, e.Message)
}

// Is matches the errors package sentinels by kind, so callers can use
// errors.Is(err, errors.ErrNotFound) across the socket.
func (e *ResponseError) Is(target error) bool {
	t, ok := target.(*errors.Error)
	return ok && t.Phase == "" && t.Kind == e.Kind
}

// Run sends cmd and copies the response body to out as it streams in.
func (c *Client) Run(ctx context.Context, cmd protocol.Command, out io.Writer) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	body, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encode command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+protocol.RouteCommands, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return errors.IO(errors.PhaseDispatch, "read response", err)
	}
	return nil
}

// Call runs cmd and returns the result lines.
func (c *Client) Call(ctx context.Context, cmd protocol.Command) ([]string, error) {
	var buf bytes.Buffer
	if err := c.Run(ctx, cmd, &buf); err != nil {
		return nil, err
	}
	out := strings.TrimRight(buf.String(), "\n")
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// Exports fetches the function exports of ref.
func (c *Client) Exports(ctx context.Context, ref protocol.Reference) ([]protocol.Export, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+ref.ExportsPath(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var exports []protocol.Export
	if err := json.NewDecoder(resp.Body).Decode(&exports); err != nil {
		return nil, errors.IO(errors.PhaseDispatch, "decode exports", err)
	}
	return exports, nil
}

// Ping returns the daemon banner.
func (c *Client) Ping(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+protocol.RoutePing, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.IO(errors.PhaseDispatch, "read response", err)
	}
	return string(data), nil
}

// do sends req and converts non-2xx responses into *ResponseError.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.IO(errors.PhaseDispatch, "connect to "+c.socketPath, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return nil, &ResponseError{
		Status:  resp.StatusCode,
		Kind:    errors.Kind(resp.Header.Get(protocol.HeaderErrorKind)),
		Message: strings.TrimSpace(string(msg)),
	}
}
