// Package client talks to the advisor server's session API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/proinvest/advisor/internal/interrupt"
	"github.com/proinvest/advisor/internal/session"
	"github.com/proinvest/advisor/internal/sse"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == status
}

// SessionInfo identifies a server-side session.
type SessionInfo struct {
	ID       string `json:"id"`
	Agent    string `json:"agent"`
	ThreadID string `json:"thread_id"`
}

// Client is an HTTP client for the advisor server. Streaming calls are not
// bounded by a timeout; cancel their context instead.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, readAPIError(resp)
	}
	return resp, nil
}

func readAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var e struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &e) == nil && e.Error != "" {
		msg = e.Error
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}

func (c *Client) getJSON(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Health checks the server is up. Degraded dependencies are reported as an
// APIError with status 503.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return c.getJSON(ctx, http.MethodGet, "/health", nil, nil)
}

// CreateSession opens a session with the named agent.
func (c *Client) CreateSession(ctx context.Context, agent string) (*SessionInfo, error) {
	var info SessionInfo
	if err := c.getJSON(ctx, http.MethodPost, "/sessions", map[string]string{"agent": agent}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// CloseSession abandons a session.
func (c *Client) CloseSession(ctx context.Context, id string) error {
	return c.getJSON(ctx, http.MethodDelete, "/sessions/"+id, nil, nil)
}

// Snapshot fetches the session state and transcript.
func (c *Client) Snapshot(ctx context.Context, id string) (*session.Snapshot, error) {
	var snap session.Snapshot
	if err := c.getJSON(ctx, http.MethodGet, "/sessions/"+id, nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// AwaitInterrupt long-polls for the session's outstanding interrupt.
func (c *Client) AwaitInterrupt(ctx context.Context, id string) (*interrupt.Event, error) {
	var ev interrupt.Event
	if err := c.getJSON(ctx, http.MethodGet, "/sessions/"+id+"/interrupt", nil, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// Send posts a user message and streams the run's chunks to fn.
func (c *Client) Send(ctx context.Context, id, text string, fn func(session.Chunk) error) error {
	return c.stream(ctx, "/sessions/"+id+"/messages", map[string]string{"text": text}, fn)
}

// Resolve answers the outstanding interrupt and streams the resumed run.
func (c *Client) Resolve(ctx context.Context, id, text string, fn func(session.Chunk) error) error {
	return c.stream(ctx, "/sessions/"+id+"/resolve", map[string]string{"text": text}, fn)
}

func (c *Client) stream(ctx context.Context, path string, body any, fn func(session.Chunk) error) error {
	resp, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mt != "text/event-stream" {
		return fmt.Errorf("unexpected content type %q", resp.Header.Get("Content-Type"))
	}

	reader := sse.NewReader(resp.Body)
	for {
		ev, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		var chunk session.Chunk
		if err := json.Unmarshal(ev.Data, &chunk); err != nil {
			return fmt.Errorf("decode %s chunk: %w", ev.Name, err)
		}
		if err := fn(chunk); err != nil {
			return err
		}
		if chunk.Type == session.ChunkDone {
			return nil
		}
	}
}
