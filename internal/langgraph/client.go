// Package langgraph is a minimal client for a LangGraph deployment's HTTP
// API: threads, streamed runs and resume commands.
package langgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/proinvest/advisor/internal/sse"
)

const tracerName = "github.com/proinvest/advisor/internal/langgraph"

// Client talks to one LangGraph deployment.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	tracer     trace.Tracer
}

// NewClient creates a client. apiKey is sent as X-Api-Key when non-empty.
// Runs stream for as long as the graph works, so the HTTP client carries no
// timeout; callers bound requests with their context.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{},
		tracer:     otel.Tracer(tracerName),
	}
}

// BaseURL returns the deployment URL the client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
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
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
	return req, nil
}

type threadResponse struct {
	ThreadID string `json:"thread_id"`
}

// CreateThread creates a new thread and returns its id.
func (c *Client) CreateThread(ctx context.Context) (string, error) {
	ctx, span := c.tracer.Start(ctx, "langgraph.CreateThread")
	defer span.End()

	req, err := c.newRequest(ctx, http.MethodPost, "/threads", map[string]any{})
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("langgraph create thread: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read thread response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		err := &StatusError{Op: "create thread", Code: resp.StatusCode, Body: string(body)}
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	var result threadResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode thread response: %w", err)
	}
	if result.ThreadID == "" {
		return "", fmt.Errorf("langgraph returned no thread_id")
	}
	span.SetAttributes(attribute.String("langgraph.thread_id", result.ThreadID))
	return result.ThreadID, nil
}

// StreamRun starts a streamed run on a thread and calls fn for every decoded
// event until the stream ends. An error event from the graph is returned as
// *RemoteError after fn has seen it. Returning an error from fn stops the
// stream; the remote run is not cancelled.
func (c *Client) StreamRun(ctx context.Context, threadID string, run RunRequest, fn func(StreamEvent) error) error {
	ctx, span := c.tracer.Start(ctx, "langgraph.StreamRun", trace.WithAttributes(
		attribute.String("langgraph.thread_id", threadID),
		attribute.String("langgraph.assistant_id", run.AssistantID),
		attribute.Bool("langgraph.resume", run.Command != nil),
	))
	defer span.End()

	if len(run.StreamMode) == 0 {
		run.StreamMode = []string{StreamModeMessagesTuple, StreamModeUpdates}
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/threads/"+threadID+"/runs/stream", run)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("langgraph stream run: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		err := &StatusError{Op: "stream run", Code: resp.StatusCode, Body: string(body)}
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	var remoteErr error
	reader := sse.NewReader(resp.Body)
	for {
		frame, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			span.RecordError(err)
			return err
		}

		ev := DecodeEvent(frame)
		if ev.Type == EventError {
			remoteErr = &RemoteError{Message: ev.Err}
		}
		if err := fn(ev); err != nil {
			return err
		}
		if ev.Type == EventEnd {
			break
		}
	}

	if remoteErr != nil {
		span.SetStatus(codes.Error, remoteErr.Error())
	}
	return remoteErr
}

// HealthCheck probes the deployment's /ok endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/ok", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("langgraph health check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("langgraph health check: status %d", resp.StatusCode)
	}
	return nil
}
