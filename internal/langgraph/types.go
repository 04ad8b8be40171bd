package langgraph

import (
	"encoding/json"
	"fmt"
)

// Stream modes requested for chat runs.
const (
	StreamModeMessagesTuple = "messages-tuple"
	StreamModeUpdates       = "updates"
	StreamModeValues        = "values"
)

// InterruptKey is the state key a paused run reports its interrupts under.
const InterruptKey = "__interrupt__"

// Message is a chat message in graph input.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Command resumes a paused run.
type Command struct {
	Resume any `json:"resume"`
}

// RunRequest is the body of a streamed run.
type RunRequest struct {
	AssistantID string   `json:"assistant_id"`
	Input       any      `json:"input,omitempty"`
	Command     *Command `json:"command,omitempty"`
	StreamMode  []string `json:"stream_mode,omitempty"`
}

// MessagesInput builds the graph input for a single user turn.
func MessagesInput(text string) map[string]any {
	return map[string]any{
		"messages": []Message{{Role: "user", Content: text}},
	}
}

// EventType classifies a decoded stream event.
type EventType string

const (
	EventMetadata  EventType = "metadata"
	EventMessage   EventType = "message"
	EventInterrupt EventType = "interrupt"
	EventError     EventType = "error"
	EventEnd       EventType = "end"
	EventOther     EventType = "other"
)

// StreamEvent is one decoded event of a run stream.
type StreamEvent struct {
	Type  EventType
	RunID string
	// Text is an assistant message delta for EventMessage.
	Text string
	// Interrupts holds the raw interrupt values for EventInterrupt.
	Interrupts []json.RawMessage
	// Err is the remote error message for EventError.
	Err string
	// Name is the raw SSE event name.
	Name string
	Data json.RawMessage
}

// StatusError is returned for non-2xx responses from the deployment.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("langgraph %s: status %d: %s", e.Op, e.Code, e.Body)
}

// RemoteError is a run failure reported inside the stream.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "langgraph run failed: " + e.Message
}
