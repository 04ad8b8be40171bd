package session

import "github.com/proinvest/advisor/internal/interrupt"

// ChunkType names a piece of a streamed conversation turn.
type ChunkType string

const (
	ChunkMessage   ChunkType = "message"
	ChunkInterrupt ChunkType = "interrupt"
	ChunkError     ChunkType = "error"
	ChunkDone      ChunkType = "done"
)

// Chunk is one streamed element of a run as seen by the chat UI.
type Chunk struct {
	Type      ChunkType        `json:"type"`
	Text      string           `json:"text,omitempty"`
	Interrupt *interrupt.Event `json:"interrupt,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// EmitFunc receives chunks as a run streams. Returning an error stops the
// local stream; the remote run is not told.
type EmitFunc func(Chunk) error

// Message is a transcript entry.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
