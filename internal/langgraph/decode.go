package langgraph

import (
	"encoding/json"
	"strings"

	"github.com/proinvest/advisor/internal/sse"
)

// DecodeEvent turns an SSE frame of a LangGraph run stream into a StreamEvent.
// Subgraph events ("updates|ns") are treated like their root event.
func DecodeEvent(ev sse.Event) StreamEvent {
	name, _, _ := strings.Cut(ev.Name, "|")
	out := StreamEvent{Type: EventOther, Name: ev.Name, Data: json.RawMessage(ev.Data)}

	switch name {
	case "metadata":
		var meta struct {
			RunID string `json:"run_id"`
		}
		if json.Unmarshal(ev.Data, &meta) == nil {
			out.Type = EventMetadata
			out.RunID = meta.RunID
		}
	case "messages":
		if text, ok := decodeMessageChunk(ev.Data); ok {
			out.Type = EventMessage
			out.Text = text
		}
	case "updates", "values":
		if values := decodeInterrupts(ev.Data); len(values) > 0 {
			out.Type = EventInterrupt
			out.Interrupts = values
		}
	case "error":
		var e struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		out.Type = EventError
		out.Err = string(ev.Data)
		if json.Unmarshal(ev.Data, &e) == nil {
			switch {
			case e.Error != "" && e.Message != "":
				out.Err = e.Error + ": " + e.Message
			case e.Message != "":
				out.Err = e.Message
			case e.Error != "":
				out.Err = e.Error
			}
		}
	case "end":
		out.Type = EventEnd
	}
	return out
}

// decodeMessageChunk reads a messages-tuple frame: [message, metadata].
func decodeMessageChunk(data []byte) (string, bool) {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil || len(tuple) == 0 {
		return "", false
	}

	var msg struct {
		Type    string          `json:"type"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(tuple[0], &msg); err != nil {
		return "", false
	}
	if msg.Type != "AIMessageChunk" && msg.Type != "ai" {
		return "", false
	}

	var text string
	if err := json.Unmarshal(msg.Content, &text); err == nil {
		return text, text != ""
	}

	// Content blocks: [{"type":"text","text":"..."}]
	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(msg.Content, &blocks); err != nil {
		return "", false
	}
	var b strings.Builder
	for _, blk := range blocks {
		if blk.Type == "text" {
			b.WriteString(blk.Text)
		}
	}
	return b.String(), b.Len() > 0
}

func decodeInterrupts(data []byte) []json.RawMessage {
	var state map[string]json.RawMessage
	if err := json.Unmarshal(data, &state); err != nil {
		return nil
	}
	raw, ok := state[InterruptKey]
	if !ok {
		return nil
	}

	var items []struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	values := make([]json.RawMessage, 0, len(items))
	for _, it := range items {
		if len(it.Value) > 0 {
			values = append(values, it.Value)
		}
	}
	return values
}
