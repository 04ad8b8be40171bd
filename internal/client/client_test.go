package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proinvest/advisor/internal/interrupt"
	"github.com/proinvest/advisor/internal/session"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["agent"] != "insurance_advisor" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":"unknown agent"}`)
			return
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":"s-1","agent":"insurance_advisor","thread_id":"t-1"}`)
	})
	mux.HandleFunc("POST /sessions/s-1/messages", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: message\ndata: {\"type\":\"message\",\"text\":\"Hi\"}\n\n")
		fmt.Fprint(w, "event: interrupt\ndata: {\"type\":\"interrupt\",\"interrupt\":{\"kind\":\"step_selection\",\"steps\":[{\"description\":\"A\",\"status\":\"enabled\"}]}}\n\n")
		fmt.Fprint(w, "event: done\ndata: {\"type\":\"done\"}\n\n")
	})
	mux.HandleFunc("POST /sessions/s-1/resolve", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		fmt.Fprint(w, `{"error":"interrupt already resolved"}`)
	})
	mux.HandleFunc("GET /sessions/s-1/interrupt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"kind":"insurance_details","insurance_details":{"number_of_persons":1,"budget_range":"","insurance_type":"","location":""}}`)
	})
	mux.HandleFunc("DELETE /sessions/s-1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"status":"degraded"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCreateSession(t *testing.T) {
	c := New(newServer(t).URL)

	info, err := c.CreateSession(context.Background(), "insurance_advisor")
	require.NoError(t, err)
	assert.Equal(t, &SessionInfo{ID: "s-1", Agent: "insurance_advisor", ThreadID: "t-1"}, info)

	_, err = c.CreateSession(context.Background(), "nope")
	assert.True(t, IsStatus(err, http.StatusNotFound))
	assert.Contains(t, err.Error(), "unknown agent")
}

func TestSendStreamsChunks(t *testing.T) {
	c := New(newServer(t).URL)

	var chunks []session.Chunk
	err := c.Send(context.Background(), "s-1", "hello", func(ch session.Chunk) error {
		chunks = append(chunks, ch)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "Hi", chunks[0].Text)
	require.NotNil(t, chunks[1].Interrupt)
	assert.Equal(t, interrupt.KindStepSelection, chunks[1].Interrupt.Kind)
	assert.Equal(t, session.ChunkDone, chunks[2].Type)
}

func TestResolveConflict(t *testing.T) {
	c := New(newServer(t).URL)
	err := c.Resolve(context.Background(), "s-1", "again", func(session.Chunk) error { return nil })
	assert.True(t, IsStatus(err, http.StatusConflict))
}

func TestAwaitInterruptAndClose(t *testing.T) {
	c := New(newServer(t).URL)

	ev, err := c.AwaitInterrupt(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, interrupt.KindInsuranceDetails, ev.Kind)
	assert.Equal(t, 1, ev.Insurance.NumberOfPersons)

	assert.NoError(t, c.CloseSession(context.Background(), "s-1"))
}

func TestHealthDegraded(t *testing.T) {
	err := New(newServer(t).URL).Health(context.Background())
	assert.True(t, IsStatus(err, http.StatusServiceUnavailable))
}
