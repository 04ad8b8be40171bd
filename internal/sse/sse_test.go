package sse

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReader(t *testing.T) {
	stream := strings.Join([]string{
		": heartbeat",
		"",
		"event: metadata",
		`data: {"run_id":"r1"}`,
		"",
		"event: updates",
		`data: {"a":`,
		`data: 1}`,
		"",
		"data: no name",
		"",
		"event: end",
		"",
	}, "\n")

	r := NewReader(strings.NewReader(stream))

	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "metadata", ev.Name)
	assert.JSONEq(t, `{"run_id":"r1"}`, string(ev.Data))

	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "updates", ev.Name)
	assert.Equal(t, "{\"a\":\n1}", string(ev.Data))

	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "", ev.Name)
	assert.Equal(t, "no name", string(ev.Data))

	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "end", ev.Name)
	assert.Empty(t, ev.Data)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReaderUnterminatedEvent(t *testing.T) {
	r := NewReader(strings.NewReader("event: done\ndata: {}"))
	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "done", ev.Name)
	assert.Equal(t, "{}", string(ev.Data))
}

func TestWriterRoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	require.NoError(t, err)
	assert.False(t, w.Started())

	require.NoError(t, w.Send("message", []byte(`{"text":"hi"}`)))
	require.NoError(t, w.Send("done", []byte("line one\nline two")))
	assert.True(t, w.Started())
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	r := NewReader(rec.Body)
	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "message", ev.Name)
	assert.Equal(t, `{"text":"hi"}`, string(ev.Data))

	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", string(ev.Data))
}
