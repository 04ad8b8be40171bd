package api

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proinvest/advisor/internal/auth"
	"github.com/proinvest/advisor/internal/config"
	"github.com/proinvest/advisor/internal/interrupt"
	"github.com/proinvest/advisor/internal/langgraph"
	"github.com/proinvest/advisor/internal/metrics"
	"github.com/proinvest/advisor/internal/proxy"
	"github.com/proinvest/advisor/internal/session"
	"github.com/proinvest/advisor/internal/store"
)

// fakeLangGraph pauses every fresh run on an interrupt chosen by graph id and
// finishes every resumed run with a short reply.
type fakeLangGraph struct {
	mu      sync.Mutex
	resumes []string
	// failResumes rejects that many resume requests before accepting one.
	failResumes int
}

func (f *fakeLangGraph) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ok", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok":true}`)
	})
	mux.HandleFunc("POST /threads", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"thread_id":"thread-1"}`)
	})
	mux.HandleFunc("POST /threads/{id}/runs/stream", func(w http.ResponseWriter, r *http.Request) {
		var run langgraph.RunRequest
		if err := json.NewDecoder(r.Body).Decode(&run); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if run.Command != nil {
			f.mu.Lock()
			if f.failResumes > 0 {
				f.failResumes--
				f.mu.Unlock()
				http.Error(w, "runtime overloaded", http.StatusServiceUnavailable)
				return
			}
			f.resumes = append(f.resumes, fmt.Sprint(run.Command.Resume))
			f.mu.Unlock()
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, "event: metadata\ndata: {\"run_id\":\"run-1\"}\n\n")
			fmt.Fprint(w, "event: messages\ndata: [{\"type\":\"AIMessageChunk\",\"content\":\"All set.\"},{}]\n\n")
			fmt.Fprint(w, "event: end\ndata: null\n\n")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: metadata\ndata: {\"run_id\":\"run-1\"}\n\n")

		value := `{"steps":[{"description":"Compare plans","status":"enabled"},{"description":"Check reviews","status":"enabled"},{"description":"Fetch quotes","status":"executing"}]}`
		if run.AssistantID == config.AgentInsuranceAdvisor {
			value = `{"kind":"insurance_details","insurance_details":{"number_of_persons":2,"budget_range":"100-300"}}`
		}
		fmt.Fprint(w, "event: messages\ndata: [{\"type\":\"AIMessageChunk\",\"content\":\"Let me check.\"},{}]\n\n")
		fmt.Fprintf(w, "event: updates\ndata: {\"__interrupt__\":[{\"value\":%s}]}\n\n", value)
		fmt.Fprint(w, "event: end\ndata: null\n\n")
	})
	return mux
}

func (f *fakeLangGraph) Resumes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.resumes...)
}

type testServer struct {
	*httptest.Server
	lg   *fakeLangGraph
	host *session.Host
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	lg := &fakeLangGraph{}
	lgSrv := httptest.NewServer(lg.handler())
	t.Cleanup(lgSrv.Close)

	db, err := store.Open(filepath.Join(t.TempDir(), "advisor.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	kv := store.NewKVStore(db)

	agents := config.DefaultAgents(lgSrv.URL, "")
	m := metrics.New()
	host := session.NewHost(agents, func(a config.Agent) session.Runtime {
		return langgraph.NewClient(a.DeploymentURL, a.TracingAPIKey)
	}, m, nil)
	prox, err := proxy.New(agents, proxy.Options{}, m, nil)
	require.NoError(t, err)

	probes := map[string]HealthChecker{}
	for name, a := range agents {
		probes[name] = langgraph.NewClient(a.DeploymentURL, "")
	}

	router := NewRouter(kv, probes, host, prox, auth.NewStubService(kv, 0, nil), m, nil)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, lg: lg, host: host}
}

func (s *testServer) postJSON(t *testing.T, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(s.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// readEvents collects the SSE event names and data of a streamed turn.
func readEvents(t *testing.T, resp *http.Response) []session.Chunk {
	t.Helper()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var chunks []session.Chunk
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			var c session.Chunk
			require.NoError(t, json.Unmarshal([]byte(data), &c))
			chunks = append(chunks, c)
		}
	}
	return chunks
}

func (s *testServer) createSession(t *testing.T, agent string) string {
	t.Helper()
	resp := s.postJSON(t, "/sessions", fmt.Sprintf(`{"agent":%q}`, agent))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[CreateSessionResponse](t, resp)
	assert.Equal(t, agent, created.Agent)
	assert.Equal(t, "thread-1", created.ThreadID)
	return created.ID
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	health := decodeBody[HealthResponse](t, resp)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "ok", health.Store.Status)
	assert.Len(t, health.Agents, 2)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.createSession(t, config.AgentHumanInTheLoop)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "advisor_active_sessions 1")
	assert.Regexp(t, `advisor_http_requests_total\{method="POST",route="/sessions/?",status="201"\} 1`, string(body))
}

func TestAuthFlow(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.postJSON(t, "/auth/signup", `{"name":"Ann","email":"ann@example.com","password":"abc","confirm_password":"abc"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, auth.MsgPasswordTooShort, decodeBody[errorResponse](t, resp).Error)

	resp = srv.postJSON(t, "/auth/login", `{"email":"ann@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, auth.MsgFillAllFields, decodeBody[errorResponse](t, resp).Error)

	me, err := http.Get(srv.URL + "/auth/me")
	require.NoError(t, err)
	me.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, me.StatusCode)

	resp = srv.postJSON(t, "/auth/login", `{"email":"ann@example.com","password":"pw"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ann", decodeBody[UserResponse](t, resp).User.Name)

	me, err = http.Get(srv.URL + "/auth/me")
	require.NoError(t, err)
	defer me.Body.Close()
	require.Equal(t, http.StatusOK, me.StatusCode)
	assert.Equal(t, "ann@example.com", decodeBody[UserResponse](t, me).User.Email)

	resp = srv.postJSON(t, "/auth/logout", ``)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestCreateSessionUnknownAgent(t *testing.T) {
	srv := newTestServer(t)
	resp := srv.postJSON(t, "/sessions", `{"agent":"nope"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = srv.postJSON(t, "/sessions", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStepSelectionRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	id := srv.createSession(t, config.AgentHumanInTheLoop)

	chunks := readEvents(t, srv.postJSON(t, "/sessions/"+id+"/messages", `{"text":"Find me a plan"}`))
	require.Len(t, chunks, 3)
	assert.Equal(t, session.ChunkMessage, chunks[0].Type)
	assert.Equal(t, "Let me check.", chunks[0].Text)
	require.Equal(t, session.ChunkInterrupt, chunks[1].Type)
	assert.Equal(t, interrupt.KindStepSelection, chunks[1].Interrupt.Kind)
	assert.Equal(t, session.ChunkDone, chunks[2].Type)

	resp, err := http.Get(srv.URL + "/sessions/" + id + "/interrupt")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ev := decodeBody[interrupt.Event](t, resp)
	assert.Len(t, ev.Steps, 3)

	busy := srv.postJSON(t, "/sessions/"+id+"/messages", `{"text":"hello?"}`)
	assert.Equal(t, http.StatusConflict, busy.StatusCode)

	// Selecting the executing step has no effect on it; it is never listed.
	chunks = readEvents(t, srv.postJSON(t, "/sessions/"+id+"/resolve/steps", `{"selected":[1]}`))
	require.NotEmpty(t, chunks)
	assert.Equal(t, "All set.", chunks[0].Text)

	again := srv.postJSON(t, "/sessions/"+id+"/resolve/steps", `{}`)
	assert.Equal(t, http.StatusNotFound, again.StatusCode)

	assert.Equal(t, []string{"The user selected the following steps: Check reviews"}, srv.lg.Resumes())
}

func TestInsuranceRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	id := srv.createSession(t, config.AgentInsuranceAdvisor)
	readEvents(t, srv.postJSON(t, "/sessions/"+id+"/messages", `{"text":"I need cover"}`))

	incomplete := srv.postJSON(t, "/sessions/"+id+"/resolve/insurance", `{"insurance_type":"health"}`)
	assert.Equal(t, http.StatusBadRequest, incomplete.StatusCode)

	badOption := srv.postJSON(t, "/sessions/"+id+"/resolve/insurance", `{"insurance_type":"pet"}`)
	assert.Equal(t, http.StatusBadRequest, badOption.StatusCode)

	wrongKind := srv.postJSON(t, "/sessions/"+id+"/resolve/steps", `{}`)
	assert.Equal(t, http.StatusConflict, wrongKind.StatusCode)

	chunks := readEvents(t, srv.postJSON(t, "/sessions/"+id+"/resolve/insurance",
		`{"insurance_type":"health","location":"Austin, TX"}`))
	require.NotEmpty(t, chunks)
	assert.Equal(t, session.ChunkDone, chunks[len(chunks)-1].Type)

	assert.Equal(t, []string{
		"I need insurance for 2 person(s), with a budget of 100-300, for health insurance, located in Austin, TX.",
	}, srv.lg.Resumes())
}

func TestFreeTextResolveAndSnapshot(t *testing.T) {
	srv := newTestServer(t)
	id := srv.createSession(t, config.AgentHumanInTheLoop)
	readEvents(t, srv.postJSON(t, "/sessions/"+id+"/messages", `{"text":"Plan it"}`))

	blank := srv.postJSON(t, "/sessions/"+id+"/resolve", `{"text":"   "}`)
	assert.Equal(t, http.StatusBadRequest, blank.StatusCode)

	readEvents(t, srv.postJSON(t, "/sessions/"+id+"/resolve", `{"text":"Go ahead"}`))

	second := srv.postJSON(t, "/sessions/"+id+"/resolve", `{"text":"Go ahead"}`)
	assert.Equal(t, http.StatusNotFound, second.StatusCode)

	resp, err := http.Get(srv.URL + "/sessions/" + id)
	require.NoError(t, err)
	defer resp.Body.Close()
	snap := decodeBody[session.Snapshot](t, resp)
	assert.Equal(t, session.StateIdle, snap.State)
	assert.Nil(t, snap.Interrupt)
	assert.Equal(t, []session.Message{
		{Role: session.RoleUser, Content: "Plan it"},
		{Role: session.RoleAssistant, Content: "Let me check."},
		{Role: session.RoleUser, Content: "Go ahead"},
		{Role: session.RoleAssistant, Content: "All set."},
	}, snap.Messages)
}

func TestRejectedResumeCanBeRetried(t *testing.T) {
	srv := newTestServer(t)
	srv.lg.failResumes = 1
	id := srv.createSession(t, config.AgentHumanInTheLoop)
	readEvents(t, srv.postJSON(t, "/sessions/"+id+"/messages", `{"text":"Plan it"}`))

	chunks := readEvents(t, srv.postJSON(t, "/sessions/"+id+"/resolve", `{"text":"Go ahead"}`))
	require.Len(t, chunks, 3)
	assert.Equal(t, session.ChunkError, chunks[0].Type)
	assert.Contains(t, chunks[0].Error, "503")
	assert.Equal(t, session.ChunkInterrupt, chunks[1].Type)
	assert.Equal(t, session.ChunkDone, chunks[2].Type)

	resp, err := http.Get(srv.URL + "/sessions/" + id + "/interrupt?wait=false")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	readEvents(t, srv.postJSON(t, "/sessions/"+id+"/resolve", `{"text":"Go ahead"}`))
	assert.Equal(t, []string{"Go ahead"}, srv.lg.Resumes())
}

func TestInterruptNoWait(t *testing.T) {
	srv := newTestServer(t)
	id := srv.createSession(t, config.AgentHumanInTheLoop)

	resp, err := http.Get(srv.URL + "/sessions/" + id + "/interrupt?wait=false")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteSessionWakesLongPoll(t *testing.T) {
	srv := newTestServer(t)
	id := srv.createSession(t, config.AgentHumanInTheLoop)

	status := make(chan int, 1)
	go func() {
		resp, err := http.Get(srv.URL + "/sessions/" + id + "/interrupt")
		if err != nil {
			status <- 0
			return
		}
		resp.Body.Close()
		status <- resp.StatusCode
	}()

	// Give the long-poll a moment to park before closing the session.
	time.Sleep(50 * time.Millisecond)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/sessions/"+id, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	select {
	case code := <-status:
		assert.Equal(t, http.StatusNotFound, code)
	case <-time.After(2 * time.Second):
		t.Fatal("long-poll did not return after delete")
	}
	assert.Equal(t, 0, srv.host.Len())
}

func TestProxyMounted(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.postJSON(t, RuntimePrefix+"/"+config.AgentHumanInTheLoop+"/threads", `{}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "thread-1", decodeBody[map[string]string](t, resp)["thread_id"])
}
