// Package proxy forwards chat-UI runtime requests to the LangGraph
// deployment bound to each agent name.
package proxy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/proinvest/advisor/internal/config"
	"github.com/proinvest/advisor/internal/metrics"
)

// DefaultPath is forwarded to when the request names only the agent.
const DefaultPath = "runs/stream"

const maxBodyBytes = 10 << 20

// Options tunes the proxy.
type Options struct {
	// RateLimit is requests per second per agent. Zero or less disables it.
	RateLimit float64
	Burst     int
}

type upstream struct {
	agent   config.Agent
	proxy   *httputil.ReverseProxy
	limiter *rate.Limiter
}

// Proxy routes /{agent}[/rest] to {deploymentURL}/{rest}.
type Proxy struct {
	upstreams map[string]*upstream
	metrics   *metrics.Collector
	logger    *zap.Logger
	tracer    trace.Tracer
}

// New builds one reverse proxy per agent.
func New(agents map[string]config.Agent, opts Options, m *metrics.Collector, logger *zap.Logger) (*Proxy, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Proxy{
		upstreams: make(map[string]*upstream, len(agents)),
		metrics:   m,
		logger:    logger.With(zap.String("component", "proxy")),
		tracer:    otel.Tracer("github.com/proinvest/advisor/internal/proxy"),
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.Burst
	if burst < 1 {
		burst = 1
	}

	for name, a := range agents {
		target, err := url.Parse(a.DeploymentURL)
		if err != nil {
			return nil, fmt.Errorf("agent %s: parse deployment url: %w", name, err)
		}
		p.upstreams[name] = &upstream{
			agent:   a,
			proxy:   p.reverseProxy(a, target),
			limiter: rate.NewLimiter(limit, burst),
		}
	}
	return p, nil
}

func (p *Proxy) reverseProxy(a config.Agent, target *url.URL) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Scheme = target.Scheme
			pr.Out.URL.Host = target.Host
			pr.Out.URL.Path = strings.TrimRight(target.Path, "/") + "/" + restPath(pr.In)
			pr.Out.URL.RawPath = ""
			pr.Out.URL.RawQuery = pr.In.URL.RawQuery
			pr.Out.Host = target.Host
			if a.TracingAPIKey != "" {
				pr.Out.Header.Set("X-Api-Key", a.TracingAPIKey)
			}
			otel.GetTextMapPropagator().Inject(pr.Out.Context(), propagation.HeaderCarrier(pr.Out.Header))
		},
		// Run streams are SSE; flush every write.
		FlushInterval: -1,
		ModifyResponse: func(resp *http.Response) error {
			p.metrics.RecordProxyRequest(a.Name, resp.StatusCode)
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			p.metrics.RecordProxyRequest(a.Name, http.StatusBadGateway)
			p.logger.Error("upstream request failed",
				zap.String("agent", a.Name),
				zap.String("path", restPath(r)),
				zap.Error(err),
			)
			writeError(w, http.StatusBadGateway, "agent runtime unavailable")
		},
	}
}

// Routes returns the proxy router, to be mounted under the runtime prefix.
func (p *Proxy) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/{agent}", p.ServeAgent)
	r.Handle("/{agent}/*", http.HandlerFunc(p.ServeAgent))
	return r
}

// ServeAgent forwards one request to the named agent's deployment.
func (p *Proxy) ServeAgent(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "agent")
	up, ok := p.upstreams[name]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown agent %q", name))
		return
	}

	if !up.limiter.Allow() {
		p.metrics.RecordRateLimited(name)
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	ctx, span := p.tracer.Start(r.Context(), "proxy.forward", trace.WithAttributes(
		attribute.String("agent", name),
		attribute.String("langgraph.path", restPath(r)),
	))
	defer span.End()
	r = r.WithContext(ctx)

	if r.Method == http.MethodPost && isRunPath(restPath(r)) {
		if err := injectAssistantID(r, up.agent.GraphID); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	up.proxy.ServeHTTP(w, r)
}

func restPath(r *http.Request) string {
	rest := strings.Trim(chi.URLParam(r, "*"), "/")
	if rest == "" {
		return DefaultPath
	}
	return rest
}

// isRunPath matches the endpoints that create runs: runs, runs/stream and
// runs/wait, thread-scoped or not.
func isRunPath(rest string) bool {
	return strings.HasSuffix(rest, "runs") ||
		strings.HasSuffix(rest, "runs/stream") ||
		strings.HasSuffix(rest, "runs/wait")
}

// injectAssistantID sets assistant_id on a JSON object body that lacks one.
// Other bodies are forwarded untouched.
func injectAssistantID(r *http.Request, graphID string) error {
	if r.Body == nil {
		return nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	r.Body.Close()
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return fmt.Errorf("request body too large")
	}

	var fields map[string]json.RawMessage
	if json.Unmarshal(body, &fields) == nil && fields != nil {
		if _, ok := fields["assistant_id"]; !ok {
			fields["assistant_id"], _ = json.Marshal(graphID)
			if rewritten, err := json.Marshal(fields); err == nil {
				body = rewritten
			}
		}
	}

	r.Body = io.NopCloser(bytes.NewReader(body))
	r.ContentLength = int64(len(body))
	r.Header.Set("Content-Length", strconv.Itoa(len(body)))
	return nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
