package dispatcher

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nextlevelbuilder/scangate/internal/engine"
	"github.com/nextlevelbuilder/scangate/internal/health"
	"github.com/nextlevelbuilder/scangate/internal/metrics"
	"github.com/nextlevelbuilder/scangate/internal/toolreg"
)

// HTTPServer exposes the engine, tool registry, and health monitor over a
// plain net/http mux: /health, /tools, /tools/{name}/execute,
// /tools/{name}/{enable|disable}, /events, and /metrics.
type HTTPServer struct {
	engine         *engine.Engine
	tools          *toolreg.Registry
	monitor        *health.Monitor
	metricsReg     *metrics.Registry
	prom           *metrics.PrometheusBridge
	limiter        *RateLimiter
	allowIntrusive bool
	authToken      string

	mux *http.ServeMux
}

// SetAuthToken enables the minimal bearer-token gate on the mutating
// endpoints. An empty token leaves them open (trust-the-transport mode).
func (s *HTTPServer) SetAuthToken(token string) {
	s.authToken = token
}

// NewHTTPServer wires an HTTPServer and registers its routes.
func NewHTTPServer(eng *engine.Engine, tools *toolreg.Registry, monitor *health.Monitor, metricsReg *metrics.Registry, prom *metrics.PrometheusBridge, limiter *RateLimiter, allowIntrusive bool) *HTTPServer {
	s := &HTTPServer{
		engine:         eng,
		tools:          tools,
		monitor:        monitor,
		metricsReg:     metricsReg,
		prom:           prom,
		limiter:        limiter,
		allowIntrusive: allowIntrusive,
		mux:            http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *HTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *HTTPServer) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /tools", s.handleListTools)
	s.mux.HandleFunc("POST /tools/{name}/execute", s.authed(s.rateLimited(s.handleExecute)))
	s.mux.HandleFunc("POST /tools/{name}/enable", s.authed(s.handleToggle(true)))
	s.mux.HandleFunc("POST /tools/{name}/disable", s.authed(s.handleToggle(false)))
	s.mux.HandleFunc("GET /events", s.handleEvents)
	s.mux.HandleFunc("GET /metrics", s.handleMetrics)
}

func (s *HTTPServer) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow(callerKey(r)) {
			writeJSONError(w, http.StatusTooManyRequests, "rate limited")
			return
		}
		next(w, r)
	}
}

// authed rejects requests without the configured bearer token. A server
// with no token configured passes everything through.
func (s *HTTPServer) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.authToken == "" {
			next(w, r)
			return
		}
		supplied := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(supplied), []byte(s.authToken)) != 1 {
			writeJSONError(w, http.StatusUnauthorized, "missing or invalid bearer token")
			return
		}
		next(w, r)
	}
}

// callerKey identifies a caller for rate limiting: the bearer token's
// leading bytes when one was presented (never the full token, which would
// leak into the rate-limiter's warning logs), else the remote address.
func callerKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		tok := strings.TrimPrefix(auth, "Bearer ")
		if len(tok) > 8 {
			tok = tok[:8]
		}
		return "token:" + tok
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.monitor.Latest(r.Context())

	status := http.StatusOK
	switch snap.Status {
	case health.StatusDegraded:
		status = http.StatusMultiStatus
	case health.StatusUnhealthy:
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(snap)
}

func (s *HTTPServer) handleListTools(w http.ResponseWriter, r *http.Request) {
	type toolView struct {
		Name              string  `json:"name"`
		Command           string  `json:"command"`
		ConcurrencyCap    int     `json:"concurrency_cap"`
		DefaultTimeoutSec float64 `json:"default_timeout_sec"`
		Enabled           bool    `json:"enabled"`
	}

	var out []toolView
	for _, d := range s.tools.List() {
		if !s.tools.Enabled(d.Name) {
			continue
		}
		out = append(out, toolView{
			Name: d.Name, Command: d.Command,
			ConcurrencyCap: d.ConcurrencyCap, DefaultTimeoutSec: d.DefaultTimeoutSec,
			Enabled: true,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (s *HTTPServer) handleExecute(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	if _, known := s.tools.Descriptor(name); !known {
		writeJSONError(w, http.StatusNotFound, "unknown tool: "+name)
		return
	}
	if !s.tools.Enabled(name) {
		writeJSONError(w, http.StatusForbidden, "tool is disabled: "+name)
		return
	}

	var body ExecuteBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}
	if err := body.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	req := toRequest(name, body, s.allowIntrusive)
	result := s.engine.Execute(r.Context(), req)

	status := http.StatusOK
	switch result.ErrorKind {
	case "validation_error":
		status = http.StatusBadRequest
	case "execution_error":
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(result)
}

func (s *HTTPServer) handleToggle(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		if !s.tools.SetEnabled(name, enabled) {
			writeJSONError(w, http.StatusNotFound, "unknown tool: "+name)
			return
		}
		slog.Info("dispatcher.tool_toggled", "tool", name, "enabled", enabled)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"tool": name, "enabled": enabled})
	}
}

func (s *HTTPServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := s.monitor.Latest(ctx)
			payload, err := json.Marshal(snap)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

func (s *HTTPServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.prom != nil && s.prom.Enabled() {
		s.prom.Handler().ServeHTTP(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.metricsReg.Snapshot())
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
