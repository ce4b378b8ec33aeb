// Package gateway implements the Gateway Surface's HTTP face (C9): the REST
// API in front of the Proxy Service.
package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/MrWong99/mcpgateway/internal/client"
	"github.com/MrWong99/mcpgateway/internal/discovery"
	"github.com/MrWong99/mcpgateway/internal/gating"
	"github.com/MrWong99/mcpgateway/internal/health"
	"github.com/MrWong99/mcpgateway/internal/observe"
	"github.com/MrWong99/mcpgateway/internal/proxy"
)

// Version is the reported gateway build version. Overridden at link time via
// -ldflags "-X ...Version=..." in release builds.
var Version = "dev"

// Server serves the HTTP face of the gateway.
type Server struct {
	proxy     *proxy.Service
	health    *health.Handler
	metrics   *observe.Metrics
	startedAt time.Time
}

// New builds a Server wrapping proxy for the HTTP face. healthHandler may be
// nil, in which case /healthz and /readyz are not mounted; /health is served
// either way.
func New(p *proxy.Service, healthHandler *health.Handler, metrics *observe.Metrics) *Server {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Server{
		proxy:     p,
		health:    healthHandler,
		metrics:   metrics,
		startedAt: time.Now(),
	}
}

// Handler builds the http.Handler serving every route, wrapped in the
// observability middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/mcp/servers", s.handleListServers)
	mux.HandleFunc("POST /api/mcp/servers", s.handleRegisterServer)
	mux.HandleFunc("DELETE /api/mcp/servers/{name}", s.handleRemoveServer)
	mux.HandleFunc("POST /api/tools/discover", s.handleDiscover)
	mux.HandleFunc("POST /api/tools/provision", s.handleProvision)
	mux.HandleFunc("POST /api/proxy/execute", s.handleExecute)
	if s.health != nil {
		s.health.Register(mux)
	}
	return observe.Middleware(s.metrics)(mux)
}

// ─── GET /health ─────────────────────────────────────────────────────────────

type healthResponse struct {
	Status  string `json:"status"`
	UptimeS int64  `json:"uptime_s"`
	Version string `json:"version"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "healthy",
		UptimeS: int64(time.Since(s.startedAt).Seconds()),
		Version: Version,
	})
}

// ─── /api/mcp/servers ────────────────────────────────────────────────────────

func (s *Server) handleListServers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.proxy.ListServers())
}

type registerServerRequest struct {
	Name   string               `json:"name"`
	Config client.BackendConfig `json:"config"`
}

func (s *Server) handleRegisterServer(w http.ResponseWriter, r *http.Request) {
	var req registerServerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req.Config.Name = req.Name

	status, err := s.proxy.RegisterServer(r.Context(), req.Config)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, status)
}

func (s *Server) handleRemoveServer(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.proxy.RemoveServer(name); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── /api/tools/discover ─────────────────────────────────────────────────────

type discoverRequest struct {
	Query   string   `json:"query"`
	Context string   `json:"context"`
	Tags    []string `json:"tags,omitempty"`
	Limit   int      `json:"limit,omitempty"`
}

type discoverResponse struct {
	Tools     []discovery.Result `json:"tools"`
	QueryID   string             `json:"query_id"`
	Timestamp time.Time          `json:"timestamp"`
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	var req discoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	results, err := s.proxy.DiscoverTools(r.Context(), discovery.Query{
		Text:    req.Query,
		Context: req.Context,
		Tags:    req.Tags,
		Limit:   req.Limit,
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	s.metrics.RecordDiscoveryQuery(r.Context())

	writeJSON(w, http.StatusOK, discoverResponse{
		Tools:     results,
		QueryID:   newQueryID(),
		Timestamp: time.Now(),
	})
}

// ─── /api/tools/provision ────────────────────────────────────────────────────

type provisionRequest struct {
	ToolIDs       []string `json:"tool_ids,omitempty"`
	MaxTools      int      `json:"max_tools,omitempty"`
	ContextTokens int      `json:"context_tokens,omitempty"`
}

type provisionResponse struct {
	Tools    []gating.Accepted `json:"tools"`
	Metadata provisionMetadata `json:"metadata"`
}

type provisionMetadata struct {
	TotalTokens   int  `json:"total_tokens"`
	GatingApplied bool `json:"gating_applied"`
}

func (s *Server) handleProvision(w http.ResponseWriter, r *http.Request) {
	var req provisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.proxy.ProvisionTools(gating.Request{
		ToolIDs:       req.ToolIDs,
		MaxTools:      req.MaxTools,
		ContextTokens: req.ContextTokens,
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, provisionResponse{
		Tools: result.Accepted,
		Metadata: provisionMetadata{
			TotalTokens:   result.TotalTokens,
			GatingApplied: result.GatingApplied,
		},
	})
}

// ─── /api/proxy/execute ──────────────────────────────────────────────────────

type executeRequest struct {
	ToolID    string         `json:"tool_id"`
	Arguments map[string]any `json:"arguments"`
}

type executeResponse struct {
	Result executeResult `json:"result"`
}

type executeResult struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	start := time.Now()
	res, err := s.proxy.ExecuteTool(r.Context(), req.ToolID, req.Arguments)
	s.metrics.ToolExecutionDuration.Record(r.Context(), time.Since(start).Seconds())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, executeResponse{
		Result: executeResult{Content: res.Content, IsError: res.IsError},
	})
}

// ─── helpers ─────────────────────────────────────────────────────────────────

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Detail: err.Error()})
}

// newQueryID derives a short, non-cryptographic identifier for a discovery
// response. It doesn't need to be globally unique — only useful for log
// correlation — so it avoids pulling in a UUID generator on the hot path.
func newQueryID() string {
	return "q-" + time.Now().UTC().Format("20060102T150405.000000000")
}
