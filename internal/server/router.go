package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/menu2img-desktop/internal/metrics"
	"github.com/loykin/menu2img-desktop/internal/supervisor"
)

// Backend is the supervisor view the diagnostics router reads from.
type Backend interface {
	Ready() bool
	Status() supervisor.Snapshot
	RecentOutput(n int) []supervisor.Line
	OutputSince(seq int64) []supervisor.Line
}

// ResourceSource provides the latest resource sample of the backend.
type ResourceSource interface {
	Latest() (metrics.ResourceUsage, bool)
}

const (
	defaultLogLines = 100
	maxLogLines     = 1000
)

// Router provides read-only diagnostics handlers for the supervised backend.
// Endpoints:
//
//	GET {basePath}/healthz          200 when the backend is ready, 503 otherwise
//	GET {basePath}/status           supervisor snapshot plus the latest resource sample
//	GET {basePath}/logs?n=&since=   recent backend output lines
//	GET {basePath}/metrics          prometheus exposition
type Router struct {
	backend   Backend
	resources ResourceSource
	gatherer  prometheus.Gatherer
	version   string
	basePath  string
}

type RouterOption func(*Router)

// WithResources adds resource samples to /status.
func WithResources(src ResourceSource) RouterOption {
	return func(r *Router) { r.resources = src }
}

// WithGatherer serves /metrics from g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) RouterOption {
	return func(r *Router) { r.gatherer = g }
}

// WithVersion reports the application version in /status.
func WithVersion(v string) RouterOption {
	return func(r *Router) { r.version = v }
}

// NewRouter constructs a Router; basePath may be empty or start with '/'.
func NewRouter(b Backend, basePath string, opts ...RouterOption) *Router {
	r := &Router{backend: b, basePath: sanitizeBase(basePath)}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/healthz", r.handleHealth)
	group.GET("/status", r.handleStatus)
	group.GET("/logs", r.handleLogs)
	group.GET("/metrics", r.handleMetrics())
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
// Listen errors are returned synchronously; serve errors are logged.
func NewServer(addr string, r *Router, log *slog.Logger) (*http.Server, error) {
	if log == nil {
		log = slog.Default()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	server := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Diagnostics server stopped", "addr", server.Addr, "error", err)
		}
	}()
	log.Info("Diagnostics server listening", "addr", server.Addr)
	return server, nil
}

// Shutdown gracefully stops a server created by NewServer.
func Shutdown(ctx context.Context, s *http.Server) error {
	if s == nil {
		return nil
	}
	return s.Shutdown(ctx)
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type healthResp struct {
	OK    bool   `json:"ok"`
	Ready bool   `json:"ready"`
	State string `json:"state"`
}

type statusResp struct {
	Version   string                 `json:"version,omitempty"`
	Backend   supervisor.Snapshot    `json:"backend"`
	Resources *metrics.ResourceUsage `json:"resources,omitempty"`
}

type logsResp struct {
	Lines []supervisor.Line `json:"lines"`
	Next  int64             `json:"next"`
}

func (r *Router) handleHealth(c *gin.Context) {
	ready := r.backend.Ready()
	resp := healthResp{OK: ready, Ready: ready, State: r.backend.Status().State}
	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(c, code, resp)
}

func (r *Router) handleStatus(c *gin.Context) {
	resp := statusResp{Version: r.version, Backend: r.backend.Status()}
	if r.resources != nil {
		if u, ok := r.resources.Latest(); ok {
			resp.Resources = &u
		}
	}
	writeJSON(c, http.StatusOK, resp)
}

func (r *Router) handleLogs(c *gin.Context) {
	n := defaultLogLines
	if s := c.Query("n"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "n must be a non-negative integer"})
			return
		}
		n = v
	}
	if n > maxLogLines {
		n = maxLogLines
	}
	var lines []supervisor.Line
	if s := c.Query("since"); s != "" {
		seq, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "since must be an integer sequence"})
			return
		}
		lines = r.backend.OutputSince(seq)
		if n > 0 && len(lines) > n {
			lines = lines[:n]
		}
	} else {
		lines = r.backend.RecentOutput(n)
	}
	if lines == nil {
		lines = []supervisor.Line{}
	}
	var next int64
	if len(lines) > 0 {
		next = lines[len(lines)-1].Seq
	}
	writeJSON(c, http.StatusOK, logsResp{Lines: lines, Next: next})
}

func (r *Router) handleMetrics() gin.HandlerFunc {
	h := metrics.Handler()
	if r.gatherer != nil {
		h = metrics.HandlerFor(r.gatherer)
	}
	return gin.WrapH(h)
}
