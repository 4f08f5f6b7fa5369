// Package server is the development server: it proxies the Content Service
// under /api, serves the built editor, and exposes recorded transcripts.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nstogner/eastworld-studio/pkg/transcript"
)

const apiPrefix = "/api"

// Config configures a Server.
type Config struct {
	// Target is the Content Service base URL that /api forwards to.
	Target string
	// StaticDir holds the built editor. Unknown paths fall back to its
	// index.html. Empty disables static serving.
	StaticDir string
	// Transcripts may be nil, which disables the /dev/transcripts routes.
	Transcripts *transcript.Store
	// Registry receives the server's collectors and is served at /metrics.
	// Defaults to a fresh registry.
	Registry *prometheus.Registry
}

// Server serves the dev API and the editor.
type Server struct {
	cfg     Config
	target  *url.URL
	engine  *gin.Engine
	metrics *metrics
	srv     *http.Server
}

// New builds the router.
func New(cfg Config) (*Server, error) {
	target, err := url.Parse(cfg.Target)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid proxy target %q", cfg.Target)
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	s := &Server{
		cfg:     cfg,
		target:  target,
		metrics: newMetrics(cfg.Registry),
	}
	s.engine = s.routes()
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests(), corsMiddleware())

	r.Any(apiPrefix+"/*path", gin.WrapH(s.proxy()))
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.cfg.Registry, promhttp.HandlerOpts{})))

	if s.cfg.Transcripts != nil {
		dev := r.Group("/dev/transcripts")
		dev.GET("", s.handleListTranscripts)
		dev.GET("/:id", s.handleGetTranscript)
		dev.GET("/:id/watch", s.handleWatchTranscript)
	}

	r.NoRoute(s.handleStatic)
	return r
}

// Start serves on addr until ctx is done.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("Starting dev server", "addr", addr, "target", s.target.String(), "static", s.cfg.StaticDir)
		errc <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// proxy forwards /api/... to the target with the prefix removed.
func (s *Server) proxy() http.Handler {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Path = strings.TrimPrefix(pr.In.URL.Path, apiPrefix)
			pr.Out.URL.RawPath = strings.TrimPrefix(pr.In.URL.RawPath, apiPrefix)
			pr.SetURL(s.target)
			pr.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			slog.Error("Proxy error", "path", r.URL.Path, "error", err)
			writeJSON(w, http.StatusBadGateway, gin.H{"detail": "Content Service unavailable"})
		},
	}
}

func (s *Server) handleStatic(c *gin.Context) {
	urlPath := c.Request.URL.Path
	if s.cfg.StaticDir == "" || strings.HasPrefix(urlPath, "/dev/") {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.Status(http.StatusMethodNotAllowed)
		return
	}

	rel := strings.TrimPrefix(path.Clean("/"+urlPath), "/")
	if rel != "" {
		full := filepath.Join(s.cfg.StaticDir, filepath.FromSlash(rel))
		if info, err := os.Stat(full); err == nil && !info.IsDir() {
			c.File(full)
			return
		}
	}

	index := filepath.Join(s.cfg.StaticDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		slog.Error("Failed to open index.html", "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.File(index)
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.observe(c.Request.Method, route, c.Writer.Status(), time.Since(start))
		slog.Debug("Request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
