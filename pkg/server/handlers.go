package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nstogner/eastworld-studio/pkg/transcript"
)

// --- Transcripts ---

func (s *Server) handleListTranscripts(c *gin.Context) {
	list, err := s.cfg.Transcripts.List()
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err)
		return
	}
	if session := c.Query("session"); session != "" {
		filtered := list[:0]
		for _, m := range list {
			if m.SessionUUID == session {
				filtered = append(filtered, m)
			}
		}
		list = filtered
	}
	if list == nil {
		list = []transcript.Meta{}
	}
	c.JSON(http.StatusOK, list)
}

type transcriptResponse struct {
	Header  transcript.Header  `json:"header"`
	Entries []transcript.Entry `json:"entries"`
}

func (s *Server) handleGetTranscript(c *gin.Context) {
	h, entries, err := s.cfg.Transcripts.Load(c.Param("id"))
	if errors.Is(err, transcript.ErrNotFound) {
		errorResponse(c, http.StatusNotFound, err)
		return
	}
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err)
		return
	}
	if entries == nil {
		entries = []transcript.Entry{}
	}
	c.JSON(http.StatusOK, transcriptResponse{Header: h, Entries: entries})
}

func errorResponse(c *gin.Context, status int, err error) {
	slog.Error("API Error", "path", c.Request.URL.Path, "error", err)
	c.JSON(status, gin.H{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// --- Metrics ---

type metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eastworld",
			Subsystem: "devserver",
			Name:      "requests_total",
			Help:      "Dev server requests by method, route and status.",
		}, []string{"method", "route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "eastworld",
			Subsystem: "devserver",
			Name:      "request_duration_seconds",
			Help:      "Dev server request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(m.requests, m.duration)
	return m
}

func (m *metrics) observe(method, route string, status int, d time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, route).Observe(d.Seconds())
}
