// Package api serves the dashboard JSON API and live event feed.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"stock-movement-lab/internal/history"
	"stock-movement-lab/internal/observability"
	"stock-movement-lab/internal/pipeline"
	"stock-movement-lab/internal/session"
)

// DefaultMaxUploadBytes bounds an uploaded workbook.
const DefaultMaxUploadBytes = 32 << 20

// Server wires sessions and analysis components to HTTP routes.
type Server struct {
	sessions  *session.Registry
	analyzer  *pipeline.Analyzer
	processor *pipeline.CoverageProcessor
	tracker   *history.Tracker // optional

	hub            *Hub // optional
	metrics        *observability.Metrics
	metricsHandler http.Handler
	logger         logrus.FieldLogger
	clock          func() time.Time

	maxUploadBytes int64
	allowedOrigins []string
}

// NewServer creates a server.
func NewServer(sessions *session.Registry, analyzer *pipeline.Analyzer, processor *pipeline.CoverageProcessor) *Server {
	return &Server{
		sessions:       sessions,
		analyzer:       analyzer,
		processor:      processor,
		logger:         logrus.StandardLogger(),
		clock:          time.Now,
		maxUploadBytes: DefaultMaxUploadBytes,
	}
}

// WithTracker enables the history endpoint.
func (s *Server) WithTracker(t *history.Tracker) *Server {
	s.tracker = t
	return s
}

// WithHub enables the websocket feed.
func (s *Server) WithHub(h *Hub) *Server {
	s.hub = h
	return s
}

// WithMetrics sets the metrics sink and the /metrics handler.
func (s *Server) WithMetrics(m *observability.Metrics, handler http.Handler) *Server {
	s.metrics = m
	s.metricsHandler = handler
	return s
}

// WithLogger sets the logger.
func (s *Server) WithLogger(l logrus.FieldLogger) *Server {
	if l != nil {
		s.logger = l
	}
	return s
}

// WithClock sets a custom clock function.
func (s *Server) WithClock(clock func() time.Time) *Server {
	s.clock = clock
	return s
}

// WithUploadLimit sets the maximum upload size in bytes.
func (s *Server) WithUploadLimit(n int64) *Server {
	if n > 0 {
		s.maxUploadBytes = n
	}
	return s
}

// WithAllowedOrigins sets the CORS origins. Empty allows any origin.
func (s *Server) WithAllowedOrigins(origins []string) *Server {
	s.allowedOrigins = origins
	return s
}

// Handler builds the gin engine.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), s.cors())
	r.MaxMultipartMemory = s.maxUploadBytes

	r.NoRoute(func(c *gin.Context) {
		s.respondError(c, http.StatusNotFound, ErrCodeNotFound, "route not found", nil, "")
	})

	r.GET("/health", s.health)
	if s.metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(s.metricsHandler))
	}
	if s.hub != nil {
		r.GET("/ws", gin.WrapH(s.hub))
	}

	api := r.Group("/api")
	api.POST("/sessions", s.createSession)
	api.GET("/sessions/:id", s.getSession)
	api.DELETE("/sessions/:id", s.deleteSession)
	api.POST("/sessions/:id/movements", s.upload(session.KindMovements))
	api.POST("/sessions/:id/entries", s.upload(session.KindEntries))
	api.POST("/sessions/:id/exits", s.upload(session.KindExits))
	api.POST("/sessions/:id/coverage", s.upload(session.KindCoverage))
	api.POST("/sessions/:id/coverage/process", s.processCoverage)
	api.GET("/sessions/:id/analysis", s.analysis)
	api.GET("/sessions/:id/export", s.export)
	api.GET("/history", s.history)

	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.WithFields(logrus.Fields{
			"module":   "api",
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("request")
	}
}

func (s *Server) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if allowed := s.allowOrigin(origin); allowed != "" {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", allowed)
			h.Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Origin, Cache-Control, X-Requested-With")
			h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			if allowed != "*" {
				h.Add("Vary", "Origin")
			}
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) allowOrigin(origin string) string {
	if len(s.allowedOrigins) == 0 {
		return "*"
	}
	for _, o := range s.allowedOrigins {
		if o == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}

// CheckOrigin returns a websocket origin policy matching the CORS origins.
func CheckOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

func (s *Server) health(c *gin.Context) {
	status := gin.H{
		"status":   "ok",
		"sessions": s.sessions.Len(),
		"durable":  s.tracker != nil && s.tracker.HasDurable(),
	}
	if s.hub != nil {
		status["ws_clients"] = s.hub.Clients()
	}
	c.JSON(http.StatusOK, status)
}
