// Package server exposes wizard sessions, the municipality lookup and the
// project screens' portal calls over HTTP.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "geoincra-portal/internal/common/errors"
	"geoincra-portal/internal/common/logger"
	"geoincra-portal/internal/models"
	"geoincra-portal/internal/session"
)

func init() {
	// draft numbers reach the wizard as json.Number
	binding.EnableDecoderUseNumber = true
}

// Checker reports whether a dependency is reachable.
type Checker func(ctx context.Context) error

// MunicipalitySearcher is satisfied by municipality.Cache.
type MunicipalitySearcher interface {
	Search(ctx context.Context, query, state string) []models.Municipality
}

type Options struct {
	Sessions       *session.Manager
	Municipios     MunicipalitySearcher
	DefaultState   string
	Portal         *Portal
	Checks         map[string]Checker
	Logger         logger.Logger
	CheckTimeout   time.Duration
	MaxBodyBytes   int64
	MaxUploadBytes int64
}

type Server struct {
	sessions     *session.Manager
	municipios   MunicipalitySearcher
	defaultState string
	portal       *Portal
	checks       map[string]Checker
	checkTimeout time.Duration
	maxBody      int64
	maxUpload    int64
	logger       logger.Logger
	engine       *gin.Engine
}

func New(opts Options) *Server {
	s := &Server{
		sessions:     opts.Sessions,
		municipios:   opts.Municipios,
		defaultState: opts.DefaultState,
		portal:       opts.Portal,
		checks:       opts.Checks,
		checkTimeout: opts.CheckTimeout,
		maxBody:      opts.MaxBodyBytes,
		maxUpload:    opts.MaxUploadBytes,
		logger:       opts.Logger,
		engine:       gin.New(),
	}
	if s.logger == nil {
		s.logger = logger.NewNoOpLogger()
	}
	if s.checkTimeout <= 0 {
		s.checkTimeout = 2 * time.Second
	}
	if s.maxBody <= 0 {
		s.maxBody = 1 << 20
	}
	if s.maxUpload <= 0 {
		s.maxUpload = 32 << 20
	}
	if s.defaultState == "" {
		s.defaultState = "RO"
	}

	s.engine.Use(s.requestLogger(), gin.CustomRecoveryWithWriter(io.Discard, s.recovered))
	s.engine.NoRoute(func(c *gin.Context) {
		s.writeError(c, apperrors.NewNotFoundError("route", c.Request.URL.Path))
	})
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.engine.Group("/api", limitBody(s.maxBody))

	// :wizard is the wizard kind on create and the session id everywhere else
	api.POST("/wizards/:wizard", s.handleCreate)
	api.GET("/wizards/:wizard", s.handleGet)
	api.DELETE("/wizards/:wizard", s.handleDelete)
	api.PATCH("/wizards/:wizard/draft", s.handleDraft)
	api.PUT("/wizards/:wizard/target", s.handleTarget)
	api.POST("/wizards/:wizard/:action", s.handleAction)
	api.GET("/municipios", s.handleMunicipios)

	s.portalRoutes(api, s.engine.Group("/api", limitBody(s.maxUpload)))

	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/ready", s.handleReady)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request served", map[string]interface{}{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"route":    c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		})
	}
}

func (s *Server) recovered(c *gin.Context, err any) {
	s.writeError(c, apperrors.NewInternalError(fmt.Errorf("panic: %v", err)))
	c.Abort()
}

func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.checkTimeout)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	body := gin.H{
		"status": "ready",
		"checks": results,
		"time":   time.Now().Format(time.RFC3339),
	}
	if status != http.StatusOK {
		body["status"] = "not ready"
	}
	c.JSON(status, body)
}
