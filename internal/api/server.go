// Package api is the thin HTTP transport over the key manager. Error kinds
// are mapped to status codes here and nowhere else.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/systmms/keygate/internal/config"
	kgerrors "github.com/systmms/keygate/internal/errors"
	"github.com/systmms/keygate/internal/logging"
	"github.com/systmms/keygate/internal/manager"
	"github.com/systmms/keygate/internal/metrics"
)

// Server exposes the key manager operations over HTTP.
type Server struct {
	manager *manager.Manager
	def     *config.Definition
	logger  *logging.Logger
}

// NewServer creates the HTTP transport for the given manager.
func NewServer(mgr *manager.Manager, def *config.Definition, logger *logging.Logger) *Server {
	return &Server{manager: mgr, def: def, logger: logger}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.observe())

	r.GET("/health", s.health)
	r.POST("/apps/:name/schedule", s.createOrReschedule)
	r.POST("/apps/:name/rotate", s.rotate)
	r.GET("/apps/:name", s.getStatus)
	r.GET("/apps", s.list)
	r.GET("/verify/:name", s.verify)

	return r
}

// observe records request durations per route and status.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		metrics.RequestObserved(c.FullPath(), http.StatusText(c.Writer.Status()), time.Since(start).Seconds())
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"mode":      s.def.Mode,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type scheduleRequest struct {
	RotationPeriodDays int `json:"rotation_period_days"`
}

func (s *Server) createOrReschedule(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	cred, err := s.manager.Create(c.Request.Context(), c.Param("name"), req.RotationPeriodDays)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cred)
}

func (s *Server) rotate(c *gin.Context) {
	cred, err := s.manager.Rotate(c.Request.Context(), c.Param("name"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cred)
}

func (s *Server) getStatus(c *gin.Context) {
	cred, err := s.manager.GetStatus(c.Request.Context(), c.Param("name"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cred)
}

func (s *Server) list(c *gin.Context) {
	creds, err := s.manager.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, creds)
}

func (s *Server) verify(c *gin.Context) {
	c.JSON(http.StatusOK, s.manager.Verify(c.Request.Context(), c.Param("name")))
}

// fail maps an error kind to a response. No credential material is ever
// echoed back in an error body.
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case kgerrors.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case kgerrors.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case kgerrors.IsPermission(err):
		c.JSON(http.StatusForbidden, gin.H{"error": "backend permission denied"})
	case kgerrors.IsTransient(err):
		c.JSON(http.StatusBadGateway, gin.H{"error": "backend temporarily unavailable"})
	default:
		s.logger.Error("request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
