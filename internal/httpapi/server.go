// Package httpapi exposes the coordination runtime over HTTP: creating and
// inspecting webs, a websocket stream of the in-process event bus, and a
// Prometheus scrape endpoint: a gin engine, gin-contrib/cors, one gorilla
// websocket upgrade per live connection, a plain net/http.Server wrapping it
// all for graceful Start/Stop.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Pharbi/arachnid/internal/config"
	"github.com/Pharbi/arachnid/internal/coordination"
	"github.com/Pharbi/arachnid/internal/events"
	"github.com/Pharbi/arachnid/internal/logging"
)

// Server is the HTTP surface over a Loop: web lifecycle
// endpoints plus an event stream.
type Server struct {
	loop   *coordination.Loop
	bus    *events.Bus
	cfg    config.RuntimeConfig
	logger logging.Logger

	engine   *gin.Engine
	http     *http.Server
	upgrader websocket.Upgrader
}

// New builds a Server bound to cfg.HTTPBindAddr, wiring loop and bus into gin routes.
func New(loop *coordination.Loop, bus *events.Bus, cfg config.RuntimeConfig, logger logging.Logger) *Server {
	if !cfg.TelemetryEnable {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsCfg.AllowWebSockets = true
	engine.Use(cors.New(corsCfg))

	s := &Server{
		loop:   loop,
		bus:    bus,
		cfg:    cfg,
		logger: logging.OrNop(logger),
		engine: engine,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	s.routes()
	s.http = &http.Server{
		Addr:         cfg.HTTPBindAddr,
		Handler:      engine,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // the event stream holds connections open indefinitely
	}
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	webs := s.engine.Group("/webs")
	{
		webs.POST("", s.handleCreateWeb)
		webs.GET("/:id", s.handleGetWeb)
		webs.POST("/:id/cancel", s.handleCancelWeb)
		webs.GET("/:id/events", s.handleEventStream)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type createWebRequest struct {
	Task       string `json:"task" binding:"required"`
	Capability string `json:"capability"`
}

func (s *Server) handleCreateWeb(c *gin.Context) {
	var req createWebRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Capability == "" {
		req.Capability = "general"
	}
	web, err := s.loop.CreateWeb(c.Request.Context(), req.Task, s.cfg, req.Capability)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, web)
}

func (s *Server) handleGetWeb(c *gin.Context) {
	web, err := s.loop.GetWeb(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, web)
}

func (s *Server) handleCancelWeb(c *gin.Context) {
	if err := s.loop.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// handleEventStream upgrades to a websocket and forwards every bus event
// whose WebID matches the path parameter, until the client disconnects.
func (s *Server) handleEventStream(c *gin.Context) {
	webID := c.Param("id")
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ch, unsubscribe := s.bus.Subscribe(64)
	defer unsubscribe()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if e.WebID != webID {
				continue
			}
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		}
	}
}

// Start runs the HTTP server until it's shut down or fails.
func (s *Server) Start() error {
	s.logger.Info("httpapi listening on %s", s.cfg.HTTPBindAddr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("httpapi: %w", err)
	}
	return nil
}

// Stop gracefully shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
