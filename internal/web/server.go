package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"github.com/vzahanych/view-guard-meta/portal/internal/aggregate"
	"github.com/vzahanych/view-guard-meta/portal/internal/backend"
	"github.com/vzahanych/view-guard-meta/portal/internal/config"
	"github.com/vzahanych/view-guard-meta/portal/internal/live"
	"github.com/vzahanych/view-guard-meta/portal/internal/logger"
	"github.com/vzahanych/view-guard-meta/portal/internal/service"
)

// Server represents the view API server service
type Server struct {
	*service.ServiceBase
	config     *config.WebConfig
	logger     *logger.Logger
	httpServer *http.Server
	listener   net.Listener
	router     *gin.Engine
	handler    http.Handler
	views      Views
	commands   Commands
	hub        LiveHub      // Optional live update hub
	statuses   StatusSource // Optional, reported by /api/status
	version    string
	startTime  time.Time
}

// Views builds the composite page models served under /api/views
type Views interface {
	Camera(ctx context.Context, cameraID string) (*backend.Camera, error)
	CameraView(ctx context.Context, cameraID string) (*aggregate.CameraView, error)
	UpdatedInfo(ctx context.Context, q aggregate.UpdateQuery) (*aggregate.UpdatedInfo, error)
	ListCameras(ctx context.Context, ids []string) ([]aggregate.CameraItem, error)
	ListTranscoders(ctx context.Context, ids []string) ([]aggregate.TranscoderItem, error)
	ListPeople(ctx context.Context, ids []string) ([]aggregate.PersonItem, error)
	ListEvents(ctx context.Context, q backend.EventQuery) ([]aggregate.SummarizedEvent, error)
	ListGroups(ctx context.Context, ids []string) ([]backend.CameraGroup, error)
	PersonInfo(ctx context.Context, personID string) (*aggregate.PersonInfo, error)
	PersonHistory(ctx context.Context, personID string) (*aggregate.PersonHistoryView, error)
	PTZ(ctx context.Context, cameraID string, d aggregate.Direction) (backend.RemoteControl, error)
}

// Commands are forwarded to the backend unchanged once validated
type Commands interface {
	AddCamera(ctx context.Context, req backend.AddCameraRequest) (string, error)
	DeleteCamera(ctx context.Context, id string) error
	ToggleStream(ctx context.Context, cameraID string, enabled bool) error
	UpdateTranscoder(ctx context.Context, req backend.UpdateTranscoderRequest) error
	Healthcheck(ctx context.Context, transcoderID string) (*backend.HealthcheckResponse, error)
	AddPerson(ctx context.Context, req backend.AddPersonRequest) (string, error)
	DeletePerson(ctx context.Context, personID string) error
	GetDeviceInfo(ctx context.Context, cameraID string) (*backend.DeviceInfo, error)
}

// LiveHub accepts WebSocket clients for one camera
type LiveHub interface {
	ServeWS(w http.ResponseWriter, r *http.Request, target live.Target)
}

// StatusSource provides managed service states
type StatusSource interface {
	GetAllStatuses() map[string]*service.ServiceStatus
}

// NewServer creates a new web server service
func NewServer(cfg *config.WebConfig, views Views, commands Commands, log *logger.Logger) *Server {
	// Debug mode can be enabled via GIN_MODE environment variable
	gin.SetMode(gin.ReleaseMode)
	if log == nil {
		log = logger.NewNopLogger()
	}

	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())

	s := &Server{
		ServiceBase: service.NewServiceBase("web-server", log),
		config:      cfg,
		logger:      log,
		router:      router,
		views:       views,
		commands:    commands,
		version:     "dev", // Default version, can be set via SetVersion
		startTime:   time.Now(),
	}
	s.setupRoutes()
	s.handler = corsHandler(cfg.AllowedOrigins).Handler(router)
	return s
}

// SetVersion sets the application version
func (s *Server) SetVersion(version string) {
	s.version = version
}

// SetLiveHub enables the /ws live update endpoint
func (s *Server) SetLiveHub(hub LiveHub) {
	s.hub = hub
}

// SetStatusSource sets the service states reported by /api/status
func (s *Server) SetStatusSource(src StatusSource) {
	s.statuses = src
}

// Handler returns the router wrapped with CORS
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the web server
func (s *Server) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.LogInfo("Web server is disabled")
		return nil
	}

	// Write timeouts stay disabled; WebSocket connections manage their own deadlines
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 15 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = ln

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.LogError("Web server error", err, "address", ln.Addr().String())
		}
	}()

	s.LogInfo("Web server started", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound address once started
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop stops the web server
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	s.LogInfo("Stopping web server")
	return s.httpServer.Shutdown(ctx)
}

// setupRoutes sets up all API routes
func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/status", s.handleStatus)

		// Composite read models
		views := api.Group("/views")
		{
			views.GET("/cameras", s.handleListCameras)
			views.GET("/cameras/:id", s.handleCameraView)
			views.GET("/cameras/:id/updates", s.handleUpdatedInfo)
			views.GET("/cameras/:id/device", s.handleDeviceInfo)
			views.GET("/transcoders", s.handleListTranscoders)
			views.GET("/people", s.handleListPeople)
			views.GET("/people/:id", s.handlePersonInfo)
			views.GET("/people/:id/history", s.handlePersonHistory)
			views.GET("/events", s.handleListEvents)
			views.GET("/groups", s.handleListGroups)
		}

		cameras := api.Group("/cameras")
		{
			cameras.POST("", s.handleAddCamera)
			cameras.DELETE("/:id", s.handleDeleteCamera)
			cameras.PUT("/:id/streams", s.handleToggleStream)
			cameras.POST("/:id/ptz", s.handlePTZ)
		}

		transcoders := api.Group("/transcoders")
		{
			transcoders.PUT("/:id", s.handleUpdateTranscoder)
			transcoders.POST("/:id/healthcheck", s.handleHealthcheck)
		}

		people := api.Group("/people")
		{
			people.POST("", s.handleAddPerson)
			people.DELETE("/:id", s.handleDeletePerson)
		}
	}

	s.router.GET("/ws/cameras/:id", s.handleLive)

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
}

// corsHandler allows the configured browser origins
func corsHandler(origins []string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	})
}

// ginLogger creates a Gin middleware for logging
func ginLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		fields := []interface{}{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency", latency,
			"client_ip", c.ClientIP(),
		}
		if status >= http.StatusInternalServerError {
			log.Warn("HTTP request failed", append(fields, "error", c.Errors.String())...)
			return
		}
		log.Debug("HTTP request", fields...)
	}
}
