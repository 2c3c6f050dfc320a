package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/vzahanych/view-guard-meta/portal/internal/logger"
	"github.com/vzahanych/view-guard-meta/portal/internal/service"
)

// Status represents the health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Check represents a health check
type Check struct {
	Name      string                 `json:"name"`
	Status    Status                 `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Report represents the overall health report
type Report struct {
	Status    Status                      `json:"status"`
	Timestamp time.Time                   `json:"timestamp"`
	Uptime    string                      `json:"uptime"`
	Checks    map[string]Check            `json:"checks"`
	Services  map[string]service.Snapshot `json:"services,omitempty"`
}

// Checker is an interface for health checkers
type Checker interface {
	Name() string
	Check(ctx context.Context) Check
}

// StatusSource provides managed service states
type StatusSource interface {
	GetAllStatuses() map[string]*service.ServiceStatus
}

// Manager runs health checks and serves them over HTTP
type Manager struct {
	*service.ServiceBase
	port       int
	checkers   []Checker
	services   StatusSource
	startTime  time.Time
	mu         sync.RWMutex
	httpServer *http.Server
	mux        *http.ServeMux
}

// NewManager creates a health manager listening on port once started
func NewManager(port int, services StatusSource, log *logger.Logger) *Manager {
	m := &Manager{
		ServiceBase: service.NewServiceBase("health", log),
		port:        port,
		checkers:    make([]Checker, 0),
		services:    services,
		startTime:   time.Now(),
		mux:         http.NewServeMux(),
	}
	m.mux.HandleFunc("/health", m.handleHealth)
	m.mux.HandleFunc("/health/live", m.handleLiveness)
	m.mux.HandleFunc("/health/ready", m.handleReadiness)
	m.mux.HandleFunc("/health/services", m.handleServices)
	return m
}

// RegisterChecker registers a health checker
func (m *Manager) RegisterChecker(checker Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, checker)
}

// Handler exposes the health endpoints
func (m *Manager) Handler() http.Handler {
	return m.mux
}

// Start binds the health port and serves in the background
func (m *Manager) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", m.port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	m.httpServer = &http.Server{
		Handler:      m.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		m.LogInfo("Health check server starting", "addr", listener.Addr().String())
		if err := m.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.LogError("Health check server error", err)
		}
	}()

	return nil
}

// Stop stops the health check HTTP server
func (m *Manager) Stop(ctx context.Context) error {
	if m.httpServer == nil {
		return nil
	}
	m.LogInfo("Stopping health check server")
	return m.httpServer.Shutdown(ctx)
}

// Check performs all health checks
func (m *Manager) Check(ctx context.Context) Report {
	m.mu.RLock()
	checkers := append([]Checker(nil), m.checkers...)
	m.mu.RUnlock()

	checks := make(map[string]Check, len(checkers))
	overall := StatusHealthy
	for _, checker := range checkers {
		check := checker.Check(ctx)
		checks[check.Name] = check

		if check.Status == StatusUnhealthy {
			overall = StatusUnhealthy
		} else if check.Status == StatusDegraded && overall == StatusHealthy {
			overall = StatusDegraded
		}
	}

	return Report{
		Status:    overall,
		Timestamp: time.Now(),
		Uptime:    time.Since(m.startTime).Round(time.Second).String(),
		Checks:    checks,
		Services:  m.serviceSnapshots(),
	}
}

func (m *Manager) serviceSnapshots() map[string]service.Snapshot {
	snapshots := make(map[string]service.Snapshot)
	if m.services == nil {
		return snapshots
	}
	for name, status := range m.services.GetAllStatuses() {
		snapshots[name] = status.Snapshot()
	}
	return snapshots
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleHealth reports every check; degraded still answers 200
func (m *Manager) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := m.Check(r.Context())
	statusCode := http.StatusOK
	if report.Status == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, report)
}

func (m *Manager) handleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// handleReadiness is ready unless a check is unhealthy
func (m *Manager) handleReadiness(w http.ResponseWriter, r *http.Request) {
	report := m.Check(r.Context())
	statusCode := http.StatusOK
	if report.Status == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, map[string]interface{}{
		"status":    report.Status,
		"timestamp": report.Timestamp,
		"ready":     report.Status != StatusUnhealthy,
	})
}

func (m *Manager) handleServices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"services":  m.serviceSnapshots(),
		"timestamp": time.Now(),
	})
}
