package service

import (
	"sync"
	"time"
)

// Status is the lifecycle state of a managed service
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusError    Status = "error"
)

// ServiceStatus tracks the state of a single service
type ServiceStatus struct {
	Name      string
	StartedAt time.Time
	UpdatedAt time.Time

	mu     sync.RWMutex
	status Status
	err    error
}

// NewServiceStatus creates a status tracker in the stopped state
func NewServiceStatus(name string) *ServiceStatus {
	return &ServiceStatus{
		Name:      name,
		status:    StatusStopped,
		UpdatedAt: time.Now(),
	}
}

// SetStatus updates the state. Entering StatusRunning records StartedAt and clears any error.
func (s *ServiceStatus) SetStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status = status
	s.UpdatedAt = time.Now()
	if status == StatusRunning {
		s.StartedAt = s.UpdatedAt
		s.err = nil
	}
}

// SetError moves the service into StatusError
func (s *ServiceStatus) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status = StatusError
	s.err = err
	s.UpdatedAt = time.Now()
}

func (s *ServiceStatus) GetStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *ServiceStatus) GetError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *ServiceStatus) IsRunning() bool {
	return s.GetStatus() == StatusRunning
}

// Uptime returns how long the service has been running, zero if it is not running
func (s *ServiceStatus) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.status != StatusRunning || s.StartedAt.IsZero() {
		return 0
	}
	return time.Since(s.StartedAt)
}

// Snapshot is a JSON-friendly copy of a ServiceStatus
type Snapshot struct {
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot copies the current state
func (s *ServiceStatus) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Name:      s.Name,
		Status:    s.status,
		StartedAt: s.StartedAt,
		UpdatedAt: s.UpdatedAt,
	}
	if s.err != nil {
		snap.Error = s.err.Error()
	}
	return snap
}
