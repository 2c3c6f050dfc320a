package health

import (
	"context"
	"fmt"
	"time"
)

// Pinger is anything that can confirm a remote dependency answers
type Pinger interface {
	Ping(ctx context.Context) error
}

// BackendChecker checks backend API connectivity
type BackendChecker struct {
	backend Pinger
	url     string
	timeout time.Duration
}

func NewBackendChecker(backend Pinger, url string) *BackendChecker {
	return &BackendChecker{backend: backend, url: url, timeout: 3 * time.Second}
}

func (c *BackendChecker) Name() string {
	return "backend"
}

// Check fails hard: without the backend no view can be built
func (c *BackendChecker) Check(ctx context.Context) Check {
	check := Check{
		Name:      c.Name(),
		Timestamp: time.Now(),
		Details:   map[string]interface{}{"url": c.url},
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	if err := c.backend.Ping(ctx); err != nil {
		check.Status = StatusUnhealthy
		check.Message = fmt.Sprintf("Backend unreachable: %v", err)
		return check
	}

	check.Status = StatusHealthy
	check.Message = "Backend is reachable"
	check.Details["latency_ms"] = time.Since(start).Milliseconds()
	return check
}

// ConnectionReporter reports whether a long lived connection is up
type ConnectionReporter interface {
	IsConnected() bool
}

// MQTTChecker reports broker connectivity of the live event subscriber
type MQTTChecker struct {
	conn   ConnectionReporter
	broker string
}

func NewMQTTChecker(conn ConnectionReporter, broker string) *MQTTChecker {
	return &MQTTChecker{conn: conn, broker: broker}
}

func (c *MQTTChecker) Name() string {
	return "mqtt"
}

// Check degrades only: views still work without pushed events
func (c *MQTTChecker) Check(ctx context.Context) Check {
	check := Check{
		Name:      c.Name(),
		Timestamp: time.Now(),
		Details:   map[string]interface{}{"broker": c.broker},
	}

	if c.conn == nil || !c.conn.IsConnected() {
		check.Status = StatusDegraded
		check.Message = "Not connected to MQTT broker"
		return check
	}

	check.Status = StatusHealthy
	check.Message = "Connected to MQTT broker"
	return check
}
