// health.go - Health monitoring for the zeth client daemon
package main

import (
	"context"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	Healthy   HealthStatus = "healthy"
	Degraded  HealthStatus = "degraded"
	Unhealthy HealthStatus = "unhealthy"
)

// ComponentHealth represents the health of a specific component
type ComponentHealth struct {
	Name      string        `json:"name"`
	Status    HealthStatus  `json:"status"`
	Message   string        `json:"message"`
	LastCheck time.Time     `json:"last_check"`
	Latency   time.Duration `json:"latency,omitempty"`
}

// SystemHealth represents the overall system health
type SystemHealth struct {
	OverallStatus HealthStatus      `json:"overall_status"`
	Timestamp     time.Time         `json:"timestamp"`
	Components    []ComponentHealth `json:"components"`
	Uptime        time.Duration     `json:"uptime"`
	Version       string            `json:"version"`
}

// Checker probes one component. Returning an error marks it unhealthy.
type Checker func(ctx context.Context) error

// HealthChecker tracks the ledger, prover and wallet store.
type HealthChecker struct {
	mu         sync.Mutex
	components map[string]*ComponentHealth
	checkers   map[string]Checker
	startTime  time.Time
	version    string
	timeout    time.Duration
}

func NewHealthChecker(version string, timeout time.Duration) *HealthChecker {
	return &HealthChecker{
		components: make(map[string]*ComponentHealth),
		checkers:   make(map[string]Checker),
		startTime:  time.Now(),
		version:    version,
		timeout:    timeout,
	}
}

// RegisterComponent registers a health check for a component
func (hc *HealthChecker) RegisterComponent(name string, checker Checker) {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	hc.components[name] = &ComponentHealth{
		Name:      name,
		Status:    Healthy,
		Message:   "registered",
		LastCheck: time.Now(),
	}
	hc.checkers[name] = checker
}

// UpdateComponent records an externally observed status, such as a failed
// submission.
func (hc *HealthChecker) UpdateComponent(name string, status HealthStatus, message string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	if component, exists := hc.components[name]; exists {
		component.Status = status
		component.Message = message
		component.LastCheck = time.Now()
	}
}

// CheckHealth runs every checker, each bounded by the checker timeout, and
// returns the result.
func (hc *HealthChecker) CheckHealth(ctx context.Context) *SystemHealth {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	for name, component := range hc.components {
		checker, ok := hc.checkers[name]
		if !ok || checker == nil {
			continue
		}
		cctx, cancel := context.WithTimeout(ctx, hc.timeout)
		start := time.Now()
		err := checker(cctx)
		cancel()

		component.Latency = time.Since(start)
		component.LastCheck = time.Now()
		switch {
		case err == nil:
			component.Status, component.Message = Healthy, "OK"
		case cctx.Err() != nil:
			component.Status, component.Message = Degraded, "check timed out"
		default:
			component.Status, component.Message = Unhealthy, err.Error()
		}
	}
	return hc.snapshot()
}

// GetHealth returns the last recorded status without probing.
func (hc *HealthChecker) GetHealth() *SystemHealth {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	return hc.snapshot()
}

func (hc *HealthChecker) snapshot() *SystemHealth {
	overall := Healthy
	components := make([]ComponentHealth, 0, len(hc.components))
	for _, component := range hc.components {
		if component.Status == Unhealthy {
			overall = Unhealthy
		} else if component.Status == Degraded && overall == Healthy {
			overall = Degraded
		}
		components = append(components, *component)
	}
	sort.Slice(components, func(i, j int) bool { return components[i].Name < components[j].Name })

	return &SystemHealth{
		OverallStatus: overall,
		Timestamp:     time.Now(),
		Components:    components,
		Uptime:        time.Since(hc.startTime),
		Version:       hc.version,
	}
}

// HealthCheckResponse represents the response format for health check endpoints
type HealthCheckResponse struct {
	Status  string        `json:"status"`
	Message string        `json:"message"`
	Data    *SystemHealth `json:"data,omitempty"`
}

func CreateHealthResponse(health *SystemHealth) *HealthCheckResponse {
	status, message := "success", "System is healthy"
	switch health.OverallStatus {
	case Unhealthy:
		status, message = "error", "System is unhealthy"
	case Degraded:
		status, message = "warning", "System is degraded"
	}
	return &HealthCheckResponse{Status: status, Message: message, Data: health}
}
