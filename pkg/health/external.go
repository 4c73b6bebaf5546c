package health

import (
	"context"
	"time"
)

// Pinger is implemented by collaborators that expose a health check
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker checks an external collaborator through its Ping method
type PingChecker struct {
	name    string
	pinger  Pinger
	timeout time.Duration
}

// NewPingChecker creates a new external service health checker
func NewPingChecker(name string, pinger Pinger, timeout time.Duration) *PingChecker {
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &PingChecker{
		name:    name,
		pinger:  pinger,
		timeout: timeout,
	}
}

// Check performs the external service health check
func (c *PingChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.pinger.Ping(ctx); err != nil {
		// a collaborator being down degrades the service but does not stop it
		return NewCheckResult(c.name, StatusDegraded, "service unreachable", nil).
			WithDuration(time.Since(start)).
			WithMetadata("error", err.Error())
	}

	duration := time.Since(start)
	result := NewHealthyResult(c.name, "service reachable").WithDuration(duration)
	if duration > 5*time.Second {
		result.Status = StatusDegraded
		result.Message = "slow response time"
	}
	return result
}

// Name returns the checker name
func (c *PingChecker) Name() string {
	return c.name
}

// CircuitBreakerChecker checks circuit breaker state
type CircuitBreakerChecker struct {
	name         string
	stateGetter  func() string
	countsGetter func() map[string]interface{}
}

// NewCircuitBreakerChecker creates a circuit breaker health checker
func NewCircuitBreakerChecker(name string, stateGetter func() string, countsGetter func() map[string]interface{}) *CircuitBreakerChecker {
	return &CircuitBreakerChecker{
		name:         name,
		stateGetter:  stateGetter,
		countsGetter: countsGetter,
	}
}

// Check performs the circuit breaker health check
func (c *CircuitBreakerChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()

	state := c.stateGetter()
	counts := c.countsGetter()

	result := CheckResult{
		Component: c.name,
		Timestamp: time.Now(),
		Duration:  time.Since(start),
		Metadata:  counts,
	}

	result = result.WithMetadata("circuit_state", state)

	switch state {
	case "closed":
		result.Status = StatusHealthy
		result.Message = "circuit closed"
	case "half-open":
		result.Status = StatusDegraded
		result.Message = "circuit half-open"
	case "open":
		result.Status = StatusDegraded
		result.Message = "circuit open"
	default:
		result.Status = StatusUnhealthy
		result.Message = "unknown circuit state"
	}

	return result
}

// Name returns the checker name
func (c *CircuitBreakerChecker) Name() string {
	return c.name
}

// WorkerChecker checks background worker health
type WorkerChecker struct {
	name      string
	isRunning func() bool
	getStatus func() map[string]interface{}
}

// NewWorkerChecker creates a worker health checker
func NewWorkerChecker(name string, isRunning func() bool, getStatus func() map[string]interface{}) *WorkerChecker {
	return &WorkerChecker{
		name:      name,
		isRunning: isRunning,
		getStatus: getStatus,
	}
}

// Check performs the worker health check
func (c *WorkerChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()

	running := c.isRunning()
	status := c.getStatus()

	result := CheckResult{
		Component: c.name,
		Timestamp: time.Now(),
		Duration:  time.Since(start),
		Metadata:  status,
	}

	result = result.WithMetadata("running", running)

	if running {
		result.Status = StatusHealthy
		result.Message = "worker running"
	} else {
		result.Status = StatusUnhealthy
		result.Message = "worker not running"
	}

	return result
}

// Name returns the checker name
func (c *WorkerChecker) Name() string {
	return c.name
}
