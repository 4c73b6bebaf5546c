package health

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Status is the health of one dependency or of the whole service.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is what a single checker reports
type CheckResult struct {
	Status    Status                 `json:"status"`
	Component string                 `json:"component"`
	Message   string                 `json:"message,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Duration  time.Duration          `json:"duration"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Checker reports the state of one dependency of the allocation service.
type Checker interface {
	Check(ctx context.Context) CheckResult
	Name() string
}

// HealthChecker runs a set of checkers and folds their results into one status.
type HealthChecker struct {
	checkers []Checker
	timeout  time.Duration
}

func NewHealthChecker(timeout time.Duration) *HealthChecker {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HealthChecker{timeout: timeout}
}

func (h *HealthChecker) Register(checkers ...Checker) {
	h.checkers = append(h.checkers, checkers...)
}

// CheckAll runs every checker concurrently. A checker that panics is
// reported unhealthy instead of taking the health endpoint down with it.
func (h *HealthChecker) CheckAll(ctx context.Context) map[string]CheckResult {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	results := make(map[string]CheckResult, len(h.checkers))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, checker := range h.checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()
			result := runCheck(ctx, c)

			mu.Lock()
			results[c.Name()] = result
			mu.Unlock()
		}(checker)
	}

	wg.Wait()
	return results
}

func runCheck(ctx context.Context, c Checker) (result CheckResult) {
	defer func() {
		if r := recover(); r != nil {
			result = NewUnhealthyResult(c.Name(), fmt.Errorf("health check panicked: %v", r))
		}
	}()
	return c.Check(ctx)
}

// Check returns the worst status across all checkers together with the
// individual results.
func (h *HealthChecker) Check(ctx context.Context) (Status, map[string]CheckResult) {
	results := h.CheckAll(ctx)

	overall := StatusHealthy
	for _, result := range results {
		switch result.Status {
		case StatusUnhealthy:
			return StatusUnhealthy, results
		case StatusDegraded:
			overall = StatusDegraded
		}
	}
	return overall, results
}

// NewCheckResult builds a result; a non-nil err forces StatusUnhealthy.
func NewCheckResult(component string, status Status, message string, err error) CheckResult {
	result := CheckResult{
		Component: component,
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
		Metadata:  make(map[string]interface{}),
	}

	if err != nil {
		result.Error = err.Error()
		result.Status = StatusUnhealthy
	}

	return result
}

func NewHealthyResult(component, message string) CheckResult {
	return NewCheckResult(component, StatusHealthy, message, nil)
}

func NewUnhealthyResult(component string, err error) CheckResult {
	return NewCheckResult(component, StatusUnhealthy, "", err)
}

func NewDegradedResult(component, message string) CheckResult {
	return NewCheckResult(component, StatusDegraded, message, nil)
}

// WithMetadata adds metadata to a check result
func (r CheckResult) WithMetadata(key string, value interface{}) CheckResult {
	if r.Metadata == nil {
		r.Metadata = make(map[string]interface{})
	}
	r.Metadata[key] = value
	return r
}

func (r CheckResult) WithDuration(d time.Duration) CheckResult {
	r.Duration = d
	return r
}

// TimeoutChecker bounds a checker that does not watch its context, such as
// one reading state behind a lock held by a long-running job.
type TimeoutChecker struct {
	checker Checker
	timeout time.Duration
}

func NewTimeoutChecker(checker Checker, timeout time.Duration) *TimeoutChecker {
	return &TimeoutChecker{
		checker: checker,
		timeout: timeout,
	}
}

func (t *TimeoutChecker) Check(ctx context.Context) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	resultChan := make(chan CheckResult, 1)

	go func() {
		resultChan <- t.checker.Check(ctx)
	}()

	select {
	case result := <-resultChan:
		return result
	case <-ctx.Done():
		return NewUnhealthyResult(
			t.checker.Name(),
			fmt.Errorf("health check timed out after %v", t.timeout),
		)
	}
}

func (t *TimeoutChecker) Name() string {
	return t.checker.Name()
}
