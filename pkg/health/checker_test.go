package health

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type staticChecker struct {
	name   string
	status Status
	delay  time.Duration
}

func (s staticChecker) Check(ctx context.Context) CheckResult {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
		}
	}
	return NewCheckResult(s.name, s.status, "", nil)
}

func (s staticChecker) Name() string { return s.name }

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestHealthChecker_OverallStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"one degraded", []Status{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"unhealthy wins", []Status{StatusDegraded, StatusUnhealthy}, StatusUnhealthy},
		{"nothing registered", nil, StatusHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewHealthChecker(time.Second)
			for i, s := range tt.statuses {
				hc.Register(staticChecker{name: string(rune('a' + i)), status: s})
			}
			status, results := hc.Check(context.Background())
			assert.Equal(t, tt.want, status)
			assert.Len(t, results, len(tt.statuses))
		})
	}
}

func TestTimeoutChecker(t *testing.T) {
	slow := NewTimeoutChecker(staticChecker{name: "slow", status: StatusHealthy, delay: time.Second}, 10*time.Millisecond)
	result := slow.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, result.Status)
	assert.Contains(t, result.Error, "timed out")
	assert.Equal(t, "slow", slow.Name())
}

func TestPingChecker(t *testing.T) {
	ok := NewPingChecker("portfolio_provider", fakePinger{}, time.Second).Check(context.Background())
	assert.Equal(t, StatusHealthy, ok.Status)

	down := NewPingChecker("portfolio_provider", fakePinger{err: errors.New("connection refused")}, time.Second).Check(context.Background())
	assert.Equal(t, StatusDegraded, down.Status)
	assert.Equal(t, "connection refused", down.Metadata["error"])
}

func TestCircuitBreakerChecker(t *testing.T) {
	counts := func() map[string]interface{} { return map[string]interface{}{"requests": 3} }

	tests := map[string]Status{
		"closed":    StatusHealthy,
		"half-open": StatusDegraded,
		"open":      StatusDegraded,
		"bogus":     StatusUnhealthy,
	}
	for state, want := range tests {
		state := state
		c := NewCircuitBreakerChecker("trade_execution_breaker", func() string { return state }, counts)
		result := c.Check(context.Background())
		assert.Equal(t, want, result.Status, state)
		assert.Equal(t, state, result.Metadata["circuit_state"])
	}
}

func TestWorkerChecker(t *testing.T) {
	status := func() map[string]interface{} { return map[string]interface{}{} }

	running := NewWorkerChecker("drift_monitor", func() bool { return true }, status).Check(context.Background())
	assert.Equal(t, StatusHealthy, running.Status)

	stopped := NewWorkerChecker("drift_monitor", func() bool { return false }, status).Check(context.Background())
	assert.Equal(t, StatusUnhealthy, stopped.Status)
}

type panickingChecker struct{}

func (panickingChecker) Check(context.Context) CheckResult { panic("nil ring store") }
func (panickingChecker) Name() string                      { return "ring_store" }

func TestHealthChecker_PanickingCheckerIsUnhealthy(t *testing.T) {
	hc := NewHealthChecker(time.Second)
	hc.Register(staticChecker{name: "redis", status: StatusHealthy}, panickingChecker{})

	status, results := hc.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, status)
	assert.Equal(t, StatusHealthy, results["redis"].Status)
	assert.Contains(t, results["ring_store"].Error, "nil ring store")
}

type fakeRingStore struct {
	pingErr   error
	schema    schemaState
	schemaErr error
	rings     int64
	stats     sql.DBStats
}

func (f *fakeRingStore) PingContext(context.Context) error { return f.pingErr }

func (f *fakeRingStore) GetContext(_ context.Context, dest interface{}, _ string, _ ...interface{}) error {
	switch d := dest.(type) {
	case *schemaState:
		*d = f.schema
		return f.schemaErr
	case *int64:
		*d = f.rings
	}
	return nil
}

func (f *fakeRingStore) Stats() sql.DBStats { return f.stats }

func TestRingStoreChecker(t *testing.T) {
	tests := []struct {
		name    string
		store   *fakeRingStore
		want    Status
		wantErr string
	}{
		{
			name:  "migrated and idle",
			store: &fakeRingStore{schema: schemaState{Version: 2}, rings: 12, stats: sql.DBStats{MaxOpenConnections: 10, InUse: 1}},
			want:  StatusHealthy,
		},
		{
			name:    "unreachable",
			store:   &fakeRingStore{pingErr: errors.New("connection refused")},
			want:    StatusUnhealthy,
			wantErr: "connection refused",
		},
		{
			name:    "dirty migration",
			store:   &fakeRingStore{schema: schemaState{Version: 2, Dirty: true}},
			want:    StatusUnhealthy,
			wantErr: "dirty",
		},
		{
			name:    "schema behind",
			store:   &fakeRingStore{schema: schemaState{Version: 1}},
			want:    StatusUnhealthy,
			wantErr: "want 2",
		},
		{
			name:    "migrations never ran",
			store:   &fakeRingStore{schemaErr: errors.New(`relation "schema_migrations" does not exist`)},
			want:    StatusUnhealthy,
			wantErr: "schema_migrations",
		},
		{
			name:  "pool nearly exhausted",
			store: &fakeRingStore{schema: schemaState{Version: 3}, stats: sql.DBStats{MaxOpenConnections: 10, InUse: 9}},
			want:  StatusDegraded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewRingStoreChecker(tt.store, 2, time.Second)
			result := checker.Check(context.Background())

			assert.Equal(t, "ring_store", checker.Name())
			assert.Equal(t, "ring_store", result.Component)
			assert.Equal(t, tt.want, result.Status)
			if tt.wantErr != "" {
				assert.Contains(t, result.Error, tt.wantErr)
			}
		})
	}

	healthy := NewRingStoreChecker(tests[0].store, 2, time.Second).Check(context.Background())
	assert.Equal(t, int64(12), healthy.Metadata["rings"])
	assert.Equal(t, uint(2), healthy.Metadata["schema_version"])
}
