package health

import (
	"context"
	"time"
)

const (
	defaultStoreTimeout = 5 * time.Second
	// defaultSlowThreshold marks a store that answers but takes longer than this as degraded.
	defaultSlowThreshold = time.Second
)

// Checkable is implemented by components that can verify their own connectivity
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// StoreChecker checks a document store connection
type StoreChecker struct {
	name          string
	store         Checkable
	timeout       time.Duration
	slowThreshold time.Duration
	metadata      map[string]any
}

// StoreOption customizes a StoreChecker
type StoreOption func(*StoreChecker)

// WithTimeout bounds a single check.
func WithTimeout(d time.Duration) StoreOption {
	return func(c *StoreChecker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithSlowThreshold sets the latency above which a successful check reports degraded.
func WithSlowThreshold(d time.Duration) StoreOption {
	return func(c *StoreChecker) {
		if d > 0 {
			c.slowThreshold = d
		}
	}
}

// WithMetadata attaches static metadata (database name, collection) to every result.
func WithMetadata(key string, value any) StoreOption {
	return func(c *StoreChecker) {
		c.metadata[key] = value
	}
}

func NewStoreChecker(name string, store Checkable, opts ...StoreOption) *StoreChecker {
	c := &StoreChecker{
		name:          name,
		store:         store,
		timeout:       defaultStoreTimeout,
		slowThreshold: defaultSlowThreshold,
		metadata:      map[string]any{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check pings the store once. A failure is unhealthy and a slow answer is degraded.
func (c *StoreChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.store.HealthCheck(checkCtx)
	duration := time.Since(start)

	result := CheckResult{
		Name:      c.name,
		Timestamp: time.Now(),
		Duration:  duration,
	}
	if len(c.metadata) > 0 {
		result.Metadata = make(map[string]any, len(c.metadata))
		for k, v := range c.metadata {
			result.Metadata[k] = v
		}
	}

	switch {
	case err != nil:
		result.Status = StatusUnhealthy
		result.Error = err.Error()
	case duration > c.slowThreshold:
		result.Status = StatusDegraded
		result.Message = "slow response"
	default:
		result.Status = StatusHealthy
		result.Message = "OK"
	}
	return result
}

func (c *StoreChecker) Name() string {
	return c.name
}

// PingChecker always reports healthy; it backs liveness probes.
type PingChecker struct {
	name string
}

func NewPingChecker(name string) *PingChecker {
	return &PingChecker{name: name}
}

func (c *PingChecker) Check(context.Context) CheckResult {
	return CheckResult{
		Name:      c.name,
		Status:    StatusHealthy,
		Message:   "Service is alive",
		Timestamp: time.Now(),
	}
}

func (c *PingChecker) Name() string {
	return c.name
}
