package healthchecker

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"authapi/internal/modules/respond"
)

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

// Pinger is any dependency that can report its own liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type target struct {
	name   string
	pinger Pinger
}

type DependencyStatus struct {
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

type Report struct {
	Status       string                      `json:"status"`
	Dependencies map[string]DependencyStatus `json:"dependencies"`
}

type Config struct {
	HealthyFrequency   time.Duration
	UnhealthyFrequency time.Duration
	Timeout            time.Duration
	Workers            int
}

// HealthChecker probes registered dependencies on a schedule. Healthy targets
// are rechecked at HealthyFrequency, failing ones at UnhealthyFrequency.
type HealthChecker struct {
	targetChan         chan *target
	healthyFrequency   time.Duration
	unhealthyFrequency time.Duration
	timeout            time.Duration
	workers            int

	mu       sync.RWMutex
	targets  []*target
	statuses map[string]DependencyStatus

	now    func() time.Time
	logger *zap.Logger
}

func NewHealthChecker(cfg Config, logger *zap.Logger) *HealthChecker {
	if cfg.HealthyFrequency <= 0 {
		cfg.HealthyFrequency = 30 * time.Second
	}
	if cfg.UnhealthyFrequency <= 0 {
		cfg.UnhealthyFrequency = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthChecker{
		targetChan:         make(chan *target, 64),
		healthyFrequency:   cfg.HealthyFrequency,
		unhealthyFrequency: cfg.UnhealthyFrequency,
		timeout:            cfg.Timeout,
		workers:            cfg.Workers,
		statuses:           make(map[string]DependencyStatus),
		now:                time.Now,
		logger:             logger,
	}
}

// AddTarget registers a dependency. Call before Start.
func (hc *HealthChecker) AddTarget(name string, pinger Pinger) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.targets = append(hc.targets, &target{name: name, pinger: pinger})
	hc.logger.Debug("Dependency added to health checker", zap.String("name", name))
}

// Start launches the workers and queues every target. Workers stop when ctx
// is cancelled.
func (hc *HealthChecker) Start(ctx context.Context) {
	for i := 0; i < hc.workers; i++ {
		go hc.worker(ctx, i)
	}

	hc.mu.RLock()
	targets := append([]*target(nil), hc.targets...)
	hc.mu.RUnlock()

	for _, t := range targets {
		hc.enqueue(ctx, t)
	}
}

// CheckAll probes every target once, synchronously.
func (hc *HealthChecker) CheckAll(ctx context.Context) Report {
	hc.mu.RLock()
	targets := append([]*target(nil), hc.targets...)
	hc.mu.RUnlock()

	for _, t := range targets {
		hc.check(ctx, t)
	}
	return hc.Snapshot()
}

func (hc *HealthChecker) worker(ctx context.Context, id int) {
	hc.logger.Info("Health check worker started", zap.Int("worker_id", id))
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-hc.targetChan:
			healthy := hc.check(ctx, t)
			hc.schedule(ctx, t, healthy)
		}
	}
}

func (hc *HealthChecker) check(ctx context.Context, t *target) bool {
	pingCtx, cancel := context.WithTimeout(ctx, hc.timeout)
	defer cancel()

	err := t.pinger.Ping(pingCtx)
	status := DependencyStatus{Healthy: err == nil, CheckedAt: hc.now()}
	if err != nil {
		status.Error = err.Error()
		hc.logger.Debug("Dependency is unhealthy", zap.String("name", t.name), zap.Error(err))
	}

	hc.updateStatus(t.name, status)
	return status.Healthy
}

func (hc *HealthChecker) schedule(ctx context.Context, t *target, healthy bool) {
	next := hc.unhealthyFrequency
	if healthy {
		next = hc.healthyFrequency
	}

	time.AfterFunc(next, func() {
		hc.enqueue(ctx, t)
	})
}

func (hc *HealthChecker) enqueue(ctx context.Context, t *target) {
	select {
	case <-ctx.Done():
	case hc.targetChan <- t:
	}
}

func (hc *HealthChecker) updateStatus(name string, status DependencyStatus) {
	hc.mu.Lock()
	prev, seen := hc.statuses[name]
	hc.statuses[name] = status
	hc.mu.Unlock()

	if seen && prev.Healthy == status.Healthy {
		return
	}
	if status.Healthy {
		hc.logger.Info("Marked dependency healthy", zap.String("name", name))
	} else {
		hc.logger.Warn("Marked dependency unhealthy", zap.String("name", name), zap.String("error", status.Error))
	}
}

// Snapshot reports the last known state. A target that was never checked
// counts as unhealthy.
func (hc *HealthChecker) Snapshot() Report {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	names := make([]string, 0, len(hc.targets))
	for _, t := range hc.targets {
		names = append(names, t.name)
	}
	sort.Strings(names)

	report := Report{Status: StatusOK, Dependencies: make(map[string]DependencyStatus, len(names))}
	for _, name := range names {
		status, ok := hc.statuses[name]
		if !ok {
			status = DependencyStatus{Error: "not checked yet"}
		}
		if !status.Healthy {
			report.Status = StatusDegraded
		}
		report.Dependencies[name] = status
	}
	return report
}

func (hc *HealthChecker) Handler(w http.ResponseWriter, r *http.Request) {
	report := hc.Snapshot()
	code := http.StatusOK
	if report.Status != StatusOK {
		code = http.StatusServiceUnavailable
	}
	respond.JSON(w, code, report)
}
