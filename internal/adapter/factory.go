// Copyright Contributors to the KubeOpenCode project

// Package adapter is the adapter factory: it wraps the capability
// registry with a bounded health history per CLI kind and dispenses
// adapters regardless of that health, on the principle that availability
// matters more than a possibly stale health signal.
package adapter

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/5dlabs/agentctl/internal/capability"
	"github.com/5dlabs/agentctl/internal/metrics"
)

// consistentlyUnhealthyThreshold is the number of consecutive Unhealthy
// results that marks a kind "consistently unhealthy" (informational only).
const consistentlyUnhealthyThreshold = 3

// HealthChecker probes one CLI adapter and reports its current state. The
// context passed in already carries the per-check timeout.
type HealthChecker func(ctx context.Context, kind string, a capability.Adapter) (HealthState, error)

// Factory maintains a concurrent map from CLI kind to adapter (via an
// embedded capability.Registry) plus a bounded health ring per kind.
type Factory struct {
	mu       sync.RWMutex
	registry *capability.Registry
	rings    map[string]*healthRing
	latest   map[string]HealthState
	log      logr.Logger
}

// NewFactory wraps registry with health tracking. registry may already
// have adapters registered; Factory discovers them lazily on first use.
func NewFactory(registry *capability.Registry, log logr.Logger) *Factory {
	return &Factory{
		registry: registry,
		rings:    make(map[string]*healthRing),
		latest:   make(map[string]HealthState),
		log:      log.WithName("adapter-factory"),
	}
}

// Register validates a and inserts it into the wrapped registry, then
// initializes an empty health ring for it.
func (f *Factory) Register(a capability.Adapter, allowedNamespaces ...string) error {
	if err := f.registry.Register(a, allowedNamespaces...); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rings[a.Kind] = newHealthRing(defaultRingCap)
	f.latest[a.Kind] = HealthUnknown
	return nil
}

// Monitor starts a background ticker that fans out a HealthChecker call to
// every registered kind every interval, bounding each call by
// perCheckTimeout. It stops when ctx is cancelled. Callers that don't want
// health monitoring simply never call Monitor; Create still works.
func (f *Factory) Monitor(ctx context.Context, interval, perCheckTimeout time.Duration, check HealthChecker) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				f.runChecks(ctx, perCheckTimeout, check)
			}
		}
	}()
}

func (f *Factory) runChecks(ctx context.Context, perCheckTimeout time.Duration, check HealthChecker) {
	for _, kind := range f.registry.Kinds() {
		a, ok := f.registry.Get(kind)
		if !ok {
			continue
		}

		checkCtx, cancel := context.WithTimeout(ctx, perCheckTimeout)
		start := time.Now()
		state, err := check(checkCtx, kind, a)
		cancel()
		duration := time.Since(start)

		rec := HealthRecord{CLIKind: kind, Timestamp: time.Now(), State: state, CheckDuration: duration, Err: err}

		f.mu.Lock()
		ring, ok := f.rings[kind]
		if !ok {
			ring = newHealthRing(defaultRingCap)
			f.rings[kind] = ring
		}
		previous := f.latest[kind]
		ring.push(rec)
		f.latest[kind] = state
		unhealthyStreak := ring.consecutiveUnhealthy()
		f.mu.Unlock()

		if state != previous {
			metrics.AdapterHealthTransitions.WithLabelValues(kind, string(state)).Inc()
		}

		if err != nil {
			f.log.Error(err, "adapter health check failed", "kind", kind, "state", state)
		}
		if unhealthyStreak >= consistentlyUnhealthyThreshold {
			f.log.Info("adapter consistently unhealthy", "kind", kind, "consecutiveUnhealthy", unhealthyStreak)
		}
	}
}

// Create looks up kind's adapter and returns it regardless of its current
// health; the caller may consult Health explicitly. The bool reports
// whether kind is registered at all.
func (f *Factory) Create(kind string) (capability.Adapter, bool) {
	a, ok := f.registry.Get(kind)
	if !ok {
		return capability.Adapter{}, false
	}
	f.mu.RLock()
	state := f.latest[kind]
	f.mu.RUnlock()
	f.log.V(1).Info("dispensing adapter", "kind", kind, "health", state)
	return a, true
}

// WarnOnMinVersion compares kind's registered CLI version against an
// optional cli_config["minVersion"] hint and, when the hint is unmet,
// records a Warning health state for the kind. Like every other health
// signal it is informational: dispensing is never blocked.
func (f *Factory) WarnOnMinVersion(kind, hint string) {
	warning, ok := f.registry.CheckMinVersionHint(kind, hint)
	if ok {
		return
	}

	rec := HealthRecord{CLIKind: kind, Timestamp: time.Now(), State: HealthWarning, Err: errors.New(warning)}
	f.mu.Lock()
	ring, found := f.rings[kind]
	if !found {
		ring = newHealthRing(defaultRingCap)
		f.rings[kind] = ring
	}
	previous := f.latest[kind]
	ring.push(rec)
	f.latest[kind] = HealthWarning
	f.mu.Unlock()

	if previous != HealthWarning {
		metrics.AdapterHealthTransitions.WithLabelValues(kind, string(HealthWarning)).Inc()
	}
	f.log.Info("adapter below requested minVersion", "kind", kind, "warning", warning)
}

// Health returns kind's most recently observed state, and whether any
// health record exists for it.
func (f *Factory) Health(kind string) (HealthState, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s, ok := f.latest[kind]
	return s, ok
}

// ConsistentlyUnhealthy reports whether kind's most recent
// consistentlyUnhealthyThreshold health checks were all Unhealthy. It is
// informational: it never affects Create.
func (f *Factory) ConsistentlyUnhealthy(kind string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ring, ok := f.rings[kind]
	if !ok {
		return false
	}
	return ring.consecutiveUnhealthy() >= consistentlyUnhealthyThreshold
}

// History returns a copy of kind's health ring, oldest first.
func (f *Factory) History(kind string) []HealthRecord {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ring, ok := f.rings[kind]
	if !ok {
		return nil
	}
	return ring.snapshot()
}
