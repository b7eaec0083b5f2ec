// Copyright Contributors to the KubeOpenCode project

package adapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/go-logr/logr"

	"github.com/5dlabs/agentctl/internal/capability"
)

func testFactory(t *testing.T) *Factory {
	t.Helper()
	f := NewFactory(capability.NewRegistry(), logr.Discard())
	if err := f.Register(capability.Adapter{
		Kind:           "claude",
		Executable:     "claude-code",
		MemoryFilename: "CLAUDE.md",
		Capabilities:   capability.Capabilities{MaxContextTokens: 1},
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return f
}

func TestFactory_CreateReturnsRegardlessOfHealth(t *testing.T) {
	f := testFactory(t)

	f.mu.Lock()
	for i := 0; i < 5; i++ {
		f.rings["claude"].push(HealthRecord{CLIKind: "claude", State: HealthUnhealthy, Timestamp: time.Now()})
	}
	f.latest["claude"] = HealthUnhealthy
	f.mu.Unlock()

	a, ok := f.Create("claude")
	if !ok {
		t.Fatalf("Create() ok = false, want true")
	}
	if a.Kind != "claude" {
		t.Fatalf("Create() returned adapter for kind %q, want claude", a.Kind)
	}
	if !f.ConsistentlyUnhealthy("claude") {
		t.Fatalf("ConsistentlyUnhealthy() = false, want true after 5 unhealthy checks")
	}
}

func TestFactory_CreateUnknownKind(t *testing.T) {
	f := testFactory(t)
	_, ok := f.Create("nonexistent")
	if ok {
		t.Fatalf("Create() ok = true for unregistered kind")
	}
}

func TestFactory_RunChecksRecordsHistory(t *testing.T) {
	f := testFactory(t)

	checkErr := errors.New("connection refused")
	calls := 0
	check := func(ctx context.Context, kind string, a capability.Adapter) (HealthState, error) {
		calls++
		if calls == 1 {
			return HealthHealthy, nil
		}
		return HealthUnhealthy, checkErr
	}

	f.runChecks(context.Background(), time.Second, check)
	f.runChecks(context.Background(), time.Second, check)

	history := f.History("claude")
	if len(history) != 2 {
		t.Fatalf("History() len = %d, want 2", len(history))
	}
	if history[0].State != HealthHealthy {
		t.Fatalf("History()[0].State = %v, want Healthy", history[0].State)
	}
	if history[1].State != HealthUnhealthy || history[1].Err == nil {
		t.Fatalf("History()[1] = %+v, want Unhealthy with error", history[1])
	}

	state, ok := f.Health("claude")
	if !ok || state != HealthUnhealthy {
		t.Fatalf("Health() = (%v, %v), want (Unhealthy, true)", state, ok)
	}
}

func TestFactory_ConsistentlyUnhealthyRequiresThreeInARow(t *testing.T) {
	f := testFactory(t)
	check := func(ctx context.Context, kind string, a capability.Adapter) (HealthState, error) {
		return HealthUnhealthy, nil
	}

	f.runChecks(context.Background(), time.Second, check)
	f.runChecks(context.Background(), time.Second, check)
	if f.ConsistentlyUnhealthy("claude") {
		t.Fatalf("ConsistentlyUnhealthy() = true after only 2 checks")
	}
	f.runChecks(context.Background(), time.Second, check)
	if !f.ConsistentlyUnhealthy("claude") {
		t.Fatalf("ConsistentlyUnhealthy() = false after 3 consecutive unhealthy checks")
	}
}

func TestHealthRing_EvictsOldest(t *testing.T) {
	r := newHealthRing(3)
	for i := 0; i < 5; i++ {
		r.push(HealthRecord{State: HealthHealthy})
	}
	if got := len(r.snapshot()); got != 3 {
		t.Fatalf("snapshot() len = %d, want 3", got)
	}
}

func TestWarnOnMinVersion_RecordsWarningWhenUnmet(t *testing.T) {
	f := NewFactory(capability.NewRegistry(), logr.Discard())
	if err := f.Register(capability.Adapter{
		Kind:           "claude",
		Version:        semver.MustParse("1.2.0"),
		Executable:     "claude-code",
		MemoryFilename: "CLAUDE.md",
		Capabilities:   capability.Capabilities{MaxContextTokens: 1},
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	f.WarnOnMinVersion("claude", "2.0.0")

	state, ok := f.Health("claude")
	if !ok || state != HealthWarning {
		t.Fatalf("Health() = %v/%v, want Warning after an unmet minVersion hint", state, ok)
	}
	history := f.History("claude")
	if len(history) != 1 || history[0].State != HealthWarning || history[0].Err == nil {
		t.Fatalf("History() = %+v, want one Warning record with an error", history)
	}
}

func TestWarnOnMinVersion_SatisfiedHintIsANoOp(t *testing.T) {
	f := NewFactory(capability.NewRegistry(), logr.Discard())
	if err := f.Register(capability.Adapter{
		Kind:           "claude",
		Version:        semver.MustParse("2.1.0"),
		Executable:     "claude-code",
		MemoryFilename: "CLAUDE.md",
		Capabilities:   capability.Capabilities{MaxContextTokens: 1},
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	f.WarnOnMinVersion("claude", "2.0.0")
	f.WarnOnMinVersion("claude", "")

	if state, _ := f.Health("claude"); state != HealthUnknown {
		t.Fatalf("Health() = %v, want Unknown when every hint is satisfied", state)
	}
	if history := f.History("claude"); len(history) != 0 {
		t.Fatalf("History() = %+v, want empty for satisfied hints", history)
	}
}
