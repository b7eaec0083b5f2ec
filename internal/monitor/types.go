// Copyright Contributors to the KubeOpenCode project

// Package monitor implements the play monitor: a ticker-driven loop
// that discovers in-flight RunRequests, streams their pod logs through the
// behavior analyzer, and raises GitHub issues for anomalies it has not
// already seen.
package monitor

import (
	"time"

	"github.com/5dlabs/agentctl/api/v1alpha1"
	"github.com/5dlabs/agentctl/internal/behavior"
)

// ActiveRun is a single RunRequest a MonitoredPlay is currently tracking.
type ActiveRun struct {
	Name      string
	AgentKind string
	PodName   string
	Phase     v1alpha1.RunPhase
	StartedAt *time.Time
}

// AnomalyRecord is one Failure/Anomaly detection that cleared the minimum
// severity threshold, recorded against the play it was seen in.
type AnomalyRecord struct {
	DetectedAt   time.Time
	Analysis     behavior.Detection
	RunName      string
	IssueCreated bool
	IssueURL     string
	Fingerprint  string
}

// EvaluationResult is a placeholder scoring slot for a completed play.
// scoreEvaluation (see play_monitor.go) is not yet a finished probe-based
// evaluator; it returns a fixed neutral score until one is designed.
type EvaluationResult struct {
	Score float64
	Notes string
}

// MonitoredPlay is the per-play-id tracking entry the monitor maintains across
// ticks, keyed by naming.PlayID(runName).
type MonitoredPlay struct {
	PlayID            string
	ActiveRuns        []ActiveRun
	IssuesCreated     []string
	LastLogCheck      *time.Time
	Anomalies         []AnomalyRecord
	EvaluationResults *EvaluationResult
	ArtifactTrail     []string
}

// runningOrPending reports whether phase is one the monitor keeps tracking.
func runningOrPending(phase v1alpha1.RunPhase) bool {
	return phase == v1alpha1.RunPhaseRunning || phase == v1alpha1.RunPhasePending
}
