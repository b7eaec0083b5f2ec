// Copyright Contributors to the KubeOpenCode project

// Package metrics registers the control plane's custom business metrics:
// anomalies detected, issues created, remediation attempts per outcome,
// and adapter health transitions. It registers into
// controller-runtime's own prometheus registry so these metrics are
// served from the same --metrics-bind-address endpoint the manager
// already exposes, rather than standing up a second registry/listener.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	// AnomaliesDetected counts Play monitor detections by severity,
	// regardless of whether an issue was filed for them.
	AnomaliesDetected = promauto.With(ctrlmetrics.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "agentctl_anomalies_detected_total",
		Help: "Total anomalies detected by the Play monitor's behavior analyzer, by severity.",
	}, []string{"severity"})

	// IssuesCreated counts GitHub issues filed for anomalies, by
	// repository.
	IssuesCreated = promauto.With(ctrlmetrics.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "agentctl_issues_created_total",
		Help: "Total GitHub issues filed for detected anomalies, by repository.",
	}, []string{"repository"})

	// RemediationAttempts counts every remediation attempt by the
	// specialist that ran it and the outcome it recorded.
	RemediationAttempts = promauto.With(ctrlmetrics.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "agentctl_remediation_attempts_total",
		Help: "Total remediation attempts, by specialist agent and outcome.",
	}, []string{"agent", "outcome"})

	// RemediationEscalations counts AttemptStates that exhausted their
	// retry budget and were escalated to a human.
	RemediationEscalations = promauto.With(ctrlmetrics.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "agentctl_remediation_escalations_total",
		Help: "Total remediation streams escalated after exhausting the attempt cap, by failure type.",
	}, []string{"failure_type"})

	// AdapterHealthTransitions counts every health-state change a CLI
	// adapter reports, by adapter kind and the state it transitioned to.
	AdapterHealthTransitions = promauto.With(ctrlmetrics.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "agentctl_adapter_health_transitions_total",
		Help: "Total adapter health state transitions, by adapter kind and new state.",
	}, []string{"adapter", "state"})
)
