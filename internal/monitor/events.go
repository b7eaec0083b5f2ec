// Copyright Contributors to the KubeOpenCode project

package monitor

import (
	"time"

	"github.com/5dlabs/agentctl/internal/behavior"
)

// EventType identifies what a monitor Event reports.
type EventType string

const (
	EventPlayDetected        EventType = "PlayDetected"
	EventPlayCompleted       EventType = "PlayCompleted"
	EventCodeRunStarted      EventType = "CodeRunStarted"
	EventCodeRunCompleted    EventType = "CodeRunCompleted"
	EventAnomalyDetected     EventType = "AnomalyDetected"
	EventSuccessDetected     EventType = "SuccessDetected"
	EventIssueCreated        EventType = "IssueCreated"
	EventEvaluationCompleted EventType = "EvaluationCompleted"
	EventError               EventType = "Error"
)

// Event is one observation the monitor publishes to its sink. Only the
// fields relevant to the Type are set; Message carries the human-readable
// remainder (an error string, an issue URL, summary counts).
type Event struct {
	Type      EventType
	PlayID    string
	RunName   string
	Agent     string
	Severity  behavior.Severity
	Message   string
	Timestamp time.Time
}

// defaultEventBuffer bounds the event channel. Delivery is best-effort:
// once the buffer is full, further events are dropped rather than ever
// blocking a poll.
const defaultEventBuffer = 256

// Events returns the monitor's event stream. Consumers (dashboards,
// alerting) range over it; a consumer that falls behind loses events
// rather than slowing the monitor down.
func (m *Monitor) Events() <-chan Event {
	return m.events
}

// emit publishes ev without ever blocking. A full channel drops the
// event; the drop is logged at V(1) so a misbehaving consumer is
// diagnosable without flooding the log.
func (m *Monitor) emit(ev Event) {
	select {
	case m.events <- ev:
	default:
		m.Log.V(1).Info("event channel full, dropping event", "type", ev.Type, "playID", ev.PlayID)
	}
}
