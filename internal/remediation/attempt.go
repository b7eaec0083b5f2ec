// Copyright Contributors to the KubeOpenCode project

package remediation

import (
	"time"

	"github.com/5dlabs/agentctl/internal/classifier"
)

// AttemptStatus is the lifecycle state of an AttemptState:
// Pending -> InProgress -> (Succeeded | Escalated | Cancelled).
type AttemptStatus string

const (
	AttemptStatusPending    AttemptStatus = "Pending"
	AttemptStatusInProgress AttemptStatus = "InProgress"
	AttemptStatusSucceeded  AttemptStatus = "Succeeded"
	AttemptStatusEscalated  AttemptStatus = "Escalated"
	AttemptStatusCancelled  AttemptStatus = "Cancelled"
)

// AttemptOutcome is how a single specialist attempt ended. The zero value
// means the attempt is still running.
type AttemptOutcome string

const (
	AttemptOutcomePending        AttemptOutcome = ""
	AttemptOutcomeSuccess        AttemptOutcome = "Success"
	AttemptOutcomeAgentFailed    AttemptOutcome = "AgentFailed"
	AttemptOutcomeCiStillFailing AttemptOutcome = "CiStillFailing"
	AttemptOutcomeTimeout        AttemptOutcome = "Timeout"
	AttemptOutcomeCancelled      AttemptOutcome = "Cancelled"
)

// AttemptRecord is one specialist's try at fixing a failure.
type AttemptRecord struct {
	AttemptNumber  int
	Agent          string
	RunRequestName string
	StartedAt      time.Time
	CompletedAt    *time.Time
	Outcome        AttemptOutcome
	FailureReason  string
}

// AttemptState tracks a single CI failure through however many
// specialist attempts it takes to resolve it. TaskID is the
// stream's stable key ("ci-<workflow_run_id>"); Failure is the normalized
// summary the classifier attached to the originating event.
type AttemptState struct {
	TaskID        string
	Repository    string
	Branch        string
	FailureType   classifier.FailureType
	Failure       classifier.CiFailure
	WorkflowRunID int64
	PRNumber      *int
	OriginalSHA   string

	Status    AttemptStatus
	Attempts  []AttemptRecord
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CurrentAttempt returns the most recent attempt, or nil if none exist yet.
func (s *AttemptState) CurrentAttempt() *AttemptRecord {
	if len(s.Attempts) == 0 {
		return nil
	}
	return &s.Attempts[len(s.Attempts)-1]
}

// InProgress reports whether the current attempt hasn't recorded an
// outcome yet.
func (s *AttemptState) InProgress() bool {
	cur := s.CurrentAttempt()
	return cur != nil && cur.Outcome == AttemptOutcomePending
}
