// Copyright Contributors to the KubeOpenCode project

package remediation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/robfig/cron/v3"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/5dlabs/agentctl/api/v1alpha1"
	"github.com/5dlabs/agentctl/internal/classifier"
	"github.com/5dlabs/agentctl/internal/metrics"
	"github.com/5dlabs/agentctl/internal/tracing"
)

// IssueCreator reports an escalation to a human, mirroring
// internal/monitor's interface of the same shape. Kept as a separate,
// intentionally duplicated interface rather than an import: the play
// monitor and the remediation coordinator are independent flows that
// happen to both want "open a GitHub issue."
type IssueCreator interface {
	CreateIssue(ctx context.Context, owner, repo string, req EscalationRequest) (url string, err error)
}

// EscalationRequest describes an AttemptState that exhausted its retries.
type EscalationRequest struct {
	Repository  string
	Branch      string
	FailureType classifier.FailureType
	Attempts    []AttemptRecord
}

// Config tunes the coordinator's policy independent of its wiring.
type Config struct {
	// Namespace is where remediation RunRequests are created.
	Namespace string

	// MaxAttempts bounds how many specialist attempts an AttemptState may
	// accumulate before it's escalated. Default is 3.
	MaxAttempts int

	// DedupWindow bounds how long a (repository, workflow_run_id) pair is
	// remembered as "already handled."
	DedupWindow time.Duration

	// AttemptTimeout bounds how long a single specialist attempt may stay
	// outcome-less before the sweeper records a Timeout outcome for it.
	AttemptTimeout time.Duration

	// SweepSchedule is a cron.ParseStandard expression governing how often
	// Run sweeps expired dedup entries and timed-out attempts, following
	// the same operator-facing convention as the Play monitor's poll
	// schedule.
	SweepSchedule string

	// IssueRepository is "owner/repo" escalation issues are filed against.
	IssueRepository string
}

// DefaultConfig returns the coordinator's defaults: three attempts, a
// ten-minute dedup window, and a thirty-minute attempt timeout swept
// every five minutes.
func DefaultConfig(namespace string) Config {
	return Config{
		Namespace:      namespace,
		MaxAttempts:    3,
		DedupWindow:    10 * time.Minute,
		AttemptTimeout: 30 * time.Minute,
		SweepSchedule:  "*/5 * * * *",
	}
}

// Coordinator routes classified CI failures to a fixed specialist set,
// drives each attempt through a RunRequest of run_type=remediate, and
// applies the retry/escalation policy across repeated failures on the
// same repository/branch.
type Coordinator struct {
	client.Client
	Log    logr.Logger
	Issues IssueCreator
	Config Config

	mu sync.Mutex
	// byRun dedups repeat webhook deliveries for the same workflow run.
	byRun map[string]runSeen
	// byRetry maps (repository, branch, failure_type) to the AttemptState
	// currently in flight for it, so a second failure on the same
	// repo/branch/type before the first resolves is treated as a retry of
	// the same remediation stream rather than a brand new one.
	byRetry map[string]*AttemptState
}

type runSeen struct {
	state *AttemptState
	at    time.Time
}

// NewCoordinator wires a Coordinator ready to HandleFailure.
func NewCoordinator(c client.Client, log logr.Logger, issues IssueCreator, cfg Config) *Coordinator {
	return &Coordinator{
		Client:  c,
		Log:     log.WithName("remediation-coordinator"),
		Issues:  issues,
		Config:  cfg,
		byRun:   make(map[string]runSeen),
		byRetry: make(map[string]*AttemptState),
	}
}

func runKey(repository string, workflowRunID int64) string {
	return fmt.Sprintf("%s#%d", repository, workflowRunID)
}

func retryKey(repository, branch string, failureType classifier.FailureType) string {
	return fmt.Sprintf("%s#%s#%s", repository, branch, failureType)
}

// HandleFailure is the coordinator's single entry point: given a
// classified CI failure, it either drops a duplicate delivery, attaches to
// an in-flight remediation stream, or starts a brand new one by routing to
// a specialist and creating its first attempt.
func (c *Coordinator) HandleFailure(ctx context.Context, failure classifier.CiFailure, failureType classifier.FailureType, now time.Time) (*AttemptState, error) {
	ctx, span := tracing.Start(ctx, "remediation.HandleFailure")
	defer span.End()

	c.mu.Lock()
	rk := runKey(failure.Repository, failure.WorkflowRunID)
	if seen, ok := c.byRun[rk]; ok && now.Sub(seen.at) < c.Config.DedupWindow {
		c.mu.Unlock()
		return seen.state, nil
	}

	tk := retryKey(failure.Repository, failure.Branch, failureType)
	if state, ok := c.byRetry[tk]; ok && state.InProgress() {
		c.byRun[rk] = runSeen{state: state, at: now}
		c.mu.Unlock()
		return state, nil
	}

	state := &AttemptState{
		TaskID:        fmt.Sprintf("ci-%d", failure.WorkflowRunID),
		Repository:    failure.Repository,
		Branch:        failure.Branch,
		FailureType:   failureType,
		Failure:       failure,
		WorkflowRunID: failure.WorkflowRunID,
		OriginalSHA:   failure.HeadSHA,
		Status:        AttemptStatusPending,
		CreatedAt:     now,
	}
	c.byRun[rk] = runSeen{state: state, at: now}
	c.byRetry[tk] = state
	c.mu.Unlock()

	routed := Route(failureType)
	agent := nextAgent(routed, state.Attempts)
	if err := c.StartAttempt(ctx, state, agent, now); err != nil {
		return state, err
	}
	return state, nil
}

// StartAttempt creates a remediate-type RunRequest for specialist and
// appends the corresponding AttemptRecord to state.
func (c *Coordinator) StartAttempt(ctx context.Context, state *AttemptState, specialist Specialist, now time.Time) error {
	githubApp := specialist.GithubApp
	rr := &v1alpha1.RunRequest{
		ObjectMeta: metav1.ObjectMeta{
			GenerateName: fmt.Sprintf("remediate-%s-", strings.ToLower(specialist.Name)),
			Namespace:    c.Config.Namespace,
			Labels: map[string]string{
				v1alpha1.LabelAgentKind: specialist.Name,
			},
		},
		Spec: v1alpha1.RunRequestSpec{
			Service:          deriveService(state.Repository),
			RepositoryURL:    "https://github.com/" + state.Repository,
			WorkingDirectory: "/workspace",
			Model:            specialist.DefaultModel,
			ContextVersion:   1,
			RunType:          v1alpha1.RunTypeRemediate,
			GithubApp:        &githubApp,
			CliConfig: map[string]string{
				"template": specialist.PromptTemplate,
				"branch":   state.Branch,
			},
		},
	}

	if err := c.Create(ctx, rr); err != nil {
		return fmt.Errorf("create remediation run request: %w", err)
	}

	state.Attempts = append(state.Attempts, AttemptRecord{
		AttemptNumber:  len(state.Attempts) + 1,
		Agent:          specialist.Name,
		RunRequestName: rr.Name,
		StartedAt:      now,
	})
	state.Status = AttemptStatusInProgress
	state.UpdatedAt = now

	c.Log.Info("RemediationAttemptStarted", "repository", state.Repository, "branch", state.Branch,
		"failureType", state.FailureType, "agent", specialist.Name, "attempt", len(state.Attempts), "runRequest", rr.Name)

	return nil
}

// RecordOutcome closes out the current attempt with outcome. A Success
// outcome settles the stream; any other outcome either starts a retry
// (applying the same-agent-twice-in-a-row tie-break) or, once
// Config.MaxAttempts is reached, escalates and files an issue.
func (c *Coordinator) RecordOutcome(ctx context.Context, state *AttemptState, outcome AttemptOutcome, failureReason string, now time.Time) error {
	ctx, span := tracing.Start(ctx, "remediation.RecordOutcome")
	defer span.End()

	cur := state.CurrentAttempt()
	if cur == nil {
		return fmt.Errorf("record outcome: no attempt in progress for %s/%s", state.Repository, state.Branch)
	}
	cur.CompletedAt = &now
	cur.Outcome = outcome
	cur.FailureReason = failureReason
	state.UpdatedAt = now
	metrics.RemediationAttempts.WithLabelValues(cur.Agent, string(outcome)).Inc()

	if outcome == AttemptOutcomeSuccess {
		state.Status = AttemptStatusSucceeded
		c.Log.Info("RemediationSucceeded", "repository", state.Repository, "branch", state.Branch,
			"attempts", len(state.Attempts))
		return nil
	}

	maxAttempts := c.Config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultConfig(c.Config.Namespace).MaxAttempts
	}
	if len(state.Attempts) >= maxAttempts {
		return c.escalate(ctx, state, now)
	}

	routed := Route(state.FailureType)
	agent := nextAgent(routed, state.Attempts)
	return c.StartAttempt(ctx, state, agent, now)
}

// escalate marks state Escalated and, when an IssueCreator is wired,
// files a summary issue describing every attempt made.
func (c *Coordinator) escalate(ctx context.Context, state *AttemptState, now time.Time) error {
	state.Status = AttemptStatusEscalated
	state.UpdatedAt = now
	c.Log.Info("RemediationEscalated", "repository", state.Repository, "branch", state.Branch,
		"failureType", state.FailureType, "attempts", len(state.Attempts))
	metrics.RemediationEscalations.WithLabelValues(string(state.FailureType)).Inc()

	if c.Issues == nil {
		return nil
	}
	owner, repo := splitRepository(c.Config.IssueRepository)
	if owner == "" {
		owner, repo = splitRepository(state.Repository)
	}
	_, err := c.Issues.CreateIssue(ctx, owner, repo, EscalationRequest{
		Repository:  state.Repository,
		Branch:      state.Branch,
		FailureType: state.FailureType,
		Attempts:    state.Attempts,
	})
	return err
}

// Cancel handles an external stop signal for state's current attempt. It
// sets v1alpha1.AnnotationStop on the attempt's RunRequest; the
// RunRequest reconciler owns the actual Job deletion and phase
// transition, so this only needs to flip the annotation. Idempotent:
// cancelling an already-cancelled or already-completed attempt is a no-op.
func (c *Coordinator) Cancel(ctx context.Context, state *AttemptState, now time.Time) error {
	if state.Status == AttemptStatusCancelled || state.Status == AttemptStatusSucceeded || state.Status == AttemptStatusEscalated {
		return nil
	}
	cur := state.CurrentAttempt()
	if cur == nil || cur.Outcome != AttemptOutcomePending {
		state.Status = AttemptStatusCancelled
		state.UpdatedAt = now
		return nil
	}

	rr := &v1alpha1.RunRequest{}
	if err := c.Get(ctx, client.ObjectKey{Namespace: c.Config.Namespace, Name: cur.RunRequestName}, rr); err != nil {
		return fmt.Errorf("get run request %s: %w", cur.RunRequestName, err)
	}
	if rr.Annotations == nil {
		rr.Annotations = map[string]string{}
	}
	rr.Annotations[v1alpha1.AnnotationStop] = "true"
	if err := c.Update(ctx, rr); err != nil {
		return fmt.Errorf("annotate run request %s for stop: %w", cur.RunRequestName, err)
	}

	now2 := now
	cur.CompletedAt = &now2
	cur.Outcome = AttemptOutcomeCancelled
	state.Status = AttemptStatusCancelled
	state.UpdatedAt = now
	return nil
}

// Run sweeps on Config.SweepSchedule until ctx is cancelled. Each sweep
// prunes expired dedup entries and records a Timeout outcome for any
// attempt that has outlived Config.AttemptTimeout.
func (c *Coordinator) Run(ctx context.Context) error {
	scheduleExpr := c.Config.SweepSchedule
	if scheduleExpr == "" {
		scheduleExpr = DefaultConfig(c.Config.Namespace).SweepSchedule
	}
	schedule, err := cron.ParseStandard(scheduleExpr)
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", scheduleExpr, err)
	}

	for {
		now := time.Now()
		wait := schedule.Next(now).Sub(now)
		if wait <= 0 {
			wait = time.Second
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if err := c.Sweep(ctx, time.Now()); err != nil {
			c.Log.Error(err, "remediation sweep failed")
		}
	}
}

// Sweep drops byRun dedup entries older than the dedup window, forgets
// terminal retry streams once their window has passed, and times out any
// in-flight attempt older than AttemptTimeout. now is injected so tests
// control the clock.
func (c *Coordinator) Sweep(ctx context.Context, now time.Time) error {
	attemptTimeout := c.Config.AttemptTimeout
	if attemptTimeout <= 0 {
		attemptTimeout = DefaultConfig(c.Config.Namespace).AttemptTimeout
	}

	var stale []*AttemptState
	c.mu.Lock()
	for key, seen := range c.byRun {
		if now.Sub(seen.at) >= c.Config.DedupWindow {
			delete(c.byRun, key)
		}
	}
	for key, state := range c.byRetry {
		if terminal(state.Status) && now.Sub(state.UpdatedAt) >= c.Config.DedupWindow {
			delete(c.byRetry, key)
			continue
		}
		if cur := state.CurrentAttempt(); cur != nil && cur.Outcome == AttemptOutcomePending &&
			now.Sub(cur.StartedAt) >= attemptTimeout {
			stale = append(stale, state)
		}
	}
	c.mu.Unlock()

	// RecordOutcome may start a replacement attempt (a cluster write), so
	// it runs outside the map lock.
	var firstErr error
	for _, state := range stale {
		c.Log.Info("RemediationAttemptTimedOut", "repository", state.Repository, "branch", state.Branch,
			"attempt", len(state.Attempts))
		if err := c.RecordOutcome(ctx, state, AttemptOutcomeTimeout,
			fmt.Sprintf("no outcome within %s", attemptTimeout), now); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func terminal(status AttemptStatus) bool {
	return status == AttemptStatusSucceeded || status == AttemptStatusEscalated || status == AttemptStatusCancelled
}

func deriveService(repository string) string {
	_, repo := splitRepository(repository)
	if repo == "" {
		return repository
	}
	return repo
}

func splitRepository(repo string) (owner, name string) {
	for i := 0; i < len(repo); i++ {
		if repo[i] == '/' {
			return repo[:i], repo[i+1:]
		}
	}
	return repo, ""
}
