// Copyright Contributors to the KubeOpenCode project

package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/robfig/cron/v3"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/5dlabs/agentctl/api/v1alpha1"
	"github.com/5dlabs/agentctl/internal/behavior"
	"github.com/5dlabs/agentctl/internal/metrics"
	"github.com/5dlabs/agentctl/internal/naming"
)

// Config tunes the monitor's behavior independent of its wiring.
type Config struct {
	// Namespace is the namespace to discover RunRequests in.
	Namespace string

	// PollSchedule is a cron.ParseStandard expression (e.g. "*/1 * * * *")
	// governing the interval between ticks, following the same
	// operator-facing convention as CronTask/CronWorkflow schedules.
	PollSchedule string

	// MinSeverity is the lowest behavior.Severity that triggers an
	// AnomalyRecord and, subject to the issue budget, a GitHub issue.
	MinSeverity behavior.Severity

	// MaxIssuesPerPlay bounds GitHub issue creation per play, independent
	// of how many distinct anomalies are detected.
	MaxIssuesPerPlay int

	// AutoCreateIssues disables issue creation entirely when false, while
	// anomalies are still recorded and emitted as events.
	AutoCreateIssues bool

	// IssueRepository is "owner/repo" that anomaly issues are filed
	// against.
	IssueRepository string

	// DefaultWindow is the log window used on a play's first pass, before
	// LastLogCheck has been recorded.
	DefaultWindow time.Duration
}

// DefaultConfig returns the monitor defaults: a 5 minute first-pass window
// and medium-or-above severity.
func DefaultConfig(namespace string) Config {
	return Config{
		Namespace:        namespace,
		PollSchedule:     "*/1 * * * *",
		MinSeverity:      behavior.SeverityMedium,
		MaxIssuesPerPlay: 5,
		AutoCreateIssues: true,
		DefaultWindow:    5 * time.Minute,
	}
}

// severityRank orders Severity from least to most urgent so MinSeverity
// comparisons have a total order to work with.
var severityRank = map[behavior.Severity]int{
	behavior.SeverityNone:     0,
	behavior.SeverityInfo:     1,
	behavior.SeverityLow:      2,
	behavior.SeverityMedium:   3,
	behavior.SeverityHigh:     4,
	behavior.SeverityCritical: 5,
}

func meetsMinSeverity(s, min behavior.Severity) bool {
	return severityRank[s] >= severityRank[min]
}

// Monitor is the play monitor: it discovers in-flight RunRequests,
// tails their logs through the behavior analyzer, and files GitHub issues
// for anomalies it hasn't already seen.
type Monitor struct {
	client.Client
	Log logr.Logger

	Analyzer      *behavior.Analyzer
	Logs          LogFetcher
	Issues        IssueCreator
	AgentLabelKey string

	Config Config

	// Insights accumulates per-agent behavior observations across plays.
	Insights *InsightCollector

	plays  map[string]*MonitoredPlay
	events chan Event
	// seenFingerprints is a global recently-seen set; entries expire after
	// dedupCooldown so a long-lived anomaly resurfaces eventually rather
	// than being silenced forever.
	seenFingerprints map[string]time.Time
	dedupCooldown    time.Duration
}

// NewMonitor wires a Monitor ready to Tick. agentLabelKey is normally
// v1alpha1.LabelAgentKind; it's accepted as a parameter so this package
// never needs to import it for its own sake beyond the RunPhase/RunRequest
// types it already depends on.
func NewMonitor(c client.Client, log logr.Logger, analyzer *behavior.Analyzer, logs LogFetcher, issues IssueCreator, agentLabelKey string, cfg Config) *Monitor {
	return &Monitor{
		Client:           c,
		Log:              log.WithName("play-monitor"),
		Analyzer:         analyzer,
		Logs:             logs,
		Issues:           issues,
		AgentLabelKey:    agentLabelKey,
		Config:           cfg,
		Insights:         NewInsightCollector(),
		plays:            make(map[string]*MonitoredPlay),
		events:           make(chan Event, defaultEventBuffer),
		seenFingerprints: make(map[string]time.Time),
		dedupCooldown:    30 * time.Minute,
	}
}

// Run polls on Config.PollSchedule until ctx is cancelled. Each tick is
// bounded by its own timeout (one schedule interval plus a grace period)
// so a slow backend can never block cancellation for longer than that.
func (m *Monitor) Run(ctx context.Context) error {
	schedule, err := cron.ParseStandard(m.Config.PollSchedule)
	if err != nil {
		return fmt.Errorf("invalid poll schedule %q: %w", m.Config.PollSchedule, err)
	}

	for {
		now := time.Now()
		next := schedule.Next(now)
		wait := next.Sub(now)
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

		tickCtx, cancel := context.WithTimeout(ctx, wait+30*time.Second)
		if err := m.Tick(tickCtx, time.Now()); err != nil {
			m.Log.Error(err, "play monitor tick failed")
		}
		cancel()
	}
}

// Tick executes one poll: discover, track, fetch+analyze logs, and
// complete finished plays. now is injected for deterministic testing.
func (m *Monitor) Tick(ctx context.Context, now time.Time) error {
	runs := &v1alpha1.RunRequestList{}
	if err := m.List(ctx, runs, client.InNamespace(m.Config.Namespace)); err != nil {
		return fmt.Errorf("list run requests: %w", err)
	}

	byPlay := m.discover(runs.Items)

	for playID, activeRuns := range byPlay {
		play := m.track(playID, activeRuns, now)
		m.analyzeLogWindow(ctx, play, now)
	}

	m.completeFinishedPlays(byPlay, now)

	return nil
}

// discover groups runs whose phase is Running or Pending by play id.
func (m *Monitor) discover(items []v1alpha1.RunRequest) map[string][]ActiveRun {
	byPlay := make(map[string][]ActiveRun)
	for i := range items {
		rr := &items[i]
		if !runningOrPending(rr.Status.Phase) {
			continue
		}
		playID := naming.PlayID(rr.Name)
		agent := behavior.InferAgent(rr.Labels, m.AgentLabelKey, rr.Name)

		var started *time.Time
		if rr.Status.StartTime != nil {
			t := rr.Status.StartTime.Time
			started = &t
		}

		byPlay[playID] = append(byPlay[playID], ActiveRun{
			Name:      rr.Name,
			AgentKind: agent,
			PodName:   rr.Status.PodName,
			Phase:     rr.Status.Phase,
			StartedAt: started,
		})
	}
	return byPlay
}

// track creates a MonitoredPlay on first sight (emitting PlayDetected) or
// refreshes an existing one's active runs, emitting CodeRunStarted and
// CodeRunCompleted for runs that entered or left the active set since the
// previous tick.
func (m *Monitor) track(playID string, activeRuns []ActiveRun, now time.Time) *MonitoredPlay {
	play, ok := m.plays[playID]
	if !ok {
		play = &MonitoredPlay{PlayID: playID}
		m.plays[playID] = play
		m.Log.Info("PlayDetected", "playID", playID, "activeRuns", len(activeRuns))
		m.emit(Event{Type: EventPlayDetected, PlayID: playID, Timestamp: now})
	}

	previous := make(map[string]ActiveRun, len(play.ActiveRuns))
	for _, run := range play.ActiveRuns {
		previous[run.Name] = run
	}
	current := make(map[string]struct{}, len(activeRuns))
	for _, run := range activeRuns {
		current[run.Name] = struct{}{}
		if _, seen := previous[run.Name]; !seen {
			m.emit(Event{Type: EventCodeRunStarted, PlayID: playID, RunName: run.Name, Agent: run.AgentKind, Timestamp: now})
		}
	}
	for name, run := range previous {
		if _, still := current[name]; !still {
			m.emit(Event{Type: EventCodeRunCompleted, PlayID: playID, RunName: name, Agent: run.AgentKind, Timestamp: now})
			m.recordRunInsights(play, run, now)
		}
	}

	play.ActiveRuns = activeRuns
	return play
}

// recordRunInsights rolls a finished run into the insight collector: a run
// with no recorded anomalies counts as clean, and its duration is measured
// from the RunRequest's own start time when one was observed.
func (m *Monitor) recordRunInsights(play *MonitoredPlay, run ActiveRun, now time.Time) {
	clean := true
	anomalies := 0
	for _, a := range play.Anomalies {
		if a.RunName == run.Name {
			clean = false
			anomalies++
		}
	}
	var duration time.Duration
	if run.StartedAt != nil {
		duration = now.Sub(*run.StartedAt)
	}
	m.Insights.RecordRunCompleted(run.AgentKind, play.PlayID, clean, duration, now)
	m.Insights.RecordRetries(run.AgentKind, play.PlayID, anomalies, now)
}

// analyzeLogWindow fetches and analyzes each active run's new log lines,
// recording anomalies and filing issues within the configured budget.
func (m *Monitor) analyzeLogWindow(ctx context.Context, play *MonitoredPlay, now time.Time) {
	since := now.Add(-m.Config.DefaultWindow)
	if play.LastLogCheck != nil {
		since = *play.LastLogCheck
	}

	for _, run := range play.ActiveRuns {
		if run.PodName == "" {
			continue
		}

		lines, err := m.Logs.FetchLogs(ctx, m.Config.Namespace, run.PodName, since, now)
		if err != nil {
			m.Log.Error(err, "fetch logs failed", "pod", run.PodName)
			m.emit(Event{Type: EventError, PlayID: play.PlayID, RunName: run.Name, Message: err.Error(), Timestamp: now})
			continue
		}

		for _, line := range lines {
			detection := m.Analyzer.Analyze(line.Text, run.AgentKind, tsPtr(line.Timestamp))
			if detection.Type == behavior.Success {
				m.emit(Event{Type: EventSuccessDetected, PlayID: play.PlayID, RunName: run.Name,
					Agent: run.AgentKind, Message: detection.MatchedPattern, Timestamp: now})
				continue
			}
			if detection.Type != behavior.Failure && detection.Type != behavior.Anomaly {
				continue
			}
			if !meetsMinSeverity(detection.Severity, m.Config.MinSeverity) {
				continue
			}

			fp := Fingerprint(run.Name, detection.MatchedPattern, detection.Line)
			if m.recentlySeen(fp, now) {
				continue
			}
			m.markSeen(fp, now)

			record := AnomalyRecord{
				DetectedAt:  now,
				Analysis:    detection,
				RunName:     run.Name,
				Fingerprint: fp,
			}
			m.Log.Info("AnomalyDetected", "playID", play.PlayID, "run", run.Name, "severity", detection.Severity, "pattern", detection.MatchedPattern)
			m.emit(Event{Type: EventAnomalyDetected, PlayID: play.PlayID, RunName: run.Name,
				Agent: run.AgentKind, Severity: detection.Severity, Message: detection.MatchedPattern, Timestamp: now})
			metrics.AnomaliesDetected.WithLabelValues(string(detection.Severity)).Inc()
			if detection.Type == behavior.Anomaly {
				m.Insights.RecordInefficiency(run.AgentKind, detection.MatchedPattern, play.PlayID, now)
			} else {
				m.Insights.RecordDetection(run.AgentKind, detection.MatchedPattern, play.PlayID, now)
			}

			if m.Config.AutoCreateIssues && len(play.IssuesCreated) < m.Config.MaxIssuesPerPlay && m.Issues != nil {
				owner, repo := splitRepository(m.Config.IssueRepository)
				url, err := m.Issues.CreateIssue(ctx, owner, repo, IssueRequest{
					RunName:  run.Name,
					Severity: detection.Severity,
					Excerpt:  detection.Line,
					Agent:    run.AgentKind,
				})
				if err != nil {
					m.Log.Error(err, "create anomaly issue failed", "run", run.Name)
					m.emit(Event{Type: EventError, PlayID: play.PlayID, RunName: run.Name, Message: err.Error(), Timestamp: now})
				} else {
					record.IssueCreated = true
					record.IssueURL = url
					play.IssuesCreated = append(play.IssuesCreated, url)
					m.Log.Info("IssueCreated", "playID", play.PlayID, "run", run.Name, "url", url)
					m.emit(Event{Type: EventIssueCreated, PlayID: play.PlayID, RunName: run.Name, Message: url, Timestamp: now})
					metrics.IssuesCreated.WithLabelValues(m.Config.IssueRepository).Inc()
				}
			}

			play.Anomalies = append(play.Anomalies, record)
		}
	}

	play.LastLogCheck = &now
}

// completeFinishedPlays drops every tracked play absent from the current
// discovery pass (every one of its runs has left Running/Pending),
// scoring the play and emitting EvaluationCompleted plus PlayCompleted
// with summary counts first. The final active-run set is rolled into the
// insight collector on the way out, since those runs never get a
// disappeared-from-tracking pass of their own.
func (m *Monitor) completeFinishedPlays(byPlay map[string][]ActiveRun, now time.Time) {
	for playID, play := range m.plays {
		if _, stillActive := byPlay[playID]; stillActive {
			continue
		}
		for _, run := range play.ActiveRuns {
			m.emit(Event{Type: EventCodeRunCompleted, PlayID: playID, RunName: run.Name, Agent: run.AgentKind, Timestamp: now})
			m.recordRunInsights(play, run, now)
		}

		eval := scoreEvaluation(play)
		play.EvaluationResults = &eval
		m.emit(Event{Type: EventEvaluationCompleted, PlayID: playID,
			Message: fmt.Sprintf("score=%.2f %s", eval.Score, eval.Notes), Timestamp: now})

		m.Log.Info("PlayCompleted", "playID", playID,
			"anomalies", len(play.Anomalies), "issuesCreated", len(play.IssuesCreated))
		m.emit(Event{Type: EventPlayCompleted, PlayID: playID,
			Message: fmt.Sprintf("anomalies=%d issues=%d", len(play.Anomalies), len(play.IssuesCreated)), Timestamp: now})
		delete(m.plays, playID)
	}
}

// recentlySeen reports whether fp was marked within the dedup cooldown.
func (m *Monitor) recentlySeen(fp string, now time.Time) bool {
	seenAt, ok := m.seenFingerprints[fp]
	if !ok {
		return false
	}
	return now.Sub(seenAt) < m.dedupCooldown
}

func (m *Monitor) markSeen(fp string, now time.Time) {
	m.seenFingerprints[fp] = now
}

// Plays exposes the current tracking set, primarily for tests.
func (m *Monitor) Plays() map[string]*MonitoredPlay {
	return m.plays
}

// scoreEvaluation is a placeholder probe-based evaluator for a completed
// play: no probe-based scoring design exists yet, so this returns a fixed
// neutral score rather than a fabricated one. A real evaluator (comparing
// expected vs. observed outcomes per run) needs an LLM integration this
// module deliberately does not embed.
func scoreEvaluation(_ *MonitoredPlay) EvaluationResult {
	return EvaluationResult{Score: 0.5, Notes: "placeholder: no evaluation probe wired yet"}
}

func tsPtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func splitRepository(repo string) (owner, name string) {
	for i := 0; i < len(repo); i++ {
		if repo[i] == '/' {
			return repo[:i], repo[i+1:]
		}
	}
	return repo, ""
}
