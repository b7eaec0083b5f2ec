// Copyright Contributors to the KubeOpenCode project

package monitor

import (
	"fmt"
	"sort"
	"time"
)

// ObservationKind categorizes what an AgentObservation recorded about an
// agent's behavior during a play.
type ObservationKind string

const (
	ObservationRepeatedMistake      ObservationKind = "RepeatedMistake"
	ObservationInefficiencyDetected ObservationKind = "InefficiencyDetected"
	ObservationSuccessPattern       ObservationKind = "SuccessPattern"
	ObservationExcessiveRetries     ObservationKind = "ExcessiveRetries"
	ObservationFastCompletion       ObservationKind = "FastCompletion"
)

// AgentObservation is one recorded behavior datum about an agent. Count is
// set for ExcessiveRetries; DurationMinutes for FastCompletion.
type AgentObservation struct {
	Agent           string
	Timestamp       time.Time
	Kind            ObservationKind
	Detail          string
	Stage           string
	Count           int
	DurationMinutes float64
}

// FailurePattern aggregates repeated occurrences of the same failure
// description by the same agent across plays.
type FailurePattern struct {
	Agent       string
	Description string
	Occurrences int
	FirstSeen   time.Time
	LastSeen    time.Time
}

// Confidence grades how much weight a PromptSuggestion deserves, keyed off
// how often its underlying pattern has recurred.
type Confidence string

const (
	ConfidenceHigh   Confidence = "High"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceLow    Confidence = "Low"
)

func confidenceFor(occurrences int) Confidence {
	switch {
	case occurrences >= 5:
		return ConfidenceHigh
	case occurrences >= 3:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// PromptSuggestion is a surfaced, read-only recommendation derived from a
// recurring failure pattern. Nothing in this module acts on one; a human
// reviews it and decides whether the agent's prompt template should change.
type PromptSuggestion struct {
	Agent           string
	Observation     string
	SuggestedChange string
	Confidence      Confidence
	Occurrences     int
}

// AgentStats is a per-agent rollup of every run the collector has seen
// complete.
type AgentStats struct {
	Agent              string
	RunsAnalyzed       int
	SuccessRate        float64
	AvgDurationMinutes float64
	TopIssues          []string
}

// repeatedMistakeThreshold is how many times the same (agent, pattern)
// pair must recur before a RepeatedMistake observation is recorded.
const repeatedMistakeThreshold = 3

// excessiveRetryThreshold is how many anomalies a single agent may
// accumulate within one play before an ExcessiveRetries observation fires.
const excessiveRetryThreshold = 5

// fastCompletionMinutes is the duration under which a clean run earns a
// FastCompletion observation.
const fastCompletionMinutes = 10.0

type agentRunStats struct {
	runs             int
	successes        int
	totalDurationMin float64
}

// InsightCollector accumulates AgentObservations and failure patterns
// across plays. It is owned by a single Monitor task and is not safe for
// concurrent use from elsewhere; snapshots from Observations, Suggestions,
// and Stats are copies.
type InsightCollector struct {
	observations []AgentObservation
	patterns     map[string]*FailurePattern
	stats        map[string]*agentRunStats
}

// NewInsightCollector returns an empty collector.
func NewInsightCollector() *InsightCollector {
	return &InsightCollector{
		patterns: make(map[string]*FailurePattern),
		stats:    make(map[string]*agentRunStats),
	}
}

func patternKey(agent, description string) string {
	return agent + "\x00" + description
}

// RecordDetection feeds one anomaly/failure detection into the pattern
// aggregate, recording a RepeatedMistake observation once the same
// (agent, description) pair has recurred repeatedMistakeThreshold times.
func (c *InsightCollector) RecordDetection(agent, description, stage string, at time.Time) {
	key := patternKey(agent, description)
	p, ok := c.patterns[key]
	if !ok {
		p = &FailurePattern{Agent: agent, Description: description, FirstSeen: at}
		c.patterns[key] = p
	}
	p.Occurrences++
	p.LastSeen = at

	if p.Occurrences == repeatedMistakeThreshold {
		c.observations = append(c.observations, AgentObservation{
			Agent:     agent,
			Timestamp: at,
			Kind:      ObservationRepeatedMistake,
			Detail:    description,
			Stage:     stage,
		})
	}
}

// RecordRetries records an ExcessiveRetries observation when an agent's
// anomaly count within one play crosses excessiveRetryThreshold.
func (c *InsightCollector) RecordRetries(agent, stage string, count int, at time.Time) {
	if count != excessiveRetryThreshold {
		return
	}
	c.observations = append(c.observations, AgentObservation{
		Agent:     agent,
		Timestamp: at,
		Kind:      ObservationExcessiveRetries,
		Detail:    fmt.Sprintf("%d anomalies within a single play", count),
		Stage:     stage,
		Count:     count,
	})
}

// RecordInefficiency records an InefficiencyDetected observation directly,
// for detections (timeouts, retry storms) that signal wasted work rather
// than a wrong answer.
func (c *InsightCollector) RecordInefficiency(agent, detail, stage string, at time.Time) {
	c.observations = append(c.observations, AgentObservation{
		Agent:     agent,
		Timestamp: at,
		Kind:      ObservationInefficiencyDetected,
		Detail:    detail,
		Stage:     stage,
	})
}

// RecordRunCompleted rolls a finished run into the agent's stats and, on a
// clean run, records a SuccessPattern observation plus a FastCompletion one
// when the run beat fastCompletionMinutes.
func (c *InsightCollector) RecordRunCompleted(agent, stage string, clean bool, duration time.Duration, at time.Time) {
	s, ok := c.stats[agent]
	if !ok {
		s = &agentRunStats{}
		c.stats[agent] = s
	}
	minutes := duration.Minutes()
	s.runs++
	s.totalDurationMin += minutes
	if !clean {
		return
	}
	s.successes++

	c.observations = append(c.observations, AgentObservation{
		Agent:     agent,
		Timestamp: at,
		Kind:      ObservationSuccessPattern,
		Detail:    "run completed without anomalies",
		Stage:     stage,
	})
	if minutes > 0 && minutes < fastCompletionMinutes {
		c.observations = append(c.observations, AgentObservation{
			Agent:           agent,
			Timestamp:       at,
			Kind:            ObservationFastCompletion,
			Detail:          fmt.Sprintf("completed in %.1f minutes", minutes),
			Stage:           stage,
			DurationMinutes: minutes,
		})
	}
}

// Observations returns a copy of every observation recorded so far.
func (c *InsightCollector) Observations() []AgentObservation {
	out := make([]AgentObservation, len(c.observations))
	copy(out, c.observations)
	return out
}

// Suggestions derives a PromptSuggestion from every failure pattern that
// has recurred at least twice, sorted most-frequent first.
func (c *InsightCollector) Suggestions() []PromptSuggestion {
	var out []PromptSuggestion
	for _, p := range c.patterns {
		if p.Occurrences < 2 {
			continue
		}
		out = append(out, PromptSuggestion{
			Agent:           p.Agent,
			Observation:     fmt.Sprintf("%q recurred %d times", p.Description, p.Occurrences),
			SuggestedChange: fmt.Sprintf("add guidance addressing %q to the %s prompt template", p.Description, p.Agent),
			Confidence:      confidenceFor(p.Occurrences),
			Occurrences:     p.Occurrences,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Occurrences != out[j].Occurrences {
			return out[i].Occurrences > out[j].Occurrences
		}
		return out[i].Agent < out[j].Agent
	})
	return out
}

// Stats returns the per-agent run rollup, sorted by agent name.
func (c *InsightCollector) Stats() []AgentStats {
	out := make([]AgentStats, 0, len(c.stats))
	for agent, s := range c.stats {
		stat := AgentStats{Agent: agent, RunsAnalyzed: s.runs}
		if s.runs > 0 {
			stat.SuccessRate = float64(s.successes) / float64(s.runs)
			stat.AvgDurationMinutes = s.totalDurationMin / float64(s.runs)
		}
		stat.TopIssues = c.topIssues(agent, 3)
		out = append(out, stat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Agent < out[j].Agent })
	return out
}

func (c *InsightCollector) topIssues(agent string, n int) []string {
	var patterns []*FailurePattern
	for _, p := range c.patterns {
		if p.Agent == agent {
			patterns = append(patterns, p)
		}
	}
	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].Occurrences != patterns[j].Occurrences {
			return patterns[i].Occurrences > patterns[j].Occurrences
		}
		return patterns[i].Description < patterns[j].Description
	})
	var out []string
	for i := 0; i < len(patterns) && i < n; i++ {
		out = append(out, patterns[i].Description)
	}
	return out
}
