// Copyright Contributors to the KubeOpenCode project

// Package behavior scans agent log lines against per-agent and global
// regex pattern sets to detect successes, failures, and anomalies.
package behavior

import (
	"regexp"
	"strings"
	"time"

	"github.com/go-logr/logr"
)

// DetectionType classifies what a matched (or unmatched) line represents.
type DetectionType string

const (
	Success DetectionType = "Success"
	Failure DetectionType = "Failure"
	Anomaly DetectionType = "Anomaly"
	Normal  DetectionType = "Normal"
)

// Severity ranks how urgently a detection should be surfaced.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
	SeverityNone     Severity = "none"
)

// Pattern is a single named detector: a regex tagged with the detection
// type it signals and the severity to report when it fires.
type Pattern struct {
	Description string
	Regex       *regexp.Regexp
	Type        DetectionType
	Severity    Severity
}

// PatternSource is the uncompiled form patterns are authored in. Compile
// turns a slice of these into Patterns, substituting a never-match regex
// (and logging a warning) for any entry whose Expr fails to compile so a
// single bad pattern never prevents the analyzer from running.
type PatternSource struct {
	Description string
	Expr        string
	Type        DetectionType
	Severity    Severity
}

// neverMatch is the fallback regex used in place of one that failed to
// compile. The negated full-Unicode class requires a character that
// cannot exist, so it never matches any input, including the empty
// string.
var neverMatch = regexp.MustCompile(`[^\x{0}-\x{10FFFF}]`)

// Compile turns sources into Patterns, logging a warning and substituting
// neverMatch for any entry that fails to compile.
func Compile(log logr.Logger, sources []PatternSource) []Pattern {
	patterns := make([]Pattern, 0, len(sources))
	for _, s := range sources {
		re, err := regexp.Compile(s.Expr)
		if err != nil {
			log.Info("behavior pattern failed to compile, substituting never-match fallback",
				"description", s.Description, "expr", s.Expr, "error", err.Error())
			re = neverMatch
		}
		patterns = append(patterns, Pattern{
			Description: s.Description,
			Regex:       re,
			Type:        s.Type,
			Severity:    s.Severity,
		})
	}
	return patterns
}

// GlobalFailurePatterns are the always-active, agent-independent failure
// signatures checked before any agent-specific pattern set.
var GlobalFailurePatterns = []PatternSource{
	{"panic", `(?i)\bpanic:`, Failure, SeverityCritical},
	{"fatal error", `(?i)\bfatal\b`, Failure, SeverityCritical},
	{"segfault", `(?i)segmentation fault|\bsegfault\b`, Failure, SeverityCritical},
	{"out of memory", `(?i)out of memory|\boom\b(?:-?killed)?`, Failure, SeverityCritical},
	{"permission denied", `(?i)permission denied`, Failure, SeverityHigh},
	{"auth failed", `(?i)auth(?:entication)? failed|unauthorized`, Failure, SeverityHigh},
	{"connection refused", `(?i)connection refused`, Failure, SeverityHigh},
	{"timeout", `(?i)\btimed? ?out\b`, Failure, SeverityMedium},
}

// AgentPatternSet is the per-agent collection consulted after the global
// failure patterns have missed. Patterns within each slice are tried in
// order; the first match wins.
type AgentPatternSet struct {
	Failure []Pattern
	Anomaly []Pattern
	Success []Pattern
}

// Detection is a single analyzed line.
type Detection struct {
	Line           string
	Agent          string
	Type           DetectionType
	MatchedPattern string
	Severity       Severity
	Timestamp      *time.Time
}

// Analyzer holds compiled global and per-agent pattern sets.
type Analyzer struct {
	global []Pattern
	agents map[string]AgentPatternSet
}

// NewAnalyzer compiles globalSources once and stores agentSets by agent
// name for repeated use across log lines.
func NewAnalyzer(log logr.Logger, globalSources []PatternSource, agentSets map[string]AgentPatternSet) *Analyzer {
	return &Analyzer{
		global: Compile(log, globalSources),
		agents: agentSets,
	}
}

// Analyze applies the fixed precedence order to a single line for the
// given agent: global failure patterns, then that agent's failure,
// anomaly, and success patterns in turn, defaulting to Normal.
func (a *Analyzer) Analyze(line, agent string, timestamp *time.Time) Detection {
	base := Detection{Line: line, Agent: agent, Timestamp: timestamp}

	if p, ok := firstMatch(a.global, line); ok {
		return withMatch(base, p)
	}

	set, ok := a.agents[agent]
	if !ok {
		return withType(base, Normal, "", SeverityNone)
	}

	if p, ok := firstMatch(set.Failure, line); ok {
		return withMatch(base, p)
	}
	if p, ok := firstMatch(set.Anomaly, line); ok {
		return withMatch(base, p)
	}
	if p, ok := firstMatch(set.Success, line); ok {
		return withMatch(base, p)
	}

	return withType(base, Normal, "", SeverityNone)
}

func firstMatch(patterns []Pattern, line string) (Pattern, bool) {
	for _, p := range patterns {
		if p.Regex.MatchString(line) {
			return p, true
		}
	}
	return Pattern{}, false
}

func withMatch(d Detection, p Pattern) Detection {
	return withType(d, p.Type, p.Description, p.Severity)
}

func withType(d Detection, t DetectionType, matched string, sev Severity) Detection {
	d.Type = t
	d.MatchedPattern = matched
	d.Severity = sev
	return d
}

// agentTokens are the specialist identities the play monitor and
// remediation coordinator may see reflected in a pod name, in GithubApp
// form (e.g. "5dlabs-rex") and bare form.
var agentTokens = []string{"rex", "blaze", "bolt", "cipher", "atlas"}

// InferAgent resolves which agent produced a pod's logs. It prefers the
// explicit v1alpha1.LabelAgentKind label; failing that it scans podName
// for a known specialist token; failing that it returns "Unknown".
func InferAgent(labels map[string]string, labelKey, podName string) string {
	if v, ok := labels[labelKey]; ok && v != "" {
		return v
	}

	lower := strings.ToLower(podName)
	for _, token := range agentTokens {
		if strings.Contains(lower, token) {
			return token
		}
	}

	return "Unknown"
}
