// Copyright Contributors to the KubeOpenCode project

package behavior

import (
	"testing"

	"github.com/go-logr/logr"
)

func testAgentSets() map[string]AgentPatternSet {
	log := logr.Discard()
	return map[string]AgentPatternSet{
		"rex": {
			Failure: Compile(log, []PatternSource{
				{"clippy deny", `(?i)error\[clippy`, Failure, SeverityHigh},
			}),
			Anomaly: Compile(log, []PatternSource{
				{"slow compile", `(?i)compiling for over`, Anomaly, SeverityMedium},
			}),
			Success: Compile(log, []PatternSource{
				{"build finished", `(?i)finished \S+ profile`, Success, SeverityInfo},
			}),
		},
	}
}

func TestAnalyze_GlobalFailureBeatsEverythingElse(t *testing.T) {
	a := NewAnalyzer(logr.Discard(), GlobalFailurePatterns, testAgentSets())
	// Would otherwise match rex's success pattern, but "panic:" is a global
	// failure signal and must win.
	d := a.Analyze("panic: finished release profile unexpectedly", "rex", nil)
	if d.Type != Failure {
		t.Fatalf("Detection.Type = %q, want %q", d.Type, Failure)
	}
	if d.MatchedPattern != "panic" {
		t.Fatalf("Detection.MatchedPattern = %q, want %q", d.MatchedPattern, "panic")
	}
	if d.Severity != SeverityCritical {
		t.Fatalf("Detection.Severity = %q, want %q", d.Severity, SeverityCritical)
	}
}

func TestAnalyze_AgentFailureBeatsAnomalyAndSuccess(t *testing.T) {
	a := NewAnalyzer(logr.Discard(), GlobalFailurePatterns, testAgentSets())
	d := a.Analyze("error[clippy::needless_return]", "rex", nil)
	if d.Type != Failure || d.MatchedPattern != "clippy deny" {
		t.Fatalf("Detection = %+v, want Failure/clippy deny", d)
	}
}

func TestAnalyze_AgentAnomalyBeatsSuccess(t *testing.T) {
	a := NewAnalyzer(logr.Discard(), GlobalFailurePatterns, testAgentSets())
	d := a.Analyze("compiling for over 5 minutes, still running", "rex", nil)
	if d.Type != Anomaly || d.MatchedPattern != "slow compile" {
		t.Fatalf("Detection = %+v, want Anomaly/slow compile", d)
	}
}

func TestAnalyze_AgentSuccess(t *testing.T) {
	a := NewAnalyzer(logr.Discard(), GlobalFailurePatterns, testAgentSets())
	d := a.Analyze("Finished release profile [optimized] target(s)", "rex", nil)
	if d.Type != Success || d.MatchedPattern != "build finished" {
		t.Fatalf("Detection = %+v, want Success/build finished", d)
	}
}

func TestAnalyze_DefaultsToNormal(t *testing.T) {
	a := NewAnalyzer(logr.Discard(), GlobalFailurePatterns, testAgentSets())
	d := a.Analyze("compiling checkout v0.3.1", "rex", nil)
	if d.Type != Normal || d.Severity != SeverityNone {
		t.Fatalf("Detection = %+v, want Normal/none", d)
	}
}

func TestAnalyze_UnknownAgentStillChecksGlobalPatterns(t *testing.T) {
	a := NewAnalyzer(logr.Discard(), GlobalFailurePatterns, testAgentSets())
	d := a.Analyze("connection refused to registry.internal", "blaze", nil)
	if d.Type != Failure || d.MatchedPattern != "connection refused" {
		t.Fatalf("Detection = %+v, want Failure/connection refused", d)
	}
}

func TestAnalyze_UnknownAgentWithNoSetDefaultsToNormal(t *testing.T) {
	a := NewAnalyzer(logr.Discard(), GlobalFailurePatterns, testAgentSets())
	d := a.Analyze("just some ordinary output", "ghost", nil)
	if d.Type != Normal {
		t.Fatalf("Detection.Type = %q, want %q", d.Type, Normal)
	}
}

func TestCompile_InvalidRegexFallsBackToNeverMatch(t *testing.T) {
	patterns := Compile(logr.Discard(), []PatternSource{
		{"broken", `(unterminated`, Failure, SeverityHigh},
	})
	if len(patterns) != 1 {
		t.Fatalf("Compile() len = %d, want 1", len(patterns))
	}
	if patterns[0].Regex.MatchString("unterminated") {
		t.Fatalf("fallback pattern unexpectedly matched")
	}
	if patterns[0].Regex.MatchString("") {
		t.Fatalf("fallback pattern unexpectedly matched empty string")
	}
}

func TestInferAgent_PrefersLabel(t *testing.T) {
	labels := map[string]string{"agents.platform/agent": "rex"}
	got := InferAgent(labels, "agents.platform/agent", "checkout-blaze-pod-abc")
	if got != "rex" {
		t.Fatalf("InferAgent() = %q, want %q", got, "rex")
	}
}

func TestInferAgent_FallsBackToPodNameToken(t *testing.T) {
	got := InferAgent(nil, "agents.platform/agent", "checkout-blaze-pod-abc")
	if got != "blaze" {
		t.Fatalf("InferAgent() = %q, want %q", got, "blaze")
	}
}

func TestInferAgent_UnknownWhenNothingMatches(t *testing.T) {
	got := InferAgent(nil, "agents.platform/agent", "checkout-run-7-pod-abc")
	if got != "Unknown" {
		t.Fatalf("InferAgent() = %q, want %q", got, "Unknown")
	}
}
