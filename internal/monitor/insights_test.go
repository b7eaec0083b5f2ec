// Copyright Contributors to the KubeOpenCode project

package monitor

import (
	"testing"
	"time"
)

func TestRecordDetection_RepeatedMistakeFiresAtThreshold(t *testing.T) {
	c := NewInsightCollector()
	now := time.Now()

	for i := 0; i < repeatedMistakeThreshold-1; i++ {
		c.RecordDetection("rex", "panic", "checkout-impl-7", now)
	}
	if got := len(c.Observations()); got != 0 {
		t.Fatalf("Observations() len = %d before threshold, want 0", got)
	}

	c.RecordDetection("rex", "panic", "checkout-impl-7", now)
	obs := c.Observations()
	if len(obs) != 1 {
		t.Fatalf("Observations() len = %d at threshold, want 1", len(obs))
	}
	if obs[0].Kind != ObservationRepeatedMistake || obs[0].Agent != "rex" || obs[0].Detail != "panic" {
		t.Fatalf("observation = %+v, want RepeatedMistake rex/panic", obs[0])
	}

	// Further occurrences keep counting but don't re-observe.
	c.RecordDetection("rex", "panic", "checkout-impl-7", now)
	if got := len(c.Observations()); got != 1 {
		t.Fatalf("Observations() len = %d after extra occurrence, want 1", got)
	}
}

func TestRecordRetries_FiresOnlyAtThreshold(t *testing.T) {
	c := NewInsightCollector()
	now := time.Now()

	c.RecordRetries("blaze", "checkout-impl-7", excessiveRetryThreshold-1, now)
	c.RecordRetries("blaze", "checkout-impl-7", excessiveRetryThreshold+1, now)
	if got := len(c.Observations()); got != 0 {
		t.Fatalf("Observations() len = %d, want 0 (only the exact threshold fires)", got)
	}

	c.RecordRetries("blaze", "checkout-impl-7", excessiveRetryThreshold, now)
	obs := c.Observations()
	if len(obs) != 1 || obs[0].Kind != ObservationExcessiveRetries || obs[0].Count != excessiveRetryThreshold {
		t.Fatalf("Observations() = %+v, want one ExcessiveRetries with Count=%d", obs, excessiveRetryThreshold)
	}
}

func TestRecordRunCompleted_CleanFastRun(t *testing.T) {
	c := NewInsightCollector()
	now := time.Now()

	c.RecordRunCompleted("rex", "checkout-impl-7", true, 5*time.Minute, now)

	obs := c.Observations()
	if len(obs) != 2 {
		t.Fatalf("Observations() len = %d, want 2 (SuccessPattern + FastCompletion)", len(obs))
	}
	if obs[0].Kind != ObservationSuccessPattern {
		t.Fatalf("obs[0].Kind = %s, want SuccessPattern", obs[0].Kind)
	}
	if obs[1].Kind != ObservationFastCompletion || obs[1].DurationMinutes != 5 {
		t.Fatalf("obs[1] = %+v, want FastCompletion at 5 minutes", obs[1])
	}
}

func TestRecordRunCompleted_DirtyRunOnlyCountsStats(t *testing.T) {
	c := NewInsightCollector()
	now := time.Now()

	c.RecordRunCompleted("rex", "checkout-impl-7", false, 5*time.Minute, now)
	if got := len(c.Observations()); got != 0 {
		t.Fatalf("Observations() len = %d for dirty run, want 0", got)
	}

	stats := c.Stats()
	if len(stats) != 1 || stats[0].RunsAnalyzed != 1 || stats[0].SuccessRate != 0 {
		t.Fatalf("Stats() = %+v, want one rex entry with 1 run and 0 success rate", stats)
	}
}

func TestSuggestions_ConfidenceTracksOccurrences(t *testing.T) {
	c := NewInsightCollector()
	now := time.Now()

	for i := 0; i < 5; i++ {
		c.RecordDetection("rex", "panic", "play-a", now)
	}
	for i := 0; i < 3; i++ {
		c.RecordDetection("rex", "timeout", "play-a", now)
	}
	c.RecordDetection("rex", "once", "play-a", now)

	suggestions := c.Suggestions()
	if len(suggestions) != 2 {
		t.Fatalf("Suggestions() len = %d, want 2 (single occurrence excluded)", len(suggestions))
	}
	if suggestions[0].Confidence != ConfidenceHigh || suggestions[0].Occurrences != 5 {
		t.Fatalf("suggestions[0] = %+v, want High/5 first", suggestions[0])
	}
	if suggestions[1].Confidence != ConfidenceMedium {
		t.Fatalf("suggestions[1].Confidence = %s, want Medium", suggestions[1].Confidence)
	}
}

func TestStats_TopIssuesOrderedByOccurrence(t *testing.T) {
	c := NewInsightCollector()
	now := time.Now()

	c.RecordRunCompleted("rex", "play-a", false, time.Minute, now)
	for i := 0; i < 4; i++ {
		c.RecordDetection("rex", "panic", "play-a", now)
	}
	for i := 0; i < 2; i++ {
		c.RecordDetection("rex", "oom", "play-a", now)
	}

	stats := c.Stats()
	if len(stats) != 1 {
		t.Fatalf("Stats() len = %d, want 1", len(stats))
	}
	want := []string{"panic", "oom"}
	got := stats[0].TopIssues
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("TopIssues = %v, want %v", got, want)
	}
}
