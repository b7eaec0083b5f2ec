// Copyright Contributors to the KubeOpenCode project

package classifier

import (
	"testing"
	"time"
)

var fixedNow = time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)

func TestClassify_ChangedFileFamilies(t *testing.T) {
	tests := []struct {
		name  string
		files []string
		job   string
		want  FailureType
	}{
		{"rust source file, no job hint", []string{"src/main.rs"}, "build", RustBuild},
		{"cargo manifest, clippy job", []string{"Cargo.toml"}, "clippy", RustClippy},
		{"cargo lock, test job", []string{"Cargo.lock"}, "unit-test", RustTest},
		{"typescript file, lint job", []string{"web/src/App.tsx"}, "eslint", FrontendLint},
		{"package.json, install job", []string{"package.json"}, "pnpm install", FrontendDeps},
		{"css file, no job hint", []string{"web/src/app.css"}, "ci", FrontendBuild},
		{"dockerfile, no job hint", []string{"Dockerfile"}, "ci", DockerBuild},
		{"helm chart, no job hint", []string{"Chart.yaml"}, "ci", HelmTemplate},
		{"github workflow yaml, no job hint", []string{".github/workflows/ci.yaml"}, "ci", GithubWorkflow},
		{"infra terraform-adjacent yaml, sync job", []string{"infra/values.yaml"}, "argocd sync", ArgoCdSync},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := Event{JobName: tt.job, ChangedFiles: tt.files}
			got, failure := Classify(ev, fixedNow)
			if got != tt.want {
				t.Fatalf("Classify() = %q, want %q", got, tt.want)
			}
			if !failure.DetectedAt.Equal(fixedNow) {
				t.Fatalf("CiFailure.DetectedAt = %v, want %v", failure.DetectedAt, fixedNow)
			}
		})
	}
}

func TestClassify_ChangedFilesPrecedeJobNameTokens(t *testing.T) {
	// Job name suggests a frontend lint failure, but the changed files are
	// all Rust sources: changed-file analysis must win.
	ev := Event{
		JobName:      "eslint",
		ChangedFiles: []string{"src/lib.rs"},
	}
	got, _ := Classify(ev, fixedNow)
	if got != RustBuild {
		t.Fatalf("Classify() = %q, want %q (changed files should take precedence over job-name tokens)", got, RustBuild)
	}
}

func TestClassify_FallsBackToJobNameTokensWhenNoChangedFiles(t *testing.T) {
	ev := Event{JobName: "cargo clippy", LogExcerpt: "error: this lint is allowed"}
	got, _ := Classify(ev, fixedNow)
	if got != RustClippy {
		t.Fatalf("Classify() = %q, want %q", got, RustClippy)
	}
}

func TestClassify_FallsBackToJobNameTokensWhenChangedFilesMatchNothing(t *testing.T) {
	ev := Event{
		JobName:      "pnpm test",
		ChangedFiles: []string{"README.md"},
	}
	got, _ := Classify(ev, fixedNow)
	if got != FrontendTest {
		t.Fatalf("Classify() = %q, want %q", got, FrontendTest)
	}
}

func TestClassify_UnmatchedEventIsGeneral(t *testing.T) {
	ev := Event{JobName: "unrelated-job", LogExcerpt: "something went wrong"}
	got, _ := Classify(ev, fixedNow)
	if got != General {
		t.Fatalf("Classify() = %q, want %q", got, General)
	}
}

func TestClassify_SecurityAlertShortCircuits(t *testing.T) {
	tests := []struct {
		kind SecurityAlertKind
		want FailureType
	}{
		{SecurityAlertDependabot, SecurityDependabot},
		{SecurityAlertCodeScan, SecurityCodeScan},
		{SecurityAlertSecretScan, SecuritySecret},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			// Changed files and job name both point at Rust; the security
			// alert must still win.
			ev := Event{
				SecurityAlert: tt.kind,
				JobName:       "cargo clippy",
				ChangedFiles:  []string{"src/main.rs"},
			}
			got, _ := Classify(ev, fixedNow)
			if got != tt.want {
				t.Fatalf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassify_GitFamilyFromTokensOnly(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want FailureType
	}{
		{"merge conflict", Event{LogExcerpt: "CONFLICT (content): Merge conflict in src/main.rs"}, GitMergeConflict},
		{"permission denied", Event{LogExcerpt: "remote: Permission to acme/repo.git denied"}, GitPermission},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := Classify(tt.ev, fixedNow)
			if got != tt.want {
				t.Fatalf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassify_PopulatesCiFailureFromEvent(t *testing.T) {
	jobName := "cargo test"
	ev := Event{
		WorkflowRunID: 42,
		WorkflowName:  "CI",
		JobName:       jobName,
		Branch:        "main",
		HeadSHA:       "abc123",
		CommitMessage: "fix: handle nil pointer",
		Repository:    "acme/checkout",
		Sender:        "octocat",
		RawPayload:    map[string]any{"action": "completed"},
	}
	_, failure := Classify(ev, fixedNow)

	if failure.WorkflowRunID != 42 || failure.WorkflowName != "CI" || failure.JobName != jobName {
		t.Fatalf("CiFailure = %+v, missing workflow identifiers", failure)
	}
	if failure.Branch != "main" || failure.HeadSHA != "abc123" || failure.Repository != "acme/checkout" {
		t.Fatalf("CiFailure = %+v, missing commit identifiers", failure)
	}
	if failure.RawPayload["action"] != "completed" {
		t.Fatalf("CiFailure.RawPayload = %+v, want action=completed preserved", failure.RawPayload)
	}
}
