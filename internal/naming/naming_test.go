// Copyright Contributors to the KubeOpenCode project

package naming

import (
	"strconv"
	"strings"
	"testing"
)

func int32ptr(v int32) *int32 { return &v }

func isLegalName(s string) bool {
	if len(s) == 0 || len(s) > 63 {
		return false
	}
	for _, r := range s {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-') {
			return false
		}
	}
	return true
}

func TestJobName_Implementation(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want string
	}{
		{
			name: "implementation with pr label",
			in: Input{
				RunType:   "implementation",
				TaskID:    int32ptr(42),
				PRLabel:   "1627",
				GithubApp: "5DLabs-Rex",
				Model:     "sonnet",
				UID:       "1234567890abcdef",
				Version:   1,
			},
			want: "play-coderun-pr1627-t42-rex-unknown-12345678-v1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := JobName(tt.in)
			if got != tt.want {
				t.Fatalf("JobName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestJobName_ReviewPrefix(t *testing.T) {
	in := Input{
		RunType:   "review",
		TaskID:    int32ptr(42),
		PRLabel:   "1627",
		GithubApp: "5DLabs-Stitch",
		Model:     "claude-opus-4-5-20251101",
		UID:       "1234567890abcdef",
		Version:   1,
	}
	got := JobName(in)
	want := "review-pr1627-stitch-opus45-"
	if !strings.HasPrefix(got, want) {
		t.Fatalf("JobName() = %q, want prefix %q", got, want)
	}
}

func TestJobName_LengthAndCharset(t *testing.T) {
	longApp := "5DLabs-" + strings.Repeat("x", 80)
	tests := []struct {
		name string
		in   Input
	}{
		{"implementation long app", Input{RunType: "implementation", TaskID: int32ptr(999999), GithubApp: longApp, UID: "abcdefabcdefabcd", Version: 7, CliKind: "opencode"}},
		{"watch monitor", Input{RunType: "watch", WatchRole: "monitor", TaskID: int32ptr(1), GithubApp: "5DLabs-Blaze", UID: "feedfacefeedface", Version: 3}},
		{"watch heal", Input{RunType: "watch", WatchRole: "heal", TaskID: int32ptr(1), GithubApp: "5DLabs-Blaze", UID: "feedfacefeedface", Version: 3}},
		{"remediate", Input{RunType: "remediate", GithubApp: "5DLabs-Cipher", Model: "gpt-4", UID: "deadbeefdeadbeef", Version: 2}},
		{"docs", Input{RunType: "docs", TaskID: int32ptr(5), GithubApp: "5DLabs-Atlas", UID: "0000000000000000", Version: 1}},
		{"no uid no app", Input{RunType: "implementation"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := JobName(tt.in)
			if !isLegalName(got) {
				t.Fatalf("JobName() = %q is not a legal <=63 char [a-z0-9-] name", got)
			}
		})
	}
}

func TestJobName_Determinism(t *testing.T) {
	in := Input{RunType: "implementation", TaskID: int32ptr(7), GithubApp: "5DLabs-Rex", UID: "1234567890abcdef", Version: 2}
	a := JobName(in)
	b := JobName(in)
	if a != b {
		t.Fatalf("JobName() not deterministic: %q != %q", a, b)
	}
}

func TestExtractPR(t *testing.T) {
	tests := []struct {
		name  string
		label string
		env   string
		want  string
	}{
		{"label wins", "1627", "1650", "1627"},
		{"env only", "", "1650", "1650"},
		{"env empty", "", "", ""},
		{"env zero", "", "0", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractPR(tt.label, tt.env)
			if got != tt.want {
				t.Fatalf("extractPR(%q, %q) = %q, want %q", tt.label, tt.env, got, tt.want)
			}
		})
	}
}

func TestModelShort(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"claude-opus-4-5-20251101", "opus45"},
		{"claude-3-5-sonnet-20241022", "sonnet35"},
		{"claude-sonnet-4-20250514", "sonnet4"},
		{"gemini-pro", "gempro"},
		{"haiku", "haiku"},
		{"gpt-4", "gpt4"},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			got := modelShort(tt.model)
			if got != tt.want {
				t.Fatalf("modelShort(%q) = %q, want %q", tt.model, got, tt.want)
			}
		})
	}
}

func TestServiceName(t *testing.T) {
	shortJob := "play-coderun-pr1-t1-rex-unknown-abcd1234-v1"
	in := Input{RunType: "implementation", TaskID: int32ptr(1)}
	got := ServiceName(in, shortJob)
	if got != shortJob+"-bridge" {
		t.Fatalf("ServiceName() = %q, want %q", got, shortJob+"-bridge")
	}
	if !isLegalName(got) {
		t.Fatalf("ServiceName() = %q is not a legal name", got)
	}
}

func TestServiceName_FallbackOnOverflow(t *testing.T) {
	longJob := "play-coderun-" + strings.Repeat("a", 60)
	in := Input{RunType: "implementation", TaskID: int32ptr(9)}
	got := ServiceName(in, longJob)
	if !isLegalName(got) {
		t.Fatalf("ServiceName() = %q is not a legal name", got)
	}
	if !strings.HasPrefix(got, "play-coderun-bridge-t9-") {
		t.Fatalf("ServiceName() = %q, want prefix play-coderun-bridge-t9-", got)
	}
	again := ServiceName(in, longJob)
	if again != got {
		t.Fatalf("ServiceName() not deterministic: %q != %q", again, got)
	}
}

func TestSanitizeLabel(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"spaces and underscores", "My Project_Name", "my-project-name"},
		{"strips disallowed", "repo@github.com/org/repo!", "repogithub.comorgrepo"},
		{"trims non-alnum edges", "-abc-", "abc"},
		{"clamps to 63", strings.Repeat("a", 100), strings.Repeat("a", 63)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeLabel(tt.in)
			if got != tt.want {
				t.Fatalf("SanitizeLabel(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if len(got) > 63 {
				t.Fatalf("SanitizeLabel(%q) exceeds 63 chars", tt.in)
			}
		})
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"dots become hyphen", "repo.example.com", "repo-example-com"},
		{"empty falls back", "", "default"},
		{"mixed case and slashes", "Docs/Working_Dir", "docs-working-dir"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeName(tt.in)
			if got != tt.want {
				t.Fatalf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTruncate63(t *testing.T) {
	long := strings.Repeat("a", 70)
	got := Truncate63(long)
	if len(got) != 63 {
		t.Fatalf("Truncate63() len = %d, want 63", len(got))
	}
}

func TestVersionToken(t *testing.T) {
	if got := versionToken(0); got != "1" {
		t.Fatalf("versionToken(0) = %q, want %q", got, "1")
	}
	if got := versionToken(5); got != strconv.Itoa(5) {
		t.Fatalf("versionToken(5) = %q, want %q", got, "5")
	}
}

func TestPlayID(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"checkout-impl-7-a1b2c3d4-v1", "checkout-impl-7"},
		{"checkout-impl-7", "checkout-impl-7"},
		{"checkout-impl", "checkout-impl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PlayID(tt.name); got != tt.want {
				t.Fatalf("PlayID(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}
