// Copyright Contributors to the KubeOpenCode project

// Package naming is the single source of truth for every Job and derived
// Service name the resource manager creates, plus the label sanitizer
// shared by every managed object. Naming cannot fail: malformed inputs
// yield "unknown"/"default" literals so the result stays a legal
// Kubernetes name.
package naming

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const maxNameLength = 63

// Input is everything the naming component needs to derive a Job name. It
// is deliberately a plain struct rather than *v1alpha1.RunRequest so the
// package has no dependency on the API types and can be tested in
// isolation without a cluster or CRD fixtures.
type Input struct {
	// RunType selects the naming pattern: implementation, watch, review,
	// remediate, or docs.
	RunType string

	// TaskID is the originating task number, nil when absent.
	TaskID *int32

	// PRLabel is the value of the "pr-number" label, empty if unset.
	PRLabel string

	// PREnv is the value of the PR_NUMBER environment variable, empty if
	// unset.
	PREnv string

	// GithubApp is the GitHub App identity (e.g. "5DLabs-Rex"), empty if
	// this run is user-authenticated.
	GithubApp string

	// Model is the opaque model identifier, used only by review/remediate
	// patterns.
	Model string

	// CliKind is the target CLI adapter kind (e.g. "claude", "codex"),
	// read from RunRequest.cli_config["cli"]. Empty is legal; it becomes
	// "unknown" and is the first thing dropped under truncation.
	CliKind string

	// WatchRole distinguishes the two watch-type patterns: "monitor" or
	// "heal". Any other value defaults to "monitor".
	WatchRole string

	// UID is the RunRequest's Kubernetes UID. Empty yields "unknown".
	UID string

	// Version is the RunRequest's context_version.
	Version uint32
}

// segment is one hyphen-joined component of a candidate name. Droppable
// segments are removed first when the assembled name exceeds 63 characters.
type segment struct {
	token     string
	droppable bool
}

// JobName derives the deterministic Job name for a RunRequest, unique per
// (RunRequest UID, context_version, run_type).
func JobName(in Input) string {
	switch in.RunType {
	case "implementation":
		return assemble(implementationSegments(in))
	case "watch":
		return assemble(watchSegments(in))
	case "review":
		return assemble(reviewOrRemediateSegments("review", in))
	case "remediate":
		return assemble(reviewOrRemediateSegments("remediate", in))
	case "docs":
		return assemble(docsSegments(in))
	default:
		return assemble(docsSegments(in))
	}
}

// ServiceName derives the headless input-bridge Service name for a Job.
// It appends "-bridge" when that still fits under the label-length limit;
// otherwise it falls back to a name built from a deterministic hash of the
// Job name, so two reconciles of the same RunRequest always agree.
func ServiceName(in Input, jobName string) string {
	candidate := jobName + "-bridge"
	if len(candidate) <= maxNameLength {
		return candidate
	}
	fallback := fmt.Sprintf("play-coderun-bridge-t%s-%s", taskToken(in.TaskID), hash8(jobName))
	return truncate(fallback)
}

func implementationSegments(in Input) []segment {
	segs := []segment{{"play", false}, {"coderun", false}}
	if pr := extractPR(in.PRLabel, in.PREnv); pr != "" {
		segs = append(segs, segment{"pr" + pr, false})
	}
	segs = append(segs,
		segment{"t" + taskToken(in.TaskID), false},
		segment{agentToken(in.GithubApp), false},
		segment{cliToken(in.CliKind), true},
		segment{uid8(in.UID), false},
		segment{"v" + versionToken(in.Version), false},
	)
	return segs
}

func watchSegments(in Input) []segment {
	prefix := "monitor"
	if in.WatchRole == "heal" {
		prefix = "remediation"
	}
	return []segment{
		{prefix, false},
		{"t" + taskToken(in.TaskID), false},
		{agentToken(in.GithubApp), false},
		{uid8(in.UID), false},
		{"v" + versionToken(in.Version), false},
	}
}

func reviewOrRemediateSegments(prefix string, in Input) []segment {
	segs := []segment{{prefix, false}}
	if pr := extractPR(in.PRLabel, in.PREnv); pr != "" {
		segs = append(segs, segment{"pr" + pr, false})
	}
	segs = append(segs,
		segment{agentToken(in.GithubApp), false},
		segment{modelShort(in.Model), false},
		segment{uid8(in.UID), false},
		segment{"v" + versionToken(in.Version), false},
	)
	return segs
}

// docsSegments covers run_type=docs, which the naming table omits. Docs
// runs carry no PR and no CLI token, mirroring the watch/review shape
// minus the fields that don't apply to a documentation pass.
func docsSegments(in Input) []segment {
	return []segment{
		{"docs", false},
		{"t" + taskToken(in.TaskID), false},
		{agentToken(in.GithubApp), false},
		{uid8(in.UID), false},
		{"v" + versionToken(in.Version), false},
	}
}

func assemble(segs []segment) string {
	full := join(segs, false)
	if len(full) <= maxNameLength {
		return full
	}
	withoutDroppable := join(segs, true)
	if len(withoutDroppable) <= maxNameLength {
		return withoutDroppable
	}
	return truncate(withoutDroppable)
}

func join(segs []segment, dropDroppable bool) string {
	toks := make([]string, 0, len(segs))
	for _, s := range segs {
		if dropDroppable && s.droppable {
			continue
		}
		toks = append(toks, s.token)
	}
	return strings.Join(toks, "-")
}

// truncate applies the final fallback: prefix-retaining character
// truncation to maxNameLength, with any trailing hyphen trimmed.
func truncate(s string) string {
	if len(s) > maxNameLength {
		s = s[:maxNameLength]
	}
	return strings.TrimRight(s, "-")
}

// extractPR resolves the PR number component: the "pr-number" label takes
// precedence over PR_NUMBER; an empty or "0" env value yields no component.
func extractPR(label, env string) string {
	if digits := digitsOnly(label); digits != "" {
		return digits
	}
	if env != "" && env != "0" {
		if digits := digitsOnly(env); digits != "" {
			return digits
		}
	}
	return ""
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func taskToken(taskID *int32) string {
	if taskID == nil {
		return "unknown"
	}
	return strconv.Itoa(int(*taskID))
}

func versionToken(version uint32) string {
	if version == 0 {
		version = 1
	}
	return strconv.FormatUint(uint64(version), 10)
}

// agentToken returns the final hyphen-separated component of githubApp,
// lowercased. An empty or malformed githubApp yields "unknown".
func agentToken(githubApp string) string {
	if githubApp == "" {
		return "unknown"
	}
	parts := strings.Split(githubApp, "-")
	return sanitizeTokenOr(parts[len(parts)-1], "unknown")
}

func cliToken(cliKind string) string {
	return sanitizeTokenOr(cliKind, "unknown")
}

// modelShort maps a model identifier to a short token used in review and
// remediate names, falling back to the first 8 lowercased alphanumerics.
func modelShort(model string) string {
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "opus") && (strings.Contains(m, "4-5") || strings.Contains(m, "4.5")):
		return "opus45"
	case strings.Contains(m, "3-5-sonnet") || strings.Contains(m, "3.5-sonnet"):
		return "sonnet35"
	case strings.Contains(m, "sonnet") && strings.Contains(m, "-4-"):
		return "sonnet4"
	case strings.Contains(m, "haiku"):
		return "haiku"
	case strings.Contains(m, "gpt-4") || strings.Contains(m, "gpt4"):
		return "gpt4"
	case strings.Contains(m, "gemini") && strings.Contains(m, "pro"):
		return "gempro"
	case strings.Contains(m, "gemini"):
		return "gemini"
	default:
		return firstAlnum8(m)
	}
}

func firstAlnum8(s string) string {
	var b strings.Builder
	for _, r := range s {
		if b.Len() == 8 {
			break
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}

// uid8 returns the first 8 characters of a RunRequest UID, or "unknown"
// when the UID is empty.
func uid8(uid string) string {
	if uid == "" {
		return "unknown"
	}
	uid = strings.ToLower(uid)
	if len(uid) > 8 {
		return uid[:8]
	}
	return uid
}

// hash8 returns the first 8 lowercase hex characters of a deterministic
// UUIDv5 computed over s, used for the Service name's truncation fallback.
func hash8(s string) string {
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(s))
	hex := strings.ReplaceAll(id.String(), "-", "")
	return hex[:8]
}

// sanitizeTokenOr lowercases s, replaces every non [a-z0-9] rune with a
// hyphen, collapses repeats, and trims leading/trailing hyphens. Returns
// fallback if nothing alphanumeric survives.
func sanitizeTokenOr(s, fallback string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	prevDash := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			prevDash = false
			continue
		}
		if !prevDash {
			b.WriteRune('-')
			prevDash = true
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return fallback
	}
	return out
}

// SanitizeName lowercases s, replaces every run of non [a-z0-9] characters
// with a single hyphen, and trims leading/trailing hyphens — the
// `[a-z0-9-]`-only, hyphens-only convention ConfigMap and PVC names use
// (stricter than SanitizeLabel, which still allows dots). Returns "default" if nothing alphanumeric survives.
func SanitizeName(s string) string {
	return sanitizeTokenOr(s, "default")
}

// Truncate63 clamps s to maxNameLength characters, trimming any trailing
// hyphen left by the cut. Used by every deterministic name the resource
// manager derives beyond Job/Service names (ConfigMaps, PVCs).
func Truncate63(s string) string {
	return truncate(s)
}

// PlayID derives the play-monitor grouping key from a run name: its first
// three hyphen-separated components. Run names shorter than three
// components return themselves unchanged, since every prefix they do have
// is still the most specific grouping available.
func PlayID(runName string) string {
	parts := strings.Split(runName, "-")
	if len(parts) <= 3 {
		return runName
	}
	return strings.Join(parts[:3], "-")
}

// SanitizeLabel implements the label sanitizer shared by every
// managed object: lowercase, spaces and underscores become hyphens,
// anything outside [A-Za-z0-9._-] is dropped, the result is trimmed to
// start/end on an alphanumeric, and clamped to 63 characters.
func SanitizeLabel(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "_", "-")

	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	out := b.String()

	isAlnum := func(r byte) bool {
		return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
	}
	start := 0
	for start < len(out) && !isAlnum(out[start]) {
		start++
	}
	end := len(out)
	for end > start && !isAlnum(out[end-1]) {
		end--
	}
	out = out[start:end]

	if len(out) > maxNameLength {
		out = out[:maxNameLength]
		for len(out) > 0 && !isAlnum(out[len(out)-1]) {
			out = out[:len(out)-1]
		}
	}
	return out
}
