// Copyright Contributors to the KubeOpenCode project

// Package classifier assigns a closed-taxonomy failure type to a CI event
// (a failed workflow job, check run, or security alert) so the remediation
// coordinator can route it to a specialist agent.
package classifier

import (
	"strings"
	"time"
)

// FailureType is a member of the closed CI-failure taxonomy. Unlike most
// string enums in this module it has no CRD-level validation: it is
// produced at runtime from free-form GitHub payloads, so Classify always
// returns a valid member rather than letting an unrecognized signal surface
// as an error.
type FailureType string

const (
	RustClippy         FailureType = "RustClippy"
	RustTest           FailureType = "RustTest"
	RustBuild          FailureType = "RustBuild"
	RustDeps           FailureType = "RustDeps"
	FrontendDeps       FailureType = "FrontendDeps"
	FrontendTypeScript FailureType = "FrontendTypeScript"
	FrontendLint       FailureType = "FrontendLint"
	FrontendTest       FailureType = "FrontendTest"
	FrontendBuild      FailureType = "FrontendBuild"
	DockerBuild        FailureType = "DockerBuild"
	HelmTemplate       FailureType = "HelmTemplate"
	K8sManifest        FailureType = "K8sManifest"
	ArgoCdSync         FailureType = "ArgoCdSync"
	YamlSyntax         FailureType = "YamlSyntax"
	SecurityDependabot FailureType = "SecurityDependabot"
	SecurityCodeScan   FailureType = "SecurityCodeScan"
	SecuritySecret     FailureType = "SecuritySecret"
	GitMergeConflict   FailureType = "GitMergeConflict"
	GithubWorkflow     FailureType = "GithubWorkflow"
	GitPermission      FailureType = "GitPermission"
	// General is returned when nothing else matches. A classifier miss is
	// never fatal; remediation routes General failures to the fallback
	// specialist.
	General FailureType = "General"
)

// family groups the taxonomy members that changed-file analysis can
// distinguish by extension or path alone, before job-name/log tokens narrow
// the pick to a single FailureType.
type family string

const (
	familyRust       family = "rust"
	familyFrontend   family = "frontend"
	familyInfra      family = "infra"
	familySecurity   family = "security"
	familyGit        family = "git"
	familyUnresolved family = ""
)

// SecurityAlertKind identifies which GitHub security surface raised an
// alert, set by the caller from the webhook's event type rather than
// inferred here.
type SecurityAlertKind string

const (
	SecurityAlertDependabot SecurityAlertKind = "dependabot_alert"
	SecurityAlertCodeScan   SecurityAlertKind = "code_scanning_alert"
	SecurityAlertSecretScan SecurityAlertKind = "secret_scanning_alert"
	SecurityAlertNone       SecurityAlertKind = ""
)

// Event is the normalized input Classify consumes. Callers (the CI webhook
// receiver) are responsible for extracting these fields from the raw
// GitHub payload; Classify itself never touches JSON.
type Event struct {
	WorkflowRunID int64
	WorkflowName  string
	JobName       string
	Branch        string
	HeadSHA       string
	CommitMessage string
	Repository    string
	Sender        string
	LogExcerpt    string
	ChangedFiles  []string
	SecurityAlert SecurityAlertKind
	RawPayload    map[string]any
}

// CiFailure is the durable summary of a classified event, independent of
// the FailureType assigned to it. It is what gets attached to a
// remediation AttemptState and logged for operators.
type CiFailure struct {
	WorkflowRunID int64
	WorkflowName  string
	JobName       string
	Branch        string
	HeadSHA       string
	CommitMessage string
	Repository    string
	Sender        string
	DetectedAt    time.Time
	RawPayload    map[string]any
}

// Classify assigns a FailureType to ev and builds its CiFailure summary.
// now is injected rather than read from time.Now so callers control
// DetectedAt deterministically in tests.
//
// Precedence: a security alert is classified directly from its kind,
// regardless of changed files or job name. Otherwise, changed-file
// analysis takes precedence over job-name/log-excerpt token heuristics
// when ev.ChangedFiles is non-empty; job-name/log tokens are the fallback
// when it is empty or matches no known family. A miss at every stage
// returns General rather than an error.
func Classify(ev Event, now time.Time) (FailureType, CiFailure) {
	failure := CiFailure{
		WorkflowRunID: ev.WorkflowRunID,
		WorkflowName:  ev.WorkflowName,
		JobName:       ev.JobName,
		Branch:        ev.Branch,
		HeadSHA:       ev.HeadSHA,
		CommitMessage: ev.CommitMessage,
		Repository:    ev.Repository,
		Sender:        ev.Sender,
		DetectedAt:    now,
		RawPayload:    ev.RawPayload,
	}

	if ft, ok := classifySecurityAlert(ev.SecurityAlert); ok {
		return ft, failure
	}

	haystack := strings.ToLower(ev.JobName + " " + ev.LogExcerpt + " " + ev.CommitMessage)

	if fam, direct := familyFromChangedFiles(ev.ChangedFiles); fam != familyUnresolved {
		if direct != "" {
			return direct, failure
		}
		return narrowFamily(fam, haystack), failure
	}

	if fam := familyFromTokens(haystack); fam != familyUnresolved {
		return narrowFamily(fam, haystack), failure
	}

	return General, failure
}

func classifySecurityAlert(kind SecurityAlertKind) (FailureType, bool) {
	switch kind {
	case SecurityAlertDependabot:
		return SecurityDependabot, true
	case SecurityAlertCodeScan:
		return SecurityCodeScan, true
	case SecurityAlertSecretScan:
		return SecuritySecret, true
	default:
		return "", false
	}
}

// rustFiles, frontendFiles and infraFiles list the suffixes/exact names
// that mark a changed file as belonging to that family. infraPathPrefixes
// and infraSuffixes cover path-prefix and filename-pattern rules that
// don't reduce to a plain suffix check.
var (
	rustFiles      = []string{".rs", "Cargo.toml", "Cargo.lock"}
	frontendFiles  = []string{".ts", ".tsx", ".js", ".jsx", ".css", ".scss", "package.json", "pnpm-lock.yaml"}
	infraSuffixes  = []string{".yaml", ".yml"}
	infraBasenames = []string{"Chart.yaml"}
)

// familyFromChangedFiles inspects a changeset and returns the family it
// belongs to, plus a direct FailureType when the file pattern alone is
// specific enough to skip job-name/log-excerpt narrowing entirely (e.g. a
// changed Dockerfile always means DockerBuild, regardless of what the job
// is named). direct is empty when the family needs narrowFamily's
// token-based pass to pick a specific FailureType (rust, frontend, and
// generic infra yaml all fall in this case).
func familyFromChangedFiles(files []string) (family, FailureType) {
	if len(files) == 0 {
		return familyUnresolved, ""
	}

	var sawRust, sawFrontend, sawInfra bool
	var direct FailureType
	for _, f := range files {
		switch {
		case matchesAny(f, rustFiles):
			sawRust = true
		case matchesAny(f, frontendFiles):
			sawFrontend = true
		default:
			if fam, d := infraFileHint(f); fam != familyUnresolved {
				sawInfra = true
				if d != "" && direct == "" {
					direct = d
				}
			}
		}
	}

	// A changeset can legitimately touch more than one family (e.g. a Rust
	// service plus its Helm chart). Precedence favors the language-specific
	// families over the broader infrastructure catch-all, since a failing
	// build job is more likely attributable to the language change.
	switch {
	case sawRust:
		return familyRust, ""
	case sawFrontend:
		return familyFrontend, ""
	case sawInfra:
		return familyInfra, direct
	default:
		return familyUnresolved, ""
	}
}

// infraFileHint reports whether path belongs to the infrastructure family
// and, when the pattern is unambiguous on its own, the specific
// FailureType it implies.
func infraFileHint(path string) (family, FailureType) {
	if strings.HasPrefix(path, "Dockerfile") || strings.Contains(path, "/Dockerfile") {
		return familyInfra, DockerBuild
	}
	if matchesAny(path, infraBasenames) {
		return familyInfra, HelmTemplate
	}
	if strings.HasPrefix(path, ".github/") || strings.Contains(path, "/.github/") {
		return familyInfra, GithubWorkflow
	}
	if strings.HasPrefix(path, "infra/") || strings.Contains(path, "/infra/") {
		return familyInfra, ""
	}
	if matchesAny(path, infraSuffixes) {
		return familyInfra, ""
	}
	return familyUnresolved, ""
}

func matchesAny(path string, patterns []string) bool {
	base := path
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		base = path[idx+1:]
	}
	for _, p := range patterns {
		if strings.HasPrefix(p, ".") {
			if strings.HasSuffix(path, p) {
				return true
			}
			continue
		}
		if base == p {
			return true
		}
	}
	return false
}

// familyFromTokens is the fallback path when no changed-file list is
// available (or it matched nothing): it scans job-name/log-excerpt text
// for family-indicating tokens.
func familyFromTokens(haystack string) family {
	switch {
	case containsAny(haystack, "cargo", "clippy", "rustc", "rustfmt"):
		return familyRust
	case containsAny(haystack, "npm", "pnpm", "eslint", "jest", "vitest", "tsc", "webpack", "vite"):
		return familyFrontend
	case containsAny(haystack, "docker", "helm", "argocd", "argo-cd", "kubectl", "kustomize"):
		return familyInfra
	case containsAny(haystack, "merge conflict", "conflicting files", "cannot be merged"):
		return familyGit
	case containsAny(haystack, "permission denied", "remote: permission to", "403", "resource not accessible"):
		return familyGit
	default:
		return familyUnresolved
	}
}

func containsAny(haystack string, tokens ...string) bool {
	for _, t := range tokens {
		if strings.Contains(haystack, t) {
			return true
		}
	}
	return false
}

// narrowFamily picks the specific FailureType within fam using job-name/log
// tokens. Each family has a default when no finer token matches, chosen as
// the most common failure mode for that family.
func narrowFamily(fam family, haystack string) FailureType {
	switch fam {
	case familyRust:
		switch {
		case containsAny(haystack, "clippy"):
			return RustClippy
		case containsAny(haystack, "test"):
			return RustTest
		case containsAny(haystack, "audit", "deny", "outdated", "deps"):
			return RustDeps
		default:
			return RustBuild
		}
	case familyFrontend:
		switch {
		case containsAny(haystack, "lint", "eslint"):
			return FrontendLint
		case containsAny(haystack, "typecheck", "type-check", "tsc"):
			return FrontendTypeScript
		case containsAny(haystack, "test", "jest", "vitest"):
			return FrontendTest
		case containsAny(haystack, "install", "pnpm install", "npm ci", "deps"):
			return FrontendDeps
		default:
			return FrontendBuild
		}
	case familyInfra:
		switch {
		case containsAny(haystack, "docker", "image build"):
			return DockerBuild
		case containsAny(haystack, "helm"):
			return HelmTemplate
		case containsAny(haystack, "argocd", "argo-cd", "sync"):
			return ArgoCdSync
		case containsAny(haystack, "yaml", "yamllint"):
			return YamlSyntax
		case containsAny(haystack, "manifest", "kubectl apply"):
			return K8sManifest
		default:
			return GithubWorkflow
		}
	case familyGit:
		switch {
		case containsAny(haystack, "merge conflict", "conflicting files", "cannot be merged"):
			return GitMergeConflict
		case containsAny(haystack, "permission denied", "remote: permission to", "403", "resource not accessible"):
			return GitPermission
		default:
			return GithubWorkflow
		}
	default:
		return General
	}
}
