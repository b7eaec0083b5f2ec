// Copyright Contributors to the KubeOpenCode project

// Package remediation implements the remediation coordinator: it
// routes classified CI failures to a fixed set of specialist agents,
// drives each attempt through a RunRequest of run_type=remediate, and
// applies the retry/escalation policy across repeated failures.
package remediation

import (
	"github.com/5dlabs/agentctl/internal/classifier"
)

// Specialist is one of the five fixed remediation identities. Each one
// carries a stable GitHub App identity, a default model, and the name of
// the prompt template its RunRequest's cli_config should select.
type Specialist struct {
	Name           string
	GithubApp      string
	DefaultModel   string
	PromptTemplate string
}

var (
	Rex = Specialist{
		Name:           "Rex",
		GithubApp:      "5DLabs-Rex",
		DefaultModel:   "claude-sonnet-4-20250514",
		PromptTemplate: "remediate-rust",
	}
	Blaze = Specialist{
		Name:           "Blaze",
		GithubApp:      "5DLabs-Blaze",
		DefaultModel:   "claude-sonnet-4-20250514",
		PromptTemplate: "remediate-frontend",
	}
	Bolt = Specialist{
		Name:           "Bolt",
		GithubApp:      "5DLabs-Bolt",
		DefaultModel:   "claude-sonnet-4-20250514",
		PromptTemplate: "remediate-infra",
	}
	Cipher = Specialist{
		Name:           "Cipher",
		GithubApp:      "5DLabs-Cipher",
		DefaultModel:   "claude-sonnet-4-20250514",
		PromptTemplate: "remediate-security",
	}
	Atlas = Specialist{
		Name:           "Atlas",
		GithubApp:      "5DLabs-Atlas",
		DefaultModel:   "claude-sonnet-4-20250514",
		PromptTemplate: "remediate-fallback",
	}
)

// Specialists is the fixed closed roster, in routing-priority
// order (not that order matters for Route, but it is the canonical list
// the validate-config command in cmd/controller walks to sanity-check
// configuration).
var Specialists = []Specialist{Rex, Blaze, Bolt, Cipher, Atlas}

// familyRoutes maps each non-security FailureType to the specialist that
// owns it. Security types are handled separately in Route since they
// short-circuit regardless of this table.
var familyRoutes = map[classifier.FailureType]Specialist{
	classifier.RustClippy: Rex,
	classifier.RustTest:   Rex,
	classifier.RustBuild:  Rex,
	classifier.RustDeps:   Rex,

	classifier.FrontendDeps:       Blaze,
	classifier.FrontendTypeScript: Blaze,
	classifier.FrontendLint:       Blaze,
	classifier.FrontendTest:       Blaze,
	classifier.FrontendBuild:      Blaze,

	classifier.DockerBuild:  Bolt,
	classifier.HelmTemplate: Bolt,
	classifier.K8sManifest:  Bolt,
	classifier.ArgoCdSync:   Bolt,
	classifier.YamlSyntax:   Bolt,

	classifier.GitMergeConflict: Atlas,
	classifier.GithubWorkflow:   Atlas,
	classifier.GitPermission:    Atlas,
}

// securityTypes short-circuit to Cipher regardless of changed files,
// even though classifier.Classify already resolves them directly
// from the alert kind rather than file/job heuristics.
var securityTypes = map[classifier.FailureType]bool{
	classifier.SecurityDependabot: true,
	classifier.SecurityCodeScan:   true,
	classifier.SecuritySecret:     true,
}

// Route picks the specialist for a classified failure type. Security
// types always go to Cipher; General and anything this table doesn't
// recognize fall back to Atlas, the designated fallback agent.
func Route(failureType classifier.FailureType) Specialist {
	if securityTypes[failureType] {
		return Cipher
	}
	if s, ok := familyRoutes[failureType]; ok {
		return s
	}
	return Atlas
}

// nextAgent applies the same-agent tie-break: if routed would make this the
// third consecutive attempt by the same agent, switch to Atlas instead.
func nextAgent(routed Specialist, attempts []AttemptRecord) Specialist {
	n := len(attempts)
	if n >= 2 && attempts[n-1].Agent == routed.Name && attempts[n-2].Agent == routed.Name {
		return Atlas
	}
	return routed
}
