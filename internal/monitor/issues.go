// Copyright Contributors to the KubeOpenCode project

package monitor

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-github/v66/github"

	"github.com/5dlabs/agentctl/internal/behavior"
)

// IssueCreator opens a GitHub issue summarizing a detected anomaly.
// Production wiring is GitHubIssueCreator; tests supply a stub.
type IssueCreator interface {
	CreateIssue(ctx context.Context, owner, repo string, req IssueRequest) (url string, err error)
}

// IssueRequest carries the fields every anomaly issue reports:
// the run name, severity, a log excerpt, and the agent kind that produced
// it.
type IssueRequest struct {
	RunName  string
	Severity behavior.Severity
	Excerpt  string
	Agent    string
}

// GitHubIssueCreator creates issues through the GitHub REST API.
type GitHubIssueCreator struct {
	Client *github.Client
}

// NewGitHubIssueCreator wraps an authenticated *github.Client.
func NewGitHubIssueCreator(client *github.Client) *GitHubIssueCreator {
	return &GitHubIssueCreator{Client: client}
}

// CreateIssue opens a new GitHub issue titled after the run and severity,
// with the log excerpt and agent kind in the body.
func (g *GitHubIssueCreator) CreateIssue(ctx context.Context, owner, repo string, req IssueRequest) (string, error) {
	title := fmt.Sprintf("[%s] anomaly detected in %s", req.Severity, req.RunName)
	body := fmt.Sprintf("**Run:** %s\n**Agent:** %s\n**Severity:** %s\n\n```\n%s\n```",
		req.RunName, req.Agent, req.Severity, req.Excerpt)

	issue, _, err := g.Client.Issues.Create(ctx, owner, repo, &github.IssueRequest{
		Title: github.String(title),
		Body:  github.String(body),
	})
	if err != nil {
		return "", err
	}
	return issue.GetHTMLURL(), nil
}

// Fingerprint computes the anomaly dedup key:
// "run_name:matched_pattern:first50(line)".
func Fingerprint(runName, matchedPattern, line string) string {
	excerpt := line
	if len(excerpt) > 50 {
		excerpt = excerpt[:50]
	}
	return strings.Join([]string{runName, matchedPattern, excerpt}, ":")
}
