// Copyright Contributors to the KubeOpenCode project

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/go-github/v66/github"
	"github.com/spf13/cobra"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/5dlabs/agentctl/internal/classifier"
	"github.com/5dlabs/agentctl/internal/remediation"
)

func init() {
	rootCmd.AddCommand(healerCmd)
	healerCmd.Flags().StringVar(&healerNamespace, "namespace", "default",
		"Namespace remediation RunRequests are created in.")
	healerCmd.Flags().StringVar(&healerIssueRepository, "issue-repository", "",
		"owner/repo escalation issues are filed against. Empty disables escalation issues.")
	healerCmd.Flags().IntVar(&healerMaxAttempts, "max-attempts", 3,
		"Maximum specialist attempts per failure before escalating.")
}

var (
	healerNamespace       string
	healerIssueRepository string
	healerMaxAttempts     int
)

var healerCmd = &cobra.Command{
	Use:   "healer",
	Short: "Run the Remediation coordinator standalone, outside the manager",
	Long: `healer runs the Remediation coordinator as a standalone process
for local development: it watches stdin for newline-delimited classified
failure JSON (the shape internal/classifier.Classify produces) and drives
specialist attempts exactly as the manager's in-process coordinator would.

This is a development aid, not the production deployment path: in
production the coordinator is driven by the manager's webhook receiver,
not by a human piping JSON at a terminal.

Example:
  agentctl healer --namespace agentctl --issue-repository acme/checkout`,
	RunE: runHealer,
}

func runHealer(cmd *cobra.Command, args []string) error {
	opts := zap.Options{Development: true}
	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))
	log := ctrl.Log.WithName("healer")

	scheme := runtimeScheme()
	c, err := client.New(ctrl.GetConfigOrDie(), client.Options{Scheme: scheme})
	if err != nil {
		return fmt.Errorf("create standalone cluster client: %w", err)
	}

	var issues remediation.IssueCreator
	if token := os.Getenv("GITHUB_TOKEN"); token != "" && healerIssueRepository != "" {
		issues = &githubEscalationIssues{client: github.NewClient(nil).WithAuthToken(token)}
	}

	cfg := remediation.DefaultConfig(healerNamespace)
	cfg.MaxAttempts = healerMaxAttempts
	cfg.IssueRepository = healerIssueRepository
	coordinator := remediation.NewCoordinator(c, log, issues, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	go func() {
		if err := coordinator.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error(err, "remediation sweeper exited")
		}
	}()

	log.Info("healer ready", "namespace", healerNamespace, "maxAttempts", healerMaxAttempts)
	return readEvents(ctx, coordinator, log)
}

// readEvents consumes newline-delimited classifier.Event JSON from stdin,
// classifying and routing each one through coordinator until ctx is
// cancelled or stdin closes.
func readEvents(ctx context.Context, coordinator *remediation.Coordinator, log logr.Logger) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var ev classifier.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			log.Error(err, "skipping malformed event")
			continue
		}

		failureType, failure := classifier.Classify(ev, time.Now())
		state, err := coordinator.HandleFailure(ctx, failure, failureType, time.Now())
		if err != nil {
			log.Error(err, "handle failure", "repository", failure.Repository)
			continue
		}
		log.Info("failure handled", "repository", failure.Repository, "failureType", failureType,
			"status", state.Status, "attempts", len(state.Attempts))
	}
	return scanner.Err()
}

// githubEscalationIssues implements remediation.IssueCreator directly
// against *github.Client, mirroring internal/monitor.GitHubIssueCreator's
// shape but for remediation.EscalationRequest rather than an anomaly
// excerpt.
type githubEscalationIssues struct {
	client *github.Client
}

func (g *githubEscalationIssues) CreateIssue(ctx context.Context, owner, repo string, req remediation.EscalationRequest) (string, error) {
	title := fmt.Sprintf("[remediation escalated] %s on %s/%s", req.FailureType, req.Repository, req.Branch)
	body := fmt.Sprintf("Remediation exhausted its attempt budget.\n\nRepository: %s\nBranch: %s\nFailure type: %s\nAttempts: %d\n",
		req.Repository, req.Branch, req.FailureType, len(req.Attempts))
	for _, a := range req.Attempts {
		body += fmt.Sprintf("\n- attempt %d: %s -> %s (%s)", a.AttemptNumber, a.Agent, a.Outcome, a.FailureReason)
	}

	issue, _, err := g.client.Issues.Create(ctx, owner, repo, &github.IssueRequest{
		Title: github.String(title),
		Body:  github.String(body),
	})
	if err != nil {
		return "", fmt.Errorf("create escalation issue: %w", err)
	}
	return issue.GetHTMLURL(), nil
}
