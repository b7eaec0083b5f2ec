// Copyright Contributors to the KubeOpenCode project

package webhook

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/go-github/v66/github"

	"github.com/5dlabs/agentctl/internal/classifier"
	"github.com/5dlabs/agentctl/internal/remediation"
)

// CIReceiver is the production GitHub webhook endpoint for the
// remediation coordinator: it validates each delivery's HMAC
// signature, classifies workflow_run/workflow_job/security-alert events
// through internal/classifier, and hands the result to
// internal/remediation.Coordinator. Deliberately a fixed, single-purpose
// handler rather than an operator-authored rule engine: this control
// plane has exactly one kind of inbound webhook to react to.
type CIReceiver struct {
	coordinator *remediation.Coordinator
	secret      []byte
	log         logr.Logger

	httpServer *http.Server
}

// NewCIReceiver builds a receiver that dispatches classified failures to
// coordinator. secret validates the GitHub webhook HMAC signature
// (X-Hub-Signature-256); an empty secret disables signature validation,
// which is only acceptable for local development.
func NewCIReceiver(coordinator *remediation.Coordinator, secret string, log logr.Logger) *CIReceiver {
	return &CIReceiver{
		coordinator: coordinator,
		secret:      []byte(secret),
		log:         log.WithName("ci-webhook"),
	}
}

// Start serves the receiver on port until ctx is cancelled, then shuts
// the HTTP server down with a bounded grace period.
func (r *CIReceiver) Start(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhooks/ci", r.handleDelivery)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	r.log.Info("starting CI webhook receiver", "port", port)

	errCh := make(chan error, 1)
	go func() {
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		r.log.Info("shutting down CI webhook receiver")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return r.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// handleDelivery validates, parses, and classifies a single GitHub
// delivery, then dispatches it through the coordinator. Deliveries that
// parse to an event type this module does not react to (pushes, pull
// request comments, and so on) are acknowledged with 200 and dropped
// silently rather than treated as an error.
func (r *CIReceiver) handleDelivery(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	payload, err := github.ValidatePayload(req, r.secret)
	if err != nil {
		r.log.Info("rejected delivery: signature validation failed", "error", err.Error())
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	event, err := github.ParseWebHook(github.WebHookType(req), payload)
	if err != nil {
		r.log.Error(err, "failed to parse webhook payload")
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	ev, ok := toClassifierEvent(event)
	if !ok {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ignored"}`))
		return
	}

	now := time.Now()
	failureType, failure := classifier.Classify(ev, now)
	state, err := r.coordinator.HandleFailure(req.Context(), failure, failureType, now)
	if err != nil {
		r.log.Error(err, "handle failure", "repository", failure.Repository)
		http.Error(w, "failed to handle failure", http.StatusInternalServerError)
		return
	}

	r.log.Info("classified CI failure", "repository", failure.Repository, "failureType", failureType,
		"status", state.Status, "attempts", len(state.Attempts))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"accepted"}`))
}

// toClassifierEvent extracts a classifier.Event from the subset of GitHub
// event types this control plane reacts to: completed, failed
// workflow_run and workflow_job deliveries, and the three security-alert
// kinds. ChangedFiles and LogExcerpt are left empty here: populating them
// requires a follow-up Checks/Contents API call this receiver does not
// make, so changed-file-based classification only engages when a caller
// (e.g. a test, or a future enrichment step) supplies an Event directly.
func toClassifierEvent(event any) (classifier.Event, bool) {
	switch e := event.(type) {
	case *github.WorkflowRunEvent:
		if e.GetAction() != "completed" || e.GetWorkflowRun().GetConclusion() != "failure" {
			return classifier.Event{}, false
		}
		run := e.GetWorkflowRun()
		return classifier.Event{
			WorkflowRunID: run.GetID(),
			WorkflowName:  e.GetWorkflow().GetName(),
			Branch:        run.GetHeadBranch(),
			HeadSHA:       run.GetHeadSHA(),
			CommitMessage: run.GetHeadCommit().GetMessage(),
			Repository:    e.GetRepo().GetFullName(),
			Sender:        e.GetSender().GetLogin(),
		}, true

	case *github.WorkflowJobEvent:
		if e.GetAction() != "completed" || e.GetWorkflowJob().GetConclusion() != "failure" {
			return classifier.Event{}, false
		}
		job := e.GetWorkflowJob()
		return classifier.Event{
			WorkflowRunID: job.GetRunID(),
			JobName:       job.GetName(),
			Branch:        job.GetHeadBranch(),
			HeadSHA:       job.GetHeadSHA(),
			Repository:    e.GetRepo().GetFullName(),
			Sender:        e.GetSender().GetLogin(),
		}, true

	case *github.DependabotAlertEvent:
		return classifier.Event{
			Repository:    e.GetRepo().GetFullName(),
			Sender:        e.GetSender().GetLogin(),
			SecurityAlert: classifier.SecurityAlertDependabot,
		}, true

	case *github.CodeScanningAlertEvent:
		return classifier.Event{
			Repository:    e.GetRepo().GetFullName(),
			Sender:        e.GetSender().GetLogin(),
			SecurityAlert: classifier.SecurityAlertCodeScan,
		}, true

	case *github.SecretScanningAlertEvent:
		return classifier.Event{
			Repository:    e.GetRepo().GetFullName(),
			Sender:        e.GetSender().GetLogin(),
			SecurityAlert: classifier.SecurityAlertSecretScan,
		}, true

	default:
		return classifier.Event{}, false
	}
}
