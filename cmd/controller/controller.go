// Copyright Contributors to the KubeOpenCode project

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/go-github/v66/github"
	"github.com/spf13/cobra"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"

	"github.com/5dlabs/agentctl/api/v1alpha1"
	"github.com/5dlabs/agentctl/internal/adapter"
	"github.com/5dlabs/agentctl/internal/behavior"
	"github.com/5dlabs/agentctl/internal/bridge"
	"github.com/5dlabs/agentctl/internal/capability"
	"github.com/5dlabs/agentctl/internal/controller"
	"github.com/5dlabs/agentctl/internal/monitor"
	"github.com/5dlabs/agentctl/internal/quota"
	"github.com/5dlabs/agentctl/internal/remediation"
	"github.com/5dlabs/agentctl/internal/resourcemanager"
	"github.com/5dlabs/agentctl/internal/tracing"
	"github.com/5dlabs/agentctl/internal/webhook"
)

func init() {
	rootCmd.AddCommand(controllerCmd)
	controllerCmd.Flags().StringVar(&controllerMetricsAddr, "metrics-bind-address", ":8080",
		"The address the metrics endpoint binds to.")
	controllerCmd.Flags().StringVar(&controllerHealthAddr, "health-probe-bind-address", ":8081",
		"The address the health probe endpoint binds to.")
	controllerCmd.Flags().StringVar(&controllerNamespace, "namespace", "",
		"Namespace to watch for RunRequests. Empty means all namespaces.")
	controllerCmd.Flags().StringVar(&controllerAgentImage, "agent-image", "ghcr.io/5dlabs/agentctl-agent:latest",
		"Container image for the agent's main container.")
	controllerCmd.Flags().StringVar(&controllerSidecarImage, "sidecar-image", "ghcr.io/5dlabs/agentctl-bridge:latest",
		"Container image for the input-bridge sidecar.")
	controllerCmd.Flags().StringVar(&controllerToolsImage, "tools-image", "ghcr.io/5dlabs/agentctl-tools:latest",
		"Container image for the git-init/context-init/save-session init and sidecar containers.")
	controllerCmd.Flags().BoolVar(&controllerBridgeEnabled, "bridge-enabled", true,
		"Create the headless input-bridge Service alongside each Job.")
	controllerCmd.Flags().StringVar(&controllerMonitorSchedule, "monitor-schedule", "*/1 * * * *",
		"cron.ParseStandard schedule governing the Play monitor's poll interval.")
	controllerCmd.Flags().StringVar(&controllerIssueRepository, "anomaly-issue-repository", "",
		"owner/repo that anomaly and escalation issues are filed against.")
	controllerCmd.Flags().IntVar(&controllerWebhookPort, "webhook-port", 9090,
		"Port the CI webhook receiver listens on.")
	controllerCmd.Flags().IntVar(&controllerMaxAttempts, "remediation-max-attempts", 3,
		"Maximum specialist attempts per failure before escalating.")
}

var (
	controllerMetricsAddr     string
	controllerHealthAddr      string
	controllerNamespace       string
	controllerAgentImage      string
	controllerSidecarImage    string
	controllerToolsImage      string
	controllerBridgeEnabled   bool
	controllerMonitorSchedule string
	controllerIssueRepository string
	controllerWebhookPort     int
	controllerMaxAttempts     int
)

var controllerCmd = &cobra.Command{
	Use:   "controller",
	Short: "Start the RunRequest controller manager",
	Long: `controller runs the manager process: the RunRequest reconciler,
the Play monitor, and the CI webhook receiver that classifies
failures and drives the Remediation coordinator. The webhook
receiver validates deliveries against CI_WEBHOOK_SECRET and, when
GITHUB_TOKEN and --anomaly-issue-repository are both set, files
escalation issues through the GitHub API.

Example:
  agentctl controller --metrics-bind-address=:8080`,
	RunE: runController,
}

func runController(cmd *cobra.Command, args []string) error {
	opts := zap.Options{Development: true}
	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))
	log := ctrl.Log.WithName("controller")

	scheme := runtimeScheme()

	tp := tracing.NewProvider(log)
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Error(err, "tracer provider shutdown failed")
		}
	}()

	mgr, err := ctrl.NewManager(ctrl.GetConfigOrDie(), ctrl.Options{
		Scheme:                 scheme,
		Metrics:                metricsserver.Options{BindAddress: controllerMetricsAddr},
		HealthProbeBindAddress: controllerHealthAddr,
		Cache:                  cacheOptions(controllerNamespace),
	})
	if err != nil {
		return fmt.Errorf("create manager: %w", err)
	}

	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		return fmt.Errorf("add healthz check: %w", err)
	}
	if err := mgr.AddReadyzCheck("readyz", healthz.Ping); err != nil {
		return fmt.Errorf("add readyz check: %w", err)
	}

	registry := capability.NewRegistry()
	if err := capability.RegisterDefaults(registry); err != nil {
		return fmt.Errorf("register default capabilities: %w", err)
	}
	factory := adapter.NewFactory(registry, log)

	rrReconciler := &controller.RunRequestReconciler{
		Client: mgr.GetClient(),
		Scheme: mgr.GetScheme(),
		ResourceManager: resourcemanager.NewManager(mgr.GetClient(), bridge.NewBridge(),
			resourcemanager.Images{Agent: controllerAgentImage, Sidecar: controllerSidecarImage, Tools: controllerToolsImage}, controllerBridgeEnabled),
		QuotaGuard: quota.NewGuard(mgr.GetClient()),
		Bridge:     bridge.NewBridge(),
		Adapters:   factory,
	}
	if err := rrReconciler.SetupWithManager(mgr); err != nil {
		return fmt.Errorf("setup RunRequest reconciler: %w", err)
	}

	var githubClient *github.Client
	if token := os.Getenv("GITHUB_TOKEN"); token != "" && controllerIssueRepository != "" {
		githubClient = github.NewClient(nil).WithAuthToken(token)
	}

	monitorCfg := monitor.DefaultConfig(controllerNamespace)
	monitorCfg.PollSchedule = controllerMonitorSchedule
	monitorCfg.IssueRepository = controllerIssueRepository
	var anomalyIssues monitor.IssueCreator
	if githubClient != nil {
		anomalyIssues = monitor.NewGitHubIssueCreator(githubClient)
	}
	playMonitor := monitor.NewMonitor(mgr.GetClient(), log, behavior.NewAnalyzer(log, behavior.GlobalFailurePatterns, nil),
		monitor.NewClusterAPIFetcher(clientsetOrDie(log), 0), anomalyIssues, v1alpha1.LabelAgentKind, monitorCfg)

	var issues remediation.IssueCreator
	if githubClient != nil {
		issues = &githubEscalationIssues{client: githubClient}
	}
	remediationCfg := remediation.DefaultConfig(controllerNamespace)
	remediationCfg.MaxAttempts = controllerMaxAttempts
	remediationCfg.IssueRepository = controllerIssueRepository
	coordinator := remediation.NewCoordinator(mgr.GetClient(), log, issues, remediationCfg)
	ciReceiver := webhook.NewCIReceiver(coordinator, os.Getenv("CI_WEBHOOK_SECRET"), log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	go func() {
		if err := playMonitor.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error(err, "play monitor exited")
		}
	}()

	// Drain the monitor's event stream into the structured log. A real
	// dashboard/alerting consumer replaces this loop; delivery stays
	// best-effort either way.
	go func() {
		eventLog := log.WithName("monitor-events")
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-playMonitor.Events():
				eventLog.Info(string(ev.Type), "playID", ev.PlayID, "run", ev.RunName,
					"agent", ev.Agent, "severity", ev.Severity, "message", ev.Message)
			}
		}
	}()

	go func() {
		if err := ciReceiver.Start(ctx, controllerWebhookPort); err != nil && ctx.Err() == nil {
			log.Error(err, "CI webhook receiver exited")
		}
	}()

	go func() {
		if err := coordinator.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error(err, "remediation sweeper exited")
		}
	}()

	log.Info("starting manager", "metricsAddr", controllerMetricsAddr, "healthAddr", controllerHealthAddr,
		"webhookPort", controllerWebhookPort)
	return mgr.Start(ctx)
}
