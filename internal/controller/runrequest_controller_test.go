// Copyright Contributors to the KubeOpenCode project

//go:build !integration

package controller

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/5dlabs/agentctl/api/v1alpha1"
	"github.com/5dlabs/agentctl/internal/adapter"
	"github.com/5dlabs/agentctl/internal/bridge"
	"github.com/5dlabs/agentctl/internal/capability"
	"github.com/5dlabs/agentctl/internal/quota"
	"github.com/5dlabs/agentctl/internal/resourcemanager"
)

func testScheme(t *testing.T) *runtime.Scheme {
	t.Helper()
	s := runtime.NewScheme()
	for _, add := range []func(*runtime.Scheme) error{v1alpha1.AddToScheme, corev1.AddToScheme, batchv1.AddToScheme} {
		if err := add(s); err != nil {
			t.Fatalf("AddToScheme() error = %v", err)
		}
	}
	return s
}

func testRunRequestReconciler(t *testing.T, objs ...client.Object) (*RunRequestReconciler, client.Client) {
	t.Helper()
	c := fake.NewClientBuilder().WithScheme(testScheme(t)).WithObjects(objs...).WithStatusSubresource(&v1alpha1.RunRequest{}, &v1alpha1.RunTemplate{}).Build()

	registry := capability.NewRegistry()
	if err := capability.RegisterDefaults(registry); err != nil {
		t.Fatalf("RegisterDefaults() error = %v", err)
	}
	factory := adapter.NewFactory(registry, logr.Discard())

	return &RunRequestReconciler{
		Client:          c,
		Scheme:          testScheme(t),
		ResourceManager: resourcemanager.NewManager(c, bridge.NewBridge(), resourcemanager.Images{Agent: "agent:latest", Sidecar: "sidecar:latest"}, false),
		QuotaGuard:      quota.NewGuard(c),
		Bridge:          bridge.NewBridge(),
		Adapters:        factory,
	}, c
}

func testRunRequestObj(name string) *v1alpha1.RunRequest {
	return &v1alpha1.RunRequest{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "default"},
		Spec: v1alpha1.RunRequestSpec{
			Service:          "checkout",
			RepositoryURL:    "https://github.com/acme/checkout",
			WorkingDirectory: "/workspace",
			Model:            "claude-sonnet-4-20250514",
			ContextVersion:   1,
			RunType:          v1alpha1.RunTypeImplementation,
			CliConfig:        map[string]string{"cli": "claude"},
		},
	}
}

func TestReconcile_InitializesRunWithoutTemplate(t *testing.T) {
	rr := testRunRequestObj("no-template")
	r, c := testRunRequestReconciler(t, rr)

	if _, err := r.Reconcile(context.Background(), ctrl.Request{NamespacedName: types.NamespacedName{Namespace: "default", Name: rr.Name}}); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	updated := &v1alpha1.RunRequest{}
	if err := c.Get(context.Background(), types.NamespacedName{Namespace: "default", Name: rr.Name}, updated); err != nil {
		t.Fatalf("fetch runrequest: %v", err)
	}
	if updated.Status.Phase != v1alpha1.RunPhaseRunning {
		t.Fatalf("Status.Phase = %q, want %q", updated.Status.Phase, v1alpha1.RunPhaseRunning)
	}
	if updated.Status.JobName == "" {
		t.Fatalf("Status.JobName is empty, want populated")
	}

	job := &batchv1.Job{}
	if err := c.Get(context.Background(), types.NamespacedName{Namespace: "default", Name: updated.Status.JobName}, job); err != nil {
		t.Fatalf("expected job %q to exist: %v", updated.Status.JobName, err)
	}
}

func TestReconcile_QueuesWhenTemplateAtCapacity(t *testing.T) {
	max := int32(1)
	tmpl := &v1alpha1.RunTemplate{
		ObjectMeta: metav1.ObjectMeta{Name: "shared-template", Namespace: "default"},
		Spec:       v1alpha1.RunTemplateSpec{MaxConcurrentRuns: &max},
	}
	running := testRunRequestObj("already-running")
	running.Spec.RunTemplateRef = &v1alpha1.RunTemplateReference{Name: tmpl.Name}
	running.Status.Phase = v1alpha1.RunPhaseRunning

	rr := testRunRequestObj("new-run")
	rr.Spec.RunTemplateRef = &v1alpha1.RunTemplateReference{Name: tmpl.Name}

	r, c := testRunRequestReconciler(t, tmpl, running, rr)

	if _, err := r.Reconcile(context.Background(), ctrl.Request{NamespacedName: types.NamespacedName{Namespace: "default", Name: rr.Name}}); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	updated := &v1alpha1.RunRequest{}
	if err := c.Get(context.Background(), types.NamespacedName{Namespace: "default", Name: rr.Name}, updated); err != nil {
		t.Fatalf("fetch runrequest: %v", err)
	}
	if updated.Status.Phase != v1alpha1.RunPhaseQueued {
		t.Fatalf("Status.Phase = %q, want %q", updated.Status.Phase, v1alpha1.RunPhaseQueued)
	}
}

func TestReconcile_StopAnnotationCancelsRunningJob(t *testing.T) {
	rr := testRunRequestObj("stop-me")
	rr.Annotations = map[string]string{v1alpha1.AnnotationStop: "true"}
	rr.Status.Phase = v1alpha1.RunPhaseRunning
	rr.Status.JobName = "stop-me-job"

	job := &batchv1.Job{ObjectMeta: metav1.ObjectMeta{Name: rr.Status.JobName, Namespace: "default"}}

	r, c := testRunRequestReconciler(t, rr, job)

	if _, err := r.Reconcile(context.Background(), ctrl.Request{NamespacedName: types.NamespacedName{Namespace: "default", Name: rr.Name}}); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	updated := &v1alpha1.RunRequest{}
	if err := c.Get(context.Background(), types.NamespacedName{Namespace: "default", Name: rr.Name}, updated); err != nil {
		t.Fatalf("fetch runrequest: %v", err)
	}
	if updated.Status.Phase != v1alpha1.RunPhaseCancelled {
		t.Fatalf("Status.Phase = %q, want %q", updated.Status.Phase, v1alpha1.RunPhaseCancelled)
	}

	remainingJob := &batchv1.Job{}
	err := c.Get(context.Background(), types.NamespacedName{Namespace: "default", Name: job.Name}, remainingJob)
	if err == nil {
		t.Fatalf("expected job %q to be deleted", job.Name)
	}
}

func TestReconcile_CompletesWhenJobSucceeds(t *testing.T) {
	rr := testRunRequestObj("will-complete")
	rr.Status.Phase = v1alpha1.RunPhaseRunning
	rr.Status.JobName = "will-complete-job"

	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{Name: rr.Status.JobName, Namespace: "default"},
		Status:     batchv1.JobStatus{Succeeded: 1},
	}

	r, c := testRunRequestReconciler(t, rr, job)

	if _, err := r.Reconcile(context.Background(), ctrl.Request{NamespacedName: types.NamespacedName{Namespace: "default", Name: rr.Name}}); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	updated := &v1alpha1.RunRequest{}
	if err := c.Get(context.Background(), types.NamespacedName{Namespace: "default", Name: rr.Name}, updated); err != nil {
		t.Fatalf("fetch runrequest: %v", err)
	}
	if updated.Status.Phase != v1alpha1.RunPhaseCompleted {
		t.Fatalf("Status.Phase = %q, want %q", updated.Status.Phase, v1alpha1.RunPhaseCompleted)
	}
}

func TestValidateNamespaceAccess(t *testing.T) {
	tests := []struct {
		name      string
		patterns  []string
		namespace string
		wantErr   bool
	}{
		{"empty patterns allow all", nil, "team-a", false},
		{"exact match", []string{"team-a"}, "team-a", false},
		{"glob match", []string{"team-*"}, "team-b", false},
		{"no match", []string{"team-a"}, "team-b", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateNamespaceAccess(tt.patterns, tt.namespace)
			if (err != nil) != tt.wantErr {
				t.Fatalf("validateNamespaceAccess(%v, %q) error = %v, wantErr %v", tt.patterns, tt.namespace, err, tt.wantErr)
			}
		})
	}
}

func TestMergeStringMaps(t *testing.T) {
	base := map[string]string{"a": "1", "b": "2"}
	override := map[string]string{"b": "20", "c": "3"}
	got := mergeStringMaps(base, override)
	want := map[string]string{"a": "1", "b": "20", "c": "3"}
	if len(got) != len(want) {
		t.Fatalf("mergeStringMaps() = %+v, want %+v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("mergeStringMaps()[%q] = %q, want %q", k, got[k], v)
		}
	}
}

func TestBuildEntrypoint(t *testing.T) {
	script := buildEntrypoint([]string{"claude-code", "--flag", "value with spaces"}, false)
	want := "#!/bin/bash\nset -euo pipefail\ncd /workspace\nexec 'claude-code' '--flag' 'value with spaces'\n"
	if script != want {
		t.Fatalf("buildEntrypoint() = %q, want %q", script, want)
	}
}

func TestBuildEntrypoint_ContinueSession(t *testing.T) {
	script := buildEntrypoint([]string{"claude-code", "go"}, true)
	want := "#!/bin/bash\nset -uo pipefail\ncd /workspace\n'claude-code' 'go'\nstatus=$?\nmkdir -p /signal\ntouch /signal/.agent-done\nexit $status\n"
	if script != want {
		t.Fatalf("buildEntrypoint() = %q, want %q", script, want)
	}
}

func TestBuildUniversalConfig_CliConfigTunables(t *testing.T) {
	spec := testRunRequestObj("tunables").Spec
	spec.CliConfig = map[string]string{
		"cli":                "codex",
		"sandbox":            "danger-full-access",
		"temperature":        "0.4",
		"maxTokens":          "2048",
		"timeoutSeconds":     "900",
		"projectDescription": "Checkout service.",
		"architectureNotes":  "Event-driven.",
		"instructions":       "Fix the failing build.",
		"constraints":        `["never force-push"]`,
		"tools":              `[{"Name":"search"},{"Name":"edit"}]`,
		"mcpConfig":          `{"Servers":[{"Name":"tools","Command":"tools-server","Env":{"TOOLS_SERVER_URL":"http://tools:3000/mcp"}}]}`,
	}

	cfg, err := buildUniversalConfig(spec, capability.Adapter{})
	if err != nil {
		t.Fatalf("buildUniversalConfig() error = %v", err)
	}
	if cfg.Settings.SandboxMode != bridge.SandboxDangerFullAccess {
		t.Fatalf("SandboxMode = %q, want danger-full-access", cfg.Settings.SandboxMode)
	}
	if cfg.Settings.Temperature != 0.4 || cfg.Settings.MaxTokens != 2048 || cfg.Settings.TimeoutSec != 900 {
		t.Fatalf("Settings = %+v, want temperature/maxTokens/timeout from cli_config", cfg.Settings)
	}
	if cfg.Context.ProjectDescription != "Checkout service." || cfg.Context.ArchitectureNotes != "Event-driven." {
		t.Fatalf("Context = %+v, want description and architecture from cli_config", cfg.Context)
	}
	if len(cfg.Context.Constraints) != 1 || cfg.Context.Constraints[0] != "never force-push" {
		t.Fatalf("Constraints = %v, want the decoded list", cfg.Context.Constraints)
	}
	if cfg.Agent.Instructions != "Fix the failing build." {
		t.Fatalf("Instructions = %q, want the cli_config override", cfg.Agent.Instructions)
	}
	if len(cfg.Tools) != 2 || cfg.Tools[0].Name != "search" {
		t.Fatalf("Tools = %+v, want the decoded tool list", cfg.Tools)
	}
	if cfg.MCPConfig == nil || len(cfg.MCPConfig.Servers) != 1 ||
		cfg.MCPConfig.Servers[0].Env["TOOLS_SERVER_URL"] != "http://tools:3000/mcp" {
		t.Fatalf("MCPConfig = %+v, want the decoded tools server", cfg.MCPConfig)
	}
}

func TestBuildUniversalConfig_Defaults(t *testing.T) {
	spec := testRunRequestObj("defaults").Spec

	cfg, err := buildUniversalConfig(spec, capability.Adapter{})
	if err != nil {
		t.Fatalf("buildUniversalConfig() error = %v", err)
	}
	if cfg.Settings.SandboxMode != bridge.SandboxWorkspaceWrite {
		t.Fatalf("SandboxMode = %q, want the workspace-write default", cfg.Settings.SandboxMode)
	}
	if cfg.MCPConfig != nil || len(cfg.Tools) != 0 {
		t.Fatalf("cfg = %+v, want no tools or MCP servers without cli_config entries", cfg)
	}
}

func TestBuildUniversalConfig_MalformedValuesAreErrors(t *testing.T) {
	cases := map[string]map[string]string{
		"bad sandbox":     {"sandbox": "yolo"},
		"bad temperature": {"temperature": "warm"},
		"bad maxTokens":   {"maxTokens": "lots"},
		"bad tools":       {"tools": "{not json"},
		"bad mcpConfig":   {"mcpConfig": "[]nope"},
	}
	for name, cc := range cases {
		t.Run(name, func(t *testing.T) {
			spec := testRunRequestObj("malformed").Spec
			spec.CliConfig = cc
			if _, err := buildUniversalConfig(spec, capability.Adapter{}); err == nil {
				t.Fatalf("buildUniversalConfig() error = nil, want a validation error")
			}
		})
	}
}
