// Copyright Contributors to the KubeOpenCode project

package resourcemanager

import (
	"context"
	"testing"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/5dlabs/agentctl/api/v1alpha1"
	"github.com/5dlabs/agentctl/internal/bridge"
)

func newScheme(t *testing.T) *runtime.Scheme {
	t.Helper()
	s := runtime.NewScheme()
	if err := v1alpha1.AddToScheme(s); err != nil {
		t.Fatalf("AddToScheme(v1alpha1) error = %v", err)
	}
	if err := corev1.AddToScheme(s); err != nil {
		t.Fatalf("AddToScheme(corev1) error = %v", err)
	}
	if err := batchv1.AddToScheme(s); err != nil {
		t.Fatalf("AddToScheme(batchv1) error = %v", err)
	}
	return s
}

func testRunRequest() *v1alpha1.RunRequest {
	app := "5DLabs-Rex"
	taskID := int32(42)
	return &v1alpha1.RunRequest{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "implementation-run",
			Namespace: "default",
			UID:       types.UID("1234567890abcdef"),
		},
		Spec: v1alpha1.RunRequestSpec{
			TaskID:           &taskID,
			Service:          "checkout",
			RepositoryURL:    "https://github.com/acme/checkout",
			WorkingDirectory: "/workspace",
			Model:            "claude-sonnet-4-20250514",
			GithubApp:        &app,
			ContextVersion:   1,
			RunType:          v1alpha1.RunTypeImplementation,
			CliConfig:        map[string]string{"cli": "claude"},
		},
	}
}

func testManager(t *testing.T, objs ...client.Object) (*Manager, client.Client) {
	t.Helper()
	c := fake.NewClientBuilder().WithScheme(newScheme(t)).WithObjects(objs...).Build()
	m := NewManager(c, bridge.NewBridge(), Images{Agent: "agent:latest", Sidecar: "sidecar:latest", Tools: "tools:latest"}, true)
	return m, c
}

func testCliConfig() bridge.UniversalConfig {
	return bridge.UniversalConfig{
		Context: bridge.Context{ProjectName: "checkout"},
		Settings: bridge.Settings{
			Model:       "claude-sonnet-4-20250514",
			SandboxMode: bridge.SandboxWorkspaceWrite,
		},
		Agent: bridge.Agent{Instructions: "Implement the task."},
	}
}

func TestReconcile_CreatesConfigMapJobAndService(t *testing.T) {
	rr := testRunRequest()
	m, c := testManager(t)

	result, err := m.Reconcile(context.Background(), rr, testCliConfig(), "#!/bin/bash\nclaude-code\n")
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if result.ConfigMapName == "" || result.JobName == "" || result.ServiceName == "" {
		t.Fatalf("Reconcile() result incomplete: %+v", result)
	}

	cm := &corev1.ConfigMap{}
	if err := c.Get(context.Background(), types.NamespacedName{Namespace: "default", Name: result.ConfigMapName}, cm); err != nil {
		t.Fatalf("expected configmap %q to exist: %v", result.ConfigMapName, err)
	}

	job := &batchv1.Job{}
	if err := c.Get(context.Background(), types.NamespacedName{Namespace: "default", Name: result.JobName}, job); err != nil {
		t.Fatalf("expected job %q to exist: %v", result.JobName, err)
	}
	if len(job.OwnerReferences) != 1 || job.OwnerReferences[0].Name != rr.Name {
		t.Fatalf("job owner references = %+v, want one ref to %q", job.OwnerReferences, rr.Name)
	}

	svc := &corev1.Service{}
	if err := c.Get(context.Background(), types.NamespacedName{Namespace: "default", Name: result.ServiceName}, svc); err != nil {
		t.Fatalf("expected service %q to exist: %v", result.ServiceName, err)
	}
	if svc.Spec.ClusterIP != corev1.ClusterIPNone {
		t.Fatalf("service ClusterIP = %q, want %q", svc.Spec.ClusterIP, corev1.ClusterIPNone)
	}

	updatedCM := &corev1.ConfigMap{}
	if err := c.Get(context.Background(), types.NamespacedName{Namespace: "default", Name: result.ConfigMapName}, updatedCM); err != nil {
		t.Fatalf("re-fetch configmap: %v", err)
	}
	found := false
	for _, ref := range updatedCM.OwnerReferences {
		if ref.Name == result.JobName {
			found = true
		}
	}
	if !found {
		t.Fatalf("configmap owner references = %+v, want a reference to job %q", updatedCM.OwnerReferences, result.JobName)
	}
}

func TestReconcile_IdempotentOnSecondCall(t *testing.T) {
	rr := testRunRequest()
	m, _ := testManager(t)

	first, err := m.Reconcile(context.Background(), rr, testCliConfig(), "#!/bin/bash\nclaude-code\n")
	if err != nil {
		t.Fatalf("first Reconcile() error = %v", err)
	}
	second, err := m.Reconcile(context.Background(), rr, testCliConfig(), "#!/bin/bash\nclaude-code\n")
	if err != nil {
		t.Fatalf("second Reconcile() error = %v", err)
	}
	if first.ConfigMapName != second.ConfigMapName || first.JobName != second.JobName || first.ServiceName != second.ServiceName {
		t.Fatalf("Reconcile() not idempotent: %+v != %+v", first, second)
	}
}

func TestReconcile_AdoptsExistingJob(t *testing.T) {
	rr := testRunRequest()
	jobName := "implementation-run-preexisting"
	rr.Status.JobName = jobName
	existingJob := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{Name: jobName, Namespace: "default"},
	}
	m, c := testManager(t, existingJob)

	result, err := m.Reconcile(context.Background(), rr, testCliConfig(), "#!/bin/bash\nclaude-code\n")
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if result.JobName != jobName {
		t.Fatalf("Reconcile() JobName = %q, want %q (adopted)", result.JobName, jobName)
	}

	jobs := &batchv1.JobList{}
	if err := c.List(context.Background(), jobs); err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	if len(jobs.Items) != 1 {
		t.Fatalf("len(jobs) = %d, want 1 (no duplicate created on adoption)", len(jobs.Items))
	}
}

func TestReconcile_DocsRunCreatesWorkspacePVC(t *testing.T) {
	rr := testRunRequest()
	rr.Spec.RunType = v1alpha1.RunTypeDocs
	rr.Spec.WorkingDirectory = "docs/checkout"
	m, c := testManager(t)

	if _, err := m.Reconcile(context.Background(), rr, testCliConfig(), "#!/bin/bash\n"); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	pvcName := workspacePVCName(rr.Spec.WorkingDirectory)
	pvc := &corev1.PersistentVolumeClaim{}
	if err := c.Get(context.Background(), types.NamespacedName{Namespace: "default", Name: pvcName}, pvc); err != nil {
		t.Fatalf("expected workspace pvc %q to exist: %v", pvcName, err)
	}
}

func TestReconcile_JobHasGitInitAndContextInitContainers(t *testing.T) {
	rr := testRunRequest()
	m, c := testManager(t)

	result, err := m.Reconcile(context.Background(), rr, testCliConfig(), "#!/bin/bash\nclaude-code\n")
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	job := &batchv1.Job{}
	if err := c.Get(context.Background(), types.NamespacedName{Namespace: "default", Name: result.JobName}, job); err != nil {
		t.Fatalf("expected job %q to exist: %v", result.JobName, err)
	}

	names := map[string]bool{}
	for _, ic := range job.Spec.Template.Spec.InitContainers {
		names[ic.Name] = true
	}
	for _, want := range []string{"git-init", "context-init", "fix-workspace-perms"} {
		if !names[want] {
			t.Fatalf("init containers = %+v, want %q present", names, want)
		}
	}

	var gitInit corev1.Container
	for _, ic := range job.Spec.Template.Spec.InitContainers {
		if ic.Name == "git-init" {
			gitInit = ic
		}
	}
	if gitInit.Image != "tools:latest" {
		t.Fatalf("git-init image = %q, want %q", gitInit.Image, "tools:latest")
	}
	foundRepo := false
	for _, e := range gitInit.Env {
		if e.Name == "GIT_REPO" && e.Value == rr.Spec.RepositoryURL {
			foundRepo = true
		}
	}
	if !foundRepo {
		t.Fatalf("git-init env = %+v, want GIT_REPO=%q", gitInit.Env, rr.Spec.RepositoryURL)
	}
}

func TestReconcile_DocsRunSkipsGitInit(t *testing.T) {
	rr := testRunRequest()
	rr.Spec.RunType = v1alpha1.RunTypeDocs
	rr.Spec.WorkingDirectory = "docs/checkout-skip-git"
	m, c := testManager(t)

	result, err := m.Reconcile(context.Background(), rr, testCliConfig(), "#!/bin/bash\n")
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	job := &batchv1.Job{}
	if err := c.Get(context.Background(), types.NamespacedName{Namespace: "default", Name: result.JobName}, job); err != nil {
		t.Fatalf("expected job %q to exist: %v", result.JobName, err)
	}
	for _, ic := range job.Spec.Template.Spec.InitContainers {
		if ic.Name == "git-init" {
			t.Fatalf("docs run's job should not clone into its reused workspace PVC, found git-init init container")
		}
	}
}

func TestReconcile_ContinueSessionAddsSaveSessionSidecarAndPVC(t *testing.T) {
	rr := testRunRequest()
	rr.Spec.ContinueSession = true
	m, c := testManager(t)

	result, err := m.Reconcile(context.Background(), rr, testCliConfig(), "#!/bin/bash\nclaude-code\n")
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	job := &batchv1.Job{}
	if err := c.Get(context.Background(), types.NamespacedName{Namespace: "default", Name: result.JobName}, job); err != nil {
		t.Fatalf("expected job %q to exist: %v", result.JobName, err)
	}
	found := false
	for _, cont := range job.Spec.Template.Spec.Containers {
		if cont.Name == "save-session" {
			found = true
		}
	}
	if !found {
		t.Fatalf("ContinueSession job containers = %+v, want a save-session sidecar", job.Spec.Template.Spec.Containers)
	}

	pvcName := sessionPVCName(githubIdentityFor(rr))
	pvc := &corev1.PersistentVolumeClaim{}
	if err := c.Get(context.Background(), types.NamespacedName{Namespace: "default", Name: pvcName}, pvc); err != nil {
		t.Fatalf("expected session pvc %q to exist: %v", pvcName, err)
	}
}

func TestEnsureWorkspacePVC_TwiceIsNoop(t *testing.T) {
	m, c := testManager(t)

	name := workspacePVCName("docs/checkout")
	if err := m.ensureWorkspacePVC(context.Background(), "default", name); err != nil {
		t.Fatalf("first ensureWorkspacePVC() error = %v", err)
	}
	if err := m.ensureWorkspacePVC(context.Background(), "default", name); err != nil {
		t.Fatalf("second ensureWorkspacePVC() error = %v", err)
	}

	pvcs := &corev1.PersistentVolumeClaimList{}
	if err := c.List(context.Background(), pvcs); err != nil {
		t.Fatalf("list pvcs: %v", err)
	}
	if len(pvcs.Items) != 1 {
		t.Fatalf("len(pvcs) = %d, want 1", len(pvcs.Items))
	}
}

func TestCleanupStaleConfigMaps_KeepsCurrentAndRunningJobOwned(t *testing.T) {
	rr := testRunRequest()
	currentName := configMapName(rr)

	runningJob := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{Name: "still-running-job", Namespace: "default"},
		Status:     batchv1.JobStatus{},
	}
	staleOwnedByRunning := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      configMapNamePrefix(rr) + "0-files",
			Namespace: "default",
			OwnerReferences: []metav1.OwnerReference{
				{APIVersion: "batch/v1", Kind: "Job", Name: runningJob.Name, UID: "x"},
			},
		},
	}
	trulyStale := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      configMapNamePrefix(rr) + "9-files",
			Namespace: "default",
		},
	}
	current := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{Name: currentName, Namespace: "default"},
	}
	unrelated := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{Name: "coderun-other-ns-other-name-deadbeef-v1-files", Namespace: "default"},
	}

	m, c := testManager(t, runningJob, staleOwnedByRunning, trulyStale, current, unrelated)

	if err := m.CleanupStaleConfigMaps(context.Background(), rr); err != nil {
		t.Fatalf("CleanupStaleConfigMaps() error = %v", err)
	}

	remaining := &corev1.ConfigMapList{}
	if err := c.List(context.Background(), remaining); err != nil {
		t.Fatalf("list configmaps: %v", err)
	}
	names := map[string]bool{}
	for _, cm := range remaining.Items {
		names[cm.Name] = true
	}
	if !names[currentName] {
		t.Fatalf("current configmap %q was deleted", currentName)
	}
	if !names[staleOwnedByRunning.Name] {
		t.Fatalf("configmap owned by running job %q was deleted", staleOwnedByRunning.Name)
	}
	if !names[unrelated.Name] {
		t.Fatalf("unrelated configmap %q was deleted", unrelated.Name)
	}
	if names[trulyStale.Name] {
		t.Fatalf("truly stale configmap %q was not deleted", trulyStale.Name)
	}
}

func TestReconcile_OutputSpecAddsCollectOutputsSidecar(t *testing.T) {
	rr := testRunRequest()
	rr.Spec.CliConfig["outputs"] = `{"parameters":[{"name":"pr-url","path":".outputs/pr-url"}]}`
	m, c := testManager(t)

	result, err := m.Reconcile(context.Background(), rr, testCliConfig(), "#!/bin/bash\nclaude-code\n")
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	job := &batchv1.Job{}
	if err := c.Get(context.Background(), types.NamespacedName{Namespace: "default", Name: result.JobName}, job); err != nil {
		t.Fatalf("fetch job: %v", err)
	}

	var sidecar *corev1.Container
	for i := range job.Spec.Template.Spec.Containers {
		if job.Spec.Template.Spec.Containers[i].Name == collectOutputsContainerName {
			sidecar = &job.Spec.Template.Spec.Containers[i]
		}
	}
	if sidecar == nil {
		t.Fatalf("containers = %v, want a %q sidecar", containerNames(job.Spec.Template.Spec.Containers), collectOutputsContainerName)
	}
	if got := envValue(sidecar.Env, "OUTPUT_SPEC"); got != rr.Spec.CliConfig["outputs"] {
		t.Fatalf("OUTPUT_SPEC = %q, want the cli_config outputs document", got)
	}
}

func TestReconcile_ContextURLAddsURLFetchInitContainer(t *testing.T) {
	rr := testRunRequest()
	rr.Spec.CliConfig["contextUrl"] = "https://api.example.com/openapi.yaml"
	m, c := testManager(t)

	result, err := m.Reconcile(context.Background(), rr, testCliConfig(), "#!/bin/bash\nclaude-code\n")
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	job := &batchv1.Job{}
	if err := c.Get(context.Background(), types.NamespacedName{Namespace: "default", Name: result.JobName}, job); err != nil {
		t.Fatalf("fetch job: %v", err)
	}

	inits := job.Spec.Template.Spec.InitContainers
	if len(inits) == 0 || inits[0].Name != urlFetchContainerName {
		t.Fatalf("init containers = %v, want %q first", containerNames(inits), urlFetchContainerName)
	}
	if got := envValue(inits[0].Env, "URL_SOURCE"); got != "https://api.example.com/openapi.yaml" {
		t.Fatalf("URL_SOURCE = %q, want the contextUrl value", got)
	}
	if got := envValue(inits[0].Env, "URL_TARGET"); got != "/workspace/docs-context/source.md" {
		t.Fatalf("URL_TARGET = %q, want the default context target", got)
	}
}

func containerNames(containers []corev1.Container) []string {
	names := make([]string, len(containers))
	for i, c := range containers {
		names[i] = c.Name
	}
	return names
}

func envValue(env []corev1.EnvVar, name string) string {
	for _, e := range env {
		if e.Name == name {
			return e.Value
		}
	}
	return ""
}
