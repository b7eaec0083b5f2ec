// Copyright Contributors to the KubeOpenCode project

package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/5dlabs/agentctl/api/v1alpha1"
	"github.com/5dlabs/agentctl/internal/adapter"
	"github.com/5dlabs/agentctl/internal/bridge"
	"github.com/5dlabs/agentctl/internal/capability"
	"github.com/5dlabs/agentctl/internal/quota"
	"github.com/5dlabs/agentctl/internal/resourcemanager"
)

const (
	// RunRequestFinalizer guards the stale-ConfigMap sweep: it runs
	// once more on a RunRequest marked for deletion, before the owner-ref
	// cascade removes the Job/ConfigMap/Service this controller created.
	RunRequestFinalizer = "agentctl.5dlabs.io/run-cleanup"

	// RunQueuedRequeueDelay bounds how often a Queued RunRequest rechecks
	// its template's concurrency cap and quota.
	RunQueuedRequeueDelay = 10 * time.Second

	runWorkspaceMountPath = "/workspace"

	// signalDirPath/signalFilePath must match the "signal" emptyDir the
	// resource manager mounts on both the main container and the
	// save-session sidecar (internal/resourcemanager.signalMountPath) when
	// ContinueSession is set.
	signalDirPath  = "/signal"
	signalFilePath = "/signal/.agent-done"
)

// RunRequestReconciler reconciles a RunRequest object. It is the
// orchestration point for every other component: it resolves a
// RunTemplate, consults the quota guard, dispenses a CLI adapter from the
// factory, drives the config bridge, and hands the result to the resource
// manager.
type RunRequestReconciler struct {
	client.Client
	Scheme *runtime.Scheme

	ResourceManager *resourcemanager.Manager
	QuotaGuard      *quota.Guard
	Bridge          *bridge.Bridge
	Adapters        *adapter.Factory
}

// +kubebuilder:rbac:groups=agentctl.5dlabs.io,resources=runrequests,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=agentctl.5dlabs.io,resources=runrequests/status,verbs=get;update;patch
// +kubebuilder:rbac:groups=agentctl.5dlabs.io,resources=runrequests/finalizers,verbs=update
// +kubebuilder:rbac:groups=agentctl.5dlabs.io,resources=runtemplates,verbs=get;list;watch
// +kubebuilder:rbac:groups=agentctl.5dlabs.io,resources=runtemplates/status,verbs=get;update;patch
// +kubebuilder:rbac:groups=batch,resources=jobs,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups="",resources=configmaps,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups="",resources=services,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups="",resources=persistentvolumeclaims,verbs=get;list;watch;create
// +kubebuilder:rbac:groups="",resources=pods,verbs=get;list;watch
// +kubebuilder:rbac:groups="",resources=secrets,verbs=get;list;watch

// Reconcile is part of the main kubernetes reconciliation loop.
func (r *RunRequestReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	log := log.FromContext(ctx)

	rr := &v1alpha1.RunRequest{}
	if err := r.Get(ctx, req.NamespacedName, rr); err != nil {
		if errors.IsNotFound(err) {
			return ctrl.Result{}, nil
		}
		log.Error(err, "unable to fetch RunRequest")
		return ctrl.Result{}, err
	}

	if !rr.DeletionTimestamp.IsZero() {
		return r.handleDeletion(ctx, rr)
	}

	if rr.Status.Phase == "" {
		return r.initializeRun(ctx, rr)
	}

	if rr.Status.Phase == v1alpha1.RunPhaseQueued {
		return r.handleQueuedRun(ctx, rr)
	}

	if rr.Status.Phase == v1alpha1.RunPhaseCompleted ||
		rr.Status.Phase == v1alpha1.RunPhaseFailed ||
		rr.Status.Phase == v1alpha1.RunPhaseCancelled {
		return ctrl.Result{}, nil
	}

	if rr.Status.Phase == v1alpha1.RunPhaseRunning {
		if rr.Annotations != nil && rr.Annotations[v1alpha1.AnnotationStop] == "true" {
			return r.handleStop(ctx, rr)
		}
	}

	if err := r.updateStatusFromJob(ctx, rr); err != nil {
		log.Error(err, "unable to update run request status")
		return ctrl.Result{}, err
	}

	return ctrl.Result{}, nil
}

// initializeRun resolves the RunRequest's template (if any), enforces its
// concurrency cap and start-rate quota, dispenses the target CLI's adapter,
// and hands the merged configuration to the resource manager.
func (r *RunRequestReconciler) initializeRun(ctx context.Context, rr *v1alpha1.RunRequest) (ctrl.Result, error) {
	log := log.FromContext(ctx)

	if !controllerutil.ContainsFinalizer(rr, RunRequestFinalizer) {
		controllerutil.AddFinalizer(rr, RunRequestFinalizer)
		if err := r.Update(ctx, rr); err != nil {
			log.Error(err, "unable to add finalizer")
			return ctrl.Result{}, err
		}
	}

	tmpl, mergedSpec, err := r.resolveRunTemplate(ctx, rr)
	if err != nil {
		log.Error(err, "unable to resolve RunTemplate")
		return r.failRun(ctx, rr, v1alpha1.ReasonRunTemplateError, err)
	}

	if tmpl != nil {
		queued, result, err := r.checkTemplateCapacity(ctx, rr, tmpl)
		if err != nil {
			return ctrl.Result{}, err
		}
		if queued {
			return result, nil
		}
	}

	cliKind := mergedSpec.CliConfig["cli"]
	a, ok := r.Adapters.Create(cliKind)
	if !ok {
		return r.failRun(ctx, rr, v1alpha1.ReasonValidationError, fmt.Errorf("unsupported cli kind %q", cliKind))
	}
	r.Adapters.WarnOnMinVersion(cliKind, mergedSpec.CliConfig["minVersion"])

	universalCfg, err := buildUniversalConfig(mergedSpec, a)
	if err != nil {
		return r.failRun(ctx, rr, v1alpha1.ReasonValidationError, err)
	}
	cmd, err := r.Bridge.Command(cliKind, universalCfg)
	if err != nil {
		return r.failRun(ctx, rr, v1alpha1.ReasonValidationError, err)
	}

	workingRR := rr.DeepCopy()
	workingRR.Spec = mergedSpec

	result, err := r.ResourceManager.Reconcile(ctx, workingRR, universalCfg, buildEntrypoint(cmd, mergedSpec.ContinueSession))
	if err != nil {
		log.Error(err, "resource manager reconcile failed")
		return r.failRun(ctx, rr, v1alpha1.ReasonJobCreationError, err)
	}

	now := metav1.Now()
	rr.Status.ObservedGeneration = rr.Generation
	rr.Status.Phase = v1alpha1.RunPhaseRunning
	rr.Status.JobName = result.JobName
	rr.Status.ConfigMapName = result.ConfigMapName
	rr.Status.ServiceName = result.ServiceName
	rr.Status.StartTime = &now
	meta.SetStatusCondition(&rr.Status.Conditions, metav1.Condition{
		Type:    v1alpha1.ConditionTypeReady,
		Status:  metav1.ConditionTrue,
		Reason:  "JobReconciled",
		Message: fmt.Sprintf("job %q reconciled", result.JobName),
	})
	if err := r.Status().Update(ctx, rr); err != nil {
		log.Error(err, "unable to update run request status")
		return ctrl.Result{}, err
	}

	if tmpl != nil {
		tmpl.Status.RunStartHistory = quota.RecordStart(tmpl.Status.RunStartHistory, rr, now.Time)
		if err := r.Status().Update(ctx, tmpl); err != nil {
			log.Error(err, "unable to record run start in runtemplate history")
		}
	}

	return ctrl.Result{}, nil
}

// checkTemplateCapacity evaluates tmpl's concurrency cap and quota against
// live cluster state. When either guard rejects the run, it transitions rr
// to RunPhaseQueued and reports queued=true with the ctrl.Result to return.
func (r *RunRequestReconciler) checkTemplateCapacity(ctx context.Context, rr *v1alpha1.RunRequest, tmpl *v1alpha1.RunTemplate) (queued bool, result ctrl.Result, err error) {
	allowed, err := r.QuotaGuard.CheckConcurrency(ctx, tmpl.Namespace, tmpl.Name, tmpl.Spec.MaxConcurrentRuns)
	if err != nil {
		return false, ctrl.Result{}, err
	}
	if !allowed {
		res, err := r.queueRun(ctx, rr, v1alpha1.ReasonAtCapacity, fmt.Sprintf("runtemplate %q at MaxConcurrentRuns", tmpl.Name))
		return true, res, err
	}

	if tmpl.Spec.Quota != nil {
		allowed, pruned := quota.AllowStart(tmpl.Status.RunStartHistory, tmpl.Spec.Quota, time.Now())
		tmpl.Status.RunStartHistory = pruned
		if updErr := r.Status().Update(ctx, tmpl); updErr != nil {
			log.FromContext(ctx).Error(updErr, "unable to persist pruned run start history")
		}
		if !allowed {
			res, err := r.queueRun(ctx, rr, v1alpha1.ReasonQuotaExceeded, fmt.Sprintf("runtemplate %q quota exceeded", tmpl.Name))
			return true, res, err
		}
	}

	return false, ctrl.Result{}, nil
}

// handleQueuedRun rechecks a Queued RunRequest's template capacity and
// quota, transitioning it back to the empty phase (re-triggering
// initializeRun) once both guards permit the run to start.
func (r *RunRequestReconciler) handleQueuedRun(ctx context.Context, rr *v1alpha1.RunRequest) (ctrl.Result, error) {
	log := log.FromContext(ctx)

	if rr.Spec.RunTemplateRef == nil {
		return r.unqueueRun(ctx, rr)
	}

	ref := rr.Spec.RunTemplateRef
	ns := ref.Namespace
	if ns == "" {
		ns = rr.Namespace
	}

	tmpl := &v1alpha1.RunTemplate{}
	if err := r.Get(ctx, types.NamespacedName{Namespace: ns, Name: ref.Name}, tmpl); err != nil {
		log.Error(err, "unable to fetch runtemplate for queued run")
		return r.failRun(ctx, rr, v1alpha1.ReasonRunTemplateError, err)
	}

	queued, _, err := r.checkTemplateCapacity(ctx, rr, tmpl)
	if err != nil {
		return ctrl.Result{}, err
	}
	if queued {
		log.V(1).Info("runtemplate still constrained, remaining queued", "template", tmpl.Name)
		return ctrl.Result{RequeueAfter: RunQueuedRequeueDelay}, nil
	}

	log.Info("capacity available, transitioning to initialize", "runrequest", rr.Name)
	return r.unqueueRun(ctx, rr)
}

func (r *RunRequestReconciler) unqueueRun(ctx context.Context, rr *v1alpha1.RunRequest) (ctrl.Result, error) {
	rr.Status.Phase = ""
	meta.SetStatusCondition(&rr.Status.Conditions, metav1.Condition{
		Type:    v1alpha1.ConditionTypeQueued,
		Status:  metav1.ConditionFalse,
		Reason:  v1alpha1.ReasonCapacityAvailable,
		Message: "capacity available",
	})
	if err := r.Status().Update(ctx, rr); err != nil {
		return ctrl.Result{}, err
	}
	return ctrl.Result{Requeue: true}, nil
}

func (r *RunRequestReconciler) queueRun(ctx context.Context, rr *v1alpha1.RunRequest, reason, message string) (ctrl.Result, error) {
	rr.Status.Phase = v1alpha1.RunPhaseQueued
	meta.SetStatusCondition(&rr.Status.Conditions, metav1.Condition{
		Type:    v1alpha1.ConditionTypeQueued,
		Status:  metav1.ConditionTrue,
		Reason:  reason,
		Message: message,
	})
	if err := r.Status().Update(ctx, rr); err != nil {
		return ctrl.Result{}, err
	}
	return ctrl.Result{RequeueAfter: RunQueuedRequeueDelay}, nil
}

func (r *RunRequestReconciler) failRun(ctx context.Context, rr *v1alpha1.RunRequest, reason string, cause error) (ctrl.Result, error) {
	rr.Status.ObservedGeneration = rr.Generation
	rr.Status.Phase = v1alpha1.RunPhaseFailed
	now := metav1.Now()
	rr.Status.CompletionTime = &now
	meta.SetStatusCondition(&rr.Status.Conditions, metav1.Condition{
		Type:    v1alpha1.ConditionTypeReady,
		Status:  metav1.ConditionFalse,
		Reason:  reason,
		Message: cause.Error(),
	})
	if err := r.Status().Update(ctx, rr); err != nil {
		return ctrl.Result{}, err
	}
	return ctrl.Result{}, nil
}

// handleStop handles a user-initiated stop via the agentctl.5dlabs.io/stop
// annotation. It deletes the Job, which terminates the running pod, and
// moves the RunRequest straight to RunPhaseCancelled rather than Completed
// (unlike a graceful exit, a stop is never mistaken for a successful run).
func (r *RunRequestReconciler) handleStop(ctx context.Context, rr *v1alpha1.RunRequest) (ctrl.Result, error) {
	log := log.FromContext(ctx)
	log.Info("user-initiated stop detected", "runrequest", rr.Name)

	if rr.Status.JobName != "" {
		job := &batchv1.Job{}
		jobKey := types.NamespacedName{Name: rr.Status.JobName, Namespace: rr.Namespace}
		if err := r.Get(ctx, jobKey, job); err == nil {
			background := metav1.DeletePropagationBackground
			if err := r.Delete(ctx, job, &client.DeleteOptions{PropagationPolicy: &background}); err != nil && !errors.IsNotFound(err) {
				log.Error(err, "failed to delete job")
				return ctrl.Result{}, err
			}
			log.Info("deleted job for stopped run", "job", rr.Status.JobName)
		}
	}

	rr.Status.Phase = v1alpha1.RunPhaseCancelled
	rr.Status.ObservedGeneration = rr.Generation
	now := metav1.Now()
	rr.Status.CompletionTime = &now

	meta.SetStatusCondition(&rr.Status.Conditions, metav1.Condition{
		Type:    v1alpha1.ConditionTypeStopped,
		Status:  metav1.ConditionTrue,
		Reason:  v1alpha1.ReasonUserStopped,
		Message: "run stopped by user via agentctl.5dlabs.io/stop annotation",
	})

	if err := r.Status().Update(ctx, rr); err != nil {
		log.Error(err, "failed to update run request status")
		return ctrl.Result{}, err
	}

	return ctrl.Result{}, nil
}

// handleDeletion runs the stale-ConfigMap sweep one last time, then
// releases the finalizer. The current Job/ConfigMap/Service are owner-ref
// linked to the RunRequest (directly or transitively via the Job), so they
// cascade-delete once the finalizer is gone; only the orphaned
// previous-version ConfigMaps the sweep targets need an explicit pass.
func (r *RunRequestReconciler) handleDeletion(ctx context.Context, rr *v1alpha1.RunRequest) (ctrl.Result, error) {
	log := log.FromContext(ctx)

	if !controllerutil.ContainsFinalizer(rr, RunRequestFinalizer) {
		return ctrl.Result{}, nil
	}

	if err := r.ResourceManager.CleanupStaleConfigMaps(ctx, rr); err != nil {
		log.Error(err, "failed to clean up stale configmaps before deletion")
		return ctrl.Result{}, err
	}

	controllerutil.RemoveFinalizer(rr, RunRequestFinalizer)
	if err := r.Update(ctx, rr); err != nil {
		log.Error(err, "failed to remove finalizer")
		return ctrl.Result{}, err
	}

	return ctrl.Result{}, nil
}

// updateStatusFromJob mirrors the Job's terminal state onto the
// RunRequest: RunPhaseCompleted on a successful pod, RunPhaseFailed
// otherwise, and the Job's pod name once scheduled.
func (r *RunRequestReconciler) updateStatusFromJob(ctx context.Context, rr *v1alpha1.RunRequest) error {
	log := log.FromContext(ctx)

	if rr.Status.JobName == "" {
		return nil
	}

	job := &batchv1.Job{}
	jobKey := types.NamespacedName{Name: rr.Status.JobName, Namespace: rr.Namespace}
	if err := r.Get(ctx, jobKey, job); err != nil {
		if errors.IsNotFound(err) {
			log.Error(err, "job not found", "job", rr.Status.JobName)
			return nil
		}
		return err
	}

	changed := false
	if rr.Status.PodName == "" {
		pods := &corev1.PodList{}
		if err := r.List(ctx, pods, client.InNamespace(rr.Namespace), client.MatchingLabels{v1alpha1.LabelJobName: job.Name}); err == nil && len(pods.Items) > 0 {
			rr.Status.PodName = pods.Items[0].Name
			changed = true
		}
	}

	switch {
	case job.Status.Succeeded > 0:
		rr.Status.ObservedGeneration = rr.Generation
		rr.Status.Phase = v1alpha1.RunPhaseCompleted
		now := metav1.Now()
		rr.Status.CompletionTime = &now
		log.Info("run completed", "job", job.Name)
		changed = true
	case job.Status.Failed > 0:
		rr.Status.ObservedGeneration = rr.Generation
		rr.Status.Phase = v1alpha1.RunPhaseFailed
		now := metav1.Now()
		rr.Status.CompletionTime = &now
		meta.SetStatusCondition(&rr.Status.Conditions, metav1.Condition{
			Type:    v1alpha1.ConditionTypeReady,
			Status:  metav1.ConditionFalse,
			Reason:  v1alpha1.ReasonJobFailed,
			Message: "job failed",
		})
		log.Info("run failed", "job", job.Name)
		changed = true
	}

	if !changed {
		return nil
	}
	return r.Status().Update(ctx, rr)
}

// resolveRunTemplate fetches rr's referenced RunTemplate (if any), checks
// the RunRequest's namespace against AllowedNamespaces, and returns the
// merged spec: RunTemplate fields are defaults, rr's own fields win on
// conflict, and CliConfig/Env are merged template-first per
// RunTemplateSpec's doc comment.
func (r *RunRequestReconciler) resolveRunTemplate(ctx context.Context, rr *v1alpha1.RunRequest) (*v1alpha1.RunTemplate, v1alpha1.RunRequestSpec, error) {
	merged := rr.Spec
	if rr.Spec.RunTemplateRef == nil {
		return nil, merged, nil
	}

	ref := rr.Spec.RunTemplateRef
	ns := ref.Namespace
	if ns == "" {
		ns = rr.Namespace
	}

	tmpl := &v1alpha1.RunTemplate{}
	if err := r.Get(ctx, types.NamespacedName{Namespace: ns, Name: ref.Name}, tmpl); err != nil {
		return nil, merged, fmt.Errorf("fetch runtemplate %s/%s: %w", ns, ref.Name, err)
	}
	if err := validateNamespaceAccess(tmpl.Spec.AllowedNamespaces, rr.Namespace); err != nil {
		return tmpl, merged, err
	}

	if merged.Model == "" {
		merged.Model = tmpl.Spec.Model
	}
	if merged.GithubApp == nil {
		merged.GithubApp = tmpl.Spec.GithubApp
	}
	if merged.WorkingDirectory == "" {
		merged.WorkingDirectory = tmpl.Spec.WorkingDirectory
	}
	if merged.RepositoryURL == "" {
		merged.RepositoryURL = tmpl.Spec.RepositoryURL
	}
	merged.CliConfig = mergeStringMaps(tmpl.Spec.CliConfig, merged.CliConfig)
	merged.Env = mergeStringMaps(tmpl.Spec.Env, merged.Env)
	if len(merged.EnvFromSecrets) == 0 {
		merged.EnvFromSecrets = tmpl.Spec.EnvFromSecrets
	}

	return tmpl, merged, nil
}

// mergeStringMaps merges base and override template-first: a key present
// in both keeps override's value.
func mergeStringMaps(base, override map[string]string) map[string]string {
	if len(base) == 0 {
		return override
	}
	merged := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}

// validateNamespaceAccess reports an error when namespace matches none of
// patterns. An empty pattern list permits every namespace.
func validateNamespaceAccess(patterns []string, namespace string) error {
	if len(patterns) == 0 {
		return nil
	}
	for _, p := range patterns {
		if ok, _ := path.Match(p, namespace); ok {
			return nil
		}
	}
	return fmt.Errorf("namespace %q not permitted by runtemplate allowedNamespaces %v", namespace, patterns)
}

// buildUniversalConfig assembles the CLI-agnostic configuration the config
// bridge translates, from the merged RunRequestSpec and the dispensed
// adapter's static capability facts. Tunables ride the free-form
// cli_config map under the keys its doc comment names; a malformed value
// is a validation error surfaced on the RunRequest status, never silently
// defaulted.
func buildUniversalConfig(spec v1alpha1.RunRequestSpec, a capability.Adapter) (bridge.UniversalConfig, error) {
	cc := spec.CliConfig

	cfg := bridge.UniversalConfig{
		Context: bridge.Context{
			ProjectName:        spec.WorkingDirectory,
			ProjectDescription: cc["projectDescription"],
			ArchitectureNotes:  cc["architectureNotes"],
		},
		Settings: bridge.Settings{
			Model:       spec.Model,
			SandboxMode: bridge.SandboxWorkspaceWrite,
		},
		Agent: bridge.Agent{
			Role:         string(spec.RunType),
			Capabilities: capabilityNames(a.Capabilities),
			Instructions: fmt.Sprintf("Execute a %s run for %s against %s.", spec.RunType, spec.Service, spec.RepositoryURL),
		},
	}

	if v, ok := cc["instructions"]; ok && v != "" {
		cfg.Agent.Instructions = v
	}
	if v, ok := cc["sandbox"]; ok && v != "" {
		mode := bridge.SandboxMode(v)
		switch mode {
		case bridge.SandboxReadOnly, bridge.SandboxWorkspaceWrite, bridge.SandboxDangerFullAccess:
			cfg.Settings.SandboxMode = mode
		default:
			return cfg, fmt.Errorf("cli_config sandbox %q: not one of read-only, workspace-write, danger-full-access", v)
		}
	}
	if v, ok := cc["temperature"]; ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("cli_config temperature %q: %w", v, err)
		}
		cfg.Settings.Temperature = f
	}
	if v, ok := cc["maxTokens"]; ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("cli_config maxTokens %q: %w", v, err)
		}
		cfg.Settings.MaxTokens = n
	}
	if v, ok := cc["timeoutSeconds"]; ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("cli_config timeoutSeconds %q: %w", v, err)
		}
		cfg.Settings.TimeoutSec = n
	}
	if v, ok := cc["constraints"]; ok && v != "" {
		if err := json.Unmarshal([]byte(v), &cfg.Context.Constraints); err != nil {
			return cfg, fmt.Errorf("cli_config constraints: %w", err)
		}
	}
	if v, ok := cc["tools"]; ok && v != "" {
		if err := json.Unmarshal([]byte(v), &cfg.Tools); err != nil {
			return cfg, fmt.Errorf("cli_config tools: %w", err)
		}
	}
	if v, ok := cc["mcpConfig"]; ok && v != "" {
		mcpCfg := &bridge.MCPConfig{}
		if err := json.Unmarshal([]byte(v), mcpCfg); err != nil {
			return cfg, fmt.Errorf("cli_config mcpConfig: %w", err)
		}
		cfg.MCPConfig = mcpCfg
	}

	return cfg, nil
}

func capabilityNames(c capability.Capabilities) []string {
	var names []string
	if c.SupportsStreaming {
		names = append(names, "streaming")
	}
	if c.SupportsMultimodal {
		names = append(names, "multimodal")
	}
	if c.SupportsFunctionCalling {
		names = append(names, "function-calling")
	}
	if c.SupportsSystemPrompts {
		names = append(names, "system-prompts")
	}
	return names
}

const entrypointTemplate = "#!/bin/bash\nset -euo pipefail\ncd %s\nexec %s\n"

// entrypointTemplateWithSignal is used instead of entrypointTemplate when
// ContinueSession is set: the save-session sidecar polls signalFilePath for
// this file's creation before it copies the workspace to the session PVC
// (mirrors cmd/tools/save_session.go's waitForSignal), so the command can no
// longer simply exec — it must run as a normal child so the script regains
// control to touch the signal file once it exits.
const entrypointTemplateWithSignal = "#!/bin/bash\nset -uo pipefail\ncd %s\n%s\nstatus=$?\nmkdir -p %s\ntouch %s\nexit $status\n"

// buildEntrypoint renders the container.sh script the resource manager
// mounts into the Job. With continueSession unset it simply execs the
// bridge's resolved command line from the workspace directory. With
// continueSession set it runs the command as a child instead, so it can
// touch the save-session sidecar's signal file on the way out regardless of
// the command's exit status.
func buildEntrypoint(cmd []string, continueSession bool) string {
	quoted := make([]string, len(cmd))
	for i, c := range cmd {
		quoted[i] = shellQuote(c)
	}
	joined := strings.Join(quoted, " ")
	if !continueSession {
		return fmt.Sprintf(entrypointTemplate, runWorkspaceMountPath, joined)
	}
	return fmt.Sprintf(entrypointTemplateWithSignal, runWorkspaceMountPath, joined, signalDirPath, signalFilePath)
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// SetupWithManager sets up the controller with the Manager.
func (r *RunRequestReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&v1alpha1.RunRequest{}).
		Owns(&batchv1.Job{}).
		Owns(&corev1.Service{}).
		Complete(r)
}
