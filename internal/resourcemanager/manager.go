// Copyright Contributors to the KubeOpenCode project

package resourcemanager

import (
	"context"
	"fmt"
	"strings"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/5dlabs/agentctl/api/v1alpha1"
	"github.com/5dlabs/agentctl/internal/bridge"
	"github.com/5dlabs/agentctl/internal/naming"
	"github.com/5dlabs/agentctl/internal/tracing"
)

// Images configures the container images the resource manager stamps into
// every Job it builds. Supplied once at process startup from flags/env, not
// per-RunRequest.
type Images struct {
	Agent   string
	Sidecar string
	Tools   string
}

// Result reports the names of the objects a Reconcile call ensured exist,
// mirroring RunRequestStatus's JobName/ConfigMapName/ServiceName fields.
type Result struct {
	ConfigMapName string
	JobName       string
	ServiceName   string
	JobOwnerRef   metav1.OwnerReference
}

// Manager is the resource manager: given a RunRequest, it
// reconciles the ConfigMap, Job, optional headless Service, and (for
// docs-style runs) the shared workspace PVC that make up that run's desired
// state. Reconcile is idempotent across arbitrary crash/restart cycles and
// safe under concurrent reconcilers.
type Manager struct {
	Client        client.Client
	Bridge        *bridge.Bridge
	Images        Images
	BridgeEnabled bool
}

// NewManager constructs a Manager.
func NewManager(c client.Client, b *bridge.Bridge, images Images, bridgeEnabled bool) *Manager {
	return &Manager{Client: c, Bridge: b, Images: images, BridgeEnabled: bridgeEnabled}
}

// Reconcile runs the four-step reconcile protocol (ConfigMap, Job,
// ConfigMap owner patch, Service) for a single RunRequest.
func (m *Manager) Reconcile(ctx context.Context, rr *v1alpha1.RunRequest, cliConfig bridge.UniversalConfig, entrypoint string) (Result, error) {
	ctx, span := tracing.Start(ctx, "resourcemanager.Reconcile")
	defer span.End()

	cliKind := rr.Spec.CliConfig["cli"]
	translation, err := m.Bridge.Translate(cliKind, cliConfig)
	if err != nil {
		return Result{}, fmt.Errorf("resource manager: translate config for %q: %w", cliKind, err)
	}

	cmName := configMapName(rr)
	if err := m.reconcileConfigMap(ctx, rr, cmName, translation, entrypoint); err != nil {
		return Result{}, err
	}

	var workspaceVolume corev1.Volume
	if rr.Spec.RunType == v1alpha1.RunTypeDocs {
		pvcName := workspacePVCName(rr.Spec.WorkingDirectory)
		if err := m.ensureWorkspacePVC(ctx, rr.Namespace, pvcName); err != nil {
			return Result{}, err
		}
		workspaceVolume = corev1.Volume{
			Name: workspaceVolumeName,
			VolumeSource: corev1.VolumeSource{
				PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{ClaimName: pvcName},
			},
		}
	} else {
		workspaceVolume = corev1.Volume{
			Name:         workspaceVolumeName,
			VolumeSource: corev1.VolumeSource{EmptyDir: &corev1.EmptyDirVolumeSource{}},
		}
	}

	if rr.Spec.ContinueSession {
		pvcName := sessionPVCName(githubIdentityFor(rr))
		if err := m.ensureSessionPVC(ctx, rr.Namespace, pvcName); err != nil {
			return Result{}, err
		}
	}

	jobName := rr.Status.JobName
	if jobName == "" {
		jobName = naming.JobName(namingInput(rr))
	}

	ownerRef, err := m.reconcileJob(ctx, rr, jobName, cmName, workspaceVolume, translation)
	if err != nil {
		return Result{}, err
	}

	if err := m.patchConfigMapOwner(ctx, rr.Namespace, cmName, ownerRef); err != nil {
		return Result{}, err
	}

	result := Result{ConfigMapName: cmName, JobName: jobName, JobOwnerRef: ownerRef}

	if m.BridgeEnabled {
		svcName := naming.ServiceName(namingInput(rr), jobName)
		if err := m.reconcileService(ctx, rr, svcName, jobName); err != nil {
			return Result{}, err
		}
		result.ServiceName = svcName
	}

	return result, nil
}

// reconcileConfigMap is protocol step 1: create, and on 409 fetch the
// existing object's resourceVersion and attempt a replace. A replace
// failure is tolerated — the ConfigMap name is deterministic, so the
// existing object is already the one every future reconcile will find.
func (m *Manager) reconcileConfigMap(ctx context.Context, rr *v1alpha1.RunRequest, name string, translation bridge.TranslationResult, entrypoint string) error {
	desired := buildConfigMap(rr, name, translation, entrypoint)

	err := m.Client.Create(ctx, desired)
	if err == nil {
		return nil
	}
	if !apierrors.IsAlreadyExists(err) {
		return fmt.Errorf("resource manager: create configmap %q: %w", name, err)
	}

	existing := &corev1.ConfigMap{}
	if getErr := m.Client.Get(ctx, types.NamespacedName{Namespace: rr.Namespace, Name: name}, existing); getErr != nil {
		return fmt.Errorf("resource manager: fetch existing configmap %q after conflict: %w", name, getErr)
	}
	desired.ResourceVersion = existing.ResourceVersion
	desired.OwnerReferences = existing.OwnerReferences
	if updateErr := m.Client.Update(ctx, desired); updateErr != nil {
		return nil //nolint:nilerr // create-only fallback: the deterministic name keeps the existing object usable.
	}
	return nil
}

// reconcileJob is protocol step 2: precheck by Job name. Whether the
// existing Job already has pods or the Job controller hasn't scheduled any
// yet, a present Job is always adopted rather than recreated — only a
// truly absent Job is created.
func (m *Manager) reconcileJob(ctx context.Context, rr *v1alpha1.RunRequest, jobName, cmName string, workspaceVolume corev1.Volume, translation bridge.TranslationResult) (metav1.OwnerReference, error) {
	existing := &batchv1.Job{}
	getErr := m.Client.Get(ctx, types.NamespacedName{Namespace: rr.Namespace, Name: jobName}, existing)
	if getErr == nil {
		return ownerRefFor(existing), nil
	}
	if !apierrors.IsNotFound(getErr) {
		return metav1.OwnerReference{}, fmt.Errorf("resource manager: fetch job %q: %w", jobName, getErr)
	}

	desired := buildJob(rr, jobName, cmName, m.Images.Agent, workspaceVolume, m.BridgeEnabled, m.Images.Sidecar, m.Images.Tools, translation)
	if err := m.Client.Create(ctx, desired); err != nil {
		if apierrors.IsAlreadyExists(err) {
			adopted := &batchv1.Job{}
			if getErr2 := m.Client.Get(ctx, types.NamespacedName{Namespace: rr.Namespace, Name: jobName}, adopted); getErr2 != nil {
				return metav1.OwnerReference{}, fmt.Errorf("resource manager: fetch job %q after create conflict: %w", jobName, getErr2)
			}
			return ownerRefFor(adopted), nil
		}
		return metav1.OwnerReference{}, fmt.Errorf("resource manager: create job %q: %w", jobName, err)
	}
	return ownerRefFor(desired), nil
}

func ownerRefFor(job *batchv1.Job) metav1.OwnerReference {
	return *metav1.NewControllerRef(job, batchv1.SchemeGroupVersion.WithKind("Job"))
}

// patchConfigMapOwner is protocol step 3: once the Job is known to
// exist, make it the ConfigMap's owner so Job deletion garbage-collects the
// ConfigMap.
func (m *Manager) patchConfigMapOwner(ctx context.Context, namespace, cmName string, jobOwnerRef metav1.OwnerReference) error {
	cm := &corev1.ConfigMap{}
	if err := m.Client.Get(ctx, types.NamespacedName{Namespace: namespace, Name: cmName}, cm); err != nil {
		return fmt.Errorf("resource manager: fetch configmap %q for owner patch: %w", cmName, err)
	}
	for _, ref := range cm.OwnerReferences {
		if ref.UID == jobOwnerRef.UID && jobOwnerRef.UID != "" {
			return nil
		}
	}
	patched := cm.DeepCopy()
	patched.OwnerReferences = append(patched.OwnerReferences, jobOwnerRef)
	if err := m.Client.Update(ctx, patched); err != nil {
		return fmt.Errorf("resource manager: patch configmap %q owner reference: %w", cmName, err)
	}
	return nil
}

// ensureWorkspacePVC creates the PVC on 404, accepts a 409 as
// benign (created concurrently), propagate anything else.
func (m *Manager) ensureWorkspacePVC(ctx context.Context, namespace, name string) error {
	existing := &corev1.PersistentVolumeClaim{}
	err := m.Client.Get(ctx, types.NamespacedName{Namespace: namespace, Name: name}, existing)
	if err == nil {
		return nil
	}
	if !apierrors.IsNotFound(err) {
		return fmt.Errorf("resource manager: fetch workspace pvc %q: %w", name, err)
	}
	desired := buildWorkspacePVC(namespace, name)
	if createErr := m.Client.Create(ctx, desired); createErr != nil && !apierrors.IsAlreadyExists(createErr) {
		return fmt.Errorf("resource manager: create workspace pvc %q: %w", name, createErr)
	}
	return nil
}

// ensureSessionPVC creates the ContinueSession PVC the save-session sidecar
// writes to, on the same create-on-404/tolerate-409 contract as
// ensureWorkspacePVC.
func (m *Manager) ensureSessionPVC(ctx context.Context, namespace, name string) error {
	existing := &corev1.PersistentVolumeClaim{}
	err := m.Client.Get(ctx, types.NamespacedName{Namespace: namespace, Name: name}, existing)
	if err == nil {
		return nil
	}
	if !apierrors.IsNotFound(err) {
		return fmt.Errorf("resource manager: fetch session pvc %q: %w", name, err)
	}
	desired := buildSessionPVC(namespace, name)
	if createErr := m.Client.Create(ctx, desired); createErr != nil && !apierrors.IsAlreadyExists(createErr) {
		return fmt.Errorf("resource manager: create session pvc %q: %w", name, createErr)
	}
	return nil
}

// reconcileService is protocol step 4: create on absence; on 409,
// fetch and replace preserving resourceVersion.
func (m *Manager) reconcileService(ctx context.Context, rr *v1alpha1.RunRequest, svcName, jobName string) error {
	desired := buildService(rr, svcName, jobName)
	err := m.Client.Create(ctx, desired)
	if err == nil {
		return nil
	}
	if !apierrors.IsAlreadyExists(err) {
		return fmt.Errorf("resource manager: create service %q: %w", svcName, err)
	}
	existing := &corev1.Service{}
	if getErr := m.Client.Get(ctx, types.NamespacedName{Namespace: rr.Namespace, Name: svcName}, existing); getErr != nil {
		return fmt.Errorf("resource manager: fetch existing service %q after conflict: %w", svcName, getErr)
	}
	desired.ResourceVersion = existing.ResourceVersion
	desired.Spec.ClusterIP = existing.Spec.ClusterIP
	if updateErr := m.Client.Update(ctx, desired); updateErr != nil {
		return fmt.Errorf("resource manager: replace service %q: %w", svcName, updateErr)
	}
	return nil
}

// CleanupStaleConfigMaps sweeps superseded per-run ConfigMaps. The shared
// labels identify a class of run (service, repository, run type)
// but not a single RunRequest instance across context_version bumps, so
// staleness is instead determined from the deterministic name itself: every
// ConfigMap sharing this RunRequest's <role>-<ns>-<name>-<uid8> prefix is a
// candidate, and every candidate except the current version and any
// version still owned by a running Job is deleted.
func (m *Manager) CleanupStaleConfigMaps(ctx context.Context, rr *v1alpha1.RunRequest) error {
	currentName := configMapName(rr)
	prefix := configMapNamePrefix(rr)

	var cms corev1.ConfigMapList
	if err := m.Client.List(ctx, &cms, client.InNamespace(rr.Namespace)); err != nil {
		return fmt.Errorf("resource manager: list configmaps for cleanup: %w", err)
	}

	for i := range cms.Items {
		cm := &cms.Items[i]
		if cm.Name == currentName || !strings.HasPrefix(cm.Name, prefix) {
			continue
		}
		if ownedByRunningJob(ctx, m.Client, cm) {
			continue
		}
		if err := m.Client.Delete(ctx, cm); err != nil && !apierrors.IsNotFound(err) {
			return fmt.Errorf("resource manager: delete stale configmap %q: %w", cm.Name, err)
		}
	}
	return nil
}

func ownedByRunningJob(ctx context.Context, c client.Client, cm *corev1.ConfigMap) bool {
	for _, ref := range cm.OwnerReferences {
		if ref.Kind != "Job" {
			continue
		}
		job := &batchv1.Job{}
		if err := c.Get(ctx, types.NamespacedName{Namespace: cm.Namespace, Name: ref.Name}, job); err != nil {
			continue
		}
		if job.Status.Succeeded == 0 && job.Status.Failed == 0 {
			return true
		}
	}
	return false
}
