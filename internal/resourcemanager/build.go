// Copyright Contributors to the KubeOpenCode project

// Package resourcemanager reconciles a run's Kubernetes footprint: given a
// RunRequest (optionally resolved against a RunTemplate), it reconciles
// the ConfigMap, Job, headless Service, and workspace PVC that make up
// that run's desired state, idempotently across crash/restart cycles and
// concurrent reconcilers.
package resourcemanager

import (
	"encoding/json"
	"fmt"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"

	"github.com/5dlabs/agentctl/api/v1alpha1"
	"github.com/5dlabs/agentctl/internal/bridge"
	"github.com/5dlabs/agentctl/internal/naming"
)

const (
	taskFilesMountPath   = "/task-files"
	agentsConfigMapName  = "controller-agents"
	agentsConfigMapMount = "/config/agents"
	workspaceVolumeName  = "workspace"
	workspaceMountPath   = "/workspace"
	sshKeyVolumeName     = "github-ssh-key"
	sshKeyMountPath      = "/home/node/.ssh"
	homeVolumeName       = "home"
	homeMountPath        = "/home/node"

	bridgeSidecarName     = "sidecar"
	bridgeSidecarPort     = 8080
	agentInputJSONLPath   = "/workspace/agent-input.jsonl"
	defaultPVCSizeGi      = "5Gi"
	docsStorageClassLocal = "local-path"

	gitInitContainerName        = "git-init"
	contextInitContainerName    = "context-init"
	saveSessionContainerName    = "save-session"
	urlFetchContainerName       = "url-fetch"
	collectOutputsContainerName = "collect-outputs"

	sessionVolumeName = "session"
	sessionMountPath  = "/session"
	signalVolumeName  = "signal"
	signalMountPath   = "/signal"
	signalFilePath    = "/signal/.agent-done"
)

func boolPtr(b bool) *bool    { return &b }
func int32Ptr(i int32) *int32 { return &i }
func int64Ptr(i int64) *int64 { return &i }

// roleForRunType returns the component label / ConfigMap-name role
// token for a RunRequest's run_type (and, for watch runs, its watchRole).
func roleForRunType(runType v1alpha1.RunType, watchRole string) string {
	switch runType {
	case v1alpha1.RunTypeImplementation:
		return "coderun"
	case v1alpha1.RunTypeReview:
		return "review"
	case v1alpha1.RunTypeRemediate:
		return "remediate"
	case v1alpha1.RunTypeDocs:
		return "docs-generator"
	case v1alpha1.RunTypeWatch:
		if watchRole == "heal" {
			return "remediation"
		}
		return "monitor"
	default:
		return "coderun"
	}
}

// namingInput derives the internal/naming.Input for a RunRequest.
func namingInput(rr *v1alpha1.RunRequest) naming.Input {
	githubApp := ""
	if rr.Spec.GithubApp != nil {
		githubApp = *rr.Spec.GithubApp
	}
	return naming.Input{
		RunType:   string(rr.Spec.RunType),
		TaskID:    rr.Spec.TaskID,
		PRLabel:   rr.Labels[v1alpha1.LabelPRNumber],
		PREnv:     rr.Spec.Env["PR_NUMBER"],
		GithubApp: githubApp,
		Model:     rr.Spec.Model,
		CliKind:   rr.Spec.CliConfig["cli"],
		WatchRole: rr.Spec.CliConfig["watchRole"],
		UID:       string(rr.UID),
		Version:   rr.Spec.ContextVersion,
	}
}

// configMapName derives the deterministic per-run ConfigMap name:
// <role>-<ns>-<name>-<uid8>-v<ver>-files.
func configMapName(rr *v1alpha1.RunRequest) string {
	in := namingInput(rr)
	ver := in.Version
	if ver == 0 {
		ver = 1
	}
	raw := fmt.Sprintf("%s-%s-%s-%s-v%d-files",
		roleForRunType(rr.Spec.RunType, in.WatchRole),
		naming.SanitizeName(rr.Namespace),
		naming.SanitizeName(rr.Name),
		uid8(string(rr.UID)),
		ver,
	)
	return naming.Truncate63(naming.SanitizeName(raw))
}

// configMapNamePrefix returns the version-independent prefix shared by
// every ConfigMap generated across this RunRequest's context_version
// bumps: <role>-<ns>-<name>-<uid8>-v.
func configMapNamePrefix(rr *v1alpha1.RunRequest) string {
	in := namingInput(rr)
	raw := fmt.Sprintf("%s-%s-%s-%s-v",
		roleForRunType(rr.Spec.RunType, in.WatchRole),
		naming.SanitizeName(rr.Namespace),
		naming.SanitizeName(rr.Name),
		uid8(string(rr.UID)),
	)
	return naming.SanitizeName(raw)
}

func uid8(uid string) string {
	if uid == "" {
		return "unknown"
	}
	if len(uid) > 8 {
		return uid[:8]
	}
	return uid
}

// workspacePVCName derives the shared docs-workspace PVC name.
func workspacePVCName(workingDirectory string) string {
	return naming.Truncate63("docs-workspace-" + naming.SanitizeName(workingDirectory))
}

// sessionPVCName derives the PVC name a ContinueSession run's save-session
// sidecar writes to, keyed by github identity so every RunRequest from that
// identity persists to the same volume.
func sessionPVCName(githubIdentity string) string {
	return naming.Truncate63("agent-session-" + naming.SanitizeLabel(githubIdentity))
}

// githubIdentityFor returns the identity (GithubApp preferred over
// GithubUser) a RunRequest runs as, used both for the github-identity label
// and to key the session PVC.
func githubIdentityFor(rr *v1alpha1.RunRequest) string {
	identity := rr.Spec.GithubUser
	if rr.Spec.GithubApp != nil && *rr.Spec.GithubApp != "" {
		v := *rr.Spec.GithubApp
		identity = &v
	}
	if identity == nil {
		return ""
	}
	return *identity
}

// commonLabels builds the label set shared by every managed object.
// project-name prefers working_directory, falling back to service when the
// former is unset (docs-style runs key the shared workspace PVC off
// working_directory, so it is the more specific identity when present).
func commonLabels(rr *v1alpha1.RunRequest, component string) map[string]string {
	githubIdentity := githubIdentityFor(rr)
	projectName := rr.Spec.WorkingDirectory
	if projectName == "" {
		projectName = rr.Spec.Service
	}
	return map[string]string{
		"app":             "controller",
		"component":       component,
		"project-name":    naming.SanitizeLabel(projectName),
		"github-identity": naming.SanitizeLabel(githubIdentity),
		"context-version": fmt.Sprintf("%d", rr.Spec.ContextVersion),
		"job-type":        string(rr.Spec.RunType),
		"repository":      naming.SanitizeLabel(rr.Spec.RepositoryURL),
	}
}

// buildConfigMap builds the desired ConfigMap: every template artifact the
// Job will mount at /task-files, including the config bridge's translated
// files for the run's target CLI.
func buildConfigMap(rr *v1alpha1.RunRequest, name string, translation bridge.TranslationResult, entrypoint string) *corev1.ConfigMap {
	data := map[string]string{
		"container.sh": entrypoint,
	}
	for _, f := range translation.ConfigFiles {
		data[naming.SanitizeName(f.Path)+".conf"] = f.Content
	}

	labels := commonLabels(rr, roleForRunType(rr.Spec.RunType, rr.Spec.CliConfig["watchRole"]))

	return &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: rr.Namespace,
			Labels:    labels,
		},
		Data: data,
	}
}

// buildWorkspacePVC builds the shared, reused docs workspace PVC.
func buildWorkspacePVC(namespace, name string) *corev1.PersistentVolumeClaim {
	return buildPVC(namespace, name)
}

// buildSessionPVC builds the shared, reused ContinueSession PVC save-session
// writes to.
func buildSessionPVC(namespace, name string) *corev1.PersistentVolumeClaim {
	return buildPVC(namespace, name)
}

func buildPVC(namespace, name string) *corev1.PersistentVolumeClaim {
	storageClass := docsStorageClassLocal
	return &corev1.PersistentVolumeClaim{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
		},
		Spec: corev1.PersistentVolumeClaimSpec{
			AccessModes:      []corev1.PersistentVolumeAccessMode{corev1.ReadWriteOnce},
			StorageClassName: &storageClass,
			Resources: corev1.VolumeResourceRequirements{
				Requests: corev1.ResourceList{
					corev1.ResourceStorage: resource.MustParse(defaultPVCSizeGi),
				},
			},
		},
	}
}

// contextInitFileMapping mirrors cmd/controller/context_init.go's
// FileMapping wire shape: context-init reads this JSON from FILE_MAPPINGS to
// learn which ConfigMap key ("<sanitized-path>.conf") belongs at which
// absolute target path.
type contextInitFileMapping struct {
	Key        string `json:"key"`
	TargetPath string `json:"targetPath"`
}

// fileMappingsJSON renders the FILE_MAPPINGS env value for context-init from
// the config bridge's translated files, keyed the same way
// buildConfigMap keys the ConfigMap itself.
func fileMappingsJSON(translation bridge.TranslationResult) string {
	mappings := make([]contextInitFileMapping, 0, len(translation.ConfigFiles))
	for _, f := range translation.ConfigFiles {
		mappings = append(mappings, contextInitFileMapping{
			Key:        naming.SanitizeName(f.Path) + ".conf",
			TargetPath: f.Path,
		})
	}
	encoded, err := json.Marshal(mappings)
	if err != nil {
		return "[]"
	}
	return string(encoded)
}

// buildJob builds the desired Job. toolsImage carries both
// the agentctl-tools binary (git-init, save-session) and the agentctl
// binary's own context-init subcommand, so one init-container image serves
// all three without the resource manager needing to track the controller's
// own release image separately from the agent image it stamps everywhere
// else.
func buildJob(rr *v1alpha1.RunRequest, jobName, configMapRef string, image string, workspaceVolume corev1.Volume, bridgeEnabled bool, sidecarImage string, toolsImage string, translation bridge.TranslationResult) *batchv1.Job {
	labels := commonLabels(rr, roleForRunType(rr.Spec.RunType, rr.Spec.CliConfig["watchRole"]))
	labels[v1alpha1.LabelJobName] = jobName

	var envVars []corev1.EnvVar
	for k, v := range rr.Spec.Env {
		envVars = append(envVars, corev1.EnvVar{Name: k, Value: v})
	}
	var envFrom []corev1.EnvFromSource
	for _, ref := range rr.Spec.EnvFromSecrets {
		envVars = append(envVars, corev1.EnvVar{
			Name: ref.Name,
			ValueFrom: &corev1.EnvVarSource{
				SecretKeyRef: &ref.SecretKeyRef,
			},
		})
	}

	if rr.Spec.GithubApp != nil && *rr.Spec.GithubApp != "" {
		credsSecret := naming.SanitizeName(*rr.Spec.GithubApp) + "-creds"
		envFrom = append(envFrom, corev1.EnvFromSource{
			SecretRef: &corev1.SecretEnvSource{LocalObjectReference: corev1.LocalObjectReference{Name: credsSecret}},
		})
	}

	volumes := []corev1.Volume{
		{
			Name: "task-files",
			VolumeSource: corev1.VolumeSource{
				ConfigMap: &corev1.ConfigMapVolumeSource{
					LocalObjectReference: corev1.LocalObjectReference{Name: configMapRef},
				},
			},
		},
		{
			Name: "agents-config",
			VolumeSource: corev1.VolumeSource{
				ConfigMap: &corev1.ConfigMapVolumeSource{
					LocalObjectReference: corev1.LocalObjectReference{Name: agentsConfigMapName},
					Optional:             boolPtr(true),
				},
			},
		},
		workspaceVolume,
		{
			Name:         homeVolumeName,
			VolumeSource: corev1.VolumeSource{EmptyDir: &corev1.EmptyDirVolumeSource{}},
		},
	}
	volumeMounts := []corev1.VolumeMount{
		{Name: "task-files", MountPath: taskFilesMountPath},
		{Name: "agents-config", MountPath: agentsConfigMapMount},
		{Name: workspaceVolumeName, MountPath: workspaceMountPath},
		{Name: homeVolumeName, MountPath: homeMountPath},
	}

	if rr.Spec.GithubApp == nil && rr.Spec.GithubUser != nil {
		sshSecret := naming.SanitizeName(*rr.Spec.GithubUser) + "-ssh-key"
		volumes = append(volumes, corev1.Volume{
			Name: sshKeyVolumeName,
			VolumeSource: corev1.VolumeSource{
				Secret: &corev1.SecretVolumeSource{SecretName: sshSecret, DefaultMode: int32Ptr(0o600)},
			},
		})
		volumeMounts = append(volumeMounts, corev1.VolumeMount{Name: sshKeyVolumeName, MountPath: sshKeyMountPath, ReadOnly: true})
	}

	gitInitContainer := corev1.Container{
		Name:    gitInitContainerName,
		Image:   toolsImage,
		Command: []string{"agentctl-tools", "git-init"},
		Env: append([]corev1.EnvVar{
			{Name: "GIT_REPO", Value: rr.Spec.RepositoryURL},
		}, envVars...),
		EnvFrom:      envFrom,
		VolumeMounts: []corev1.VolumeMount{{Name: workspaceVolumeName, MountPath: workspaceMountPath}, {Name: homeVolumeName, MountPath: homeMountPath}},
	}

	contextInitContainer := corev1.Container{
		Name:    contextInitContainerName,
		Image:   toolsImage,
		Command: []string{"agentctl", "context-init"},
		Env: []corev1.EnvVar{
			{Name: "WORKSPACE_DIR", Value: workspaceMountPath},
			{Name: "CONFIGMAP_PATH", Value: taskFilesMountPath},
			{Name: "FILE_MAPPINGS", Value: fileMappingsJSON(translation)},
		},
		VolumeMounts: []corev1.VolumeMount{
			{Name: "task-files", MountPath: taskFilesMountPath, ReadOnly: true},
			{Name: workspaceVolumeName, MountPath: workspaceMountPath},
			{Name: homeVolumeName, MountPath: homeMountPath},
		},
	}

	fixPermsContainer := corev1.Container{
		Name:    "fix-workspace-perms",
		Image:   image,
		Command: []string{"sh", "-c", "chown -R 1000:1000 /workspace /home/node && chmod -R ug+rwX /workspace /home/node"},
		SecurityContext: &corev1.SecurityContext{
			RunAsUser: int64Ptr(0),
		},
		VolumeMounts: []corev1.VolumeMount{
			{Name: workspaceVolumeName, MountPath: workspaceMountPath},
			{Name: homeVolumeName, MountPath: homeMountPath},
		},
	}

	// Docs-style runs reuse a persistent workspace PVC across context_version
	// bumps (see workspacePVCName): a later run's target directory is not
	// empty, and git_init.go's clone requires one, so only clone on the
	// first (emptyDir-backed) kind of run.
	initContainers := []corev1.Container{contextInitContainer, fixPermsContainer}
	if rr.Spec.RunType != v1alpha1.RunTypeDocs {
		initContainers = []corev1.Container{gitInitContainer, contextInitContainer, fixPermsContainer}
	}

	// cli_config["contextUrl"] asks for a remote resource (an API spec, a
	// PRD export) to be fetched into the workspace before the agent starts.
	if contextURL := rr.Spec.CliConfig["contextUrl"]; contextURL != "" {
		target := rr.Spec.CliConfig["contextFile"]
		if target == "" {
			target = workspaceMountPath + "/docs-context/source.md"
		}
		initContainers = append([]corev1.Container{{
			Name:    urlFetchContainerName,
			Image:   toolsImage,
			Command: []string{"agentctl", "url-fetch"},
			Env: []corev1.EnvVar{
				{Name: "URL_SOURCE", Value: contextURL},
				{Name: "URL_TARGET", Value: target},
			},
			VolumeMounts: []corev1.VolumeMount{{Name: workspaceVolumeName, MountPath: workspaceMountPath}},
		}}, initContainers...)
	}

	if rr.Spec.ContinueSession {
		volumes = append(volumes, corev1.Volume{
			Name:         signalVolumeName,
			VolumeSource: corev1.VolumeSource{EmptyDir: &corev1.EmptyDirVolumeSource{}},
		})
		volumeMounts = append(volumeMounts, corev1.VolumeMount{Name: signalVolumeName, MountPath: signalMountPath})
	}

	mainContainer := corev1.Container{
		Name:         "agent",
		Image:        image,
		Command:      []string{"/bin/bash", taskFilesMountPath + "/container.sh"},
		Env:          envVars,
		EnvFrom:      envFrom,
		WorkingDir:   workspaceMountPath,
		VolumeMounts: volumeMounts,
	}

	containers := []corev1.Container{mainContainer}

	// cli_config["outputs"] is an OutputSpec JSON document; the
	// collect-outputs sidecar harvests the named workspace files into the
	// pod's termination log once the agent process exits.
	if outputSpec := rr.Spec.CliConfig["outputs"]; outputSpec != "" {
		containers = append(containers, corev1.Container{
			Name:    collectOutputsContainerName,
			Image:   toolsImage,
			Command: []string{"agentctl", "collect-outputs"},
			Env: []corev1.EnvVar{
				{Name: "WORKSPACE_DIR", Value: workspaceMountPath},
				{Name: "OUTPUT_SPEC", Value: outputSpec},
			},
			VolumeMounts: []corev1.VolumeMount{{Name: workspaceVolumeName, MountPath: workspaceMountPath}},
		})
	}

	if rr.Spec.ContinueSession {
		githubIdentity := githubIdentityFor(rr)
		volumes = append(volumes, corev1.Volume{
			Name: sessionVolumeName,
			VolumeSource: corev1.VolumeSource{
				PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{ClaimName: sessionPVCName(githubIdentity)},
			},
		})
		containers = append(containers, corev1.Container{
			Name:    saveSessionContainerName,
			Image:   toolsImage,
			Command: []string{"agentctl-tools", "save-session"},
			Env: []corev1.EnvVar{
				{Name: "SESSION_GITHUB_IDENTITY", Value: githubIdentity},
				{Name: "RUN_NAMESPACE", Value: rr.Namespace},
				{Name: "WORKSPACE_DIR", Value: workspaceMountPath},
				{Name: "PVC_MOUNT_PATH", Value: sessionMountPath},
				{Name: "SIGNAL_FILE", Value: signalFilePath},
			},
			VolumeMounts: []corev1.VolumeMount{
				{Name: workspaceVolumeName, MountPath: workspaceMountPath},
				{Name: sessionVolumeName, MountPath: sessionMountPath},
				{Name: signalVolumeName, MountPath: signalMountPath},
			},
		})
	}

	if bridgeEnabled {
		containers = append(containers, corev1.Container{
			Name:  bridgeSidecarName,
			Image: sidecarImage,
			Command: []string{
				"/bin/sh", "-c",
				fmt.Sprintf("tail -F %s", agentInputJSONLPath),
			},
			Ports: []corev1.ContainerPort{{Name: "http", ContainerPort: bridgeSidecarPort, Protocol: corev1.ProtocolTCP}},
			Lifecycle: &corev1.Lifecycle{
				PreStop: &corev1.LifecycleHandler{
					HTTPGet: &corev1.HTTPGetAction{Path: "/shutdown", Port: intstr.FromInt32(bridgeSidecarPort)},
				},
			},
			Resources: corev1.ResourceRequirements{
				Requests: corev1.ResourceList{
					corev1.ResourceCPU:    resource.MustParse("50m"),
					corev1.ResourceMemory: resource.MustParse("32Mi"),
				},
				Limits: corev1.ResourceList{
					corev1.ResourceCPU:    resource.MustParse("100m"),
					corev1.ResourceMemory: resource.MustParse("64Mi"),
				},
			},
			VolumeMounts: []corev1.VolumeMount{{Name: workspaceVolumeName, MountPath: workspaceMountPath}},
		})
	}

	fsGroupPolicy := corev1.FSGroupChangeOnRootMismatch
	podSpec := corev1.PodSpec{
		RestartPolicy:         corev1.RestartPolicyNever,
		ShareProcessNamespace: boolPtr(true),
		SecurityContext: &corev1.PodSecurityContext{
			RunAsUser:           int64Ptr(1000),
			RunAsGroup:          int64Ptr(1000),
			FSGroup:             int64Ptr(1000),
			FSGroupChangePolicy: &fsGroupPolicy,
		},
		InitContainers: initContainers,
		Containers:     containers,
		Volumes:        volumes,
	}

	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      jobName,
			Namespace: rr.Namespace,
			Labels:    labels,
			OwnerReferences: []metav1.OwnerReference{
				*metav1.NewControllerRef(rr, v1alpha1.GroupVersion.WithKind("RunRequest")),
			},
		},
		Spec: batchv1.JobSpec{
			BackoffLimit: int32Ptr(0),
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec:       podSpec,
			},
		},
	}
}

// buildService builds the headless input-bridge Service.
func buildService(rr *v1alpha1.RunRequest, serviceName, jobName string) *corev1.Service {
	labels := commonLabels(rr, roleForRunType(rr.Spec.RunType, rr.Spec.CliConfig["watchRole"]))
	labels[v1alpha1.LabelJobName] = jobName

	return &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:      serviceName,
			Namespace: rr.Namespace,
			Labels:    labels,
		},
		Spec: corev1.ServiceSpec{
			ClusterIP: corev1.ClusterIPNone,
			Selector:  map[string]string{v1alpha1.LabelJobName: jobName},
			Ports: []corev1.ServicePort{
				{Name: "http", Port: bridgeSidecarPort, TargetPort: intstr.FromInt32(bridgeSidecarPort), Protocol: corev1.ProtocolTCP},
			},
		},
	}
}
