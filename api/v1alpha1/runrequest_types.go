// Copyright Contributors to the KubeOpenCode project

package v1alpha1

import (
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// RunType selects which reconciliation path a RunRequest takes.
// +kubebuilder:validation:Enum=implementation;review;remediate;docs;watch
type RunType string

const (
	RunTypeImplementation RunType = "implementation"
	RunTypeReview         RunType = "review"
	RunTypeRemediate      RunType = "remediate"
	RunTypeDocs           RunType = "docs"
	RunTypeWatch          RunType = "watch"
)

// RunPhase represents the current phase of a RunRequest.
// +kubebuilder:validation:Enum=Pending;Queued;Running;Completed;Failed;Cancelled
type RunPhase string

const (
	// RunPhasePending means the run has not started yet.
	RunPhasePending RunPhase = "Pending"
	// RunPhaseQueued means the run is waiting for capacity (concurrency cap or
	// start-rate quota) on its RunTemplate.
	RunPhaseQueued RunPhase = "Queued"
	// RunPhaseRunning means the Job exists and has at least one pod.
	RunPhaseRunning RunPhase = "Running"
	// RunPhaseCompleted means the Job exited with code 0.
	RunPhaseCompleted RunPhase = "Completed"
	// RunPhaseFailed means the Job exited non-zero or could not be scheduled.
	RunPhaseFailed RunPhase = "Failed"
	// RunPhaseCancelled means the RunRequest was stopped via annotation or an
	// external stop signal routed through the remediation coordinator.
	RunPhaseCancelled RunPhase = "Cancelled"
)

const (
	// AnnotationStop, when set to "true", causes the reconciler to delete the
	// owned Job and move the RunRequest to RunPhaseCancelled.
	AnnotationStop = "agentctl.5dlabs.io/stop"

	// LabelPRNumber carries the originating pull request number, consulted by
	// the naming component before the PR_NUMBER environment variable.
	LabelPRNumber = "pr-number"

	// LabelJobName is the standard Job-controller pod label used to detect
	// Job adoption and to select the input-bridge Service.
	LabelJobName = "job-name"

	// LabelAgentKind surfaces which specialist or CLI produced a pod, read by
	// the behavior analyzer when inferring the acting agent.
	LabelAgentKind = "agents.platform/agent"
)

const (
	// ConditionTypeReady reports whether the RunRequest's Job is reconciled.
	ConditionTypeReady = "Ready"
	// ConditionTypeQueued reports that the run is waiting on capacity.
	ConditionTypeQueued = "Queued"
	// ConditionTypeStopped reports a user- or coordinator-initiated stop.
	ConditionTypeStopped = "Stopped"

	// ReasonRunTemplateError is the reason for RunTemplate resolution errors.
	ReasonRunTemplateError = "RunTemplateError"
	// ReasonValidationError is the reason for RunRequest validation errors.
	ReasonValidationError = "ValidationError"
	// ReasonAtCapacity is the reason a run is queued on a concurrency cap.
	ReasonAtCapacity = "AtCapacity"
	// ReasonQuotaExceeded is the reason a run is queued on a start-rate quota.
	ReasonQuotaExceeded = "QuotaExceeded"
	// ReasonNamespaceNotAllowed is the reason for a rejected cross-namespace
	// RunTemplate or capability reference.
	ReasonNamespaceNotAllowed = "NamespaceNotAllowed"
	// ReasonUserStopped is the reason for an annotation-driven stop.
	ReasonUserStopped = "UserStopped"
	// ReasonCapacityAvailable is the reason capacity freed up for a queued run.
	ReasonCapacityAvailable = "CapacityAvailable"
	// ReasonJobCreationError is the reason for Job creation failures.
	ReasonJobCreationError = "JobCreationError"
	// ReasonJobFailed is the reason a run's Job exited non-zero.
	ReasonJobFailed = "JobFailed"
	// ReasonConfigMapCreationError is the reason for ConfigMap creation failures.
	ReasonConfigMapCreationError = "ConfigMapCreationError"
)

// +genclient
// +k8s:deepcopy-gen:interfaces=k8s.io/apimachinery/pkg/runtime.Object
// +kubebuilder:subresource:status
// +kubebuilder:resource:scope="Namespaced",shortName=rr
// +kubebuilder:printcolumn:JSONPath=`.spec.runType`,name="Type",type=string
// +kubebuilder:printcolumn:JSONPath=`.status.phase`,name="Phase",type=string
// +kubebuilder:printcolumn:JSONPath=`.status.podName`,name="Pod",type=string
// +kubebuilder:printcolumn:JSONPath=`.metadata.creationTimestamp`,name="Age",type=date

// RunRequest is the declarative record of a single agent Job to launch.
// It is the primary API: task runs, docs runs, review/remediate/watch runs
// are all expressed as a RunRequest distinguished by runType.
type RunRequest struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	// Spec defines the desired run.
	Spec RunRequestSpec `json:"spec"`

	// Status represents the observed state of the run.
	// +optional
	Status RunRequestStatus `json:"status,omitempty"`
}

// EnvFromSecretSpec injects a single Secret key as an environment variable
// named Name into the Job's main container.
type EnvFromSecretSpec struct {
	// Name is the environment variable name set inside the container.
	// +required
	Name string `json:"name"`

	// SecretKeyRef selects the Secret key whose value becomes Name's value.
	// +required
	SecretKeyRef corev1.SecretKeySelector `json:"secretKeyRef"`
}

// RunTemplateReference identifies a RunTemplate to resolve defaults from.
// Supports cross-namespace references so platform teams can host shared
// templates outside the namespace a RunRequest is created in.
type RunTemplateReference struct {
	// Name of the RunTemplate.
	// +required
	Name string `json:"name"`

	// Namespace of the RunTemplate. Defaults to the RunRequest's namespace.
	// +optional
	Namespace string `json:"namespace,omitempty"`
}

// RunRequestSpec defines the desired state of a RunRequest.
//
// cli_config is intentionally free-form. Recognized keys:
//   - "cli": the target CLI kind for the config bridge.
//   - "template": the specialist prompt template name the remediation
//     coordinator sets; it is carried as-is and nothing resolves it.
//   - "watchRole": monitor vs heal, consulted by the naming component for
//     run_type=watch.
//   - "minVersion": semver hint compared against the adapter's known CLI
//     version; an unmet hint records a Warning health state, never a
//     rejection.
//   - "sandbox", "temperature", "maxTokens", "timeoutSeconds",
//     "instructions", "projectDescription", "architectureNotes": per-run
//     tunables carried into the generated CLI configuration.
//   - "constraints", "tools", "mcpConfig": JSON-encoded lists/objects for
//     the structured parts of the generated configuration.
//   - "outputs", "contextUrl", "contextFile": output collection and
//     remote-context fetch, consumed by the Job builder.
type RunRequestSpec struct {
	// RunTemplateRef references a RunTemplate used as base configuration.
	// Template fields are defaults; this RunRequest's fields win on conflict.
	// +optional
	RunTemplateRef *RunTemplateReference `json:"runTemplateRef,omitempty"`

	// TaskID is the originating task number, when this run was decomposed
	// from a tracked unit of work. Must be >= 1 when present.
	// +kubebuilder:validation:Minimum=1
	// +optional
	TaskID *int32 `json:"taskId,omitempty"`

	// Service identifies the project this run belongs to.
	// +required
	Service string `json:"service"`

	// RepositoryURL is the git repository the agent operates against.
	// +required
	RepositoryURL string `json:"repositoryUrl"`

	// DocsRepositoryURL is the documentation repository, for docs-style runs.
	// +optional
	DocsRepositoryURL string `json:"docsRepositoryUrl,omitempty"`

	// DocsProjectDirectory is the subdirectory within DocsRepositoryURL this
	// run's documentation output belongs to.
	// +optional
	DocsProjectDirectory string `json:"docsProjectDirectory,omitempty"`

	// WorkingDirectory is the workspace path used both for the agent's
	// working directory label and, for docs-style runs, to derive the
	// shared workspace PVC name.
	// +required
	WorkingDirectory string `json:"workingDirectory"`

	// Model is an opaque model identifier passed through to the config
	// bridge unvalidated; the CLI itself rejects models it cannot serve.
	// +required
	Model string `json:"model"`

	// GithubApp is the GitHub App identity driving this run (e.g.
	// "5DLabs-Rex"). Exactly one of GithubApp or GithubUser must be set;
	// GithubApp implies token-secret auth.
	// +optional
	GithubApp *string `json:"githubApp,omitempty"`

	// GithubUser is the human identity driving this run. Exactly one of
	// GithubApp or GithubUser must be set; GithubUser implies SSH-key auth.
	// +optional
	GithubUser *string `json:"githubUser,omitempty"`

	// ContextVersion is a monotonic version of the run's input context,
	// starting at 1. Combined with the RunRequest UID it makes Job/ConfigMap
	// names deterministic and unique.
	// +kubebuilder:validation:Minimum=1
	// +kubebuilder:default=1
	ContextVersion uint32 `json:"contextVersion"`

	// RunType selects the reconciliation path and naming pattern.
	// +required
	RunType RunType `json:"runType"`

	// CliConfig is a free-form settings map. See type doc comment.
	// +optional
	CliConfig map[string]string `json:"cliConfig,omitempty"`

	// Env sets additional literal environment variables on the main
	// container.
	// +optional
	Env map[string]string `json:"env,omitempty"`

	// EnvFromSecrets injects Secret keys as environment variables.
	// +optional
	EnvFromSecrets []EnvFromSecretSpec `json:"envFromSecrets,omitempty"`

	// ContinueSession adds a save-session sidecar that copies the workspace
	// to a per-github-identity session PVC once the agent command exits.
	// Nothing restores that copy into a later run's workspace.
	// +optional
	ContinueSession bool `json:"continueSession,omitempty"`

	// OverwriteMemory is stored on the spec only; no component of this
	// module reads it, so no existing memory file or session is discarded.
	// +optional
	OverwriteMemory bool `json:"overwriteMemory,omitempty"`
}

// RunRequestStatus defines the observed state of a RunRequest.
type RunRequestStatus struct {
	// ObservedGeneration is the most recent generation observed by the
	// controller.
	// +optional
	ObservedGeneration int64 `json:"observedGeneration,omitempty"`

	// Phase is the run's execution phase.
	// +optional
	Phase RunPhase `json:"phase,omitempty"`

	// JobName is the name of the generated Job.
	// +optional
	JobName string `json:"jobName,omitempty"`

	// ConfigMapName is the name of the generated per-run ConfigMap.
	// +optional
	ConfigMapName string `json:"configMapName,omitempty"`

	// ServiceName is the name of the input-bridge Service, when enabled.
	// +optional
	ServiceName string `json:"serviceName,omitempty"`

	// PodName is the name of the Job's pod, once scheduled.
	// +optional
	PodName string `json:"podName,omitempty"`

	// StartTime is when the run transitioned to RunPhaseRunning.
	// +optional
	StartTime *metav1.Time `json:"startTime,omitempty"`

	// CompletionTime is when the run left RunPhaseRunning.
	// +optional
	CompletionTime *metav1.Time `json:"completionTime,omitempty"`

	// Conditions are the standard Kubernetes conditions for this run.
	// +optional
	// +listType=map
	// +listMapKey=type
	Conditions []metav1.Condition `json:"conditions,omitempty"`
}

// +k8s:deepcopy-gen:interfaces=k8s.io/apimachinery/pkg/runtime.Object

// RunRequestList contains a list of RunRequest.
type RunRequestList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []RunRequest `json:"items"`
}
