// Copyright Contributors to the KubeOpenCode project

package v1alpha1

import (
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// QuotaConfig defines rate limiting for run starts within a sliding time
// window. Complementary to MaxConcurrentRuns, which limits how many runs
// execute at once: Quota limits how quickly new ones may start.
type QuotaConfig struct {
	// MaxRunStarts is the maximum number of run starts allowed within Window.
	// +kubebuilder:validation:Minimum=1
	// +required
	MaxRunStarts int32 `json:"maxRunStarts"`

	// WindowSeconds defines the sliding window duration in seconds.
	// +kubebuilder:validation:Minimum=60
	// +kubebuilder:validation:Maximum=86400
	// +required
	WindowSeconds int32 `json:"windowSeconds"`
}

// RunStartRecord records a single run start for quota enforcement. Stored in
// RunTemplateStatus so the sliding window survives controller restarts.
type RunStartRecord struct {
	// RunRequestName is the name of the RunRequest that started.
	RunRequestName string `json:"runRequestName"`

	// RunRequestNamespace is the namespace of the RunRequest.
	RunRequestNamespace string `json:"runRequestNamespace"`

	// StartTime is when the run transitioned to RunPhaseRunning.
	StartTime metav1.Time `json:"startTime"`
}

// +genclient
// +k8s:deepcopy-gen:interfaces=k8s.io/apimachinery/pkg/runtime.Object
// +kubebuilder:subresource:status
// +kubebuilder:resource:scope="Namespaced",shortName=rt
// +kubebuilder:printcolumn:JSONPath=`.spec.model`,name="Model",type=string,priority=1
// +kubebuilder:printcolumn:JSONPath=`.metadata.creationTimestamp`,name="Age",type=date

// RunTemplate is a reusable base configuration for RunRequests, resolved via
// RunRequestSpec.RunTemplateRef the same way a TaskTemplate resolves against
// a Task: template fields are defaults, the RunRequest's own fields win on
// conflict, and CliConfig/Env are merged with template-first ordering.
type RunTemplate struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	// Spec defines the template configuration.
	Spec RunTemplateSpec `json:"spec"`

	// Status represents the observed state of the template, including quota
	// bookkeeping when Quota is configured.
	// +optional
	Status RunTemplateStatus `json:"status,omitempty"`
}

// RunTemplateSpec defines default RunRequest fields shared by many runs, plus
// the concurrency/quota guard and namespace isolation the resource manager
// enforces before admitting a RunRequest that references this template.
type RunTemplateSpec struct {
	// Model is the default model identifier. Overridden by RunRequest.model
	// when the RunRequest sets a non-empty value.
	// +optional
	Model string `json:"model,omitempty"`

	// GithubApp is the default GitHub App identity.
	// +optional
	GithubApp *string `json:"githubApp,omitempty"`

	// CliConfig provides default free-form settings, merged template-first:
	// a key present in both the template and the RunRequest keeps the
	// RunRequest's value.
	// +optional
	CliConfig map[string]string `json:"cliConfig,omitempty"`

	// Env provides default environment variables, merged template-first.
	// +optional
	Env map[string]string `json:"env,omitempty"`

	// EnvFromSecrets provides default Secret-sourced environment variables.
	// +optional
	EnvFromSecrets []EnvFromSecretSpec `json:"envFromSecrets,omitempty"`

	// WorkingDirectory is the default workspace path.
	// +optional
	WorkingDirectory string `json:"workingDirectory,omitempty"`

	// RepositoryURL is the default git repository.
	// +optional
	RepositoryURL string `json:"repositoryUrl,omitempty"`

	// PodSpec defines advanced Pod configuration applied to runs using this
	// template: labels, scheduling, runtime class, and resources.
	// +optional
	PodSpec *RunPodSpec `json:"podSpec,omitempty"`

	// AllowedNamespaces restricts which namespaces may reference this
	// template, mirroring the capability registry's namespace-scoping.
	// Supports glob patterns; empty means open to all namespaces.
	// +optional
	AllowedNamespaces []string `json:"allowedNamespaces,omitempty"`

	// MaxConcurrentRuns limits how many RunRequests referencing this
	// template may be RunPhaseRunning at once. Nil or 0 means unlimited;
	// runs beyond the limit enter RunPhaseQueued.
	// +optional
	MaxConcurrentRuns *int32 `json:"maxConcurrentRuns,omitempty"`

	// Quota rate-limits how quickly new runs referencing this template may
	// start, independent of MaxConcurrentRuns.
	// +optional
	Quota *QuotaConfig `json:"quota,omitempty"`
}

// RunTemplateStatus defines the observed state of a RunTemplate.
type RunTemplateStatus struct {
	// ObservedGeneration is the most recent generation observed by the
	// controller.
	// +optional
	ObservedGeneration int64 `json:"observedGeneration,omitempty"`

	// Conditions are the standard Kubernetes conditions for this template.
	// +optional
	// +listType=map
	// +listMapKey=type
	Conditions []metav1.Condition `json:"conditions,omitempty"`

	// RunStartHistory tracks recent run starts for quota enforcement. The
	// controller prunes entries older than the quota window. Only populated
	// when Quota is configured.
	// +optional
	// +listType=atomic
	RunStartHistory []RunStartRecord `json:"runStartHistory,omitempty"`
}

// RunPodSpec groups Pod-level settings applied to a run's Job pod template.
type RunPodSpec struct {
	// Labels adds additional labels to the run's pod, enabling NetworkPolicy
	// selection, Service discovery, and PodMonitor scraping.
	// +optional
	Labels map[string]string `json:"labels,omitempty"`

	// Scheduling defines node selection, tolerations, and affinity.
	// +optional
	Scheduling *PodScheduling `json:"scheduling,omitempty"`

	// RuntimeClassName selects an isolation runtime (e.g. "gvisor", "kata")
	// for running untrusted agent-generated commands.
	// +optional
	RuntimeClassName *string `json:"runtimeClassName,omitempty"`

	// Resources specifies compute resources for the main container.
	// +optional
	Resources *corev1.ResourceRequirements `json:"resources,omitempty"`
}

// PodScheduling defines scheduling configuration applied directly to a run's
// Job pod template.
type PodScheduling struct {
	// NodeSelector restricts scheduling to nodes matching all given labels.
	// +optional
	NodeSelector map[string]string `json:"nodeSelector,omitempty"`

	// Tolerations allows scheduling onto nodes with matching taints.
	// +optional
	Tolerations []corev1.Toleration `json:"tolerations,omitempty"`

	// Affinity specifies node/pod affinity and anti-affinity rules.
	// +optional
	Affinity *corev1.Affinity `json:"affinity,omitempty"`
}

// +k8s:deepcopy-gen:interfaces=k8s.io/apimachinery/pkg/runtime.Object

// RunTemplateList contains a list of RunTemplate.
type RunTemplateList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []RunTemplate `json:"items"`
}
