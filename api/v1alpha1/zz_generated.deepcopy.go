//go:build !ignore_autogenerated

// Copyright Contributors to the KubeOpenCode project

// Code generated by hand in place of controller-gen; keep in sync with the
// types in runrequest_types.go and runtemplate_types.go.

package v1alpha1

import (
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	runtime "k8s.io/apimachinery/pkg/runtime"
)

// DeepCopyInto is a deepcopy function, copying the receiver, writing into out. in must be non-nil.
func (in *EnvFromSecretSpec) DeepCopyInto(out *EnvFromSecretSpec) {
	*out = *in
	in.SecretKeyRef.DeepCopyInto(&out.SecretKeyRef)
}

// DeepCopy is a deepcopy function, copying the receiver, creating a new EnvFromSecretSpec.
func (in *EnvFromSecretSpec) DeepCopy() *EnvFromSecretSpec {
	if in == nil {
		return nil
	}
	out := new(EnvFromSecretSpec)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyInto is a deepcopy function, copying the receiver, writing into out. in must be non-nil.
func (in *RunTemplateReference) DeepCopyInto(out *RunTemplateReference) {
	*out = *in
}

// DeepCopy is a deepcopy function, copying the receiver, creating a new RunTemplateReference.
func (in *RunTemplateReference) DeepCopy() *RunTemplateReference {
	if in == nil {
		return nil
	}
	out := new(RunTemplateReference)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyInto is a deepcopy function, copying the receiver, writing into out. in must be non-nil.
func (in *RunRequestSpec) DeepCopyInto(out *RunRequestSpec) {
	*out = *in
	if in.RunTemplateRef != nil {
		out.RunTemplateRef = new(RunTemplateReference)
		*out.RunTemplateRef = *in.RunTemplateRef
	}
	if in.TaskID != nil {
		out.TaskID = new(int32)
		*out.TaskID = *in.TaskID
	}
	if in.GithubApp != nil {
		out.GithubApp = new(string)
		*out.GithubApp = *in.GithubApp
	}
	if in.GithubUser != nil {
		out.GithubUser = new(string)
		*out.GithubUser = *in.GithubUser
	}
	if in.CliConfig != nil {
		out.CliConfig = make(map[string]string, len(in.CliConfig))
		for key, val := range in.CliConfig {
			out.CliConfig[key] = val
		}
	}
	if in.Env != nil {
		out.Env = make(map[string]string, len(in.Env))
		for key, val := range in.Env {
			out.Env[key] = val
		}
	}
	if in.EnvFromSecrets != nil {
		l := make([]EnvFromSecretSpec, len(in.EnvFromSecrets))
		for i := range in.EnvFromSecrets {
			in.EnvFromSecrets[i].DeepCopyInto(&l[i])
		}
		out.EnvFromSecrets = l
	}
}

// DeepCopy is a deepcopy function, copying the receiver, creating a new RunRequestSpec.
func (in *RunRequestSpec) DeepCopy() *RunRequestSpec {
	if in == nil {
		return nil
	}
	out := new(RunRequestSpec)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyInto is a deepcopy function, copying the receiver, writing into out. in must be non-nil.
func (in *RunRequestStatus) DeepCopyInto(out *RunRequestStatus) {
	*out = *in
	if in.StartTime != nil {
		out.StartTime = in.StartTime.DeepCopy()
	}
	if in.CompletionTime != nil {
		out.CompletionTime = in.CompletionTime.DeepCopy()
	}
	if in.Conditions != nil {
		l := make([]metav1.Condition, len(in.Conditions))
		for i := range in.Conditions {
			in.Conditions[i].DeepCopyInto(&l[i])
		}
		out.Conditions = l
	}
}

// DeepCopy is a deepcopy function, copying the receiver, creating a new RunRequestStatus.
func (in *RunRequestStatus) DeepCopy() *RunRequestStatus {
	if in == nil {
		return nil
	}
	out := new(RunRequestStatus)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyInto is a deepcopy function, copying the receiver, writing into out. in must be non-nil.
func (in *RunRequest) DeepCopyInto(out *RunRequest) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	in.Spec.DeepCopyInto(&out.Spec)
	in.Status.DeepCopyInto(&out.Status)
}

// DeepCopy is a deepcopy function, copying the receiver, creating a new RunRequest.
func (in *RunRequest) DeepCopy() *RunRequest {
	if in == nil {
		return nil
	}
	out := new(RunRequest)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyObject is a deepcopy function, copying the receiver, creating a new runtime.Object.
func (in *RunRequest) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}

// DeepCopyInto is a deepcopy function, copying the receiver, writing into out. in must be non-nil.
func (in *RunRequestList) DeepCopyInto(out *RunRequestList) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ListMeta.DeepCopyInto(&out.ListMeta)
	if in.Items != nil {
		l := make([]RunRequest, len(in.Items))
		for i := range in.Items {
			in.Items[i].DeepCopyInto(&l[i])
		}
		out.Items = l
	}
}

// DeepCopy is a deepcopy function, copying the receiver, creating a new RunRequestList.
func (in *RunRequestList) DeepCopy() *RunRequestList {
	if in == nil {
		return nil
	}
	out := new(RunRequestList)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyObject is a deepcopy function, copying the receiver, creating a new runtime.Object.
func (in *RunRequestList) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}

// DeepCopyInto is a deepcopy function, copying the receiver, writing into out. in must be non-nil.
func (in *QuotaConfig) DeepCopyInto(out *QuotaConfig) {
	*out = *in
}

// DeepCopy is a deepcopy function, copying the receiver, creating a new QuotaConfig.
func (in *QuotaConfig) DeepCopy() *QuotaConfig {
	if in == nil {
		return nil
	}
	out := new(QuotaConfig)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyInto is a deepcopy function, copying the receiver, writing into out. in must be non-nil.
func (in *RunStartRecord) DeepCopyInto(out *RunStartRecord) {
	*out = *in
	in.StartTime.DeepCopyInto(&out.StartTime)
}

// DeepCopy is a deepcopy function, copying the receiver, creating a new RunStartRecord.
func (in *RunStartRecord) DeepCopy() *RunStartRecord {
	if in == nil {
		return nil
	}
	out := new(RunStartRecord)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyInto is a deepcopy function, copying the receiver, writing into out. in must be non-nil.
func (in *PodScheduling) DeepCopyInto(out *PodScheduling) {
	*out = *in
	if in.NodeSelector != nil {
		out.NodeSelector = make(map[string]string, len(in.NodeSelector))
		for key, val := range in.NodeSelector {
			out.NodeSelector[key] = val
		}
	}
	if in.Tolerations != nil {
		l := make([]corev1.Toleration, len(in.Tolerations))
		for i := range in.Tolerations {
			in.Tolerations[i].DeepCopyInto(&l[i])
		}
		out.Tolerations = l
	}
	if in.Affinity != nil {
		out.Affinity = in.Affinity.DeepCopy()
	}
}

// DeepCopy is a deepcopy function, copying the receiver, creating a new PodScheduling.
func (in *PodScheduling) DeepCopy() *PodScheduling {
	if in == nil {
		return nil
	}
	out := new(PodScheduling)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyInto is a deepcopy function, copying the receiver, writing into out. in must be non-nil.
func (in *RunPodSpec) DeepCopyInto(out *RunPodSpec) {
	*out = *in
	if in.Labels != nil {
		out.Labels = make(map[string]string, len(in.Labels))
		for key, val := range in.Labels {
			out.Labels[key] = val
		}
	}
	if in.Scheduling != nil {
		out.Scheduling = in.Scheduling.DeepCopy()
	}
	if in.RuntimeClassName != nil {
		out.RuntimeClassName = new(string)
		*out.RuntimeClassName = *in.RuntimeClassName
	}
	if in.Resources != nil {
		out.Resources = in.Resources.DeepCopy()
	}
}

// DeepCopy is a deepcopy function, copying the receiver, creating a new RunPodSpec.
func (in *RunPodSpec) DeepCopy() *RunPodSpec {
	if in == nil {
		return nil
	}
	out := new(RunPodSpec)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyInto is a deepcopy function, copying the receiver, writing into out. in must be non-nil.
func (in *RunTemplateSpec) DeepCopyInto(out *RunTemplateSpec) {
	*out = *in
	if in.GithubApp != nil {
		out.GithubApp = new(string)
		*out.GithubApp = *in.GithubApp
	}
	if in.CliConfig != nil {
		out.CliConfig = make(map[string]string, len(in.CliConfig))
		for key, val := range in.CliConfig {
			out.CliConfig[key] = val
		}
	}
	if in.Env != nil {
		out.Env = make(map[string]string, len(in.Env))
		for key, val := range in.Env {
			out.Env[key] = val
		}
	}
	if in.EnvFromSecrets != nil {
		l := make([]EnvFromSecretSpec, len(in.EnvFromSecrets))
		for i := range in.EnvFromSecrets {
			in.EnvFromSecrets[i].DeepCopyInto(&l[i])
		}
		out.EnvFromSecrets = l
	}
	if in.PodSpec != nil {
		out.PodSpec = new(RunPodSpec)
		in.PodSpec.DeepCopyInto(out.PodSpec)
	}
	if in.AllowedNamespaces != nil {
		l := make([]string, len(in.AllowedNamespaces))
		copy(l, in.AllowedNamespaces)
		out.AllowedNamespaces = l
	}
	if in.MaxConcurrentRuns != nil {
		out.MaxConcurrentRuns = new(int32)
		*out.MaxConcurrentRuns = *in.MaxConcurrentRuns
	}
	if in.Quota != nil {
		out.Quota = new(QuotaConfig)
		*out.Quota = *in.Quota
	}
}

// DeepCopy is a deepcopy function, copying the receiver, creating a new RunTemplateSpec.
func (in *RunTemplateSpec) DeepCopy() *RunTemplateSpec {
	if in == nil {
		return nil
	}
	out := new(RunTemplateSpec)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyInto is a deepcopy function, copying the receiver, writing into out. in must be non-nil.
func (in *RunTemplateStatus) DeepCopyInto(out *RunTemplateStatus) {
	*out = *in
	if in.Conditions != nil {
		l := make([]metav1.Condition, len(in.Conditions))
		for i := range in.Conditions {
			in.Conditions[i].DeepCopyInto(&l[i])
		}
		out.Conditions = l
	}
	if in.RunStartHistory != nil {
		l := make([]RunStartRecord, len(in.RunStartHistory))
		for i := range in.RunStartHistory {
			in.RunStartHistory[i].DeepCopyInto(&l[i])
		}
		out.RunStartHistory = l
	}
}

// DeepCopy is a deepcopy function, copying the receiver, creating a new RunTemplateStatus.
func (in *RunTemplateStatus) DeepCopy() *RunTemplateStatus {
	if in == nil {
		return nil
	}
	out := new(RunTemplateStatus)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyInto is a deepcopy function, copying the receiver, writing into out. in must be non-nil.
func (in *RunTemplate) DeepCopyInto(out *RunTemplate) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	in.Spec.DeepCopyInto(&out.Spec)
	in.Status.DeepCopyInto(&out.Status)
}

// DeepCopy is a deepcopy function, copying the receiver, creating a new RunTemplate.
func (in *RunTemplate) DeepCopy() *RunTemplate {
	if in == nil {
		return nil
	}
	out := new(RunTemplate)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyObject is a deepcopy function, copying the receiver, creating a new runtime.Object.
func (in *RunTemplate) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}

// DeepCopyInto is a deepcopy function, copying the receiver, writing into out. in must be non-nil.
func (in *RunTemplateList) DeepCopyInto(out *RunTemplateList) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ListMeta.DeepCopyInto(&out.ListMeta)
	if in.Items != nil {
		l := make([]RunTemplate, len(in.Items))
		for i := range in.Items {
			in.Items[i].DeepCopyInto(&l[i])
		}
		out.Items = l
	}
}

// DeepCopy is a deepcopy function, copying the receiver, creating a new RunTemplateList.
func (in *RunTemplateList) DeepCopy() *RunTemplateList {
	if in == nil {
		return nil
	}
	out := new(RunTemplateList)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyObject is a deepcopy function, copying the receiver, creating a new runtime.Object.
func (in *RunTemplateList) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}
