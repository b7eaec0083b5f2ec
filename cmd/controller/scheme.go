// Copyright Contributors to the KubeOpenCode project

package main

import (
	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	"k8s.io/client-go/kubernetes"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/cache"

	"github.com/5dlabs/agentctl/api/v1alpha1"
)

// runtimeScheme builds the manager's scheme: the core Kubernetes types
// (Jobs, Services, ConfigMaps, Pods, PVCs) plus this module's own
// RunRequest/RunTemplate types.
func runtimeScheme() *runtime.Scheme {
	scheme := runtime.NewScheme()
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(v1alpha1.AddToScheme(scheme))
	return scheme
}

// cacheOptions restricts the manager's informer cache to a single
// namespace when one was given; the empty string means watch every
// namespace, which is cache.Options' own default.
func cacheOptions(namespace string) cache.Options {
	if namespace == "" {
		return cache.Options{}
	}
	return cache.Options{DefaultNamespaces: map[string]cache.Config{namespace: {}}}
}

// clientsetOrDie builds a plain client-go Clientset for the cluster-API
// log-tailing fallback, which streams pod logs through
// CoreV1().Pods().GetLogs rather than the controller-runtime client.
func clientsetOrDie(log logr.Logger) kubernetes.Interface {
	cs, err := kubernetes.NewForConfig(ctrl.GetConfigOrDie())
	if err != nil {
		log.Error(err, "failed to build log-fetching clientset")
		return nil
	}
	return cs
}
