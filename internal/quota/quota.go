// Copyright Contributors to the KubeOpenCode project

// Package quota enforces a RunTemplate's concurrency cap
// (MaxConcurrentRuns) and start-rate limit (Quota), the two guards the
// resource manager's RunRequest reconciler consults before admitting a run
// that references a template. The two guards are independent: concurrency
// bounds how many runs are RunPhaseRunning at once, the rate limit bounds
// how quickly new ones may start regardless of how many are running.
package quota

import (
	"context"
	"fmt"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/5dlabs/agentctl/api/v1alpha1"
)

// HasConcurrencyCapacity reports whether another run may transition to
// RunPhaseRunning given runningCount existing Running runs against a
// template whose MaxConcurrentRuns is max. A nil or non-positive max means
// unlimited.
func HasConcurrencyCapacity(runningCount int32, max *int32) bool {
	if max == nil || *max <= 0 {
		return true
	}
	return runningCount < *max
}

// CountRunning returns how many items reference the given template and are
// RunPhaseRunning. Operates on an already-fetched slice so the package
// stays free of API-server concerns.
func CountRunning(items []v1alpha1.RunRequest, templateNamespace, templateName string) int32 {
	var count int32
	for i := range items {
		ref := items[i].Spec.RunTemplateRef
		if ref == nil || ref.Name != templateName {
			continue
		}
		ns := ref.Namespace
		if ns == "" {
			ns = items[i].Namespace
		}
		if ns != templateNamespace {
			continue
		}
		if items[i].Status.Phase == v1alpha1.RunPhaseRunning {
			count++
		}
	}
	return count
}

// PruneHistory drops every RunStartRecord older than windowSeconds before
// now, the same trimming a quota's sliding window requires on every check
// so RunTemplateStatus.RunStartHistory does not grow unbounded.
func PruneHistory(history []v1alpha1.RunStartRecord, windowSeconds int32, now time.Time) []v1alpha1.RunStartRecord {
	if len(history) == 0 {
		return history
	}
	cutoff := now.Add(-time.Duration(windowSeconds) * time.Second)
	pruned := make([]v1alpha1.RunStartRecord, 0, len(history))
	for _, rec := range history {
		if rec.StartTime.Time.After(cutoff) {
			pruned = append(pruned, rec)
		}
	}
	return pruned
}

// AllowStart reports whether a new run start is permitted under cfg's
// sliding window, and returns the history pruned to that window regardless
// of the verdict (callers persist the pruned slice either way so the
// window keeps shrinking even when runs are being rejected). A nil cfg
// means no rate limit; the history is returned unpruned.
func AllowStart(history []v1alpha1.RunStartRecord, cfg *v1alpha1.QuotaConfig, now time.Time) (bool, []v1alpha1.RunStartRecord) {
	if cfg == nil {
		return true, history
	}
	pruned := PruneHistory(history, cfg.WindowSeconds, now)
	return int32(len(pruned)) < cfg.MaxRunStarts, pruned
}

// RecordStart appends a RunStartRecord for rr at startTime to history. The
// caller is expected to have already pruned history via AllowStart in the
// same reconcile.
func RecordStart(history []v1alpha1.RunStartRecord, rr *v1alpha1.RunRequest, startTime time.Time) []v1alpha1.RunStartRecord {
	return append(history, v1alpha1.RunStartRecord{
		RunRequestName:      rr.Name,
		RunRequestNamespace: rr.Namespace,
		StartTime:           metav1.Time{Time: startTime},
	})
}

// Guard wraps a client.Client to evaluate both guards against live cluster
// state for a specific RunTemplate reference.
type Guard struct {
	Client client.Client
}

// NewGuard constructs a Guard.
func NewGuard(c client.Client) *Guard {
	return &Guard{Client: c}
}

// CheckConcurrency lists every RunRequest in templateNamespace and reports
// whether one more may start against a template with the given
// MaxConcurrentRuns. Cross-namespace template consumers are expected to
// list their own namespace and pass the aggregate count in via
// CountRunning directly when a template is shared across namespaces; this
// method covers the common single-namespace case.
func (g *Guard) CheckConcurrency(ctx context.Context, templateNamespace, templateName string, max *int32) (bool, error) {
	if max == nil || *max <= 0 {
		return true, nil
	}
	var list v1alpha1.RunRequestList
	if err := g.Client.List(ctx, &list, client.InNamespace(templateNamespace)); err != nil {
		return false, fmt.Errorf("quota: list runrequests in %q: %w", templateNamespace, err)
	}
	running := CountRunning(list.Items, templateNamespace, templateName)
	return HasConcurrencyCapacity(running, max), nil
}
