// Copyright Contributors to the KubeOpenCode project

package monitor

import (
	"bufio"
	"context"
	"io"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// LogLine is a single line read from a pod's log stream.
type LogLine struct {
	Text      string
	Timestamp time.Time
}

// LogFetcher retrieves the lines a pod emitted in [since, until). Two
// implementations exist: a log-aggregator-backed one (preferred, supplied
// by the operator) and ClusterAPIFetcher (the fallback, always available
// since it only needs the Kubernetes API).
type LogFetcher interface {
	FetchLogs(ctx context.Context, namespace, podName string, since, until time.Time) ([]LogLine, error)
}

// ClusterAPIFetcher tails a pod's logs directly from the Kubernetes API
// server. It is the fallback log source used when no
// log-aggregator backend is configured.
type ClusterAPIFetcher struct {
	Clientset kubernetes.Interface
	// TailLines bounds how far back to read when SinceTime can't be
	// honored precisely by the kubelet (e.g. log rotation). Zero means
	// the kubelet default.
	TailLines int64
}

// NewClusterAPIFetcher builds a ClusterAPIFetcher reading the last
// tailLines lines per request (0 for no limit beyond SinceTime).
func NewClusterAPIFetcher(clientset kubernetes.Interface, tailLines int64) *ClusterAPIFetcher {
	return &ClusterAPIFetcher{Clientset: clientset, TailLines: tailLines}
}

// FetchLogs streams podName's logs since `since`, filtering out any line
// timestamped at or after `until` (the kubelet has no "until" option).
func (f *ClusterAPIFetcher) FetchLogs(ctx context.Context, namespace, podName string, since, until time.Time) ([]LogLine, error) {
	sinceTime := metav1.NewTime(since)
	opts := &corev1.PodLogOptions{
		SinceTime:  &sinceTime,
		Timestamps: true,
	}
	if f.TailLines > 0 {
		opts.TailLines = &f.TailLines
	}

	stream, err := f.Clientset.CoreV1().Pods(namespace).GetLogs(podName, opts).Stream(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = stream.Close() }()

	var lines []LogLine
	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		ts, text := splitTimestamp(scanner.Text())
		if !ts.IsZero() && !ts.Before(until) {
			continue
		}
		lines = append(lines, LogLine{Text: text, Timestamp: ts})
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return lines, err
	}
	return lines, nil
}

// splitTimestamp parses a kubelet timestamped log line ("<RFC3339Nano>
// <text>") into its components. Lines that don't start with a parseable
// timestamp are returned with a zero time and their text untouched.
func splitTimestamp(line string) (time.Time, string) {
	for i := 0; i < len(line); i++ {
		if line[i] == ' ' {
			if ts, err := time.Parse(time.RFC3339Nano, line[:i]); err == nil {
				rest := line[i+1:]
				return ts, rest
			}
			break
		}
	}
	return time.Time{}, line
}
