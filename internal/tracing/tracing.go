// Copyright Contributors to the KubeOpenCode project

// Package tracing wires otel span instrumentation around the resource
// manager's and remediation coordinator's key operations. It exports completed spans through logr rather than a
// network collector, since no collector endpoint is part of this
// module's scope; operators who want a real backend can swap the
// exporter passed to NewProvider without touching call sites, since
// every caller only ever depends on the package-level Tracer.
package tracing

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// logExporter renders each completed span as a structured log line.
type logExporter struct {
	log logr.Logger
}

func (e *logExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		e.log.Info("span",
			"name", s.Name(),
			"traceID", s.SpanContext().TraceID().String(),
			"spanID", s.SpanContext().SpanID().String(),
			"duration", s.EndTime().Sub(s.StartTime()),
			"status", s.Status().Code.String(),
		)
	}
	return nil
}

func (e *logExporter) Shutdown(_ context.Context) error { return nil }

// tracerName identifies this module's instrumentation scope.
const tracerName = "github.com/5dlabs/agentctl"

// NewProvider builds and installs a TracerProvider that logs completed
// spans through log. Callers typically invoke this once at startup and
// defer provider.Shutdown(ctx).
func NewProvider(log logr.Logger) *sdktrace.TracerProvider {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(&logExporter{log: log.WithName("tracing")}, sdktrace.WithBatchTimeout(time.Second)),
	)
	otel.SetTracerProvider(tp)
	return tp
}

// tracer is resolved lazily through otel's global provider so packages
// can import tracing.Start without caring whether NewProvider has run
// yet; before it has, otel's no-op tracer is used transparently.
func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// Start begins a span named name as a child of any span already in ctx.
func Start(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer().Start(ctx, name)
}
