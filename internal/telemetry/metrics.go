package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attribute keys shared by ingest and analysis instruments.
const (
	EventNameKey   = attribute.Key("event.name")
	RejectCauseKey = attribute.Key("event.reject_cause") // validation|serialization|storage
	QueryErrorKey  = attribute.Key("analysis.error_kind")
)

// IngestMetrics counts event routing outcomes.
type IngestMetrics struct {
	accepted metric.Int64Counter
	rejected metric.Int64Counter
	debug    metric.Int64Counter
}

func NewIngestMetrics() (*IngestMetrics, error) {
	meter := otel.Meter("gamelytics/ingest")
	accepted, err := meter.Int64Counter("gamelytics.events.accepted",
		metric.WithDescription("Events validated and committed to the main store"))
	if err != nil {
		return nil, err
	}
	rejected, err := meter.Int64Counter("gamelytics.events.rejected",
		metric.WithDescription("Events routed to the errored store"))
	if err != nil {
		return nil, err
	}
	debug, err := meter.Int64Counter("gamelytics.events.debug",
		metric.WithDescription("Events stored on the debug path"))
	if err != nil {
		return nil, err
	}
	return &IngestMetrics{accepted: accepted, rejected: rejected, debug: debug}, nil
}

func (m *IngestMetrics) Accepted(ctx context.Context, eventName string) {
	if m == nil {
		return
	}
	m.accepted.Add(ctx, 1, metric.WithAttributes(EventNameKey.String(eventName)))
}

func (m *IngestMetrics) Rejected(ctx context.Context, eventName, cause string) {
	if m == nil {
		return
	}
	m.rejected.Add(ctx, 1, metric.WithAttributes(
		EventNameKey.String(eventName), RejectCauseKey.String(cause)))
}

func (m *IngestMetrics) Debug(ctx context.Context, eventName string) {
	if m == nil {
		return
	}
	m.debug.Add(ctx, 1, metric.WithAttributes(EventNameKey.String(eventName)))
}

// AnalysisMetrics counts query compilation outcomes.
type AnalysisMetrics struct {
	compiled metric.Int64Counter
	failed   metric.Int64Counter
}

func NewAnalysisMetrics() (*AnalysisMetrics, error) {
	meter := otel.Meter("gamelytics/analysis")
	compiled, err := meter.Int64Counter("gamelytics.queries.compiled",
		metric.WithDescription("Analysis queries compiled and executed"))
	if err != nil {
		return nil, err
	}
	failed, err := meter.Int64Counter("gamelytics.queries.failed",
		metric.WithDescription("Analysis queries rejected before execution"))
	if err != nil {
		return nil, err
	}
	return &AnalysisMetrics{compiled: compiled, failed: failed}, nil
}

func (m *AnalysisMetrics) Compiled(ctx context.Context, eventName string) {
	if m == nil {
		return
	}
	m.compiled.Add(ctx, 1, metric.WithAttributes(EventNameKey.String(eventName)))
}

func (m *AnalysisMetrics) Failed(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.failed.Add(ctx, 1, metric.WithAttributes(QueryErrorKey.String(kind)))
}
