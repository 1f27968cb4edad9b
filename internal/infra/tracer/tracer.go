package tracer

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"thoughtstream/internal/domain"
	"thoughtstream/internal/infra/config"
	"thoughtstream/internal/infra/logger"
)

const tracerName = "thoughtstream"

// Span names for the stream pipeline.
const (
	SpanDecode   = "stream.decode"
	SpanEnvelope = "engine.envelope"
	SpanHistory  = "reconcile.history"
)

// Setup initializes OpenTelemetry tracing and returns a shutdown function.
// When cfg.Enabled is false, a noop TracerProvider is used (zero overhead).
func Setup(ctx context.Context, cfg config.TracerConfig) (func(context.Context) error, error) {
	noopShutdown := func(context.Context) error { return nil }

	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return noopShutdown, nil
	}

	switch cfg.Exporter {
	case "stdout":
	case "noop", "":
		otel.SetTracerProvider(noop.NewTracerProvider())
		return noopShutdown, nil
	default:
		return nil, fmt.Errorf("unsupported exporter: %s", cfg.Exporter)
	}

	w, closeOutput, err := logger.OpenOutput(cfg.Output)
	if err != nil {
		return nil, fmt.Errorf("open trace output: %w", err)
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		closeOutput()
		return nil, fmt.Errorf("create stdout exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), closeOutput())
	}, nil
}

// StartSpan is a convenience helper to start a named span.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, opts...)
}

// RecordError records an error on the span and sets error status.
func RecordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetOK sets the span status to OK.
func SetOK(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// StringAttr is a convenience for attribute.String.
func StringAttr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// IntAttr is a convenience for attribute.Int.
func IntAttr(key string, value int) attribute.KeyValue {
	return attribute.Int(key, value)
}

// StartEnvelopeSpan starts the span covering one envelope handed to the engine.
func StartEnvelopeSpan(ctx context.Context, env domain.Envelope) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanEnvelope, trace.WithAttributes(EnvelopeAttrs(env)...))
}

// EnvelopeAttrs summarizes an envelope without recording its text.
func EnvelopeAttrs(env domain.Envelope) []attribute.KeyValue {
	var textBytes int
	var restart, telemetry bool
	for _, m := range env.Messages {
		textBytes += len(m.Text)
		restart = restart || m.Status.Restarting()
		telemetry = telemetry || m.Memory != nil || m.Prompt != nil
	}
	return []attribute.KeyValue{
		attribute.String("envelope.type", string(env.Kind())),
		attribute.Int("envelope.messages", len(env.Messages)),
		attribute.Int("envelope.text_bytes", textBytes),
		attribute.Bool("envelope.restart", restart),
		attribute.Bool("envelope.telemetry", telemetry),
	}
}

// StartDecodeSpan starts the span covering the decode of one inbound frame.
func StartDecodeSpan(ctx context.Context, connID string, frameBytes int) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanDecode, trace.WithAttributes(
		attribute.String("stream.conn_id", connID),
		attribute.Int("frame.bytes", frameBytes),
	))
}
