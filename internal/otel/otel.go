package otel

import (
	"context"
	"sync"

	eventbus "github.com/hanpama/mergelink/internal/eventbus"
	events "github.com/hanpama/mergelink/internal/events"
	reqid "github.com/hanpama/mergelink/internal/reqid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
)

// Setup configures OpenTelemetry and attaches eventbus subscribers.
// If endpoint is empty, no telemetry is configured.
func Setup(endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithInsecure()))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	sub := newSubscriber(otel.Tracer("mergelink"))
	sub.register(eventbus.Default())

	return tp.Shutdown, nil
}

// subscriber turns gateway events into a span tree:
// http.request > mergelink.merge > mergelink.source.
type subscriber struct {
	tracer      trace.Tracer
	httpSpans   sync.Map // rid -> trace.Span
	mergeSpans  sync.Map // rid -> trace.Span
	sourceSpans sync.Map // rid/source/operation -> trace.Span
}

func newSubscriber(tracer trace.Tracer) *subscriber {
	return &subscriber{tracer: tracer}
}

// sourceKey distinguishes concurrent source requests of one gateway request.
func sourceKey(rid, src, op string) string { return rid + "/" + src + "/" + op }

func (s *subscriber) parent(ctx context.Context, rid string, maps ...*sync.Map) context.Context {
	for _, m := range maps {
		if v, ok := m.Load(rid); ok {
			return trace.ContextWithSpan(ctx, v.(trace.Span))
		}
	}
	return ctx
}

func (s *subscriber) register(b *eventbus.Bus) {
	eventbus.On(b, func(ctx context.Context, e events.HTTPStart) {
		_, span := s.tracer.Start(ctx, "http.request")
		span.SetAttributes(
			semconv.HTTPMethodKey.String(e.Request.Method),
			attribute.String("http.target", e.Request.URL.Path),
			attribute.String("request.id", e.RequestID),
		)
		s.httpSpans.Store(e.RequestID, span)
	})

	eventbus.On(b, func(ctx context.Context, e events.HTTPFinish) {
		v, ok := s.httpSpans.LoadAndDelete(e.RequestID)
		if !ok {
			return
		}
		span := v.(trace.Span)
		span.SetAttributes(
			semconv.HTTPStatusCodeKey.Int(e.Status),
			attribute.Int("graphql.operation.count", e.Operations),
		)
		span.End()
	})

	eventbus.On(b, func(ctx context.Context, e events.MergeStart) {
		rid, _ := reqid.FromContext(ctx)
		_, span := s.tracer.Start(s.parent(ctx, rid, &s.httpSpans), "mergelink.merge")
		span.SetAttributes(
			attribute.String("graphql.operation.name", e.OperationName),
			attribute.StringSlice("mergelink.joins", e.Joins),
		)
		s.mergeSpans.Store(rid, span)
	})

	eventbus.On(b, func(ctx context.Context, e events.MergeFinish) {
		rid, _ := reqid.FromContext(ctx)
		v, ok := s.mergeSpans.LoadAndDelete(rid)
		if !ok {
			return
		}
		span := v.(trace.Span)
		span.SetAttributes(attribute.Int("mergelink.unresolved", e.Unresolved))
		if e.Err != nil {
			span.RecordError(e.Err)
			span.SetStatus(codes.Error, e.Err.Error())
		}
		span.End()
	})

	eventbus.On(b, func(ctx context.Context, e events.SourceRequestStart) {
		rid, _ := reqid.FromContext(ctx)
		_, span := s.tracer.Start(s.parent(ctx, rid, &s.mergeSpans, &s.httpSpans), "mergelink.source")
		span.SetAttributes(
			attribute.String("mergelink.source", e.Source),
			attribute.String("graphql.operation.name", e.OperationName),
			attribute.String("net.peer.name", e.Target),
		)
		s.sourceSpans.Store(sourceKey(rid, e.Source, e.OperationName), span)
	})

	eventbus.On(b, func(ctx context.Context, e events.SourceRequestFinish) {
		rid, _ := reqid.FromContext(ctx)
		v, ok := s.sourceSpans.LoadAndDelete(sourceKey(rid, e.Source, e.OperationName))
		if !ok {
			return
		}
		span := v.(trace.Span)
		span.SetAttributes(semconv.HTTPStatusCodeKey.Int(e.Status))
		if e.Err != nil {
			span.RecordError(e.Err)
			span.SetStatus(codes.Error, e.Err.Error())
		}
		span.End()
	})
}
