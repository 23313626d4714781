package interceptors

import (
	"context"
	"strings"

	"connectrpc.com/connect"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingInterceptor opens one server span per RPC. Spans carry the request
// id when the request-id interceptor ran first, and the connect code of
// failed calls.
type TracingInterceptor struct {
	tracer trace.Tracer
}

func NewTracingInterceptor(tracer trace.Tracer) *TracingInterceptor {
	if tracer == nil {
		tracer = otel.Tracer("wealth-tracker/interceptors")
	}
	return &TracingInterceptor{tracer: tracer}
}

func (i *TracingInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		ctx, span := i.start(ctx, req.Spec().Procedure)
		defer span.End()

		resp, err := next(ctx, req)
		finishSpan(span, err)
		return resp, err
	}
}

// WrapStreamingClient is a passthrough; this server makes no outgoing calls.
func (i *TracingInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (i *TracingInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		ctx, span := i.start(ctx, conn.Spec().Procedure)
		defer span.End()

		err := next(ctx, conn)
		finishSpan(span, err)
		return err
	}
}

func (i *TracingInterceptor) start(ctx context.Context, procedure string) (context.Context, trace.Span) {
	service, method := splitProcedure(procedure)
	attrs := []attribute.KeyValue{
		attribute.String("rpc.system", "connect_rpc"),
		attribute.String("rpc.service", service),
		attribute.String("rpc.method", method),
	}
	if id := GetRequestID(ctx); id != "" {
		attrs = append(attrs, attribute.String("request.id", id))
	}
	return i.tracer.Start(ctx, procedure,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attrs...),
	)
}

func finishSpan(span trace.Span, err error) {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetAttributes(attribute.String("rpc.connect_rpc.error_code", connect.CodeOf(err).String()))
	span.SetStatus(codes.Error, err.Error())
}

// splitProcedure turns "/pkg.Service/Method" into its service and method.
func splitProcedure(procedure string) (service, method string) {
	trimmed := strings.TrimPrefix(procedure, "/")
	service, method, ok := strings.Cut(trimmed, "/")
	if !ok {
		return trimmed, ""
	}
	return service, method
}
