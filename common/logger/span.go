package logger

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "beacon"

// Span is a started span together with the context that carries it.
type Span struct {
	ctx  context.Context
	span trace.Span
	once sync.Once
}

func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) *Span {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name, opts...)
	return &Span{ctx: ctx, span: span}
}

// ContinueTrace starts a span under the trace id carried on a queue message,
// so triage shows up in the same trace as the intake request. An empty or
// malformed id starts a new root span.
func ContinueTrace(ctx context.Context, traceID, name string, opts ...trace.SpanStartOption) *Span {
	if id, err := trace.TraceIDFromHex(traceID); err == nil {
		remote := trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    id,
			TraceFlags: trace.FlagsSampled,
			Remote:     true,
		})
		ctx = trace.ContextWithRemoteSpanContext(ctx, remote)
		opts = append(opts, trace.WithLinks(trace.Link{SpanContext: remote}))
	}
	return StartSpan(ctx, name, opts...)
}

func (s *Span) Context() context.Context {
	return s.ctx
}

// Finish ends the span, marking it failed when err is non-nil. Only the first
// call has any effect.
func (s *Span) Finish(err error) {
	s.once.Do(func() {
		if err != nil {
			s.span.RecordError(err)
			s.span.SetStatus(codes.Error, err.Error())
		}
		s.span.End()
	})
}
