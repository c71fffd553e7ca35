package telemetry

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type requestSpanKey struct{}

func requestSpan(ctx context.Context) (trace.Span, bool) {
	span, ok := ctx.Value(requestSpanKey{}).(trace.Span)
	return span, ok
}

// InstrumentResty opens one span per request. Retries show up as "retry"
// events on it; the span ends once resty has given up or succeeded.
func InstrumentResty(client *resty.Client) {
	tracer := Tracer()

	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		if span, ok := requestSpan(req.Context()); ok {
			span.AddEvent("retry", trace.WithAttributes(attribute.Int("http.attempt", req.Attempt)))
			return nil
		}
		ctx, span := tracer.Start(req.Context(), "http "+req.Method,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(attribute.String("http.url", req.URL)),
		)
		req.SetContext(context.WithValue(ctx, requestSpanKey{}, span))
		return nil
	})

	client.OnSuccess(func(_ *resty.Client, res *resty.Response) {
		span, ok := requestSpan(res.Request.Context())
		if !ok {
			return
		}
		defer span.End()

		span.SetAttributes(
			attribute.Int("http.status_code", res.StatusCode()),
			attribute.Int("http.response_size", len(res.Body())),
			attribute.Int("http.attempts", res.Request.Attempt),
		)
		if res.IsError() {
			span.SetStatus(codes.Error, fmt.Sprintf("status %d", res.StatusCode()))
		}
	})

	fail := func(req *resty.Request, err error) {
		span, ok := requestSpan(req.Context())
		if !ok {
			return
		}
		defer span.End()

		span.SetAttributes(attribute.Int("http.attempts", req.Attempt))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	client.OnError(fail)
	client.OnPanic(fail)
}
