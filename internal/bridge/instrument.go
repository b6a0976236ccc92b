package bridge

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/MeKo-Tech/scanbridge/internal/bridge"

// Instrument wraps ch so every dispatch is counted, timed and traced.
// Payloads pass through untouched.
func Instrument(ch Channel) Channel {
	return &instrumentedChannel{next: ch, tracer: otel.Tracer(instrumentationName)}
}

type instrumentedChannel struct {
	next   Channel
	tracer trace.Tracer
}

func (c *instrumentedChannel) Execute(onSuccess SuccessFunc, onError ErrorFunc, target, operation string, args []any) {
	_, span := c.tracer.Start(context.Background(), "scanbridge."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("scanbridge.target", target),
			attribute.String("scanbridge.operation", operation),
			attribute.Int("scanbridge.args", len(args)),
		),
	)

	dispatchTotal.WithLabelValues(operation).Inc()
	pendingCalls.WithLabelValues(operation).Inc()
	start := time.Now()

	// A misbehaving channel may call back twice; only the first resolution is recorded.
	var resolved atomic.Bool
	finish := func(status string) bool {
		if !resolved.CompareAndSwap(false, true) {
			return false
		}
		pendingCalls.WithLabelValues(operation).Dec()
		resultTotal.WithLabelValues(operation, status).Inc()
		resultDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
		return true
	}

	c.next.Execute(
		func(result any) {
			if finish("success") {
				span.SetStatus(codes.Ok, "")
				span.End()
			}
			onSuccess(result)
		},
		func(errPayload any) {
			if finish("error") {
				span.SetStatus(codes.Error, fmt.Sprint(errPayload))
				span.End()
			}
			onError(errPayload)
		},
		target, operation, args,
	)
}
