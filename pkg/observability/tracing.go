package observability

import (
	"context"
	"fmt"

	"github.com/aws/aws-xray-sdk-go/xray"
)

// Tracer opens X-Ray subsegments around catalog operations. Without an
// enclosing segment (CLI, tests) the calls are no-ops apart from the wrapped
// function itself.
type Tracer struct {
	serviceName string
}

func NewTracer(serviceName string) *Tracer {
	return &Tracer{serviceName: serviceName}
}

// Name returns the segment name used for the HTTP handler.
func (t *Tracer) Name() string {
	return t.serviceName
}

// TraceFunction runs fn inside a subsegment named after the service and op.
func (t *Tracer) TraceFunction(ctx context.Context, op string, fn func(context.Context) error) error {
	if xray.GetSegment(ctx) == nil {
		return fn(ctx)
	}
	ctx, seg := xray.BeginSubsegment(ctx, fmt.Sprintf("%s.%s", t.serviceName, op))
	err := fn(ctx)
	seg.Close(err)
	return err
}

// AddAnnotation adds an indexed annotation to the current segment
func (t *Tracer) AddAnnotation(ctx context.Context, key string, value string) {
	if seg := xray.GetSegment(ctx); seg != nil {
		seg.AddAnnotation(key, value)
	}
}

// RecordError records an error in the current segment
func (t *Tracer) RecordError(ctx context.Context, err error) {
	if seg := xray.GetSegment(ctx); seg != nil {
		seg.AddError(err)
	}
}
