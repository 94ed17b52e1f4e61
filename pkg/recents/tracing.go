package recents

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the name of the tracer for call-history operations.
const TracerName = "recents"

// Span attribute keys
const (
	AttrRequestID     = "request_id"
	AttrGrouped       = "grouped"
	AttrMaxSize       = "max_size"
	AttrPreviousCount = "previous_count"
	AttrRecordCount   = "record_count"
	AttrCallCount     = "call_count"
	AttrChunkCount    = "chunk_count"
	AttrIDCount       = "id_count"
)

// Span names
const (
	SpanFetchPage   = "recents.fetch_page"
	SpanDeleteByIDs = "recents.delete_by_ids"
	SpanDeleteAll   = "recents.delete_all"
	SpanRestore     = "recents.restore"
)

type tracer struct {
	tracer trace.Tracer
}

func newTracer() *tracer {
	return &tracer{tracer: otel.Tracer(TracerName)}
}

func (t *tracer) startFetch(ctx context.Context, requestID string, req PageRequest, maxSize int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanFetchPage,
		trace.WithAttributes(
			attribute.String(AttrRequestID, requestID),
			attribute.Bool(AttrGrouped, req.GroupSubsequentCalls),
			attribute.Int(AttrMaxSize, maxSize),
			attribute.Int(AttrPreviousCount, len(req.PreviousPage)),
		),
	)
}

func (t *tracer) startMutation(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// endSpan sets the span status from err and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
