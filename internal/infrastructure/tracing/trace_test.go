package tracing

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/flying-pisces/mkd-automation-sub002/internal/infrastructure/logging"
)

func newTestTracer() *Tracer {
	return New("connector", logging.NewNop())
}

func TestStartSpanGeneratesIDs(t *testing.T) {
	tracer := newTestTracer()

	span, ctx := tracer.StartSpan(context.Background(), "operation")
	if span.TraceID == "" || span.SpanID == "" {
		t.Fatalf("expected generated ids, got %+v", span)
	}
	if span.ParentID != "" {
		t.Errorf("root span must have no parent, got %s", span.ParentID)
	}
	if GetTraceID(ctx) != span.TraceID {
		t.Error("trace id not propagated into context")
	}
	if GetSpanID(ctx) != span.SpanID {
		t.Error("span id not propagated into context")
	}
}

func TestChildSpanInheritsTrace(t *testing.T) {
	tracer := newTestTracer()

	parent, ctx := tracer.StartSpan(context.Background(), "parent")
	child, _ := tracer.StartSpan(ctx, "child")

	if child.TraceID != parent.TraceID {
		t.Errorf("child trace %s != parent trace %s", child.TraceID, parent.TraceID)
	}
	if child.ParentID != parent.SpanID {
		t.Errorf("child parent %s != parent span %s", child.ParentID, parent.SpanID)
	}
	if child.SpanID == parent.SpanID {
		t.Error("child must get its own span id")
	}
}

func TestExtractTraceContext(t *testing.T) {
	headers := make(http.Header)
	headers.Set(HeaderTraceID, "trace-a")
	headers.Set(HeaderSpanID, "span-b")

	traceID, spanID := ExtractTraceContext(headers)
	if traceID != "trace-a" {
		t.Errorf("trace id lost in transit: %s", traceID)
	}
	if spanID != "span-b" {
		t.Errorf("span id lost in transit: %s", spanID)
	}
}

func TestExtractTraceContextEmptyHeaders(t *testing.T) {
	traceID, spanID := ExtractTraceContext(make(http.Header))
	if traceID != "" || spanID != "" {
		t.Errorf("expected empty ids, got %s/%s", traceID, spanID)
	}
}

func TestSpanFinishComputesDuration(t *testing.T) {
	tracer := newTestTracer()
	span, _ := tracer.StartSpan(context.Background(), "operation")

	span.Finish()
	if span.EndTime.Before(span.StartTime) {
		t.Error("end time precedes start time")
	}
	if span.Duration < 0 {
		t.Error("negative duration")
	}
}

func TestSetErrorMarksStatus(t *testing.T) {
	tracer := newTestTracer()
	span, _ := tracer.StartSpan(context.Background(), "operation")

	span.SetError(errors.New("boom"))
	if span.StatusCode != 500 {
		t.Errorf("expected status 500, got %d", span.StatusCode)
	}
	if span.Error == nil {
		t.Error("error not recorded")
	}
}

type captureCaller struct {
	lastCommand string
	lastCtx     context.Context
	err         error
}

func (c *captureCaller) Call(ctx context.Context, command string, _ map[string]interface{}) (map[string]interface{}, error) {
	c.lastCommand = command
	c.lastCtx = ctx
	if c.err != nil {
		return nil, c.err
	}
	return map[string]interface{}{"ok": true}, nil
}

func TestWrapCallerPassesThrough(t *testing.T) {
	tracer := newTestTracer()
	inner := &captureCaller{}
	caller := WrapCaller(tracer, inner)

	data, err := caller.Call(context.Background(), "PING", nil)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if data["ok"] != true {
		t.Errorf("response lost: %v", data)
	}
	if inner.lastCommand != "PING" {
		t.Errorf("command lost: %s", inner.lastCommand)
	}
	// The inner call must run under the span's context so nested
	// operations join the same trace
	if GetTraceID(inner.lastCtx) == "" {
		t.Error("inner call did not receive trace context")
	}
}

func TestWrapCallerPropagatesErrors(t *testing.T) {
	tracer := newTestTracer()
	inner := &captureCaller{err: errors.New("channel down")}
	caller := WrapCaller(tracer, inner)

	_, err := caller.Call(context.Background(), "START_RECORDING", nil)
	if err == nil || err.Error() != "channel down" {
		t.Errorf("expected inner error, got %v", err)
	}
}

