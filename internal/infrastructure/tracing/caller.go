package tracing

import "context"

// Caller matches the host client's request surface
type Caller interface {
	Call(ctx context.Context, command string, params map[string]interface{}) (map[string]interface{}, error)
}

// WrapCaller decorates a host caller so every round-trip gets its own
// span, tagged with the command it carried
func WrapCaller(tracer *Tracer, next Caller) Caller {
	return &tracedCaller{tracer: tracer, next: next}
}

type tracedCaller struct {
	tracer *Tracer
	next   Caller
}

func (tc *tracedCaller) Call(ctx context.Context, command string, params map[string]interface{}) (map[string]interface{}, error) {
	span, ctx := tc.tracer.StartSpan(ctx, "host."+command)
	span.SetTag("host.command", command)

	data, err := tc.next.Call(ctx, command, params)

	if err != nil {
		span.SetError(err)
	} else {
		span.SetStatus(200)
	}
	span.Finish()
	tc.tracer.Submit(span)

	return data, err
}
