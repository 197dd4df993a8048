package observability

import (
	"context"

	"go.opentelemetry.io/otel/propagation"
)

// ExtractCarrier returns ctx with the remote span context found in carrier
// (if any) as its parent.
func ExtractCarrier(ctx context.Context, carrier map[string]string) context.Context {
	if len(carrier) == 0 {
		return ctx
	}
	return Propagator().Extract(ctx, propagation.MapCarrier(carrier))
}

// InjectCarrier builds the outbound carrier for a collaborator call: a copy
// of the inbound carrier with the current span context written over it.
// Keys the propagator does not own are forwarded untouched.
func InjectCarrier(ctx context.Context, inbound map[string]string) map[string]string {
	out := make(map[string]string, len(inbound)+2)
	for k, v := range inbound {
		out[k] = v
	}
	Propagator().Inject(ctx, propagation.MapCarrier(out))
	return out
}
