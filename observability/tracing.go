package observability

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/carbon"
)

// TracerOption returns an engine option that opens spans on tp. A nil tp
// uses the global OpenTelemetry provider.
func TracerOption(tp trace.TracerProvider) carbon.Option {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return carbon.WithTracer(tp.Tracer(carbon.TracerName))
}
