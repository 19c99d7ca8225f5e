package scan

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/app/scan"

// Span and metric attributes.
var (
	AttrRunID    = attribute.Key("pumuki.run.id")
	AttrStage    = attribute.Key("pumuki.stage")
	AttrScope    = attribute.Key("pumuki.scope.kind")
	AttrStatus   = attribute.Key("pumuki.gate.status")
	AttrFiles    = attribute.Key("pumuki.files.scanned")
	AttrFindings = attribute.Key("pumuki.findings")
	AttrPhase    = attribute.Key("pumuki.phase")
)

type instruments struct {
	runs     metric.Int64Counter
	findings metric.Int64Counter
	duration metric.Float64Histogram
}

var (
	instrumentsOnce sync.Once
	inst            instruments
)

// meters returns the run instruments from the global provider. Creation
// errors leave no-op instruments behind.
func meters() instruments {
	instrumentsOnce.Do(func() {
		m := otel.Meter(instrumentationName)
		var err error
		if inst.runs, err = m.Int64Counter("pumuki.gate.runs",
			metric.WithDescription("Gate runs by stage and status")); err != nil {
			inst.runs = nil
		}
		if inst.findings, err = m.Int64Counter("pumuki.gate.findings",
			metric.WithDescription("Findings emitted after rule merge")); err != nil {
			inst.findings = nil
		}
		if inst.duration, err = m.Float64Histogram("pumuki.gate.duration",
			metric.WithDescription("Gate run wall time"),
			metric.WithUnit("s")); err != nil {
			inst.duration = nil
		}
	})
	return inst
}

func (i instruments) record(ctx context.Context, stage, status string, findings int, seconds float64) {
	attrs := metric.WithAttributes(AttrStage.String(stage), AttrStatus.String(status))
	if i.runs != nil {
		i.runs.Add(ctx, 1, attrs)
	}
	if i.findings != nil {
		i.findings.Add(ctx, int64(findings), attrs)
	}
	if i.duration != nil {
		i.duration.Record(ctx, seconds, attrs)
	}
}

func tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// phase opens a child span for one pipeline step.
func phase(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "pumuki."+name, trace.WithAttributes(AttrPhase.String(name)))
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
