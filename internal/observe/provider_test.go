package observe

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewProviders_ExportsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	p, err := NewProviders(ProviderConfig{ServiceVersion: "test", Registerer: reg})
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	m, err := NewMetrics(p.Meter)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.RecordTurn(context.Background(), "alice", "faq", 0)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var found bool
	for _, f := range families {
		if strings.HasPrefix(f.GetName(), "dialogic_turns") {
			found = true
		}
	}
	if !found {
		t.Errorf("no dialogic_turns metric among %d families", len(families))
	}
}

func TestNewProviders_Sampling(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		ratio float64
		want  bool
	}{
		{name: "default samples everything", ratio: 0, want: true},
		{name: "full", ratio: 1, want: true},
		{name: "out of range is clamped", ratio: 7, want: true},
		{name: "tiny ratio drops", ratio: 1e-12, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			exp := tracetest.NewInMemoryExporter()
			p, err := NewProviders(ProviderConfig{
				SampleRatio:   tt.ratio,
				TraceExporter: exp,
				Registerer:    prometheus.NewRegistry(),
			})
			if err != nil {
				t.Fatalf("NewProviders: %v", err)
			}
			t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

			_, span := p.Tracer.Tracer("test").Start(context.Background(), "turn")
			sampled := span.SpanContext().IsSampled()
			span.End()
			if err := p.Tracer.ForceFlush(context.Background()); err != nil {
				t.Fatalf("ForceFlush: %v", err)
			}
			if sampled != tt.want {
				t.Errorf("sampled = %v, want %v", sampled, tt.want)
			}
			if got := len(exp.GetSpans()) == 1; got != tt.want {
				t.Errorf("exported = %v, want %v", got, tt.want)
			}
		})
	}
}
