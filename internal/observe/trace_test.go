package observe

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// newTestTracerProvider returns a provider recording into an in-memory
// exporter.
func newTestTracerProvider(t *testing.T) (*sdktrace.TracerProvider, *tracetest.InMemoryExporter) {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, exp
}

// captureLogs installs a text logger writing into the returned buffer.
func captureLogs(t *testing.T, level slog.Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: level})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestCorrelationID(t *testing.T) {
	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID(background) = %q, want empty", got)
	}

	tp, exp := newTestTracerProvider(t)
	ctx, span := tp.Tracer("test").Start(context.Background(), "turn")
	cid := CorrelationID(ctx)
	span.End()

	if len(cid) != 32 {
		t.Fatalf("CorrelationID = %q, want 32 hex chars", cid)
	}
	spans := exp.GetSpans()
	if len(spans) != 1 || spans[0].SpanContext.TraceID().String() != cid {
		t.Errorf("CorrelationID %q does not match the recorded span", cid)
	}

	ctx2, span2 := tp.Tracer("test").Start(context.Background(), "other")
	defer span2.End()
	if CorrelationID(ctx2) == cid {
		t.Error("two root spans share a correlation id")
	}
}

func TestLogger(t *testing.T) {
	tp, _ := newTestTracerProvider(t)

	tests := []struct {
		name    string
		ctx     func() context.Context
		want    []string
		notWant []string
	}{
		{
			name:    "plain",
			ctx:     context.Background,
			notWant: []string{"trace_id", "user_id"},
		},
		{
			name: "span",
			ctx: func() context.Context {
				ctx, _ := tp.Tracer("test").Start(context.Background(), "log")
				return ctx
			},
			want: []string{"trace_id=", "span_id="},
		},
		{
			name: "turn attributes",
			ctx: func() context.Context {
				ctx := WithLogAttrs(context.Background(), "user_id", "alice__u1")
				return WithLogAttrs(ctx, "request_id", "r1")
			},
			want:    []string{"user_id=alice__u1", "request_id=r1"},
			notWant: []string{"trace_id"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLogs(t, slog.LevelInfo)
			Logger(tt.ctx()).Info("turn processed")
			logged := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(logged, w) {
					t.Errorf("log %q is missing %q", logged, w)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(logged, w) {
					t.Errorf("log %q unexpectedly contains %q", logged, w)
				}
			}
		})
	}
}

func TestWithLogAttrs_DoesNotShareSlices(t *testing.T) {
	base := WithLogAttrs(context.Background(), "user_id", "u1")
	a := WithLogAttrs(base, "request_id", "a")
	b := WithLogAttrs(base, "request_id", "b")

	buf := captureLogs(t, slog.LevelInfo)
	Logger(a).Info("x")
	Logger(b).Info("y")
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], "request_id=a") || !strings.Contains(lines[1], "request_id=b") {
		t.Errorf("derived contexts leaked attributes:\n%s", buf.String())
	}
}
