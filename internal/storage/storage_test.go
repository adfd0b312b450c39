package storage_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/dialogic/internal/observe"
	"github.com/MrWong99/dialogic/internal/resilience"
	"github.com/MrWong99/dialogic/internal/storage"
)

// roundTrip exercises the contract every backend shares. Values are JSON
// shaped so that backends that serialize return identical maps.
func roundTrip(t *testing.T, s storage.Store) {
	t.Helper()
	ctx := context.Background()

	got, err := s.Get(ctx, "nobody")
	if err != nil {
		t.Fatalf("Get unknown: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("Get unknown = %#v, want empty map", got)
	}

	obj := map[string]any{
		"stage": "pizza_kind",
		"forms": map[string]any{
			"astrology": map[string]any{"is_active": true, "next_question": float64(2)},
		},
		"tags": []any{"a", "b"},
	}
	if err := s.Set(ctx, "user/1", obj); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err = s.Get(ctx, "user/1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if diff := cmp.Diff(obj, got); diff != "" {
		t.Errorf("Get mismatch (-want +got):\n%s", diff)
	}

	if err := s.Set(ctx, "user/1", map[string]any{"stage": "done"}); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	got, err = s.Get(ctx, "user/1")
	if err != nil {
		t.Fatalf("Get after overwrite: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"stage": "done"}, got); diff != "" {
		t.Errorf("overwrite mismatch (-want +got):\n%s", diff)
	}
}

func TestMemory(t *testing.T) {
	t.Parallel()
	roundTrip(t, storage.NewMemory())
}

func TestMemory_DeepCopies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := storage.NewMemory()

	obj := map[string]any{"nested": map[string]any{"n": 1}}
	if err := m.Set(ctx, "u", obj); err != nil {
		t.Fatal(err)
	}
	obj["nested"].(map[string]any)["n"] = 2

	got, _ := m.Get(ctx, "u")
	got["nested"].(map[string]any)["n"] = 3

	again, _ := m.Get(ctx, "u")
	if n := again["nested"].(map[string]any)["n"]; n != 1 {
		t.Fatalf("stored value = %v, want 1", n)
	}
	if m.Len() != 1 {
		t.Fatalf("Len = %d, want 1", m.Len())
	}
}

func TestFile(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "users")
	f, err := storage.NewFile(dir)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	roundTrip(t, f)

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("directory has %d entries, want 1", len(entries))
	}
	if name := entries[0].Name(); strings.Contains(name, "/") || !strings.HasSuffix(name, ".json") {
		t.Fatalf("unexpected file name %q", name)
	}
}

func TestSQLite(t *testing.T) {
	t.Parallel()
	s, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "users.db"), "")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	roundTrip(t, s)
}

func TestSQLite_InvalidTable(t *testing.T) {
	t.Parallel()
	_, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "x.db"), "users; DROP TABLE x")
	if err == nil || !strings.Contains(err.Error(), "invalid table name") {
		t.Fatalf("err = %v, want invalid table name", err)
	}
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("DIALOGIC_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("DIALOGIC_TEST_POSTGRES_DSN not set")
	}
	s, err := storage.OpenPostgres(context.Background(), dsn, "dialogic_test_user_objects")
	if err != nil {
		t.Fatalf("OpenPostgres: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.Pool().Exec(context.Background(), "DROP TABLE IF EXISTS dialogic_test_user_objects")
		_ = s.Close()
	})
	roundTrip(t, s)
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	s, err := storage.OpenRedis(context.Background(), storage.RedisConfig{
		Addr:   addr,
		Prefix: "dialogic-test:" + t.Name() + ":",
		TTL:    time.Minute,
	})
	if err != nil {
		t.Fatalf("OpenRedis: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	roundTrip(t, s)
}

func TestOpen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, err := storage.Open(ctx, storage.Config{}, nil)
	if err != nil {
		t.Fatalf("Open memory: %v", err)
	}
	roundTrip(t, s)
	if err := storage.Close(s); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = storage.Open(ctx, storage.Config{Backend: storage.BackendSQLite, Path: filepath.Join(t.TempDir(), "u.db")}, nil)
	if err != nil {
		t.Fatalf("Open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = storage.Close(s) })
	if err := storage.Ping(ctx, s); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     storage.Config
		wantErr string
	}{
		{name: "default", cfg: storage.Config{}},
		{name: "memory", cfg: storage.Config{Backend: "memory"}},
		{name: "file without path", cfg: storage.Config{Backend: "file"}, wantErr: "storage.path is required"},
		{name: "sqlite without path", cfg: storage.Config{Backend: "sqlite"}, wantErr: "storage.path is required"},
		{name: "postgres without dsn", cfg: storage.Config{Backend: "postgres"}, wantErr: "storage.dsn"},
		{name: "redis without addr", cfg: storage.Config{Backend: "redis"}, wantErr: "storage.redis.addr"},
		{name: "s3 without bucket", cfg: storage.Config{Backend: "s3"}, wantErr: "storage.s3.bucket"},
		{name: "unknown", cfg: storage.Config{Backend: "mongo"}, wantErr: "unknown backend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}

	if _, err := storage.Open(context.Background(), storage.Config{Backend: "mongo"}, nil); !errors.Is(err, storage.ErrUnknownBackend) {
		t.Fatalf("Open err = %v, want ErrUnknownBackend", err)
	}
}

// flaky fails every call.
type flaky struct{ calls int }

func (f *flaky) Get(context.Context, string) (map[string]any, error) {
	f.calls++
	return nil, errors.New("connection refused")
}

func (f *flaky) Set(context.Context, string, map[string]any) error {
	f.calls++
	return errors.New("connection refused")
}

func TestGuarded_OpensBreaker(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	inner := &flaky{}
	g := storage.NewGuarded(inner, resilience.BreakerConfig{
		Name:        "test",
		MaxFailures: 2,
		Cooldown:    time.Hour,
	})

	for range 2 {
		if _, err := g.Get(ctx, "u"); err == nil {
			t.Fatal("expected error")
		}
	}
	if g.State() != resilience.StateOpen {
		t.Fatalf("state = %v, want open", g.State())
	}
	if err := g.Set(ctx, "u", nil); !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if inner.calls != 2 {
		t.Fatalf("inner called %d times, want 2", inner.calls)
	}
}

func TestInstrumented_RecordsErrors(t *testing.T) {
	t.Parallel()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatal(err)
	}

	s := storage.NewInstrumented(&flaky{}, "flaky", metrics)
	_, _ = s.Get(context.Background(), "u")
	_ = s.Set(context.Background(), "u", map[string]any{})

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}
	var errorsTotal int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "dialogic.storage.errors" {
				continue
			}
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				errorsTotal += dp.Value
			}
		}
	}
	if errorsTotal != 2 {
		t.Fatalf("storage errors = %d, want 2", errorsTotal)
	}
	if _, ok := s.Unwrap().(*flaky); !ok {
		t.Fatalf("Unwrap = %T, want *flaky", s.Unwrap())
	}
}
