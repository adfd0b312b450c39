package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func ok(context.Context) error { return nil }

func failWith(msg string) func(context.Context) error {
	return func(context.Context) error { return errors.New(msg) }
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func readyz(t *testing.T, h *Handler, ctx context.Context) (int, result) {
	t.Helper()
	req := httptest.NewRequest("GET", "/readyz", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return rec.Code, body
}

func TestHealthz_AlwaysReturns200(t *testing.T) {
	t.Parallel()
	h := New(Checker{Name: "storage", Check: failWith("down")})

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	h.Healthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	degraded := true
	tests := []struct {
		name       string
		checkers   []Checker
		wantStatus int
		want       result
	}{
		{
			name:       "no checkers",
			wantStatus: http.StatusOK,
			want:       result{Status: "ok"},
		},
		{
			name: "all pass",
			checkers: []Checker{
				{Name: "storage", Check: ok},
				Ping("message_log", pinger{}),
			},
			wantStatus: http.StatusOK,
			want:       result{Status: "ok", Checks: map[string]string{"storage": "ok", "message_log": "ok"}},
		},
		{
			name: "required fails",
			checkers: []Checker{
				Ping("storage", pinger{err: errors.New("connection refused")}),
				{Name: "message_log", Check: ok},
			},
			wantStatus: http.StatusServiceUnavailable,
			want: result{Status: "fail", Checks: map[string]string{
				"storage":     "fail: connection refused",
				"message_log": "ok",
			}},
		},
		{
			name: "optional fails",
			checkers: []Checker{
				{Name: "storage", Check: ok},
				Degraded("message_log", func() bool { return degraded }),
			},
			wantStatus: http.StatusOK,
			want: result{Status: "degraded", Checks: map[string]string{
				"storage":     "ok",
				"message_log": "fail: degraded",
			}},
		},
		{
			name: "required and optional fail",
			checkers: []Checker{
				Degraded("message_log", func() bool { return degraded }),
				{Name: "storage", Check: failWith("timeout")},
			},
			wantStatus: http.StatusServiceUnavailable,
			want: result{Status: "fail", Checks: map[string]string{
				"storage":     "fail: timeout",
				"message_log": "fail: degraded",
			}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			code, body := readyz(t, New(tt.checkers...), context.Background())
			if code != tt.wantStatus {
				t.Errorf("status = %d, want %d", code, tt.wantStatus)
			}
			if diff := cmp.Diff(tt.want, body); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRegister_RoutesWork(t *testing.T) {
	t.Parallel()
	h := New(Checker{Name: "test", Check: ok})

	mux := http.NewServeMux()
	h.Register(mux)

	for _, path := range []string{"/healthz", "/readyz"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest("GET", path, nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
			}
		})
	}
}

func TestReadyz_RespectsContextCancellation(t *testing.T) {
	t.Parallel()
	h := New(Checker{Name: "slow", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	code, body := readyz(t, h, ctx)
	if code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", code, http.StatusServiceUnavailable)
	}
	if body.Checks["slow"] != "fail: context canceled" {
		t.Errorf("slow check = %q", body.Checks["slow"])
	}
}
