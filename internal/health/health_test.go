package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func serve(t *testing.T, h *Handler, path string) (int, report) {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body report
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return rec.Code, body
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestHealthz(t *testing.T) {
	t.Parallel()
	h := New([]Check{Ping("store", pinger{errors.New("down")})})
	code, body := serve(t, h, "/healthz")
	if code != http.StatusOK || body.Status != "ok" {
		t.Errorf("healthz = %d %q, want 200 ok regardless of checks", code, body.Status)
	}
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		checks     []Check
		wantCode   int
		wantStatus string
		wantFailed []string
	}{
		{name: "no checks", wantCode: http.StatusOK, wantStatus: "ok"},
		{
			name:       "all pass",
			checks:     []Check{Ping("store", pinger{}), Ping("discord", pinger{})},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name:       "one fails",
			checks:     []Check{Ping("store", pinger{errors.New("connection refused")}), Ping("discord", pinger{})},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "fail",
			wantFailed: []string{"store"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			code, body := serve(t, New(tt.checks), "/readyz")
			if code != tt.wantCode || body.Status != tt.wantStatus {
				t.Errorf("readyz = %d %q, want %d %q", code, body.Status, tt.wantCode, tt.wantStatus)
			}
			if len(body.Checks) != len(tt.checks) {
				t.Errorf("checks = %v, want %d entries", body.Checks, len(tt.checks))
			}
			for _, name := range tt.wantFailed {
				if c := body.Checks[name]; c.Status != "fail" || c.Error == "" {
					t.Errorf("check %q = %+v, want fail with error", name, c)
				}
			}
		})
	}
}

func TestReadyz_Timeout(t *testing.T) {
	t.Parallel()

	slow := Check{Name: "slow", Fn: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	h := New([]Check{slow}, WithTimeout(20*time.Millisecond))

	code, body := serve(t, h, "/readyz")
	if code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", code)
	}
	if body.Checks["slow"].Error != context.DeadlineExceeded.Error() {
		t.Errorf("error = %q, want deadline exceeded", body.Checks["slow"].Error)
	}
}
