package util

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWithSecurityHeaders(t *testing.T) {
	h := WithSecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options mismatch: %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("X-Frame-Options mismatch: %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Fatalf("Cache-Control mismatch: %q", got)
	}
}

func TestWithCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name    string
		origins []string
		origin  string
		method  string
		want    string
		status  int
	}{
		{name: "any origin when unset", origin: "http://localhost:5173", method: http.MethodGet, want: "*", status: http.StatusOK},
		{name: "listed origin echoed", origins: []string{"http://localhost:5173"}, origin: "http://localhost:5173", method: http.MethodGet, want: "http://localhost:5173", status: http.StatusOK},
		{name: "unlisted origin omitted", origins: []string{"http://localhost:5173"}, origin: "http://evil.test", method: http.MethodGet, want: "", status: http.StatusOK},
		{name: "preflight short-circuits", origins: []string{"*"}, origin: "http://a.test", method: http.MethodOptions, want: "*", status: http.StatusNoContent},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/api/session", nil)
			req.Header.Set("Origin", tc.origin)
			rec := httptest.NewRecorder()
			WithCORS(tc.origins, next).ServeHTTP(rec, req)
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tc.want {
				t.Fatalf("allow origin = %q, want %q", got, tc.want)
			}
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "127.0.0.1:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.5")
	if got := ClientIP(req); got != "127.0.0.1" {
		t.Fatalf("client ip = %q, want 127.0.0.1", got)
	}
	req.RemoteAddr = "not-a-hostport"
	if got := ClientIP(req); got != "not-a-hostport" {
		t.Fatalf("client ip = %q, want raw remote addr", got)
	}
}
