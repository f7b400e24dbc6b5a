package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(r.RemoteAddr))
})

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	h := rl.Handler(ok)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.RemoteAddr = "10.1.1.1:5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != http.StatusTooManyRequests {
		t.Errorf("status codes = %v, want [200 200 429]", codes)
	}

	other := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	other.RemoteAddr = "10.1.1.2:5000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	if rec.Code != 200 {
		t.Errorf("other client status = %d, want 200", rec.Code)
	}

	if n := rl.Sweep(time.Now().Add(2 * time.Minute)); n != 2 {
		t.Errorf("Sweep() removed %d, want 2", n)
	}
}

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		header string
		want   string
	}{
		{"trusted proxy", "10.0.0.5:1234", "203.0.113.7", "203.0.113.7"},
		{"untrusted client", "198.51.100.1:1234", "203.0.113.7", "198.51.100.1:1234"},
		{"garbage header", "10.0.0.5:1234", "not-an-ip", "10.0.0.5:1234"},
	}
	h := TrustedRealIP([]string{"10.0.0.0/8", "bogus"})(ok)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			req.Header.Set("X-Real-IP", tt.header)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if got := rec.Body.String(); got != tt.want {
				t.Errorf("RemoteAddr = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAPIKeyAuth(t *testing.T) {
	tests := []struct {
		name    string
		require bool
		key     string
		want    int
	}{
		{"disabled", false, "", 200},
		{"missing", true, "", http.StatusUnauthorized},
		{"wrong", true, "nope", http.StatusForbidden},
		{"valid", true, "beta", 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := APIKeyAuth(tt.require, []string{"alpha", "beta"})(ok)
			req := httptest.NewRequest(http.MethodGet, "/api/batches/x", nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
