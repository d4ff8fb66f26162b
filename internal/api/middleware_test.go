package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/clinicflow/reminders/internal/redis"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestIPKeyFunc(t *testing.T) {
	tests := []struct {
		name       string
		forwarded  string
		realIP     string
		remoteAddr string
		expected   string
	}{
		{"X-Forwarded-For", "1.2.3.4", "", "5.6.7.8:1234", "ip:1.2.3.4"},
		{"X-Forwarded-For chain", "1.2.3.4, 10.0.0.1", "", "5.6.7.8:1234", "ip:1.2.3.4"},
		{"X-Real-IP", "", "1.2.3.4", "5.6.7.8:1234", "ip:1.2.3.4"},
		{"RemoteAddr fallback", "", "", "5.6.7.8:1234", "ip:5.6.7.8"},
		{"RemoteAddr without port", "", "", "5.6.7.8", "ip:5.6.7.8"},
		{"Forwarded takes precedence", "1.1.1.1", "2.2.2.2", "3.3.3.3:1234", "ip:1.1.1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			req.RemoteAddr = tt.remoteAddr

			result := IPKeyFunc(req)
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestAdminAuth(t *testing.T) {
	signed := func(method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}
	future := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name           string
		secret         []byte
		header         string
		expectedStatus int
	}{
		{"valid admin token", testSecret, "Bearer " + adminToken(t, AdminRole, time.Hour), http.StatusOK},
		{"missing header", testSecret, "", http.StatusUnauthorized},
		{"wrong scheme", testSecret, "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"expired token", testSecret, "Bearer " + adminToken(t, AdminRole, -time.Minute), http.StatusUnauthorized},
		{"wrong secret", testSecret, "Bearer " + signed(jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"role": AdminRole, "exp": future}), http.StatusUnauthorized},
		{"unexpected algorithm", testSecret, "Bearer " + signed(jwt.SigningMethodHS512, testSecret, jwt.MapClaims{"role": AdminRole, "exp": future}), http.StatusUnauthorized},
		{"missing expiry", testSecret, "Bearer " + signed(jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"role": AdminRole}), http.StatusUnauthorized},
		{"non-admin role", testSecret, "Bearer " + adminToken(t, "receptionist", time.Hour), http.StatusForbidden},
		{"secret not configured", nil, "Bearer " + adminToken(t, AdminRole, time.Hour), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var subject string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				subject = AdminSubject(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/v1/reminders/run", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			AdminAuth(tt.secret, zap.NewNop())(next).ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected %d, got %d: %s", tt.expectedStatus, rec.Code, rec.Body.String())
			}
			if rec.Code == http.StatusOK && subject != "ops@clinic.cd" {
				t.Errorf("expected subject in context, got %q", subject)
			}
			if rec.Code != http.StatusOK {
				decodeError(t, rec)
			}
		})
	}
}

func TestRateLimitMiddleware_NoLimiter(t *testing.T) {
	middleware := RateLimitMiddleware(nil, nil, IPKeyFunc)
	wrapped := middleware(okHandler())

	req := httptest.NewRequest("GET", "/test", nil)
	rec := httptest.NewRecorder()

	wrapped.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func newLimiter(t *testing.T, limit int) *redis.RateLimiter {
	t.Helper()
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	if err != nil {
		t.Fatalf("miniredis port: %v", err)
	}

	client, err := redis.New(context.Background(), redis.Config{Host: mr.Host(), Port: port}, zap.NewNop())
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	return redis.NewRateLimiter(client, zap.NewNop(), redis.RateLimitConfig{Limit: limit, Window: time.Minute})
}

func TestRateLimitMiddleware_RejectsOverLimit(t *testing.T) {
	wrapped := RateLimitMiddleware(newLimiter(t, 2), zap.NewNop(), IPKeyFunc)(okHandler())

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/v1/reminders/run", nil)
		req.RemoteAddr = "10.1.1.1:5555"
		last = httptest.NewRecorder()
		wrapped.ServeHTTP(last, req)
		codes = append(codes, last.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("expected [200 200 429], got %v", codes)
	}
	if last.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if got := last.Header().Get("X-RateLimit-Limit"); got != "2" {
		t.Errorf("expected limit header 2, got %q", got)
	}
	if errResp := decodeError(t, last); errResp.Type != "rate_limit_exceeded" {
		t.Errorf("expected rate_limit_exceeded, got %s", errResp.Type)
	}

	// other clients keep their own window
	req := httptest.NewRequest("GET", "/v1/reminders/run", nil)
	req.RemoteAddr = "10.2.2.2:5555"
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for a different client, got %d", rec.Code)
	}
}
