package httpx_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestIPKeyExtractors(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	req.Header.Set("X-Forwarded-For", "203.0.113.1, 192.168.1.1")

	// the plain extractor never trusts client supplied headers
	require.Equal(t, "192.168.1.1", httpx.IPKeyExtractor(req))
	require.Equal(t, "203.0.113.1", httpx.ForwardedIPKeyExtractor(req))

	req.Header.Del("X-Forwarded-For")
	req.Header.Set("X-Real-IP", "203.0.113.2")
	require.Equal(t, "203.0.113.2", httpx.ForwardedIPKeyExtractor(req))

	req.Header.Del("X-Real-IP")
	require.Equal(t, "192.168.1.1", httpx.ForwardedIPKeyExtractor(req))
}

func TestCompositeKeyExtractor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:12345"

	ex := httpx.CompositeKeyExtractor(":", httpx.UserIDKeyExtractor, httpx.IPKeyExtractor)
	require.Equal(t, "192.168.1.1", ex(req))

	req = req.WithContext(httpx.WithSubject(req.Context(), "user-1", "admin"))
	require.Equal(t, "user-1:192.168.1.1", ex(req))
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := httpx.RateLimitConfig{RequestsPerWindow: 3, Window: time.Minute, Burst: 3}
	h := httpx.RateLimitByIP(cfg)(okHandler())

	do := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/sessions/refresh", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	for i := range 3 {
		require.Equal(t, http.StatusOK, do("10.0.0.1:1").Code, "request %d", i)
	}

	rec := do("10.0.0.1:2")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
	require.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
	require.Contains(t, rec.Body.String(), "rate_limit_exceeded")

	// separate bucket per IP
	require.Equal(t, http.StatusOK, do("10.0.0.2:1").Code)
}

func TestRateLimitMiddleware_EmptyKeyPasses(t *testing.T) {
	cfg := httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, Burst: 1}
	h := httpx.RateLimitMiddleware(cfg, func(*http.Request) string { return "" })(okHandler())

	for range 5 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestParseRateLimitFromEnv(t *testing.T) {
	def := httpx.RateLimitConfig{RequestsPerWindow: 5, Window: time.Minute, Burst: 5}

	t.Setenv("RATELIMIT_TEST_REQUESTS", "50")
	t.Setenv("RATELIMIT_TEST_WINDOW_SEC", "10")
	t.Setenv("RATELIMIT_TEST_BURST", "nope")

	got := httpx.ParseRateLimitFromEnv("TEST", def)
	require.Equal(t, 50, got.RequestsPerWindow)
	require.Equal(t, 10*time.Second, got.Window)
	require.Equal(t, 5, got.Burst, "invalid values keep the default")

	t.Setenv("RATELIMIT_TEST_BURST", "-1")
	require.Equal(t, 5, httpx.ParseRateLimitFromEnv("TEST", def).Burst)
}

func BenchmarkRateLimitManyIPs(b *testing.B) {
	cfg := httpx.RateLimitConfig{RequestsPerWindow: 1000, Window: time.Second, Burst: 1000}
	h := httpx.RateLimitByIP(cfg)(okHandler())

	b.ResetTimer()
	for i := 0; b.Loop(); i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = fmt.Sprintf("10.0.%d.%d:1", (i/256)%256, i%256)
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
}
