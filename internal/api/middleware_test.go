package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	redis "github.com/redis/go-redis/v9"

	"github.com/Armour007/grc-backend/pkg/logger"
)

func limitedEngine(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/login", mw, func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func hit(r *gin.Engine) int {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
	return w.Code
}

func pinLimiterClock(t *testing.T, at time.Time) {
	prev := limiterNow
	limiterNow = func() time.Time { return at }
	t.Cleanup(func() { limiterNow = prev })
}

func TestRedisRateLimit_RejectsOverLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rc.Close()
	pinLimiterClock(t, testNow)

	r := limitedEngine(RedisRateLimitMiddleware(rc, 2, logger.Nop()))
	for i := 0; i < 2; i++ {
		if code := hit(r); code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, code)
		}
	}
	if code := hit(r); code != http.StatusTooManyRequests {
		t.Fatalf("third request: expected 429, got %d", code)
	}

	key := "grc:rl:192.0.2.1:" + testNow.Format("200601021504")
	if v, err := mr.Get(key); err != nil || v != "3" {
		t.Fatalf("counter %s = %q (%v)", key, v, err)
	}
	if ttl := mr.TTL(key); ttl <= 0 {
		t.Fatalf("counter has no expiry: %v", ttl)
	}

	// a new minute starts a new window
	pinLimiterClock(t, testNow.Add(time.Minute))
	if code := hit(r); code != http.StatusOK {
		t.Fatalf("next window: expected 200, got %d", code)
	}
}

func TestRedisRateLimit_FallsBackWhenRedisIsDown(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rc.Close()
	mr.Close()

	r := limitedEngine(RedisRateLimitMiddleware(rc, 1, logger.Nop()))
	if code := hit(r); code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", code)
	}
	if code := hit(r); code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429 from local limiter, got %d", code)
	}
}

func TestIPLimiter_Window(t *testing.T) {
	l := newIPLimiter(2, time.Minute)
	now := testNow
	l.now = func() time.Time { return now }

	if ok, _ := l.allow("10.0.0.1"); !ok {
		t.Fatal("first request rejected")
	}
	if ok, _ := l.allow("10.0.0.1"); !ok {
		t.Fatal("second request rejected")
	}
	ok, retry := l.allow("10.0.0.1")
	if ok || retry <= 0 {
		t.Fatalf("third request allowed=%v retry=%v", ok, retry)
	}
	if ok, _ := l.allow("10.0.0.2"); !ok {
		t.Fatal("other client throttled")
	}
	now = now.Add(time.Minute)
	if ok, _ := l.allow("10.0.0.1"); !ok {
		t.Fatal("window did not reset")
	}
}

func TestRequireRoles_WithoutUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", RequireRoles(nil), func(c *gin.Context) { c.Status(http.StatusOK) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAuthMiddleware_MalformedHeaderIsCounted(t *testing.T) {
	h := newHarness(t)
	malformed := authFailureTotal.WithLabelValues("token_malformed")
	before := testutil.ToFloat64(malformed)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/profile", nil)
	req.Header.Set("Authorization", "Token abc")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized || errorOf(t, w) != "Authorization header format must be Bearer {token}" {
		t.Fatalf("expected 401, got %d: %s", w.Code, w.Body.String())
	}
	if got := testutil.ToFloat64(malformed) - before; got != 1 {
		t.Fatalf("token_malformed counted %v times", got)
	}
	h.verify()
}
