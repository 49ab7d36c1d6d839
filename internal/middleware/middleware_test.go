package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shuttle/internal/clock"
	"shuttle/internal/domain"
	"shuttle/internal/metrics"
	"shuttle/internal/tests"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func serve(r *gin.Engine, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func asUser(id string, role domain.Role) map[string]string {
	return map[string]string{userIDHeader: id, userRoleHeader: string(role)}
}

// ──────────────────────────────────────────────
// IDENTITY
// ──────────────────────────────────────────────

func TestIdentity(t *testing.T) {
	r := gin.New()
	r.Use(Identity())
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": UserID(c), "role": UserRole(c)})
	})

	t.Run("accepts known roles", func(t *testing.T) {
		rec := serve(r, http.MethodGet, "/me", asUser("p-1", domain.RolePassenger))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"id":"p-1","role":"PASSAGEIRO"}`, rec.Body.String())
	})

	t.Run("rejects missing user", func(t *testing.T) {
		rec := serve(r, http.MethodGet, "/me", map[string]string{userRoleHeader: "ADMIN"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		rec := serve(r, http.MethodGet, "/me", asUser("p-1", "ROOT"))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireRole(t *testing.T) {
	r := gin.New()
	r.Use(Identity())
	r.POST("/start", RequireRole(domain.RoleDriver), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/start", asUser("d-1", domain.RoleDriver)).Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodPost, "/start", asUser("p-1", domain.RolePassenger)).Code)
}

// ──────────────────────────────────────────────
// REQUEST ID
// ──────────────────────────────────────────────

func TestRequestID(t *testing.T) {
	var seen string
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) {
		seen = GetRequestID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	t.Run("generates when missing", func(t *testing.T) {
		rec := serve(r, http.MethodGet, "/", nil)
		assert.Regexp(t, `^[0-9a-f-]{36}$`, rec.Header().Get(requestIDHeader))
		assert.Equal(t, rec.Header().Get(requestIDHeader), seen)
	})

	t.Run("keeps a valid id", func(t *testing.T) {
		rec := serve(r, http.MethodGet, "/", map[string]string{requestIDHeader: "trace-123"})
		assert.Equal(t, "trace-123", rec.Header().Get(requestIDHeader))
		assert.Equal(t, "trace-123", seen)
	})

	t.Run("replaces malformed ids", func(t *testing.T) {
		for _, bad := range []string{"has space", "<script>", strings.Repeat("a", 129)} {
			rec := serve(r, http.MethodGet, "/", map[string]string{requestIDHeader: bad})
			assert.NotEqual(t, bad, rec.Header().Get(requestIDHeader))
		}
	})
}

// ──────────────────────────────────────────────
// RATE LIMIT
// ──────────────────────────────────────────────

func TestRateLimiter_PerUser(t *testing.T) {
	clk := clock.NewMockClock(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	rl := NewRateLimiter(2, time.Second, clk)
	defer rl.Stop()

	r := gin.New()
	r.Use(Identity(), rl.Handler())
	r.POST("/checkin", func(c *gin.Context) { c.Status(http.StatusOK) })

	alice := asUser("alice", domain.RolePassenger)
	bob := asUser("bob", domain.RolePassenger)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/checkin", alice).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/checkin", alice).Code)

	rec := serve(r, http.MethodPost, "/checkin", alice)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	// Another caller has its own budget.
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/checkin", bob).Code)

	clk.Advance(time.Second)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/checkin", alice).Code)
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := NewRateLimiter(-1, time.Second, nil)
	defer rl.Stop()

	r := gin.New()
	r.Use(rl.Handler())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 50; i++ {
		require.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/", nil).Code)
	}
	assert.Zero(t, rl.size())
}

func TestRateLimiter_CleanupEvictsIdleCallers(t *testing.T) {
	clk := clock.NewMockClock(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	rl := NewRateLimiter(5, time.Second, clk)
	defer rl.Stop()

	rl.getLimiter("idle")
	clk.Advance(limiterIdleThreshold / 2)
	rl.getLimiter("active")
	clk.Advance(limiterIdleThreshold/2 + time.Second)

	rl.cleanupOnce()
	assert.Equal(t, 1, rl.size())

	rl.Stop()
	rl.Stop()
}

// ──────────────────────────────────────────────
// METRICS
// ──────────────────────────────────────────────

func TestMetrics_UsesRouteTemplate(t *testing.T) {
	m := metrics.New(discardLogger())
	defer m.Shutdown()

	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/v1/trips/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, http.MethodGet, "/v1/trips/abc", nil)
	serve(r, http.MethodGet, "/v1/trips/def", nil)
	serve(r, http.MethodGet, "/nowhere", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/v1/trips/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404")))
}

func TestMetrics_NilIsPassThrough(t *testing.T) {
	r := gin.New()
	r.Use(Metrics(nil))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	assert.Equal(t, http.StatusTeapot, serve(r, http.MethodGet, "/", nil).Code)
}

// ──────────────────────────────────────────────
// IDEMPOTENCY
// ──────────────────────────────────────────────

func TestIdempotencyCacheKey_ScopedPerUserAndRoute(t *testing.T) {
	a := idempotencyCacheKey("alice", "POST", "/v1/checkin", "k1")
	b := idempotencyCacheKey("bob", "POST", "/v1/checkin", "k1")
	c := idempotencyCacheKey("alice", "POST", "/v1/checkout", "k1")

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, "idempotency:alice:POST:/v1/checkin:k1", a)
}

func TestIdempotency_RedisFailureDoesNotBlock(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	calls := 0
	r := gin.New()
	r.Use(IdempotencyMiddleware(client, discardLogger()))
	r.POST("/v1/checkin", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	headers := map[string]string{idempotencyHeader: "retry-1"}
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/v1/checkin", headers).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/v1/checkin", headers).Code)
	assert.Equal(t, 2, calls)
}

func TestIdempotency_RejectsOversizedKey(t *testing.T) {
	r := gin.New()
	r.Use(IdempotencyMiddleware(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}), discardLogger()))
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := serve(r, http.MethodPost, "/", map[string]string{idempotencyHeader: strings.Repeat("k", maxIdempotencyKey+1)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIdempotency_ReplaysStoredResponse(t *testing.T) {
	store := tests.NewMemoryRedis()

	calls := 0
	r := gin.New()
	r.Use(Identity(), IdempotencyMiddleware(store, discardLogger()))
	r.POST("/v1/enrollments", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusCreated, gin.H{"enrollment": calls})
	})

	headers := asUser("p-1", domain.RolePassenger)
	headers[idempotencyHeader] = "k1"

	first := serve(r, http.MethodPost, "/v1/enrollments", headers)
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get("Idempotent-Replayed"))

	second := serve(r, http.MethodPost, "/v1/enrollments", headers)
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Contains(t, second.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, 1, calls)

	key := idempotencyCacheKey("p-1", http.MethodPost, "/v1/enrollments", "k1")
	assert.Equal(t, []string{key}, store.StoredKeys())
	assert.Equal(t, idempotencyTTL, store.TTLs[key])

	// Another caller with the same key is not served the first caller's response.
	other := asUser("p-2", domain.RolePassenger)
	other[idempotencyHeader] = "k1"
	rec := serve(r, http.MethodPost, "/v1/enrollments", other)
	assert.Empty(t, rec.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, 2, calls)
}

func TestIdempotency_ServerErrorsAreNotStored(t *testing.T) {
	store := tests.NewMemoryRedis()

	calls := 0
	r := gin.New()
	r.Use(IdempotencyMiddleware(store, discardLogger()))
	r.POST("/v1/checkin", func(c *gin.Context) {
		calls++
		c.Status(http.StatusServiceUnavailable)
	})

	headers := map[string]string{idempotencyHeader: "k1"}
	serve(r, http.MethodPost, "/v1/checkin", headers)
	serve(r, http.MethodPost, "/v1/checkin", headers)

	assert.Equal(t, 2, calls)
	assert.Empty(t, store.StoredKeys())
}

func TestIdempotency_TokenResponsesAreNeverStored(t *testing.T) {
	const secret = "PLAINTEXT-START-TOKEN"

	cases := []struct {
		name    string
		handler gin.HandlerFunc
	}{
		{
			name: "flagged by handler",
			handler: func(c *gin.Context) {
				SkipResponseCache(c)
				c.JSON(http.StatusOK, gin.H{"token": secret})
			},
		},
		{
			name: "no-store header",
			handler: func(c *gin.Context) {
				c.Header("Cache-Control", "no-store")
				c.JSON(http.StatusOK, gin.H{"token": secret})
			},
		},
		{
			name: "qr image",
			handler: func(c *gin.Context) {
				SkipResponseCache(c)
				c.Data(http.StatusOK, "image/png", []byte(secret))
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := tests.NewMemoryRedis()

			calls := 0
			r := gin.New()
			r.Use(Identity(), IdempotencyMiddleware(store, discardLogger()))
			r.POST("/v1/driver/trip/start", func(c *gin.Context) {
				calls++
				tc.handler(c)
			})

			headers := asUser("driver-1", domain.RoleDriver)
			headers[idempotencyHeader] = "k1"

			first := serve(r, http.MethodPost, "/v1/driver/trip/start", headers)
			require.Equal(t, http.StatusOK, first.Code)
			assert.Contains(t, first.Body.String(), secret)

			second := serve(r, http.MethodPost, "/v1/driver/trip/start", headers)
			assert.Empty(t, second.Header().Get("Idempotent-Replayed"))
			assert.Equal(t, 2, calls)
			assert.Empty(t, store.StoredKeys())
		})
	}
}

// ──────────────────────────────────────────────
// CORS
// ──────────────────────────────────────────────

func TestCORSMiddleware_Preflight(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware())
	r.POST("/v1/checkin", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := serve(r, http.MethodOptions, "/v1/checkin", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
