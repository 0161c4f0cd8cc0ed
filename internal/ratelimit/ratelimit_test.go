package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/auth"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/tenant"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeClock lets tests move time without sleeping.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func newLimiter(t *testing.T, cfg Config) (*Limiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	l := New(cfg)
	l.now = clock.Now
	t.Cleanup(l.Stop)
	return l, clock
}

func TestLimiterAllow(t *testing.T) {
	l, clock := newLimiter(t, Config{RequestsPerMinute: 60, BurstSize: 5, CleanupInterval: time.Minute})

	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow("k"), "request %d should be within burst", i)
	}
	assert.False(t, l.Allow("k"), "request after burst should be denied")

	clock.Advance(time.Second)
	assert.True(t, l.Allow("k"), "one token refills after a second at 60/min")
	assert.False(t, l.Allow("k"))
}

func TestLimiterMultipleClients(t *testing.T) {
	l, _ := newLimiter(t, Config{RequestsPerMinute: 60, BurstSize: 3, CleanupInterval: time.Minute})

	for i := 0; i < 3; i++ {
		l.Allow("client-a")
	}
	assert.False(t, l.Allow("client-a"))
	assert.True(t, l.Allow("client-b"))
}

func TestLimiterBurstCap(t *testing.T) {
	l, clock := newLimiter(t, Config{RequestsPerMinute: 600, BurstSize: 2, CleanupInterval: time.Minute})

	l.Allow("k")
	clock.Advance(time.Hour)
	assert.True(t, l.Allow("k"))
	assert.True(t, l.Allow("k"))
	assert.False(t, l.Allow("k"), "idle time never banks more than the burst")
}

func TestConfigForRPM(t *testing.T) {
	assert.Equal(t, DefaultConfig(), ConfigForRPM(0))

	cfg := ConfigForRPM(120)
	assert.Equal(t, 120, cfg.RequestsPerMinute)
	assert.Equal(t, 20, cfg.BurstSize)
	assert.Equal(t, 1, ConfigForRPM(3).BurstSize)
}

func TestStopIsIdempotent(t *testing.T) {
	l := New(DefaultConfig())
	l.Stop()
	l.Stop()
}

func TestMiddleware_KeysByPrincipal(t *testing.T) {
	l, _ := newLimiter(t, Config{RequestsPerMinute: 60, BurstSize: 1, CleanupInterval: time.Minute})

	as := func(p *tenant.Principal) int {
		router := gin.New()
		router.Use(func(c *gin.Context) {
			if p != nil {
				c.Set(auth.ContextKeyPrincipal, *p)
			}
			c.Next()
		})
		router.Use(l.Middleware())
		router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		if w.Code == http.StatusTooManyRequests {
			assert.NotEmpty(t, w.Header().Get("Retry-After"))
		}
		return w.Code
	}

	alice := &tenant.Principal{ID: "u1", TenantID: "t1", Role: tenant.RoleAdmin}
	bob := &tenant.Principal{ID: "u2", TenantID: "t1", Role: tenant.RoleMember}

	assert.Equal(t, http.StatusOK, as(alice))
	assert.Equal(t, http.StatusTooManyRequests, as(alice))
	assert.Equal(t, http.StatusOK, as(bob), "each user has their own bucket")
	assert.Equal(t, http.StatusOK, as(nil), "anonymous callers are keyed by IP")
	assert.Equal(t, http.StatusTooManyRequests, as(nil))
}
