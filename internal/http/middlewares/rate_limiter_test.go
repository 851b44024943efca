package middlewares_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/avanel/bookhub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

func setupLimited(limit int, window time.Duration) *gin.Engine {
	r := gin.New()

	rl := middlewares.NewRateLimiter(limit, window)

	r.POST("/login", rl.RateLimiterMiddleware(middlewares.KeyByIP), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	return r
}

func TestRateLimiterBlocksAfterLimit(t *testing.T) {
	r := setupLimited(3, time.Minute)

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	for i := 0; i < 3; i++ {
		if w := do(); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, w.Code)
		}
	}

	w := do()

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429 once the window is exhausted", w.Code)
	}

	if w.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After header on the limited response")
	}
}

func TestRateLimiterKeysByClient(t *testing.T) {
	r := setupLimited(1, time.Minute)

	do := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	if w := do("10.0.0.1:1234"); w.Code != http.StatusOK {
		t.Fatalf("first client: status = %d, want 200", w.Code)
	}

	if w := do("10.0.0.1:9999"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("same client, new port: status = %d, want 429", w.Code)
	}

	// a different client gets its own window
	if w := do("10.0.0.2:1234"); w.Code != http.StatusOK {
		t.Fatalf("second client: status = %d, want 200", w.Code)
	}
}

func TestRateLimiterWindowResets(t *testing.T) {
	r := setupLimited(1, 20*time.Millisecond)

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	if w := do(); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	if w := do(); w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429 inside the window", w.Code)
	}

	time.Sleep(30 * time.Millisecond)

	if w := do(); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 after the window expired", w.Code)
	}
}
