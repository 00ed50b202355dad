package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"pdfexport/internal/config"
)

type fakeTokens struct {
	ready  bool
	limits map[string]int
}

func (f fakeTokens) Ready() bool { return f.ready }

func (f fakeTokens) Validate(token string) bool {
	_, ok := f.limits[token]
	return ok
}

func (f fakeTokens) RateLimit(token string) int { return f.limits[token] }

func TestRegister_AddsHealthAndRequestID(t *testing.T) {
	app := fiber.New()
	Register(app, config.Config{}, Deps{})
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	healthReq, _ := http.NewRequest(http.MethodGet, "/ops/health", nil)
	healthResp, err := app.Test(healthReq)
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	if healthResp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected health endpoint 200, got %d", healthResp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("ping request failed: %v", err)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatalf("expected X-Request-Id to be present")
	}
}

func TestRegister_ReadinessFollowsTokenStore(t *testing.T) {
	app := fiber.New()
	Register(app, config.Config{}, Deps{Tokens: fakeTokens{ready: false}})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ops/ready", nil))
	if err != nil {
		t.Fatalf("ready request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("expected 503 while tokens are loading, got %d", resp.StatusCode)
	}
}

func TestKeyAuth(t *testing.T) {
	tests := []struct {
		name   string
		tokens fakeTokens
		key    string
		want   int
	}{
		{"no key passes through", fakeTokens{ready: true}, "", fiber.StatusOK},
		{"valid key", fakeTokens{ready: true, limits: map[string]int{"k": 1}}, "k", fiber.StatusOK},
		{"unknown key", fakeTokens{ready: true, limits: map[string]int{"k": 1}}, "other", fiber.StatusUnauthorized},
		{"store not ready", fakeTokens{ready: false}, "k", fiber.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(KeyAuth(tc.tokens))
			app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.key != "" {
				req.Header.Set("X-API-Key", tc.key)
			}
			resp, err := app.Test(req, -1)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			if resp.StatusCode != tc.want {
				t.Fatalf("expected %d but got %d", tc.want, resp.StatusCode)
			}
		})
	}
}

func TestTokenRateLimitMiddleware(t *testing.T) {
	token := "test-token"
	limit := 2
	tokens := fakeTokens{ready: true, limits: map[string]int{token: limit}}

	app := fiber.New()
	app.Use(KeyAuth(tokens))
	app.Use(TokenRateLimit(tokens, NewLimiterCache(config.RateLimiterConfig{Interval: time.Hour}, nil)))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	makeReq := func() *http.Request {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("X-API-Key", token)
		return req
	}

	for i := 0; i < limit; i++ {
		resp, err := app.Test(makeReq(), -1)
		if err != nil {
			t.Fatalf("request %d failed: %v", i+1, err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("expected 200 but got %d", resp.StatusCode)
		}
	}

	resp, err := app.Test(makeReq(), -1)
	if err != nil {
		t.Fatalf("exceed request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429 but got %d", resp.StatusCode)
	}
}

func TestUserRateLimitMiddleware(t *testing.T) {
	lc := NewLimiterCache(config.RateLimiterConfig{UserLimit: 2, Interval: time.Hour}, nil)

	app := fiber.New()
	app.Use(UserRateLimit(lc))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	makeReq := func() *http.Request {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("User-Agent", "test-agent")
		req.RemoteAddr = "1.2.3.4:5678"
		return req
	}

	for i := 0; i < 2; i++ {
		resp, err := app.Test(makeReq(), -1)
		if err != nil {
			t.Fatalf("request %d failed: %v", i+1, err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("expected 200 but got %d", resp.StatusCode)
		}
	}

	resp, err := app.Test(makeReq(), -1)
	if err != nil {
		t.Fatalf("third request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429 but got %d", resp.StatusCode)
	}
}

func TestTokenBasedLimitOverridesUserBasedLimit(t *testing.T) {
	token := "test-token"
	// A high token limit means only the user limiter could block.
	tokens := fakeTokens{ready: true, limits: map[string]int{token: 100}}
	cfg := config.RateLimiterConfig{UserLimit: 2, Interval: time.Hour}
	lc := NewLimiterCache(cfg, nil)

	app := fiber.New()
	app.Use(KeyAuth(tokens))
	app.Use(TokenRateLimit(tokens, lc))
	app.Use(UserRateLimit(lc))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	makeReq := func(withToken bool) *http.Request {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("User-Agent", "test-agent")
		req.RemoteAddr = "1.2.3.4:5678"
		if withToken {
			req.Header.Set("X-API-Key", token)
		}
		return req
	}

	for i := 0; i < cfg.UserLimit; i++ {
		resp, err := app.Test(makeReq(false), -1)
		if err != nil {
			t.Fatalf("anonymous request %d failed: %v", i+1, err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("expected 200 but got %d", resp.StatusCode)
		}
	}
	resp, err := app.Test(makeReq(false), -1)
	if err != nil {
		t.Fatalf("anonymous exceed request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429 but got %d", resp.StatusCode)
	}

	// Authenticated requests must not be blocked by the user limiter.
	resp, err = app.Test(makeReq(true), -1)
	if err != nil {
		t.Fatalf("token request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 for token request but got %d", resp.StatusCode)
	}
}
