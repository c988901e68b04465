package http

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-api-verify/internal/config"
	"github.com/go-api-verify/internal/domain"
	"github.com/stretchr/testify/assert"
)

type stubAuth struct{}

func (stubAuth) Register(context.Context, domain.RegisterRequest) (*domain.User, error) {
	return &domain.User{ID: "u1"}, nil
}
func (stubAuth) VerifyEmail(context.Context, string) (string, error) { return "/next", nil }
func (stubAuth) SendSMSCode(context.Context, domain.SendSMSCodeRequest) error {
	return nil
}
func (stubAuth) VerifyPhone(context.Context, domain.VerifyPhoneRequest) (string, error) {
	return "/next", nil
}

func newTestRouter(t *testing.T, perMinute int) http.Handler {
	return newTestRouterWithConfig(t, &config.Config{RateLimitPerMinute: perMinute})
}

func newTestRouterWithConfig(t *testing.T, cfg *config.Config) http.Handler {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	cfg.AllowedOrigins = []string{"http://localhost:3000"}
	return NewRouter(ctx, cfg, &Deps{Auth: stubAuth{}})
}

func TestRouter_Ping(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(t, 10).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health-check/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))
}

func TestRouter_AuthRoutesAreRateLimited(t *testing.T) {
	r := newTestRouter(t, 2)
	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/verify-email?token=abc", nil)
		req.RemoteAddr = "10.1.1.1:5555"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		last = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestRouter_SpoofedForwardedForIgnoredByDefault(t *testing.T) {
	r := newTestRouter(t, 2)
	var codes []int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/verify-email?token=abc", nil)
		req.RemoteAddr = "203.0.113.7:4000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, codes[2])
}

func TestRouter_TrustProxyKeysOnForwardedFor(t *testing.T) {
	r := newTestRouterWithConfig(t, &config.Config{RateLimitPerMinute: 1, TrustProxy: true})
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/verify-email?token=abc", nil)
		req.RemoteAddr = "10.0.0.1:4000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.NotEqual(t, http.StatusTooManyRequests, rec.Code)
	}
}

func TestRouter_HealthNotRateLimited(t *testing.T) {
	r := newTestRouter(t, 1)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health-check/ping", nil)
		req.RemoteAddr = "10.1.1.1:5555"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/auth/register", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	newTestRouter(t, 10).ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_RegisterCreated(t *testing.T) {
	body := strings.NewReader(`{"email":"a@b.com","password":"Str0ng!Passw0rd"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", body)
	rec := httptest.NewRecorder()
	newTestRouter(t, 10).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
}
