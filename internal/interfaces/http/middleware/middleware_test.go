package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-gateway/internal/config"
	"github.com/your-org/storefront-gateway/internal/domain/auth"
	jwtauth "github.com/your-org/storefront-gateway/internal/pkg/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func sessionConfig() config.SessionConfig {
	return config.SessionConfig{
		Secret:     "0123456789abcdef0123456789abcdef",
		CookieName: "storefront_session",
		TTL:        time.Hour,
	}
}

func sessionManager() *jwtauth.SessionManager {
	return jwtauth.NewSessionManager(&config.Config{
		App:     config.AppConfig{Name: "storefront-test"},
		Session: sessionConfig(),
	})
}

func sessionRouter(manager *jwtauth.SessionManager) *gin.Engine {
	logger, _ := test.NewNullLogger()
	r := gin.New()
	r.Use(Session(manager, sessionConfig(), logger))
	r.GET("/sid", func(c *gin.Context) {
		c.String(http.StatusOK, GetSessionID(c))
	})
	return r
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == "storefront_session" {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func TestSession_StartsNewSession(t *testing.T) {
	w := httptest.NewRecorder()
	sessionRouter(sessionManager()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sid", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Body.String())

	cookie := sessionCookie(t, w)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
}

func TestSession_KeepsExistingSession(t *testing.T) {
	manager := sessionManager()
	sid, token, err := manager.NewSession()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/sid", nil)
	req.AddCookie(&http.Cookie{Name: "storefront_session", Value: token})
	w := httptest.NewRecorder()
	sessionRouter(manager).ServeHTTP(w, req)

	assert.Equal(t, sid, w.Body.String())
}

func TestSession_AcceptsBearerToken(t *testing.T) {
	manager := sessionManager()
	sid, token, err := manager.NewSession()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/sid", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	sessionRouter(manager).ServeHTTP(w, req)

	assert.Equal(t, sid, w.Body.String())
}

func TestSession_ReplacesTamperedToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/sid", nil)
	req.AddCookie(&http.Cookie{Name: "storefront_session", Value: "not-a-jwt"})
	w := httptest.NewRecorder()
	sessionRouter(sessionManager()).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Body.String())
	assert.NotEqual(t, "not-a-jwt", sessionCookie(t, w).Value)
}

type stubResolver struct {
	shopper    *auth.Shopper
	err        error
	returnPath string
	checkout   bool
}

func (s *stubResolver) Shopper(context.Context, string) (*auth.Shopper, error) {
	return s.shopper, s.err
}

func (s *stubResolver) RememberReturnPath(_ context.Context, _, path string, checkout bool) error {
	s.returnPath, s.checkout = path, checkout
	return nil
}

func shopperRouter(resolver ShopperResolver) *gin.Engine {
	logger, _ := test.NewNullLogger()
	r := gin.New()
	r.GET("/private", RequireShopper(resolver, "/login", "/checkout", true, logger), func(c *gin.Context) {
		shopper, ok := GetShopper(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		c.String(http.StatusOK, shopper.UserID)
	})
	return r
}

func TestRequireShopper(t *testing.T) {
	w := httptest.NewRecorder()
	shopperRouter(&stubResolver{shopper: &auth.Shopper{UserID: "42"}}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/private", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "42", w.Body.String())

	resolver := &stubResolver{err: auth.ErrNotAuthenticated}
	w = httptest.NewRecorder()
	shopperRouter(resolver).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/private", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Authentication required","redirect":"/login"}`, w.Body.String())
	assert.Equal(t, "/checkout", resolver.returnPath)
	assert.True(t, resolver.checkout)

	w = httptest.NewRecorder()
	shopperRouter(&stubResolver{err: errors.New("redis down")}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/private", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRateLimit_RejectsOverLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	logger, _ := test.NewNullLogger()
	r := gin.New()
	r.Use(RateLimit(2, rdb, logger))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimit_FailsOpenWithoutRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	logger, _ := test.NewNullLogger()
	r := gin.New()
	r.Use(RateLimit(1, rdb, logger))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestSizeLimit(t *testing.T) {
	r := gin.New()
	r.Use(RequestSizeLimit(8))
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123")))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(RequestIDKey)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Body.String())
	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, w.Body.String(), 36)
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS(config.SecurityConfig{
		CORSAllowedOrigins: []string{"https://shop.example.com", "*.example.org"},
		CORSAllowedMethods: []string{"GET", "POST"},
		CORSAllowedHeaders: []string{"Content-Type"},
	}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for origin, allowed := range map[string]bool{
		"https://shop.example.com": true,
		"https://www.example.org":  true,
		"https://evil.example.net": false,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", origin)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if allowed {
			assert.Equal(t, origin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
		} else {
			assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
		}
	}

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestTimeout_SetsDeadline(t *testing.T) {
	r := gin.New()
	r.Use(Timeout(time.Second))
	r.GET("/", func(c *gin.Context) {
		_, ok := c.Request.Context().Deadline()
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTimeout_StreamRoutesHaveNoDeadline(t *testing.T) {
	r := gin.New()
	r.Use(Timeout(time.Second, "/cart/events"))
	deadline := func(c *gin.Context) {
		if _, ok := c.Request.Context().Deadline(); ok {
			c.Status(http.StatusGatewayTimeout)
			return
		}
		c.Status(http.StatusOK)
	}
	r.GET("/cart/events", deadline)
	r.GET("/cart", deadline)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cart/events", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cart", nil))
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders(true))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, w.Header().Get("Strict-Transport-Security"))
}
