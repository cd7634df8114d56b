package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-gateway/internal/domain/auth"
	"github.com/your-org/storefront-gateway/internal/interfaces/http/middleware"
)

const testSessionID = "sess-1"

func init() {
	gin.SetMode(gin.TestMode)
}

// newRouter returns an engine whose requests all belong to testSessionID
func newRouter() *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.SessionIDKey, testSessionID)
		c.Next()
	})
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

type stubResolver struct {
	shopper    *auth.Shopper
	err        error
	returnPath string
	dropped    bool
}

func (s *stubResolver) Shopper(context.Context, string) (*auth.Shopper, error) {
	return s.shopper, s.err
}

func (s *stubResolver) DropToken(context.Context, string) error {
	s.dropped = true
	return nil
}

func (s *stubResolver) RememberReturnPath(_ context.Context, _, path string, _ bool) error {
	s.returnPath = path
	return nil
}
