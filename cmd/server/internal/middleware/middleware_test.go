package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yahyachammami/meetscribe/pkg/logger"
)

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)

	_, err := logger.Init(logger.Config{Level: "debug", Environment: "test"})
	require.NoError(t, err)

	r := gin.New()
	r.Use(RequestLogger())
	r.GET("/ping", func(c *gin.Context) {
		_, ok := c.Get("request_id")
		assert.True(t, ok, "request_id not set in context")
		c.String(http.StatusOK, "pong")
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func authRouter(secret []byte) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Auth(secret))
	r.GET("/whoami", func(c *gin.Context) {
		c.String(http.StatusOK, UserID(c))
	})
	return r
}

func TestAuthAcceptsValidToken(t *testing.T) {
	secret := []byte("test-secret")
	token, err := GenerateToken(secret, "user-42")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	authRouter(secret).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-42", w.Body.String())
}

func TestAuthRejectsMissingToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	w := httptest.NewRecorder()
	authRouter([]byte("test-secret")).ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken([]byte("other-secret"), "user-42")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	authRouter([]byte("test-secret")).ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
