package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func authRouter(token string) *gin.Engine {
	router := gin.New()
	router.Use(TokenAuth(token))
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router
}

func performAs(router *gin.Engine, remoteAddr string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestTokenAuthDisabledWhenEmpty(t *testing.T) {
	router := authRouter("")

	w := performAs(router, "203.0.113.7:4411", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTokenAuthLoopbackBypass(t *testing.T) {
	router := authRouter("secret")

	w := performAs(router, "127.0.0.1:52000", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTokenAuthHeaderToken(t *testing.T) {
	router := authRouter("secret")

	w := performAs(router, "203.0.113.7:4411", map[string]string{
		"X-Auth-Token": "secret",
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTokenAuthBearerToken(t *testing.T) {
	router := authRouter("secret")

	w := performAs(router, "203.0.113.7:4411", map[string]string{
		"Authorization": "Bearer secret",
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTokenAuthRejectsWrongToken(t *testing.T) {
	router := authRouter("secret")

	w := performAs(router, "203.0.113.7:4411", map[string]string{
		"X-Auth-Token": "guess",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "unauthorized")
}

func TestTokenAuthRejectsMissingToken(t *testing.T) {
	router := authRouter("secret")

	w := performAs(router, "203.0.113.7:4411", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTokenAuthRejectsMalformedAuthorization(t *testing.T) {
	router := authRouter("secret")

	w := performAs(router, "203.0.113.7:4411", map[string]string{
		"Authorization": "secret",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
