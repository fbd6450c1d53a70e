package middleware

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// TokenAuth gates non-loopback requests behind a shared token. Loopback
// callers pass unchallenged since the daemon binds 127.0.0.1 by default
// and the extension cannot attach custom headers to every request. An
// empty token disables the check entirely.
func TokenAuth(token string) gin.HandlerFunc {
	if token == "" {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	secret := []byte(token)

	return func(c *gin.Context) {
		if ip := net.ParseIP(c.ClientIP()); ip != nil && ip.IsLoopback() {
			c.Next()
			return
		}

		presented := requestToken(c.Request)
		if subtle.ConstantTimeCompare([]byte(presented), secret) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "unauthorized",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// requestToken extracts the shared token from X-Auth-Token or a Bearer
// Authorization header.
func requestToken(r *http.Request) string {
	if token := r.Header.Get("X-Auth-Token"); token != "" {
		return token
	}

	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}
