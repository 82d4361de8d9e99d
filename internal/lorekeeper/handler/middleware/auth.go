package middleware

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	genericoptions "github.com/wyrdlab/reverie/internal/pkg/options"
)

// Context keys set by the auth middleware.
const (
	KeyUserID   = "user_id"
	KeyUsername = "username"
)

// localIdentity is used for loopback requests when the bypass is enabled.
var localIdentity = genericoptions.TokenIdentity{UserID: "local", Username: "local"}

// AuthConfig is the resolved auth middleware configuration.
type AuthConfig struct {
	Enabled    bool
	AllowLocal bool
	Tokens     map[string]genericoptions.TokenIdentity
}

// BearerAuth resolves the request's bearer token to an identity and stores
// it in the gin context. Token comparison is constant-time. /healthz and
// /version never require auth; loopback requests may bypass it.
func BearerAuth(cfg *AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Enabled {
			setIdentity(c, localIdentity)
			c.Next()
			return
		}

		path := c.Request.URL.Path
		if path == "/healthz" || path == "/version" {
			c.Next()
			return
		}

		if cfg.AllowLocal && isLocalRequest(c.Request) {
			if identity, ok := resolveToken(cfg.Tokens, c.GetHeader("Authorization")); ok {
				setIdentity(c, identity)
			} else {
				setIdentity(c, localIdentity)
			}
			c.Next()
			return
		}

		identity, ok := resolveToken(cfg.Tokens, c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"message": "missing or invalid bearer token",
					"type":    "authentication_error",
				},
			})
			return
		}
		setIdentity(c, identity)
		c.Next()
	}
}

// resolveToken finds the identity for the Authorization header using
// constant-time comparison against every known token.
func resolveToken(tokens map[string]genericoptions.TokenIdentity, header string) (genericoptions.TokenIdentity, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return genericoptions.TokenIdentity{}, false
	}
	provided := []byte(header[len(prefix):])

	var (
		found    bool
		identity genericoptions.TokenIdentity
	)
	for token, id := range tokens {
		if subtle.ConstantTimeCompare(provided, []byte(token)) == 1 {
			found = true
			identity = id
		}
	}
	return identity, found
}

func setIdentity(c *gin.Context, identity genericoptions.TokenIdentity) {
	c.Set(KeyUserID, identity.UserID)
	c.Set(KeyUsername, identity.Username)
}

// Identity reads the authenticated identity from the gin context.
func Identity(c *gin.Context) (userID, username string) {
	return c.GetString(KeyUserID), c.GetString(KeyUsername)
}

// isLocalRequest checks whether the request originates from a loopback
// address.
func isLocalRequest(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return false
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
