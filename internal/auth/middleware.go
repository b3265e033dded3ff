package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	scopeContextKey     = "auth_scope"
	authTokenContextKey = "auth_token"

	// SignInPath is where clients are sent when authentication is missing.
	SignInPath = "/signin"
)

// Middleware requires an access token and stores it with its client scope
// in the context.
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authToken := s.extractToken(c)
		if authToken == "" {
			Unauthorized(c, "authorization required")
			return
		}
		scope, err := s.Scope(authToken)
		if err != nil {
			Unauthorized(c, err.Error())
			return
		}
		c.Set(scopeContextKey, scope)
		c.Set(authTokenContextKey, authToken)
		c.Next()
	}
}

// Unauthorized aborts with 401 and points the client at the sign-in page.
func Unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg, "redirect": SignInPath})
}

// ScopeFromContext retrieves the client scope set by the middleware.
func ScopeFromContext(c *gin.Context) (string, bool) {
	val, ok := c.Get(scopeContextKey)
	if !ok {
		return "", false
	}
	scope, ok := val.(string)
	return scope, ok && scope != ""
}

// AuthTokenFromContext retrieves the token captured by the middleware.
func AuthTokenFromContext(c *gin.Context) (string, bool) {
	val, ok := c.Get(authTokenContextKey)
	if !ok {
		return "", false
	}
	token, ok := val.(string)
	return token, ok
}

func (s *Service) extractToken(c *gin.Context) string {
	authHeader := c.GetHeader(s.headerName)
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	if token, err := c.Cookie(s.cookieName); err == nil && token != "" {
		return token
	}
	return ""
}
