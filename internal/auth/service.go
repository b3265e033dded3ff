package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenRequired = errors.New("token required")
	ErrTokenExpired  = errors.New("token expired")
)

// Service derives client scopes from the access tokens issued by the
// workflow backend and names the cookies and headers that carry them.
// Signature verification stays with the backend, which rejects forged
// tokens on every call.
type Service struct {
	tokenTTL       time.Duration
	cookieName     string
	headerName     string
	csrfCookieName string
	csrfHeaderName string
	now            func() time.Time
}

// NewService constructs an auth service with the supplied cookie lifetime.
func NewService(ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		tokenTTL:       ttl,
		cookieName:     "access_token",
		headerName:     "Authorization",
		csrfCookieName: "csrf_token",
		csrfHeaderName: "X-CSRF-Token",
		now:            time.Now,
	}
}

// Scope returns the stable client scope of an access token: the subject,
// user id or email claim of a JWT, or a digest of an opaque token.
func (s *Service) Scope(authToken string) (string, error) {
	if authToken == "" {
		return "", ErrTokenRequired
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(authToken, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil && s.now().After(exp.Time) {
			return "", ErrTokenExpired
		}
		for _, key := range []string{"sub", "user_id", "userId", "id", "email"} {
			if v := claimString(claims[key]); v != "" {
				return "user:" + v, nil
			}
		}
	}
	sum := sha256.Sum256([]byte(authToken))
	return "tok:" + hex.EncodeToString(sum[:16]), nil
}

func claimString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return fmt.Sprintf("%.0f", t)
	}
	return ""
}

// NewCSRFToken returns a random token used for CSRF protection.
func (s *Service) NewCSRFToken() (string, error) {
	return generateToken()
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// AuthCookieName returns the cookie name storing auth tokens.
func (s *Service) AuthCookieName() string {
	return s.cookieName
}

// CSRFCookieName returns the cookie used for CSRF tokens.
func (s *Service) CSRFCookieName() string {
	return s.csrfCookieName
}

// CSRFHeaderName returns the CSRF header name.
func (s *Service) CSRFHeaderName() string {
	return s.csrfHeaderName
}

// TokenTTL reports the configured cookie lifetime.
func (s *Service) TokenTTL() time.Duration {
	return s.tokenTTL
}
