package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/logistics-platform/booking-dashboard/pkg/logging"
)

// Session header and context keys
const (
	HeaderSessionID     = "X-Session-ID"
	HeaderAuthorization = "Authorization"

	ContextKeySessionID   = "sessionId"
	ContextKeyBearerToken = "bearerToken"
)

// AnonymousSession is the session key used when the caller sends neither a
// session header nor a bearer token.
const AnonymousSession = "anonymous"

// Session resolves the session name and bearer token for the request. The
// X-Session-ID header names the session; without it the name is a digest of
// the bearer token. Names are scoped to the token by the session registry, so
// a name alone never selects another caller's screens.
func Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c.GetHeader(HeaderAuthorization))

		sessionID := strings.TrimSpace(c.GetHeader(HeaderSessionID))
		if sessionID == "" && token != "" {
			sum := sha256.Sum256([]byte(token))
			sessionID = "tok-" + hex.EncodeToString(sum[:8])
		}
		if sessionID == "" {
			sessionID = AnonymousSession
		}

		c.Set(ContextKeySessionID, sessionID)
		c.Set(ContextKeyBearerToken, token)
		c.Request = c.Request.WithContext(logging.ContextWithSessionID(c.Request.Context(), sessionID))

		c.Next()
	}
}

// BearerToken strips the Bearer scheme from an Authorization header value
func BearerToken(header string) string {
	const prefix = "bearer "
	header = strings.TrimSpace(header)
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// GetSessionID returns the resolved session key
func GetSessionID(c *gin.Context) string {
	return getString(c, ContextKeySessionID)
}

// GetBearerToken returns the caller's bearer token, empty if none was sent
func GetBearerToken(c *gin.Context) string {
	return getString(c, ContextKeyBearerToken)
}
