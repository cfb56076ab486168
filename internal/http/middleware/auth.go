package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"loadmatch/internal/domain"
	"loadmatch/internal/policy"
)

const subjectKey = "subject"

// Authenticator resolves a raw bearer token into the calling subject.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (policy.Subject, error)
}

// Auth requires a valid bearer token. EventSource clients cannot set headers, so an
// access_token query parameter is accepted as well.
func Auth(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			raw = strings.TrimSpace(c.Query("access_token"))
		}
		if raw == "" {
			abort(c, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}

		sub, err := a.Authenticate(c.Request.Context(), raw)
		if err != nil {
			if domain.IsUnauthorized(err) {
				abort(c, http.StatusUnauthorized, "unauthorized", err.Error())
				return
			}
			_ = c.Error(err)
			abort(c, http.StatusInternalServerError, "internal_error", "internal error")
			return
		}
		c.Set(subjectKey, sub)
		c.Next()
	}
}

// RequireRoles stops callers whose role is not listed. It must run after Auth.
func RequireRoles(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		sub, ok := GetSubject(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		for _, r := range roles {
			if sub.Role == r {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, "forbidden", "role "+string(sub.Role)+" may not call this endpoint")
	}
}

// GetSubject returns the caller stored by Auth.
func GetSubject(c *gin.Context) (policy.Subject, bool) {
	v, ok := c.Get(subjectKey)
	if !ok {
		return policy.Subject{}, false
	}
	sub, ok := v.(policy.Subject)
	return sub, ok
}

func bearerToken(h string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(h), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error":      message,
		"code":       code,
		"request_id": GetRequestID(c),
	})
}
