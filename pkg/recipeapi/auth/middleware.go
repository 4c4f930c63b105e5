package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	MsgCredentialsNotProvided = "Authentication credentials were not provided"
	MsgInvalidToken           = "Invalid token"
)

// bearerToken extracts the credential from an Authorization header of the
// form "Bearer <key>" or "Token <key>".
func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", false
	}
	scheme := strings.ToLower(parts[0])
	if scheme != "bearer" && scheme != "token" {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// TokenMiddleware authenticates requests with an opaque API token and sets
// the Principal on the context. Every failure is a 401.
func TokenMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": MsgCredentialsNotProvided})
			c.Abort()
			return
		}

		key, ok := bearerToken(authHeader)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		user, err := LookupToken(c.Request.Context(), db, key)
		if err != nil {
			if !errors.Is(err, ErrInvalidToken) && !errors.Is(err, ErrInactiveUser) {
				_ = c.Error(err)
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": MsgInvalidToken})
			c.Abort()
			return
		}

		SetPrincipal(c, PrincipalFromUser(user))
		c.Next()
	}
}
