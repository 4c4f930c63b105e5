package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/models"
	"gorm.io/gorm"
)

// AdminMiddleware validates an admin session JWT and reloads the account so
// that deactivation or loss of staff status takes effect immediately.
func AdminMiddleware(jwtManager *JWTManager, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": MsgCredentialsNotProvided})
			c.Abort()
			return
		}

		tokenString, ok := bearerToken(authHeader)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := jwtManager.ValidateToken(tokenString)
		if err != nil {
			if err == ErrExpiredToken {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Token has expired"})
			} else {
				c.JSON(http.StatusUnauthorized, gin.H{"error": MsgInvalidToken})
			}
			c.Abort()
			return
		}

		var user models.User
		if err := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; err != nil || !user.IsActive {
			c.JSON(http.StatusUnauthorized, gin.H{"error": MsgInvalidToken})
			c.Abort()
			return
		}

		SetPrincipal(c, PrincipalFromUser(&user))
		c.Next()
	}
}

// RequireStaff rejects principals without the staff flag
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := GetPrincipal(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			c.Abort()
			return
		}

		if !p.IsStaff {
			c.JSON(http.StatusForbidden, gin.H{"error": "Staff access required"})
			c.Abort()
			return
		}

		c.Next()
	}
}
