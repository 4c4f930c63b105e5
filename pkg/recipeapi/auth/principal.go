package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/models"
)

const (
	// ContextKeyUserID is the key for user ID in gin context
	ContextKeyUserID = "user_id"
	// ContextKeyPrincipal is the key for the authenticated Principal in gin context
	ContextKeyPrincipal = "principal"
)

// Principal is the authenticated account making a request.
type Principal struct {
	UserID      uint
	Email       string
	IsStaff     bool
	IsSuperuser bool
}

// PrincipalFromUser builds the principal for user.
func PrincipalFromUser(user *models.User) Principal {
	return Principal{
		UserID:      user.ID,
		Email:       user.Email,
		IsStaff:     user.IsStaff,
		IsSuperuser: user.IsSuperuser,
	}
}

// SetPrincipal stores p on the request context.
func SetPrincipal(c *gin.Context, p Principal) {
	c.Set(ContextKeyPrincipal, p)
	c.Set(ContextKeyUserID, p.UserID)
}

// GetPrincipal returns the principal set by one of the auth middlewares.
func GetPrincipal(c *gin.Context) (Principal, bool) {
	v, exists := c.Get(ContextKeyPrincipal)
	if !exists {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

// GetUserID returns the user ID from the gin context
func GetUserID(c *gin.Context) (uint, bool) {
	p, ok := GetPrincipal(c)
	if !ok {
		return 0, false
	}
	return p.UserID, true
}

// HandlerFunc is a gin handler that receives the authenticated principal.
type HandlerFunc func(c *gin.Context, p Principal)

// WithPrincipal adapts h to a gin.HandlerFunc. Requests that reach it
// without a principal are rejected with 401.
func WithPrincipal(h HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := GetPrincipal(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": MsgCredentialsNotProvided})
			c.Abort()
			return
		}
		h(c, p)
	}
}
