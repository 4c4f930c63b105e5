// Package users serves registration, token exchange and the caller's own
// profile.
package users

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/accounts"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/auth"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/httperr"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/metrics"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/models"
	"gorm.io/gorm"
)

// Handler handles account requests
type Handler struct {
	db       *gorm.DB
	accounts *accounts.Store
	observer metrics.Observer
}

// NewHandler creates a new users handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db, accounts: accounts.NewStore(db), observer: metrics.Nop{}}
}

// SetObserver routes registration and login events to o.
func (h *Handler) SetObserver(o metrics.Observer) {
	h.observer = o
}

// CreateUserRequest represents the registration request body
type CreateUserRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=5"`
	Name     string `json:"name" binding:"required,notblank,max=255"`
}

// TokenRequest represents the token exchange request body
type TokenRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UpdateMeRequest is the body for a full profile update
type UpdateMeRequest struct {
	Name     string `json:"name" binding:"required,notblank,max=255"`
	Password string `json:"password" binding:"required,min=5"`
}

// PatchMeRequest is the body for a partial profile update
type PatchMeRequest struct {
	Name     *string `json:"name" binding:"omitempty,notblank,max=255"`
	Password *string `json:"password" binding:"omitempty,min=5"`
}

// UserResponse represents user data in responses. The password is never included.
type UserResponse struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// TokenResponse carries the API token
type TokenResponse struct {
	Token string `json:"token"`
}

func userToResponse(u *models.User) UserResponse {
	return UserResponse{Email: u.Email, Name: u.Name}
}

// Create registers a new user
// @Summary Create a user
// @Description Register a new account. The password is stored hashed and never returned.
// @Tags users
// @Accept json
// @Produce json
// @Param request body CreateUserRequest true "Registration details"
// @Success 201 {object} UserResponse
// @Failure 400 {object} map[string]interface{} "Validation error or email taken"
// @Router /users/create [post]
func (h *Handler) Create(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BindError(c, err)
		return
	}

	user, err := h.accounts.CreateUser(c.Request.Context(), req.Email, req.Password,
		accounts.WithName(strings.TrimSpace(req.Name)))
	if err != nil {
		var verr *accounts.ValidationError
		switch {
		case errors.Is(err, accounts.ErrEmailTaken):
			httperr.Validation(c, httperr.Fields{"email": "user with this email already exists."})
		case errors.As(err, &verr):
			httperr.Validation(c, httperr.Fields{verr.Field: verr.Message})
		default:
			httperr.Internal(c, err, "Failed to create user")
		}
		return
	}

	h.observer.ResourceCreated("user")
	c.JSON(http.StatusCreated, userToResponse(user))
}

// Token exchanges credentials for the user's API token
// @Summary Obtain a token
// @Description Returns the existing token for the account or creates one
// @Tags users
// @Accept json
// @Produce json
// @Param request body TokenRequest true "Credentials"
// @Success 200 {object} TokenResponse
// @Failure 400 {object} map[string]interface{} "Invalid credentials"
// @Router /users/token [post]
func (h *Handler) Token(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BindError(c, err)
		return
	}

	user, err := h.accounts.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, accounts.ErrInvalidCredentials) {
			h.observer.AuthAttempt("token", false)
			httperr.BadRequest(c, "Unable to authenticate with provided credentials")
		} else {
			httperr.Internal(c, err, "Failed to authenticate")
		}
		return
	}

	key, err := auth.IssueToken(c.Request.Context(), h.db, user)
	if err != nil {
		httperr.Internal(c, err, "Failed to issue token")
		return
	}

	h.observer.AuthAttempt("token", true)
	c.JSON(http.StatusOK, TokenResponse{Token: key})
}

// RevokeToken deletes the caller's token
// @Summary Revoke the token
// @Tags users
// @Security TokenAuth
// @Success 204
// @Failure 401 {object} map[string]string "Not authenticated"
// @Router /users/token [delete]
func (h *Handler) RevokeToken(c *gin.Context, p auth.Principal) {
	if err := auth.RevokeToken(c.Request.Context(), h.db, p.UserID); err != nil {
		httperr.Internal(c, err, "Failed to revoke token")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) loadUser(c *gin.Context, p auth.Principal) (*models.User, bool) {
	var user models.User
	if err := h.db.WithContext(c.Request.Context()).First(&user, p.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": auth.MsgInvalidToken})
		} else {
			httperr.Internal(c, err, "Failed to fetch user")
		}
		return nil, false
	}
	return &user, true
}

// Me returns the authenticated user's profile
// @Summary Get own profile
// @Tags users
// @Produce json
// @Security TokenAuth
// @Success 200 {object} UserResponse
// @Failure 401 {object} map[string]string "Not authenticated"
// @Router /users/me [get]
func (h *Handler) Me(c *gin.Context, p auth.Principal) {
	user, ok := h.loadUser(c, p)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, userToResponse(user))
}

// UpdateMe replaces the caller's name and password
// @Summary Replace own profile
// @Tags users
// @Accept json
// @Produce json
// @Security TokenAuth
// @Param request body UpdateMeRequest true "Profile"
// @Success 200 {object} UserResponse
// @Failure 400 {object} map[string]interface{} "Validation error"
// @Router /users/me [put]
func (h *Handler) UpdateMe(c *gin.Context, p auth.Principal) {
	var req UpdateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BindError(c, err)
		return
	}

	name := req.Name
	h.saveProfile(c, p, &name, &req.Password)
}

// PatchMe changes the supplied profile fields
// @Summary Update own profile
// @Tags users
// @Accept json
// @Produce json
// @Security TokenAuth
// @Param request body PatchMeRequest true "Fields to change"
// @Success 200 {object} UserResponse
// @Failure 400 {object} map[string]interface{} "Validation error"
// @Router /users/me [patch]
func (h *Handler) PatchMe(c *gin.Context, p auth.Principal) {
	var req PatchMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BindError(c, err)
		return
	}

	h.saveProfile(c, p, req.Name, req.Password)
}

func (h *Handler) saveProfile(c *gin.Context, p auth.Principal, name, password *string) {
	user, ok := h.loadUser(c, p)
	if !ok {
		return
	}

	changes := map[string]interface{}{}
	if name != nil {
		changes["name"] = strings.TrimSpace(*name)
	}
	if password != nil {
		if err := accounts.SetPassword(user, *password); err != nil {
			httperr.Internal(c, err, "Failed to process password")
			return
		}
		changes["password_hash"] = user.PasswordHash
	}

	if len(changes) > 0 {
		if err := h.db.WithContext(c.Request.Context()).Model(user).Updates(changes).Error; err != nil {
			httperr.Internal(c, err, "Failed to update user")
			return
		}
	}
	if name != nil {
		user.Name = strings.TrimSpace(*name)
	}

	c.JSON(http.StatusOK, userToResponse(user))
}

// RegisterRoutes registers account routes. credential middlewares (such as
// a rate limiter) run before the registration and token exchange handlers.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, credential ...gin.HandlerFunc) {
	chain := func(handler gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, credential...), handler)
	}

	users := rg.Group("/users")
	users.POST("/create", chain(h.Create)...)
	users.POST("/token", chain(h.Token)...)

	authed := users.Group("", auth.TokenMiddleware(h.db))
	authed.DELETE("/token", auth.WithPrincipal(h.RevokeToken))
	authed.GET("/me", auth.WithPrincipal(h.Me))
	authed.PUT("/me", auth.WithPrincipal(h.UpdateMe))
	authed.PATCH("/me", auth.WithPrincipal(h.PatchMe))
}
