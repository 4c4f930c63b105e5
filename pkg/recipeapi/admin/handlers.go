// Package admin is the staff-only management tool. It has its own login
// that issues a short-lived JWT session, separate from the API tokens used
// by the public endpoints.
package admin

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/accounts"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/auth"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/httperr"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/metrics"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/models"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/storage"
	"gorm.io/gorm"
)

const timeFormat = "2006-01-02T15:04:05Z"

// Handler handles admin requests
type Handler struct {
	db       *gorm.DB
	accounts *accounts.Store
	store    storage.Storage
	jwt      *auth.JWTManager
	observer metrics.Observer
}

// NewHandler creates a new admin handler
func NewHandler(db *gorm.DB, store storage.Storage, jwtManager *auth.JWTManager) *Handler {
	return &Handler{
		db:       db,
		accounts: accounts.NewStore(db),
		store:    store,
		jwt:      jwtManager,
		observer: metrics.Nop{},
	}
}

// SetObserver routes login and creation events to o.
func (h *Handler) SetObserver(o metrics.Observer) {
	h.observer = o
}

// LoginRequest represents the admin login body
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the admin session token
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

// UserResponse represents user data in admin responses
type UserResponse struct {
	ID              uint   `json:"id"`
	Email           string `json:"email"`
	Name            string `json:"name"`
	IsActive        bool   `json:"is_active"`
	IsStaff         bool   `json:"is_staff"`
	IsSuperuser     bool   `json:"is_superuser"`
	CreatedAt       string `json:"created_at"`
	RecipeCount     int64  `json:"recipe_count"`
	TagCount        int64  `json:"tag_count"`
	IngredientCount int64  `json:"ingredient_count"`
}

// CreateUserRequest is the admin "add user" form
type CreateUserRequest struct {
	Email       string `json:"email" binding:"required,email,max=255"`
	Password    string `json:"password" binding:"required,min=5"`
	Name        string `json:"name" binding:"max=255"`
	IsActive    *bool  `json:"is_active"`
	IsStaff     bool   `json:"is_staff"`
	IsSuperuser bool   `json:"is_superuser"`
}

// UpdateUserRequest represents the request to update a user
type UpdateUserRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=255"`
	IsActive    *bool   `json:"is_active"`
	IsStaff     *bool   `json:"is_staff"`
	IsSuperuser *bool   `json:"is_superuser"`
}

// StatsResponse represents system statistics
type StatsResponse struct {
	TotalUsers        int64 `json:"total_users"`
	ActiveUsers       int64 `json:"active_users"`
	StaffUsers        int64 `json:"staff_users"`
	ActiveTokens      int64 `json:"active_tokens"`
	TotalRecipes      int64 `json:"total_recipes"`
	RecipesWithImages int64 `json:"recipes_with_images"`
	TotalTags         int64 `json:"total_tags"`
	TotalIngredients  int64 `json:"total_ingredients"`
}

// Login exchanges staff credentials for an admin session token
// @Summary Admin login
// @Tags admin
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} map[string]string "Invalid credentials"
// @Failure 403 {object} map[string]string "Not a staff account"
// @Router /admin/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BindError(c, err)
		return
	}

	user, err := h.accounts.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, accounts.ErrInvalidCredentials) {
			h.observer.AuthAttempt("admin_login", false)
			httperr.BadRequest(c, "Unable to authenticate with provided credentials")
		} else {
			httperr.Internal(c, err, "Failed to authenticate")
		}
		return
	}

	if !user.IsStaff {
		h.observer.AuthAttempt("admin_login", false)
		c.JSON(http.StatusForbidden, gin.H{"error": "Staff access required"})
		return
	}

	token, err := h.jwt.GenerateToken(auth.PrincipalFromUser(user))
	if err != nil {
		httperr.Internal(c, err, "Failed to generate token")
		return
	}

	h.observer.AuthAttempt("admin_login", true)
	c.JSON(http.StatusOK, LoginResponse{Token: token, ExpiresIn: int64(h.jwt.TTL().Seconds())})
}

// userResponse builds the admin view of user including its content counts.
func (h *Handler) userResponse(c *gin.Context, user *models.User) (UserResponse, error) {
	var recipeCount, tagCount, ingredientCount int64
	db := h.db.WithContext(c.Request.Context())
	if err := db.Model(&models.Recipe{}).Where("user_id = ?", user.ID).Count(&recipeCount).Error; err != nil {
		return UserResponse{}, err
	}
	if err := db.Model(&models.Tag{}).Where("user_id = ?", user.ID).Count(&tagCount).Error; err != nil {
		return UserResponse{}, err
	}
	if err := db.Model(&models.Ingredient{}).Where("user_id = ?", user.ID).Count(&ingredientCount).Error; err != nil {
		return UserResponse{}, err
	}

	return UserResponse{
		ID:              user.ID,
		Email:           user.Email,
		Name:            user.Name,
		IsActive:        user.IsActive,
		IsStaff:         user.IsStaff,
		IsSuperuser:     user.IsSuperuser,
		CreatedAt:       user.CreatedAt.UTC().Format(timeFormat),
		RecipeCount:     recipeCount,
		TagCount:        tagCount,
		IngredientCount: ingredientCount,
	}, nil
}

// writeUser responds with the admin view of user.
func (h *Handler) writeUser(c *gin.Context, status int, user *models.User) {
	resp, err := h.userResponse(c, user)
	if err != nil {
		httperr.Internal(c, err, "Failed to fetch user")
		return
	}
	c.JSON(status, resp)
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID"})
		return 0, false
	}
	return uint(id), true
}

func (h *Handler) findUser(c *gin.Context, id uint) (*models.User, bool) {
	var user models.User
	if err := h.db.WithContext(c.Request.Context()).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httperr.NotFound(c, "User")
		} else {
			httperr.Internal(c, err, "Failed to fetch user")
		}
		return nil, false
	}
	return &user, true
}

// ListUsers returns all users
// @Summary List users
// @Tags admin
// @Produce json
// @Security AdminAuth
// @Param q query string false "Search email or name"
// @Success 200 {array} UserResponse
// @Router /admin/users [get]
func (h *Handler) ListUsers(c *gin.Context) {
	var users []models.User

	query := h.db.WithContext(c.Request.Context()).Order("created_at DESC").Order("id DESC")

	if search := strings.TrimSpace(c.Query("q")); search != "" {
		like := "%" + search + "%"
		query = query.Where("email LIKE ? OR name LIKE ?", like, like)
	}

	if staff := c.Query("is_staff"); staff != "" {
		query = query.Where("is_staff = ?", staff == "true" || staff == "1")
	}

	if err := query.Find(&users).Error; err != nil {
		httperr.Internal(c, err, "Failed to fetch users")
		return
	}

	responses := make([]UserResponse, len(users))
	for i := range users {
		resp, err := h.userResponse(c, &users[i])
		if err != nil {
			httperr.Internal(c, err, "Failed to fetch users")
			return
		}
		responses[i] = resp
	}

	c.JSON(http.StatusOK, responses)
}

// CreateUser adds an account with the given flags
// @Summary Add user
// @Tags admin
// @Accept json
// @Produce json
// @Security AdminAuth
// @Param request body CreateUserRequest true "User"
// @Success 201 {object} UserResponse
// @Failure 400 {object} map[string]interface{} "Validation error"
// @Router /admin/users [post]
func (h *Handler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BindError(c, err)
		return
	}

	opts := []accounts.Option{
		accounts.WithName(strings.TrimSpace(req.Name)),
		accounts.WithStaff(req.IsStaff || req.IsSuperuser),
		accounts.WithSuperuser(req.IsSuperuser),
	}
	if req.IsActive != nil {
		opts = append(opts, accounts.WithActive(*req.IsActive))
	}

	user, err := h.accounts.CreateUser(c.Request.Context(), req.Email, req.Password, opts...)
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
	h.writeUser(c, http.StatusCreated, user)
}

// GetUser returns a single user by ID
// @Summary Get user
// @Tags admin
// @Produce json
// @Security AdminAuth
// @Param id path int true "User ID"
// @Success 200 {object} UserResponse
// @Failure 404 {object} map[string]string "Not found"
// @Router /admin/users/{id} [get]
func (h *Handler) GetUser(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	user, ok := h.findUser(c, id)
	if !ok {
		return
	}

	h.writeUser(c, http.StatusOK, user)
}

// UpdateUser changes a user's name and flags
// @Summary Update user
// @Tags admin
// @Accept json
// @Produce json
// @Security AdminAuth
// @Param id path int true "User ID"
// @Param request body UpdateUserRequest true "Fields to change"
// @Success 200 {object} UserResponse
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 404 {object} map[string]string "Not found"
// @Router /admin/users/{id} [patch]
func (h *Handler) UpdateUser(c *gin.Context, p auth.Principal) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	user, ok := h.findUser(c, id)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BindError(c, err)
		return
	}

	// Staff cannot lock themselves out
	if id == p.UserID {
		if req.IsStaff != nil && !*req.IsStaff {
			httperr.BadRequest(c, "Cannot demote yourself")
			return
		}
		if req.IsActive != nil && !*req.IsActive {
			httperr.BadRequest(c, "Cannot deactivate yourself")
			return
		}
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.IsStaff != nil {
		updates["is_staff"] = *req.IsStaff
	}
	if req.IsSuperuser != nil {
		updates["is_superuser"] = *req.IsSuperuser
		if *req.IsSuperuser {
			updates["is_staff"] = true
		}
	}

	db := h.db.WithContext(c.Request.Context())
	if len(updates) > 0 {
		if err := db.Model(user).Updates(updates).Error; err != nil {
			httperr.Internal(c, err, "Failed to update user")
			return
		}
	}

	// A deactivated account loses its API token
	if req.IsActive != nil && !*req.IsActive {
		if err := auth.RevokeToken(c.Request.Context(), h.db, user.ID); err != nil {
			_ = c.Error(err)
		}
	}

	if err := db.First(user, id).Error; err != nil {
		httperr.Internal(c, err, "Failed to fetch user")
		return
	}

	h.writeUser(c, http.StatusOK, user)
}

// DeleteUser removes a user and everything the user owns
// @Summary Delete user
// @Tags admin
// @Produce json
// @Security AdminAuth
// @Param id path int true "User ID"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string "Cannot delete yourself"
// @Failure 404 {object} map[string]string "Not found"
// @Router /admin/users/{id} [delete]
func (h *Handler) DeleteUser(c *gin.Context, p auth.Principal) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if id == p.UserID {
		httperr.BadRequest(c, "Cannot delete yourself")
		return
	}

	user, ok := h.findUser(c, id)
	if !ok {
		return
	}

	var images []string
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Recipe{}).Where("user_id = ? AND image <> ''", user.ID).
			Pluck("image", &images).Error; err != nil {
			return err
		}

		recipeIDs := tx.Model(&models.Recipe{}).Select("id").Where("user_id = ?", user.ID)
		tagIDs := tx.Model(&models.Tag{}).Select("id").Where("user_id = ?", user.ID)
		ingredientIDs := tx.Model(&models.Ingredient{}).Select("id").Where("user_id = ?", user.ID)

		if err := tx.Exec("DELETE FROM recipe_tags WHERE recipe_id IN (?) OR tag_id IN (?)", recipeIDs, tagIDs).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM recipe_ingredients WHERE recipe_id IN (?) OR ingredient_id IN (?)", recipeIDs, ingredientIDs).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.Token{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.Recipe{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.Tag{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.Ingredient{}).Error; err != nil {
			return err
		}
		return tx.Delete(user).Error
	})
	if err != nil {
		httperr.Internal(c, err, "Failed to delete user")
		return
	}

	for _, key := range images {
		if err := h.store.Delete(c.Request.Context(), key); err != nil {
			_ = c.Error(err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

// GetStats returns system-wide statistics
// @Summary System statistics
// @Tags admin
// @Produce json
// @Security AdminAuth
// @Success 200 {object} StatsResponse
// @Router /admin/stats [get]
func (h *Handler) GetStats(c *gin.Context) {
	var stats StatsResponse
	db := h.db.WithContext(c.Request.Context())

	counts := []struct {
		query *gorm.DB
		dest  *int64
	}{
		{db.Model(&models.User{}), &stats.TotalUsers},
		{db.Model(&models.User{}).Where("is_active = ?", true), &stats.ActiveUsers},
		{db.Model(&models.User{}).Where("is_staff = ?", true), &stats.StaffUsers},
		{db.Model(&models.Token{}), &stats.ActiveTokens},
		{db.Model(&models.Recipe{}), &stats.TotalRecipes},
		{db.Model(&models.Recipe{}).Where("image <> ''"), &stats.RecipesWithImages},
		{db.Model(&models.Tag{}), &stats.TotalTags},
		{db.Model(&models.Ingredient{}), &stats.TotalIngredients},
	}
	for _, q := range counts {
		if err := q.query.Count(q.dest).Error; err != nil {
			httperr.Internal(c, err, "Failed to fetch statistics")
			return
		}
	}

	c.JSON(http.StatusOK, stats)
}

// RegisterRoutes registers admin routes on the given router group. login
// middlewares (such as a rate limiter) run before the login handler.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, login ...gin.HandlerFunc) {
	admin := rg.Group("/admin")
	admin.POST("/login", append(append([]gin.HandlerFunc{}, login...), h.Login)...)

	staff := admin.Group("", auth.AdminMiddleware(h.jwt, h.db), auth.RequireStaff())
	staff.GET("/stats", h.GetStats)
	staff.GET("/users", h.ListUsers)
	staff.POST("/users", h.CreateUser)
	staff.GET("/users/:id", h.GetUser)
	staff.PATCH("/users/:id", auth.WithPrincipal(h.UpdateUser))
	staff.DELETE("/users/:id", auth.WithPrincipal(h.DeleteUser))
	staff.GET("/recipes", h.ListRecipes)
	staff.DELETE("/recipes/:id", h.DeleteRecipe)
	staff.GET("/tags", h.ListTags)
	staff.GET("/ingredients", h.ListIngredients)
}
