package users

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/accounts"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/auth"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/httperr"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	models.AutoMigrate(db)
	return db
}

func setupTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	httperr.Setup()
	r := gin.New()
	r.HandleMethodNotAllowed = true
	handler := NewHandler(db)
	handler.RegisterRoutes(r.Group("/api"))
	return r
}

func createTestUser(t *testing.T, db *gorm.DB, email, password string) *models.User {
	user, err := accounts.NewStore(db).CreateUser(context.Background(), email, password, accounts.WithName("Test User"))
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

func getAuthHeader(t *testing.T, db *gorm.DB, user *models.User) string {
	key, err := auth.IssueToken(context.Background(), db, user)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}
	return "Token " + key
}

func postJSON(router *gin.Engine, path string, body any, header string) *httptest.ResponseRecorder {
	jsonBody, _ := json.Marshal(body)
	req, _ := http.NewRequest("POST", path, bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestCreateValidUser(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	payload := CreateUserRequest{Email: "test@EXAMPLE.com", Password: "testpass", Name: "Test name"}
	resp := postJSON(router, "/api/users/create", payload, "")

	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var body map[string]any
	json.Unmarshal(resp.Body.Bytes(), &body)
	if _, ok := body["password"]; ok {
		t.Error("Password must not be returned")
	}
	if body["email"] != "test@example.com" {
		t.Errorf("Expected normalized email, got %v", body["email"])
	}

	var user models.User
	if err := db.Where("email = ?", "test@example.com").First(&user).Error; err != nil {
		t.Fatalf("Expected user to exist: %v", err)
	}
	if !accounts.CheckPassword("testpass", user.PasswordHash) {
		t.Error("Expected stored password to match")
	}
}

func TestCreateUserExists(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	createTestUser(t, db, "test@example.com", "testpass")

	payload := CreateUserRequest{Email: "test@example.com", Password: "testpass", Name: "Test"}
	resp := postJSON(router, "/api/users/create", payload, "")

	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestCreateUserExistsDifferentCase(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	resp := postJSON(router, "/api/users/create", CreateUserRequest{Email: "Test@example.com", Password: "testpass", Name: "A"}, "")
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = postJSON(router, "/api/users/create", CreateUserRequest{Email: "test@example.com", Password: "testpass", Name: "B"}, "")
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d: %s", resp.Code, resp.Body.String())
	}

	var count int64
	db.Model(&models.User{}).Count(&count)
	if count != 1 {
		t.Errorf("Expected 1 user, got %d", count)
	}
}

func TestCreateUserPasswordTooShort(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	payload := CreateUserRequest{Email: "test@example.com", Password: "pw", Name: "Test"}
	resp := postJSON(router, "/api/users/create", payload, "")

	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.Code)
	}

	var count int64
	db.Model(&models.User{}).Where("email = ?", "test@example.com").Count(&count)
	if count != 0 {
		t.Error("Expected user not to be created")
	}
}

func TestCreateUserInvalidEmail(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	for _, email := range []string{"", "not-an-email"} {
		resp := postJSON(router, "/api/users/create", CreateUserRequest{Email: email, Password: "testpass", Name: "Test"}, "")
		if resp.Code != http.StatusBadRequest {
			t.Errorf("Email %q: expected status 400, got %d", email, resp.Code)
		}
	}
}

func TestCreateToken(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	createTestUser(t, db, "test@example.com", "testpass")

	resp := postJSON(router, "/api/users/token", TokenRequest{Email: "test@example.com", Password: "testpass"}, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var first TokenResponse
	json.Unmarshal(resp.Body.Bytes(), &first)
	if first.Token == "" {
		t.Fatal("Expected token in response")
	}

	// Logging in again hands out the same token
	resp = postJSON(router, "/api/users/token", TokenRequest{Email: "test@example.com", Password: "testpass"}, "")
	var second TokenResponse
	json.Unmarshal(resp.Body.Bytes(), &second)
	if second.Token != first.Token {
		t.Error("Expected the token to be reused")
	}
}

func TestCreateTokenEmailCaseInsensitive(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	createTestUser(t, db, "test@example.com", "testpass")

	resp := postJSON(router, "/api/users/token", TokenRequest{Email: "TEST@example.com", Password: "testpass"}, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var body TokenResponse
	json.Unmarshal(resp.Body.Bytes(), &body)
	if body.Token == "" {
		t.Error("Expected token in response")
	}
}

func TestCreateTokenInvalid(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	createTestUser(t, db, "test@example.com", "testpass")

	tests := []struct {
		name    string
		payload any
	}{
		{"wrong password", TokenRequest{Email: "test@example.com", Password: "wrong"}},
		{"unknown user", TokenRequest{Email: "nobody@example.com", Password: "testpass"}},
		{"missing password", map[string]string{"email": "test@example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(router, "/api/users/token", tt.payload, "")
			if resp.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", resp.Code)
			}

			var body map[string]any
			json.Unmarshal(resp.Body.Bytes(), &body)
			if _, ok := body["token"]; ok {
				t.Error("Expected no token in response")
			}
		})
	}
}

func TestRevokeToken(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com", "testpass")
	header := getAuthHeader(t, db, user)

	req, _ := http.NewRequest("DELETE", "/api/users/token", nil)
	req.Header.Set("Authorization", header)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d: %s", resp.Code, resp.Body.String())
	}

	req, _ = http.NewRequest("GET", "/api/users/me", nil)
	req.Header.Set("Authorization", header)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected revoked token to be rejected, got %d", resp.Code)
	}
}

func TestRetrieveUserUnauthorized(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	req, _ := http.NewRequest("GET", "/api/users/me", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", resp.Code)
	}
}

func TestRetrieveProfile(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com", "testpass")

	req, _ := http.NewRequest("GET", "/api/users/me", nil)
	req.Header.Set("Authorization", getAuthHeader(t, db, user))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var profile UserResponse
	json.Unmarshal(resp.Body.Bytes(), &profile)
	if profile.Email != "test@example.com" || profile.Name != "Test User" {
		t.Errorf("Unexpected profile %+v", profile)
	}
}

func TestPostMeNotAllowed(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com", "testpass")

	resp := postJSON(router, "/api/users/me", map[string]string{}, getAuthHeader(t, db, user))
	if resp.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", resp.Code)
	}
}

func TestPatchProfile(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com", "testpass")

	body, _ := json.Marshal(map[string]string{"name": "new name", "password": "newpassword123"})
	req, _ := http.NewRequest("PATCH", "/api/users/me", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", getAuthHeader(t, db, user))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var updated models.User
	db.First(&updated, user.ID)
	if updated.Name != "new name" {
		t.Errorf("Expected name 'new name', got '%s'", updated.Name)
	}
	if !accounts.CheckPassword("newpassword123", updated.PasswordHash) {
		t.Error("Expected password to be updated")
	}
}

func TestPatchProfileNameOnly(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com", "testpass")

	body, _ := json.Marshal(map[string]string{"name": "Only name"})
	req, _ := http.NewRequest("PATCH", "/api/users/me", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", getAuthHeader(t, db, user))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var updated models.User
	db.First(&updated, user.ID)
	if !accounts.CheckPassword("testpass", updated.PasswordHash) {
		t.Error("Expected password to be unchanged")
	}
}

func TestPutProfileRequiresPassword(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com", "testpass")

	body, _ := json.Marshal(map[string]string{"name": "No password"})
	req, _ := http.NewRequest("PUT", "/api/users/me", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", getAuthHeader(t, db, user))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.Code)
	}
}

func TestPatchProfileShortPassword(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com", "testpass")

	body, _ := json.Marshal(map[string]string{"password": "abc"})
	req, _ := http.NewRequest("PATCH", "/api/users/me", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", getAuthHeader(t, db, user))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.Code)
	}
}
