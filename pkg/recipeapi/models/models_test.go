package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	return db
}

func TestAutoMigrate(t *testing.T) {
	db := setupTestDB(t)

	err := AutoMigrate(db)
	if err != nil {
		t.Fatalf("AutoMigrate failed: %v", err)
	}

	tables := []string{"users", "tokens", "tags", "ingredients", "recipes", "recipe_tags", "recipe_ingredients"}
	for _, table := range tables {
		if !db.Migrator().HasTable(table) {
			t.Errorf("Expected table %s to exist", table)
		}
	}
}

func TestUserModel(t *testing.T) {
	db := setupTestDB(t)
	AutoMigrate(db)

	user := User{
		Email:        "test@example.com",
		PasswordHash: "hashed_password",
		Name:         "Test User",
	}

	result := db.Create(&user)
	if result.Error != nil {
		t.Fatalf("Failed to create user: %v", result.Error)
	}

	if user.ID == 0 {
		t.Error("Expected user ID to be set after create")
	}
	if !user.IsActive {
		t.Error("Expected new user to be active by default")
	}

	// Test unique email constraint
	user2 := User{
		Email:        "test@example.com",
		PasswordHash: "another_hash",
		Name:         "Another User",
	}
	result = db.Create(&user2)
	if result.Error == nil {
		t.Error("Expected error when creating user with duplicate email")
	}
}

func TestTokenUniquePerUser(t *testing.T) {
	db := setupTestDB(t)
	AutoMigrate(db)

	user := User{Email: "test@example.com", PasswordHash: "hash"}
	db.Create(&user)

	if err := db.Create(&Token{Key: "first", UserID: user.ID}).Error; err != nil {
		t.Fatalf("Failed to create token: %v", err)
	}
	if err := db.Create(&Token{Key: "second", UserID: user.ID}).Error; err == nil {
		t.Error("Expected error when creating a second token for the same user")
	}
}

func TestRecipeWithTagsAndIngredients(t *testing.T) {
	db := setupTestDB(t)
	AutoMigrate(db)

	user := User{Email: "test@example.com", PasswordHash: "hash"}
	db.Create(&user)

	tag := Tag{UserID: user.ID, Name: "Vegan"}
	ingredient := Ingredient{UserID: user.ID, Name: "Kale"}
	db.Create(&tag)
	db.Create(&ingredient)

	recipe := Recipe{
		UserID:      user.ID,
		Title:       "Kale salad",
		TimeMinutes: 10,
		Price:       decimal.RequireFromString("4.50"),
		Tags:        []Tag{tag},
		Ingredients: []Ingredient{ingredient},
	}
	if err := db.Create(&recipe).Error; err != nil {
		t.Fatalf("Failed to create recipe: %v", err)
	}

	var loaded Recipe
	db.Preload("Tags").Preload("Ingredients").First(&loaded, recipe.ID)
	if len(loaded.Tags) != 1 {
		t.Errorf("Expected 1 tag, got %d", len(loaded.Tags))
	}
	if len(loaded.Ingredients) != 1 {
		t.Errorf("Expected 1 ingredient, got %d", len(loaded.Ingredients))
	}
	if !loaded.Price.Equal(decimal.RequireFromString("4.5")) {
		t.Errorf("Expected price 4.50, got %s", loaded.Price)
	}
}

func TestTagNamesNotGloballyUnique(t *testing.T) {
	db := setupTestDB(t)
	AutoMigrate(db)

	alice := User{Email: "alice@example.com", PasswordHash: "hash"}
	bob := User{Email: "bob@example.com", PasswordHash: "hash"}
	db.Create(&alice)
	db.Create(&bob)

	if err := db.Create(&Tag{UserID: alice.ID, Name: "Dessert"}).Error; err != nil {
		t.Fatalf("Failed to create tag: %v", err)
	}
	if err := db.Create(&Tag{UserID: bob.ID, Name: "Dessert"}).Error; err != nil {
		t.Errorf("Expected two users to own a tag with the same name, got %v", err)
	}
}
