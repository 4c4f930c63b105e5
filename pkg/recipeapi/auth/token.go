package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"

	"github.com/skrskr/recipe-app-api/pkg/recipeapi/models"
	"gorm.io/gorm"
)

// KeyLength is the length of a generated token in bytes (20 bytes = 40 hex chars)
const KeyLength = 20

// generateKey generates a new random token key
func generateKey() (string, error) {
	bytes := make([]byte, KeyLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// IssueToken returns the user's existing token, creating one if the user
// has none. Repeated logins therefore hand out the same key.
func IssueToken(ctx context.Context, db *gorm.DB, user *models.User) (string, error) {
	key, err := generateKey()
	if err != nil {
		return "", err
	}

	var token models.Token
	err = db.WithContext(ctx).
		Where(models.Token{UserID: user.ID}).
		Attrs(models.Token{Key: key}).
		FirstOrCreate(&token).Error
	if err != nil {
		// A concurrent login may have inserted the row first.
		if lookupErr := db.WithContext(ctx).Where("user_id = ?", user.ID).First(&token).Error; lookupErr != nil {
			return "", err
		}
	}

	return token.Key, nil
}

// RevokeToken deletes the user's token. Revoking a missing token is not an error.
func RevokeToken(ctx context.Context, db *gorm.DB, userID uint) error {
	return db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Token{}).Error
}

// LookupToken resolves key to its active owner.
func LookupToken(ctx context.Context, db *gorm.DB, key string) (*models.User, error) {
	if key == "" {
		return nil, ErrInvalidToken
	}

	var token models.Token
	if err := db.WithContext(ctx).Preload("User").Where(models.Token{Key: key}).First(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	if !token.User.IsActive {
		return nil, ErrInactiveUser
	}

	return &token.User, nil
}
