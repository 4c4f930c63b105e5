// Package accounts manages user records: creation, email normalization,
// password hashing and credential checks.
package accounts

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/skrskr/recipe-app-api/pkg/recipeapi/models"
)

// Store creates and authenticates users.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Option sets an optional attribute on a user being created.
type Option func(u *models.User)

func WithName(name string) Option {
	return func(u *models.User) { u.Name = name }
}

func WithStaff(staff bool) Option {
	return func(u *models.User) { u.IsStaff = staff }
}

func WithSuperuser(superuser bool) Option {
	return func(u *models.User) { u.IsSuperuser = superuser }
}

func WithActive(active bool) Option {
	return func(u *models.User) { u.IsActive = active }
}

// NormalizeEmail lower-cases the domain part of email. The local part is
// kept as given.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + "@" + strings.ToLower(email[at+1:])
}

// CreateUser stores a new user with a hashed password.
func (s *Store) CreateUser(ctx context.Context, email, password string, opts ...Option) (*models.User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, ErrEmailRequired
	}

	user := &models.User{Email: email, IsActive: true}
	for _, opt := range opts {
		opt(user)
	}
	if err := SetPassword(user, password); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("LOWER(email) = LOWER(?)", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrEmailTaken
		}

		if err := tx.Create(user).Error; err != nil {
			return err
		}
		// is_active defaults to true in the schema, so an explicit false
		// has to be written after the insert.
		if !user.IsActive {
			return tx.Model(user).Update("is_active", false).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

// CreateSuperuser creates a user with both staff and superuser flags set.
func (s *Store) CreateSuperuser(ctx context.Context, email, password string, opts ...Option) (*models.User, error) {
	opts = append(opts, WithStaff(true), WithSuperuser(true))
	return s.CreateUser(ctx, email, password, opts...)
}

// EnsureSuperuser creates a superuser with the given credentials unless one
// already exists. It reports whether a user was created.
func (s *Store) EnsureSuperuser(ctx context.Context, email, password string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("is_superuser = ?", true).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	if _, err := s.CreateSuperuser(ctx, email, password, WithName("Administrator")); err != nil {
		return false, err
	}
	return true, nil
}

// Authenticate returns the active user matching email and password.
func (s *Store) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", NormalizeEmail(email)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.IsActive || !CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return &user, nil
}

// SetPassword replaces the stored hash on user. The record is not saved.
func SetPassword(user *models.User, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	return nil
}
