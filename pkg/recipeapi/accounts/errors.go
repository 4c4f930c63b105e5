package accounts

import "errors"

var (
	// ErrEmailRequired is returned when an account is created without an email.
	ErrEmailRequired = &ValidationError{Field: "email", Message: "Users must have an email address"}
	// ErrEmailTaken is returned when the normalized email already belongs to an account.
	ErrEmailTaken = errors.New("user with this email already exists")
	// ErrInvalidCredentials covers unknown emails, wrong passwords and inactive accounts.
	ErrInvalidCredentials = errors.New("unable to authenticate with provided credentials")
)

// ValidationError reports an invalid field on account creation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
