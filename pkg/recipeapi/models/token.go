package models

import "time"

// Token is the opaque credential a user presents on every API call.
// Each user holds at most one token; it is reused until revoked.
type Token struct {
	Key       string    `gorm:"primaryKey;size:40" json:"key"`
	UserID    uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}
