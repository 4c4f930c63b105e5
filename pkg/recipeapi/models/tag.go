package models

import "time"

// Tag is a user-owned label that can be attached to recipes
type Tag struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Name      string    `gorm:"not null;size:255" json:"name"`

	// Relationships
	User    User     `gorm:"foreignKey:UserID" json:"-"`
	Recipes []Recipe `gorm:"many2many:recipe_tags;" json:"recipes,omitempty"`
}

func (t *Tag) AttributeID() uint     { return t.ID }
func (t *Tag) AttributeName() string { return t.Name }

// Assign sets the owner and name of a tag that is about to be created.
func (t *Tag) Assign(userID uint, name string) {
	t.UserID = userID
	t.Name = name
}
