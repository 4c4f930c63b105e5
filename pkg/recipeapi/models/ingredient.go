package models

import "time"

// Ingredient is a user-owned ingredient that recipes can reference
type Ingredient struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Name      string    `gorm:"not null;size:255" json:"name"`

	// Relationships
	User    User     `gorm:"foreignKey:UserID" json:"-"`
	Recipes []Recipe `gorm:"many2many:recipe_ingredients;" json:"recipes,omitempty"`
}

func (i *Ingredient) AttributeID() uint     { return i.ID }
func (i *Ingredient) AttributeName() string { return i.Name }

// Assign sets the owner and name of an ingredient that is about to be created.
func (i *Ingredient) Assign(userID uint, name string) {
	i.UserID = userID
	i.Name = name
}
