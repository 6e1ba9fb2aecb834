package models

import (
	"time"
)

// User represents a registered user authenticated through Google OIDC.
// Rows are created on first login and refreshed from provider claims on
// later logins; the application never deletes them.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// OIDC claims
	Sub     string `gorm:"uniqueIndex;size:255;not null" json:"sub"`
	Email   string `gorm:"uniqueIndex;size:120;not null" json:"email"`
	Name    string `gorm:"size:120;not null" json:"name"`
	Picture string `gorm:"size:250" json:"picture,omitempty"`

	// Relationships
	Pins   []Pin   `gorm:"foreignKey:UserID" json:"pins,omitempty"`
	Routes []Route `gorm:"foreignKey:UserID" json:"routes,omitempty"`
}

// ApplyClaims refreshes the mutable profile fields from provider claims.
// It returns true when anything changed and the row needs saving.
func (u *User) ApplyClaims(email, name, picture string) bool {
	updated := false

	if u.Email != email {
		u.Email = email
		updated = true
	}

	if u.Name != name {
		u.Name = name
		updated = true
	}

	if u.Picture != picture {
		u.Picture = picture
		updated = true
	}

	return updated
}
