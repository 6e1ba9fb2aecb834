package models

import (
	"fmt"
	"time"
)

// Map bounds for the Hiraizumi area. Pins outside this rectangle are
// rejected at creation time.
const (
	LatMin = 38.75
	LatMax = 39.05
	LngMin = 140.95
	LngMax = 141.30
)

// Pin field constraints
const (
	TitleMaxLen = 30
	CategoryMin = 1
	CategoryMax = 12
)

// Pin is a single geo-located point of interest placed by a user.
// Pins are immutable once created; expiry is informational only and the
// server never purges expired rows.
type Pin struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Lat         float64    `gorm:"not null" json:"lat"`
	Lng         float64    `gorm:"not null" json:"lng"`
	Title       string     `gorm:"size:30;not null" json:"title"`
	Category    int        `gorm:"not null" json:"category"`
	Description string     `gorm:"type:text;not null" json:"description"`
	Caution     string     `gorm:"type:text" json:"caution"`
	ImageURL    string     `gorm:"size:300" json:"image_url"`
	ExpiresAt   *time.Time `json:"expires_at"`

	UserID uint `gorm:"not null;index" json:"user_id"`
	User   User `gorm:"foreignKey:UserID" json:"-"`
}

// InBounds reports whether the coordinates fall inside the map bounds.
func InBounds(lat, lng float64) bool {
	return lat >= LatMin && lat <= LatMax && lng >= LngMin && lng <= LngMax
}

// Validate checks the creation constraints in their documented order and
// returns a client-facing message for the first violation.
func (p *Pin) Validate() error {
	if !InBounds(p.Lat, p.Lng) {
		return fmt.Errorf("coordinates are outside the supported area")
	}

	titleLen := len([]rune(p.Title))
	if titleLen < 1 || titleLen > TitleMaxLen {
		return fmt.Errorf("title must be 1-%d characters", TitleMaxLen)
	}

	if p.Category < CategoryMin || p.Category > CategoryMax {
		return fmt.Errorf("category must be between %d and %d", CategoryMin, CategoryMax)
	}

	if p.Description == "" {
		return fmt.Errorf("description is required")
	}

	return nil
}
