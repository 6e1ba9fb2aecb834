package models

import (
	"time"
)

// Route is a named, ordered collection of existing pins with a cover image.
// A Route and its RoutePin rows are always created as one atomic unit.
type Route struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Name        string `gorm:"size:120;not null" json:"name"`
	Description string `gorm:"type:text;not null" json:"description"`
	ImageURL    string `gorm:"size:300;not null" json:"image_url"`

	UserID uint `gorm:"not null;index" json:"user_id"`
	User   User `gorm:"foreignKey:UserID" json:"-"`

	RoutePins []RoutePin `gorm:"foreignKey:RouteID" json:"route_pins,omitempty"`
}

// RoutePin links a route to a pin at a zero-based position. A pin may
// appear in any number of routes. (route_id, pin_order) is indexed but
// not unique, so client-supplied positions never fail the insert.
type RoutePin struct {
	ID uint `gorm:"primaryKey" json:"id"`

	RouteID  uint `gorm:"not null;index:idx_route_pins_route_order" json:"route_id"`
	PinID    uint `gorm:"not null;index" json:"pin_id"`
	PinOrder int  `gorm:"not null;index:idx_route_pins_route_order" json:"order"`

	Route Route `gorm:"foreignKey:RouteID" json:"-"`
	Pin   Pin   `gorm:"foreignKey:PinID" json:"-"`
}
