package models

import (
	"time"
)

// PinChat is one message on a pin's chat board. The author's display
// name is denormalized at post time so the board renders without a
// user join.
type PinChat struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	PinID    uint   `gorm:"not null;index" json:"pin_id"`
	UserID   uint   `gorm:"not null" json:"-"`
	Username string `gorm:"size:120;not null" json:"username"`
	Message  string `gorm:"size:500;not null" json:"message"`

	Pin  Pin  `gorm:"foreignKey:PinID" json:"-"`
	User User `gorm:"foreignKey:UserID" json:"-"`
}
