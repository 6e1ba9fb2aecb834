package db

import (
	"errors"
	"fmt"

	"github.com/wata-nana/Hiraizumi-app/pkg/models"
	"gorm.io/gorm"
)

// ErrUnknownPin is returned when a route references a pin id that does
// not exist.
var ErrUnknownPin = errors.New("route references an unknown pin")

// RoutePinView is the joined projection served by the route pins listing.
type RoutePinView struct {
	ID          uint    `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	ImageURL    string  `json:"image_url"`
	Order       int     `gorm:"column:pin_order" json:"order"`
}

// RouteListItem is the thin projection served by the route listing.
type RouteListItem struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
}

// Repository provides database operations for specific models
type Repository struct {
	db *DB
}

// NewRepository creates a new repository instance
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) DB() *DB {
	return r.db
}

// User repository methods
func (r *Repository) CreateUser(user *models.User) error {
	return r.db.Create(user).Error
}

func (r *Repository) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	err := r.db.First(&user, id).Error
	return &user, err
}

func (r *Repository) GetUserBySub(sub string) (*models.User, error) {
	var user models.User
	err := r.db.Where("sub = ?", sub).First(&user).Error
	return &user, err
}

func (r *Repository) UpdateUser(user *models.User) error {
	return r.db.Save(user).Error
}

// UpsertUserFromClaims looks up the user by provider subject and creates
// it on first login, or refreshes email/name/picture in place when they
// changed. The same subject never produces a second row.
func (r *Repository) UpsertUserFromClaims(sub, email, name, picture string) (*models.User, error) {
	user, err := r.GetUserBySub(sub)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		user = &models.User{
			Sub:     sub,
			Email:   email,
			Name:    name,
			Picture: picture,
		}
		if err := r.CreateUser(user); err != nil {
			return nil, err
		}
		return user, nil
	}

	if user.ApplyClaims(email, name, picture) {
		if err := r.UpdateUser(user); err != nil {
			return nil, err
		}
	}

	return user, nil
}

// Pin repository methods
func (r *Repository) CreatePin(pin *models.Pin) error {
	return r.db.Create(pin).Error
}

func (r *Repository) GetPinByID(id uint) (*models.Pin, error) {
	var pin models.Pin
	err := r.db.First(&pin, id).Error
	return &pin, err
}

// GetPinsInBounds returns every pin inside the fixed map rectangle.
func (r *Repository) GetPinsInBounds() ([]models.Pin, error) {
	var pins []models.Pin
	err := r.db.
		Where("lat BETWEEN ? AND ?", models.LatMin, models.LatMax).
		Where("lng BETWEEN ? AND ?", models.LngMin, models.LngMax).
		Order("created_at ASC").
		Find(&pins).Error
	return pins, err
}

// Chat repository methods

// CreatePinChat appends a message to a pin's chat board.
func (r *Repository) CreatePinChat(chat *models.PinChat) error {
	return r.db.Create(chat).Error
}

// GetPinChats returns a pin's chat messages, oldest first, the order the
// board renders them in.
func (r *Repository) GetPinChats(pinID uint) ([]models.PinChat, error) {
	var chats []models.PinChat
	err := r.db.
		Where("pin_id = ?", pinID).
		Order("created_at ASC, id ASC").
		Find(&chats).Error
	return chats, err
}

// Route repository methods

// CreateRouteWithPins creates the route and its ordered pin membership as
// one transaction; either all rows persist or none do.
func (r *Repository) CreateRouteWithPins(route *models.Route, refs []models.RoutePin) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		pinIDs := make([]uint, 0, len(refs))
		for _, ref := range refs {
			pinIDs = append(pinIDs, ref.PinID)
		}

		if len(pinIDs) > 0 {
			var count int64
			if err := tx.Model(&models.Pin{}).Where("id IN ?", pinIDs).Count(&count).Error; err != nil {
				return err
			}
			if count != int64(len(uniqueIDs(pinIDs))) {
				return ErrUnknownPin
			}
		}

		if err := tx.Create(route).Error; err != nil {
			return fmt.Errorf("failed to create route: %w", err)
		}

		for i := range refs {
			refs[i].RouteID = route.ID
			if err := tx.Create(&refs[i]).Error; err != nil {
				return fmt.Errorf("failed to create route pin: %w", err)
			}
		}

		return nil
	})
}

func (r *Repository) GetRouteByID(id uint) (*models.Route, error) {
	var route models.Route
	err := r.db.First(&route, id).Error
	return &route, err
}

// GetRoutes returns all routes ordered by name for the listing view.
func (r *Repository) GetRoutes() ([]RouteListItem, error) {
	var routes []RouteListItem
	err := r.db.Model(&models.Route{}).
		Select("id", "name", "image_url").
		Order("name ASC").
		Find(&routes).Error
	return routes, err
}

// GetRoutePins returns the route's pins joined with their stored order,
// ordered by position ascending.
func (r *Repository) GetRoutePins(routeID uint) ([]RoutePinView, error) {
	var pins []RoutePinView
	err := r.db.Model(&models.RoutePin{}).
		Select("pins.id", "pins.title", "pins.description", "pins.lat", "pins.lng", "pins.image_url", "route_pins.pin_order").
		Joins("JOIN pins ON pins.id = route_pins.pin_id").
		Where("route_pins.route_id = ?", routeID).
		Order("route_pins.pin_order ASC").
		Find(&pins).Error
	return pins, err
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
