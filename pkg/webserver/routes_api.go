package webserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/wata-nana/Hiraizumi-app/pkg/db"
	"github.com/wata-nana/Hiraizumi-app/pkg/models"
	"github.com/wata-nana/Hiraizumi-app/pkg/utils"
)

// routePinRef is one entry of the route_pins form field: a pin id with
// its zero-based position in the route.
type routePinRef struct {
	PinID uint `json:"pin_id"`
	Order int  `json:"order"`
}

// createRoute creates a route and its ordered pin membership as one
// atomic unit. All four form fields are mandatory. Unlike pin images,
// the cover image is stored without an extension filter.
func (s *Server) createRoute(c *gin.Context) {
	user, err := s.getCurrentUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utils.NewErrorResponse("Unauthorized"))
		return
	}

	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" {
		c.JSON(http.StatusBadRequest, utils.NewErrorResponse("name is required"))
		return
	}

	description := strings.TrimSpace(c.PostForm("description"))
	if description == "" {
		c.JSON(http.StatusBadRequest, utils.NewErrorResponse("description is required"))
		return
	}

	routePinsJSON := c.PostForm("route_pins")
	if routePinsJSON == "" {
		c.JSON(http.StatusBadRequest, utils.NewErrorResponse("route_pins is required"))
		return
	}

	var refs []routePinRef
	if err := json.Unmarshal([]byte(routePinsJSON), &refs); err != nil || len(refs) == 0 {
		c.JSON(http.StatusBadRequest, utils.NewErrorResponse("route_pins must be a non-empty JSON array"))
		return
	}

	fh, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.NewErrorResponse("image is required"))
		return
	}

	imageURL, err := s.uploads.Save(fh)
	if err != nil {
		s.logger.WithError(err).Error("Failed to store route image")
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse("Failed to store image"))
		return
	}

	route := &models.Route{
		Name:        name,
		Description: description,
		ImageURL:    imageURL,
		UserID:      user.ID,
	}

	routePins := make([]models.RoutePin, 0, len(refs))
	for _, ref := range refs {
		routePins = append(routePins, models.RoutePin{
			PinID:    ref.PinID,
			PinOrder: ref.Order,
		})
	}

	repo := db.NewRepository(s.db)
	if err := repo.CreateRouteWithPins(route, routePins); err != nil {
		if errors.Is(err, db.ErrUnknownPin) {
			c.JSON(http.StatusBadRequest, utils.NewErrorResponse("route_pins references an unknown pin"))
			return
		}
		s.logger.WithError(err).Error("Failed to create route")
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse("Failed to create route"))
		return
	}

	s.logger.LogRoute(route.ID, user.ID, len(routePins), "created", true)

	c.JSON(http.StatusCreated, utils.NewSuccessResponse(map[string]interface{}{
		"id": route.ID,
	}, "Route created"))
}

// listRoutes returns all routes ordered by name, trimmed to the fields
// the listing view renders.
func (s *Server) listRoutes(c *gin.Context) {
	repo := db.NewRepository(s.db)
	routes, err := repo.GetRoutes()
	if err != nil {
		s.logger.WithError(err).Error("Failed to list routes")
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse("Failed to get routes"))
		return
	}

	c.JSON(http.StatusOK, routes)
}

// getRoutePins returns the route's pins in stored order.
func (s *Server) getRoutePins(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusNotFound, utils.NewErrorResponse("Route not found"))
		return
	}

	repo := db.NewRepository(s.db)
	if _, err := repo.GetRouteByID(uint(id)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, utils.NewErrorResponse("Route not found"))
			return
		}
		s.logger.WithError(err).Error("Failed to get route")
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse("Failed to get route"))
		return
	}

	pins, err := repo.GetRoutePins(uint(id))
	if err != nil {
		s.logger.WithError(err).Error("Failed to get route pins")
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse("Failed to get route pins"))
		return
	}

	c.JSON(http.StatusOK, pins)
}
