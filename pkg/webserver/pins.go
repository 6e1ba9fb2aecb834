package webserver

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wata-nana/Hiraizumi-app/pkg/db"
	"github.com/wata-nana/Hiraizumi-app/pkg/models"
	"github.com/wata-nana/Hiraizumi-app/pkg/upload"
	"github.com/wata-nana/Hiraizumi-app/pkg/utils"
)

// listPins returns every pin inside the map bounds as a bare JSON array.
// No authentication; the map front end calls this on load.
func (s *Server) listPins(c *gin.Context) {
	repo := db.NewRepository(s.db)
	pins, err := repo.GetPinsInBounds()
	if err != nil {
		s.logger.WithError(err).Error("Failed to list pins")
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse("Failed to get pins"))
		return
	}

	c.JSON(http.StatusOK, pins)
}

// createPin creates a pin owned by the authenticated user from a
// multipart form. Validation runs in a fixed order and each violation
// gets its own message.
func (s *Server) createPin(c *gin.Context) {
	user, err := s.getCurrentUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utils.NewErrorResponse("Unauthorized"))
		return
	}

	lat, latErr := strconv.ParseFloat(c.PostForm("lat"), 64)
	lng, lngErr := strconv.ParseFloat(c.PostForm("lng"), 64)
	if latErr != nil || lngErr != nil {
		c.JSON(http.StatusBadRequest, utils.NewErrorResponse("coordinates are outside the supported area"))
		return
	}

	category, catErr := strconv.Atoi(c.PostForm("category"))
	if catErr != nil {
		// A non-numeric category fails the range check below.
		category = 0
	}

	pin := &models.Pin{
		Lat:         lat,
		Lng:         lng,
		Title:       strings.TrimSpace(c.PostForm("title")),
		Category:    category,
		Description: strings.TrimSpace(c.PostForm("description")),
		Caution:     strings.TrimSpace(c.PostForm("caution")),
		ExpiresAt:   utils.ParseLocalDateTime(c.PostForm("expires_at")),
		UserID:      user.ID,
	}

	if err := pin.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, utils.NewErrorResponse(err.Error()))
		return
	}

	// Optional image. A disallowed extension is ignored, not an error:
	// the pin is still created without an image.
	if fh, err := c.FormFile("image"); err == nil {
		if upload.AllowedImageExt(fh.Filename) {
			imageURL, err := s.uploads.Save(fh)
			if err != nil {
				s.logger.WithError(err).Error("Failed to store pin image")
				c.JSON(http.StatusInternalServerError, utils.NewErrorResponse("Failed to store image"))
				return
			}
			pin.ImageURL = imageURL
			s.logger.LogUpload(fh.Filename, user.ID, true, "")
		} else {
			s.logger.LogUpload(fh.Filename, user.ID, false, "disallowed extension")
		}
	}

	repo := db.NewRepository(s.db)
	if err := repo.CreatePin(pin); err != nil {
		s.logger.WithError(err).Error("Failed to create pin")
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse("Failed to create pin"))
		return
	}

	s.logger.LogPin(pin.ID, user.ID, "created", true)

	c.JSON(http.StatusCreated, utils.NewSuccessResponse(map[string]interface{}{
		"id": pin.ID,
	}, "Pin created"))
}
