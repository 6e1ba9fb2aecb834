package webserver

import (
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

// chatPostRequest is the JSON body of a chat post.
type chatPostRequest struct {
	Message string `json:"message"`
}

// chatPin resolves the :id parameter to an existing pin, writing the
// 404 response itself when it cannot.
func (s *Server) chatPin(c *gin.Context) (*models.Pin, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusNotFound, utils.NewErrorResponse("Pin not found"))
		return nil, false
	}

	repo := db.NewRepository(s.db)
	pin, err := repo.GetPinByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, utils.NewErrorResponse("Pin not found"))
			return nil, false
		}
		s.logger.WithError(err).Error("Failed to get pin")
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse("Failed to get pin"))
		return nil, false
	}

	return pin, true
}

// listPinChats returns a pin's chat board as a bare JSON array, oldest
// message first. Public, like the pin listing; the board polls this.
func (s *Server) listPinChats(c *gin.Context) {
	pin, ok := s.chatPin(c)
	if !ok {
		return
	}

	repo := db.NewRepository(s.db)
	chats, err := repo.GetPinChats(pin.ID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list pin chats")
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse("Failed to get chats"))
		return
	}

	c.JSON(http.StatusOK, chats)
}

// createPinChat posts a message to a pin's chat board under the
// authenticated user's display name.
func (s *Server) createPinChat(c *gin.Context) {
	user, err := s.getCurrentUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utils.NewErrorResponse("Unauthorized"))
		return
	}

	pin, ok := s.chatPin(c)
	if !ok {
		return
	}

	var req chatPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.NewErrorResponse("message is required"))
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		c.JSON(http.StatusBadRequest, utils.NewErrorResponse("message is required"))
		return
	}

	chat := &models.PinChat{
		PinID:    pin.ID,
		UserID:   user.ID,
		Username: user.Name,
		Message:  message,
	}

	repo := db.NewRepository(s.db)
	if err := repo.CreatePinChat(chat); err != nil {
		s.logger.WithError(err).Error("Failed to create pin chat")
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse("Failed to post message"))
		return
	}

	c.JSON(http.StatusCreated, utils.NewSuccessResponse(map[string]interface{}{
		"id": chat.ID,
	}, "Message posted"))
}
