package webserver

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/wata-nana/Hiraizumi-app/pkg/db"
	"github.com/wata-nana/Hiraizumi-app/pkg/utils"
)

// Front-end pages live under web/; the map application itself is a
// static Leaflet bundle, not rendered server-side.
const webDir = "web"

// handleWelcome serves the landing page.
func (s *Server) handleWelcome(c *gin.Context) {
	s.servePage(c, "welcome.html")
}

// handleMap serves the map page. Unauthenticated visitors are sent back
// to the landing page.
func (s *Server) handleMap(c *gin.Context) {
	if _, ok := s.sessionUserID(c); !ok {
		c.Redirect(http.StatusFound, "/")
		return
	}

	s.servePage(c, "map.html")
}

func (s *Server) servePage(c *gin.Context, name string) {
	page := filepath.Join(webDir, name)
	if _, err := os.Stat(page); err != nil {
		c.JSON(http.StatusNotFound, utils.NewErrorResponse("Page not found"))
		return
	}

	c.File(page)
}

// handleMe reports the current identity to the front end, and pops the
// pending flash message if one was set by a failed login.
func (s *Server) handleMe(c *gin.Context) {
	session := sessions.Default(c)

	var flash string
	if v := session.Get(sessionFlashKey); v != nil {
		flash, _ = v.(string)
		session.Delete(sessionFlashKey)
		session.Save()
	}

	userID, ok := s.sessionUserID(c)
	if !ok {
		resp := utils.NewErrorResponse("Not logged in")
		resp.Message = flash
		c.JSON(http.StatusUnauthorized, resp)
		return
	}

	repo := db.NewRepository(s.db)
	user, err := repo.GetUserByID(userID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load session user")
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse("Failed to load user"))
		return
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse(map[string]interface{}{
		"id":      user.ID,
		"email":   user.Email,
		"name":    user.Name,
		"picture": user.Picture,
		"flash":   flash,
	}, ""))
}
