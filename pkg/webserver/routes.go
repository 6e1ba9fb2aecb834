package webserver

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	// Health check endpoint (no auth required)
	s.router.GET("/health", s.healthCheck)

	// Web shell
	s.router.GET("/", s.handleWelcome)
	s.router.GET("/map", s.handleMap)

	// OAuth login flow
	s.router.GET("/login/google", s.handleLogin)
	s.router.GET("/auth/callback", s.handleCallback)
	s.router.GET("/logout", s.handleLogout)

	api := s.router.Group("/api")
	{
		// Public reads
		api.GET("/pins", s.listPins)
		api.GET("/routes", s.listRoutes)
		api.GET("/routes/:id/pins", s.getRoutePins)
		api.GET("/pins/:id/chats", s.listPinChats)
		api.GET("/me", s.handleMe)

		// Writes require an authenticated identity
		protected := api.Group("")
		protected.Use(s.authMiddleware())
		{
			protected.POST("/pins", s.createPin)
			protected.POST("/pins/:id/chats", s.createPinChat)
			protected.POST("/routes", s.createRoute)
			protected.GET("/token", s.handleToken)
		}
	}

	// Uploaded images and front-end assets
	s.router.Static("/static", "./static")

	s.router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, gin.H{"error": "Route not found"})
			return
		}

		c.Redirect(http.StatusFound, "/")
	})
}
