package user

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers the current-principal route
func RegisterRoutes(g *echo.Group, handler *Handler) {
	g.GET("/me", handler.GetCurrentUser)
}
