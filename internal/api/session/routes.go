package session

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers session gallery routes
func RegisterRoutes(g *echo.Group, handler *Handler) {
	g.PUT("/:id/images", handler.BindImages)
	g.GET("/:id/images", handler.GetImages)
	g.DELETE("/:id/images", handler.DeleteImages)
}
