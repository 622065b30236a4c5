package apikey

import (
	"github.com/labstack/echo/v4"

	"github.com/tripsnap/api/internal/middleware"
	authpkg "github.com/tripsnap/api/pkg/auth"
)

// RegisterRoutes registers API key management routes (admin only)
func RegisterRoutes(g *echo.Group, handler *Handler) {
	admin := g.Group("/_internal/api-keys", middleware.RequireRole(authpkg.Admin))
	admin.POST("", handler.CreateAPIKey)
	admin.GET("", handler.ListAPIKeys)
}
