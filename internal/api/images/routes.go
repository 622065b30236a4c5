package images

import (
	"github.com/labstack/echo/v4"

	"github.com/tripsnap/api/internal/middleware"
	authpkg "github.com/tripsnap/api/pkg/auth"
)

// RegisterRoutes registers image routes
func RegisterRoutes(g *echo.Group, handler *Handler) {
	g.POST("/resolve", handler.ResolveImages)
	g.DELETE("/cache/:id", handler.ForgetImage, middleware.RequireRole(authpkg.Admin))
	g.GET("/:id", handler.GetImage)
	g.GET("/:id/raw", handler.RedirectImage)
}
