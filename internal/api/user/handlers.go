package user

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tripsnap/api/internal/api/common"
	"github.com/tripsnap/api/internal/middleware"
	"github.com/tripsnap/api/pkg/response"
)

// Handler handles user-related HTTP requests
type Handler struct{}

// NewHandler creates a new user handler
func NewHandler() *Handler {
	return &Handler{}
}

// GetCurrentUser handles GET /user/me
func (h *Handler) GetCurrentUser(c echo.Context) error {
	user, ok := middleware.GetUserFromContext(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	return c.JSON(http.StatusOK, common.UserInfoResponse{
		Name:   user.Name,
		Role:   user.Role.String(),
		Viewer: user.Viewer,
	})
}
