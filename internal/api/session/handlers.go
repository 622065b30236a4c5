package session

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/tripsnap/api/internal/api/common"
	"github.com/tripsnap/api/internal/middleware"
	"github.com/tripsnap/api/pkg/logging"
	"github.com/tripsnap/api/pkg/resolver"
	"github.com/tripsnap/api/pkg/response"
)

// maxWait caps ?wait= on GET requests
const maxWait = 30 * time.Second

// Handler handles session gallery HTTP requests
type Handler struct {
	registry *Registry
}

// NewHandler creates a new session handler
func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

// BindImages handles PUT /sessions/:id/images
func (h *Handler) BindImages(c echo.Context) error {
	user, ok := middleware.GetUserFromContext(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	var req common.BindSessionImagesRequest
	if err := c.Bind(&req); err != nil {
		logging.Logger.Debug("Failed to bind request", zap.Error(err))
		return response.BadRequest(c, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return response.Invalid(c, err)
	}

	viewer := req.Viewer
	if viewer == "" {
		viewer = user.Viewer
	}
	if req.IDs == nil {
		req.IDs = []string{}
	}

	state, changed := h.registry.Bind(sessionKey(user, c.Param("id")), req.IDs, viewer)
	logging.Logger.Debug("Bound session images",
		zap.String("session", c.Param("id")),
		zap.Int("count", len(req.IDs)),
		zap.Bool("changed", changed))

	return c.JSON(http.StatusAccepted, toResponse(c.Param("id"), state))
}

// GetImages handles GET /sessions/:id/images.
// ?wait=<seconds> blocks until the active batch finishes or the wait elapses.
func (h *Handler) GetImages(c echo.Context) error {
	user, ok := middleware.GetUserFromContext(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	b, found := h.registry.Get(sessionKey(user, c.Param("id")))
	if !found {
		return response.NotFound(c, "Session not found")
	}

	state := b.State()
	if raw := c.QueryParam("wait"); raw != "" && state.Busy {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds < 0 {
			return response.BadRequest(c, "wait must be a non-negative number of seconds")
		}
		wait := time.Duration(seconds) * time.Second
		if wait > maxWait {
			wait = maxWait
		}
		ctx, cancel := context.WithTimeout(c.Request().Context(), wait)
		defer cancel()
		// A timeout just returns the busy state
		state, _ = b.Wait(ctx)
	}

	return c.JSON(http.StatusOK, toResponse(c.Param("id"), state))
}

// DeleteImages handles DELETE /sessions/:id/images
func (h *Handler) DeleteImages(c echo.Context) error {
	user, ok := middleware.GetUserFromContext(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}
	if !h.registry.Remove(sessionKey(user, c.Param("id"))) {
		return response.NotFound(c, "Session not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// sessionKey scopes session ids to the principal that created them
func sessionKey(user *middleware.User, id string) string {
	return user.ID + "/" + id
}

func toResponse(id string, state resolver.State) common.SessionImagesResponse {
	return common.SessionImagesResponse{
		Session:    id,
		URLs:       state.URLs,
		Busy:       state.Busy,
		Generation: state.Generation,
	}
}
