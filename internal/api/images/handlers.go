package images

import (
	"context"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/tripsnap/api/internal/api/common"
	"github.com/tripsnap/api/internal/middleware"
	"github.com/tripsnap/api/pkg/imageref"
	"github.com/tripsnap/api/pkg/logging"
	"github.com/tripsnap/api/pkg/response"
)

// Resolver is the part of resolver.Resolver the handlers use
type Resolver interface {
	Resolve(ctx context.Context, ids []string, viewer string) []string
	ResolveOne(ctx context.Context, id, viewer string) string
	Forget(ctx context.Context, id string) error
}

// Handler handles image resolution HTTP requests
type Handler struct {
	resolver Resolver
}

// NewHandler creates a new images handler
func NewHandler(r Resolver) *Handler {
	return &Handler{resolver: r}
}

// ResolveImages handles POST /images/resolve
func (h *Handler) ResolveImages(c echo.Context) error {
	var req common.ResolveImagesRequest
	if err := c.Bind(&req); err != nil {
		logging.Logger.Debug("Failed to bind request", zap.Error(err))
		return response.BadRequest(c, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return response.Invalid(c, err)
	}

	urls := h.resolver.Resolve(c.Request().Context(), req.IDs, viewerFor(c, req.Viewer))
	return c.JSON(http.StatusOK, common.ResolveImagesResponse{URLs: urls})
}

// GetImage handles GET /images/:id
func (h *Handler) GetImage(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid image id")
	}

	displayURL := h.resolver.ResolveOne(c.Request().Context(), id, viewerFor(c, c.QueryParam("viewer")))
	return c.JSON(http.StatusOK, common.ImageResponse{
		ID:   id,
		Kind: imageref.Classify(id).String(),
		URL:  displayURL,
	})
}

// RedirectImage handles GET /images/:id/raw by redirecting to the display URL
func (h *Handler) RedirectImage(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid image id")
	}

	displayURL := h.resolver.ResolveOne(c.Request().Context(), id, viewerFor(c, c.QueryParam("viewer")))
	if displayURL == "" {
		return response.NotFound(c, "Image not available")
	}
	return c.Redirect(http.StatusFound, displayURL)
}

// ForgetImage handles DELETE /images/cache/:id
func (h *Handler) ForgetImage(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid image id")
	}

	if err := h.resolver.Forget(c.Request().Context(), id); err != nil {
		logging.Logger.Error("Failed to purge cached image", zap.String("id", id), zap.Error(err))
		return response.InternalServerError(c, "Failed to purge cached image")
	}

	fields := []zap.Field{zap.String("id", id)}
	if user, ok := middleware.GetUserFromContext(c); ok {
		fields = append(fields, zap.String("by", user.Name))
	}
	logging.Logger.Info("Purged cached image", fields...)
	return c.NoContent(http.StatusNoContent)
}

// viewerFor prefers an explicit viewer over the authenticated principal's
func viewerFor(c echo.Context, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if user, ok := middleware.GetUserFromContext(c); ok {
		return user.Viewer
	}
	return ""
}

// pathID decodes the :id parameter; references may themselves be escaped URLs
func pathID(c echo.Context) (string, error) {
	id, err := url.PathUnescape(c.Param("id"))
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", url.EscapeError("")
	}
	return id, nil
}
