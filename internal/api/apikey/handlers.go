package apikey

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/tripsnap/api/internal/middleware"
	authpkg "github.com/tripsnap/api/pkg/auth"
	"github.com/tripsnap/api/pkg/config"
	"github.com/tripsnap/api/pkg/logging"
	"github.com/tripsnap/api/pkg/response"
)

// ErrDuplicateName is returned by a KeyStore when a key with the same name exists
var ErrDuplicateName = errors.New("API key with this name already exists")

// KeyStore holds the API keys accepted by the server
type KeyStore interface {
	GetAPIKeys() []config.APIKey
	AddAPIKey(ctx context.Context, key config.APIKey) error
}

// Handler handles API key management requests
type Handler struct {
	store KeyStore
}

// NewHandler creates a new API key handler
func NewHandler(store KeyStore) *Handler {
	return &Handler{store: store}
}

// CreateAPIKeyRequest represents the request to create a new API key
type CreateAPIKeyRequest struct {
	Name string `json:"name" validate:"required,max=64"`
	Role string `json:"role" validate:"required,oneof=user operator admin"`
}

// CreateAPIKeyResponse represents the response after creating an API key
type CreateAPIKeyResponse struct {
	APIKey string `json:"api_key"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

// APIKeySummary describes a key without revealing it
type APIKeySummary struct {
	Name      string `json:"name"`
	Role      string `json:"role"`
	KeyPrefix string `json:"key_prefix"`
}

// CreateAPIKey handles POST /_internal/api-keys
func (h *Handler) CreateAPIKey(c echo.Context) error {
	var req CreateAPIKeyRequest
	if err := c.Bind(&req); err != nil {
		logging.Logger.Debug("Failed to bind request", zap.Error(err))
		return response.BadRequest(c, "Invalid request")
	}
	if err := c.Validate(&req); err != nil {
		return response.Invalid(c, err)
	}

	apiKeyValue, err := config.GenerateAPIKey(req.Role)
	if err != nil {
		logging.Logger.Error("Failed to generate API key", zap.Error(err))
		return response.InternalServerError(c, "Failed to generate API key")
	}

	newKey := config.APIKey{Role: req.Role, APIKey: apiKeyValue, Name: req.Name}
	if err := h.store.AddAPIKey(c.Request().Context(), newKey); err != nil {
		if errors.Is(err, ErrDuplicateName) {
			return response.BadRequest(c, err.Error())
		}
		logging.Logger.Error("Failed to save API key", zap.Error(err))
		return response.InternalServerError(c, "Failed to save API key")
	}

	createdBy := ""
	if user, ok := middleware.GetUserFromContext(c); ok {
		createdBy = user.Name
	}
	logging.Logger.Info("API key created",
		zap.String("name", req.Name),
		zap.String("role", req.Role),
		zap.String("created_by", createdBy),
		zap.String("key_prefix", keyPrefix(apiKeyValue)))

	// The key is only ever returned here
	return c.JSON(http.StatusCreated, CreateAPIKeyResponse{
		APIKey: apiKeyValue,
		Name:   req.Name,
		Role:   req.Role,
	})
}

// ListAPIKeys handles GET /_internal/api-keys
func (h *Handler) ListAPIKeys(c echo.Context) error {
	keys := h.store.GetAPIKeys()
	out := make([]APIKeySummary, 0, len(keys))
	for _, k := range keys {
		out = append(out, APIKeySummary{
			Name:      k.Name,
			Role:      authpkg.ParseRole(k.Role).String(),
			KeyPrefix: keyPrefix(k.APIKey),
		})
	}
	return c.JSON(http.StatusOK, out)
}

// keyPrefix reveals at most half of the key
func keyPrefix(key string) string {
	return key[:min(8, len(key)/2)] + "..."
}
