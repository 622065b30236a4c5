// Package server holds process-level helpers shared by the binaries.
package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tripsnap/api/pkg/cache"
	"github.com/tripsnap/api/pkg/config"
	"github.com/tripsnap/api/pkg/logging"
)

const (
	instanceIDKey  = "meta:instance-id"
	runtimeKeysKey = "meta:api-keys"
)

// GetOrCreateInstanceID retrieves or creates a unique instance ID for this API.
// The ID lives in the resolution cache, so persistent backends (file, redis) keep it across restarts.
// Runtime API keys are stored the same way.
func GetOrCreateInstanceID(ctx context.Context, c cache.Cache) (string, error) {
	var instanceID string
	err := c.Get(ctx, instanceIDKey, &instanceID)
	switch {
	case err == nil && instanceID != "":
		logging.Logger.Info("Loaded existing API instance ID", zap.String("id", instanceID))
		return instanceID, nil
	case err != nil && !errors.Is(err, cache.ErrCacheNotFound) && !errors.Is(err, cache.ErrCacheExpired):
		return "", fmt.Errorf("failed to read instance ID: %w", err)
	}

	instanceID = uuid.New().String()
	logging.Logger.Info("Generated new API instance ID", zap.String("id", instanceID))

	if err := c.Set(ctx, instanceIDKey, instanceID, 0); err != nil {
		return "", fmt.Errorf("failed to save instance ID: %w", err)
	}
	return instanceID, nil
}

// LoadRuntimeKeys returns API keys created through the admin endpoint
func LoadRuntimeKeys(ctx context.Context, c cache.Cache) ([]config.APIKey, error) {
	var keys []config.APIKey
	err := c.Get(ctx, runtimeKeysKey, &keys)
	if err != nil && !errors.Is(err, cache.ErrCacheNotFound) && !errors.Is(err, cache.ErrCacheExpired) {
		return nil, fmt.Errorf("failed to read runtime API keys: %w", err)
	}
	return keys, nil
}

// SaveRuntimeKeys replaces the stored runtime API keys
func SaveRuntimeKeys(ctx context.Context, c cache.Cache, keys []config.APIKey) error {
	if err := c.Set(ctx, runtimeKeysKey, keys, 0); err != nil {
		return fmt.Errorf("failed to save runtime API keys: %w", err)
	}
	return nil
}
