package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// APIKey represents an API key configuration
type APIKey struct {
	Role   string `yaml:"role"`
	APIKey string `yaml:"api_key"`
	Name   string `yaml:"name,omitempty"`
}

// APIKeysConfig represents the API keys file structure
type APIKeysConfig struct {
	APIKeys []APIKey `yaml:"api_keys"`
}

// LoadAPIKeys loads API keys from a YAML file
func LoadAPIKeys(filename string) ([]APIKey, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read API keys file: %w", err)
	}

	var config APIKeysConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse API keys file: %w", err)
	}

	return config.APIKeys, nil
}

// FindAPIKeyByKey finds an API key by its key value
func FindAPIKeyByKey(apiKeys []APIKey, key string) (*APIKey, bool) {
	if key == "" {
		return nil, false
	}
	for _, ak := range apiKeys {
		if ak.APIKey == key {
			return &ak, true
		}
	}
	return nil, false
}

// GenerateAPIKey creates a random key tagged with the role it grants
func GenerateAPIKey(role string) (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate API key: %w", err)
	}
	return "tsk_" + role + "_" + hex.EncodeToString(buf), nil
}
