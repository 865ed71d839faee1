package auth

import (
	"os"
	"strings"
)

// EnvToken is the environment variable holding the API token
const EnvToken = "CIVITDL_API_KEY"

// EnvironmentStore implements TokenStore using an environment variable
type EnvironmentStore struct {
	variable string
}

// NewEnvironmentStore creates a new environment-based token store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{variable: EnvToken}
}

// Name implements TokenStore
func (e *EnvironmentStore) Name() string {
	return "env:" + e.variable
}

// Load gets the token from the environment
func (e *EnvironmentStore) Load() (string, error) {
	token := strings.TrimSpace(os.Getenv(e.variable))
	if token == "" {
		return "", ErrTokenNotFound
	}
	return token, nil
}

// Save is not supported for environment variables
func (e *EnvironmentStore) Save(string) error {
	return ErrStoreReadOnly
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete() error {
	return ErrStoreReadOnly
}
