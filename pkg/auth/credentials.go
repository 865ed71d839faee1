package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// TokenStore is the interface for storing and retrieving the Civitai API token
type TokenStore interface {
	// Name identifies the store in status output
	Name() string

	// Load returns the stored token or ErrTokenNotFound
	Load() (string, error)

	// Save stores a token, replacing any previous one
	Save(token string) error

	// Delete removes the stored token
	Delete() error
}

// Manager resolves the API token through an ordered chain of stores
type Manager struct {
	stores []TokenStore
}

// StoreStatus describes what a single store holds
type StoreStatus struct {
	Name    string
	Present bool
	Masked  string
	Err     error
}

// NewManager creates the default chain: the plain token file, the
// environment, the system keyring when available, then the encrypted file.
func NewManager(tokenFile string) (*Manager, error) {
	stores := []TokenStore{
		NewFileStore(tokenFile),
		NewEnvironmentStore(),
	}

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "token.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores builds a manager over an explicit chain
func NewManagerWithStores(stores ...TokenStore) *Manager {
	return &Manager{stores: stores}
}

// Stores returns the chain in lookup order
func (m *Manager) Stores() []TokenStore {
	return m.stores
}

// Resolve returns the first token found and the name of the store holding it
func (m *Manager) Resolve() (string, string, error) {
	for _, store := range m.stores {
		token, err := store.Load()
		if err == nil && token != "" {
			return token, store.Name(), nil
		}
	}
	return "", "", ErrTokenNotFound
}

// Save stores the token in the first writable store and returns its name
func (m *Manager) Save(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalidToken
	}

	var lastErr error
	for _, store := range m.stores {
		err := store.Save(token)
		if err == nil {
			return store.Name(), nil
		}
		if !errors.Is(err, ErrStoreReadOnly) {
			lastErr = err
		}
	}

	if lastErr != nil {
		return "", fmt.Errorf("failed to store token: %w", lastErr)
	}
	return "", errors.New("no writable token stores")
}

// Delete removes the token from every writable store
func (m *Manager) Delete() error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		err := store.Delete()
		switch {
		case err == nil:
			deleted = true
		case errors.Is(err, ErrStoreReadOnly), errors.Is(err, ErrTokenNotFound):
		default:
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete token: %w", lastErr)
	}
	if !deleted {
		return ErrTokenNotFound
	}
	return nil
}

// Status reports each store's contents with the token masked
func (m *Manager) Status() []StoreStatus {
	statuses := make([]StoreStatus, 0, len(m.stores))
	for _, store := range m.stores {
		status := StoreStatus{Name: store.Name()}
		token, err := store.Load()
		switch {
		case err == nil && token != "":
			status.Present = true
			status.Masked = MaskToken(token)
		case err != nil && !errors.Is(err, ErrTokenNotFound):
			status.Err = err
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "civitdl")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "civitdl")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "civitdl")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "civitdl")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// MaskToken masks all but the first 4 and last 4 characters of a token
func MaskToken(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrTokenNotFound = errors.New("api token not found")
	ErrInvalidToken  = errors.New("invalid api token")
	ErrStoreReadOnly = errors.New("token store is read-only")
)
