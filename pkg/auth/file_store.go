package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// FileStore reads the plain-text token file from the working directory.
// The file is managed by the user, so the store never writes it.
type FileStore struct {
	path string
}

// NewFileStore creates a store over the given token file
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Name implements TokenStore
func (f *FileStore) Name() string {
	return "file:" + f.path
}

// Path returns the token file location
func (f *FileStore) Path() string {
	return f.path
}

// Load returns the trimmed file contents. A missing or blank file is not found.
func (f *FileStore) Load() (string, error) {
	if f.path == "" {
		return "", ErrTokenNotFound
	}

	content, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrTokenNotFound
		}
		return "", fmt.Errorf("failed to read token file: %w", err)
	}

	token := strings.TrimSpace(string(content))
	if token == "" {
		return "", ErrTokenNotFound
	}
	return token, nil
}

// Save is not supported for the token file
func (f *FileStore) Save(string) error {
	return ErrStoreReadOnly
}

// Delete is not supported for the token file
func (f *FileStore) Delete() error {
	return ErrStoreReadOnly
}
