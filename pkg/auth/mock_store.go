package auth

import "sync"

// MockStore implements TokenStore in memory for tests
type MockStore struct {
	name  string
	token string
	mu    sync.RWMutex

	// ReadOnly makes Save and Delete return ErrStoreReadOnly
	ReadOnly bool

	// Error injection for testing
	LoadError   error
	SaveError   error
	DeleteError error
}

// NewMockStore creates an empty mock store
func NewMockStore(name string) *MockStore {
	return &MockStore{name: name}
}

// NewMockStoreWithToken creates a mock store that already holds a token
func NewMockStoreWithToken(name, token string) *MockStore {
	return &MockStore{name: name, token: token}
}

// Name implements TokenStore
func (m *MockStore) Name() string {
	return m.name
}

// Load implements TokenStore
func (m *MockStore) Load() (string, error) {
	if m.LoadError != nil {
		return "", m.LoadError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.token == "" {
		return "", ErrTokenNotFound
	}
	return m.token, nil
}

// Save implements TokenStore
func (m *MockStore) Save(token string) error {
	if m.ReadOnly {
		return ErrStoreReadOnly
	}
	if m.SaveError != nil {
		return m.SaveError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

// Delete implements TokenStore
func (m *MockStore) Delete() error {
	if m.ReadOnly {
		return ErrStoreReadOnly
	}
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" {
		return ErrTokenNotFound
	}
	m.token = ""
	return nil
}

// Token returns the held token without going through Load
func (m *MockStore) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}
