package auth

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestManagerResolveOrder(t *testing.T) {
	file := NewMockStore("file")
	env := NewMockStoreWithToken("env", "env-token")
	vault := NewMockStoreWithToken("vault", "vault-token")
	manager := NewManagerWithStores(file, env, vault)

	token, source, err := manager.Resolve()
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if token != "env-token" || source != "env" {
		t.Errorf("Expected env-token from env, got %q from %q", token, source)
	}
}

func TestManagerResolveSkipsBrokenStore(t *testing.T) {
	broken := NewMockStore("broken")
	broken.LoadError = errors.New("keychain locked")
	manager := NewManagerWithStores(broken, NewMockStoreWithToken("encrypted", "abc"))

	token, source, err := manager.Resolve()
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if token != "abc" || source != "encrypted" {
		t.Errorf("Expected abc from encrypted, got %q from %q", token, source)
	}
}

func TestManagerResolveNone(t *testing.T) {
	manager := NewManagerWithStores(NewMockStore("a"), NewMockStore("b"))

	_, _, err := manager.Resolve()
	if !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("Expected ErrTokenNotFound, got %v", err)
	}
}

func TestManagerSaveSkipsReadOnly(t *testing.T) {
	readOnly := NewMockStore("file")
	readOnly.ReadOnly = true
	writable := NewMockStore("keyring")
	manager := NewManagerWithStores(readOnly, writable)

	name, err := manager.Save("  secret-token \n")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if name != "keyring" {
		t.Errorf("Expected token saved to keyring, got %q", name)
	}
	if writable.Token() != "secret-token" {
		t.Errorf("Expected trimmed token, got %q", writable.Token())
	}
}

func TestManagerSaveFallsThrough(t *testing.T) {
	failing := NewMockStore("keyring")
	failing.SaveError = errors.New("no dbus")
	fallback := NewMockStore("encrypted")
	manager := NewManagerWithStores(failing, fallback)

	name, err := manager.Save("tok")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if name != "encrypted" {
		t.Errorf("Expected encrypted store, got %q", name)
	}
}

func TestManagerSaveRejectsEmpty(t *testing.T) {
	manager := NewManagerWithStores(NewMockStore("a"))
	if _, err := manager.Save("   "); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}
}

func TestManagerSaveNoWritableStore(t *testing.T) {
	readOnly := NewMockStore("env")
	readOnly.ReadOnly = true
	manager := NewManagerWithStores(readOnly)

	if _, err := manager.Save("tok"); err == nil {
		t.Error("Expected error with no writable stores")
	}
}

func TestManagerDelete(t *testing.T) {
	readOnly := NewMockStoreWithToken("file", "file-token")
	readOnly.ReadOnly = true
	keyringStore := NewMockStoreWithToken("keyring", "k")
	encrypted := NewMockStoreWithToken("encrypted", "e")
	manager := NewManagerWithStores(readOnly, keyringStore, encrypted)

	if err := manager.Delete(); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if keyringStore.Token() != "" || encrypted.Token() != "" {
		t.Error("Expected writable stores to be cleared")
	}
	if readOnly.Token() != "file-token" {
		t.Error("Read-only store must keep its token")
	}

	if err := manager.Delete(); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("Expected ErrTokenNotFound on second delete, got %v", err)
	}
}

func TestManagerStatusMasksTokens(t *testing.T) {
	broken := NewMockStore("broken")
	broken.LoadError = errors.New("denied")
	manager := NewManagerWithStores(
		NewMockStoreWithToken("file", "0123456789abcdef"),
		NewMockStore("env"),
		broken,
	)

	statuses := manager.Status()
	if len(statuses) != 3 {
		t.Fatalf("Expected 3 statuses, got %d", len(statuses))
	}
	if !statuses[0].Present || statuses[0].Masked != "0123...cdef" {
		t.Errorf("Unexpected file status: %+v", statuses[0])
	}
	if statuses[1].Present || statuses[1].Err != nil {
		t.Errorf("Expected empty env status, got %+v", statuses[1])
	}
	if statuses[2].Err == nil {
		t.Error("Expected load error to be reported")
	}
}

func TestMaskToken(t *testing.T) {
	tests := map[string]string{
		"":                 "********",
		"short":            "********",
		"12345678":         "********",
		"123456789":        "1234...6789",
		"abcdefghijklmnop": "abcd...mnop",
	}
	for in, want := range tests {
		if got := MaskToken(in); got != want {
			t.Errorf("MaskToken(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "civitai_api_key.txt")
	store := NewFileStore(path)

	if _, err := store.Load(); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("Expected ErrTokenNotFound for missing file, got %v", err)
	}

	if err := os.WriteFile(path, []byte("  \n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load(); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("Expected ErrTokenNotFound for blank file, got %v", err)
	}

	if err := os.WriteFile(path, []byte("my-key\n"), 0600); err != nil {
		t.Fatal(err)
	}
	token, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if token != "my-key" {
		t.Errorf("Expected trimmed key, got %q", token)
	}

	if err := store.Save("x"); !errors.Is(err, ErrStoreReadOnly) {
		t.Errorf("Expected ErrStoreReadOnly, got %v", err)
	}
	if err := store.Delete(); !errors.Is(err, ErrStoreReadOnly) {
		t.Errorf("Expected ErrStoreReadOnly, got %v", err)
	}
}

func TestEnvironmentStore(t *testing.T) {
	store := NewEnvironmentStore()

	t.Setenv(EnvToken, "")
	if _, err := store.Load(); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("Expected ErrTokenNotFound, got %v", err)
	}

	t.Setenv(EnvToken, " env_token ")
	token, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if token != "env_token" {
		t.Errorf("Expected env_token, got %q", token)
	}

	if err := store.Save("x"); err != ErrStoreReadOnly {
		t.Error("Expected ErrStoreReadOnly for environment store")
	}
}

func TestEncryptedFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.enc")

	store, err := NewEncryptedFileStoreWithPassphrase(path, "test_passphrase_123")
	if err != nil {
		t.Fatalf("Failed to create encrypted store: %v", err)
	}

	if _, err := store.Load(); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("Expected ErrTokenNotFound before save, got %v", err)
	}

	if err := store.Save("encrypted_token_value"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	token, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if token != "encrypted_token_value" {
		t.Errorf("Token mismatch after decryption: %q", token)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(content, []byte("encrypted_token_value")) {
		t.Error("File contains plaintext token")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected 0600 permissions, got %v", info.Mode().Perm())
	}

	if err := store.Delete(); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("Expected ErrTokenNotFound after delete, got %v", err)
	}
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.enc")

	writer, err := NewEncryptedFileStoreWithPassphrase(path, "right")
	if err != nil {
		t.Fatal(err)
	}
	if err := writer.Save("tok"); err != nil {
		t.Fatal(err)
	}

	reader, err := NewEncryptedFileStoreWithPassphrase(path, "wrong")
	if err != nil {
		t.Fatal(err)
	}
	_, err = reader.Load()
	if err == nil || !strings.Contains(err.Error(), "decrypt") {
		t.Errorf("Expected decrypt error, got %v", err)
	}
}

func TestEncryptedFileStoreGeneratesPassphrase(t *testing.T) {
	configHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configHome)
	t.Setenv("HOME", configHome)
	t.Setenv(EnvPassphrase, "")

	path := filepath.Join(t.TempDir(), "token.enc")
	first, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if err := first.Save("persisted"); err != nil {
		t.Fatal(err)
	}

	second, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	token, err := second.Load()
	if err != nil {
		t.Fatalf("Expected the generated passphrase to be reused: %v", err)
	}
	if token != "persisted" {
		t.Errorf("Expected persisted, got %q", token)
	}
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore()
	if err != nil {
		t.Fatalf("Mock keyring should be available: %v", err)
	}

	if _, err := store.Load(); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("Expected ErrTokenNotFound, got %v", err)
	}
	if err := store.Save("keyring-token"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	token, err := store.Load()
	if err != nil || token != "keyring-token" {
		t.Errorf("Expected keyring-token, got %q (%v)", token, err)
	}
	if err := store.Delete(); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("Expected ErrTokenNotFound, got %v", err)
	}
}

func TestNewManagerChain(t *testing.T) {
	keyring.MockInit()
	configHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configHome)
	t.Setenv("HOME", configHome)
	t.Setenv(EnvPassphrase, "chain-pass")
	t.Setenv(EnvToken, "")

	tokenFile := filepath.Join(t.TempDir(), "civitai_api_key.txt")
	manager, err := NewManager(tokenFile)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	names := make([]string, 0, len(manager.Stores()))
	for _, s := range manager.Stores() {
		names = append(names, s.Name())
	}
	if len(names) != 4 || names[0] != "file:"+tokenFile || names[1] != "env:"+EnvToken || names[2] != "keyring" {
		t.Fatalf("Unexpected store chain: %v", names)
	}

	where, err := manager.Save("from-login")
	if err != nil {
		t.Fatal(err)
	}
	if where != "keyring" {
		t.Errorf("Expected login to land in keyring, got %q", where)
	}

	if err := os.WriteFile(tokenFile, []byte("from-file"), 0600); err != nil {
		t.Fatal(err)
	}
	token, source, err := manager.Resolve()
	if err != nil {
		t.Fatal(err)
	}
	if token != "from-file" || source != "file:"+tokenFile {
		t.Errorf("Token file must win: got %q from %q", token, source)
	}

	_ = manager.Delete()
}

func TestWriteTokenGuide(t *testing.T) {
	var buf bytes.Buffer
	WriteTokenGuide(&buf, "civitai_api_key.txt")
	out := buf.String()
	if !strings.Contains(out, "civitai_api_key.txt") || !strings.Contains(out, EnvToken) {
		t.Errorf("Guide should name the token file and env var:\n%s", out)
	}
}
