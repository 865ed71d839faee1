package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestTargetPath(t *testing.T) {
	dir := filepath.Join("out", "alice")

	tests := []struct {
		name string
		id   string
		url  string
		want string
	}{
		{"query stripped", "42", "https://image.civitai.com/abc/42.jpeg?x=1", filepath.Join(dir, "42.jpeg")},
		{"png kept", "7", "https://image.civitai.com/abc/7.png", filepath.Join(dir, "7.png")},
		{"no extension", "8", "https://image.civitai.com/abc/width=450/8", filepath.Join(dir, "8.png")},
		{"long extension", "9", "https://image.civitai.com/abc/9.abcdef", filepath.Join(dir, "9.png")},
		{"five chars", "10", "https://image.civitai.com/abc/10.webp", filepath.Join(dir, "10.webp")},
		{"trailing dot", "11", "https://image.civitai.com/abc/11.", filepath.Join(dir, "11.png")},
		{"fragment", "12", "https://image.civitai.com/abc/12.gif#top", filepath.Join(dir, "12.gif")},
		{"separator in id", "a/b", "https://image.civitai.com/x.jpg", filepath.Join(dir, "a_b.jpg")},
		{"dot dot id", "..", "https://image.civitai.com/x.jpg", filepath.Join(dir, "__.jpg")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TargetPath(dir, tt.id, tt.url)
			if got != tt.want {
				t.Errorf("TargetPath(%q, %q) = %q, want %q", tt.id, tt.url, got, tt.want)
			}
			if again := TargetPath(dir, tt.id, tt.url); again != got {
				t.Errorf("TargetPath is not deterministic: %q then %q", got, again)
			}
		})
	}
}

func TestManagerCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "alice")

	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("Expected output directory to exist: %v", err)
	}
	if manager.OutputDir() != dir {
		t.Errorf("Expected output dir %s, got %s", dir, manager.OutputDir())
	}
}

func TestPartialFileCommit(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	target := manager.Target("42", "https://image.civitai.com/42.jpeg")
	if manager.Exists(target) {
		t.Fatal("Target should not exist yet")
	}

	part, err := manager.Create(target)
	if err != nil {
		t.Fatalf("Failed to create partial file: %v", err)
	}

	if _, err := part.Write([]byte("hello ")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if _, err := part.Write([]byte("world")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if manager.Exists(target) {
		t.Error("Target must not be visible before commit")
	}
	if part.Written() != 11 {
		t.Errorf("Expected 11 bytes written, got %d", part.Written())
	}

	if err := part.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("Failed to read committed file: %v", err)
	}
	if string(data) != "hello world" {
		t.Errorf("Unexpected content %q", data)
	}
	if manager.CommittedCount() != 1 {
		t.Errorf("Expected 1 committed file, got %d", manager.CommittedCount())
	}

	assertNoPartials(t, manager.OutputDir())

	// Abort after commit is a no-op
	part.Abort()
	if !manager.Exists(target) {
		t.Error("Abort after commit must not remove the target")
	}
}

func TestPartialFileCommitDoesNotOverwrite(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	target := manager.Target("1", "https://x/1.png")
	part, err := manager.Create(target)
	if err != nil {
		t.Fatalf("Failed to create partial file: %v", err)
	}
	_, _ = part.Write([]byte("new"))

	if err := os.WriteFile(target, []byte("existing"), 0644); err != nil {
		t.Fatalf("Failed to write existing file: %v", err)
	}

	if err := part.Commit(); !errors.Is(err, ErrExists) {
		t.Fatalf("Expected ErrExists, got %v", err)
	}

	data, _ := os.ReadFile(target)
	if string(data) != "existing" {
		t.Errorf("Existing file was overwritten: %q", data)
	}
	assertNoPartials(t, manager.OutputDir())
}

func TestPartialFileAbort(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	target := manager.Target("5", "https://x/5.jpg")
	part, err := manager.Create(target)
	if err != nil {
		t.Fatalf("Failed to create partial file: %v", err)
	}
	_, _ = part.Write([]byte("half a"))
	part.Abort()

	if manager.Exists(target) {
		t.Error("Aborted download must not create the target")
	}
	assertNoPartials(t, manager.OutputDir())

	if err := part.Commit(); err == nil {
		t.Error("Commit after abort should fail")
	}
}

func TestCleanupPartials(t *testing.T) {
	dir := t.TempDir()
	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	for _, name := range []string{".civitdl-1.png.123.part", ".civitdl-2.jpeg.456.part", "3.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatalf("Failed to seed %s: %v", name, err)
		}
	}

	removed, err := manager.CleanupPartials()
	if err != nil {
		t.Fatalf("CleanupPartials failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("Expected 2 partial files removed, got %d", removed)
	}
	if !manager.Exists(filepath.Join(dir, "3.png")) {
		t.Error("Completed file must be kept")
	}
}

func TestCleanupPartialsKeepsPartExtensionImages(t *testing.T) {
	dir := t.TempDir()
	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	target := manager.Target("42", "https://image.civitai.test/42.part")
	if filepath.Base(target) != "42.part" {
		t.Fatalf("Expected target 42.part, got %s", filepath.Base(target))
	}

	part, err := manager.Create(target)
	if err != nil {
		t.Fatalf("Failed to create partial file: %v", err)
	}
	_, _ = part.Write([]byte("image"))
	if err := part.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	// a leftover from an interrupted download of another image
	leftover, err := manager.Create(filepath.Join(dir, "43.part"))
	if err != nil {
		t.Fatalf("Failed to create partial file: %v", err)
	}
	_, _ = leftover.Write([]byte("half"))
	leftover.file.Close()

	removed, err := manager.CleanupPartials()
	if err != nil {
		t.Fatalf("CleanupPartials failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 partial file removed, got %d", removed)
	}
	if !manager.Exists(target) {
		t.Error("Finished image with a .part extension must be kept")
	}
	if manager.Exists(filepath.Join(dir, "43.part")) {
		t.Error("Leftover partial must not become a target")
	}
}

func assertNoPartials(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to read dir: %v", err)
	}
	for _, e := range entries {
		if isPartial(e.Name()) {
			t.Errorf("Unexpected partial file left behind: %s", e.Name())
		}
	}
}
