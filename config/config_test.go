package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ParsesKnownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weftend.yaml")
	content := "library_root: ./Library\nprofile: web\nenabled_plugins:\n  - tar\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LibraryRoot != "./Library" {
		t.Errorf("libraryRoot = %q, want ./Library", cfg.LibraryRoot)
	}
	if cfg.Profile != "web" {
		t.Errorf("profile = %q, want web", cfg.Profile)
	}
	if len(cfg.EnabledPlugins) != 1 || cfg.EnabledPlugins[0] != "tar" {
		t.Errorf("enabledPlugins = %v, want [tar]", cfg.EnabledPlugins)
	}
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weftend.yaml")
	if err := os.WriteFile(path, []byte("libraryRoot: ./oops\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for unknown field, got nil")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/weftend.yaml"); err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

func TestExpandEnv_SubstitutesWithDefault(t *testing.T) {
	os.Unsetenv("WEFTEND_TEST_VAR")
	got := ExpandEnv("root: ${WEFTEND_TEST_VAR:-./Library}")
	if got != "root: ./Library" {
		t.Errorf("ExpandEnv = %q, want root: ./Library", got)
	}
}

func TestExpandEnv_SubstitutesFromEnv(t *testing.T) {
	t.Setenv("WEFTEND_TEST_VAR", "/srv/library")
	got := ExpandEnv("root: ${WEFTEND_TEST_VAR}")
	if got != "root: /srv/library" {
		t.Errorf("ExpandEnv = %q, want root: /srv/library", got)
	}
}
