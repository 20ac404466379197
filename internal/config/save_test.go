package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.json")

	cfg := DefaultConfig()
	cfg.Service.Model = "custom-model"
	cfg.Pipeline.Languages = []string{"Italian"}

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Service.Model != "custom-model" {
		t.Errorf("Model = %q, want %q", loaded.Service.Model, "custom-model")
	}
	if len(loaded.Pipeline.Languages) != 1 || loaded.Pipeline.Languages[0] != "Italian" {
		t.Errorf("Languages = %v, want [Italian]", loaded.Pipeline.Languages)
	}
}

func TestSaveCreatesParentDirectories(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a", "b", "config.json")

	if err := Save(DefaultConfig(), path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("saved file missing: %v", err)
	}
}
