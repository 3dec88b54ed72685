package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vovakirdan/roomlink/internal/log"
)

func TestLoadWritesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	logger := log.New("error")

	cfg, gotPath, err := Load(logger, path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if gotPath != path {
		t.Fatalf("path = %q, want %q", gotPath, path)
	}
	if cfg.Addr != Default().Addr {
		t.Fatalf("addr = %q, want default", cfg.Addr)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	logger := log.New("error")
	t.Setenv("ROOMLINK_ADDR", "127.0.0.1:9999")

	cfg, _, err := Load(logger, path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9999" {
		t.Fatalf("addr = %q, env override lost", cfg.Addr)
	}
}
