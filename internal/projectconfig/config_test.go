package projectconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew_Defaults(t *testing.T) {
	cfg := New()
	if cfg.Server.Port != DefaultServerPort {
		t.Fatalf("port = %d", cfg.Server.Port)
	}
	if cfg.Session.Dir != DefaultSessionDir {
		t.Fatalf("session dir = %q", cfg.Session.Dir)
	}
	if cfg.Stats.ConfidenceLevel != DefaultConfidenceLevel {
		t.Fatalf("confidence = %v", cfg.Stats.ConfidenceLevel)
	}
	if *cfg.Session.Resume != true {
		t.Fatal("resume should default on")
	}
}

func TestLoad_NoFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != DefaultServerPort {
		t.Fatalf("port = %d", cfg.Server.Port)
	}
}

func TestLoad_MergesFileOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	raw := "server:\n  port: 9999\n  no_browser: true\nsession:\n  dir: /tmp/kensa-snaps\n"
	if err := os.WriteFile(filepath.Join(dir, ".kensa.yaml"), []byte(raw), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Fatalf("port = %d", cfg.Server.Port)
	}
	if !*cfg.Server.NoBrowser {
		t.Fatal("no_browser not applied")
	}
	if cfg.Session.Dir != "/tmp/kensa-snaps" {
		t.Fatalf("session dir = %q", cfg.Session.Dir)
	}
	// Untouched sections keep their defaults.
	if cfg.Stats.ConfidenceLevel != DefaultConfidenceLevel {
		t.Fatalf("confidence = %v", cfg.Stats.ConfidenceLevel)
	}
}

func TestLoad_WalksUpDirectories(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, ".kensa.yaml"), []byte("server:\n  port: 4242\n"), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(nested)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 4242 {
		t.Fatalf("port = %d", cfg.Server.Port)
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".kensa.yaml"), []byte("server: [oops"), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("malformed yaml accepted")
	}
}

func TestSnapshotDir_Disabled(t *testing.T) {
	cfg := New()
	off := false
	cfg.Session.Enabled = &off
	if cfg.SnapshotDir() != "" {
		t.Fatalf("dir = %q, want empty when disabled", cfg.SnapshotDir())
	}
}
