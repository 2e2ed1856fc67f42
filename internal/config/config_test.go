package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	// Create temporary config file
	content := `
server:
  port: 9090
  host: "127.0.0.1"

database:
  host: "testdb"
  port: 5432
  user: "testuser"
  password: "testpass"
  dbname: "testdb"

downloader:
  artifactRoot: "/var/lib/mediafetch"
  maxConcurrent: 8
  downloadTimeout: 45m

history:
  mode: queue
`

	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpfile.Name())

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	// Load config
	cfg, err := Load(tmpfile.Name())
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify loaded values
	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Expected host 127.0.0.1, got %s", cfg.Server.Host)
	}

	if cfg.Database.Host != "testdb" {
		t.Errorf("Expected database host testdb, got %s", cfg.Database.Host)
	}

	if cfg.Downloader.ArtifactRoot != "/var/lib/mediafetch" {
		t.Errorf("Expected artifact root /var/lib/mediafetch, got %s", cfg.Downloader.ArtifactRoot)
	}

	if cfg.Downloader.MaxConcurrent != 8 {
		t.Errorf("Expected maxConcurrent 8, got %d", cfg.Downloader.MaxConcurrent)
	}

	if cfg.Downloader.DownloadTimeout != 45*time.Minute {
		t.Errorf("Expected download timeout 45m, got %s", cfg.Downloader.DownloadTimeout)
	}

	if cfg.History.Mode != HistoryModeQueue {
		t.Errorf("Expected history mode queue, got %s", cfg.History.Mode)
	}
}

func TestLoadNonExistentFileUsesDefaults(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	if err != nil {
		t.Fatalf("Expected defaults when file is missing, got %v", err)
	}

	if cfg.Server.Port != 5000 {
		t.Errorf("Expected default port 5000, got %d", cfg.Server.Port)
	}
	if cfg.Downloader.MaxConcurrent != 4 {
		t.Errorf("Expected default maxConcurrent 4, got %d", cfg.Downloader.MaxConcurrent)
	}
	if cfg.Downloader.MetadataTimeout != time.Minute {
		t.Errorf("Expected metadata timeout 1m, got %s", cfg.Downloader.MetadataTimeout)
	}
	if cfg.History.Mode != HistoryModeDirect {
		t.Errorf("Expected history mode direct, got %s", cfg.History.Mode)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/history")
	t.Setenv("DOWNLOADER_MAXCONCURRENT", "2")

	cfg, err := Load("nonexistent.yaml")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Database.URL != "postgres://u:p@db:5432/history" {
		t.Errorf("Expected DATABASE_URL to be picked up, got %q", cfg.Database.URL)
	}
	if cfg.Downloader.MaxConcurrent != 2 {
		t.Errorf("Expected maxConcurrent 2, got %d", cfg.Downloader.MaxConcurrent)
	}
}

func TestLoadRejectsUnknownHistoryMode(t *testing.T) {
	t.Setenv("HISTORY_MODE", "carrier-pigeon")

	if _, err := Load("nonexistent.yaml"); err == nil {
		t.Error("Expected error for unknown history mode")
	}
}
