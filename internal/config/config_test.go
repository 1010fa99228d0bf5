package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load returned error for missing file: %v", err)
	}
	if cfg.DownloadThreads != 4 {
		t.Fatalf("expected default DownloadThreads 4, got %d", cfg.DownloadThreads)
	}
	if !cfg.DownloadModel || !cfg.CreateHtml {
		t.Fatal("expected default DownloadModel and CreateHtml to be true")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "SavePath = \"/data/models\"\nDownloadThreads = 8\nDownloadNsfw = true\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.SavePath != "/data/models" {
		t.Fatalf("expected SavePath override, got %q", cfg.SavePath)
	}
	if cfg.DownloadThreads != 8 {
		t.Fatalf("expected DownloadThreads override 8, got %d", cfg.DownloadThreads)
	}
	if !cfg.DownloadNsfw {
		t.Fatal("expected DownloadNsfw override true")
	}
	if cfg.TopImageCount != 9 {
		t.Fatalf("expected untouched default TopImageCount 9, got %d", cfg.TopImageCount)
	}
}
