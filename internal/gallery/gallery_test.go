package gallery

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"modelsync/internal/models"
)

func TestEmitWritesEscapedSelfContainedHtml(t *testing.T) {
	dir := t.TempDir()
	info := &models.ModelInfo{
		ID:   42,
		Name: `<script>alert(1)</script>`,
		Path: dir,
		Images: []models.ModelImageDescriptor{
			{LocalPath: filepath.Join(dir, "images", "1.png"), Meta: models.ImageMeta{Prompt: "a cat"}},
			{LocalPath: filepath.Join(dir, "images", "2.mp4"), Meta: models.ImageMeta{Prompt: "a dog"}},
		},
	}

	if err := Emit(info); err != nil {
		t.Fatalf("emit: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "model_card.html"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	html := string(data)

	if strings.Contains(html, "<script>alert(1)</script>") {
		t.Fatalf("expected model name to be escaped, got raw script tag in output")
	}
	if !strings.Contains(html, "images/1.png") || !strings.Contains(html, "images/2.mp4") {
		t.Fatalf("expected both tile sources present")
	}
	if !strings.Contains(html, "<video") {
		t.Fatalf("expected mp4 tile to render as video")
	}
	if !strings.Contains(html, "cdn.jsdelivr.net/npm/bootstrap") || !strings.Contains(html, "fonts.googleapis.com") {
		t.Fatalf("expected both CDN references present")
	}
}
