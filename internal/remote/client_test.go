package remote

import (
	"testing"

	"modelsync/internal/models"
)

func TestParseUrl(t *testing.T) {
	cases := []struct {
		name      string
		url       string
		wantModel int
		wantVer   int
		wantErr   bool
	}{
		{"plain", "https://civitai.com/models/1234", 1234, 0, false},
		{"with-name", "https://civitai.com/models/1234/some-cool-lora", 1234, 0, false},
		{"with-version", "https://civitai.com/models/1234?modelVersionId=5678", 1234, 5678, false},
		{"no-id", "https://civitai.com/images/5", 0, 0, true},
		{"garbage", "not a url at all \x7f", 0, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, ver, err := ParseUrl(tc.url)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got none")
				}
				if KindOf(err) != KindInvalidUrl {
					t.Fatalf("expected KindInvalidUrl, got %v", KindOf(err))
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if id != tc.wantModel || ver != tc.wantVer {
				t.Fatalf("got (%d,%d), want (%d,%d)", id, ver, tc.wantModel, tc.wantVer)
			}
		})
	}
}

func TestSelectVersion(t *testing.T) {
	versions := []models.ModelVersion{
		{ID: 300, Name: "v3 (latest)"},
		{ID: 200, Name: "v2"},
		{ID: 100, Name: "v1"},
	}

	t.Run("zero id picks newest-first head", func(t *testing.T) {
		got := selectVersion(versions, 0)
		if got.ID != 300 {
			t.Fatalf("expected latest version 300, got %d", got.ID)
		}
	})

	t.Run("explicit id picks that version regardless of order", func(t *testing.T) {
		got := selectVersion(versions, 100)
		if got.ID != 100 {
			t.Fatalf("expected version 100, got %d", got.ID)
		}
	})

	t.Run("unknown id falls back to newest-first head", func(t *testing.T) {
		got := selectVersion(versions, 999)
		if got.ID != 300 {
			t.Fatalf("expected fallback to latest version 300, got %d", got.ID)
		}
	})
}

func TestSelectPrimaryFile(t *testing.T) {
	cases := []struct {
		name     string
		files    []models.File
		wantName string
		wantNil  bool
	}{
		{"no files", nil, "", true},
		{
			"primary flag wins regardless of format",
			[]models.File{
				{Name: "extra.bin", Metadata: models.FileMeta{Format: "PickleTensor"}},
				{Name: "chosen.ckpt", Primary: true, Metadata: models.FileMeta{Format: "PickleTensor"}},
				{Name: "safetensor.safetensors", Metadata: models.FileMeta{Format: "SafeTensor"}},
			},
			"chosen.ckpt",
			false,
		},
		{
			"safetensor format preferred absent a primary flag",
			[]models.File{
				{Name: "extra.bin", Metadata: models.FileMeta{Format: "PickleTensor"}},
				{Name: "safetensor.safetensors", Metadata: models.FileMeta{Format: "SafeTensor"}},
			},
			"safetensor.safetensors",
			false,
		},
		{
			"first file as last resort",
			[]models.File{
				{Name: "a.bin", Metadata: models.FileMeta{Format: "PickleTensor"}},
				{Name: "b.bin", Metadata: models.FileMeta{Format: "PickleTensor"}},
			},
			"a.bin",
			false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := selectPrimaryFile(tc.files)
			if tc.wantNil {
				if got != nil {
					t.Fatalf("expected nil, got %+v", got)
				}
				return
			}
			if got == nil || got.Name != tc.wantName {
				t.Fatalf("expected file %q, got %+v", tc.wantName, got)
			}
		})
	}
}

func TestRankImagesStableTieBreak(t *testing.T) {
	images := []models.ModelImage{
		{URL: "low.jpg", Stats: models.ImageStats{LikeCount: 1}},
		{URL: "tie-a.jpg", Stats: models.ImageStats{LikeCount: 5}},
		{URL: "high.jpg", Stats: models.ImageStats{LikeCount: 2, HeartCount: 8}},
		{URL: "tie-b.jpg", Stats: models.ImageStats{LikeCount: 3, HeartCount: 2}},
	}

	ranked := rankImages(images)
	wantOrder := []string{"high.jpg", "tie-a.jpg", "tie-b.jpg", "low.jpg"}
	if len(ranked) != len(wantOrder) {
		t.Fatalf("expected %d images, got %d", len(wantOrder), len(ranked))
	}
	for i, url := range wantOrder {
		if ranked[i].URL != url {
			t.Fatalf("position %d: expected %s, got %s", i, url, ranked[i].URL)
		}
	}

	// tie-a and tie-b both score 5; original order (tie-a before tie-b)
	// must be preserved since rankImages sorts stably.
	if score(ranked[1]) != 5 || score(ranked[2]) != 5 {
		t.Fatalf("expected the tied pair to both score 5, got %d and %d", score(ranked[1]), score(ranked[2]))
	}
}

func TestScore(t *testing.T) {
	d := models.ModelImageDescriptor{LikeCount: 1, HeartCount: 2, LaughCount: 3}
	if got := score(d); got != 6 {
		t.Fatalf("expected score 6, got %d", got)
	}
}
