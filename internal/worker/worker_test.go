package worker

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"modelsync/internal/bandwidth"
	"modelsync/internal/models"
	"modelsync/internal/remote"
	"modelsync/internal/storage"
)

func newFakeImageHost(t *testing.T, n int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for i := 1; i <= n; i++ {
		mux.HandleFunc(fmt.Sprintf("/images/%d.png", i), func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("fake-image-bytes"))
		})
	}
	return httptest.NewServer(mux)
}

func TestNsfwFilterThenDownloadScenario(t *testing.T) {
	host := newFakeImageHost(t, 9)
	defer host.Close()

	nsfwFlags := []bool{false, true, false, true, false, true, false, false, false}
	var images []models.ModelImageDescriptor
	for i, nsfw := range nsfwFlags {
		images = append(images, models.ModelImageDescriptor{
			URL:       fmt.Sprintf("%s/images/%d.png", host.URL, i+1),
			Nsfw:      nsfw,
			LikeCount: 9 - i,
		})
	}

	root := t.TempDir()
	layout := storage.NewLayout(root)
	w := New(remote.NewClient("", nil), layout, bandwidth.NewMonitor(60), models.Config{
		DownloadThreads: 2,
	})

	info := &models.ModelInfo{ID: 1, Name: "Scenario Model", Type: "LORA", BaseModel: "SDXL", Images: images}
	dir, err := layout.ResolveFolder(info)
	require.NoError(t, err)

	filtered := dropNsfw(images)
	require.Len(t, filtered, 6, "expected 3 of 9 nsfw images dropped before download")

	result := w.downloadImages(context.Background(), dir, filtered, func(string, int, int, models.Status) {})
	require.Len(t, result, 6)
	for _, img := range result {
		require.False(t, img.Nsfw)
		require.NotEmpty(t, img.LocalPath)
		require.FileExists(t, img.LocalPath)
	}
}

func dropNsfw(images []models.ModelImageDescriptor) []models.ModelImageDescriptor {
	out := images[:0:0]
	for _, img := range images {
		if !img.Nsfw {
			out = append(out, img)
		}
	}
	return out
}

func TestDownloadImagesSkipsExistingFiles(t *testing.T) {
	root := t.TempDir()
	imagesDir := filepath.Join(root, "images")
	require.NoError(t, os.MkdirAll(imagesDir, 0o755))
	existing := filepath.Join(imagesDir, "already-here.png")
	require.NoError(t, os.WriteFile(existing, []byte("cached"), 0o644))

	w := New(remote.NewClient("", nil), storage.NewLayout(root), bandwidth.NewMonitor(60), models.Config{DownloadThreads: 2})
	images := []models.ModelImageDescriptor{{URL: "http://example.invalid/already-here.png"}}

	var calls int
	result := w.downloadImages(context.Background(), root, images, func(string, int, int, models.Status) { calls++ })
	require.Len(t, result, 1)
	require.Equal(t, existing, result[0].LocalPath)
	require.Equal(t, 1, calls)
}

func TestPersistMetadataRoundTrip(t *testing.T) {
	root := t.TempDir()
	info := &models.ModelInfo{ID: 7, Name: "Roundtrip", Type: "Checkpoint", BaseModel: "SD1.5", Path: root}
	require.NoError(t, persistMetadata(info))

	scanned, err := storage.NewLayout(root).Scan()
	require.NoError(t, err)
	require.Len(t, scanned, 1)
	require.Equal(t, 7, scanned[0].ID)
}
