// Package worker implements the per-job download pipeline (C7): parse URL,
// fetch metadata, resolve the target folder, stream the model file,
// fan out preview images, persist metadata.json, and emit the HTML gallery.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"modelsync/internal/bandwidth"
	"modelsync/internal/gallery"
	"modelsync/internal/models"
	"modelsync/internal/remote"
	"modelsync/internal/storage"
)

// ProgressFunc mirrors the spec's per-worker progress callback signature:
// any numeric field may be -1, meaning "unchanged".
type ProgressFunc func(message string, modelProgress, imageProgress int, status models.Status, bytesDelta int64)

// Worker runs a single job's pipeline to completion, failure, or
// cancellation.
type Worker struct {
	Client    *remote.Client
	Layout    *storage.Layout
	Bandwidth *bandwidth.Monitor
	Config    models.Config
}

// New builds a Worker from its collaborators.
func New(client *remote.Client, layout *storage.Layout, bw *bandwidth.Monitor, cfg models.Config) *Worker {
	return &Worker{Client: client, Layout: layout, Bandwidth: bw, Config: cfg}
}

// outcome is the terminal result of Run.
type outcome struct {
	status  models.Status
	message string
	info    *models.ModelInfo
}

// Run executes the full pipeline for url. ctx cancellation is checked
// between chunks of the streaming download, before each image dispatch, and
// after each image completion, per the cancellation contract in §5.
func (w *Worker) Run(ctx context.Context, url string, onProgress ProgressFunc) (status models.Status, message string, info *models.ModelInfo) {
	out := w.run(ctx, url, onProgress)
	return out.status, out.message, out.info
}

func (w *Worker) run(ctx context.Context, url string, onProgress ProgressFunc) outcome {
	notify := func(msg string, modelProgress, imageProgress int, status models.Status) {
		if onProgress != nil {
			onProgress(msg, modelProgress, imageProgress, status, -1)
		}
	}

	// Step 1: parse.
	modelId, versionId, err := remote.ParseUrl(url)
	if err != nil {
		return fail(err)
	}

	// Step 2: fetch metadata.
	notify("fetching metadata", -1, -1, models.StatusDownloading)
	info, err := w.Client.FetchModelInfo(ctx, modelId, versionId, w.topImageCount())
	if err != nil {
		return fail(err)
	}

	// Step 3: resolve folder.
	dir, err := w.Layout.ResolveFolder(info)
	if err != nil {
		log.WithError(err).WithField("kind", remote.KindOf(err)).WithField("url", url).Warn("failed to resolve storage folder")
		return outcome{status: models.StatusFailed, message: err.Error()}
	}
	info.Path = dir
	info.DownloadDate = timeNow()

	// Step 4: download model file.
	if w.Config.DownloadModel && info.DownloadUrl != "" {
		if cancelled(ctx) {
			return outcome{status: models.StatusCanceled}
		}
		destName := filepath.Base(info.DownloadUrl)
		if destName == "" || destName == "." || destName == "/" {
			destName = storage.Sanitize(info.Name) + ".safetensors"
		}
		dest := filepath.Join(dir, destName)

		var lastReported int64
		_, derr := w.Client.DownloadFile(ctx, info.DownloadUrl, dest, func(bytesSoFar, total int64) {
			delta := bytesSoFar - lastReported
			lastReported = bytesSoFar
			if w.Bandwidth != nil && delta > 0 {
				w.Bandwidth.AddDataPoint(delta)
			}
			pct := 0
			if total > 0 {
				pct = int(float64(bytesSoFar) / float64(total) * 100)
			}
			if onProgress != nil {
				onProgress("downloading model", pct, -1, models.StatusDownloading, delta)
			}
		})
		if derr != nil {
			if remote.KindOf(derr) == remote.KindCancelled {
				return outcome{status: models.StatusCanceled}
			}
			return fail(derr)
		}
		info.Size = fileSize(dest)
		notify("model file downloaded", 100, -1, models.StatusDownloading)
	} else {
		notify("model download skipped", 100, -1, models.StatusDownloading)
	}

	// Step 5: filter NSFW images.
	images := info.Images
	if !w.Config.DownloadNsfw {
		filtered := images[:0:0]
		dropped := 0
		for _, img := range images {
			if img.Nsfw {
				dropped++
				continue
			}
			filtered = append(filtered, img)
		}
		if dropped > 0 {
			log.WithField("dropped", dropped).WithField("url", url).Info("filtered nsfw images")
		}
		images = filtered
	}

	// Step 6: download images in parallel.
	if w.Config.DownloadImages && len(images) > 0 {
		images = w.downloadImages(ctx, dir, images, notify)
	} else {
		notify("image download skipped", -1, 100, models.StatusDownloading)
	}
	info.Images = images
	for _, img := range info.Images {
		if img.LocalPath != "" {
			info.Thumbnail = img.LocalPath
			break
		}
	}
	if cancelled(ctx) {
		return outcome{status: models.StatusCanceled}
	}

	// Step 7: persist metadata.json — the commit point.
	info.LastUpdated = timeNow()
	if err := persistMetadata(info); err != nil {
		return outcome{status: models.StatusFailed, message: err.Error()}
	}

	// Step 8: emit gallery (best-effort).
	if w.Config.CreateHtml {
		if err := gallery.Emit(info); err != nil {
			log.WithError(err).WithField("url", url).Warn("gallery emission failed")
		}
	}

	// Step 9: complete.
	return outcome{
		status:  models.StatusCompleted,
		message: fmt.Sprintf("Successfully downloaded %s", info.Name),
		info:    info,
	}
}

func (w *Worker) topImageCount() int {
	if w.Config.TopImageCount > 0 {
		return w.Config.TopImageCount
	}
	return 9
}

// downloadImages runs a bounded fan-out of config.DownloadThreads workers
// over images, skipping any whose destination file already exists. It never
// fails the job: individual failures are logged and leave that image's
// LocalPath empty, but still advance the image progress count.
func (w *Worker) downloadImages(ctx context.Context, dir string, images []models.ModelImageDescriptor, notify func(string, int, int, models.Status)) []models.ModelImageDescriptor {
	threads := w.Config.DownloadThreads
	if threads <= 0 {
		threads = 4
	}
	imagesDir := filepath.Join(dir, "images")
	total := len(images)

	var done int64
	var mu sync.Mutex
	jobs := make(chan int, threads*2)
	var wg sync.WaitGroup

	for i := 0; i < threads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if cancelled(ctx) {
					continue
				}
				img := &images[idx]
				basename := filepath.Base(img.URL)
				dest := filepath.Join(imagesDir, basename)

				if _, err := os.Stat(dest); err == nil {
					mu.Lock()
					img.LocalPath = dest
					mu.Unlock()
				} else if err := w.Client.DownloadImage(ctx, img.URL, dest); err != nil {
					log.WithError(err).WithField("url", img.URL).Warn("image download failed")
				} else {
					mu.Lock()
					img.LocalPath = dest
					mu.Unlock()
				}

				d := atomic.AddInt64(&done, 1)
				pct := int(float64(d) / float64(total) * 100)
				notify("downloading images", -1, pct, models.StatusDownloading)
			}
		}()
	}
	for i := range images {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return images
}

func persistMetadata(info *models.ModelInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata for %s: %w", info.Name, err)
	}
	if err := os.WriteFile(filepath.Join(info.Path, "metadata.json"), data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata.json for %s: %w", info.Name, err)
	}
	return nil
}

func fail(err error) outcome {
	return outcome{status: models.StatusFailed, message: err.Error()}
}

func timeNow() time.Time { return time.Now() }

func fileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

func cancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
