package cmd

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/gosuri/uilive"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"modelsync/internal/models"
	"modelsync/internal/worker"
)

var runConcurrency int

var runCmd = &cobra.Command{
	Use:   "run [url]...",
	Short: "Enqueue any given urls, then drain the queue up to the configured concurrency",
	Run:   runRun,
}

func init() {
	runCmd.Flags().IntVarP(&runConcurrency, "concurrency", "c", 0, "max concurrent downloads (overrides config)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) {
	if len(args) > 0 {
		added := current.queue.AddMany(args)
		log.Infof("enqueued %d of %d url(s)", added, len(args))
	}

	concurrency := runConcurrency
	if concurrency <= 0 {
		concurrency = current.cfg.DownloadThreads
	}
	if concurrency <= 0 {
		concurrency = 3
	}

	writer := uilive.New()
	writer.Start()
	defer writer.Stop()

	var mu sync.Mutex
	lines := make(map[string]string)
	render := func() {
		mu.Lock()
		defer mu.Unlock()
		for url, line := range lines {
			fmt.Fprintf(writer.Newline(), "%-60s %s\n", url, line)
		}
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)
	started := 0

	for {
		task := current.queue.NextUrl()
		if task == nil {
			break
		}
		started++
		sem <- struct{}{}
		wg.Add(1)

		url := task.Url
		mu.Lock()
		lines[url] = "queued"
		mu.Unlock()

		onProgress := worker.ProgressFunc(func(message string, modelProgress, imageProgress int, status models.Status, bytesDelta int64) {
			mu.Lock()
			lines[url] = fmt.Sprintf("%s (model %d%%, images %d%%)", message, pctOrZero(modelProgress), pctOrZero(imageProgress))
			mu.Unlock()
			render()
		})

		onDone := func(status models.Status, message string) {
			mu.Lock()
			lines[url] = fmt.Sprintf("%s: %s", status, message)
			mu.Unlock()
			render()
			if status == models.StatusCompleted {
				if task, ok := current.queue.Get(url); ok && task.ModelInfo != nil {
					if current.index != nil {
						if err := current.index.IndexModel(task.ModelInfo); err != nil {
							log.WithError(err).WithField("url", url).Warn("failed to index completed model")
						}
					}
					if current.cfg.CreateHtml && current.cfg.AutoOpenHtml {
						openInBrowser(filepath.Join(task.ModelInfo.Path, "model_card.html"))
					}
				}
			}
			<-sem
			wg.Done()
		}

		if !current.manager.StartDownload(url, onProgress, onDone) {
			log.Warnf("%s already in flight, skipping", url)
			<-sem
			wg.Done()
		}
	}

	if started == 0 {
		log.Info("queue is empty, nothing to run")
		return
	}
	wg.Wait()
	time.Sleep(50 * time.Millisecond) // let the final uilive frame flush
	log.Infof("run finished: %d job(s) processed", started)
}

func pctOrZero(p int) int {
	if p < 0 {
		return 0
	}
	return p
}

// openInBrowser launches the OS's default handler for path, best-effort.
func openInBrowser(path string) {
	var name string
	var args []string
	switch runtime.GOOS {
	case "darwin":
		name, args = "open", []string{path}
	case "windows":
		name, args = "rundll32", []string{"url.dll,FileProtocolHandler", path}
	default:
		name, args = "xdg-open", []string{path}
	}
	if err := exec.Command(name, args...).Start(); err != nil {
		log.WithError(err).WithField("path", path).Warn("failed to open gallery in browser")
	}
}
