// Package manager implements the Download Manager (C8): admission control,
// worker lifecycle, cancellation fan-out, and bandwidth aggregation. It
// imposes no concurrency limit of its own — the host orchestrator decides
// how many jobs to start in parallel; this package only guarantees a given
// URL is never in flight twice at once.
package manager

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"modelsync/internal/bandwidth"
	"modelsync/internal/ledger"
	"modelsync/internal/models"
	"modelsync/internal/queue"
	"modelsync/internal/worker"
)

// DoneFunc is called once a job reaches a terminal state.
type DoneFunc func(status models.Status, message string)

// Manager coordinates the queue, the per-job worker, and the shared
// bandwidth monitor.
type Manager struct {
	queue     *queue.Queue
	worker    *worker.Worker
	bandwidth *bandwidth.Monitor
	ledger    *ledger.Ledger // optional; nil disables ledger recording

	mu          sync.RWMutex
	active      map[string]context.CancelFunc
	activeCount int64
}

// New builds a Manager. led may be nil if ledger recording is disabled.
func New(q *queue.Queue, w *worker.Worker, bw *bandwidth.Monitor, led *ledger.Ledger) *Manager {
	return &Manager{
		queue:     q,
		worker:    w,
		bandwidth: bw,
		ledger:    led,
		active:    make(map[string]context.CancelFunc),
	}
}

// StartDownload spawns a worker for url unless it is already in flight,
// returning whether admission succeeded. The worker's per-chunk progress is
// forwarded to the queue's task (so ModelProgress/ImageProgress reflect the
// live run) before being forwarded to onProgress; onDone fires once, after
// the job reaches a terminal state and the queue has been updated.
func (m *Manager) StartDownload(url string, onProgress worker.ProgressFunc, onDone DoneFunc) bool {
	m.mu.Lock()
	if _, inFlight := m.active[url]; inFlight {
		m.mu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.active[url] = cancel
	m.mu.Unlock()
	atomic.AddInt64(&m.activeCount, 1)

	go func() {
		defer func() {
			m.mu.Lock()
			delete(m.active, url)
			m.mu.Unlock()
			atomic.AddInt64(&m.activeCount, -1)
		}()

		wrapped := worker.ProgressFunc(func(message string, modelProgress, imageProgress int, status models.Status, bytesDelta int64) {
			m.queue.Update(url, func(t *models.DownloadTask) {
				t.Status = status
				if modelProgress >= 0 {
					t.ModelProgress = modelProgress
				}
				if imageProgress >= 0 {
					t.ImageProgress = imageProgress
				}
			})
			if onProgress != nil {
				onProgress(message, modelProgress, imageProgress, status, bytesDelta)
			}
		})

		status, message, info := m.worker.Run(ctx, url, wrapped)
		m.queue.Complete(url, status, message, info)
		m.recordLedger(url, status, message, info)

		if onDone != nil {
			onDone(status, message)
		}
	}()
	return true
}

func (m *Manager) recordLedger(url string, status models.Status, message string, info *models.ModelInfo) {
	if m.ledger == nil {
		return
	}
	entry := models.LedgerEntry{
		Url:         url,
		Status:      status,
		Error:       message,
		CompletedAt: time.Now(),
	}
	if info != nil {
		entry.ModelID = info.ID
		entry.VersionID = info.VersionId
		entry.Name = info.Name
		entry.Type = info.Type
		entry.BaseModel = info.BaseModel
		entry.Path = info.Path
	}
	if err := m.ledger.Record(entry); err != nil {
		log.WithError(err).WithField("url", url).Warn("failed to record ledger entry")
	}
}

// CancelDownload signals an in-flight worker to stop, or cancels a still-
// pending queue entry. Returns whether either transition occurred.
func (m *Manager) CancelDownload(url string) bool {
	m.mu.RLock()
	cancel, inFlight := m.active[url]
	m.mu.RUnlock()
	if inFlight {
		cancel()
		return true
	}
	return m.queue.Cancel(url)
}

// CancelAll signals every in-flight worker and clears the pending queue.
func (m *Manager) CancelAll() {
	m.mu.RLock()
	cancels := make([]context.CancelFunc, 0, len(m.active))
	for _, c := range m.active {
		cancels = append(cancels, c)
	}
	m.mu.RUnlock()

	for _, c := range cancels {
		c()
	}
	m.queue.Clear()
}

// ActiveCount returns the number of in-flight downloads.
func (m *Manager) ActiveCount() int {
	return int(atomic.LoadInt64(&m.activeCount))
}

// BandwidthStats returns the current in-window throughput samples.
func (m *Manager) BandwidthStats() []bandwidth.Sample {
	return m.bandwidth.GetBandwidthHistory()
}
