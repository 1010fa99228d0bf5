package manager

import (
	"testing"
	"time"

	"modelsync/internal/bandwidth"
	"modelsync/internal/models"
	"modelsync/internal/queue"
	"modelsync/internal/remote"
	"modelsync/internal/storage"
	"modelsync/internal/worker"
)

func TestStartDownloadRejectsDuplicateInFlight(t *testing.T) {
	q := queue.New()
	q.Add("https://civitai.com/models/999")
	q.NextUrl()

	w := worker.New(remote.NewClient("", nil), storage.NewLayout(t.TempDir()), bandwidth.NewMonitor(60), models.Config{})
	m := New(q, w, bandwidth.NewMonitor(60), nil)

	done := make(chan struct{})
	ok := m.StartDownload("https://civitai.com/models/999", nil, func(models.Status, string) { close(done) })
	if !ok {
		t.Fatal("expected first StartDownload to be admitted")
	}
	if m.StartDownload("https://civitai.com/models/999", nil, nil) {
		t.Fatal("expected duplicate in-flight StartDownload to be rejected")
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job to finish")
	}
	if m.ActiveCount() != 0 {
		t.Fatalf("expected active count 0 after completion, got %d", m.ActiveCount())
	}
}

func TestCancelAllClearsPendingQueue(t *testing.T) {
	q := queue.New()
	q.AddMany([]string{"a", "b"})

	w := worker.New(remote.NewClient("", nil), storage.NewLayout(t.TempDir()), bandwidth.NewMonitor(60), models.Config{})
	m := New(q, w, bandwidth.NewMonitor(60), nil)

	m.CancelAll()

	if len(q.Pending()) != 0 {
		t.Fatalf("expected queue cleared, got %v", q.Pending())
	}
	for _, u := range []string{"a", "b"} {
		snap, _ := q.Get(u)
		if snap.Status != models.StatusCanceled {
			t.Fatalf("expected %s CANCELED, got %v", u, snap.Status)
		}
	}
}
