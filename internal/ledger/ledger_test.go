package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"modelsync/internal/models"
)

func TestRecordGetRoundTrip(t *testing.T) {
	l, err := Open(filepath.Join(t.TempDir(), "ledger"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer l.Close()

	entry := models.LedgerEntry{
		Url:         "https://civitai.com/models/1",
		ModelID:     1,
		VersionID:   2,
		Name:        "Test Model",
		Type:        "LORA",
		BaseModel:   "SDXL",
		Status:      models.StatusCompleted,
		Path:        "/data/loras/SDXL/Test_Model",
		CompletedAt: time.Now().Truncate(time.Second),
	}

	if err := l.Record(entry); err != nil {
		t.Fatalf("record: %v", err)
	}

	got, err := l.Get(entry.Url)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ModelID != entry.ModelID || got.Name != entry.Name || got.Status != entry.Status {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, entry)
	}
}

func TestGetMissingReturnsErrNotFound(t *testing.T) {
	l, err := Open(filepath.Join(t.TempDir(), "ledger"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer l.Close()

	if _, err := l.Get("https://nope"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAllIteratesAllEntries(t *testing.T) {
	l, err := Open(filepath.Join(t.TempDir(), "ledger"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer l.Close()

	for i, url := range []string{"a", "b", "c"} {
		l.Record(models.LedgerEntry{Url: url, ModelID: i})
	}

	seen := make(map[string]bool)
	if err := l.All(func(e models.LedgerEntry) { seen[e.Url] = true }); err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(seen) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(seen))
	}
}
