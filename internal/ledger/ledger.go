// Package ledger is the durable, crash-survivable record of every job's
// terminal outcome, keyed by URL. It is write-once per job and is never
// consulted by the scheduler: the spec's no-retry, no-resume non-goals mean
// nothing here feeds back into queue or worker decisions.
package ledger

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"git.mills.io/prologic/bitcask"
	log "github.com/sirupsen/logrus"

	"modelsync/internal/models"
)

// ErrNotFound is returned when a URL has no recorded ledger entry.
var ErrNotFound = errors.New("ledger: entry not found")

var gzipMagic = []byte{0x1f, 0x8b}

// Ledger wraps a bitcask store, gzip-compressing values the same way the
// teacher's download-state database does.
type Ledger struct {
	db *bitcask.Bitcask
	mu sync.RWMutex
}

// Open opens (creating if necessary) a ledger at path.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "/" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory %s: %w", dir, err)
		}
	}
	db, err := bitcask.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger at %s: %w", path, err)
	}
	log.WithField("path", path).Info("job ledger opened")
	return &Ledger{db: db}, nil
}

// Close closes the underlying store.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.db.Close()
}

// Record stores entry keyed by its URL, overwriting any prior record for
// that URL (a re-enqueued job that completes again simply replaces it).
func (l *Ledger) Record(entry models.LedgerEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal ledger entry for %s: %w", entry.Url, err)
	}
	compressed, err := compress(data)
	if err != nil {
		return fmt.Errorf("failed to compress ledger entry for %s: %w", entry.Url, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.db.Put([]byte(entry.Url), compressed); err != nil {
		return fmt.Errorf("failed to store ledger entry for %s: %w", entry.Url, err)
	}
	return nil
}

// Get retrieves the ledger entry for url, or ErrNotFound.
func (l *Ledger) Get(url string) (models.LedgerEntry, error) {
	l.mu.RLock()
	raw, err := l.db.Get([]byte(url))
	l.mu.RUnlock()
	if err != nil {
		if errors.Is(err, bitcask.ErrKeyNotFound) {
			return models.LedgerEntry{}, ErrNotFound
		}
		return models.LedgerEntry{}, fmt.Errorf("failed to read ledger entry for %s: %w", url, err)
	}

	data, err := decompress(raw)
	if err != nil {
		return models.LedgerEntry{}, err
	}
	var entry models.LedgerEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return models.LedgerEntry{}, fmt.Errorf("failed to decode ledger entry for %s: %w", url, err)
	}
	return entry, nil
}

// All iterates every recorded entry, calling fn for each. Decode failures
// are logged and skipped rather than aborting the whole iteration.
func (l *Ledger) All(fn func(models.LedgerEntry)) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.db.Fold(func(key []byte) error {
		raw, err := l.db.Get(key)
		if err != nil {
			log.WithError(err).WithField("key", string(key)).Warn("ledger: failed to read entry during fold")
			return nil
		}
		data, err := decompress(raw)
		if err != nil {
			log.WithError(err).WithField("key", string(key)).Warn("ledger: failed to decompress entry during fold")
			return nil
		}
		var entry models.LedgerEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			log.WithError(err).WithField("key", string(key)).Warn("ledger: failed to decode entry during fold")
			return nil
		}
		fn(entry)
		return nil
	})
}

func compress(value []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(value); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(value []byte) ([]byte, error) {
	if !bytes.HasPrefix(value, gzipMagic) {
		return value, nil
	}
	r, err := gzip.NewReader(bytes.NewReader(value))
	if err != nil {
		return value, nil
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return value, nil
	}
	return out, nil
}
