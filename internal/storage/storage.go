// Package storage implements the filesystem layout policy: routing a model
// to its category directory, scanning the tree, and the maintenance
// operations (duplicates, orphans, delete, export) that operate on it.
package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"

	"modelsync/internal/models"
	"modelsync/internal/remote"
)

const metadataFileName = "metadata.json"

var modelExtensions = map[string]bool{
	".safetensors": true,
	".ckpt":        true,
	".pt":          true,
	".bin":         true,
	".pth":         true,
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.\-]`)

// Sanitize replaces every character outside [A-Za-z0-9_.-] with an
// underscore. It is idempotent: Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(name string) string {
	return unsafeChars.ReplaceAllString(name, "_")
}

// Layout resolves directories under a fixed comfy_path root.
type Layout struct {
	Root string
}

// NewLayout builds a Layout rooted at root.
func NewLayout(root string) *Layout {
	return &Layout{Root: root}
}

// TypeDir maps a model type to its category subdirectory, falling back to
// "Other"'s mapping for unknown types.
func TypeDir(modelType string) string {
	if dir, ok := models.Category[modelType]; ok {
		return dir
	}
	return models.Category["Other"]
}

// ResolveFolder returns the directory a model occupies, creating it (and
// its parents) if necessary.
func (l *Layout) ResolveFolder(info *models.ModelInfo) (string, error) {
	if l.Root == "" {
		return "", remote.NewError(remote.KindLayoutError, "SavePath is not configured", nil)
	}
	dir := filepath.Join(l.Root, TypeDir(info.Type), info.BaseModel, Sanitize(info.Name))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", remote.NewError(remote.KindLayoutError, fmt.Sprintf("failed to create %s", dir), err)
	}
	return dir, nil
}

// Scan walks every category directory and yields one ModelInfo per
// metadata.json found, stamped with its containing directory as Path.
// Unreadable files are logged and skipped, not fatal.
func (l *Layout) Scan() ([]*models.ModelInfo, error) {
	var out []*models.ModelInfo
	err := filepath.WalkDir(l.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.WithError(err).WithField("path", path).Warn("scan: failed to access path")
			return nil
		}
		if d.IsDir() || d.Name() != metadataFileName {
			return nil
		}
		info, rerr := readMetadata(path)
		if rerr != nil {
			log.WithError(rerr).WithField("path", path).Warn("scan: failed to parse metadata.json")
			return nil
		}
		info.Path = filepath.Dir(path)
		out = append(out, info)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func readMetadata(path string) (*models.ModelInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var info models.ModelInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// FolderSize recursively sums file sizes under path.
func FolderSize(path string) (int64, error) {
	var total int64
	err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		fi, ierr := d.Info()
		if ierr != nil {
			return nil
		}
		total += fi.Size()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// Usage reports total and free bytes of the filesystem containing Root, plus
// a per-category byte count using the aggregated view from the category
// mapping.
func (l *Layout) Usage() (totalBytes, freeBytes int64, perCategory map[string]int64, err error) {
	var stat syscall.Statfs_t
	if serr := syscall.Statfs(l.Root, &stat); serr != nil {
		return 0, 0, nil, fmt.Errorf("failed to stat filesystem at %s: %w", l.Root, serr)
	}
	totalBytes = int64(stat.Blocks) * int64(stat.Bsize)
	freeBytes = int64(stat.Bavail) * int64(stat.Bsize)

	perCategory = make(map[string]int64)
	entries, rerr := os.ReadDir(l.Root)
	if rerr != nil {
		return totalBytes, freeBytes, perCategory, nil
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		size, serr := FolderSize(filepath.Join(l.Root, e.Name()))
		if serr != nil {
			log.WithError(serr).WithField("dir", e.Name()).Warn("usage: failed to size category directory")
			continue
		}
		perCategory[models.AggregateCategory(e.Name())] += size
	}
	return totalBytes, freeBytes, perCategory, nil
}

// Delete removes a directory or file tree.
func Delete(path string) error {
	return os.RemoveAll(path)
}

// FindPath tries the deterministic sanitized path first; if it has no
// metadata.json, falls back to scanning the category for a matching id.
func (l *Layout) FindPath(id int, modelType, baseModel, name string) (string, error) {
	deterministic := filepath.Join(l.Root, TypeDir(modelType), baseModel, Sanitize(name))
	if _, err := os.Stat(filepath.Join(deterministic, metadataFileName)); err == nil {
		return deterministic, nil
	}

	categoryRoot := filepath.Join(l.Root, TypeDir(modelType))
	var found string
	_ = filepath.WalkDir(categoryRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil || found != "" || d.IsDir() || d.Name() != metadataFileName {
			return nil
		}
		info, rerr := readMetadata(path)
		if rerr != nil {
			return nil
		}
		if info.ID == id {
			found = filepath.Dir(path)
		}
		return nil
	})
	if found == "" {
		return "", fmt.Errorf("no directory found for model %d (%s)", id, name)
	}
	return found, nil
}

// DuplicateGroup is a set of scanned models sharing (name, type, baseModel).
// Per the spec this groups by metadata identity, not database id: two
// versions of the same model collide by design.
type DuplicateGroup struct {
	Name      string
	Type      string
	BaseModel string
	Models    []*models.ModelInfo
}

// FindDuplicates groups scanned models by (name, type, baseModel) and
// returns only groups of size >= 2.
func (l *Layout) FindDuplicates() ([]DuplicateGroup, error) {
	scanned, err := l.Scan()
	if err != nil {
		return nil, err
	}
	index := make(map[string]*DuplicateGroup)
	var order []string
	for _, info := range scanned {
		key := info.Name + "\x00" + info.Type + "\x00" + info.BaseModel
		g, ok := index[key]
		if !ok {
			g = &DuplicateGroup{Name: info.Name, Type: info.Type, BaseModel: info.BaseModel}
			index[key] = g
			order = append(order, key)
		}
		g.Models = append(g.Models, info)
	}
	var out []DuplicateGroup
	for _, key := range order {
		if g := index[key]; len(g.Models) >= 2 {
			out = append(out, *g)
		}
	}
	return out, nil
}

// FindOrphans returns files under category directories with a known model
// extension whose containing directory has no metadata.json.
func (l *Layout) FindOrphans() ([]string, error) {
	var orphans []string
	err := filepath.WalkDir(l.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if !modelExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		sibling := filepath.Join(filepath.Dir(path), metadataFileName)
		if _, statErr := os.Stat(sibling); os.IsNotExist(statErr) {
			orphans = append(orphans, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return orphans, nil
}

// ExportResult is the per-path outcome of an Export call. Dest is the copied
// location inside the export bundle, distinct from Path (the original source
// location) — callers generating a .torrent file must point it at Dest so
// the bundle stays self-contained.
type ExportResult struct {
	Path    string
	Dest    string
	Success bool
	Error   string
}

// ExportSummary aggregates the per-path results of an Export call.
type ExportSummary struct {
	SuccessCount int
	FailedCount  int
	Details      []ExportResult
}

// Export copies each of paths (file or directory) into dest, preserving the
// leaf name.
func Export(paths []string, dest string) (*ExportSummary, error) {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export destination: %w", err)
	}
	summary := &ExportSummary{}
	for _, p := range paths {
		leaf := filepath.Base(p)
		target := filepath.Join(dest, leaf)
		err := copyTree(p, target)
		result := ExportResult{Path: p, Dest: target, Success: err == nil}
		if err != nil {
			result.Error = err.Error()
			summary.FailedCount++
			log.WithError(err).WithField("path", p).Warn("export: failed to copy path")
		} else {
			summary.SuccessCount++
		}
		summary.Details = append(summary.Details, result)
	}
	return summary, nil
}

func copyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return copyFile(src, dst, info.Mode())
	}
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, rerr := filepath.Rel(src, path)
		if rerr != nil {
			return rerr
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		fi, ferr := d.Info()
		if ferr != nil {
			return ferr
		}
		return copyFile(path, target, fi.Mode())
	})
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
