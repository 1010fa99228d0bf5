// Package remote talks to the model-hosting service: resolving URLs to
// model/version ids, fetching metadata, and streaming model and image
// bytes to disk. It is stateless apart from the bearer token and is safe
// to share across every worker.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"modelsync/internal/models"
)

const (
	apiBase            = "https://civitai.com/api/v1"
	imageFetchTimeout  = 15 * time.Second
	progressStepBytes  = 1 << 20 // emit a progress callback at least every MiB
)

var modelUrlPattern = regexp.MustCompile(`/models/(\d+)`)

// Client is the shared HTTP entry point for every remote operation.
type Client struct {
	httpClient *http.Client
	apiKey     string
}

// NewClient builds a client with a connection-pooling transport. When
// transport is nil http.DefaultTransport is used; callers that want request
// logging pass a *LoggingTransport here.
func NewClient(apiKey string, transport http.RoundTripper) *Client {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Client{
		httpClient: &http.Client{Transport: transport},
		apiKey:     apiKey,
	}
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// ParseUrl extracts the numeric model id (and optional version id) from a
// model page URL of the form ".../models/<id>(/...)?modelVersionId=<vid>".
func ParseUrl(rawUrl string) (modelId int, versionId int, err error) {
	u, perr := url.Parse(rawUrl)
	if perr != nil {
		return 0, 0, newErr(KindInvalidUrl, "could not parse url", perr)
	}
	m := modelUrlPattern.FindStringSubmatch(u.Path)
	if m == nil {
		return 0, 0, newErr(KindInvalidUrl, fmt.Sprintf("no model id in url %q", rawUrl), nil)
	}
	modelId, _ = strconv.Atoi(m[1])
	if modelId == 0 {
		return 0, 0, newErr(KindInvalidUrl, fmt.Sprintf("invalid model id in url %q", rawUrl), nil)
	}
	if v := u.Query().Get("modelVersionId"); v != "" {
		versionId, _ = strconv.Atoi(v)
	}
	return modelId, versionId, nil
}

// FetchModelInfo resolves a model (and, if versionId is zero, its latest
// version) and projects it into a models.ModelInfo with images ranked by
// reaction score and truncated to maxImages.
func (c *Client) FetchModelInfo(ctx context.Context, modelId, versionId, maxImages int) (*models.ModelInfo, error) {
	if maxImages <= 0 {
		maxImages = 9
	}

	m, err := c.getModel(ctx, modelId)
	if err != nil {
		return nil, err
	}
	if len(m.ModelVersions) == 0 {
		return nil, newErr(KindNotFound, fmt.Sprintf("model %d has no versions", modelId), nil)
	}

	version := selectVersion(m.ModelVersions, versionId)
	file := selectPrimaryFile(version.Files)
	if file == nil {
		return nil, newErr(KindNotFound, fmt.Sprintf("model %d version %d has no downloadable file", modelId, version.ID), nil)
	}

	images := rankImages(version.Images)
	if len(images) > maxImages {
		images = images[:maxImages]
	}

	info := &models.ModelInfo{
		ID:          m.ID,
		VersionId:   version.ID,
		Name:        m.Name,
		Type:        m.Type,
		BaseModel:   version.BaseModel,
		Creator:     m.Creator.Username,
		VersionName: version.Name,
		Description: m.Description,
		Tags:        uniqueStrings(m.Tags),
		DownloadUrl: file.DownloadUrl,
		Size:        int64(file.SizeKB * 1024),
		Images:      images,
		LastUpdated: time.Now(),
	}
	return info, nil
}

func (c *Client) getModel(ctx context.Context, modelId int) (*models.Model, error) {
	var m models.Model
	if err := c.getJson(ctx, fmt.Sprintf("%s/models/%d", apiBase, modelId), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) getJson(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return newErr(KindInternal, "failed to build request", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return mapTransportErr(err)
	}
	defer resp.Body.Close()

	if err := mapStatusErr(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return newErr(KindInternal, "failed to decode response", err)
	}
	return nil
}

func mapStatusErr(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return newErr(KindUnauthorized, "authorization rejected", nil)
	case resp.StatusCode == http.StatusNotFound:
		return newErr(KindNotFound, "resource not found", nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return newErr(KindRateLimited, "rate limited", nil)
	case resp.StatusCode >= 500:
		return newErr(KindNetwork, fmt.Sprintf("server error %d", resp.StatusCode), nil)
	case resp.StatusCode >= 400:
		return newErr(KindInternal, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	default:
		return nil
	}
}

func mapTransportErr(err error) error {
	return newErr(KindNetwork, "request failed", err)
}

func selectVersion(versions []models.ModelVersion, versionId int) models.ModelVersion {
	if versionId != 0 {
		for _, v := range versions {
			if v.ID == versionId {
				return v
			}
		}
	}
	// Latest: the remote service returns versions newest-first.
	return versions[0]
}

// selectPrimaryFile prefers the file the service marks Primary, then a
// safetensors-format file over other serializations, else the first file.
func selectPrimaryFile(files []models.File) *models.File {
	if len(files) == 0 {
		return nil
	}
	for i := range files {
		if files[i].Primary {
			return &files[i]
		}
	}
	for i := range files {
		if files[i].Metadata.Format == "SafeTensor" {
			return &files[i]
		}
	}
	return &files[0]
}

// rankImages sorts by (likeCount+heartCount+laughCount) descending, ties
// broken by original server order (sort.SliceStable).
func rankImages(images []models.ModelImage) []models.ModelImageDescriptor {
	out := make([]models.ModelImageDescriptor, len(images))
	for i, img := range images {
		out[i] = models.ModelImageDescriptor{
			URL:        img.URL,
			Nsfw:       img.Nsfw,
			Meta:       img.Meta,
			LikeCount:  img.Stats.LikeCount,
			HeartCount: img.Stats.HeartCount,
			LaughCount: img.Stats.LaughCount,
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return score(out[i]) > score(out[j])
	})
	return out
}

func score(d models.ModelImageDescriptor) int {
	return d.LikeCount + d.HeartCount + d.LaughCount
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// ProgressFunc is called with bytes downloaded so far and the total (-1 if
// the response has no Content-Length). Numeric fields follow the same monotonic contract as the task
// progress fields it usually feeds.
type ProgressFunc func(bytesSoFar, totalBytes int64)

// DownloadFile streams url to destPath, reporting progress at least once
// per progressStepBytes written and honoring cancellation between chunks.
// It writes to a temporary sibling file and renames on success so a reader
// never observes a partially-written final path.
func (c *Client) DownloadFile(ctx context.Context, url, destPath string, onProgress ProgressFunc) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", newErr(KindInternal, "failed to build request", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", newErr(KindCancelled, "download cancelled", ctx.Err())
		}
		return "", mapTransportErr(err)
	}
	defer resp.Body.Close()
	if err := mapStatusErr(resp); err != nil {
		return "", err
	}
	log.WithField("url", url).WithField("dest", destPath).Debug("streaming model file")

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", newErr(KindDiskFull, "failed to create destination directory", err)
	}

	tmpPath := destPath + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return "", newErr(KindDiskFull, "failed to create temp file", err)
	}

	total := resp.ContentLength
	cw := &counterWriter{w: out, onStep: func(written int64) {
		if onProgress != nil {
			onProgress(written, total)
		}
	}, stepBytes: progressStepBytes}

	_, copyErr := copyWithCancellation(ctx, cw, resp.Body)
	closeErr := out.Close()

	if copyErr != nil {
		os.Remove(tmpPath)
		if ctx.Err() != nil {
			return "", newErr(KindCancelled, "download cancelled", copyErr)
		}
		return "", newErr(KindNetwork, "download failed", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return "", newErr(KindDiskFull, "failed to finalize file", closeErr)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return "", newErr(KindDiskFull, "failed to commit downloaded file", err)
	}

	if onProgress != nil {
		onProgress(cw.written, cw.written)
	}
	return destPath, nil
}

// DownloadImage performs a single bounded-timeout GET, writing the full body
// to destPath. Used for preview images, which are small relative to model
// files and do not need chunked progress.
func (c *Client) DownloadImage(ctx context.Context, url, destPath string) error {
	ctx, cancel := context.WithTimeout(ctx, imageFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return newErr(KindInternal, "failed to build request", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return newErr(KindCancelled, "image download cancelled", ctx.Err())
		}
		return mapTransportErr(err)
	}
	defer resp.Body.Close()
	if err := mapStatusErr(resp); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return newErr(KindDiskFull, "failed to create images directory", err)
	}
	out, err := os.Create(destPath)
	if err != nil {
		return newErr(KindDiskFull, "failed to create image file", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return newErr(KindNetwork, "image download failed", err)
	}
	return nil
}

// copyWithCancellation is io.Copy with a context check between chunks, so a
// multi-gigabyte model download reacts to cancellation promptly instead of
// only at connection boundaries.
func copyWithCancellation(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var total int64
	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}
		n, rErr := src.Read(buf)
		if n > 0 {
			wn, wErr := dst.Write(buf[:n])
			total += int64(wn)
			if wErr != nil {
				return total, wErr
			}
		}
		if rErr == io.EOF {
			return total, nil
		}
		if rErr != nil {
			return total, rErr
		}
	}
}

// counterWriter wraps an io.Writer, invoking onStep at least once per
// stepBytes written and unconditionally on Close via the caller's final
// onProgress call.
type counterWriter struct {
	w         io.Writer
	written   int64
	lastStep  int64
	stepBytes int64
	onStep    func(written int64)
}

func (c *counterWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.written += int64(n)
	if c.written-c.lastStep >= c.stepBytes {
		c.lastStep = c.written
		if c.onStep != nil {
			c.onStep(c.written)
		}
	}
	return n, err
}
