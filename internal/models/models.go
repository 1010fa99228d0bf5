// Package models holds the value types shared across the download
// orchestration engine: the remote service's wire format, the public
// ModelInfo/DownloadTask domain objects, and the frozen configuration map
// the core consumes.
package models

import "time"

type (
	// Config is the read-only configuration the core consumes. It is
	// populated once at startup (see internal/config) and never mutated by
	// the core packages.
	Config struct {
		SavePath       string `toml:"SavePath"`
		ApiKey         string `toml:"ApiKey"`
		DatabasePath   string `toml:"DatabasePath"`
		BleveIndexPath string `toml:"BleveIndexPath"`
		LogApiRequests bool   `toml:"LogApiRequests"`
		ApiLogPath     string `toml:"ApiLogPath"`

		TopImageCount  int  `toml:"TopImageCount"`
		FetchBatchSize int  `toml:"FetchBatchSize"`
		DownloadModel  bool `toml:"DownloadModel"`
		DownloadImages bool `toml:"DownloadImages"`
		DownloadNsfw   bool `toml:"DownloadNsfw"`
		DownloadThreads int `toml:"DownloadThreads"`
		CreateHtml     bool `toml:"CreateHtml"`
		AutoOpenHtml   bool `toml:"AutoOpenHtml"`
	}

	// Model is the /api/v1/models/{id} response shape, trimmed to the
	// fields fetchModelInfo actually projects into ModelInfo.
	Model struct {
		ID            int            `json:"id"`
		Name          string         `json:"name"`
		Description   string         `json:"description"`
		Type          string         `json:"type"`
		Creator       Creator        `json:"creator"`
		Tags          []string       `json:"tags"`
		ModelVersions []ModelVersion `json:"modelVersions"`
	}

	Creator struct {
		Username string `json:"username"`
		Image    string `json:"image"`
	}

	// ModelVersion is the /api/v1/model-versions/{id} response shape.
	ModelVersion struct {
		ID          int          `json:"id"`
		ModelId     int          `json:"modelId"`
		Name        string       `json:"name"`
		BaseModel   string       `json:"baseModel"`
		PublishedAt string       `json:"publishedAt"`
		Description string       `json:"description"`
		Files       []File       `json:"files"`
		Images      []ModelImage `json:"images"`
		Model       BaseModelRef `json:"model"`
	}

	// BaseModelRef is the nested model stub returned alongside a version.
	BaseModelRef struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}

	File struct {
		Name        string   `json:"name"`
		ID          int      `json:"id"`
		SizeKB      float64  `json:"sizeKB"`
		Type        string   `json:"type"`
		Metadata    FileMeta `json:"metadata"`
		Hashes      Hashes   `json:"hashes"`
		DownloadUrl string   `json:"downloadUrl"`
		Primary     bool     `json:"primary"`
	}

	FileMeta struct {
		Fp     string `json:"fp"`
		Size   string `json:"size"`
		Format string `json:"format"`
	}

	// Hashes travels with the wire format but is never consulted by the
	// downloader: content-hash verification is out of scope.
	Hashes struct {
		SHA256 string `json:"SHA256"`
		CRC32  string `json:"CRC32"`
	}

	ModelImage struct {
		ID    int          `json:"id"`
		URL   string       `json:"url"`
		Nsfw  bool         `json:"nsfw"`
		Stats ImageStats   `json:"stats"`
		Meta  ImageMeta    `json:"meta"`
	}

	ImageStats struct {
		LikeCount  int `json:"likeCount"`
		HeartCount int `json:"heartCount"`
		LaughCount int `json:"laughCount"`
	}

	// ImageMeta is deliberately permissive: the remote service emits
	// whatever generation parameters the uploader's client recorded.
	ImageMeta struct {
		Prompt    string         `json:"prompt"`
		Model     string         `json:"Model"`
		Resources []ImageResource `json:"resources"`
	}

	ImageResource struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}

	// ModelImageDescriptor is the post-projection, ranked image entry
	// carried on ModelInfo.
	ModelImageDescriptor struct {
		URL       string
		Nsfw      bool
		Meta      ImageMeta
		LikeCount int
		HeartCount int
		LaughCount int
		LocalPath string `json:"localPath,omitempty"`
	}

	// ModelInfo is the value object populated from remote metadata and
	// enriched by the worker pipeline with local paths and timestamps.
	ModelInfo struct {
		ID          int                    `json:"id"`
		VersionId   int                    `json:"versionId"`
		Name        string                 `json:"name"`
		Type        string                 `json:"type"`
		BaseModel   string                 `json:"baseModel"`
		Creator     string                 `json:"creator"`
		VersionName string                 `json:"versionName"`
		Description string                 `json:"description"`
		Tags        []string               `json:"tags"`
		DownloadUrl string                 `json:"downloadUrl"`
		Size        int64                  `json:"size,omitempty"`
		Images      []ModelImageDescriptor `json:"images"`
		Thumbnail   string                 `json:"thumbnail,omitempty"`

		DownloadDate time.Time `json:"downloadDate"`
		LastUpdated  time.Time `json:"lastUpdated"`
		Path         string    `json:"path"`
	}

	// Status is a DownloadTask's lifecycle state.
	Status string
)

const (
	StatusQueued      Status = "QUEUED"
	StatusDownloading Status = "DOWNLOADING"
	StatusCompleted   Status = "COMPLETED"
	StatusFailed      Status = "FAILED"
	StatusCanceled    Status = "CANCELED"
)

// Terminal reports whether a status is one of the absorbing terminal states.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// DownloadTask is the per-URL job record tracked by the queue.
type DownloadTask struct {
	Url           string
	Priority      int
	Status        Status
	ModelProgress int
	ImageProgress int
	StartTime     *time.Time
	EndTime       *time.Time
	ErrorMessage  string
	ModelInfo     *ModelInfo
}

// LedgerEntry is the durable projection of a terminal DownloadTask, keyed by
// URL in the job ledger (C9). It never feeds back into scheduling: it is a
// write-once audit trail consulted only by the history CLI command.
type LedgerEntry struct {
	Url         string    `json:"url"`
	ModelID     int       `json:"modelId"`
	VersionID   int       `json:"versionId"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	BaseModel   string    `json:"baseModel"`
	Status      Status    `json:"status"`
	Path        string    `json:"path"`
	Error       string    `json:"error,omitempty"`
	CompletedAt time.Time `json:"completedAt"`
}

// Category maps a model type to its storage subdirectory, per the fixed
// mapping the remote service's type enum is routed through. Unknown types
// fall back to "Other" at the call site.
var Category = map[string]string{
	"Checkpoint":       "checkpoints",
	"LORA":             "loras",
	"LoCon":            "loras",
	"TextualInversion": "embeddings",
	"VAE":              "vae",
	"Controlnet":       "controlnet",
	"Upscaler":         "upscale_models",
	"Other":            "other",
}

// AggregateCategory folds subtype directories back into the user-facing
// aggregate buckets used by usage reporting: LORA/LoCon -> LoRAs,
// TextualInversion -> Embeddings.
func AggregateCategory(dir string) string {
	switch dir {
	case "loras":
		return "LoRAs"
	case "embeddings":
		return "Embeddings"
	default:
		return dir
	}
}
