// Package gallery renders a single self-contained model_card.html per model.
package gallery

import (
	"html/template"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"modelsync/internal/models"
)

const remoteHost = "civitai.com"

type tile struct {
	IsVideo    bool
	Src        string
	Prompt     string
	Checkpoint string
	Loras      string
	Reactions  string
}

type viewModel struct {
	Name        string
	RemoteUrl   string
	Type        string
	BaseModel   string
	Creator     string
	VersionName string
	Description string
	Tags        []string
	Tiles       []tile
}

// Emit renders model_card.html into info.Path. Failures are the caller's to
// log: a failed gallery emission never fails the owning job.
func Emit(info *models.ModelInfo) error {
	vm := buildViewModel(info)

	var buf strings.Builder
	if err := galleryTemplate.Execute(&buf, vm); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(info.Path, "model_card.html"), []byte(buf.String()), 0o644)
}

func buildViewModel(info *models.ModelInfo) viewModel {
	vm := viewModel{
		Name:        info.Name,
		RemoteUrl:   "https://" + remoteHost + "/models/" + strconv.Itoa(info.ID),
		Type:        info.Type,
		BaseModel:   info.BaseModel,
		Creator:     info.Creator,
		VersionName: info.VersionName,
		Description: info.Description,
		Tags:        info.Tags,
	}
	for _, img := range info.Images {
		if img.LocalPath == "" {
			continue
		}
		base := filepath.Base(img.LocalPath)
		var loraNames []string
		for _, r := range img.Meta.Resources {
			if strings.EqualFold(r.Type, "lora") {
				loraNames = append(loraNames, r.Name)
			}
		}
		vm.Tiles = append(vm.Tiles, tile{
			IsVideo:    strings.HasSuffix(strings.ToLower(base), ".mp4"),
			Src:        "images/" + base,
			Prompt:     img.Meta.Prompt,
			Checkpoint: img.Meta.Model,
			Loras:      strings.Join(loraNames, ", "),
			Reactions:  strconv.Itoa(img.LikeCount) + " likes, " + strconv.Itoa(img.HeartCount) + " hearts, " + strconv.Itoa(img.LaughCount) + " laughs",
		})
	}
	return vm
}

var galleryTemplate = template.Must(template.New("model_card").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Name}}</title>
<link href="https://cdn.jsdelivr.net/npm/bootstrap@5.3.2/dist/css/bootstrap.min.css" rel="stylesheet">
<link href="https://fonts.googleapis.com/css2?family=Inter:wght@400;600&display=swap" rel="stylesheet">
<style>
body{font-family:'Inter',sans-serif;padding:2rem;}
.tile{cursor:pointer;border-radius:.5rem;overflow:hidden;margin-bottom:1rem;}
.tile img, .tile video{width:100%;height:220px;object-fit:cover;}
.tag-pill{cursor:pointer;}
</style>
</head>
<body>
<header class="mb-4">
<h1>{{.Name}} <a href="{{.RemoteUrl}}" target="_blank" class="fs-6">view on site</a></h1>
<p>{{.Type}} &middot; {{.BaseModel}} &middot; by {{.Creator}} &middot; version {{.VersionName}}</p>
<p>{{.Description}}</p>
<div>
{{range .Tags}}<span class="badge bg-secondary tag-pill me-1" onclick="navigator.clipboard.writeText('{{.}}')">{{.}}</span>{{end}}
</div>
</header>
<div class="row">
{{range .Tiles}}
<div class="col-md-3 tile" data-prompt="{{.Prompt}}" data-checkpoint="{{.Checkpoint}}" data-loras="{{.Loras}}" data-reactions="{{.Reactions}}" onclick="showModal(this)">
{{if .IsVideo}}<video controls preload="metadata" src="{{.Src}}"></video>{{else}}<img src="{{.Src}}" loading="lazy">{{end}}
</div>
{{end}}
</div>
<div class="modal fade" id="mediaModal" tabindex="-1">
<div class="modal-dialog modal-xl">
<div class="modal-content">
<div class="modal-body row">
<div class="col-md-8" id="modalMedia"></div>
<div class="col-md-4">
<p><strong>Prompt:</strong> <span id="modalPrompt"></span></p>
<p><strong>Checkpoint:</strong> <span id="modalCheckpoint"></span></p>
<p><strong>LoRAs:</strong> <span id="modalLoras"></span></p>
<p><strong>Reactions:</strong> <span id="modalReactions"></span></p>
</div>
</div>
</div>
</div>
</div>
<script src="https://cdn.jsdelivr.net/npm/bootstrap@5.3.2/dist/js/bootstrap.bundle.min.js"></script>
<script>
function showModal(el) {
  document.getElementById('modalMedia').innerHTML = el.innerHTML;
  document.getElementById('modalPrompt').textContent = el.dataset.prompt;
  document.getElementById('modalCheckpoint').textContent = el.dataset.checkpoint;
  document.getElementById('modalLoras').textContent = el.dataset.loras;
  document.getElementById('modalReactions').textContent = el.dataset.reactions;
  new bootstrap.Modal(document.getElementById('mediaModal')).show();
}
</script>
</body>
</html>
`))
