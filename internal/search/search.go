// Package search wraps a Bleve full-text index over scanned models. It is a
// rebuildable, read-side convenience: the filesystem (metadata.json) is
// always the system of record, and the index can be thrown away and rebuilt
// from a fresh scan at any time.
package search

import (
	log "github.com/sirupsen/logrus"

	"github.com/blevesearch/bleve/v2"

	"modelsync/internal/models"
)

const defaultIndexPath = "modelsync.bleve"

// Document is the indexed projection of a ModelInfo.
type Document struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	BaseModel string   `json:"baseModel"`
	Creator   string   `json:"creator"`
	Tags      []string `json:"tags"`
	Path      string   `json:"path"`
}

// Index wraps a Bleve index.
type Index struct {
	bleve.Index
}

// OpenOrCreate opens an existing index at path or creates a new one.
func OpenOrCreate(path string) (*Index, error) {
	if path == "" {
		path = defaultIndexPath
	}
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		log.WithField("path", path).Info("creating new search index")
		idx, err = bleve.New(path, bleve.NewIndexMapping())
		if err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	} else {
		log.WithField("path", path).Info("opened existing search index")
	}
	return &Index{idx}, nil
}

// IndexModel adds or updates a model's document, keyed on its storage path
// (the same identity metadata.json uses).
func (i *Index) IndexModel(info *models.ModelInfo) error {
	doc := Document{
		ID:        info.Path,
		Name:      info.Name,
		Type:      info.Type,
		BaseModel: info.BaseModel,
		Creator:   info.Creator,
		Tags:      info.Tags,
		Path:      info.Path,
	}
	return i.Index.Index(doc.ID, doc)
}

// Search runs a Bleve query-string search and returns matching document IDs
// (== storage paths) in score order.
func (i *Index) Search(query string) ([]string, error) {
	req := bleve.NewSearchRequest(bleve.NewQueryStringQuery(query))
	req.Fields = []string{"*"}
	result, err := i.Index.Search(req)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(result.Hits))
	for _, hit := range result.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// Delete removes path's document from the index, e.g. after storage.Delete.
func (i *Index) Delete(path string) error {
	return i.Index.Delete(path)
}
