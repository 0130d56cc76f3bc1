package postcache

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

const fullTextDocType = "post"

// fullTextIndex is an in-memory bleve index over the posts of one snapshot.
// It is built alongside the snapshot and replaced with it, never updated in place.
type fullTextIndex struct {
	index bleve.Index
}

// fullTextDocument is the part of a post that is indexed.
type fullTextDocument struct {
	Title     string   `json:"title"`
	LinkTitle string   `json:"linkTitle"`
	Contents  string   `json:"contents"`
	Tags      []string `json:"tags"`
}

// BleveType tells bleve which document mapping to use.
func (fullTextDocument) BleveType() string {
	return fullTextDocType
}

func fullTextMapping() *mapping.IndexMappingImpl {
	indexMapping := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()

	docMapping.AddFieldMappingsAt("title", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("linkTitle", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("contents", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("tags", bleve.NewTextFieldMapping())

	indexMapping.AddDocumentMapping(fullTextDocType, docMapping)
	indexMapping.DefaultType = fullTextDocType

	return indexMapping
}

// newFullTextIndex indexes posts in a memory-only index. Readers may still hold the snapshot of a replaced
// index, so it is left to the garbage collector rather than closed.
func newFullTextIndex(posts []*Post) (*fullTextIndex, error) {
	index, err := bleve.NewMemOnly(fullTextMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create full-text index: %w", err)
	}

	batch := index.NewBatch()
	for _, post := range posts {
		doc := fullTextDocument{
			Title:     post.Title,
			LinkTitle: post.LinkTitle,
			Contents:  post.Contents,
			Tags:      post.Tags,
		}
		if err := batch.Index(post.ID, doc); err != nil {
			return nil, fmt.Errorf("error indexing post %s: %w", post.ID, err)
		}
	}

	if err := index.Batch(batch); err != nil {
		return nil, fmt.Errorf("error indexing posts: %w", err)
	}

	return &fullTextIndex{index: index}, nil
}

// search runs a bleve query string query and returns the matching post IDs, best first.
func (f *fullTextIndex) search(queryString string, maxResults int) ([]string, error) {
	query := bleve.NewQueryStringQuery(queryString)
	request := bleve.NewSearchRequestOptions(query, maxResults, 0, false)

	result, err := f.index.Search(request)
	if err != nil {
		return nil, fmt.Errorf("error searching for posts: %w", err)
	}

	ids := make([]string, 0, len(result.Hits))
	for _, hit := range result.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}
