// Package search maintains a bleve full-text index over stored entries.
package search

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/pders01/skim/internal/storage"
)

// Result is one search hit, resolved back to storage identifiers.
type Result struct {
	EntryID storage.EntryID
	FeedID  storage.FeedID
	Title   string
	Link    string
	Score   float64
}

// Engine indexes entry titles and bodies and answers free-form
// queries. The store stays the source of truth; the index is rebuilt
// per feed whenever the feed changes.
type Engine struct {
	store *storage.Store
	idx   bleve.Index
}

// Open opens the index at indexPath, creating it if needed.
func Open(store *storage.Store, indexPath string) (*Engine, error) {
	if err := os.MkdirAll(filepath.Dir(indexPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	idx, err := bleve.Open(indexPath)
	if err != nil {
		idx, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("creating search index: %w", err)
		}
	}

	return &Engine{store: store, idx: idx}, nil
}

// OpenInMemory builds an index that lives only for the process, used
// in tests and when no index path is configured.
func OpenInMemory(store *storage.Store) (*Engine, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("creating in-memory search index: %w", err)
	}
	return &Engine{store: store, idx: idx}, nil
}

// Close closes the underlying index.
func (e *Engine) Close() error {
	return e.idx.Close()
}

func buildIndexMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = standard.Name

	dm := bleve.NewDocumentMapping()

	title := bleve.NewTextFieldMapping()
	title.Analyzer = standard.Name
	title.Store = true

	body := bleve.NewTextFieldMapping()
	body.Analyzer = standard.Name
	body.Store = false

	link := bleve.NewTextFieldMapping()
	link.Analyzer = standard.Name
	link.Store = true

	feedID := bleve.NewTextFieldMapping()
	feedID.Analyzer = standard.Name
	feedID.Store = true

	entryID := bleve.NewTextFieldMapping()
	entryID.Analyzer = standard.Name
	entryID.Store = true

	dm.AddFieldMappingsAt("title", title)
	dm.AddFieldMappingsAt("body", body)
	dm.AddFieldMappingsAt("link", link)
	dm.AddFieldMappingsAt("feed_id", feedID)
	dm.AddFieldMappingsAt("entry_id", entryID)

	im.DefaultMapping = dm
	return im
}

// IndexFeed (re)indexes every entry of one feed in a single batch.
func (e *Engine) IndexFeed(id storage.FeedID) error {
	entries, err := e.store.ListEntries(id, storage.ReadFilterAll)
	if err != nil {
		return fmt.Errorf("loading entries for feed %s: %w", id, err)
	}

	batch := e.idx.NewBatch()
	for _, entry := range entries {
		content, err := e.store.GetEntryContent(entry.ID)
		if err != nil {
			return fmt.Errorf("loading content for entry %s: %w", entry.ID, err)
		}
		err = batch.Index(docID(entry.ID), map[string]any{
			"feed_id":  id.String(),
			"entry_id": entry.ID.String(),
			"title":    entry.Title,
			"body":     content.Content + " " + content.Description,
			"link":     entry.Link,
		})
		if err != nil {
			return fmt.Errorf("indexing entry %s: %w", entry.ID, err)
		}
	}
	return e.idx.Batch(batch)
}

// RemoveFeed drops every indexed entry belonging to a feed.
func (e *Engine) RemoveFeed(id storage.FeedID) error {
	query := bleve.NewTermQuery(id.String())
	query.SetField("feed_id")

	for {
		req := bleve.NewSearchRequestOptions(query, 500, 0, false)
		res, err := e.idx.Search(req)
		if err != nil {
			return fmt.Errorf("finding indexed entries for feed %s: %w", id, err)
		}
		if len(res.Hits) == 0 {
			return nil
		}

		batch := e.idx.NewBatch()
		for _, hit := range res.Hits {
			batch.Delete(hit.ID)
		}
		if err := e.idx.Batch(batch); err != nil {
			return fmt.Errorf("removing indexed entries for feed %s: %w", id, err)
		}
	}
}

// Search runs a free-form query over titles, bodies, and links.
func (e *Engine) Search(q string, limit int) ([]*Result, error) {
	if limit <= 0 {
		limit = 25
	}

	req := bleve.NewSearchRequestOptions(bleve.NewQueryStringQuery(q), limit, 0, false)
	req.Fields = []string{"title", "link", "feed_id", "entry_id"}

	res, err := e.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("searching for %q: %w", q, err)
	}

	results := make([]*Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		result := &Result{Score: hit.Score}
		if v, ok := hit.Fields["title"].(string); ok {
			result.Title = v
		}
		if v, ok := hit.Fields["link"].(string); ok {
			result.Link = v
		}
		if v, ok := hit.Fields["feed_id"].(string); ok {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				result.FeedID = storage.FeedID(n)
			}
		}
		if v, ok := hit.Fields["entry_id"].(string); ok {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				result.EntryID = storage.EntryID(n)
			}
		}
		results = append(results, result)
	}
	return results, nil
}

func docID(id storage.EntryID) string {
	return "entry:" + id.String()
}
