// Package feed fetches, parses, and synchronizes Atom and RSS feeds.
package feed

import (
	"errors"
	"fmt"
	"io"

	"github.com/pders01/skim/internal/config"
	"github.com/pders01/skim/internal/debuglog"
	"github.com/pders01/skim/internal/storage"
	"github.com/pders01/skim/internal/validation"
)

// Indexer receives change notifications so an external search index
// can stay in step with the store.
type Indexer interface {
	IndexFeed(id storage.FeedID) error
	RemoveFeed(id storage.FeedID) error
}

// Manager orchestrates the engine: validate, fetch, parse, dedup,
// persist. Each operation runs start to finish inside one storage
// transaction, so a failure anywhere leaves the database unchanged.
type Manager struct {
	store         *storage.Store
	fetcher       *Fetcher
	parser        *Parser
	urlValidator  *validation.FeedURLValidator
	indexer       Indexer
	retentionDays int
}

// NewManager wires the engine together from its parts.
func NewManager(store *storage.Store, cfg *config.Config) *Manager {
	return &Manager{
		store:         store,
		fetcher:       NewFetcher(cfg.Feed.HTTPTimeout, cfg.Feed.UserAgent),
		parser:        NewParser(),
		urlValidator:  validation.NewFeedURLValidator(),
		retentionDays: cfg.Feed.RetentionDays,
	}
}

// SetIndexer attaches a search index. Index maintenance is advisory:
// an indexing failure is logged, never surfaced as an operation error.
func (m *Manager) SetIndexer(idx Indexer) {
	m.indexer = idx
}

// Subscribe validates the URL, fetches the document (with no etag, so
// a cache hit is impossible), and stores the feed with all its entries
// in one transaction. Subscribing to an already-stored feed_link fails
// with storage.ErrAlreadySubscribed.
func (m *Manager) Subscribe(rawURL string) (storage.FeedID, error) {
	url, err := m.urlValidator.ValidateAndNormalize(rawURL)
	if err != nil {
		return 0, fmt.Errorf("subscribing: %w", err)
	}

	bundle, hit, err := m.fetcher.Fetch(url, "")
	if err != nil {
		return 0, fmt.Errorf("subscribing to %s: %w", url, err)
	}
	if hit {
		return 0, fmt.Errorf("subscribing to %s: %w", url, ErrUnexpectedCacheHit)
	}

	id, err := m.store.CreateFeedWithEntries(bundle.Feed, bundle.Entries)
	if err != nil {
		return 0, fmt.Errorf("subscribing to %s: %w", url, err)
	}

	debuglog.Infof("subscribed to %s as feed %s with %d entries", url, id, len(bundle.Entries))
	m.reindex(id)
	return id, nil
}

// Refresh fetches a feed conditionally and stores whatever is new.
// New means: the entry's link is present remotely and absent locally.
// Entries without a link are never considered new, since the link is
// the only identity that survives re-serving and cosmetic edits.
func (m *Manager) Refresh(id storage.FeedID) error {
	f, err := m.store.GetFeed(id)
	if err != nil {
		return fmt.Errorf("refreshing feed %s: %w", id, err)
	}
	etag, err := m.store.FeedETag(id)
	if err != nil {
		return fmt.Errorf("refreshing feed %s: %w", id, err)
	}

	bundle, hit, err := m.fetcher.Fetch(f.FeedLink, etag)
	if err != nil {
		return fmt.Errorf("refreshing feed %s: %w", id, err)
	}

	if hit {
		// server confirmed no change; just note the refresh and prune
		debuglog.Debugf("feed %s unchanged (cache hit)", id)
		if err := m.store.TouchRefreshed(id, m.retentionDays); err != nil {
			return fmt.Errorf("refreshing feed %s: %w", id, err)
		}
		return nil
	}

	local, err := m.store.EntryLinks(id, storage.ReadFilterAll)
	if err != nil {
		return fmt.Errorf("refreshing feed %s: %w", id, err)
	}
	known := make(map[string]struct{}, len(local))
	for _, link := range local {
		known[link] = struct{}{}
	}

	var toAdd []storage.IncomingEntry
	for _, entry := range bundle.Entries {
		if entry.Link == "" {
			continue
		}
		if _, ok := known[entry.Link]; !ok {
			toAdd = append(toAdd, entry)
		}
	}

	if err := m.store.ApplyRefresh(id, toAdd, bundle.Feed.LatestETag, m.retentionDays); err != nil {
		return fmt.Errorf("refreshing feed %s: %w", id, err)
	}

	debuglog.Infof("refreshed feed %s: %d remote entries, %d new", id, len(bundle.Entries), len(toAdd))
	if len(toAdd) > 0 {
		m.reindex(id)
	}
	return nil
}

// RefreshAll refreshes every feed in turn. One feed's failure does not
// stop the others; all failures come back joined.
func (m *Manager) RefreshAll() error {
	feeds, err := m.store.ListFeeds()
	if err != nil {
		return fmt.Errorf("refreshing all feeds: %w", err)
	}

	var errs []error
	for _, f := range feeds {
		if err := m.Refresh(f.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Delete removes a feed and its entries.
func (m *Manager) Delete(id storage.FeedID) error {
	if err := m.store.DeleteFeed(id); err != nil {
		return fmt.Errorf("deleting feed %s: %w", id, err)
	}
	if m.indexer != nil {
		if err := m.indexer.RemoveFeed(id); err != nil {
			debuglog.Warnf("removing feed %s from search index: %v", id, err)
		}
	}
	return nil
}

// Rename sets a feed's title. Refresh never overwrites titles, so this
// is the only way a title changes after subscribe.
func (m *Manager) Rename(id storage.FeedID, title string) error {
	return m.store.UpdateFeedTitle(id, title)
}

// ToggleRead flips an entry between read and unread.
func (m *Manager) ToggleRead(id storage.EntryID) error {
	return m.store.ToggleRead(id)
}

// Preview parses a complete document through the library-based path
// without touching the store, for inspecting a feed before
// subscribing.
func (m *Manager) Preview(r io.Reader, sourceURL string) (*FeedAndEntries, error) {
	return m.parser.Parse(r, sourceURL)
}

func (m *Manager) reindex(id storage.FeedID) {
	if m.indexer == nil {
		return
	}
	if err := m.indexer.IndexFeed(id); err != nil {
		debuglog.Warnf("indexing feed %s: %v", id, err)
	}
}
