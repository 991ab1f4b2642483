package integration

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/pders01/skim/internal/config"
	"github.com/pders01/skim/internal/feed"
	"github.com/pders01/skim/internal/search"
	"github.com/pders01/skim/internal/storage"
)

const rssDoc = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Integration RSS</title>
    <link>http://example.com/</link>
    <item>
      <title>First post</title>
      <link>http://example.com/1</link>
      <description>the first post</description>
      <pubDate>Sun, 01 Jun 2025 10:00:00 +0000</pubDate>
    </item>
    <item>
      <title>Second post</title>
      <link>http://example.com/2</link>
      <description>the second post</description>
      <pubDate>Mon, 02 Jun 2025 10:00:00 +0000</pubDate>
    </item>
    <item>
      <title>Third post</title>
      <link>http://example.com/3</link>
      <description>the third post</description>
    </item>
  </channel>
</rss>`

const atomDoc = `<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Integration Atom</title>
  <link href="http://example.com/"/>
  <entry>
    <title>Alpha</title>
    <link href="http://example.com/alpha"/>
    <content>searchable alpha body</content>
    <published>2025-06-01T10:00:00Z</published>
  </entry>
  <entry>
    <title>Beta</title>
    <link href="http://example.com/beta"/>
    <summary>searchable beta summary</summary>
  </entry>
</feed>`

// feedHost serves static documents with etag handling on every path.
type feedHost struct {
	*httptest.Server
	docs  map[string]string
	etags map[string]string
}

func newFeedHost(t *testing.T) *feedHost {
	t.Helper()
	h := &feedHost{
		docs:  map[string]string{},
		etags: map[string]string{},
	}
	h.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		doc, ok := h.docs[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		etag := h.etags[r.URL.Path]
		if etag != "" && r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		if etag != "" {
			w.Header().Set("ETag", etag)
		}
		w.Write([]byte(doc))
	}))
	t.Cleanup(h.Close)
	return h
}

func (h *feedHost) serve(path, doc, etag string) {
	h.docs[path] = doc
	h.etags[path] = etag
}

func setup(t *testing.T) (*storage.Store, *feed.Manager) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "skim.db")
	store, err := storage.Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	return store, feed.NewManager(store, config.TestConfig())
}

func TestIntegration_SubscribeRSS(t *testing.T) {
	host := newFeedHost(t)
	host.serve("/feed.rss", rssDoc, `"rss-v1"`)
	store, manager := setup(t)

	id, err := manager.Subscribe(host.URL + "/feed.rss")
	if err != nil {
		t.Fatalf("subscribing to rss feed: %v", err)
	}

	f, err := store.GetFeed(id)
	if err != nil {
		t.Fatal(err)
	}
	if f.Title != "Integration RSS" {
		t.Errorf("expected title %q, got %q", "Integration RSS", f.Title)
	}
	if f.Kind != storage.FeedKindRSS {
		t.Errorf("expected kind RSS, got %s", f.Kind)
	}

	entries, err := store.ListEntries(id, storage.ReadFilterAll)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for _, entry := range entries {
		if entry.Title == "" {
			t.Error("entry has empty title")
		}
		if entry.Link == "" {
			t.Error("entry has empty link")
		}
	}
}

func TestIntegration_SubscribeAtom(t *testing.T) {
	host := newFeedHost(t)
	host.serve("/feed.atom", atomDoc, `"atom-v1"`)
	store, manager := setup(t)

	id, err := manager.Subscribe(host.URL + "/feed.atom")
	if err != nil {
		t.Fatalf("subscribing to atom feed: %v", err)
	}

	f, err := store.GetFeed(id)
	if err != nil {
		t.Fatal(err)
	}
	if f.Kind != storage.FeedKindAtom {
		t.Errorf("expected kind Atom, got %s", f.Kind)
	}

	entries, err := store.ListEntries(id, storage.ReadFilterAll)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}

func TestIntegration_ConditionalRefresh(t *testing.T) {
	host := newFeedHost(t)
	host.serve("/feed.rss", rssDoc, `"rss-v1"`)
	store, manager := setup(t)

	id, err := manager.Subscribe(host.URL + "/feed.rss")
	if err != nil {
		t.Fatal(err)
	}

	etag, err := store.FeedETag(id)
	if err != nil {
		t.Fatal(err)
	}
	if etag != `"rss-v1"` {
		t.Errorf("expected stored etag %q, got %q", `"rss-v1"`, etag)
	}

	// same document, same etag: the server answers 304
	if err := manager.Refresh(id); err != nil {
		t.Errorf("refresh should handle a 304 response: %v", err)
	}
	entries, err := store.ListEntries(id, storage.ReadFilterAll)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Errorf("a 304 refresh must not change entries, got %d", len(entries))
	}

	f, err := store.GetFeed(id)
	if err != nil {
		t.Fatal(err)
	}
	if f.RefreshedAt == nil {
		t.Error("refresh should record a timestamp even on a cache hit")
	}
}

func TestIntegration_RefreshPicksUpNewEntries(t *testing.T) {
	host := newFeedHost(t)
	host.serve("/feed.atom", atomDoc, `"atom-v1"`)
	store, manager := setup(t)

	id, err := manager.Subscribe(host.URL + "/feed.atom")
	if err != nil {
		t.Fatal(err)
	}

	// new document version: one old entry re-served, one new
	updated := `<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Integration Atom</title>
  <entry>
    <title>Beta</title>
    <link href="http://example.com/beta"/>
  </entry>
  <entry>
    <title>Gamma</title>
    <link href="http://example.com/gamma"/>
  </entry>
</feed>`
	host.serve("/feed.atom", updated, `"atom-v2"`)

	if err := manager.Refresh(id); err != nil {
		t.Fatal(err)
	}

	links, err := store.EntryLinks(id, storage.ReadFilterAll)
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 3 {
		t.Fatalf("expected 3 distinct links after refresh, got %d: %v", len(links), links)
	}

	etag, err := store.FeedETag(id)
	if err != nil {
		t.Fatal(err)
	}
	if etag != `"atom-v2"` {
		t.Errorf("expected stored etag %q, got %q", `"atom-v2"`, etag)
	}
}

func TestIntegration_StatusErrors(t *testing.T) {
	host := newFeedHost(t)
	_, manager := setup(t)

	_, err := manager.Subscribe(host.URL + "/missing.rss")
	if err == nil {
		t.Fatal("subscribing to a 404 url should fail")
	}
	var serr *feed.StatusError
	if !errors.As(err, &serr) {
		t.Fatalf("expected a StatusError, got %T: %v", err, err)
	}
	if serr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", serr.Code)
	}
}

func TestIntegration_SearchAcrossLifecycle(t *testing.T) {
	host := newFeedHost(t)
	host.serve("/feed.atom", atomDoc, `"atom-v1"`)
	store, manager := setup(t)

	engine, err := search.OpenInMemory(store)
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close()
	manager.SetIndexer(engine)

	id, err := manager.Subscribe(host.URL + "/feed.atom")
	if err != nil {
		t.Fatal(err)
	}

	results, err := engine.Search("alpha", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 hit for alpha, got %d", len(results))
	}
	if results[0].FeedID != id {
		t.Errorf("hit resolved to wrong feed: %s", results[0].FeedID)
	}

	if err := manager.Delete(id); err != nil {
		t.Fatal(err)
	}
	results, err = engine.Search("alpha", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("deleted feed should leave no search hits, got %d", len(results))
	}
}

func TestIntegration_PersistenceAcrossReopen(t *testing.T) {
	host := newFeedHost(t)
	host.serve("/feed.rss", rssDoc, `"rss-v1"`)

	dbPath := filepath.Join(t.TempDir(), "skim.db")
	store, err := storage.Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	manager := feed.NewManager(store, config.TestConfig())

	id, err := manager.Subscribe(host.URL + "/feed.rss")
	if err != nil {
		t.Fatal(err)
	}
	entries, err := store.ListEntries(id, storage.ReadFilterAll)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.ToggleRead(entries[0].ID); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("database file should exist: %v", err)
	}

	reopened, err := storage.Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	count, err := reopened.CountUnread(id)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("expected 2 unread after reopen, got %d", count)
	}
}
