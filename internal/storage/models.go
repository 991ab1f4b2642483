package storage

import (
	"fmt"
	"time"
)

// FeedID identifies a feed row. Assigned by the database on insert.
type FeedID int64

// EntryID identifies an entry row. Assigned by the database on insert.
// Deliberately a distinct type from FeedID so the two can never be
// passed in each other's place.
type EntryID int64

func (id FeedID) String() string  { return fmt.Sprintf("%d", int64(id)) }
func (id EntryID) String() string { return fmt.Sprintf("%d", int64(id)) }

// FeedKind is the syndication family of a feed, detected structurally
// from the document rather than from its namespace declarations.
type FeedKind string

const (
	FeedKindAtom FeedKind = "Atom"
	FeedKindRSS  FeedKind = "RSS"
)

// ParseFeedKind converts the stored string form back into a FeedKind.
func ParseFeedKind(s string) (FeedKind, error) {
	switch s {
	case string(FeedKindAtom):
		return FeedKindAtom, nil
	case string(FeedKindRSS):
		return FeedKindRSS, nil
	default:
		return "", fmt.Errorf("%q is not a valid feed kind", s)
	}
}

// Feed is a subscribed feed's metadata. Entries are stored separately;
// EntryMetadata.FeedID references Feed.ID.
type Feed struct {
	ID          FeedID
	Title       string
	FeedLink    string // the canonical source URL, unique across feeds
	Link        string // the site homepage, as declared by the document
	Kind        FeedKind
	RefreshedAt *time.Time
}

// IncomingFeed holds a fetched but not yet stored feed. Both the
// streaming parser and the document parser produce this shape, so the
// insert path does not care which one ran.
type IncomingFeed struct {
	Title      string
	FeedLink   string
	Link       string
	Kind       FeedKind
	LatestETag string
}

// IncomingEntry is the staging form of a single fetched entry.
// Empty strings mean the document did not provide the field.
type IncomingEntry struct {
	Title       string
	Author      string
	PubDate     *time.Time
	Description string
	Content     string
	Link        string
}

// EntryMetadata is everything about an entry except its body, so long
// lists can be loaded without dragging content blobs into memory.
// A nil ReadAt means unread. InsertedAt is set once at insert time and
// serves as the stable sort key when PubDate is missing.
type EntryMetadata struct {
	ID         EntryID
	FeedID     FeedID
	Title      string
	PubDate    *time.Time
	Link       string
	ReadAt     *time.Time
	InsertedAt time.Time
}

// Read reports whether the entry has been marked read.
func (e *EntryMetadata) Read() bool { return e.ReadAt != nil }

// EntryContent is the lazily loaded body of an entry.
type EntryContent struct {
	Content     string
	Description string
}

// UnreadEntry pairs an entry with its feed's title for the combined
// all-feeds unread view.
type UnreadEntry struct {
	FeedTitle string
	Entry     EntryMetadata
}

// ReadFilter selects entries by read state.
type ReadFilter int

const (
	ReadFilterAll ReadFilter = iota
	ReadFilterUnread
	ReadFilterRead
)

func (f ReadFilter) predicate() string {
	switch f {
	case ReadFilterUnread:
		return " AND read_at IS NULL"
	case ReadFilterRead:
		return " AND read_at IS NOT NULL"
	default:
		return ""
	}
}
