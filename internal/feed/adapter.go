package feed

import (
	"html"
	"io"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/pders01/skim/internal/storage"
)

// Parser is the whole-document parsing path, built on gofeed. It maps
// the library's object model onto the same staging bundle the
// streaming path produces, so everything downstream is agnostic about
// which path ran.
type Parser struct {
	parser *gofeed.Parser
}

// NewParser returns a document parser.
func NewParser() *Parser {
	return &Parser{parser: gofeed.NewParser()}
}

// Parse consumes a complete Atom or RSS document. sourceURL becomes
// the feed's canonical link, exactly as in ParseStream.
func (p *Parser) Parse(r io.Reader, sourceURL string) (*FeedAndEntries, error) {
	parsed, err := p.parser.Parse(r)
	if err != nil {
		return nil, &ParseError{Reason: "not a valid rss or atom document", Err: err}
	}

	var kind storage.FeedKind
	switch parsed.FeedType {
	case "atom":
		kind = storage.FeedKindAtom
	case "rss":
		kind = storage.FeedKindRSS
	default:
		return nil, &ParseError{Reason: "could not determine feed type"}
	}

	entries := make([]storage.IncomingEntry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		entries = append(entries, incomingEntry(item))
	}

	return &FeedAndEntries{
		Feed: storage.IncomingFeed{
			Title:    html.UnescapeString(parsed.Title),
			FeedLink: sourceURL,
			Link:     parsed.Link,
			Kind:     kind,
		},
		Entries: entries,
	}, nil
}

func incomingEntry(item *gofeed.Item) storage.IncomingEntry {
	entry := storage.IncomingEntry{
		Title:       html.UnescapeString(item.Title),
		Description: html.UnescapeString(item.Description),
		Content:     html.UnescapeString(item.Content),
		Link:        item.Link,
		PubDate:     utcTime(item.PublishedParsed, item.UpdatedParsed),
	}
	if len(item.Authors) > 0 && item.Authors[0] != nil {
		entry.Author = html.UnescapeString(item.Authors[0].Name)
	}
	// atom entries often carry a summary (mapped to Description by
	// gofeed) instead of content
	if entry.Content == "" {
		entry.Content = entry.Description
	}
	return entry
}

// utcTime picks the first non-nil timestamp and normalizes it to UTC.
func utcTime(times ...*time.Time) *time.Time {
	for _, t := range times {
		if t != nil {
			u := t.UTC()
			return &u
		}
	}
	return nil
}
