package feed

import (
	"encoding/xml"
	"html"
	"io"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/pders01/skim/internal/storage"
)

// FeedAndEntries is the staging bundle both parsing paths produce.
// Downstream sync and persistence only ever see this shape.
type FeedAndEntries struct {
	Feed    storage.IncomingFeed
	Entries []storage.IncomingEntry
}

// parseState tracks where the token scan currently is. A single enum
// instead of two booleans, so "inside item and inside entry at once"
// cannot be represented.
type parseState int

const (
	stateOutside parseState = iota
	stateInItem
	stateInEntry
)

func (s parseState) inEntry() bool { return s != stateOutside }

// localName strips any namespace qualification from an element or
// attribute name: a prefix ("atom:entry" -> "entry") or Clark notation
// ("{uri}entry" -> "entry"). Feeds in the wild use default namespaces,
// prefixes, or none at all, and local names are the only stable part.
func localName(name string) string {
	if i := strings.IndexByte(name, '}'); i >= 0 && i+1 < len(name) {
		return name[i+1:]
	}
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// linkHref finds an href attribute: exact name first, then a scan by
// local name to tolerate namespace-qualified attributes.
func linkHref(attrs []xml.Attr) (string, bool) {
	for _, attr := range attrs {
		if attr.Name.Space == "" && attr.Name.Local == "href" {
			return attr.Value, true
		}
	}
	for _, attr := range attrs {
		if localName(attr.Name.Local) == "href" {
			return attr.Value, true
		}
	}
	return "", false
}

// ParseStream reads an Atom or RSS document as a flat sequence of XML
// events, without building a document tree, and extracts the fields
// the reader uses. sourceURL becomes the feed's canonical link; the
// homepage link comes from the document itself.
func ParseStream(r io.Reader, sourceURL string) (*FeedAndEntries, error) {
	dec := xml.NewDecoder(r)
	// feeds routinely contain undeclared entities and sloppy markup
	dec.Strict = false
	dec.CharsetReader = charset.NewReaderLabel

	var (
		kind      storage.FeedKind
		kindKnown bool

		feedTitle string
		feedLink  string
		entries   []storage.IncomingEntry

		state   parseState
		current storage.IncomingEntry

		text    strings.Builder
		href    string
		hasHref bool
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{Reason: "xml parsing error", Err: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := localName(t.Name.Local)

			// feed kind detection is one-shot: the first matching
			// top-level element wins and is never overwritten
			if !kindKnown {
				switch name {
				case "feed":
					kind, kindKnown = storage.FeedKindAtom, true
				case "rss", "RDF":
					kind, kindKnown = storage.FeedKindRSS, true
				}
			}

			switch name {
			case "item":
				state = stateInItem
				current = storage.IncomingEntry{}
			case "entry":
				state = stateInEntry
				current = storage.IncomingEntry{}
			case "link":
				// atom puts the target in link@href, rss in the text
				href, hasHref = linkHref(t.Attr)
				text.Reset()
			case "title", "description", "content", "summary", "author", "name",
				"pubDate", "published", "updated", "date":
				text.Reset()
			}

		case xml.CharData:
			text.Write(t)

		case xml.EndElement:
			name := localName(t.Name.Local)
			txt := strings.TrimSpace(text.String())

			switch name {
			case "item":
				if state == stateInItem {
					entries = append(entries, current)
					state = stateOutside
				}
			case "entry":
				if state == stateInEntry {
					entries = append(entries, current)
					state = stateOutside
				}
			case "title":
				if txt != "" {
					decoded := html.UnescapeString(txt)
					if state.inEntry() {
						current.Title = decoded
					} else if feedTitle == "" {
						feedTitle = decoded
					}
				}
			case "link":
				// prefer the captured attribute, fall back to text;
				// the first feed-level link wins
				if state.inEntry() {
					if hasHref {
						current.Link = href
					} else if txt != "" {
						current.Link = txt
					}
				} else if feedLink == "" {
					if hasHref {
						feedLink = href
					} else if txt != "" {
						feedLink = txt
					}
				}
				href, hasHref = "", false
			case "description":
				if state == stateInItem && txt != "" {
					current.Description = html.UnescapeString(txt)
				}
			case "content":
				if state.inEntry() && txt != "" {
					current.Content = html.UnescapeString(txt)
				}
			case "summary":
				// atom entries often carry a summary instead of
				// content; use it only when content never showed up
				if state == stateInEntry && current.Content == "" && txt != "" {
					current.Content = html.UnescapeString(txt)
				}
			case "author", "name":
				if state.inEntry() && current.Author == "" && txt != "" {
					current.Author = html.UnescapeString(txt)
				}
			case "pubDate", "published", "updated", "date":
				if state.inEntry() && current.PubDate == nil && txt != "" {
					current.PubDate = parseDate(txt)
				}
			}
			text.Reset()
		}
	}

	if !kindKnown {
		return nil, &ParseError{Reason: "could not determine feed type"}
	}

	return &FeedAndEntries{
		Feed: storage.IncomingFeed{
			Title:    feedTitle,
			FeedLink: sourceURL,
			Link:     feedLink,
			Kind:     kind,
		},
		Entries: entries,
	}, nil
}
