package feed

import (
	"net/http"
	"time"
)

const acceptHeader = "application/rss+xml, application/atom+xml, application/xml, text/xml"

// Fetcher performs conditional GETs against feed URLs. One Fetcher
// shares one http.Client across all fetches.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// NewFetcher returns a fetcher with the given client-side read timeout.
func NewFetcher(timeout time.Duration, userAgent string) *Fetcher {
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Fetch issues a GET for url, sending If-None-Match when an etag from a
// previous fetch is available. On 200 the body is parsed by the
// streaming parser and the response's ETag is attached to the result;
// on 304 it returns (nil, true, nil) and there is no body to parse.
// Every other status is a StatusError; failures before a status line
// are TransportErrors. No retries happen here - refreshing again is
// the caller's (that is, the user's) decision.
func (f *Fetcher) Fetch(url, etag string) (*FeedAndEntries, bool, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, false, &TransportError{URL: url, Err: err}
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", acceptHeader)
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, false, &TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// the etags did not match (or none was sent); new document.
		// header lookup is case-insensitive per net/http canonicalization
		newETag := resp.Header.Get("ETag")

		bundle, err := ParseStream(resp.Body, url)
		if err != nil {
			return nil, false, err
		}
		bundle.Feed.LatestETag = newETag
		return bundle, false, nil

	case http.StatusNotModified:
		// the etags matched; same document we already have
		return nil, true, nil

	default:
		return nil, false, &StatusError{Code: resp.StatusCode, URL: url}
	}
}
