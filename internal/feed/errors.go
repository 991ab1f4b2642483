package feed

import (
	"errors"
	"fmt"
)

// ErrUnexpectedCacheHit means the server answered 304 to a request that
// carried no If-None-Match header. That can only be a bug on one side.
var ErrUnexpectedCacheHit = errors.New("did not expect a cached response when no etag was sent")

// TransportError is a network-level failure: DNS, connect, TLS, or
// timeout. Distinct from StatusError, which means the server answered.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("network error fetching feed %s. check your internet connection and verify the url is accessible: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError is a response with a status other than 200 or 304. The
// message gives status-specific guidance the UI can show as-is.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	switch {
	case e.Code == 400:
		return fmt.Sprintf("bad request (400) fetching feed %s. the server rejected the request - check the url", e.URL)
	case e.Code == 401:
		return fmt.Sprintf("unauthorized (401) fetching feed %s. authentication may be required", e.URL)
	case e.Code == 403:
		return fmt.Sprintf("forbidden (403) fetching feed %s. access denied - the server refused the request", e.URL)
	case e.Code == 404:
		return fmt.Sprintf("not found (404) fetching feed %s. the feed url may be incorrect or the feed may have been removed", e.URL)
	case e.Code == 408:
		return fmt.Sprintf("request timeout (408) fetching feed %s. the server took too long to respond", e.URL)
	case e.Code == 429:
		return fmt.Sprintf("too many requests (429) fetching feed %s. rate limited - wait a moment and try again", e.URL)
	case e.Code >= 500 && e.Code <= 599:
		return fmt.Sprintf("server error (%d) fetching feed %s. this could be temporary - check the site in a browser and try again later", e.Code, e.URL)
	case e.Code >= 300 && e.Code <= 399:
		return fmt.Sprintf("redirect error (%d). the server returned an unexpected redirect for feed %s", e.Code, e.URL)
	default:
		return fmt.Sprintf("unexpected status code %d fetching feed %s", e.Code, e.URL)
	}
}

// ParseError is a document that could not be turned into a feed:
// undecodable bytes, malformed XML, or an undetectable feed kind.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }
