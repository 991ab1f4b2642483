package feed

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feedDoc = `<feed><title>T</title><link href="http://x/"/><entry><title>E</title><link href="http://x/1"/></entry></feed>`

func newTestFetcher() *Fetcher {
	return NewFetcher(5*time.Second, "skim-test/1.0")
}

func TestFetchFreshDocument(t *testing.T) {
	var gotUA, gotAccept, gotIfNoneMatch string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		gotIfNoneMatch = r.Header.Get("If-None-Match")
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(feedDoc))
	}))
	defer srv.Close()

	bundle, hit, err := newTestFetcher().Fetch(srv.URL, "")
	require.NoError(t, err)
	assert.False(t, hit)
	require.NotNil(t, bundle)

	assert.Equal(t, `"v1"`, bundle.Feed.LatestETag)
	assert.Equal(t, srv.URL, bundle.Feed.FeedLink)
	require.Len(t, bundle.Entries, 1)

	assert.Equal(t, "skim-test/1.0", gotUA)
	assert.Contains(t, gotAccept, "application/atom+xml")
	assert.Empty(t, gotIfNoneMatch, "no stored etag means no conditional header")
}

func TestFetchNotModified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(feedDoc))
	}))
	defer srv.Close()

	fetcher := newTestFetcher()

	bundle, hit, err := fetcher.Fetch(srv.URL, "")
	require.NoError(t, err)
	require.False(t, hit)

	again, hit, err := fetcher.Fetch(srv.URL, bundle.Feed.LatestETag)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Nil(t, again, "a cache hit carries no document")
}

func TestFetchStatusErrors(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{http.StatusNotFound, "not found (404)"},
		{http.StatusForbidden, "forbidden (403)"},
		{http.StatusTooManyRequests, "too many requests (429)"},
		{http.StatusInternalServerError, "server error (500)"},
		{http.StatusTeapot, "unexpected status code 418"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
			}))
			defer srv.Close()

			_, _, err := newTestFetcher().Fetch(srv.URL, "")
			require.Error(t, err)

			var serr *StatusError
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, tt.code, serr.Code)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFetchTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, _, err := newTestFetcher().Fetch(srv.URL, "")
	require.Error(t, err)

	var terr *TransportError
	assert.ErrorAs(t, err, &terr)
}

func TestFetchUnparseableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not a feed</html>"))
	}))
	defer srv.Close()

	_, _, err := newTestFetcher().Fetch(srv.URL, "")
	require.Error(t, err)

	var perr *ParseError
	assert.ErrorAs(t, err, &perr)
}
