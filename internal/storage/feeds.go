package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrAlreadySubscribed is returned when a feed with the same canonical
// source URL already exists.
var ErrAlreadySubscribed = errors.New("already subscribed to this feed")

// ErrFeedNotFound is returned when a feed id does not exist.
var ErrFeedNotFound = errors.New("feed not found")

// CreateFeedWithEntries inserts the feed row and all of its entries in
// one transaction. Used by the subscribe path.
func (s *Store) CreateFeedWithEntries(feed IncomingFeed, entries []IncomingEntry) (FeedID, error) {
	var id FeedID
	err := s.inTx(func(tx *sql.Tx) error {
		var err error
		id, err = createFeed(tx, feed)
		if err != nil {
			return fmt.Errorf("creating feed %q: %w", feed.FeedLink, err)
		}
		if err := addEntries(tx, id, entries); err != nil {
			return fmt.Errorf("inserting %d entries for feed %q: %w", len(entries), feed.FeedLink, err)
		}
		return nil
	})
	return id, err
}

func createFeed(tx *sql.Tx, feed IncomingFeed) (FeedID, error) {
	now := time.Now().UTC()
	var id int64
	err := tx.QueryRow(
		`INSERT INTO feeds (title, link, feed_link, feed_kind, latest_etag, inserted_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 RETURNING id`,
		nullString(feed.Title), nullString(feed.Link), feed.FeedLink,
		string(feed.Kind), nullString(feed.LatestETag), now, now,
	).Scan(&id)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: feeds.feed_link") {
			return 0, ErrAlreadySubscribed
		}
		return 0, err
	}
	return FeedID(id), nil
}

// DeleteFeed removes a feed and all of its entries atomically.
func (s *Store) DeleteFeed(id FeedID) error {
	return s.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM feeds WHERE id = ?", int64(id)); err != nil {
			return fmt.Errorf("deleting feed %s: %w", id, err)
		}
		if _, err := tx.Exec("DELETE FROM entries WHERE feed_id = ?", int64(id)); err != nil {
			return fmt.Errorf("deleting entries for feed %s: %w", id, err)
		}
		return nil
	})
}

// GetFeed loads a single feed by id.
func (s *Store) GetFeed(id FeedID) (*Feed, error) {
	row := s.db.QueryRow(
		"SELECT id, title, feed_link, link, feed_kind, refreshed_at FROM feeds WHERE id = ?",
		int64(id),
	)
	feed, err := scanFeed(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("feed %s: %w", id, ErrFeedNotFound)
	}
	return feed, err
}

// ListFeeds returns all feeds ordered by title, case-insensitively.
func (s *Store) ListFeeds() ([]*Feed, error) {
	rows, err := s.db.Query(
		"SELECT id, title, feed_link, link, feed_kind, refreshed_at FROM feeds ORDER BY lower(title) ASC",
	)
	if err != nil {
		return nil, fmt.Errorf("listing feeds: %w", err)
	}
	defer rows.Close()

	var feeds []*Feed
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("listing feeds: %w", err)
		}
		feeds = append(feeds, feed)
	}
	return feeds, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeed(row rowScanner) (*Feed, error) {
	var (
		id          int64
		title       sql.NullString
		feedLink    sql.NullString
		link        sql.NullString
		kind        string
		refreshedAt sql.NullTime
	)
	if err := row.Scan(&id, &title, &feedLink, &link, &kind, &refreshedAt); err != nil {
		return nil, err
	}

	feedKind, err := ParseFeedKind(kind)
	if err != nil {
		return nil, err
	}

	return &Feed{
		ID:          FeedID(id),
		Title:       title.String,
		FeedLink:    feedLink.String,
		Link:        link.String,
		Kind:        feedKind,
		RefreshedAt: timePtr(refreshedAt),
	}, nil
}

// UpdateFeedTitle renames a feed. Refresh never touches the title, so a
// rename sticks until the user renames again.
func (s *Store) UpdateFeedTitle(id FeedID, title string) error {
	return s.inTx(func(tx *sql.Tx) error {
		res, err := tx.Exec("UPDATE feeds SET title = ? WHERE id = ?", title, int64(id))
		if err != nil {
			return fmt.Errorf("renaming feed %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("renaming feed %s: %w", id, ErrFeedNotFound)
		}
		return nil
	})
}

// FeedETag returns the stored ETag from the last cache-miss fetch, or
// "" if none has been seen.
func (s *Store) FeedETag(id FeedID) (string, error) {
	var etag sql.NullString
	err := s.db.QueryRow("SELECT latest_etag FROM feeds WHERE id = ?", int64(id)).Scan(&etag)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("feed %s: %w", id, ErrFeedNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("reading etag for feed %s: %w", id, err)
	}
	return etag.String, nil
}

// ApplyRefresh records the outcome of a cache-miss refresh: the deduped
// new entries, the refresh timestamp, the new ETag, and retention
// pruning, all in one transaction.
func (s *Store) ApplyRefresh(id FeedID, entries []IncomingEntry, etag string, retentionDays int) error {
	return s.inTx(func(tx *sql.Tx) error {
		if err := addEntries(tx, id, entries); err != nil {
			return fmt.Errorf("inserting %d entries for feed %s: %w", len(entries), id, err)
		}
		if err := touchRefreshedAt(tx, id); err != nil {
			return err
		}
		if _, err := tx.Exec("UPDATE feeds SET latest_etag = ? WHERE id = ?", nullString(etag), int64(id)); err != nil {
			return fmt.Errorf("updating etag for feed %s: %w", id, err)
		}
		return pruneEntries(tx, id, retentionDays)
	})
}

// TouchRefreshed records a cache-hit refresh: only the refresh
// timestamp moves, then retention pruning runs.
func (s *Store) TouchRefreshed(id FeedID, retentionDays int) error {
	return s.inTx(func(tx *sql.Tx) error {
		if err := touchRefreshedAt(tx, id); err != nil {
			return err
		}
		return pruneEntries(tx, id, retentionDays)
	})
}

func touchRefreshedAt(tx *sql.Tx, id FeedID) error {
	if _, err := tx.Exec("UPDATE feeds SET refreshed_at = ? WHERE id = ?", time.Now().UTC(), int64(id)); err != nil {
		return fmt.Errorf("updating refreshed_at for feed %s: %w", id, err)
	}
	return nil
}
