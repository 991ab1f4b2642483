package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrEntryNotFound is returned when an entry id does not exist.
var ErrEntryNotFound = errors.New("entry not found")

// addEntries bulk-inserts entries for a feed with a single prepared
// statement. Many inserts in one SQLite transaction are cheap, so no
// multi-row VALUES gymnastics are needed.
func addEntries(tx *sql.Tx, feedID FeedID, entries []IncomingEntry) error {
	if len(entries) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(
		`INSERT INTO entries (feed_id, title, author, pub_date, description, content, link, inserted_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, entry := range entries {
		_, err := stmt.Exec(
			int64(feedID),
			nullString(entry.Title),
			nullString(entry.Author),
			nullTime(entry.PubDate),
			nullString(entry.Description),
			nullString(entry.Content),
			nullString(entry.Link),
			now,
			now,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetEntryMetadata loads a single entry's metadata.
func (s *Store) GetEntryMetadata(id EntryID) (*EntryMetadata, error) {
	row := s.db.QueryRow(
		"SELECT id, feed_id, title, pub_date, link, read_at, inserted_at FROM entries WHERE id = ?",
		int64(id),
	)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entry %s: %w", id, ErrEntryNotFound)
	}
	return entry, err
}

// GetEntryContent loads just the body of an entry. Split from the
// metadata load because content blobs are only needed for display.
func (s *Store) GetEntryContent(id EntryID) (*EntryContent, error) {
	var content, description sql.NullString
	err := s.db.QueryRow("SELECT content, description FROM entries WHERE id = ?", int64(id)).
		Scan(&content, &description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entry %s: %w", id, ErrEntryNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading content for entry %s: %w", id, err)
	}
	return &EntryContent{Content: content.String, Description: description.String}, nil
}

// ListEntries returns a feed's entries filtered by read state.
// pub_date is unreliable across feeds, so inserted_at is the tiebreak.
func (s *Store) ListEntries(feedID FeedID, filter ReadFilter) ([]*EntryMetadata, error) {
	query := "SELECT id, feed_id, title, pub_date, link, read_at, inserted_at FROM entries WHERE feed_id = ?" +
		filter.predicate() +
		" ORDER BY pub_date DESC, inserted_at DESC"

	rows, err := s.db.Query(query, int64(feedID))
	if err != nil {
		return nil, fmt.Errorf("listing entries for feed %s: %w", feedID, err)
	}
	defer rows.Close()

	var entries []*EntryMetadata
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("listing entries for feed %s: %w", feedID, err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// EntryLinks returns the non-null links stored for a feed. The refresh
// dedup treats the link as an entry's sole identity, so this is the
// "already known" side of the set difference.
func (s *Store) EntryLinks(feedID FeedID, filter ReadFilter) ([]string, error) {
	query := "SELECT link FROM entries WHERE feed_id = ? AND link IS NOT NULL" + filter.predicate()

	rows, err := s.db.Query(query, int64(feedID))
	if err != nil {
		return nil, fmt.Errorf("listing entry links for feed %s: %w", feedID, err)
	}
	defer rows.Close()

	var links []string
	for rows.Next() {
		var link string
		if err := rows.Scan(&link); err != nil {
			return nil, fmt.Errorf("listing entry links for feed %s: %w", feedID, err)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

// ListAllUnread returns unread entries across every feed, newest first,
// each paired with its feed's title.
func (s *Store) ListAllUnread() ([]UnreadEntry, error) {
	rows, err := s.db.Query(
		`SELECT e.id, e.feed_id, e.title, e.pub_date, e.link, e.read_at, e.inserted_at, f.title
		 FROM entries e
		 JOIN feeds f ON e.feed_id = f.id
		 WHERE e.read_at IS NULL
		 ORDER BY e.pub_date DESC, e.inserted_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing unread entries: %w", err)
	}
	defer rows.Close()

	var out []UnreadEntry
	for rows.Next() {
		var (
			id, feedID      int64
			title, link     sql.NullString
			pubDate, readAt sql.NullTime
			insertedAt      time.Time
			feedTitle       sql.NullString
		)
		if err := rows.Scan(&id, &feedID, &title, &pubDate, &link, &readAt, &insertedAt, &feedTitle); err != nil {
			return nil, fmt.Errorf("listing unread entries: %w", err)
		}
		out = append(out, UnreadEntry{
			FeedTitle: feedTitle.String,
			Entry: EntryMetadata{
				ID:         EntryID(id),
				FeedID:     FeedID(feedID),
				Title:      title.String,
				PubDate:    timePtr(pubDate),
				Link:       link.String,
				ReadAt:     timePtr(readAt),
				InsertedAt: insertedAt.UTC(),
			},
		})
	}
	return out, rows.Err()
}

func scanEntry(row rowScanner) (*EntryMetadata, error) {
	var (
		id, feedID      int64
		title, link     sql.NullString
		pubDate, readAt sql.NullTime
		insertedAt      time.Time
	)
	if err := row.Scan(&id, &feedID, &title, &pubDate, &link, &readAt, &insertedAt); err != nil {
		return nil, err
	}
	return &EntryMetadata{
		ID:         EntryID(id),
		FeedID:     FeedID(feedID),
		Title:      title.String,
		PubDate:    timePtr(pubDate),
		Link:       link.String,
		ReadAt:     timePtr(readAt),
		InsertedAt: insertedAt.UTC(),
	}, nil
}

// ToggleRead flips an entry's read state: unread entries get read_at
// set to now, read entries go back to NULL. Toggling twice is a no-op.
func (s *Store) ToggleRead(id EntryID) error {
	return s.inTx(func(tx *sql.Tx) error {
		var readAt sql.NullTime
		err := tx.QueryRow("SELECT read_at FROM entries WHERE id = ?", int64(id)).Scan(&readAt)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("entry %s: %w", id, ErrEntryNotFound)
		}
		if err != nil {
			return fmt.Errorf("toggling read state for entry %s: %w", id, err)
		}

		if readAt.Valid {
			_, err = tx.Exec("UPDATE entries SET read_at = NULL WHERE id = ?", int64(id))
		} else {
			_, err = tx.Exec("UPDATE entries SET read_at = ? WHERE id = ?", time.Now().UTC(), int64(id))
		}
		if err != nil {
			return fmt.Errorf("toggling read state for entry %s: %w", id, err)
		}
		return nil
	})
}

// CountUnread counts a feed's entries that have not been marked read.
func (s *Store) CountUnread(feedID FeedID) (int, error) {
	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM entries WHERE feed_id = ? AND read_at IS NULL",
		int64(feedID),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting unread entries for feed %s: %w", feedID, err)
	}
	return count, nil
}

// FeedActivity returns per-day entry counts for the last `days` days,
// oldest day first, for sparkline-style display.
func (s *Store) FeedActivity(feedID FeedID, days int) ([]int, error) {
	start := time.Now().UTC().AddDate(0, 0, -days)

	rows, err := s.db.Query(
		`SELECT DATE(COALESCE(pub_date, inserted_at)) AS day, COUNT(*)
		 FROM entries
		 WHERE feed_id = ? AND COALESCE(pub_date, inserted_at) >= ?
		 GROUP BY day
		 ORDER BY day ASC`,
		int64(feedID), start,
	)
	if err != nil {
		return nil, fmt.Errorf("loading activity for feed %s: %w", feedID, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var day string
		var count int
		if err := rows.Scan(&day, &count); err != nil {
			return nil, fmt.Errorf("loading activity for feed %s: %w", feedID, err)
		}
		counts[day] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	activity := make([]int, 0, days)
	for i := days - 1; i >= 0; i-- {
		day := time.Now().UTC().AddDate(0, 0, -i).Format("2006-01-02")
		activity = append(activity, counts[day])
	}
	return activity, nil
}

// pruneEntries deletes a feed's entries older than the retention
// window, measured from publish date or, failing that, insert date.
func pruneEntries(tx *sql.Tx, feedID FeedID, retentionDays int) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	if _, err := tx.Exec(
		"DELETE FROM entries WHERE feed_id = ? AND COALESCE(pub_date, inserted_at) < ?",
		int64(feedID), cutoff,
	); err != nil {
		return fmt.Errorf("pruning entries for feed %s: %w", feedID, err)
	}
	return nil
}
