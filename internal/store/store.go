// Package store persists the bot's auxiliary state: pending timers, RSS
// subscriptions with their posted-entry log, and per-nick weather locations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"relaybot/internal/domain"
)

// Store wraps a single SQLite database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Timer is one pending reminder.
type Timer struct {
	ID      int64
	FireAt  time.Time
	Message string
	Target  domain.ChannelRef
}

// Feed is one RSS subscription for one channel.
type Feed struct {
	ID     int64
	URL    string
	Title  string
	Target domain.ChannelRef
}

func New(dbPath string, logger *slog.Logger) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection: SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, logger: logger}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS timers (
		id       INTEGER PRIMARY KEY AUTOINCREMENT,
		fire_at  INTEGER NOT NULL,
		message  TEXT,
		network  TEXT NOT NULL,
		channel  TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS feeds (
		id       INTEGER PRIMARY KEY AUTOINCREMENT,
		url      TEXT NOT NULL,
		title    TEXT,
		network  TEXT NOT NULL,
		channel  TEXT NOT NULL,
		UNIQUE(url, network, channel)
	);

	CREATE TABLE IF NOT EXISTS feed_entries (
		id       INTEGER PRIMARY KEY AUTOINCREMENT,
		feed_id  INTEGER NOT NULL REFERENCES feeds(id) ON DELETE CASCADE,
		guid     TEXT NOT NULL,
		UNIQUE(feed_id, guid)
	);

	CREATE TABLE IF NOT EXISTS weather_locations (
		id       INTEGER PRIMARY KEY,
		network  TEXT NOT NULL,
		nick     TEXT NOT NULL,
		location TEXT NOT NULL,
		UNIQUE(network, nick) ON CONFLICT REPLACE
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// --- timers ---

// AddTimer persists a pending timer and returns its row ID.
func (s *Store) AddTimer(ctx context.Context, t Timer) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO timers (fire_at, message, network, channel) VALUES (?, ?, ?, ?)`,
		t.FireAt.Unix(), t.Message, t.Target.Network, t.Target.Channel,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) RemoveTimer(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM timers WHERE id = ?`, id)
	return err
}

// PurgeExpiredTimers deletes timers whose fire time already passed and
// returns how many were removed.
func (s *Store) PurgeExpiredTimers(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM timers WHERE fire_at < ?`, now.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PendingTimers returns all persisted timers.
func (s *Store) PendingTimers(ctx context.Context) ([]Timer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, fire_at, message, network, channel FROM timers`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var timers []Timer
	for rows.Next() {
		var t Timer
		var fireAt int64
		if err := rows.Scan(&t.ID, &fireAt, &t.Message, &t.Target.Network, &t.Target.Channel); err != nil {
			return nil, err
		}
		t.FireAt = time.Unix(fireAt, 0)
		timers = append(timers, t)
	}
	return timers, rows.Err()
}

// --- weather locations ---

// SetLocation stores the weather location for a (network, nick) pair,
// replacing any earlier value.
func (s *Store) SetLocation(ctx context.Context, network, nick, location string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO weather_locations (network, nick, location) VALUES (?, ?, ?)`,
		network, nick, location,
	)
	return err
}

// Location returns the stored weather location for a (network, nick) pair,
// or "" when none is set.
func (s *Store) Location(ctx context.Context, network, nick string) (string, error) {
	var location string
	err := s.db.QueryRowContext(ctx,
		`SELECT location FROM weather_locations WHERE network = ? AND nick = ?`,
		network, nick,
	).Scan(&location)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return location, nil
}

// --- feeds ---

// AddFeed persists a subscription. Duplicate URL for the same channel is an
// error the caller turns into a user message.
func (s *Store) AddFeed(ctx context.Context, f Feed) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO feeds (url, title, network, channel) VALUES (?, ?, ?, ?)`,
		f.URL, f.Title, f.Target.Network, f.Target.Channel,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// RemoveFeed deletes a subscription, but only when it belongs to the given
// channel; removing someone else's feed by ID is refused.
func (s *Store) RemoveFeed(ctx context.Context, id int64, target domain.ChannelRef) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM feeds WHERE id = ? AND network = ? AND channel = ?`,
		id, target.Network, target.Channel,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// FeedsFor returns the subscriptions of one channel.
func (s *Store) FeedsFor(ctx context.Context, target domain.ChannelRef) ([]Feed, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, title, network, channel FROM feeds WHERE network = ? AND channel = ?`,
		target.Network, target.Channel,
	)
	if err != nil {
		return nil, err
	}
	return scanFeeds(rows)
}

// AllFeeds returns every subscription across all channels.
func (s *Store) AllFeeds(ctx context.Context) ([]Feed, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, url, title, network, channel FROM feeds`)
	if err != nil {
		return nil, err
	}
	return scanFeeds(rows)
}

func scanFeeds(rows *sql.Rows) ([]Feed, error) {
	defer rows.Close()

	var feeds []Feed
	for rows.Next() {
		var f Feed
		if err := rows.Scan(&f.ID, &f.URL, &f.Title, &f.Target.Network, &f.Target.Channel); err != nil {
			return nil, err
		}
		feeds = append(feeds, f)
	}
	return feeds, rows.Err()
}

// MarkPosted records a feed entry as posted. Returns true when the entry was
// new, false when it had been posted before.
func (s *Store) MarkPosted(ctx context.Context, feedID int64, guid string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO feed_entries (feed_id, guid) VALUES (?, ?)`,
		feedID, guid,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
