package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"lavabeat/models"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

const DefaultPath = "/app/data/lavabeat.db"

// Database keeps the play history. Queues themselves are never persisted.
type Database struct {
	db *sql.DB
}

type SongHistoryRecord struct {
	ID                  int64
	GuildID             string
	URI                 string
	Title               string
	Author              string
	Source              string
	RequestedByUserID   string
	RequestedByUsername string
	PlayedAt            time.Time
	DurationSeconds     int
}

type MostPlayedRecord struct {
	URI        string
	Title      string
	PlayCount  int
	LastPlayed time.Time
}

// New opens the database at dbPath, creating parent directories as needed.
// ":memory:" opens a private in-memory database.
func New(dbPath string) (*Database, error) {
	if dbPath == "" {
		dbPath = DefaultPath
	}
	memory := dbPath == ":memory:"

	if !memory {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if memory {
		// every connection would get its own empty database
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	d := &Database{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Infof("Database initialized at %s", dbPath)
	return d, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS song_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			guild_id TEXT NOT NULL,
			uri TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL,
			author TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT '',
			requested_by_user_id TEXT NOT NULL DEFAULT '',
			requested_by_username TEXT NOT NULL DEFAULT '',
			played_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			duration_seconds INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_song_history_played_at ON song_history(guild_id, played_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_song_history_uri ON song_history(guild_id, uri)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}

	return nil
}

// RecordPlay inserts a play record for a track that just started.
func (d *Database) RecordPlay(ctx context.Context, guildID string, track *models.Track) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO song_history (guild_id, uri, title, author, source, requested_by_user_id, requested_by_username, played_at, duration_seconds)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		guildID, track.URI, track.Title, track.Author, string(track.Source),
		track.Requester.ID, track.Requester.Name,
		time.Now().UTC().Format(storedFormat), track.Duration,
	)
	if err != nil {
		return fmt.Errorf("failed to record play: %w", err)
	}
	return nil
}

// GetHistory returns the most recent plays for a guild.
func (d *Database) GetHistory(ctx context.Context, guildID string, limit int) ([]SongHistoryRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT id, guild_id, uri, title, author, source, requested_by_user_id, requested_by_username, played_at, duration_seconds
		 FROM song_history
		 WHERE guild_id = ?
		 ORDER BY played_at DESC, id DESC
		 LIMIT ?`,
		guildID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []SongHistoryRecord
	for rows.Next() {
		var r SongHistoryRecord
		var playedAt string
		if err := rows.Scan(&r.ID, &r.GuildID, &r.URI, &r.Title, &r.Author, &r.Source,
			&r.RequestedByUserID, &r.RequestedByUsername, &playedAt, &r.DurationSeconds); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		r.PlayedAt = parseTimestamp(playedAt)
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetMostPlayed returns the most played tracks for a guild.
func (d *Database) GetMostPlayed(ctx context.Context, guildID string, limit int) ([]MostPlayedRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT uri, MAX(title), COUNT(*) as play_count, MAX(played_at) as last_played
		 FROM song_history
		 WHERE guild_id = ?
		 GROUP BY uri
		 ORDER BY play_count DESC, last_played DESC
		 LIMIT ?`,
		guildID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query most played: %w", err)
	}
	defer rows.Close()

	var records []MostPlayedRecord
	for rows.Next() {
		var r MostPlayedRecord
		var lastPlayed string
		if err := rows.Scan(&r.URI, &r.Title, &r.PlayCount, &lastPlayed); err != nil {
			return nil, fmt.Errorf("failed to scan most played row: %w", err)
		}
		r.LastPlayed = parseTimestamp(lastPlayed)
		records = append(records, r)
	}
	return records, rows.Err()
}

// fixed width so played_at sorts as text
const storedFormat = "2006-01-02 15:04:05.000000"

var timestampFormats = []string{
	storedFormat,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

func parseTimestamp(value string) time.Time {
	for _, layout := range timestampFormats {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	log.Warnf("failed to parse timestamp '%s' with all known formats", value)
	return time.Now()
}
