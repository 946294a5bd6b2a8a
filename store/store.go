package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/packops/trip"
	_ "modernc.org/sqlite"
)

// Sentinel errors.
var (
	ErrNotFound = errors.New("store: not found")
)

// Config configures the SQLite store.
type Config struct {
	// Path is the database file path. ":memory:" creates an
	// in-process database for tests.
	Path string
}

// SuggestionRecord is one append-only audit entry describing a
// suggestion generation or cache hit.
type SuggestionRecord struct {
	Fingerprint string
	Source      string
	ItemCount   int
	CacheHit    bool
	Duration    time.Duration
	CreatedAt   time.Time
}

// Store persists trips and suggestion audit records.
type Store struct {
	db *sql.DB
}

// Open opens the database and creates the schema.
func Open(config Config) (*Store, error) {
	if config.Path == "" {
		config.Path = "packops.db"
	}
	db, err := sql.Open("sqlite", config.Path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS trips (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		destination  TEXT NOT NULL,
		start_date   TEXT NOT NULL,
		days         INTEGER NOT NULL,
		style        TEXT NOT NULL,
		transport    TEXT NOT NULL,
		activities   TEXT NOT NULL,
		travelers    TEXT NOT NULL,
		weather_summary TEXT,
		weather_temp_c  REAL,
		created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS suggestion_log (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		fingerprint TEXT NOT NULL,
		source      TEXT NOT NULL,
		item_count  INTEGER NOT NULL,
		cache_hit   INTEGER NOT NULL,
		latency_ms  INTEGER NOT NULL,
		created_at  DATETIME NOT NULL
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_suggestion_fingerprint
		ON suggestion_log(fingerprint)`)
	return err
}

// SaveTrip inserts a trip and returns its id. The caller is expected to
// pass normalized parameters.
func (s *Store) SaveTrip(ctx context.Context, p trip.Params) (int64, error) {
	activities, err := json.Marshal(p.Activities)
	if err != nil {
		return 0, fmt.Errorf("store: marshal activities: %w", err)
	}
	travelers, err := json.Marshal(p.Travelers)
	if err != nil {
		return 0, fmt.Errorf("store: marshal travelers: %w", err)
	}

	var summary sql.NullString
	var tempC sql.NullFloat64
	if p.Weather != nil {
		summary = sql.NullString{String: p.Weather.Summary, Valid: true}
		tempC = sql.NullFloat64{Float64: p.Weather.TempC, Valid: true}
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO trips
		(destination, start_date, days, style, transport, activities, travelers,
		 weather_summary, weather_temp_c)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Destination, p.StartDate, p.Days, p.Style, p.Transport,
		string(activities), string(travelers), summary, tempC,
	)
	if err != nil {
		return 0, fmt.Errorf("store: insert trip: %w", err)
	}
	return res.LastInsertId()
}

// GetTrip loads a trip by id, including its weather snapshot if one was
// captured at save time.
func (s *Store) GetTrip(ctx context.Context, id int64) (*trip.Params, error) {
	var p trip.Params
	var activities, travelers string
	var summary sql.NullString
	var tempC sql.NullFloat64

	err := s.db.QueryRowContext(ctx,
		`SELECT destination, start_date, days, style, transport,
			activities, travelers, weather_summary, weather_temp_c
		 FROM trips WHERE id = ?`, id,
	).Scan(&p.Destination, &p.StartDate, &p.Days, &p.Style, &p.Transport,
		&activities, &travelers, &summary, &tempC)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get trip: %w", err)
	}

	if err := json.Unmarshal([]byte(activities), &p.Activities); err != nil {
		return nil, fmt.Errorf("store: unmarshal activities: %w", err)
	}
	if err := json.Unmarshal([]byte(travelers), &p.Travelers); err != nil {
		return nil, fmt.Errorf("store: unmarshal travelers: %w", err)
	}
	if summary.Valid {
		p.Weather = &trip.Weather{Summary: summary.String, TempC: tempC.Float64}
	}
	return &p, nil
}

// AppendSuggestion records one suggestion outcome in the audit log.
func (s *Store) AppendSuggestion(ctx context.Context, rec SuggestionRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	cacheHit := 0
	if rec.CacheHit {
		cacheHit = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO suggestion_log
		(fingerprint, source, item_count, cache_hit, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Fingerprint, rec.Source, rec.ItemCount, cacheHit,
		rec.Duration.Milliseconds(), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: append suggestion: %w", err)
	}
	return nil
}

// RecentSuggestions returns the newest audit entries for a fingerprint,
// most recent first.
func (s *Store) RecentSuggestions(ctx context.Context, fingerprint string, limit int) ([]SuggestionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT fingerprint, source, item_count, cache_hit, latency_ms, created_at
		 FROM suggestion_log WHERE fingerprint = ?
		 ORDER BY id DESC LIMIT ?`, fingerprint, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query suggestions: %w", err)
	}
	defer rows.Close()

	var records []SuggestionRecord
	for rows.Next() {
		var rec SuggestionRecord
		var cacheHit int
		var latencyMS int64
		if err := rows.Scan(&rec.Fingerprint, &rec.Source, &rec.ItemCount,
			&cacheHit, &latencyMS, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan suggestion: %w", err)
		}
		rec.CacheHit = cacheHit != 0
		rec.Duration = time.Duration(latencyMS) * time.Millisecond
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
