package tracks

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/requestmirror/internal/database"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Repository handles track_threads and track_activity.
//
// Every track has a track_threads row (thread id NULL until the thread is
// created) so that requests and activity rows can reference it.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new tracks repository.
//
// Parameters:
//   - db: Connection to the mirror database
//   - log: Structured logger
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "tracks").Logger(),
	}
}

// Ensure registers a track. Registering a known track is a no-op.
func (r *Repository) Ensure(slug string) error {
	_, err := r.db.Exec(
		"INSERT INTO track_threads (track_slug) VALUES (?) ON CONFLICT (track_slug) DO NOTHING",
		slug,
	)
	if err != nil {
		return fmt.Errorf("failed to register track %s: %w", slug, err)
	}
	return nil
}

// SetThread stores the mirror thread of a track.
//
// Parameters:
//   - slug: Track slug
//   - threadID: Mirror thread id
//
// Returns:
//   - error: Error if the write fails
func (r *Repository) SetThread(slug, threadID string) error {
	_, err := r.db.Exec(`
		INSERT INTO track_threads (track_slug, message_id) VALUES (?, ?)
		ON CONFLICT (track_slug) DO UPDATE SET message_id = excluded.message_id`,
		slug, threadID,
	)
	if err != nil {
		return fmt.Errorf("failed to set thread for %s: %w", slug, err)
	}
	return nil
}

// GetThread returns the mirror thread of a track, or "" when none is known.
func (r *Repository) GetThread(slug string) (string, error) {
	var threadID sql.NullString
	err := r.db.QueryRow("SELECT message_id FROM track_threads WHERE track_slug = ?", slug).Scan(&threadID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get thread for %s: %w", slug, err)
	}
	return threadID.String, nil
}

// SaveActivity records the outcome of a source poll: the new interval, the poll
// time and the bounded change history. The write is atomic.
//
// Parameters:
//   - slug: Track slug
//   - interval: Next poll interval, already clamped
//   - polledAt: Time of the poll
//   - changes: Change timestamps, oldest first
//
// Returns:
//   - error: Error if encoding or the transaction fails
func (r *Repository) SaveActivity(slug string, interval time.Duration, polledAt time.Time, changes []time.Time) error {
	blob, err := encodeChanges(changes)
	if err != nil {
		return fmt.Errorf("failed to encode changes for %s: %w", slug, err)
	}

	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			"INSERT INTO track_threads (track_slug) VALUES (?) ON CONFLICT (track_slug) DO NOTHING",
			slug,
		); err != nil {
			return fmt.Errorf("failed to register track %s: %w", slug, err)
		}

		_, err := tx.Exec(`
			INSERT INTO track_activity (track_slug, poll_interval_seconds, last_polled_at, recent_changes)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (track_slug) DO UPDATE SET
				poll_interval_seconds = excluded.poll_interval_seconds,
				last_polled_at = excluded.last_polled_at,
				recent_changes = excluded.recent_changes`,
			slug, int64(interval/time.Second), polledAt.Unix(), blob,
		)
		if err != nil {
			return fmt.Errorf("failed to save activity for %s: %w", slug, err)
		}
		return nil
	})
}

// Get returns one track, or nil when it is not registered.
func (r *Repository) Get(slug string) (*Track, error) {
	row := r.db.QueryRow(selectTracks+" WHERE t.track_slug = ?", slug)
	track, err := scanTrack(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get track %s: %w", slug, err)
	}
	return track, nil
}

// GetAll returns every registered track ordered by slug.
func (r *Repository) GetAll() ([]Track, error) {
	rows, err := r.db.Query(selectTracks + " ORDER BY t.track_slug")
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []Track
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		tracks = append(tracks, *track)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tracks: %w", err)
	}
	return tracks, nil
}

const selectTracks = `
	SELECT t.track_slug, t.message_id, a.poll_interval_seconds, a.last_polled_at, a.recent_changes
	FROM track_threads t
	LEFT JOIN track_activity a ON a.track_slug = t.track_slug`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTrack(s scanner) (*Track, error) {
	var (
		track      Track
		threadID   sql.NullString
		interval   sql.NullInt64
		lastPolled sql.NullInt64
		blob       []byte
	)
	if err := s.Scan(&track.Slug, &threadID, &interval, &lastPolled, &blob); err != nil {
		return nil, err
	}

	track.ThreadID = threadID.String
	track.PollInterval = time.Duration(interval.Int64) * time.Second
	if lastPolled.Int64 > 0 {
		track.LastPolledAt = time.Unix(lastPolled.Int64, 0)
	}

	changes, err := decodeChanges(blob)
	if err != nil {
		return nil, fmt.Errorf("failed to decode changes for %s: %w", track.Slug, err)
	}
	track.RecentChanges = changes
	return &track, nil
}

func encodeChanges(changes []time.Time) ([]byte, error) {
	secs := make([]int64, len(changes))
	for i, c := range changes {
		secs[i] = c.Unix()
	}
	return msgpack.Marshal(secs)
}

func decodeChanges(blob []byte) ([]time.Time, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	var secs []int64
	if err := msgpack.Unmarshal(blob, &secs); err != nil {
		return nil, err
	}
	changes := make([]time.Time, len(secs))
	for i, s := range secs {
		changes[i] = time.Unix(s, 0)
	}
	return changes, nil
}
