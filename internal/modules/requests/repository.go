package requests

import (
	"database/sql"
	"fmt"

	"github.com/aristath/requestmirror/internal/database"
	"github.com/rs/zerolog"
)

// Repository handles the requests table.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new requests repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "requests").Logger(),
	}
}

// Track registers an unmirrored request. Known requests are left untouched.
func (r *Repository) Track(requestID, trackSlug string) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			"INSERT INTO track_threads (track_slug) VALUES (?) ON CONFLICT (track_slug) DO NOTHING",
			trackSlug,
		); err != nil {
			return fmt.Errorf("failed to register track %s: %w", trackSlug, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO requests (request_id, track_slug) VALUES (?, ?) ON CONFLICT (request_id) DO NOTHING",
			requestID, trackSlug,
		); err != nil {
			return fmt.Errorf("failed to insert request %s: %w", requestID, err)
		}
		return nil
	})
}

// SetMessage records the mirror message of a request.
func (r *Repository) SetMessage(requestID, trackSlug, messageID string) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			"INSERT INTO track_threads (track_slug) VALUES (?) ON CONFLICT (track_slug) DO NOTHING",
			trackSlug,
		); err != nil {
			return fmt.Errorf("failed to register track %s: %w", trackSlug, err)
		}
		if _, err := tx.Exec(`
			INSERT INTO requests (request_id, track_slug, message_id) VALUES (?, ?, ?)
			ON CONFLICT (request_id) DO UPDATE SET
				track_slug = excluded.track_slug,
				message_id = excluded.message_id`,
			requestID, trackSlug, messageID,
		); err != nil {
			return fmt.Errorf("failed to set message for %s: %w", requestID, err)
		}
		return nil
	})
}

// SyncMessages makes the stored message ids of a track match what the mirror
// thread holds: found messages are recorded, rows whose message is gone are
// cleared back to unmirrored.
//
// Parameters:
//   - trackSlug: Track slug
//   - found: request id -> message id, as listed from the thread
//
// Returns:
//   - error: Error if the transaction fails
func (r *Repository) SyncMessages(trackSlug string, found map[string]string) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			"INSERT INTO track_threads (track_slug) VALUES (?) ON CONFLICT (track_slug) DO NOTHING",
			trackSlug,
		); err != nil {
			return fmt.Errorf("failed to register track %s: %w", trackSlug, err)
		}

		existing, err := listByTrack(tx, trackSlug)
		if err != nil {
			return err
		}
		for _, item := range existing {
			if _, ok := found[item.RequestID]; ok || !item.Mirrored() {
				continue
			}
			if _, err := tx.Exec("UPDATE requests SET message_id = NULL WHERE request_id = ?", item.RequestID); err != nil {
				return fmt.Errorf("failed to clear message for %s: %w", item.RequestID, err)
			}
		}

		for requestID, messageID := range found {
			if _, err := tx.Exec(`
				INSERT INTO requests (request_id, track_slug, message_id) VALUES (?, ?, ?)
				ON CONFLICT (request_id) DO UPDATE SET
					track_slug = excluded.track_slug,
					message_id = excluded.message_id`,
				requestID, trackSlug, messageID,
			); err != nil {
				return fmt.Errorf("failed to set message for %s: %w", requestID, err)
			}
		}
		return nil
	})
}

// Delete removes a request. Deleting a missing request is not an error.
func (r *Repository) Delete(requestID string) error {
	if _, err := r.db.Exec("DELETE FROM requests WHERE request_id = ?", requestID); err != nil {
		return fmt.Errorf("failed to delete request %s: %w", requestID, err)
	}
	return nil
}

// PruneUnmirrored deletes unmirrored rows of a track whose request is not in keep.
// Returns the number of rows deleted.
func (r *Repository) PruneUnmirrored(trackSlug string, keep map[string]bool) (int, error) {
	pruned := 0
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		items, err := listByTrack(tx, trackSlug)
		if err != nil {
			return err
		}
		for _, item := range items {
			if item.Mirrored() || keep[item.RequestID] {
				continue
			}
			if _, err := tx.Exec("DELETE FROM requests WHERE request_id = ?", item.RequestID); err != nil {
				return fmt.Errorf("failed to prune request %s: %w", item.RequestID, err)
			}
			pruned++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if pruned > 0 {
		r.log.Debug().Str("track", trackSlug).Int("pruned", pruned).Msg("Pruned vanished unmirrored requests")
	}
	return pruned, nil
}

// Get returns one request, or nil when unknown.
func (r *Repository) Get(requestID string) (*RequestItem, error) {
	var (
		item      RequestItem
		messageID sql.NullString
	)
	err := r.db.QueryRow(
		"SELECT request_id, track_slug, message_id FROM requests WHERE request_id = ?", requestID,
	).Scan(&item.RequestID, &item.TrackSlug, &messageID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request %s: %w", requestID, err)
	}
	item.MessageID = messageID.String
	return &item, nil
}

// ListByTrack returns the requests of a track ordered by request id.
func (r *Repository) ListByTrack(trackSlug string) ([]RequestItem, error) {
	return listByTrack(r.db, trackSlug)
}

// CountByTrack returns the number of mirrored requests per track.
func (r *Repository) CountByTrack() (map[string]int, error) {
	rows, err := r.db.Query(
		"SELECT track_slug, COUNT(*) FROM requests WHERE message_id IS NOT NULL GROUP BY track_slug",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count requests: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			slug  string
			count int
		)
		if err := rows.Scan(&slug, &count); err != nil {
			return nil, fmt.Errorf("failed to scan request count: %w", err)
		}
		counts[slug] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating request counts: %w", err)
	}
	return counts, nil
}

type querier interface {
	Query(query string, args ...interface{}) (*sql.Rows, error)
}

func listByTrack(q querier, trackSlug string) ([]RequestItem, error) {
	rows, err := q.Query(
		"SELECT request_id, track_slug, message_id FROM requests WHERE track_slug = ? ORDER BY request_id",
		trackSlug,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests for %s: %w", trackSlug, err)
	}
	defer rows.Close()

	var items []RequestItem
	for rows.Next() {
		var (
			item      RequestItem
			messageID sql.NullString
		)
		if err := rows.Scan(&item.RequestID, &item.TrackSlug, &messageID); err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		item.MessageID = messageID.String
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating requests: %w", err)
	}
	return items, nil
}
