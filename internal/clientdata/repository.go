// Package clientdata caches external API responses in SQLite so the mirror
// can start, and keep discovering tracks, while an upstream API is down.
package clientdata

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Table names a cache table. Every table has the columns key, data, expires_at.
type Table string

// TableTracks caches the source's track list.
const TableTracks Table = "exercism_tracks"

// AllTables lists every cache table swept by the cleanup job.
var AllTables = []Table{TableTracks}

// Repository reads and writes cached payloads.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository creates a new client data repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// known guards the table name, which is interpolated into SQL.
func known(table Table) error {
	for _, t := range AllTables {
		if t == table {
			return nil
		}
	}
	return fmt.Errorf("unknown cache table %q", table)
}

// Store saves data as JSON, valid until now + ttl.
func (r *Repository) Store(table Table, key string, data interface{}, ttl time.Duration) error {
	if err := known(table); err != nil {
		return err
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", table, key, err)
	}

	_, err = r.db.Exec(
		fmt.Sprintf(`INSERT INTO %s (key, data, expires_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET data = excluded.data, expires_at = excluded.expires_at`, table),
		key, string(payload), r.now().Add(ttl).Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store %s/%s: %w", table, key, err)
	}
	return nil
}

// GetIfFresh returns the cached payload if it has not expired.
// A missing or expired entry yields nil, nil.
func (r *Repository) GetIfFresh(table Table, key string) (json.RawMessage, error) {
	data, expiresAt, err := r.lookup(table, key)
	if err != nil || data == nil {
		return nil, err
	}
	if expiresAt <= r.now().Unix() {
		return nil, nil
	}
	return data, nil
}

// Get returns the cached payload even if it has expired, for use when the
// upstream API fails. A missing entry yields nil, nil.
func (r *Repository) Get(table Table, key string) (json.RawMessage, error) {
	data, _, err := r.lookup(table, key)
	return data, err
}

func (r *Repository) lookup(table Table, key string) (json.RawMessage, int64, error) {
	if err := known(table); err != nil {
		return nil, 0, err
	}

	var (
		data      string
		expiresAt int64
	)
	err := r.db.QueryRow(
		fmt.Sprintf("SELECT data, expires_at FROM %s WHERE key = ?", table), key,
	).Scan(&data, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read %s/%s: %w", table, key, err)
	}
	return json.RawMessage(data), expiresAt, nil
}

// DeleteExpired removes the expired entries of one table and returns how many went.
func (r *Repository) DeleteExpired(table Table) (int64, error) {
	if err := known(table); err != nil {
		return 0, err
	}

	res, err := r.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE expires_at <= ?", table), r.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep %s: %w", table, err)
	}
	return res.RowsAffected()
}

// DeleteAllExpired sweeps every table. Counts gathered before an error are returned with it.
func (r *Repository) DeleteAllExpired() (map[Table]int64, error) {
	swept := make(map[Table]int64, len(AllTables))
	for _, table := range AllTables {
		n, err := r.DeleteExpired(table)
		if err != nil {
			return swept, err
		}
		swept[table] = n
	}
	return swept, nil
}
