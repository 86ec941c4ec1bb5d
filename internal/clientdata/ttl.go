package clientdata

import "time"

// TTL constants for cached responses.
const (
	// TTLTrackList covers the source's track list; tracks are added a few times a year.
	TTLTrackList = 24 * time.Hour
)
