package domain

import "context"

// SourceClient reads the source of truth (the mentoring request queue).
// Implementations return errors that KindOf classifies as transient.
type SourceClient interface {
	// ListRequests returns the outstanding requests for one track.
	ListRequests(ctx context.Context, track string) ([]SourceRequest, error)

	// ListTracks returns every track known to the source.
	ListTracks(ctx context.Context) ([]TrackInfo, error)
}

// MirrorClient manages the messages that mirror requests.
type MirrorClient interface {
	// SendMessage posts content to a thread and returns the new message id.
	SendMessage(ctx context.Context, threadID, content string) (string, error)

	// DeleteMessage removes a message. Deleting a message that is already gone succeeds.
	DeleteMessage(ctx context.Context, threadID, messageID string) error

	// ListMessages returns the thread's messages that encode a request id.
	ListMessages(ctx context.Context, threadID string) ([]MirrorMessage, error)

	// GetOrCreateThread returns the thread for a track, creating it when missing.
	GetOrCreateThread(ctx context.Context, trackSlug string) (string, error)
}
