package discord

import "fmt"

// Channel types and message flags used by the mirror.
const (
	channelTypePublicThread = 11
	messageTypeThreadStart  = 21
	flagSuppressEmbeds      = 1 << 2
	// autoArchiveMinutes is the longest auto archive window Discord offers (7 days).
	autoArchiveMinutes = 10080
	pageSize           = 100
)

// Discord JSON error codes.
const (
	codeUnknownChannel = 10003
	codeUnknownMessage = 10008
)

type threadMetadata struct {
	Archived         bool   `json:"archived"`
	Locked           bool   `json:"locked"`
	ArchiveTimestamp string `json:"archive_timestamp"`
}

type channel struct {
	ID             string          `json:"id"`
	Type           int             `json:"type"`
	Name           string          `json:"name"`
	ParentID       string          `json:"parent_id"`
	ThreadMetadata *threadMetadata `json:"thread_metadata,omitempty"`
}

func (c channel) archived() bool {
	return c.ThreadMetadata != nil && c.ThreadMetadata.Archived
}

type threadList struct {
	Threads []channel `json:"threads"`
	HasMore bool      `json:"has_more"`
}

type user struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Bot      bool   `json:"bot"`
}

type message struct {
	ID      string `json:"id"`
	Type    int    `json:"type"`
	Content string `json:"content"`
	Author  user   `json:"author"`
}

type createMessage struct {
	Content         string          `json:"content"`
	Flags           int             `json:"flags,omitempty"`
	AllowedMentions allowedMentions `json:"allowed_mentions"`
}

type allowedMentions struct {
	Parse []string `json:"parse"`
}

type createThread struct {
	Name                string `json:"name"`
	Type                int    `json:"type"`
	AutoArchiveDuration int    `json:"auto_archive_duration"`
}

// APIError is a non-2xx response from the Discord API.
type APIError struct {
	Status     int
	Code       int     `json:"code"`
	Message    string  `json:"message"`
	RetryAfter float64 `json:"retry_after"`
}

func (e *APIError) Error() string {
	if e.Status == 429 {
		return fmt.Sprintf("discord API rate limited (retry after %.2fs)", e.RetryAfter)
	}
	return fmt.Sprintf("discord API returned status %d (code %d): %s", e.Status, e.Code, e.Message)
}
