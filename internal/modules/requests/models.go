// Package requests persists which mirror message mirrors each source request,
// and owns the encoding of a request into message text.
package requests

// RequestItem maps a source request to its mirror message.
type RequestItem struct {
	RequestID string `json:"request_id"`
	TrackSlug string `json:"track_slug"`
	MessageID string `json:"message_id,omitempty"` // empty while not mirrored
}

// Mirrored reports whether a message exists for the request.
func (r RequestItem) Mirrored() bool {
	return r.MessageID != ""
}
