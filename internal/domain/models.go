// Package domain holds the types shared between the sync core and its external collaborators.
package domain

import "time"

// TrackInfo describes one track (category) as reported by the source system.
type TrackInfo struct {
	Slug  string `json:"slug"`
	Title string `json:"title"`
}

// SourceRequest is one outstanding mentoring request as reported by the source.
type SourceRequest struct {
	ID            string    `json:"uuid"`
	TrackSlug     string    `json:"track_slug"`
	TrackTitle    string    `json:"track_title"`
	ExerciseTitle string    `json:"exercise_title"`
	StudentHandle string    `json:"student_handle"`
	Status        string    `json:"status,omitempty"`
	URL           string    `json:"url"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// MirrorMessage is one message found in a track thread that encodes a request id.
type MirrorMessage struct {
	MessageID string `json:"message_id"`
	RequestID string `json:"request_id"`
}
