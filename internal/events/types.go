// Package events provides the in-process event bus used by the status surface.
package events

import "time"

// EventType represents different event types
type EventType string

const (
	TaskExecuted    EventType = "TASK_EXECUTED"
	TrackPolled     EventType = "TRACK_POLLED"
	BackupCompleted EventType = "BACKUP_COMPLETED"
	ErrorOccurred   EventType = "ERROR_OCCURRED"
)

// Event represents a system event with typed data
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Module    string    `json:"module"`
	Data      EventData `json:"data,omitempty"`
}
