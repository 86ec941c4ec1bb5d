package events

import "time"

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// TaskExecutedData describes one finished worker iteration
type TaskExecutedData struct {
	TaskID    string        `json:"task_id"`
	Kind      string        `json:"kind"`
	TrackSlug string        `json:"track_slug"`
	RequestID string        `json:"request_id,omitempty"`
	Outcome   string        `json:"outcome"` // success, failure or dropped
	Attempts  int           `json:"attempts"`
	Duration  time.Duration `json:"duration_ns"`
	Error     string        `json:"error,omitempty"`
}

// EventType returns the event type for TaskExecutedData
func (d *TaskExecutedData) EventType() EventType {
	return TaskExecuted
}

// TrackPolledData describes a successful source poll
type TrackPolledData struct {
	TrackSlug    string        `json:"track_slug"`
	Requests     int           `json:"requests"`
	NewRequests  int           `json:"new_requests"`
	PollInterval time.Duration `json:"poll_interval_ns"`
	NextPoll     time.Time     `json:"next_poll"`
}

// EventType returns the event type for TrackPolledData
func (d *TrackPolledData) EventType() EventType {
	return TrackPolled
}

// BackupCompletedData describes an uploaded database backup
type BackupCompletedData struct {
	Key       string `json:"key"`
	SizeBytes int64  `json:"size_bytes"`
	Rotated   int    `json:"rotated"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType {
	return BackupCompleted
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}
