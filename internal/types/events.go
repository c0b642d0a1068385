package types

import (
	"time"

	"github.com/princekumarofficial/plate-console/internal/types/media"
)

// EventType represents the type of real-time event
type EventType string

const (
	EventSubmissionStarted   EventType = "submission.started"
	EventSubmissionSucceeded EventType = "submission.succeeded"
	EventSubmissionFailed    EventType = "submission.failed"
)

// Event represents a real-time event that can be sent over WebSocket
type Event struct {
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
}

// SubmissionEvent describes one step of a submission's lifecycle
type SubmissionEvent struct {
	SessionID string     `json:"session_id"`
	Filename  string     `json:"filename"`
	Kind      media.Kind `json:"kind"`
	ObjectURL string     `json:"object_url,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, data interface{}) *Event {
	return &Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
