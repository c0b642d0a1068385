package events

import (
	"github.com/princekumarofficial/plate-console/internal/types"
)

// Publisher interface for publishing events
type Publisher interface {
	PublishSubmission(eventType types.EventType, event *types.SubmissionEvent) error
}

// EventPublisher implements the Publisher interface
type EventPublisher struct {
	hub WebSocketHub
}

// WebSocketHub interface for the WebSocket hub
type WebSocketHub interface {
	BroadcastToSession(sessionID string, event *types.Event)
	IsSessionConnected(sessionID string) bool
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(hub WebSocketHub) *EventPublisher {
	return &EventPublisher{
		hub: hub,
	}
}

// PublishSubmission sends a submission lifecycle event to the session that
// made the submission
func (p *EventPublisher) PublishSubmission(eventType types.EventType, event *types.SubmissionEvent) error {
	if event.SessionID == "" {
		return nil
	}

	// Only send if the session has a socket open
	if !p.hub.IsSessionConnected(event.SessionID) {
		return nil
	}

	p.hub.BroadcastToSession(event.SessionID, types.NewEvent(eventType, event))

	return nil
}
