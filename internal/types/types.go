package types

import (
	"time"

	"github.com/princekumarofficial/plate-console/internal/types/media"
)

type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeError     Outcome = "error"
)

// Submission is one recorded run of the upload handler
type Submission struct {
	ID          string     `json:"id"`
	SessionID   string     `json:"session_id"`
	Filename    string     `json:"filename"`
	ContentType string     `json:"content_type"`
	Kind        media.Kind `json:"kind"`
	Endpoint    string     `json:"endpoint"`
	Outcome     Outcome    `json:"outcome"`
	Status      int        `json:"status"`
	Error       string     `json:"error,omitempty"`
	DurationMS  int64      `json:"duration_ms"`
	CreatedAt   time.Time  `json:"created_at"`
}
