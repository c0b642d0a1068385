package storage

import (
	"context"
	"time"

	"github.com/princekumarofficial/plate-console/internal/types"
)

// Storage records the history of submissions made through the console
type Storage interface {
	RecordSubmission(ctx context.Context, submission *types.Submission) error
	// ListSubmissions returns the most recent submissions first.
	ListSubmissions(ctx context.Context, limit int) ([]types.Submission, error)
	DeleteSubmissionsBefore(ctx context.Context, before time.Time) (int64, error)
}
