package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/princekumarofficial/plate-console/internal/types"
)

type Memory struct {
	mu          sync.RWMutex
	submissions []types.Submission
}

func New() *Memory {
	return &Memory{}
}

func (m *Memory) RecordSubmission(_ context.Context, submission *types.Submission) error {
	if submission.ID == "" {
		submission.ID = uuid.New().String()
	}
	if submission.CreatedAt.IsZero() {
		submission.CreatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.submissions = append(m.submissions, *submission)
	return nil
}

func (m *Memory) ListSubmissions(_ context.Context, limit int) ([]types.Submission, error) {
	m.mu.RLock()
	out := make([]types.Submission, len(m.submissions))
	copy(out, m.submissions)
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) DeleteSubmissionsBefore(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.submissions[:0]
	var removed int64
	for _, s := range m.submissions {
		if s.CreatedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, s)
	}
	m.submissions = kept

	return removed, nil
}
