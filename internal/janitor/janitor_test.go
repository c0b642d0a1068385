package janitor

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/princekumarofficial/plate-console/internal/objecturl"
	"github.com/princekumarofficial/plate-console/internal/storage/memory"
	"github.com/princekumarofficial/plate-console/internal/types"
)

type countingExpirer struct{ calls int }

func (e *countingExpirer) Expire(ctx context.Context, idle time.Duration) int {
	e.calls++
	return 0
}

func TestRunOnce(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	store := objecturl.NewMemoryStore()
	registry := objecturl.NewRegistry(store)
	registry.Create(ctx, []byte("fresh"), "image/png")

	history := memory.New()
	history.RecordSubmission(ctx, &types.Submission{Filename: "old.jpg", CreatedAt: now.Add(-48 * time.Hour)})
	history.RecordSubmission(ctx, &types.Submission{Filename: "new.jpg", CreatedAt: now})

	sessions := &countingExpirer{}
	j := New(registry, time.Minute, time.Hour,
		WithHistory(history, 24*time.Hour),
		WithSessions(sessions),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	j.now = func() time.Time { return now }

	j.RunOnce(ctx)

	if store.Len() != 1 {
		t.Fatalf("Expected the fresh blob to survive, got %d blobs", store.Len())
	}
	list, _ := history.ListSubmissions(ctx, 10)
	if len(list) != 1 || list[0].Filename != "new.jpg" {
		t.Fatalf("Expected only new.jpg to remain, got %+v", list)
	}
	if sessions.calls != 1 {
		t.Fatalf("Expected sessions to be expired once, got %d", sessions.calls)
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	j := New(objecturl.NewRegistry(objecturl.NewMemoryStore()), 10*time.Millisecond, time.Hour,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	done := make(chan struct{})
	go func() {
		j.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Janitor did not stop after cancel")
	}
}
