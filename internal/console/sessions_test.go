package console

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/princekumarofficial/plate-console/internal/objecturl"
	"github.com/princekumarofficial/plate-console/internal/types/media"
	"github.com/princekumarofficial/plate-console/internal/upload"
)

type detectorFunc func(ctx context.Context, u *media.Upload) (media.Result, error)

func (f detectorFunc) Detect(ctx context.Context, u *media.Upload) (media.Result, error) {
	return f(ctx, u)
}

func succeed(ctx context.Context, u *media.Upload) (media.Result, error) {
	return &media.Success{Body: []byte("processed"), ContentType: u.ContentType, Kind: u.Kind()}, nil
}

func newUpload(name, contentType string) *media.Upload {
	return &media.Upload{Filename: name, ContentType: contentType, Body: strings.NewReader("raw")}
}

func TestSessions_SubmitRendersResult(t *testing.T) {
	store := objecturl.NewMemoryStore()
	sessions := NewSessions(detectorFunc(succeed), objecturl.NewRegistry(store))
	ctx := context.Background()

	if err := sessions.Submit(ctx, "s1", newUpload("car.jpg", "image/jpeg")); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	view := sessions.Get("s1").Page.Render()
	if view.Element == nil || view.Element.Tag != "img" {
		t.Fatalf("Expected an img element, got %+v", view.Element)
	}
	if !strings.HasPrefix(view.Element.Src, objecturl.Prefix) {
		t.Fatalf("Expected an object URL, got %s", view.Element.Src)
	}
	if len(view.Alerts) != 0 {
		t.Fatalf("Expected no alerts, got %v", view.Alerts)
	}

	// A second session gets its own page
	if sessions.Get("s2").Page.Render().Element != nil {
		t.Fatal("Expected a fresh session to have an empty container")
	}
}

func TestSessions_EmptyFormAlertsOnce(t *testing.T) {
	sessions := NewSessions(detectorFunc(succeed), objecturl.NewRegistry(objecturl.NewMemoryStore()))

	err := sessions.Submit(context.Background(), "s1", nil)
	if !errors.Is(err, upload.ErrNoFile) {
		t.Fatalf("Expected ErrNoFile, got %v", err)
	}

	page := sessions.Get("s1").Page
	if alerts := page.Render().Alerts; len(alerts) != 1 || alerts[0] != "Error: no file selected" {
		t.Fatalf("Unexpected alerts: %v", alerts)
	}
	if alerts := page.Render().Alerts; len(alerts) != 0 {
		t.Fatalf("Expected alerts to be drained, got %v", alerts)
	}
}

func TestSessions_FileIsConsumed(t *testing.T) {
	calls := 0
	detector := detectorFunc(func(ctx context.Context, u *media.Upload) (media.Result, error) {
		calls++
		return succeed(ctx, u)
	})
	sessions := NewSessions(detector, objecturl.NewRegistry(objecturl.NewMemoryStore()))
	ctx := context.Background()

	sessions.Submit(ctx, "s1", newUpload("clip.mp4", "video/mp4"))
	err := sessions.Submit(ctx, "s1", nil)

	if !errors.Is(err, upload.ErrNoFile) {
		t.Fatalf("Expected ErrNoFile on resubmit, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("Expected 1 detector call, got %d", calls)
	}
}

func TestSessions_ConcurrentSubmitIsRejected(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	detector := detectorFunc(func(ctx context.Context, u *media.Upload) (media.Result, error) {
		close(entered)
		<-release
		return succeed(ctx, u)
	})
	sessions := NewSessions(detector, objecturl.NewRegistry(objecturl.NewMemoryStore()))
	ctx := context.Background()

	done := make(chan error)
	go func() { done <- sessions.Submit(ctx, "s1", newUpload("a.jpg", "image/jpeg")) }()
	<-entered

	if err := sessions.Submit(ctx, "s1", newUpload("b.jpg", "image/jpeg")); !errors.Is(err, upload.ErrInFlight) {
		t.Fatalf("Expected ErrInFlight, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

func TestSessions_ExpireAndClose(t *testing.T) {
	store := objecturl.NewMemoryStore()
	sessions := NewSessions(detectorFunc(succeed), objecturl.NewRegistry(store))
	ctx := context.Background()

	now := time.Now()
	sessions.now = func() time.Time { return now }
	sessions.Submit(ctx, "old", newUpload("a.jpg", "image/jpeg"))

	now = now.Add(time.Hour)
	sessions.Submit(ctx, "new", newUpload("b.jpg", "image/jpeg"))

	if n := sessions.Expire(ctx, 30*time.Minute); n != 1 {
		t.Fatalf("Expected 1 expired session, got %d", n)
	}
	if store.Len() != 1 {
		t.Fatalf("Expected 1 live blob after expiry, got %d", store.Len())
	}

	if err := sessions.Close(ctx); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if store.Len() != 0 || sessions.Len() != 0 {
		t.Fatalf("Expected everything released, got %d blobs and %d sessions", store.Len(), sessions.Len())
	}
}

func TestSessions_ExpireSkipsSubmittingSession(t *testing.T) {
	store := objecturl.NewMemoryStore()
	sessions := NewSessions(detectorFunc(succeed), objecturl.NewRegistry(store))
	ctx := context.Background()

	now := time.Now()
	sessions.now = func() time.Time { return now }
	sess := sessions.Get("s1")

	// A submission holds the lock across the idle cutoff
	sess.submitMu.Lock()
	now = now.Add(time.Hour)
	if n := sessions.Expire(ctx, time.Minute); n != 0 {
		t.Fatalf("Expected a submitting session to be kept, expired %d", n)
	}
	sess.submitMu.Unlock()

	if n := sessions.Expire(ctx, time.Minute); n != 1 {
		t.Fatalf("Expected the idle session to expire, got %d", n)
	}
}

func TestSessions_SubmitAfterExpiryUsesFreshSession(t *testing.T) {
	store := objecturl.NewMemoryStore()
	sessions := NewSessions(detectorFunc(succeed), objecturl.NewRegistry(store))
	ctx := context.Background()

	now := time.Now()
	sessions.now = func() time.Time { return now }
	stale := sessions.Get("s1")

	now = now.Add(time.Hour)
	sessions.Expire(ctx, time.Minute)

	if err := sessions.Submit(ctx, "s1", newUpload("car.jpg", "image/jpeg")); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	fresh := sessions.Get("s1")
	if fresh == stale {
		t.Fatal("Expected the expired session to be replaced")
	}
	if fresh.Handler.Current() == "" || store.Len() != 1 {
		t.Fatalf("Expected the fresh session to hold the result, got %q and %d blobs", fresh.Handler.Current(), store.Len())
	}
	if stale.Handler.Current() != "" {
		t.Fatal("Expected the expired handler to hold nothing")
	}
}
