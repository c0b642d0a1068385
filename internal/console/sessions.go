// Package console keeps one upload handler per browser session for the web
// console.
package console

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/princekumarofficial/plate-console/internal/objecturl"
	"github.com/princekumarofficial/plate-console/internal/types/media"
	"github.com/princekumarofficial/plate-console/internal/upload"
)

// Session binds a page to the handler that fills it
type Session struct {
	ID      string
	Page    *Page
	Handler *upload.Handler

	submitMu sync.Mutex
	lastSeen time.Time
}

// formSubmit is the submit event of a posted form. The browser already
// stays on the console, since the form handler redirects back to it.
type formSubmit struct{}

func (formSubmit) PreventDefault() {}

type Sessions struct {
	detector upload.Detector
	registry *objecturl.Registry
	opts     []upload.Option

	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewSessions creates a session set whose handlers share detector,
// registry and opts.
func NewSessions(detector upload.Detector, registry *objecturl.Registry, opts ...upload.Option) *Sessions {
	return &Sessions{
		detector: detector,
		registry: registry,
		opts:     opts,
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Get returns the session for id, creating it on first use
func (s *Sessions) Get(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		sess.lastSeen = s.now()
		return sess
	}

	page := &Page{}
	opts := append([]upload.Option{upload.WithSession(id)}, s.opts...)
	sess := &Session{
		ID:   id,
		Page: page,
		Handler: upload.New(upload.Deps{
			Input:     page,
			Container: page,
			Alerter:   page,
			Detector:  s.detector,
			Registry:  s.registry,
		}, opts...),
		lastSeen: s.now(),
	}
	s.sessions[id] = sess
	return sess
}

// Submit stages file on the session's page and runs the handler. A nil
// file submits an empty form.
func (s *Sessions) Submit(ctx context.Context, id string, file *media.Upload) error {
	sess, err := s.acquire(id)
	if err != nil {
		return err
	}
	defer sess.submitMu.Unlock()

	if file != nil {
		sess.Page.Select(file)
	}
	err = sess.Handler.Submit(ctx, formSubmit{})
	if errors.Is(err, upload.ErrInFlight) {
		sess.Page.clear()
	}
	return err
}

// acquire returns the live session for id with its submit lock held
func (s *Sessions) acquire(id string) (*Session, error) {
	for {
		sess := s.Get(id)
		if sess.submitMu.TryLock() {
			if s.live(sess) {
				return sess, nil
			}
			// Expire dropped it between Get and the lock
			sess.submitMu.Unlock()
			continue
		}
		if s.live(sess) {
			return nil, upload.ErrInFlight
		}
	}
}

func (s *Sessions) live(sess *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sessions[sess.ID] == sess
}

// Len returns the number of live sessions
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.sessions)
}

// Expire closes sessions idle for longer than idle, releasing the result
// they display. Sessions with a submission in progress are kept.
func (s *Sessions) Expire(ctx context.Context, idle time.Duration) int {
	cutoff := s.now().Add(-idle)

	s.mu.Lock()
	var stale []*Session
	for id, sess := range s.sessions {
		if !sess.lastSeen.Before(cutoff) {
			continue
		}
		if !sess.submitMu.TryLock() {
			continue
		}
		stale = append(stale, sess)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, sess := range stale {
		if err := sess.Handler.Close(ctx); err != nil {
			slog.Warn("Failed to close idle session",
				slog.String("session_id", sess.ID),
				slog.String("error", err.Error()))
		}
		sess.submitMu.Unlock()
	}
	return len(stale)
}

// Close releases every session's result
func (s *Sessions) Close(ctx context.Context) error {
	s.mu.Lock()
	all := make([]*Session, 0, len(s.sessions))
	for id, sess := range s.sessions {
		all = append(all, sess)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	var errs []error
	for _, sess := range all {
		if err := sess.Handler.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
