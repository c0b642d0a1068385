// Package upload implements the upload-and-render flow: send the selected
// file to the detection endpoint for its media kind and show the processed
// result, or report the service's error.
package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/princekumarofficial/plate-console/internal/events"
	"github.com/princekumarofficial/plate-console/internal/metrics"
	"github.com/princekumarofficial/plate-console/internal/objecturl"
	"github.com/princekumarofficial/plate-console/internal/storage"
	"github.com/princekumarofficial/plate-console/internal/types"
	"github.com/princekumarofficial/plate-console/internal/types/media"
	"github.com/princekumarofficial/plate-console/internal/utils/response"
)

var (
	ErrNoFile        = errors.New("no file selected")
	ErrInvalidUpload = errors.New("invalid upload")
	ErrInFlight      = errors.New("a submission is already in progress")
)

// Event is the submit event that triggered the handler
type Event interface {
	PreventDefault()
}

// FileInput is the control holding the user's selected file
type FileInput interface {
	File() (*media.Upload, bool)
}

// Container displays the result element
type Container interface {
	Replace(el Element)
}

// Alerter shows a message to the user
type Alerter interface {
	Alert(message string)
}

type Detector interface {
	Detect(ctx context.Context, upload *media.Upload) (media.Result, error)
}

// Deps are the collaborators every handler needs
type Deps struct {
	Input     FileInput
	Container Container
	Alerter   Alerter
	Detector  Detector
	Registry  *objecturl.Registry
}

type Option func(*Handler)

// WithSession tags events and history with the session that owns the handler
func WithSession(id string) Option {
	return func(h *Handler) { h.sessionID = id }
}

func WithPublisher(p events.Publisher) Option {
	return func(h *Handler) { h.publisher = p }
}

func WithHistory(s storage.Storage) Option {
	return func(h *Handler) { h.history = s }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

type Handler struct {
	Deps

	sessionID string
	publisher events.Publisher
	history   storage.Storage
	metrics   *metrics.Metrics
	logger    *slog.Logger
	validate  *validator.Validate

	inFlight atomic.Bool

	mu      sync.Mutex
	current string
}

func New(deps Deps, opts ...Option) *Handler {
	h := &Handler{
		Deps:     deps,
		logger:   slog.Default(),
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Submit runs one submission. Service-reported failures are shown through
// the Alerter and are not returned as errors.
func (h *Handler) Submit(ctx context.Context, ev Event) error {
	ev.PreventDefault()

	if !h.inFlight.CompareAndSwap(false, true) {
		return ErrInFlight
	}
	defer h.inFlight.Store(false)

	file, ok := h.Input.File()
	if !ok || file == nil {
		h.alert(ErrNoFile.Error())
		return ErrNoFile
	}

	if err := h.validate.Struct(file); err != nil {
		message := err.Error()
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			message = response.ValidationError(verrs).Error
		}
		h.alert(message)
		return fmt.Errorf("%w: %s", ErrInvalidUpload, message)
	}

	kind := file.Kind()
	submission := &types.Submission{
		SessionID:   h.sessionID,
		Filename:    file.Filename,
		ContentType: file.ContentType,
		Kind:        kind,
		Endpoint:    media.Endpoint(kind),
	}
	h.publish(types.EventSubmissionStarted, submission, "")

	start := time.Now()
	result, err := h.Detector.Detect(ctx, file)
	submission.DurationMS = time.Since(start).Milliseconds()

	if err != nil {
		submission.Outcome = types.OutcomeError
		submission.Error = err.Error()
		h.finish(ctx, submission, "")
		h.alert(err.Error())
		return fmt.Errorf("submit %s: %w", file.Filename, err)
	}

	switch r := result.(type) {
	case *media.Success:
		url, err := h.swap(ctx, r)
		if err != nil {
			submission.Outcome = types.OutcomeError
			submission.Error = err.Error()
			h.finish(ctx, submission, "")
			h.alert(err.Error())
			return fmt.Errorf("submit %s: %w", file.Filename, err)
		}

		h.Container.Replace(ElementFor(kind, url))

		submission.Outcome = types.OutcomeSucceeded
		submission.Status = 200
		h.finish(ctx, submission, url)

	case *media.Failure:
		submission.Outcome = types.OutcomeFailed
		submission.Status = r.Status
		submission.Error = r.Message
		h.finish(ctx, submission, "")
		h.alert(r.Message)

	default:
		return fmt.Errorf("submit %s: unexpected result %T", file.Filename, result)
	}

	return nil
}

// swap acquires a URL for the new result and only then releases the one on
// display, so a failed store write leaves the current result intact.
func (h *Handler) swap(ctx context.Context, success *media.Success) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	url, err := h.Registry.Create(ctx, success.Body, success.ContentType)
	if err != nil {
		return "", err
	}
	h.metrics.ObjectURLAcquired()

	if err := h.release(ctx); err != nil {
		// The janitor sweep reclaims it
		h.logger.Warn("Failed to release previous object URL", slog.String("error", err.Error()))
	}
	h.current = url

	return url, nil
}

// release must be called with h.mu held
func (h *Handler) release(ctx context.Context) error {
	if h.current == "" {
		return nil
	}
	if err := h.Registry.Revoke(ctx, h.current); err != nil {
		return err
	}
	h.current = ""
	h.metrics.ObjectURLReleased()
	return nil
}

// Current returns the object URL on display, if any
func (h *Handler) Current() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.current
}

// Busy reports whether a submission is running
func (h *Handler) Busy() bool {
	return h.inFlight.Load()
}

// Close releases the object URL on display
func (h *Handler) Close(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.release(ctx)
}

func (h *Handler) alert(message string) {
	h.Alerter.Alert("Error: " + message)
}

func (h *Handler) publish(eventType types.EventType, s *types.Submission, url string) {
	if h.publisher == nil {
		return
	}
	err := h.publisher.PublishSubmission(eventType, &types.SubmissionEvent{
		SessionID: s.SessionID,
		Filename:  s.Filename,
		Kind:      s.Kind,
		ObjectURL: url,
		Error:     s.Error,
	})
	if err != nil {
		h.logger.Warn("Failed to publish submission event", slog.String("error", err.Error()))
	}
}

func (h *Handler) finish(ctx context.Context, s *types.Submission, url string) {
	eventType := types.EventSubmissionSucceeded
	if s.Outcome != types.OutcomeSucceeded {
		eventType = types.EventSubmissionFailed
	}
	h.publish(eventType, s, url)

	h.metrics.ObserveSubmission(string(s.Kind), string(s.Outcome), time.Duration(s.DurationMS)*time.Millisecond)

	h.logger.Info("Submission finished",
		slog.String("filename", s.Filename),
		slog.String("endpoint", s.Endpoint),
		slog.String("outcome", string(s.Outcome)),
		slog.Int64("duration_ms", s.DurationMS))

	if h.history == nil {
		return
	}
	if err := h.history.RecordSubmission(ctx, s); err != nil {
		h.logger.Error("Failed to record submission", slog.String("error", err.Error()))
	}
}
