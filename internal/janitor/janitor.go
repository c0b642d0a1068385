// Package janitor periodically drops expired object URLs, idle console
// sessions and old submission history.
package janitor

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper drops blobs older than maxAge
type Sweeper interface {
	Sweep(ctx context.Context, maxAge time.Duration) (int, error)
}

// Pruner deletes history recorded before a cutoff
type Pruner interface {
	DeleteSubmissionsBefore(ctx context.Context, before time.Time) (int64, error)
}

// Expirer closes sessions idle for longer than idle
type Expirer interface {
	Expire(ctx context.Context, idle time.Duration) int
}

type Janitor struct {
	interval  time.Duration
	maxAge    time.Duration
	retention time.Duration

	blobs    Sweeper
	history  Pruner
	sessions Expirer

	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Janitor)

// WithHistory prunes submissions older than retention. A zero retention
// keeps history forever.
func WithHistory(p Pruner, retention time.Duration) Option {
	return func(j *Janitor) {
		j.history = p
		j.retention = retention
	}
}

// WithSessions closes console sessions idle for longer than the blob max age
func WithSessions(e Expirer) Option {
	return func(j *Janitor) { j.sessions = e }
}

func WithLogger(l *slog.Logger) Option {
	return func(j *Janitor) { j.logger = l }
}

func New(blobs Sweeper, interval, maxAge time.Duration, opts ...Option) *Janitor {
	j := &Janitor{
		interval: interval,
		maxAge:   maxAge,
		blobs:    blobs,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Start runs a pass immediately and then on every tick until ctx is done
func (j *Janitor) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("Janitor started", "interval", j.interval.String())

	j.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("Janitor shutting down")
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single cleanup pass
func (j *Janitor) RunOnce(ctx context.Context) {
	startTime := time.Now()

	var expired int
	if j.sessions != nil && j.maxAge > 0 {
		expired = j.sessions.Expire(ctx, j.maxAge)
	}

	var swept int
	if j.maxAge > 0 {
		n, err := j.blobs.Sweep(ctx, j.maxAge)
		if err != nil {
			j.logger.Error("Failed to sweep object URLs", "error", err.Error())
		}
		swept = n
	}

	var pruned int64
	if j.history != nil && j.retention > 0 {
		n, err := j.history.DeleteSubmissionsBefore(ctx, j.now().Add(-j.retention))
		if err != nil {
			j.logger.Error("Failed to prune history", "error", err.Error())
		}
		pruned = n
	}

	duration := time.Since(startTime)
	if expired+swept > 0 || pruned > 0 {
		j.logger.Info("Completed cleanup",
			"sessions_expired", expired,
			"objects_swept", swept,
			"submissions_pruned", pruned,
			"duration_ms", duration.Milliseconds())
	}
}
