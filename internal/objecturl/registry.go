// Package objecturl hands out short-lived reference URLs for processed
// media so a page can address a result blob like any other resource.
package objecturl

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Prefix is the path under which registry URLs are served
const Prefix = "/media/"

// ErrNotFound is returned for unknown, revoked or expired ids.
var ErrNotFound = errors.New("objecturl: not found")

// Blob is the payload addressed by an object URL
type Blob struct {
	ContentType string
	Body        []byte
	CreatedAt   time.Time
}

// Store is the backend holding blobs by id.
type Store interface {
	Put(ctx context.Context, id string, blob *Blob) error
	// Get returns ErrNotFound when the id is unknown.
	Get(ctx context.Context, id string) (*Blob, error)
	// Delete removes the blob; deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error
	// Sweep removes blobs older than maxAge and reports how many went.
	Sweep(ctx context.Context, maxAge time.Duration) (int, error)
}

type Registry struct {
	store Store
	now   func() time.Time
}

func NewRegistry(store Store) *Registry {
	return &Registry{
		store: store,
		now:   time.Now,
	}
}

// Create stores body and returns the URL that resolves to it
func (r *Registry) Create(ctx context.Context, body []byte, contentType string) (string, error) {
	id := uuid.New().String()

	blob := &Blob{
		ContentType: contentType,
		Body:        body,
		CreatedAt:   r.now().UTC(),
	}
	if err := r.store.Put(ctx, id, blob); err != nil {
		return "", fmt.Errorf("failed to store blob: %w", err)
	}

	return Prefix + id, nil
}

// Open returns the blob for an id (not a full URL)
func (r *Registry) Open(ctx context.Context, id string) (*Blob, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return r.store.Get(ctx, id)
}

// Revoke releases the blob behind url. Empty, foreign and already revoked
// URLs are ignored.
func (r *Registry) Revoke(ctx context.Context, url string) error {
	id, ok := ID(url)
	if !ok {
		return nil
	}
	if err := r.store.Delete(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to revoke %s: %w", url, err)
	}
	return nil
}

// Sweep drops blobs older than maxAge from the backend
func (r *Registry) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	return r.store.Sweep(ctx, maxAge)
}

// ID extracts the blob id from a registry URL
func ID(url string) (string, bool) {
	if !strings.HasPrefix(url, Prefix) {
		return "", false
	}
	id := strings.TrimPrefix(url, Prefix)
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}
