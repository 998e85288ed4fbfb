package downloads

import (
	"context"
	"fmt"
	"io"

	"filemart/internal/models"
)

//go:generate mockgen -destination=mock_resolver.go -package=downloads . FileResolver

// FileResolver turns a file reference into something the HTTP layer can
// deliver.
type FileResolver interface {
	Resolve(ctx context.Context, file models.FileRef) (*Delivery, error)
}

// Delivery is either a redirect to RedirectURL or a stream read from Reader.
// The caller closes Reader.
type Delivery struct {
	RedirectURL string
	Reader      io.ReadCloser
	Name        string
	Size        int64
	ContentType string
}

func (d *Delivery) IsRedirect() bool {
	return d.RedirectURL != ""
}

// MultiResolver dispatches on FileRef.Storage. An empty storage kind means
// local.
type MultiResolver struct {
	resolvers map[string]FileResolver
}

func NewMultiResolver() *MultiResolver {
	return &MultiResolver{resolvers: make(map[string]FileResolver)}
}

func (m *MultiResolver) Register(storage string, r FileResolver) *MultiResolver {
	m.resolvers[storage] = r
	return m
}

func (m *MultiResolver) Resolve(ctx context.Context, file models.FileRef) (*Delivery, error) {
	storage := file.Storage
	if storage == "" {
		storage = models.StorageLocal
	}
	r, ok := m.resolvers[storage]
	if !ok {
		return nil, fmt.Errorf("no resolver for storage %q", storage)
	}
	return r.Resolve(ctx, file)
}
