package linkresolver

import (
	"context"

	"github.com/roach88/wikisync/internal/restrict"
	"github.com/roach88/wikisync/internal/wiki"
)

// PageStore is the subset of the database store used when resolving links
// without going through the HTTP API.
type PageStore interface {
	ListImages(ctx context.Context) ([]wiki.Image, error)
	ListPages(ctx context.Context) ([]wiki.Page, error)
	GetPage(ctx context.Context, id int64) (wiki.Page, error)
	UpdatePageContent(ctx context.Context, id int64, content, editedBy, summary string) (wiki.Page, wiki.PageVersion, error)
}

// StoreBackend adapts a PageStore to Backend.
type StoreBackend struct {
	store PageStore
}

// NewStoreBackend creates a Backend that reads and writes the database
// directly.
func NewStoreBackend(s PageStore) *StoreBackend {
	return &StoreBackend{store: s}
}

func (b *StoreBackend) ListImages(ctx context.Context) ([]wiki.Image, error) {
	return b.store.ListImages(ctx)
}

func (b *StoreBackend) ListPages(ctx context.Context) ([]wiki.PageSummary, error) {
	pages, err := b.store.ListPages(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]wiki.PageSummary, len(pages))
	for i, p := range pages {
		out[i] = p.Summary()
	}
	return out, nil
}

func (b *StoreBackend) FetchPage(ctx context.Context, id int64) (wiki.Page, error) {
	return b.store.GetPage(ctx, id)
}

// UpdatePage saves content through the versioning save path. Placeholders
// are resolved first, as on every save.
func (b *StoreBackend) UpdatePage(ctx context.Context, id int64, content, editedBy, summary string) error {
	_, _, err := b.store.UpdatePageContent(ctx, id, restrict.ResolveForSave(content), editedBy, summary)
	return err
}
