package api

import (
	"context"

	"github.com/savefood/backoffice_core/models"
	"github.com/savefood/backoffice_core/querycache"
)

// PageFetcher plugs a listing endpoint into a query cache: the cache's key
// parameters already carry the canonical query string, so a refetch is a
// straight GET.
type PageFetcher[T any] struct {
	client *Client
	path   string
}

func NewPageFetcher[T any](client *Client, path string) *PageFetcher[T] {
	return &PageFetcher[T]{client: client, path: path}
}

func (f *PageFetcher[T]) FetchPage(ctx context.Context, key querycache.QueryKey) (models.PaginatedResponse[T], error) {
	return GetPageRaw[T](ctx, f.client, f.path, key.Params)
}
