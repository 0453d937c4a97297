package api

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/savefood/backoffice_core/models"
)

type ctxKey string

const (
	loadersKey = ctxKey("dataloaders")
)

// Loaders batch per-render entity lookups into single ids= requests. A
// detail panel that shows twenty orders' suppliers issues one GET instead
// of twenty.
type Loaders struct {
	orderLoader    *dataloader.Loader[string, *models.Order]
	supplierLoader *dataloader.Loader[string, *models.Supplier]
	productLoader  *dataloader.Loader[string, *models.Product]
}

// entityReader fetches a batch of entities through the listing endpoint's
// ids filter.
type entityReader[T any] struct {
	client *Client
	path   string
	idOf   func(*T) string
}

func (r *entityReader[T]) getByIds(ctx context.Context, ids []string) []*dataloader.Result[*T] {
	params := url.Values{}
	params.Set("ids", strings.Join(ids, ","))
	page, err := GetPageRaw[T](ctx, r.client, r.path, params.Encode())
	if err != nil {
		return handleError[*T](len(ids), err)
	}

	resultMap := make(map[string]*T, len(page.Content))
	for i := range page.Content {
		item := page.Content[i]
		resultMap[r.idOf(&item)] = &item
	}

	loaderResults := make([]*dataloader.Result[*T], 0, len(ids))
	for _, id := range ids {
		loaderResults = append(loaderResults, &dataloader.Result[*T]{Data: resultMap[id]})
	}
	return loaderResults
}

func handleError[T any](itemsLength int, err error) []*dataloader.Result[T] {
	result := make([]*dataloader.Result[T], itemsLength)
	for i := 0; i < itemsLength; i++ {
		result[i] = &dataloader.Result[T]{Error: err}
	}
	return result
}

// NewLoaders instantiates the data loaders for one request/render cycle.
func NewLoaders(client *Client) *Loaders {
	orderReader := &entityReader[models.Order]{client: client, path: ordersPath, idOf: func(o *models.Order) string { return o.ID }}
	supplierReader := &entityReader[models.Supplier]{client: client, path: "/v1/suppliers", idOf: func(s *models.Supplier) string { return s.ID }}
	productReader := &entityReader[models.Product]{client: client, path: "/v1/products", idOf: func(p *models.Product) string { return p.ID }}

	return &Loaders{
		orderLoader:    dataloader.NewBatchedLoader(orderReader.getByIds, dataloader.WithWait[string, *models.Order](time.Millisecond)),
		supplierLoader: dataloader.NewBatchedLoader(supplierReader.getByIds, dataloader.WithWait[string, *models.Supplier](time.Millisecond)),
		productLoader:  dataloader.NewBatchedLoader(productReader.getByIds, dataloader.WithWait[string, *models.Product](time.Millisecond)),
	}
}

// WithLoaders attaches loaders to ctx for the duration of a render cycle.
func WithLoaders(ctx context.Context, loaders *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey, loaders)
}

func For(ctx context.Context) *Loaders {
	return ctx.Value(loadersKey).(*Loaders)
}

func GetOrder(ctx context.Context, id string) (*models.Order, error) {
	return For(ctx).orderLoader.Load(ctx, id)()
}

func GetSupplier(ctx context.Context, id string) (*models.Supplier, error) {
	return For(ctx).supplierLoader.Load(ctx, id)()
}

func GetSuppliers(ctx context.Context, ids []string) ([]*models.Supplier, []error) {
	return For(ctx).supplierLoader.LoadMany(ctx, ids)()
}

func GetProduct(ctx context.Context, id string) (*models.Product, error) {
	return For(ctx).productLoader.Load(ctx, id)()
}
