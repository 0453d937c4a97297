package api

import (
	"context"
	"fmt"

	"github.com/savefood/backoffice_core/models"
	"github.com/savefood/backoffice_core/querycache"
)

const ordersPath = "/v1/orders"

// OrderService is the list-and-mutate surface the order screens sit on.
// Reads go through the query cache; status actions (confirm, prepare, ship,
// cancel) all follow the same optimistic template, with the target status
// varying.
type OrderService struct {
	client *Client
	cache  *querycache.Cache[models.Order]
}

func NewOrderService(client *Client, cfg querycache.Config) *OrderService {
	fetcher := NewPageFetcher[models.Order](client, ordersPath)
	cache := querycache.New("orders", fetcher, func(o models.Order) string { return o.ID }, cfg)
	return &OrderService{client: client, cache: cache}
}

// Cache exposes the underlying query cache for view bindings.
func (s *OrderService) Cache() *querycache.Cache[models.Order] {
	return s.cache
}

func (s *OrderService) List(ctx context.Context, req models.PageRequest) (models.PaginatedResponse[models.Order], error) {
	return s.cache.Get(ctx, querycache.NewQueryKey("orders", req))
}

func (s *OrderService) Confirm(ctx context.Context, orderId string) error {
	return s.setStatus(ctx, orderId, models.OrderStatusConfirmed)
}

func (s *OrderService) Prepare(ctx context.Context, orderId string) error {
	return s.setStatus(ctx, orderId, models.OrderStatusPreparing)
}

func (s *OrderService) Ship(ctx context.Context, orderId string) error {
	return s.setStatus(ctx, orderId, models.OrderStatusShipped)
}

func (s *OrderService) Deliver(ctx context.Context, orderId string) error {
	return s.setStatus(ctx, orderId, models.OrderStatusDelivered)
}

func (s *OrderService) Cancel(ctx context.Context, orderId string) error {
	return s.setStatus(ctx, orderId, models.OrderStatusCancelled)
}

// setStatus applies the new status to every cached view of the order before
// the PATCH resolves; the cache rolls everything back if the server rejects
// the transition.
func (s *OrderService) setStatus(ctx context.Context, orderId string, status models.OrderStatus) error {
	apply := func(o models.Order) models.Order {
		o.Status = status
		return o
	}
	call := func(ctx context.Context) error {
		body := map[string]any{"status": status}
		return s.client.PatchJSON(ctx, fmt.Sprintf("%s/%s/status", ordersPath, orderId), body, nil)
	}
	return s.cache.Mutate(ctx, orderId, apply, call)
}
