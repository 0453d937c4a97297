package api

import (
	"context"

	"github.com/savefood/backoffice_core/models"
	"github.com/savefood/backoffice_core/querycache"
)

const walletPath = "/v1/wallet/transactions"

// WalletService is read-only: transactions are produced by settlements on
// the server, so the screens only list them. It still goes through the query
// cache so paging back and forth does not refetch.
type WalletService struct {
	cache *querycache.Cache[models.WalletTransaction]
}

func NewWalletService(client *Client, cfg querycache.Config) *WalletService {
	fetcher := NewPageFetcher[models.WalletTransaction](client, walletPath)
	cache := querycache.New("wallet", fetcher, func(tx models.WalletTransaction) string { return tx.ID }, cfg)
	return &WalletService{cache: cache}
}

func (s *WalletService) List(ctx context.Context, req models.PageRequest) (models.PaginatedResponse[models.WalletTransaction], error) {
	return s.cache.Get(ctx, querycache.NewQueryKey("wallet", req))
}

// Refresh drops cached pages after a known balance change (e.g. a
// settlement notification) so the next read hits the server.
func (s *WalletService) Refresh() {
	s.cache.InvalidateAll()
}
