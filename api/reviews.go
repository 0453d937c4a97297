package api

import (
	"context"
	"fmt"

	"github.com/savefood/backoffice_core/models"
	"github.com/savefood/backoffice_core/querycache"
)

const reviewsPath = "/v1/reviews"

// ReviewService backs the review management screen. Replying and hiding are
// optimistic: the list shows the new state immediately and reverts if the
// server rejects the write.
type ReviewService struct {
	client *Client
	cache  *querycache.Cache[models.Review]
}

func NewReviewService(client *Client, cfg querycache.Config) *ReviewService {
	fetcher := NewPageFetcher[models.Review](client, reviewsPath)
	cache := querycache.New("reviews", fetcher, func(r models.Review) string { return r.ID }, cfg)
	return &ReviewService{client: client, cache: cache}
}

func (s *ReviewService) List(ctx context.Context, req models.PageRequest) (models.PaginatedResponse[models.Review], error) {
	return s.cache.Get(ctx, querycache.NewQueryKey("reviews", req))
}

func (s *ReviewService) Reply(ctx context.Context, reviewId string, reply string) error {
	apply := func(r models.Review) models.Review {
		r.Reply = reply
		return r
	}
	call := func(ctx context.Context) error {
		body := map[string]any{"reply": reply}
		return s.client.PostJSON(ctx, fmt.Sprintf("%s/%s/reply", reviewsPath, reviewId), body, nil)
	}
	return s.cache.Mutate(ctx, reviewId, apply, call)
}

func (s *ReviewService) Hide(ctx context.Context, reviewId string, hidden bool) error {
	apply := func(r models.Review) models.Review {
		r.Hidden = hidden
		return r
	}
	call := func(ctx context.Context) error {
		body := map[string]any{"hidden": hidden}
		return s.client.PatchJSON(ctx, fmt.Sprintf("%s/%s/visibility", reviewsPath, reviewId), body, nil)
	}
	return s.cache.Mutate(ctx, reviewId, apply, call)
}
