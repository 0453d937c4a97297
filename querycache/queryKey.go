package querycache

import (
	"fmt"
	"net/url"

	"github.com/savefood/backoffice_core/models"
)

// QueryKey addresses one cached page: resource name plus the canonical form
// of its list parameters. Two requests with the same parameters in a
// different order produce the same key.
type QueryKey struct {
	Resource string
	Params   string
}

func NewQueryKey(resource string, req models.PageRequest) QueryKey {
	params := url.Values{}
	params.Set("page", fmt.Sprint(req.Page))
	params.Set("size", fmt.Sprint(req.Size))
	if req.Sort != "" {
		params.Set("sort", req.Sort)
	}
	if req.Filter != "" {
		params.Set("filter", req.Filter)
	}
	if req.Search != "" {
		params.Set("search", req.Search)
	}
	// url.Values.Encode sorts by key, giving the canonical form
	return QueryKey{Resource: resource, Params: params.Encode()}
}

func (k QueryKey) String() string {
	return k.Resource + "?" + k.Params
}
