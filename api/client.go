package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/savefood/backoffice_core/models"
	"github.com/savefood/backoffice_core/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("savefood-backoffice")

var ErrTokenExpired = errors.New("session token expired")

// Error is a non-2xx backend response. The backend reports failures as
// {"message": "..."}.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Client talks to the SaveFood backend. Reads return the standard page
// envelope; writes are plain JSON. Transport errors and 5xx responses get
// exactly one retry; everything above this layer treats the call as
// fire-once.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient() *Client {
	baseURL := strings.TrimSpace(os.Getenv("SAVEFOOD_API_BASE_URL"))
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// NewClientWithBase is used by tests pointed at an httptest server.
func NewClientWithBase(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// GetPage fetches one page of a listing endpoint.
func GetPage[T any](ctx context.Context, c *Client, path string, req models.PageRequest) (models.PaginatedResponse[T], error) {
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
	return GetPageRaw[T](ctx, c, path, params.Encode())
}

// GetPageRaw is GetPage with a pre-encoded query string, for callers that
// already carry the canonical parameter form (the query cache).
func GetPageRaw[T any](ctx context.Context, c *Client, path string, rawQuery string) (models.PaginatedResponse[T], error) {
	var page models.PaginatedResponse[T]
	endpoint := path
	if rawQuery != "" {
		endpoint = path + "?" + rawQuery
	}
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
		return models.PaginatedResponse[T]{}, err
	}
	return page, nil
}

// GetJSON fetches a single resource.
func (c *Client) GetJSON(ctx context.Context, path string, dest any) error {
	return c.do(ctx, http.MethodGet, path, nil, dest)
}

func (c *Client) PostJSON(ctx context.Context, path string, body any, dest any) error {
	return c.do(ctx, http.MethodPost, path, body, dest)
}

func (c *Client) PutJSON(ctx context.Context, path string, body any, dest any) error {
	return c.do(ctx, http.MethodPut, path, body, dest)
}

func (c *Client) PatchJSON(ctx context.Context, path string, body any, dest any) error {
	return c.do(ctx, http.MethodPatch, path, body, dest)
}

func (c *Client) DeleteJSON(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) do(ctx context.Context, method string, path string, body any, dest any) error {
	ctx, span := tracer.Start(ctx, "api."+method)
	defer span.End()
	span.SetAttributes(attribute.String("http.path", path))

	// an expired session should fail fast, not as a server 401
	if token, ok := utils.GetTokenFromContext(ctx); ok && utils.JwtExpired(token) {
		return ErrTokenExpired
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		err := c.doOnce(ctx, method, path, payload, dest)
		if err == nil {
			return nil
		}
		lastErr = err
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.StatusCode < 500 {
			// client errors are final
			return err
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	}
	return lastErr
}

func (c *Client) doOnce(ctx context.Context, method string, path string, payload []byte, dest any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token, ok := utils.GetTokenFromContext(ctx); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if correlationId, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		req.Header.Set("X-Correlation-Id", correlationId)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{StatusCode: resp.StatusCode, Message: parseMessage(raw)}
	}
	if dest == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

func parseMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
		return body.Message
	}
	return strings.TrimSpace(string(raw))
}
