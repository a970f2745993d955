package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"pkt.systems/pslog"
)

const (
	defaultBaseURL        = "https://hacker-news.firebaseio.com/v0"
	defaultAlgoliaURL     = "https://hn.algolia.com/api/v1"
	defaultRequestTimeout = 10 * time.Second
	defaultMaxConcurrent  = 10
	userAgent             = "threadview/1.0"
)

// Options configures a Client. Zero values select the public HN endpoints.
type Options struct {
	BaseURL       string
	AlgoliaURL    string
	Timeout       time.Duration
	MaxConcurrent int
	Logger        pslog.Logger
}

// Client is the HN API client.
type Client struct {
	http          *http.Client
	baseURL       string
	algoliaURL    string
	maxConcurrent int
	log           pslog.Logger
}

// NewClient creates a new HN API client.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.AlgoliaURL == "" {
		opts.AlgoliaURL = defaultAlgoliaURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultRequestTimeout
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = defaultMaxConcurrent
	}
	log := opts.Logger
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	return &Client{
		http: &http.Client{
			Timeout: opts.Timeout,
		},
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		algoliaURL:    strings.TrimRight(opts.AlgoliaURL, "/"),
		maxConcurrent: opts.MaxConcurrent,
		log:           log,
	}
}

// get fetches a URL and decodes the JSON response into dst.
func (c *Client) get(ctx context.Context, url string, dst interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, URL: url, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decoding response from %s: %w", url, err)
	}
	return nil
}

// GetItem fetches a single item by ID. Firebase answers unknown IDs with a
// JSON null, reported as ErrNotFound.
func (c *Client) GetItem(ctx context.Context, id int) (*Item, error) {
	url := fmt.Sprintf("%s/item/%d.json", c.baseURL, id)
	var item *Item
	if err := c.get(ctx, url, &item); err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	return item, nil
}

// BatchGetItems fetches multiple items concurrently with a concurrency limit.
// Returns items in the same order as the input IDs. Failed fetches are nil.
func (c *Client) BatchGetItems(ctx context.Context, ids []int) ([]*Item, error) {
	results := make([]*Item, len(ids))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxConcurrent)

	for i, id := range ids {
		g.Go(func() error {
			item, err := c.GetItem(gctx, id)
			if err != nil {
				// Non-fatal: the page comes back short and is retried.
				c.log.Debug("item fetch failed", "id", id, "error", err)
				return nil
			}
			mu.Lock()
			results[i] = item
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
