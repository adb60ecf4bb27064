package strategy

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/Siddamnandas/Vibely-sub004/cachestore"
	"github.com/Siddamnandas/Vibely-sub004/errors"
)

// Fetcher performs an upstream network fetch. A transport failure returns an
// error; a non-2xx upstream status is a response, not an error.
type Fetcher interface {
	Fetch(ctx context.Context, method, url string, header http.Header) (*cachestore.CachedResponse, error)
}

// HTTPFetcher fetches over a shared http.Client. The client carries no
// request timeout: a hung fetch stalls until the transport's own connection
// timeout fires and is then treated as failure.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates a fetcher. A nil client gets a default with
// connection-level timeouts only.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &HTTPFetcher{client: client}
}

// Fetch performs the upstream request and materializes the response.
func (f *HTTPFetcher) Fetch(ctx context.Context, method, url string, header http.Header) (*cachestore.CachedResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, errors.WrapInvalid(err, "HTTPFetcher", "Fetch", "build request")
	}
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.WrapTransient(err, "HTTPFetcher", "Fetch", "upstream fetch")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WrapTransient(err, "HTTPFetcher", "Fetch", "read upstream body")
	}

	return &cachestore.CachedResponse{
		RequestKey: cachestore.RequestKey(method, url),
		Status:     resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
	}, nil
}
