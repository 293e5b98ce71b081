package ingest

import (
	"context"
	"io"
	"net/http"
)

type feedClient struct {
	url  string
	http *http.Client
}

func NewFeedClient(url string, httpClient *http.Client) FeedClient {
	return &feedClient{
		url:  url,
		http: httpClient,
	}
}

// Fetch performs a single GET against the configured URL and returns the raw body.
// Transport failures and 4xx/5xx responses are network errors; nothing is retried.
func (c *feedClient) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, newError(KindNetwork, "build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, newError(KindNetwork, "%s for url: %s", resp.Status, c.url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(KindNetwork, "read body: %w", err)
	}
	return body, nil
}

func (c *feedClient) URL() string {
	return c.url
}
