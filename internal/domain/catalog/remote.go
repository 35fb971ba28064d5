package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/appdock/appdock/internal/shared/types"
	"github.com/bytedance/sonic"
	"github.com/hashicorp/go-retryablehttp"
)

// HTTPSource fetches a JSON item index from a remote URL. Transient fetch
// failures are retried by the transport; a persistent failure is fatal at
// startup, same as a malformed local catalog.
type HTTPSource struct {
	url    string
	client *retryablehttp.Client
}

// NewHTTPSource creates a source over a remote index URL.
func NewHTTPSource(url string) *HTTPSource {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil
	return &HTTPSource{url: url, client: client}
}

// Load fetches and decodes the remote item index.
func (s *HTTPSource) Load(ctx context.Context) ([]types.Item, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog index request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog index: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch catalog index: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read catalog index: %w", err)
	}

	var items []types.Item
	if err := sonic.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode catalog index: %w", err)
	}
	return items, nil
}
