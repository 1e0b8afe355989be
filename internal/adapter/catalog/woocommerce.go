// Package catalog fetches product records from a WooCommerce store.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cwygoda/bulkseo/internal/domain"
)

const productPath = "/wp-json/wc/v3/products/"

// maxErrorBody bounds how much of an error response is logged.
const maxErrorBody = 512

// WooCommerce implements domain.Catalog against the WooCommerce REST API.
type WooCommerce struct {
	httpClient *http.Client
	logger     *zap.Logger
}

// NewWooCommerce creates a catalog client with the given request timeout.
func NewWooCommerce(timeout time.Duration, logger *zap.Logger) *WooCommerce {
	return &WooCommerce{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// FetchProduct loads a single product. Any transport failure or non-2xx
// response is returned as a *domain.UpstreamFetchError.
func (c *WooCommerce) FetchProduct(ctx context.Context, store domain.StoreCredentials, productID int64) (*domain.Product, error) {
	endpoint := fmt.Sprintf("%s%s%d", strings.TrimRight(store.URL, "/"), productPath, productID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &domain.UpstreamFetchError{ProductID: productID, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if store.ConsumerKey != "" {
		req.SetBasicAuth(store.ConsumerKey, store.ConsumerSecret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.UpstreamFetchError{ProductID: productID, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn("catalog returned error",
			zap.Int64("product_id", productID),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)))
		return nil, &domain.UpstreamFetchError{ProductID: productID, StatusCode: resp.StatusCode}
	}

	var product domain.Product
	if err := json.NewDecoder(resp.Body).Decode(&product); err != nil {
		return nil, &domain.UpstreamFetchError{ProductID: productID, Err: fmt.Errorf("decode product: %w", err)}
	}
	if product.ID == 0 {
		product.ID = productID
	}
	return &product, nil
}
