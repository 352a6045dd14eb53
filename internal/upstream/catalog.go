package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"

	"llmarena/internal/core"
	"llmarena/internal/util"
)

// catalogCacheKey builds the cache key for the listing served by baseURL.
func catalogCacheKey(baseURL string) string {
	return fmt.Sprintf("models:%s:%s", core.CacheKeyVersion, baseURL)
}

// ListModels returns the model identifiers offered by the provider, in the
// order the provider lists them. Entries without a string id are skipped.
// Every failure is a *CatalogError.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	cacheKey := catalogCacheKey(c.baseURL)
	if c.cache != nil && c.catalogCacheTTL > 0 {
		if cachedAny, found := c.cache.Get(cacheKey); found {
			if ids, ok := cachedAny.([]string); ok {
				c.metrics.RecordCacheHit()
				return slices.Clone(ids), nil
			}
			c.logger.Warn("Cache format mismatch for model catalog, refetching")
		}
		c.metrics.RecordCacheMiss()
	}

	ids, err := c.fetchModels(ctx)
	if err != nil {
		var catalogErr *CatalogError
		if errors.As(err, &catalogErr) {
			switch catalogErr.Kind {
			case CatalogBadShape:
				c.logger.Error("Unexpected model catalog format: %v", catalogErr.Cause)
			case CatalogBadJSON:
				c.logger.Error("Error decoding model catalog JSON: %v", catalogErr.Cause)
			default:
				c.logger.Error("Error fetching models from upstream: %v", catalogErr.Cause)
			}
		}
		return nil, err
	}

	c.logger.Info("Successfully fetched %d models from upstream", len(ids))
	if c.cache != nil && c.catalogCacheTTL > 0 {
		c.cache.Set(cacheKey, slices.Clone(ids), c.catalogCacheTTL)
	}
	return ids, nil
}

func (c *Client) fetchModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.catalogTimeout)
	defer cancel()

	c.logger.Info("Fetching models from upstream...")
	resp, err := c.do(ctx, http.MethodGet, c.ModelsURL(), nil)
	if err != nil {
		return nil, &CatalogError{Kind: CatalogTransport, Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, core.MaxResponseBodySize))
	if err != nil {
		return nil, &CatalogError{Kind: CatalogTransport, Cause: fmt.Errorf("failed to read response: %w", err)}
	}

	c.logger.Debug("Upstream catalog response: status=%d, body=%s", resp.StatusCode, util.TruncateString(string(body), 512, 0, "..."))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &CatalogError{Kind: CatalogTransport, Cause: &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			URL:        c.ModelsURL(),
		}}
	}

	var decoded any
	if err := util.UnmarshalJSON(body, &decoded); err != nil {
		return nil, &CatalogError{Kind: CatalogBadJSON, Cause: err}
	}

	return parseModelIDs(decoded)
}

// parseModelIDs validates {"data": [{"id": ...}, ...]} and extracts the ids.
func parseModelIDs(decoded any) ([]string, error) {
	obj, ok := decoded.(map[string]any)
	if !ok {
		return nil, &CatalogError{Kind: CatalogBadShape, Cause: fmt.Errorf("expected an object with a 'data' list, got %T", decoded)}
	}
	rawData, exists := obj["data"]
	if !exists {
		return nil, &CatalogError{Kind: CatalogBadShape, Cause: errors.New("missing 'data' key")}
	}
	entries, ok := rawData.([]any)
	if !ok {
		return nil, &CatalogError{Kind: CatalogBadShape, Cause: fmt.Errorf("expected 'data' to be a list, got %T", rawData)}
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		model, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if id, ok := model["id"].(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
