package typesense

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const apiKeyHeader = "X-TYPESENSE-API-KEY"

// Search runs a search against a collection and returns the raw response
// body. Parameters are sent as given, so callers can use any search option
// the node understands.
func (c *Client) Search(ctx context.Context, collection string, params map[string]interface{}) (raw json.RawMessage, err error) {
	start := time.Now()
	defer func() { c.metrics.ObserveBackend("search", start, err) }()

	query, err := EncodeParams(params)
	if err != nil {
		return nil, err
	}
	u := c.baseURL + "/collections/" + url.PathEscape(collection) + "/documents/search"
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call typesense search: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read typesense search response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}
	if c.logger != nil {
		c.logger.Debugf("Typesense search on %s -> %d", collection, resp.StatusCode)
	}
	return data, nil
}

// EncodeParams encodes free-form search parameters as query values. Strings
// pass through unchanged, numbers and booleans are formatted and anything
// else is JSON encoded.
func EncodeParams(params map[string]interface{}) (url.Values, error) {
	query := make(url.Values, len(params))
	for k, v := range params {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			query.Set(k, val)
		case bool:
			query.Set(k, strconv.FormatBool(val))
		case float64:
			query.Set(k, strconv.FormatFloat(val, 'f', -1, 64))
		case int:
			query.Set(k, strconv.Itoa(val))
		case int64:
			query.Set(k, strconv.FormatInt(val, 10))
		case json.Number:
			query.Set(k, val.String())
		default:
			data, err := json.Marshal(val)
			if err != nil {
				return nil, fmt.Errorf("failed to encode search parameter %q: %w", k, err)
			}
			query.Set(k, string(data))
		}
	}
	return query, nil
}
