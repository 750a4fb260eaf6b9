package neynar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// APIError is a non-2xx response from the API. 4xx errors are never
// retried; the response body is kept for logging.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("neynar api error (status %d): %s", e.StatusCode, e.Body)
}

// Retryable reports whether the error is worth another attempt.
func (e *APIError) Retryable() bool {
	return e.StatusCode >= 500
}

// PaginateOptions controls one paginated walk.
type PaginateOptions struct {
	// Cutoff, when set, is the earliest timestamp still eligible for
	// inclusion. A page whose items are all older than Cutoff ends the walk.
	Cutoff *time.Time
	// CursorParam is the query parameter carrying the pagination token on
	// the next request. Defaults to "cursor".
	CursorParam string
}

type page struct {
	items  []json.RawMessage
	cursor string
}

// Paginate walks a cursor-paginated endpoint and returns every item it
// could collect. The page's items are the first array-valued field of the
// response object; the token for the next page comes from next.cursor (or
// nextPageToken on hub endpoints).
//
// Transient failures are retried up to maxAttempts per page with
// exponential backoff; on exhaustion, and on any 4xx response, whatever
// has accumulated so far is returned rather than an error. A harvest step
// degrades instead of aborting the run.
func (c *Client) Paginate(ctx context.Context, base, endpoint string, params url.Values, opts PaginateOptions) []json.RawMessage {
	cursorParam := opts.CursorParam
	if cursorParam == "" {
		cursorParam = "cursor"
	}

	// Copy so the caller's params survive a restart with the original values.
	query := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			query.Add(k, v)
		}
	}

	var all []json.RawMessage
	for {
		pg, ok := c.fetchPage(ctx, base, endpoint, query)
		if !ok {
			return all
		}

		items, stop := filterByCutoff(pg.items, opts.Cutoff)
		all = append(all, items...)

		if stop || pg.cursor == "" {
			return all
		}
		query.Set(cursorParam, pg.cursor)

		if c.pageDelay > 0 {
			c.sleep(c.pageDelay)
		}
	}
}

// fetchPage requests a single page, retrying transient failures. The
// second return is false when the walk should end with what it has.
func (c *Client) fetchPage(ctx context.Context, base, endpoint string, query url.Values) (page, bool) {
	delay := c.baseDelay
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			c.logger.Warn("retrying page fetch",
				zap.String("endpoint", endpoint),
				zap.Int("attempt", attempt),
				zap.Error(lastErr),
			)
			c.sleep(delay)
			delay *= 2
		}

		body, err := c.get(ctx, base, endpoint, query)
		if err == nil {
			pg, perr := parsePage(body)
			if perr != nil {
				c.logger.Error("failed to parse page", zap.String("endpoint", endpoint), zap.Error(perr))
				return page{}, false
			}
			return pg, true
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Retryable() {
			// Bad request or not found: abandon this call only, keep the body
			// in the log for diagnosis.
			c.logger.Error("non-retryable response, abandoning paginated call",
				zap.String("endpoint", endpoint),
				zap.Int("status", apiErr.StatusCode),
				zap.String("body", apiErr.Body),
			)
			return page{}, false
		}
		lastErr = err
	}

	c.logger.Error("page fetch failed after retries, returning partial results",
		zap.String("endpoint", endpoint),
		zap.Int("attempts", c.maxAttempts),
		zap.Error(lastErr),
	)
	return page{}, false
}

// get performs one HTTP request and returns the response body.
func (c *Client) get(ctx context.Context, base, endpoint string, query url.Values) ([]byte, error) {
	u := base + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api_key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// parsePage extracts the page's items and the next-page token. The items
// are the first array-valued field of the response object in declared
// order, so the walk over the raw tokens matters; a decoded map would
// lose the ordering.
func parsePage(body []byte) (page, error) {
	var pg page

	dec := json.NewDecoder(bytes.NewReader(body))
	tok, err := dec.Token()
	if err != nil {
		return pg, fmt.Errorf("failed to decode response: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return pg, fmt.Errorf("response is not a JSON object")
	}

	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return pg, fmt.Errorf("failed to decode field name: %w", err)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return pg, fmt.Errorf("failed to decode field value: %w", err)
		}
		trimmed := bytes.TrimLeft(raw, " \t\r\n")
		if len(trimmed) > 0 && trimmed[0] == '[' {
			if err := json.Unmarshal(raw, &pg.items); err != nil {
				return pg, fmt.Errorf("failed to decode item list: %w", err)
			}
			break
		}
	}

	var envelope struct {
		Next struct {
			Cursor string `json:"cursor"`
		} `json:"next"`
		NextPageToken string `json:"nextPageToken"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return pg, fmt.Errorf("failed to decode pagination token: %w", err)
	}
	pg.cursor = envelope.Next.Cursor
	if pg.cursor == "" {
		pg.cursor = envelope.NextPageToken
	}
	return pg, nil
}

// filterByCutoff keeps items at or after the cutoff. The page signals a
// temporal end when every timestamped item on it is older than the cutoff;
// items without a parsable timestamp are always kept.
func filterByCutoff(items []json.RawMessage, cutoff *time.Time) ([]json.RawMessage, bool) {
	if cutoff == nil || len(items) == 0 {
		return items, false
	}

	kept := make([]json.RawMessage, 0, len(items))
	timestamped := 0
	older := 0
	for _, item := range items {
		ts, ok := itemTimestamp(item)
		if !ok {
			kept = append(kept, item)
			continue
		}
		timestamped++
		if ts.Before(*cutoff) {
			older++
			continue
		}
		kept = append(kept, item)
	}

	stop := timestamped > 0 && older == timestamped
	return kept, stop
}

// itemTimestamp pulls an item's timestamp field, accepting either an
// RFC3339 string (v2 API) or a hub epoch offset in seconds.
func itemTimestamp(item json.RawMessage) (time.Time, bool) {
	var probe struct {
		Timestamp json.RawMessage `json:"timestamp"`
		Data      *struct {
			Timestamp json.RawMessage `json:"timestamp"`
		} `json:"data"`
	}
	if err := json.Unmarshal(item, &probe); err != nil {
		return time.Time{}, false
	}
	raw := probe.Timestamp
	if raw == nil && probe.Data != nil {
		raw = probe.Data.Timestamp
	}
	if raw == nil {
		return time.Time{}, false
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		t, terr := time.Parse(time.RFC3339, s)
		if terr != nil {
			return time.Time{}, false
		}
		return t, true
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return HubTime(n), true
	}
	return time.Time{}, false
}
