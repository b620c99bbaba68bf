package remote

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kilupskalvis/vizedit/internal/models"
)

// RemoteClient defines the contract for communicating with a vizedit-server.
type RemoteClient interface {
	ListQueries(ctx context.Context) ([]*models.Query, error)
	GetQuery(ctx context.Context, id int64) (*models.Query, error)
	CreateQuery(ctx context.Context, q *models.Query) (*models.Query, error)
	DeleteQuery(ctx context.Context, id int64) error

	GetResult(ctx context.Context, queryID int64) (*models.QueryResultData, error)
	SaveResult(ctx context.Context, queryID int64, data *models.QueryResultData) error

	GetVisualization(ctx context.Context, id int64) (*models.Visualization, error)
	SaveVisualization(ctx context.Context, v *models.Visualization) (*models.Visualization, error)
	DeleteVisualization(ctx context.Context, id int64) error

	Record(ctx context.Context, ev models.Event) error
	ListEvents(ctx context.Context, limit int) ([]*models.Event, error)

	GetInfo(ctx context.Context) (*ServerInfo, error)
}

// HTTPClient implements RemoteClient over HTTP.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates an HTTP-based remote client.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

func (c *HTTPClient) apiURL(path string) string {
	return c.baseURL + "/api" + path
}

func (c *HTTPClient) do(ctx context.Context, method, url string, body io.Reader, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}

	return resp, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, url string, reqBody, respBody interface{}) error {
	var body io.Reader
	headers := map[string]string{"Content-Type": "application/json"}

	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	resp, err := c.do(ctx, method, url, body, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if respBody != nil {
		if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}

// ListQueries returns all queries on the server.
func (c *HTTPClient) ListQueries(ctx context.Context) ([]*models.Query, error) {
	var queries []*models.Query
	if err := c.doJSON(ctx, "GET", c.apiURL("/queries"), nil, &queries); err != nil {
		return nil, fmt.Errorf("list queries: %w", err)
	}
	return queries, nil
}

// GetQuery returns a query with its visualizations. Returns (nil, nil) if
// the server does not have it.
func (c *HTTPClient) GetQuery(ctx context.Context, id int64) (*models.Query, error) {
	var q models.Query
	if err := c.doJSON(ctx, "GET", c.apiURL("/queries/"+formatID(id)), nil, &q); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get query %d: %w", id, err)
	}
	return &q, nil
}

// CreateQuery registers a query and returns it with its server-assigned ID.
func (c *HTTPClient) CreateQuery(ctx context.Context, q *models.Query) (*models.Query, error) {
	req := &CreateQueryRequest{Name: q.Name, Description: q.Description, Source: q.Source}
	var created models.Query
	if err := c.doJSON(ctx, "POST", c.apiURL("/queries"), req, &created); err != nil {
		return nil, fmt.Errorf("create query: %w", err)
	}
	return &created, nil
}

// DeleteQuery removes a query with its visualizations and cached result.
func (c *HTTPClient) DeleteQuery(ctx context.Context, id int64) error {
	if err := c.doJSON(ctx, "DELETE", c.apiURL("/queries/"+formatID(id)), nil, nil); err != nil {
		return fmt.Errorf("delete query %d: %w", id, err)
	}
	return nil
}

// GetResult downloads the cached result of a query. Returns (nil, nil) if
// the query has no result yet.
func (c *HTTPClient) GetResult(ctx context.Context, queryID int64) (*models.QueryResultData, error) {
	url := c.apiURL("/queries/" + formatID(queryID) + "/results")
	headers := map[string]string{"Accept-Encoding": "gzip"}

	resp, err := c.do(ctx, "GET", url, nil, headers)
	if err != nil {
		return nil, fmt.Errorf("get result %d: %w", queryID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		err := decodeError(resp)
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get result %d: %w", queryID, err)
	}

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("decompress response: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	var data models.QueryResultData
	if err := json.NewDecoder(reader).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &data, nil
}

// SaveResult uploads a result snapshot with gzip compression.
func (c *HTTPClient) SaveResult(ctx context.Context, queryID int64, data *models.QueryResultData) error {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := json.NewEncoder(gz).Encode(data); err != nil {
		gz.Close()
		return fmt.Errorf("encode result: %w", err)
	}
	gz.Close()

	headers := map[string]string{
		"Content-Type":     "application/json",
		"Content-Encoding": "gzip",
	}

	resp, err := c.do(ctx, "PUT", c.apiURL("/queries/"+formatID(queryID)+"/results"), &buf, headers)
	if err != nil {
		return fmt.Errorf("save result %d: %w", queryID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	return nil
}

// GetVisualization returns a single visualization. Returns (nil, nil) if
// the server does not have it.
func (c *HTTPClient) GetVisualization(ctx context.Context, id int64) (*models.Visualization, error) {
	var v models.Visualization
	if err := c.doJSON(ctx, "GET", c.apiURL("/visualizations/"+formatID(id)), nil, &v); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get visualization %d: %w", id, err)
	}
	return &v, nil
}

// SaveVisualization creates v when it has no ID and updates it otherwise.
// It returns the server's copy.
func (c *HTTPClient) SaveVisualization(ctx context.Context, v *models.Visualization) (*models.Visualization, error) {
	path := "/visualizations"
	if !v.IsNew() {
		path += "/" + formatID(v.ID)
	}
	var saved models.Visualization
	if err := c.doJSON(ctx, "POST", c.apiURL(path), v, &saved); err != nil {
		return nil, fmt.Errorf("save visualization: %w", err)
	}
	return &saved, nil
}

// DeleteVisualization removes a visualization.
func (c *HTTPClient) DeleteVisualization(ctx context.Context, id int64) error {
	resp, err := c.do(ctx, "DELETE", c.apiURL("/visualizations/"+formatID(id)), nil, nil)
	if err != nil {
		return fmt.Errorf("delete visualization %d: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	return nil
}

// Record sends an analytics event.
func (c *HTTPClient) Record(ctx context.Context, ev models.Event) error {
	if err := c.doJSON(ctx, "POST", c.apiURL("/events"), &ev, nil); err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// ListEvents returns up to limit recent events, newest first.
func (c *HTTPClient) ListEvents(ctx context.Context, limit int) ([]*models.Event, error) {
	u := c.apiURL("/events")
	if limit > 0 {
		u += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}
	var list EventList
	if err := c.doJSON(ctx, "GET", u, nil, &list); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return list.Events, nil
}

// GetInfo returns summary info about the server.
func (c *HTTPClient) GetInfo(ctx context.Context) (*ServerInfo, error) {
	var info ServerInfo
	if err := c.doJSON(ctx, "GET", c.apiURL("/info"), nil, &info); err != nil {
		return nil, fmt.Errorf("get server info: %w", err)
	}
	return &info, nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// RemoteError represents a structured error from the server. RetryAfter is
// set when the server asked the client to back off.
type RemoteError struct {
	Code       string
	Message    string
	Status     int
	RetryAfter time.Duration
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error (%d): %s: %s", e.Status, e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Status == http.StatusNotFound
}

func decodeError(resp *http.Response) error {
	re := &RemoteError{
		Code:    "unknown",
		Message: fmt.Sprintf("HTTP %d", resp.StatusCode),
		Status:  resp.StatusCode,
	}
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
		re.RetryAfter = time.Duration(secs) * time.Second
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil {
		re.Code = errResp.Error
		re.Message = errResp.Message
	}
	return re
}
