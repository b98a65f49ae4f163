package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/medbuddy/internal/conflict"
	"github.com/alfredjeanlab/medbuddy/internal/engine"
	"github.com/alfredjeanlab/medbuddy/internal/model"
	"github.com/alfredjeanlab/medbuddy/internal/session"
)

// HTTPClient implements Client using the medbuddy HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

func (c *HTTPClient) Ask(ctx context.Context, query string) (*engine.Response, error) {
	var resp engine.Response
	if err := c.doJSON(ctx, http.MethodPost, "/v1/queries", map[string]string{"query": query}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) AddAdvice(ctx context.Context, req *AdviceRequest) (*model.Event, error) {
	var e model.Event
	if err := c.doJSON(ctx, http.MethodPost, "/v1/advice", req, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// IngestDocument uploads the file at path as multipart form data.
func (c *HTTPClient) IngestDocument(ctx context.Context, path string) (*model.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening document: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("creating upload: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("creating upload: %w", err)
	}

	var e model.Event
	if err := c.do(ctx, http.MethodPost, "/v1/documents", &buf, mw.FormDataContentType(), &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *HTTPClient) CheckReminder(ctx context.Context, req *ReminderRequest) ([]conflict.Finding, error) {
	var resp struct {
		Findings []conflict.Finding `json:"findings"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/reminders/check", req, &resp); err != nil {
		return nil, err
	}
	return resp.Findings, nil
}

func (c *HTTPClient) AddReminder(ctx context.Context, req *ReminderRequest) (*session.ReminderResult, error) {
	var res session.ReminderResult
	if err := c.doJSON(ctx, http.MethodPost, "/v1/reminders", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) ListEvents(ctx context.Context, req *ListEventsRequest) ([]*model.Event, error) {
	q := url.Values{}
	if req.Type != "" {
		q.Set("type", string(req.Type))
	}
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}

	path := "/v1/events"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp struct {
		Events []*model.Event `json:"events"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

func (c *HTTPClient) GetEvent(ctx context.Context, id int64) (*model.Event, error) {
	var e model.Event
	if err := c.doJSON(ctx, http.MethodGet, "/v1/events/"+strconv.FormatInt(id, 10), nil, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// RecentAdherence returns the n most recent adherence logs, newest first.
func (c *HTTPClient) RecentAdherence(ctx context.Context, n int) ([]*model.Event, error) {
	var resp struct {
		Events []*model.Event `json:"events"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/adherence?limit="+strconv.Itoa(n), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	contentType := ""
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, bodyReader, contentType, result)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body io.Reader, contentType string, result any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
