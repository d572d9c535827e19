package clients

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// StatusError is returned for non-2xx responses
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API returned status code: %d, response: %s", e.StatusCode, e.Body)
}

type BaseClient struct {
	baseURL string
	client  *http.Client
	headers map[string]string
}

func NewBaseClient(baseURL string) *BaseClient {
	return &BaseClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		headers: make(map[string]string),
	}
}

func (c *BaseClient) BaseURL() string {
	return c.baseURL
}

func (c *BaseClient) SetHeader(key, value string) {
	c.headers[key] = value
}

func (c *BaseClient) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

// SetHTTPClient replaces the underlying client, e.g. with an httptest server's client
func (c *BaseClient) SetHTTPClient(client *http.Client) {
	c.client = client
}

func (c *BaseClient) MakeRequest(ctx context.Context, method, endpoint string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		responseBody, _ := io.ReadAll(resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(responseBody)}
	}

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return responseBody, nil
}

func (c *BaseClient) Get(ctx context.Context, endpoint string) ([]byte, error) {
	return c.MakeRequest(ctx, http.MethodGet, endpoint, nil)
}

func (c *BaseClient) Post(ctx context.Context, endpoint string, body io.Reader) ([]byte, error) {
	return c.MakeRequest(ctx, http.MethodPost, endpoint, body)
}
