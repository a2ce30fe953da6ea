// internal/common/http/client.go
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "geoincra-portal/internal/common/errors"
)

// DefaultErrorMessage is used when an error body carries nothing readable.
const DefaultErrorMessage = "request failed"

// TokenSource supplies the bearer credential for authenticated calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client talks JSON to the portal REST backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
}

// APIError is a non-2xx answer of the backend.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// ClientError reports a 4xx answer.
func (e *APIError) ClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

func NewClient(baseURL string, timeout time.Duration, tokens TokenSource) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		tokens: tokens,
	}
}

// WithHTTPClient replaces the underlying transport client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// NewRequest builds a request against path with the bearer credential attached.
// A nil body sends no payload; anything else is JSON encoded.
func (c *Client) NewRequest(ctx context.Context, method, path string, query url.Values, body interface{}) (*http.Request, error) {
	if body == nil {
		return c.newRequest(ctx, method, path, query, nil, "")
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.newRequest(ctx, method, path, query, bytes.NewReader(data), "application/json")
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) (*http.Request, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, apperrors.NewCredentialMissingError(err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// Send executes the request and returns the raw body of a 2xx answer.
// Non-2xx answers become *APIError with the extracted detail message.
func (c *Client) Send(req *http.Request) ([]byte, int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return data, resp.StatusCode, &APIError{
			StatusCode: resp.StatusCode,
			Message:    ExtractDetail(data, DefaultErrorMessage),
			Body:       data,
		}
	}
	return data, resp.StatusCode, nil
}

// DoJSON sends body to path and decodes a 2xx answer into out (when out is non-nil).
func (c *Client) DoJSON(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	req, err := c.NewRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	data, _, err := c.Send(req)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Upload posts content as the multipart form field named field and decodes a
// 2xx answer into out (when out is non-nil).
func (c *Client) Upload(ctx context.Context, path string, query url.Values, field, filename string, content io.Reader, out interface{}) error {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile(field, filename)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return fmt.Errorf("failed to read upload: %w", err)
	}
	if err := form.Close(); err != nil {
		return fmt.Errorf("failed to close form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, query, &buf, form.FormDataContentType())
	if err != nil {
		return err
	}
	data, _, err := c.Send(req)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Download streams a binary answer (e.g. a generated DOCX).
func (c *Client) Download(ctx context.Context, path string, query url.Values) ([]byte, string, error) {
	req, err := c.NewRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Accept", "*/*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", &APIError{
			StatusCode: resp.StatusCode,
			Message:    ExtractDetail(data, DefaultErrorMessage),
			Body:       data,
		}
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// ExtractDetail pulls a human readable message out of an error body.
// Order: first "msg" of a list-shaped "detail", a string "detail", then
// "mensagem" or "message", then fallback.
func ExtractDetail(body []byte, fallback string) string {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return fallback
	}

	if raw, ok := payload["detail"]; ok {
		var list []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(raw, &list); err == nil {
			if len(list) > 0 && list[0].Msg != "" {
				return list[0].Msg
			}
		} else {
			var s string
			if err := json.Unmarshal(raw, &s); err == nil && s != "" {
				return s
			}
		}
	}

	for _, key := range []string{"mensagem", "message"} {
		if raw, ok := payload[key]; ok {
			var s string
			if err := json.Unmarshal(raw, &s); err == nil && s != "" {
				return s
			}
		}
	}
	return fallback
}
