// Package api is the HTTP client for the Aura detection backend. Every
// response body is gated through the schema validator before it is returned.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/aura-detect/aura/internal/models"
	"github.com/aura-detect/aura/internal/schema"
)

const DefaultTimeout = 30 * time.Second

// User-facing messages, kept verbatim from the product.
const (
	MsgEndpointNotConfigured = "APIエンドポイントが設定されていません。"
	MsgAuthExpired           = "認証エラー: トークンが無効または期限切れです。再度ログインしてください。"
)

// ErrEndpointNotConfigured is returned before any network I/O when the
// backend base URL is unset. It is a configuration error, not a network one.
var ErrEndpointNotConfigured = errors.New(MsgEndpointNotConfigured)

// APIError represents a non-success response from the backend.
type APIError struct {
	StatusCode int
	// Detail is the server-provided `detail` field, when present.
	Detail string
}

func (e *APIError) Error() string {
	if e.StatusCode == http.StatusUnauthorized {
		return MsgAuthExpired
	}
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("APIエラー: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// IsAuthError reports whether the backend rejected the credential. The UI
// must ask the user to re-authenticate instead of implying a server fault.
func (e *APIError) IsAuthError() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// Client handles communication with the detection backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a backend client. An empty baseURL is allowed; every
// call will then fail fast with ErrEndpointNotConfigured.
func NewClient(baseURL string) *Client {
	return NewClientWithTimeout(baseURL, DefaultTimeout)
}

// NewClientWithTimeout creates a backend client with a custom request timeout.
func NewClientWithTimeout(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Detect submits text for classification.
func (c *Client) Detect(ctx context.Context, accessToken, text string) (*models.DetectionResult, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/v1/detect", accessToken, map[string]string{"text": text})
	if err != nil {
		return nil, err
	}
	return schema.ParseDetectResult(body)
}

// ListDetections fetches one history page at the given offset.
func (c *Client) ListDetections(ctx context.Context, accessToken string, skip, limit int) (*models.ListDetectionsResult, error) {
	path := fmt.Sprintf("/v1/detections?skip=%d&limit=%d", skip, limit)
	body, err := c.doRequest(ctx, http.MethodGet, path, accessToken, nil)
	if err != nil {
		return nil, err
	}
	return schema.ParseListDetections(body)
}

// DashboardStats fetches the backend-computed usage aggregate.
func (c *Client) DashboardStats(ctx context.Context, accessToken string) (*models.DashboardStats, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/v1/dashboard/stats", accessToken, nil)
	if err != nil {
		return nil, err
	}
	return schema.ParseDashboardStats(body)
}

// CreateCheckoutSession requests a hosted-checkout URL for the upgrade flow.
func (c *Client) CreateCheckoutSession(ctx context.Context, accessToken string) (string, error) {
	return c.redirectURL(ctx, accessToken, "/v1/payments/create-checkout-session")
}

// CreatePortalSession requests a billing-portal URL for existing customers.
func (c *Client) CreatePortalSession(ctx context.Context, accessToken string) (string, error) {
	return c.redirectURL(ctx, accessToken, "/v1/payments/create-portal-session")
}

func (c *Client) redirectURL(ctx context.Context, accessToken, path string) (string, error) {
	body, err := c.doRequest(ctx, http.MethodPost, path, accessToken, nil)
	if err != nil {
		return "", err
	}
	var payload struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.URL == "" {
		return "", &schema.ValidationError{Field: "url", Message: "is required"}
	}
	return payload.URL, nil
}

// VerifyPaymentSession confirms a completed checkout with the backend so the
// plan record is forced to match the payment provider's state.
func (c *Client) VerifyPaymentSession(ctx context.Context, accessToken, sessionID string) error {
	path := "/v1/payments/verify-session?session_id=" + sessionID
	_, err := c.doRequest(ctx, http.MethodGet, path, accessToken, nil)
	return err
}

// SyncSubscription re-reads subscription state from the payment provider.
func (c *Client) SyncSubscription(ctx context.Context, accessToken string) error {
	_, err := c.doRequest(ctx, http.MethodPost, "/v1/payments/sync-subscription", accessToken, nil)
	return err
}

// DeleteAccount permanently deletes the authenticated account and all its
// data. The caller is responsible for the subsequent sign-out.
func (c *Client) DeleteAccount(ctx context.Context, accessToken string) error {
	_, err := c.doRequest(ctx, http.MethodDelete, "/v1/users/me", accessToken, nil)
	return err
}

// doRequest performs the actual HTTP request to the backend.
func (c *Client) doRequest(ctx context.Context, method, path, accessToken string, body any) ([]byte, error) {
	if c.baseURL == "" {
		return nil, ErrEndpointNotConfigured
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	req.Header.Set("X-Request-ID", uuid.New().String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Detail:     extractDetail(respBody),
		}
	}

	return respBody, nil
}

// extractDetail pulls the optional { detail } field from an error body.
func extractDetail(body []byte) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Detail
}
