// Package supabase talks to the hosted identity provider and its REST data
// store. It is a boundary client: token grants, sign-out and the single-row
// profile read, nothing more.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/aura-detect/aura/internal/models"
)

const DefaultTimeout = 30 * time.Second

// Client handles communication with a Supabase-compatible project.
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
}

// ProviderError represents an error response from the provider.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("identity provider error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("identity provider error (%d)", e.StatusCode)
}

// NewClient creates a provider client for the given project URL and public
// anon key.
func NewClient(baseURL, anonKey string) *Client {
	return NewClientWithTimeout(baseURL, anonKey, DefaultTimeout)
}

// NewClientWithTimeout creates a provider client with a custom request timeout.
func NewClientWithTimeout(baseURL, anonKey string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		anonKey: anonKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// tokenResponse is the grant response shared by the password and
// refresh-token flows.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

// SignInWithPassword exchanges email and password for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	body := map[string]string{"email": email, "password": password}
	return c.tokenGrant(ctx, "password", body)
}

// RefreshSession exchanges a refresh token for a new session.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*models.Session, error) {
	body := map[string]string{"refresh_token": refreshToken}
	return c.tokenGrant(ctx, "refresh_token", body)
}

func (c *Client) tokenGrant(ctx context.Context, grantType string, body map[string]string) (*models.Session, error) {
	respBody, err := c.doRequest(ctx, http.MethodPost, "/auth/v1/token?grant_type="+grantType, "", body)
	if err != nil {
		return nil, err
	}

	var token tokenResponse
	if err := json.Unmarshal(respBody, &token); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, &ProviderError{StatusCode: http.StatusOK, Message: "grant response missing access_token"}
	}

	session := &models.Session{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		User: models.User{
			ID:    token.User.ID,
			Email: token.User.Email,
		},
	}
	if token.ExpiresIn > 0 {
		session.ExpiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}
	return session, nil
}

// SignOut revokes the session server-side. The local copy is the caller's to
// clear.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	_, err := c.doRequest(ctx, http.MethodPost, "/auth/v1/logout", accessToken, nil)
	return err
}

// RequestPasswordRecovery asks the provider to send a password reset email.
func (c *Client) RequestPasswordRecovery(ctx context.Context, email string) error {
	_, err := c.doRequest(ctx, http.MethodPost, "/auth/v1/recover", "", map[string]string{"email": email})
	return err
}

// profileRow mirrors the selected columns of the profiles table.
type profileRow struct {
	Plan             string  `json:"plan"`
	RequestCount     int     `json:"request_count"`
	StripeCustomerID *string `json:"stripe_customer_id"`
	PlanExpiresAt    *string `json:"plan_expires_at"`
}

// FetchProfile reads the caller's profile row. Row-level security scopes the
// query to the authenticated identity, so no explicit key is passed. Zero
// rows is a valid outcome and returns (nil, nil); classification is the
// caller's job.
func (c *Client) FetchProfile(ctx context.Context, accessToken string) (*models.Profile, error) {
	const path = "/rest/v1/profiles?select=plan,request_count,stripe_customer_id,plan_expires_at"
	respBody, err := c.doRequest(ctx, http.MethodGet, path, accessToken, nil)
	if err != nil {
		return nil, err
	}

	var rows []profileRow
	if err := json.Unmarshal(respBody, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	row := rows[0]
	profile := &models.Profile{
		Plan:         row.Plan,
		RequestCount: row.RequestCount,
	}
	if row.StripeCustomerID != nil {
		profile.StripeCustomerID = *row.StripeCustomerID
	}
	if row.PlanExpiresAt != nil {
		if expires, err := time.Parse(time.RFC3339, *row.PlanExpiresAt); err == nil {
			profile.PlanExpiresAt = &expires
		}
	}
	return profile, nil
}

// doRequest performs one HTTP round trip to the provider.
func (c *Client) doRequest(ctx context.Context, method, path, accessToken string, body any) ([]byte, error) {
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

	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("X-Request-ID", uuid.New().String())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.anonKey)
	}

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
		return nil, &ProviderError{
			StatusCode: resp.StatusCode,
			Message:    providerMessage(respBody),
		}
	}

	return respBody, nil
}

// providerMessage extracts the human-readable message the provider uses,
// which varies by endpoint.
func providerMessage(body []byte) string {
	var payload struct {
		ErrorDescription string `json:"error_description"`
		Msg              string `json:"msg"`
		Message          string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	switch {
	case payload.ErrorDescription != "":
		return payload.ErrorDescription
	case payload.Msg != "":
		return payload.Msg
	default:
		return payload.Message
	}
}
