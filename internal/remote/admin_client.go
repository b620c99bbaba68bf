package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// Token permissions accepted by the server.
const (
	PermissionRead      = "ro"
	PermissionReadWrite = "rw"
)

// AdminClient manages the bearer tokens of a vizedit-server. It shares the
// HTTP plumbing of HTTPClient but authenticates with the admin token and
// talks to /admin instead of /api.
type AdminClient struct {
	c *HTTPClient
}

// NewAdminClient creates an admin API client. Plain http:// prints a warning
// because the admin token travels in every request.
func NewAdminClient(baseURL, adminToken string) *AdminClient {
	if strings.HasPrefix(baseURL, "http://") {
		fmt.Fprintf(os.Stderr, "warning: sending credentials over unencrypted HTTP connection\n")
	}
	c := NewHTTPClient(baseURL, adminToken)
	c.httpClient.Timeout = 30 * time.Second
	return &AdminClient{c: c}
}

// CreateTokenRequest is the body of POST /admin/tokens.
type CreateTokenRequest struct {
	Description string `json:"description"`
	Permission  string `json:"permission"`
}

// AdminTokenInfo describes a token without its secret.
type AdminTokenInfo struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Permission  string    `json:"permission"`
	CreatedAt   time.Time `json:"created_at"`
	LastUsedAt  time.Time `json:"last_used_at,omitempty"`
}

// AdminTokenCreateResponse carries the raw token, which the server returns
// only once.
type AdminTokenCreateResponse struct {
	AdminTokenInfo
	Token string `json:"token"`
}

func (a *AdminClient) adminURL(path string) string {
	return a.c.baseURL + "/admin" + path
}

// CreateToken issues a new token with the given permission.
func (a *AdminClient) CreateToken(ctx context.Context, desc, permission string) (*AdminTokenCreateResponse, error) {
	var resp AdminTokenCreateResponse
	req := CreateTokenRequest{Description: desc, Permission: permission}
	if err := a.c.doJSON(ctx, http.MethodPost, a.adminURL("/tokens"), req, &resp); err != nil {
		return nil, fmt.Errorf("create token: %w", err)
	}
	return &resp, nil
}

// ListTokens returns the metadata of every token, oldest first.
func (a *AdminClient) ListTokens(ctx context.Context) ([]AdminTokenInfo, error) {
	var tokens []AdminTokenInfo
	if err := a.c.doJSON(ctx, http.MethodGet, a.adminURL("/tokens"), nil, &tokens); err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	return tokens, nil
}

// DeleteToken revokes a token by ID.
func (a *AdminClient) DeleteToken(ctx context.Context, id string) error {
	resp, err := a.c.do(ctx, http.MethodDelete, a.adminURL("/tokens/"+url.PathEscape(id)), nil, nil)
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("delete token: %w", decodeError(resp))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
