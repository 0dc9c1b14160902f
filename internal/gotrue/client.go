// Package gotrue is a small REST client for a hosted GoTrue-compatible auth
// service (the API behind Supabase Auth).
package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"instadm/internal/authprovider"
)

// Client talks to {baseURL}/auth/v1.
type Client struct {
	baseURL    string
	anonKey    string
	redirectTo string
	httpClient *http.Client
}

var _ authprovider.Provider = (*Client)(nil)

// NewClient builds a client. redirectTo is where the hosted service sends the
// browser after magic-link or OAuth sign-in; it may be empty.
func NewClient(baseURL, anonKey, redirectTo string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		redirectTo: redirectTo,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	User        struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

func (c *Client) SignInWithPassword(ctx context.Context, creds authprovider.Credentials) (*authprovider.Session, error) {
	body := map[string]string{"email": creds.Email, "password": creds.Password}
	var resp tokenResponse
	if err := c.post(ctx, "/auth/v1/token?grant_type=password", body, &resp); err != nil {
		return nil, err
	}
	return &authprovider.Session{
		AccessToken: resp.AccessToken,
		ExpiresIn:   resp.ExpiresIn,
		UserID:      resp.User.ID,
		Email:       resp.User.Email,
	}, nil
}

func (c *Client) SignUp(ctx context.Context, creds authprovider.Credentials) error {
	body := map[string]string{"email": creds.Email, "password": creds.Password}
	return c.post(ctx, c.withRedirect("/auth/v1/signup"), body, nil)
}

func (c *Client) SignInWithOtp(ctx context.Context, email string) error {
	body := map[string]any{"email": email, "create_user": true}
	return c.post(ctx, c.withRedirect("/auth/v1/otp"), body, nil)
}

// SignInWithOAuth never calls the network; the hosted service drives the provider redirect.
func (c *Client) SignInWithOAuth(_ context.Context, provider string) (string, error) {
	if strings.TrimSpace(provider) == "" {
		return "", authprovider.NewError("provider is required")
	}
	q := url.Values{}
	q.Set("provider", provider)
	if c.redirectTo != "" {
		q.Set("redirect_to", c.redirectTo)
	}
	return c.baseURL + "/auth/v1/authorize?" + q.Encode(), nil
}

func (c *Client) withRedirect(path string) string {
	if c.redirectTo == "" {
		return path
	}
	return path + "?redirect_to=" + url.QueryEscape(c.redirectTo)
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.anonKey != "" {
		req.Header.Set("apikey", c.anonKey)
		req.Header.Set("Authorization", "Bearer "+c.anonKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("auth request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read auth response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode auth response: %w", err)
	}
	return nil
}

// decodeError maps the several error envelopes GoTrue versions emit onto a ProviderError.
func decodeError(status int, raw []byte) error {
	var body struct {
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
		Error            string `json:"error"`
		ErrorCode        string `json:"error_code"`
		Code             any    `json:"code"`
	}
	perr := &authprovider.ProviderError{Status: status}
	if err := json.Unmarshal(raw, &body); err != nil {
		perr.Message = strings.TrimSpace(string(raw))
		if perr.Message == "" {
			perr.Message = http.StatusText(status)
		}
		return perr
	}
	for _, candidate := range []string{body.Msg, body.Message, body.ErrorDescription, body.Error} {
		if strings.TrimSpace(candidate) != "" {
			perr.Message = candidate
			break
		}
	}
	if perr.Message == "" {
		perr.Message = http.StatusText(status)
	}
	perr.Code = body.ErrorCode
	if perr.Code == "" {
		perr.Code = body.Error
	}
	return perr
}
