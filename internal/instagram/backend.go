package instagram

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

	"instadm/internal/models"
)

const (
	TokenPath    = "/api/instagram/auth/token"
	MessagesPath = "/api/instagram/messages"
)

// TokenRequest is what the callback screen sends to the token endpoint.
// It deliberately has no field for the app secret.
type TokenRequest struct {
	Code        string `json:"code"`
	RedirectURI string `json:"redirect_uri"`
	ClientID    string `json:"client_id"`
}

// BackendClient calls the proxy endpoints on behalf of the callback screen.
type BackendClient struct {
	baseURL     string
	clientID    string
	redirectURI string
	httpClient  *http.Client
}

// NewBackendClient builds a client for the proxy at baseURL.
func NewBackendClient(baseURL, clientID, redirectURI string, timeout time.Duration) *BackendClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &BackendClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		clientID:    clientID,
		redirectURI: redirectURI,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// ExchangeCode trades an authorization code for an access token. Rejections
// come back as *APIError whose message is the text to show the user.
func (c *BackendClient) ExchangeCode(ctx context.Context, code string) (string, error) {
	payload, err := json.Marshal(TokenRequest{Code: code, RedirectURI: c.redirectURI, ClientID: c.clientID})
	if err != nil {
		return "", fmt.Errorf("encode token request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+TokenPath, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	status, raw, err := c.do(req)
	if err != nil {
		return "", err
	}
	var body struct {
		errorEnvelope
		AccessToken string `json:"access_token"`
	}
	jsonErr := json.Unmarshal(raw, &body)

	if status < 200 || status >= 300 {
		apiErr := &APIError{Status: status}
		if jsonErr == nil {
			apiErr.Message, apiErr.Type = body.errorField()
		}
		if apiErr.Message == "" {
			apiErr.Message = fmt.Sprintf("Token exchange failed with status %d", status)
		}
		return "", apiErr
	}
	if jsonErr == nil && body.AccessToken != "" {
		return body.AccessToken, nil
	}
	apiErr := &APIError{Status: status, Type: body.ErrorType, Message: body.ErrorMessage}
	if apiErr.Message == "" {
		apiErr.Message = compactBody(raw)
	}
	return "", apiErr
}

// FetchConversations loads the conversations visible to token.
func (c *BackendClient) FetchConversations(ctx context.Context, token string) ([]models.Conversation, error) {
	q := url.Values{}
	q.Set("access_token", token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+MessagesPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build messages request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	status, raw, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		apiErr := &APIError{Status: status}
		var env errorEnvelope
		if json.Unmarshal(raw, &env) == nil {
			apiErr.Message, apiErr.Type = env.errorField()
		}
		if apiErr.Message == "" {
			apiErr.Message = fmt.Sprintf("HTTP %d", status)
		}
		return nil, apiErr
	}
	var conversations []models.Conversation
	if err := json.Unmarshal(raw, &conversations); err != nil {
		return nil, fmt.Errorf("decode conversations: %w", err)
	}
	return conversations, nil
}

func (c *BackendClient) do(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, raw, nil
}
