package instagram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"instadm/internal/config"
	"instadm/internal/models"
)

const conversationFields = "participants,messages{id,message,from,to,created_time}"

// Token is the result of a successful code exchange.
type Token struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id,omitempty"`
}

// GraphClient performs the server-side token exchange and reads conversations
// from the Instagram Graph API. It is the only holder of the app secret.
type GraphClient struct {
	oauth      *oauth2.Config
	graphURL   string
	httpClient *http.Client
}

// NewGraphClient builds a client from the Instagram app settings.
func NewGraphClient(cfg config.InstagramConfig, timeout time.Duration) *GraphClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &GraphClient{
		oauth: &oauth2.Config{
			ClientID:     cfg.AppID,
			ClientSecret: cfg.AppSecret,
			RedirectURL:  cfg.RedirectURI,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		graphURL:   strings.TrimRight(cfg.GraphBaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// AppID is the public client id of the Instagram app.
func (g *GraphClient) AppID() string {
	return g.oauth.ClientID
}

// Exchange trades code for an access token. redirectURI overrides the
// configured one when non-empty; it must match the authorize request.
func (g *GraphClient) Exchange(ctx context.Context, code, redirectURI string) (*Token, error) {
	var opts []oauth2.AuthCodeOption
	if redirectURI != "" {
		opts = append(opts, oauth2.SetAuthURLParam("redirect_uri", redirectURI))
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
	tok, err := g.oauth.Exchange(ctx, code, opts...)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return nil, retrieveError(re)
		}
		return nil, fmt.Errorf("exchange instagram code: %w", err)
	}
	out := &Token{AccessToken: tok.AccessToken}
	switch v := tok.Extra("user_id").(type) {
	case string:
		out.UserID = v
	case float64:
		out.UserID = fmt.Sprintf("%.0f", v)
	}
	return out, nil
}

func retrieveError(re *oauth2.RetrieveError) *APIError {
	status := http.StatusBadGateway
	if re.Response != nil {
		status = re.Response.StatusCode
	}
	apiErr := &APIError{Status: status, Type: re.ErrorCode, Message: re.ErrorDescription}
	var env errorEnvelope
	if json.Unmarshal(re.Body, &env) == nil {
		if env.ErrorMessage != "" {
			apiErr.Message = env.ErrorMessage
		}
		if env.ErrorType != "" {
			apiErr.Type = env.ErrorType
		}
		if apiErr.Message == "" {
			apiErr.Message, _ = env.errorField()
		}
	}
	return apiErr
}

type graphUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func (u graphUser) participant() models.Participant {
	return models.Participant{ID: u.ID, Username: u.Username}
}

type graphMessage struct {
	ID      string    `json:"id"`
	Message string    `json:"message"`
	From    graphUser `json:"from"`
	To      struct {
		Data []graphUser `json:"data"`
	} `json:"to"`
	CreatedTime models.Timestamp `json:"created_time"`
}

type graphConversation struct {
	ID           string `json:"id"`
	Participants struct {
		Data []graphUser `json:"data"`
	} `json:"participants"`
	Messages struct {
		Data []graphMessage `json:"data"`
	} `json:"messages"`
}

// Conversations lists the account's Instagram conversations with their
// messages, first page only.
func (g *GraphClient) Conversations(ctx context.Context, accessToken string) ([]models.Conversation, error) {
	q := url.Values{}
	q.Set("platform", "instagram")
	q.Set("fields", conversationFields)
	q.Set("access_token", accessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.graphURL+"/me/conversations?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build graph request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graph request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read graph response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode}
		var env errorEnvelope
		if json.Unmarshal(raw, &env) == nil {
			apiErr.Message, apiErr.Type = env.errorField()
		}
		if apiErr.Message == "" {
			apiErr.Message = compactBody(raw)
		}
		return nil, apiErr
	}

	var envelope struct {
		Data []graphConversation `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode graph conversations: %w", err)
	}
	out := make([]models.Conversation, 0, len(envelope.Data))
	for _, gc := range envelope.Data {
		conv := models.Conversation{
			ID:           gc.ID,
			Participants: make([]models.Participant, 0, len(gc.Participants.Data)),
			Messages:     make([]models.Message, 0, len(gc.Messages.Data)),
		}
		for _, p := range gc.Participants.Data {
			conv.Participants = append(conv.Participants, p.participant())
		}
		for _, gm := range gc.Messages.Data {
			msg := models.Message{
				ID:          gm.ID,
				Text:        gm.Message,
				From:        gm.From.participant(),
				CreatedTime: gm.CreatedTime,
			}
			if len(gm.To.Data) > 0 {
				msg.To = gm.To.Data[0].participant()
			}
			conv.Messages = append(conv.Messages, msg)
		}
		out = append(out, conv)
	}
	return out, nil
}
