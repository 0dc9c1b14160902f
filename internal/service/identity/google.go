package identity

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"instadm/internal/authprovider"
)

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// GoogleOptions are the Google OAuth client settings. Endpoint and UserInfoURL
// default to Google's public endpoints.
type GoogleOptions struct {
	ClientID     string
	ClientSecret string
	Endpoint     oauth2.Endpoint
	UserInfoURL  string
	// HTTPClient carries the outbound timeout; a 15 second client is used when nil.
	HTTPClient *http.Client
}

type googleProvider struct {
	config      *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

type googleProfile struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

func newGoogleProvider(opts GoogleOptions, redirectURL string) *googleProvider {
	endpoint := opts.Endpoint
	if endpoint.AuthURL == "" || endpoint.TokenURL == "" {
		endpoint = google.Endpoint
	}
	userInfo := opts.UserInfoURL
	if userInfo == "" {
		userInfo = googleUserInfoURL
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &googleProvider{
		config: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: userInfo,
		httpClient:  client,
	}
}

func (g *googleProvider) profile(ctx context.Context, code string) (*googleProfile, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange google code: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := g.config.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch google profile: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch google profile: status %d", resp.StatusCode)
	}
	var p googleProfile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode google profile: %w", err)
	}
	if p.Sub == "" || p.Email == "" {
		return nil, errors.New("google profile missing subject or email")
	}
	return &p, nil
}

// CompleteGoogle finishes the Google redirect: it checks the state, exchanges the
// code, links the Google identity to a local user and opens a session.
func (s *Service) CompleteGoogle(ctx context.Context, state, code string) (*authprovider.Session, error) {
	if s.google == nil {
		return nil, authprovider.NewError("Google sign-in is not enabled")
	}
	if _, err := s.links.parse(state, purposeOAuthState); err != nil {
		return nil, authprovider.NewError("OAuth state is invalid or has expired")
	}
	if strings.TrimSpace(code) == "" {
		return nil, authprovider.NewError("Missing authorization code")
	}
	profile, err := s.google.profile(ctx, code)
	if err != nil {
		return nil, err
	}
	userID, err := s.linkIdentity(ctx, authprovider.Google, profile)
	if err != nil {
		return nil, err
	}
	user, err := s.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.openSession(ctx, user)
}

func (s *Service) linkIdentity(ctx context.Context, provider string, p *googleProfile) (int64, error) {
	var userID int64
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id FROM identities WHERE provider = ? AND provider_user_id = ?`, provider, p.Sub,
	).Scan(&userID)
	if err == nil {
		return userID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("lookup identity: %w", err)
	}

	email, err := normalizeEmail(p.Email)
	if err != nil {
		return 0, err
	}
	user, err := s.userByEmail(ctx, email)
	switch {
	case err == nil:
		if !p.EmailVerified {
			return 0, authprovider.NewError("Email not verified by provider")
		}
		userID = user.ID
		if !user.Confirmed {
			if _, err := s.db.ExecContext(ctx, `UPDATE users SET confirmed = 1 WHERE id = ?`, userID); err != nil {
				return 0, fmt.Errorf("confirm user: %w", err)
			}
		}
	case errors.Is(err, sql.ErrNoRows):
		userID, err = s.createUser(ctx, email, "", p.EmailVerified)
		if err != nil {
			return 0, err
		}
	default:
		return 0, err
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO identities (user_id, provider, provider_user_id, created_at) VALUES (?, ?, ?, ?)`,
		userID, provider, p.Sub, time.Now().UTC(),
	); err != nil {
		return 0, fmt.Errorf("link identity: %w", err)
	}
	return userID, nil
}
