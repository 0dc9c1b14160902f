// Package identity is the self-hosted auth provider: email/password accounts,
// emailed confirmation and magic links, and Google sign-in.
package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"html"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"

	"instadm/internal/auth"
	"instadm/internal/authprovider"
	"instadm/internal/models"
)

const minPasswordLength = 6

var (
	errInvalidCredentials = authprovider.NewError("Invalid login credentials")
	errEmailNotConfirmed  = authprovider.NewError("Email not confirmed")
	errUserExists         = authprovider.NewError("User already registered")
	errEmailRequired      = authprovider.NewError("Email address is required")
	errLinkExpired        = authprovider.NewError("Email link is invalid or has expired")
	errWeakPassword       = authprovider.NewError(fmt.Sprintf("Password should be at least %d characters.", minPasswordLength))
)

// Options configures the identity service.
type Options struct {
	// PublicURL is the origin used to build emailed links and the Google redirect.
	PublicURL    string
	LinkSecret   string
	MagicLinkTTL time.Duration
	Mailer       Mailer
	// Google is nil when Google sign-in is not configured.
	Google *GoogleOptions
}

// Service implements authprovider.Provider on top of the SQL store and session tokens.
type Service struct {
	db        *sql.DB
	sessions  *auth.Service
	mailer    Mailer
	links     *linkSigner
	publicURL string
	linkTTL   time.Duration
	google    *googleProvider
}

var _ authprovider.Provider = (*Service)(nil)

// NewService builds the identity service.
func NewService(db *sql.DB, sessions *auth.Service, opts Options) (*Service, error) {
	links, err := newLinkSigner(opts.LinkSecret)
	if err != nil {
		return nil, err
	}
	if opts.Mailer == nil {
		opts.Mailer = logMailer{}
	}
	if opts.MagicLinkTTL <= 0 {
		opts.MagicLinkTTL = 15 * time.Minute
	}
	publicURL := strings.TrimRight(opts.PublicURL, "/")
	s := &Service{
		db:        db,
		sessions:  sessions,
		mailer:    opts.Mailer,
		links:     links,
		publicURL: publicURL,
		linkTTL:   opts.MagicLinkTTL,
	}
	if opts.Google != nil {
		s.google = newGoogleProvider(*opts.Google, publicURL+"/auth/callback/google")
	}
	return s, nil
}

// SignUp creates an unconfirmed account and mails the confirmation link.
func (s *Service) SignUp(ctx context.Context, creds authprovider.Credentials) error {
	email, err := normalizeEmail(creds.Email)
	if err != nil {
		return err
	}
	if len(creds.Password) < minPasswordLength {
		return errWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	existing, err := s.userByEmail(ctx, email)
	switch {
	case err == nil && existing.Confirmed:
		return errUserExists
	case err == nil:
		// the stored password is never replaced before the owner confirms; only the mail is re-sent
	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.createUser(ctx, email, string(hash), false); err != nil {
			return err
		}
	default:
		return err
	}
	return s.mailLink(ctx, purposeSignup, email, "Confirm your signup", "Follow this link to confirm your account")
}

// SignInWithPassword checks the bcrypt hash and issues a session token.
func (s *Service) SignInWithPassword(ctx context.Context, creds authprovider.Credentials) (*authprovider.Session, error) {
	email, err := normalizeEmail(creds.Email)
	if err != nil {
		return nil, err
	}
	user, err := s.userByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}
	if user.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)) != nil {
		return nil, errInvalidCredentials
	}
	if !user.Confirmed {
		return nil, errEmailNotConfirmed
	}
	return s.openSession(ctx, user)
}

// SignInWithOtp mails a magic link, creating the account when it does not exist yet.
func (s *Service) SignInWithOtp(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	if _, err := s.userByEmail(ctx, email); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if _, err := s.createUser(ctx, email, "", false); err != nil {
			return err
		}
	}
	return s.mailLink(ctx, purposeMagicLink, email, "Your Magic Link", "Follow this link to sign in")
}

// SignInWithOAuth returns the provider consent URL carrying a signed state.
func (s *Service) SignInWithOAuth(ctx context.Context, provider string) (string, error) {
	if provider != authprovider.Google {
		return "", authprovider.NewError(fmt.Sprintf("Unsupported provider: %s", provider))
	}
	if s.google == nil {
		return "", authprovider.NewError("Google sign-in is not enabled")
	}
	state, err := s.links.sign(purposeOAuthState, "", 10*time.Minute)
	if err != nil {
		return "", err
	}
	return s.google.config.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

// VerifyLink consumes a confirmation or magic link, confirms the account and opens a session.
func (s *Service) VerifyLink(ctx context.Context, token string) (*authprovider.Session, error) {
	claims, err := s.links.parse(token, purposeSignup, purposeMagicLink)
	if err != nil {
		return nil, errLinkExpired
	}
	if err := s.consumeLink(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return nil, err
	}
	user, err := s.userByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errLinkExpired
		}
		return nil, err
	}
	if !user.Confirmed {
		if _, err := s.db.ExecContext(ctx, `UPDATE users SET confirmed = 1 WHERE id = ?`, user.ID); err != nil {
			return nil, fmt.Errorf("confirm user: %w", err)
		}
		user.Confirmed = true
	}
	return s.openSession(ctx, user)
}

// UserByID loads a user profile.
func (s *Service) UserByID(ctx context.Context, id int64) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, confirmed, created_at FROM users WHERE id = ?`, id,
	)
	return scanUser(row)
}

// DeleteUser removes a user and cascaded data.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	if id <= 0 {
		return errors.New("invalid user id")
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Service) openSession(ctx context.Context, user *models.User) (*authprovider.Session, error) {
	token, err := s.sessions.IssueToken(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &authprovider.Session{
		AccessToken: token,
		ExpiresIn:   int(s.sessions.TokenTTL().Seconds()),
		UserID:      fmt.Sprint(user.ID),
		Email:       user.Email,
	}, nil
}

func (s *Service) consumeLink(ctx context.Context, jti string, expiresAt time.Time) error {
	if jti == "" {
		return errLinkExpired
	}
	var used bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM consumed_links WHERE jti = ?)`, jti,
	).Scan(&used); err != nil {
		return fmt.Errorf("check link: %w", err)
	}
	if used {
		return errLinkExpired
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO consumed_links (jti, expires_at) VALUES (?, ?)`, jti, expiresAt.UTC(),
	); err != nil {
		// a concurrent click on the same link lost the race
		return errLinkExpired
	}
	return nil
}

func (s *Service) mailLink(ctx context.Context, purpose, email, subject, lead string) error {
	token, err := s.links.sign(purpose, email, s.linkTTL)
	if err != nil {
		return err
	}
	link := s.publicURL + "/auth/verify?token=" + url.QueryEscape(token)
	body := fmt.Sprintf(`<h2>%s</h2><p>%s:</p><p><a href="%s">%s</a></p>`,
		html.EscapeString(subject), html.EscapeString(lead), html.EscapeString(link), html.EscapeString(link))
	if err := s.mailer.Send(ctx, email, subject, body); err != nil {
		return authprovider.NewError("Error sending email")
	}
	return nil
}

func (s *Service) createUser(ctx context.Context, email, hash string, confirmed bool) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, confirmed, created_at) VALUES (?, ?, ?, ?)`,
		email, hash, confirmed, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("user id: %w", err)
	}
	return id, nil
}

func (s *Service) userByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, confirmed, created_at FROM users WHERE email = ?`, email,
	)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*models.User, error) {
	var user models.User
	if err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Confirmed, &user.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", errEmailRequired
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", authprovider.NewError("Unable to validate email address: invalid format")
	}
	return email, nil
}
