// Package authprovider defines the contract between the sign-in screen and
// whichever service actually owns credentials, sessions and OAuth redirects.
package authprovider

import (
	"context"
	"errors"
	"strings"
)

// Google is the only OAuth provider the sign-in screen offers.
const Google = "google"

// Credentials are the transient email/password pair submitted by the form.
type Credentials struct {
	Email    string
	Password string
}

// Session is what a successful password sign-in hands back to the caller.
type Session struct {
	AccessToken string
	ExpiresIn   int
	UserID      string
	Email       string
}

// Provider is an external (or self-hosted) authentication service.
type Provider interface {
	SignInWithPassword(ctx context.Context, creds Credentials) (*Session, error)
	// SignUp registers the account; the provider is expected to send a confirmation email.
	SignUp(ctx context.Context, creds Credentials) error
	// SignInWithOtp sends a passwordless magic link to email.
	SignInWithOtp(ctx context.Context, email string) error
	// SignInWithOAuth returns the URL the browser must be redirected to.
	SignInWithOAuth(ctx context.Context, provider string) (string, error)
}

// ProviderError is a structured failure reported by the provider. Message is shown verbatim.
type ProviderError struct {
	Status  int
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	return e.Message
}

// NewError builds a ProviderError with only a message.
func NewError(message string) *ProviderError {
	return &ProviderError{Message: message}
}

// Message extracts the human-readable text for err: the provider's message
// when it is a ProviderError, the stringified error otherwise.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var perr *ProviderError
	if errors.As(err, &perr) && strings.TrimSpace(perr.Message) != "" {
		return perr.Message
	}
	return err.Error()
}
