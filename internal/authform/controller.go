// Package authform drives the four sign-in actions of the auth screen and
// records one status per action for the browser that submitted it.
package authform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"instadm/internal/authprovider"
	"instadm/internal/viewstate"
)

// Action identifies one of the auth screen's independent operations.
type Action string

const (
	ActionSignIn    Action = "sign_in"
	ActionSignUp    Action = "sign_up"
	ActionMagicLink Action = "magic_link"
	ActionProvider  Action = "provider"
)

// Actions lists every action in display order.
var Actions = []Action{ActionSignIn, ActionSignUp, ActionMagicLink, ActionProvider}

const (
	MsgSignedIn      = "Signed in successfully!"
	MsgSignedUp      = "Sign up successful! Check your email to confirm."
	MsgMagicLinkSent = "Check your email for the magic link!"
)

var errEmailRequired = authprovider.NewError("Email address is required")

// Status is the visible state of one action.
type Status struct {
	Loading bool   `json:"loading"`
	Message string `json:"message,omitempty"`
	Failed  bool   `json:"failed,omitempty"`
}

// Controller runs auth actions against a provider and persists their status.
type Controller struct {
	provider authprovider.Provider
	store    viewstate.Store
}

// NewController builds a controller.
func NewController(provider authprovider.Provider, store viewstate.Store) *Controller {
	return &Controller{provider: provider, store: store}
}

// SignIn signs in with email and password. The returned session is nil on failure.
func (c *Controller) SignIn(ctx context.Context, viewID, email, password string) (*authprovider.Session, error) {
	if err := c.begin(ctx, viewID, ActionSignIn); err != nil {
		return nil, err
	}
	session, err := c.provider.SignInWithPassword(ctx, authprovider.Credentials{Email: email, Password: password})
	if err != nil {
		return nil, c.fail(ctx, viewID, ActionSignIn, err)
	}
	return session, c.finish(ctx, viewID, ActionSignIn, MsgSignedIn)
}

// SignUp registers email and password with the provider.
func (c *Controller) SignUp(ctx context.Context, viewID, email, password string) error {
	if err := c.begin(ctx, viewID, ActionSignUp); err != nil {
		return err
	}
	if err := c.provider.SignUp(ctx, authprovider.Credentials{Email: email, Password: password}); err != nil {
		return c.fail(ctx, viewID, ActionSignUp, err)
	}
	return c.finish(ctx, viewID, ActionSignUp, MsgSignedUp)
}

// SendMagicLink asks the provider to email a one-time sign-in link.
func (c *Controller) SendMagicLink(ctx context.Context, viewID, email string) error {
	if err := c.begin(ctx, viewID, ActionMagicLink); err != nil {
		return err
	}
	if strings.TrimSpace(email) == "" {
		return c.fail(ctx, viewID, ActionMagicLink, errEmailRequired)
	}
	if err := c.provider.SignInWithOtp(ctx, email); err != nil {
		return c.fail(ctx, viewID, ActionMagicLink, err)
	}
	return c.finish(ctx, viewID, ActionMagicLink, MsgMagicLinkSent)
}

// SignInWithProvider returns the URL to redirect the browser to. On success
// the action's message stays empty.
func (c *Controller) SignInWithProvider(ctx context.Context, viewID, provider string) (string, error) {
	if err := c.begin(ctx, viewID, ActionProvider); err != nil {
		return "", err
	}
	redirect, err := c.provider.SignInWithOAuth(ctx, provider)
	if err != nil {
		return "", c.fail(ctx, viewID, ActionProvider, err)
	}
	return redirect, c.finish(ctx, viewID, ActionProvider, "")
}

// Statuses returns the status of every action for the browser. Actions never
// run report the zero Status.
func (c *Controller) Statuses(ctx context.Context, viewID string) (map[Action]Status, error) {
	raw, err := c.store.All(ctx, viewID)
	if err != nil {
		return nil, err
	}
	out := make(map[Action]Status, len(Actions))
	for _, action := range Actions {
		var st Status
		if data, ok := raw[string(action)]; ok {
			if err := json.Unmarshal(data, &st); err != nil {
				log.Printf("decode status %s for view %s: %v", action, viewID, err)
				st = Status{}
			}
		}
		out[action] = st
	}
	return out, nil
}

// Record sets an action's final status directly, for outcomes that complete
// outside the controller such as an emailed link or OAuth redirect.
func (c *Controller) Record(ctx context.Context, viewID string, action Action, message string, failed bool) error {
	return c.put(context.WithoutCancel(ctx), viewID, action, Status{Message: message, Failed: failed})
}

func (c *Controller) begin(ctx context.Context, viewID string, action Action) error {
	return c.put(ctx, viewID, action, Status{Loading: true})
}

// fail records err's message and returns err unchanged unless the write itself fails.
func (c *Controller) fail(ctx context.Context, viewID string, action Action, err error) error {
	if perr := c.put(context.WithoutCancel(ctx), viewID, action, Status{Message: authprovider.Message(err), Failed: true}); perr != nil {
		return errors.Join(err, perr)
	}
	return err
}

func (c *Controller) finish(ctx context.Context, viewID string, action Action, message string) error {
	return c.put(context.WithoutCancel(ctx), viewID, action, Status{Message: message})
}

func (c *Controller) put(ctx context.Context, viewID string, action Action, st Status) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	if err := c.store.Put(ctx, viewID, string(action), data); err != nil {
		return fmt.Errorf("save %s status: %w", action, err)
	}
	return nil
}
