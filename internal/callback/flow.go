// Package callback runs the Instagram authorization-code callback: exchange the
// code for a token, then load the account's conversations.
package callback

import (
	"context"
	"log"
	"strings"

	"instadm/internal/instagram"
	"instadm/internal/models"
)

// State is a step of the callback flow.
type State string

const (
	StateInit                  State = "init"
	StateNoCode                State = "no_code"
	StateExchanging            State = "exchanging"
	StateTokenError            State = "token_error"
	StateFetchingMessages      State = "fetching_messages"
	StateConnectedNoMessages   State = "connected_no_messages"
	StateConnectedWithMessages State = "connected_with_messages"
)

const (
	StatusNoCode     = "No code found in URL."
	StatusExchanging = "Exchanging code for access token..."
	StatusConnected  = "Instagram account connected! Access token received."
	StatusFailed     = "Failed to get access token."

	fetchErrorPrefix = "Error fetching messages: "
)

// Terminal reports whether the flow stops in s.
func (s State) Terminal() bool {
	switch s {
	case StateNoCode, StateTokenError, StateConnectedNoMessages, StateConnectedWithMessages:
		return true
	}
	return false
}

// Client is the backend the flow talks to.
type Client interface {
	ExchangeCode(ctx context.Context, code string) (string, error)
	FetchConversations(ctx context.Context, token string) ([]models.Conversation, error)
}

var _ Client = (*instagram.BackendClient)(nil)

// Result is everything the callback page renders.
type Result struct {
	State         State
	Status        string
	Error         string
	AccessToken   string
	Conversations []models.Conversation
}

// Flow drives one callback from code to conversations. It never retries.
type Flow struct {
	client Client
	// observe, when set, sees every applied state.
	observe func(Result)
}

// NewFlow builds a flow on client.
func NewFlow(client Client) *Flow {
	return &Flow{client: client}
}

// Run executes the flow for code. When ctx is cancelled mid-flight Run stops
// before applying the next state and returns ctx.Err() with the last applied result.
func (f *Flow) Run(ctx context.Context, code string) (Result, error) {
	res := Result{State: StateInit}

	if strings.TrimSpace(code) == "" {
		err := f.apply(ctx, &res, func(r *Result) {
			r.State = StateNoCode
			r.Status = StatusNoCode
			r.Error = StatusNoCode
		})
		return res, err
	}

	if err := f.apply(ctx, &res, func(r *Result) {
		r.State = StateExchanging
		r.Status = StatusExchanging
	}); err != nil {
		return res, err
	}

	token, err := f.client.ExchangeCode(ctx, code)
	if err != nil {
		if applyErr := f.apply(ctx, &res, func(r *Result) {
			r.State = StateTokenError
			r.Status = StatusFailed
			r.Error = err.Error()
		}); applyErr != nil {
			return res, applyErr
		}
		log.Printf("instagram token exchange failed: %v", err)
		return res, nil
	}

	if err := f.apply(ctx, &res, func(r *Result) {
		r.State = StateFetchingMessages
		r.Status = StatusConnected
		r.AccessToken = token
	}); err != nil {
		return res, err
	}

	conversations, err := f.client.FetchConversations(ctx, token)
	if err != nil {
		applyErr := f.apply(ctx, &res, func(r *Result) {
			r.State = StateConnectedNoMessages
			r.Error = fetchErrorPrefix + err.Error()
		})
		if applyErr == nil {
			log.Printf("instagram messages fetch failed: %v", err)
		}
		return res, applyErr
	}

	err = f.apply(ctx, &res, func(r *Result) {
		r.State = StateConnectedWithMessages
		if conversations == nil {
			conversations = []models.Conversation{}
		}
		r.Conversations = conversations
	})
	return res, err
}

func (f *Flow) apply(ctx context.Context, res *Result, update func(*Result)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	update(res)
	if f.observe != nil {
		f.observe(*res)
	}
	return nil
}
