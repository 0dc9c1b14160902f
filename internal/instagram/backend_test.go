package instagram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestExchangeCodeSendsNoSecret(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != TokenPath {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"T"}`))
	}))
	defer srv.Close()

	client := NewBackendClient(srv.URL+"/", "app-1", "http://localhost/instagram/callback", time.Second)
	token, err := client.ExchangeCode(context.Background(), "abc")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if token != "T" {
		t.Fatalf("expected token T, got %q", token)
	}
	if got["code"] != "abc" || got["client_id"] != "app-1" || got["redirect_uri"] != "http://localhost/instagram/callback" {
		t.Fatalf("unexpected body %v", got)
	}
	if _, ok := got["client_secret"]; ok {
		t.Fatalf("client_secret must not be sent")
	}
}

func TestExchangeCodeErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"error string", http.StatusBadRequest, `{"error":"invalid_grant"}`, "invalid_grant"},
		{"error object", http.StatusBadRequest, `{"error":{"message":"Code expired","type":"OAuthException"}}`, "Code expired"},
		{"no body", http.StatusInternalServerError, ``, "Token exchange failed with status 500"},
		{"ok with error_message", http.StatusOK, `{"error_type":"OAuthException","error_message":"Invalid code"}`, "Invalid code"},
		{"ok without token", http.StatusOK, "{\n  \"foo\": 1\n}", `{"foo":1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			client := NewBackendClient(srv.URL, "app-1", "", time.Second)
			_, err := client.ExchangeCode(context.Background(), "abc")
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %v", err)
			}
			if apiErr.Error() != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, apiErr.Error())
			}
		})
	}
}

func TestFetchConversations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != MessagesPath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("access_token") != "T" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"access_token is required"}`))
			return
		}
		_, _ = w.Write([]byte(`[{"id":"c1","participants":[{"id":"1","username":"alice"},{"id":"2"}],
			"messages":[{"id":"m1","message":"hi","from":{"id":"1","username":"alice"},"to":{"id":"2"},"created_time":"2024-05-01T10:00:00+0000"}]}]`))
	}))
	defer srv.Close()

	client := NewBackendClient(srv.URL, "app-1", "", time.Second)
	convs, err := client.FetchConversations(context.Background(), "T")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(convs) != 1 || len(convs[0].Messages) != 1 {
		t.Fatalf("unexpected conversations %+v", convs)
	}
	msg := convs[0].Messages[0]
	if msg.Text != "hi" || msg.From.DisplayName() != "alice" || msg.To.DisplayName() != "2" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if !msg.CreatedTime.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected time %v", msg.CreatedTime)
	}

	_, err = client.FetchConversations(context.Background(), "wrong")
	if err == nil || !strings.Contains(err.Error(), "access_token is required") {
		t.Fatalf("expected backend error text, got %v", err)
	}
}

func TestFetchConversationsKeepsMessagesWithOddTimestamps(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"c1","participants":[{"id":"1"}],
			"messages":[{"id":"m1","message":"hi","from":{"id":"1"},"created_time":"2024-05-01 14:30:00"}]},
			{"id":"c2","participants":[{"id":"2"}],
			"messages":[{"id":"m2","message":"yo","from":{"id":"2"},"created_time":"2024-05-01T10:00:00+0000"}]}]`))
	}))
	defer srv.Close()

	convs, err := NewBackendClient(srv.URL, "app-1", "", time.Second).FetchConversations(context.Background(), "T")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(convs))
	}
	if !convs[0].Messages[0].CreatedTime.IsZero() {
		t.Fatalf("expected zero time for unparseable value, got %v", convs[0].Messages[0].CreatedTime)
	}
	if convs[1].Messages[0].CreatedTime.IsZero() {
		t.Fatalf("expected parsed time for second message")
	}
}

func TestFetchConversationsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	client := NewBackendClient(srv.URL, "app-1", "", time.Second)
	if _, err := client.FetchConversations(context.Background(), "T"); err == nil {
		t.Fatalf("expected transport error")
	}
}
