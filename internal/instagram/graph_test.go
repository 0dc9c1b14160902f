package instagram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"instadm/internal/config"
)

func newGraphServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if _, _, ok := r.BasicAuth(); ok {
			t.Errorf("credentials must travel in the form body")
		}
		if r.PostForm.Get("client_secret") != "shh" || r.PostForm.Get("client_id") != "app-1" {
			t.Errorf("unexpected client credentials %v", r.PostForm)
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.PostForm.Get("code") {
		case "good":
			if r.PostForm.Get("redirect_uri") != "https://example.com/instagram/callback" {
				t.Errorf("unexpected redirect_uri %q", r.PostForm.Get("redirect_uri"))
			}
			_, _ = w.Write([]byte(`{"access_token":"IGT","user_id":17841400}`))
		case "grant":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error_type":"OAuthException","code":400,"error_message":"Invalid authorization code"}`))
		}
	})
	mux.HandleFunc("/v21.0/me/conversations", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("platform") != "instagram" || q.Get("fields") != conversationFields {
			t.Errorf("unexpected query %v", q)
		}
		w.Header().Set("Content-Type", "application/json")
		if q.Get("access_token") != "IGT" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"Invalid OAuth access token - Cannot parse access token","type":"OAuthException","code":190}}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":[
			{"id":"c1",
			 "participants":{"data":[{"username":"shop","id":"10"},{"username":"bob","id":"20"}]},
			 "messages":{"data":[{"id":"m1","message":"hello","created_time":"2024-05-01T10:00:00+0000",
			   "from":{"username":"bob","id":"20"},"to":{"data":[{"username":"shop","id":"10"}]}}]}},
			{"id":"c2","participants":{"data":[{"id":"30"}]}}
		]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestGraphClient(srv *httptest.Server) *GraphClient {
	return NewGraphClient(config.InstagramConfig{
		AppID:        "app-1",
		AppSecret:    "shh",
		RedirectURI:  "https://example.com/instagram/callback",
		TokenURL:     srv.URL + "/oauth/access_token",
		GraphBaseURL: srv.URL + "/v21.0/",
	}, time.Second)
}

func TestGraphExchange(t *testing.T) {
	client := newTestGraphClient(newGraphServer(t))
	tok, err := client.Exchange(context.Background(), "good", "")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if tok.AccessToken != "IGT" || tok.UserID != "17841400" {
		t.Fatalf("unexpected token %+v", tok)
	}
}

func TestGraphExchangeErrors(t *testing.T) {
	client := newTestGraphClient(newGraphServer(t))
	cases := []struct {
		code     string
		wantMsg  string
		wantType string
	}{
		{"bad", "Invalid authorization code", "OAuthException"},
		{"grant", "invalid_grant", "invalid_grant"},
	}
	for _, tc := range cases {
		_, err := client.Exchange(context.Background(), tc.code, "")
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("%s: expected APIError, got %v", tc.code, err)
		}
		if apiErr.Status != http.StatusBadRequest || apiErr.Message != tc.wantMsg || apiErr.Type != tc.wantType {
			t.Fatalf("%s: unexpected error %+v", tc.code, apiErr)
		}
	}
}

func TestGraphConversations(t *testing.T) {
	client := newTestGraphClient(newGraphServer(t))
	convs, err := client.Conversations(context.Background(), "IGT")
	if err != nil {
		t.Fatalf("conversations: %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(convs))
	}
	first := convs[0]
	if first.ID != "c1" || len(first.Participants) != 2 || first.Participants[1].Username != "bob" {
		t.Fatalf("unexpected first conversation %+v", first)
	}
	msg := first.Messages[0]
	if msg.Text != "hello" || msg.From.ID != "20" || msg.To.Username != "shop" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if convs[1].Messages == nil || len(convs[1].Messages) != 0 {
		t.Fatalf("expected empty non-nil messages, got %#v", convs[1].Messages)
	}

	_, err = client.Conversations(context.Background(), "expired")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Type != "OAuthException" {
		t.Fatalf("expected graph APIError, got %v", err)
	}
}
