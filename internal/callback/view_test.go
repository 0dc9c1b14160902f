package callback

import (
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/text/language"

	"instadm/internal/models"
)

func TestNewViewRendersConversations(t *testing.T) {
	at := time.Date(2024, 5, 1, 14, 30, 0, 0, time.UTC)
	res := Result{
		State:       StateConnectedWithMessages,
		Status:      StatusConnected,
		AccessToken: "T",
		Conversations: []models.Conversation{
			{
				ID:           "c1",
				Participants: []models.Participant{{ID: "1", Username: "alice"}, {ID: "2"}},
				Messages: []models.Message{
					{ID: "m1", Text: "hi", From: models.Participant{ID: "1", Username: "alice"}, CreatedTime: models.Timestamp{Time: at}},
					{ID: "m2", Text: "anon"},
				},
			},
			{ID: "c2", Participants: []models.Participant{{ID: "3", Username: "carol"}}},
		},
	}
	v := NewView(res, NewLocale(language.AmericanEnglish))
	if !v.ShowMessages || v.Empty || v.Loading {
		t.Fatalf("unexpected flags %+v", v)
	}
	first := v.Conversations[0]
	if first.Participants != "alice, 2" {
		t.Fatalf("unexpected participants %q", first.Participants)
	}
	if first.Empty || first.MessageCount != "2" {
		t.Fatalf("unexpected conversation %+v", first)
	}
	if first.Messages[0].Sender != "alice" || first.Messages[0].Time != "May 1, 2024, 2:30 PM UTC" {
		t.Fatalf("unexpected message view %+v", first.Messages[0])
	}
	if first.Messages[0].ISOTime != "2024-05-01T14:30:00Z" {
		t.Fatalf("unexpected iso time %q", first.Messages[0].ISOTime)
	}
	if first.Messages[1].Sender != "Unknown" || first.Messages[1].Time != "" {
		t.Fatalf("expected unknown sender without time, got %+v", first.Messages[1])
	}
	if first.Notice != "" {
		t.Fatalf("unexpected notice on a non-empty conversation: %q", first.Notice)
	}
	if !v.Conversations[1].Empty || v.Conversations[1].Notice != "No messages in this conversation." {
		t.Fatalf("expected only the second conversation to be empty")
	}
}

func TestNewViewEmptyList(t *testing.T) {
	v := NewView(Result{State: StateConnectedWithMessages, Conversations: []models.Conversation{}}, NewLocale(language.AmericanEnglish))
	if !v.ShowMessages || !v.Empty || v.Notice != "No messages found." {
		t.Fatalf("expected empty notice, got %+v", v)
	}
}

func TestNewViewTokenErrorHidesMessages(t *testing.T) {
	v := NewView(Result{State: StateTokenError, Status: StatusFailed, Error: "invalid_grant"}, NewLocale(language.AmericanEnglish))
	if v.ShowMessages || v.Error != "invalid_grant" || v.AccessToken != "" || v.Loading {
		t.Fatalf("unexpected view %+v", v)
	}
}

func TestResolveLocale(t *testing.T) {
	at := time.Date(2024, 5, 1, 14, 30, 0, 0, time.UTC)
	cases := []struct {
		header string
		want   string
	}{
		{"", "May 1, 2024, 2:30 PM UTC"},
		{"de-DE,de;q=0.9,en;q=0.5", "01.05.2024, 14:30 UTC"},
		{"en-GB", "1 May 2024, 14:30 UTC"},
		{"ja", "2024/05/01 14:30 UTC"},
		{"xx-unknown", "May 1, 2024, 2:30 PM UTC"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest("GET", "/instagram/callback", nil)
		if tc.header != "" {
			req.Header.Set("Accept-Language", tc.header)
		}
		if got := ResolveLocale(req).FormatTime(at); got != tc.want {
			t.Fatalf("%q: expected %q, got %q", tc.header, tc.want, got)
		}
	}
}

func TestLocaleCountGroupsDigits(t *testing.T) {
	if got := NewLocale(language.AmericanEnglish).Count(12345); got != "12,345" {
		t.Fatalf("unexpected en count %q", got)
	}
	if got := NewLocale(language.German).Count(12345); got != "12.345" {
		t.Fatalf("unexpected de count %q", got)
	}
}
