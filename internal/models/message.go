package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Participant is one side of a conversation.
type Participant struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
}

// DisplayName returns the username, falling back to the id.
func (p Participant) DisplayName() string {
	if name := strings.TrimSpace(p.Username); name != "" {
		return name
	}
	return p.ID
}

// Message is a single direct message as returned by the messages endpoint.
type Message struct {
	ID          string      `json:"id"`
	Text        string      `json:"message"`
	From        Participant `json:"from"`
	To          Participant `json:"to"`
	CreatedTime Timestamp   `json:"created_time"`
}

// Conversation groups the participants and the messages of one thread.
type Conversation struct {
	ID           string        `json:"id"`
	Participants []Participant `json:"participants"`
	Messages     []Message     `json:"messages"`
}

// graphTimeLayout is the offset form the Graph API uses ("+0000" without a colon).
const graphTimeLayout = "2006-01-02T15:04:05-0700"

// Timestamp accepts both RFC 3339 and Graph API time strings.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON leaves the zero time for null, empty or unrecognised values so
// one odd message never fails a whole conversation list.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	t.Time = time.Time{}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil || raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, graphTimeLayout} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339))
}
