package callback

import (
	"strings"

	"instadm/internal/models"
)

const (
	NoticeNoMessages             = "No messages found."
	NoticeNoConversationMessages = "No messages in this conversation."

	unknownSender = "Unknown"
)

// View is the render model of the callback page.
type View struct {
	Status        string
	Error         string
	AccessToken   string
	Loading       bool
	ShowMessages  bool
	Empty         bool
	Notice        string
	Conversations []ConversationView
	Lang          string
}

type ConversationView struct {
	ID           string
	Participants string
	MessageCount string
	Messages     []MessageView
	Empty        bool
	Notice       string
}

type MessageView struct {
	ID     string
	Sender string
	Text   string
	Time   string
	// ISOTime feeds the <time datetime> attribute.
	ISOTime string
}

// NewView turns a flow result into what the template renders.
func NewView(res Result, loc Locale) View {
	v := View{
		Status:      res.Status,
		Error:       res.Error,
		AccessToken: res.AccessToken,
		Loading:     !res.State.Terminal(),
		Lang:        loc.Tag.String(),
	}
	if res.State != StateConnectedWithMessages {
		return v
	}
	v.ShowMessages = true
	v.Empty = len(res.Conversations) == 0
	if v.Empty {
		v.Notice = NoticeNoMessages
	}
	v.Conversations = make([]ConversationView, 0, len(res.Conversations))
	for _, conv := range res.Conversations {
		cv := ConversationView{
			ID:           conv.ID,
			Participants: joinParticipants(conv.Participants),
			MessageCount: loc.Count(len(conv.Messages)),
			Empty:        len(conv.Messages) == 0,
			Messages:     make([]MessageView, 0, len(conv.Messages)),
		}
		if cv.Empty {
			cv.Notice = NoticeNoConversationMessages
		}
		for _, msg := range conv.Messages {
			mv := MessageView{
				ID:     msg.ID,
				Sender: senderName(msg.From),
				Text:   msg.Text,
				Time:   loc.FormatTime(msg.CreatedTime.Time),
			}
			if !msg.CreatedTime.IsZero() {
				mv.ISOTime = msg.CreatedTime.UTC().Format("2006-01-02T15:04:05Z07:00")
			}
			cv.Messages = append(cv.Messages, mv)
		}
		v.Conversations = append(v.Conversations, cv)
	}
	return v
}

func joinParticipants(participants []models.Participant) string {
	names := make([]string, 0, len(participants))
	for _, p := range participants {
		if name := p.DisplayName(); name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, ", ")
}

func senderName(p models.Participant) string {
	if name := p.DisplayName(); name != "" {
		return name
	}
	return unknownSender
}
