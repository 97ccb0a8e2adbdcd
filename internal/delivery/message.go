package delivery

import (
	"time"

	"github.com/roach88/cohort/internal/drip"
	"github.com/roach88/cohort/internal/script"
	"github.com/roach88/cohort/internal/store"
)

// UserKey is the sender key of the viewing user.
const UserKey = "user"

// Source records where a transcript message came from.
type Source string

const (
	SourceScript   Source = "script"
	SourceUser     Source = "user"
	SourceReply    Source = "reply"
	SourceFallback Source = "fallback"
)

// Message is one transcript line as the host renders it.
type Message struct {
	ID           string            `json:"id"`
	SenderKey    string            `json:"senderKey"`
	SenderName   string            `json:"senderName"`
	SenderAvatar string            `json:"senderAvatar,omitempty"`
	SenderKind   script.SenderKind `json:"senderKind"`
	Content      string            `json:"content"`
	At           time.Time         `json:"at"`
	IsMentor     bool              `json:"isMentor"`
	Source       Source            `json:"source"`
	ReplyTo      string            `json:"replyTo,omitempty"`
}

func fromRevealed(r drip.Revealed) Message {
	return Message{
		ID:           r.ID,
		SenderKey:    r.SenderKey,
		SenderName:   r.SenderName,
		SenderAvatar: r.SenderAvatar,
		SenderKind:   r.SenderKind,
		Content:      r.Content,
		At:           r.ScheduledAt,
		IsMentor:     r.IsMentor,
		Source:       SourceScript,
	}
}

func fromSender(id string, s script.Sender, content string, at time.Time, src Source) Message {
	return Message{
		ID:           id,
		SenderKey:    s.Key,
		SenderName:   s.Name,
		SenderAvatar: s.Avatar,
		SenderKind:   s.Kind,
		Content:      content,
		At:           at,
		IsMentor:     s.Kind == script.SenderMentor,
		Source:       src,
	}
}

// toStored maps a live message to its persisted row.
func toStored(userID, scriptHash string, m Message) store.Message {
	sm := store.Message{
		ID:         m.ID,
		UserID:     userID,
		Content:    m.Content,
		CreatedAt:  m.At,
		ReplyTo:    m.ReplyTo,
		ScriptHash: scriptHash,
	}
	if m.Source != SourceUser {
		sm.Responder = m.SenderKey
	}
	return sm
}
