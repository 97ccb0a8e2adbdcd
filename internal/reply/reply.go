// Package reply defines the boundary to the reply-generation collaborator and
// ships two implementations: a deterministic scripted substitute and an HTTP
// client for an external completion endpoint.
package reply

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/cohort/internal/script"
)

// MaxRecent bounds the transcript excerpt sent with each request.
const MaxRecent = 10

// ErrNoReply is returned when a generator has nothing to say.
var ErrNoReply = errors.New("no reply available")

// Turn is one transcript line given to the generator as context.
type Turn struct {
	SenderKey  string    `json:"senderKey"`
	SenderName string    `json:"senderName"`
	Content    string    `json:"content"`
	At         time.Time `json:"at"`
}

// Request asks for a reply to one user message.
type Request struct {
	UserID      string         `json:"userId"`
	FirstName   string         `json:"firstName"`
	UserMessage string         `json:"userMessage"`
	Recent      []Turn         `json:"recentTranscript"`
	Roster      script.Roster  `json:"-"`
	ElapsedDays int            `json:"elapsedDays"`
	// Turn is how many messages the user sent before this one.
	Turn int `json:"turn"`
}

// Item is one responder's contribution.
type Item struct {
	ResponderID string `json:"responderId"`
	Content     string `json:"content"`
	DelayMs     int64  `json:"delayMs,omitempty"`
}

// Delay returns the item's delivery delay.
func (i Item) Delay() time.Duration {
	return time.Duration(i.DelayMs) * time.Millisecond
}

// Response carries either a single reply or an ordered burst.
type Response struct {
	Single *Item  `json:"singleReply,omitempty"`
	Burst  []Item `json:"burst,omitempty"`
}

// IsBurst reports whether the response is a multi-responder sequence.
func (r Response) IsBurst() bool {
	return r.Single == nil && len(r.Burst) > 0
}

// Validate rejects responses that cannot be delivered.
func (r Response) Validate() error {
	switch {
	case r.Single != nil && len(r.Burst) > 0:
		return errors.New("response has both singleReply and burst")
	case r.Single != nil:
		return validateItem("singleReply", *r.Single)
	case len(r.Burst) > 0:
		for i, item := range r.Burst {
			if err := validateItem(fmt.Sprintf("burst[%d]", i), item); err != nil {
				return err
			}
		}
		return nil
	default:
		return errors.New("response is empty")
	}
}

func validateItem(field string, item Item) error {
	if strings.TrimSpace(item.Content) == "" {
		return fmt.Errorf("%s: content is empty", field)
	}
	if item.DelayMs < 0 {
		return fmt.Errorf("%s: delayMs must be non-negative, got %d", field, item.DelayMs)
	}
	return nil
}

// Generator produces replies. Implementations must honor ctx cancellation.
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (Response, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// Recent returns the last MaxRecent turns of transcript.
func Recent(transcript []Turn) []Turn {
	if len(transcript) <= MaxRecent {
		return transcript
	}
	return transcript[len(transcript)-MaxRecent:]
}
