package script

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cohort/internal/ident"
)

// MentorKey is the sender key that resolves to the script's mentor.
const MentorKey = "mentor"

// PersonalityClass selects a persona's progress curve.
type PersonalityClass string

const (
	ClassLeader     PersonalityClass = "leader"
	ClassBuyer      PersonalityClass = "buyer"
	ClassQuestioner PersonalityClass = "questioner"
	ClassStruggler  PersonalityClass = "struggler"
)

// Classes lists every personality class in a fixed order.
var Classes = []PersonalityClass{ClassLeader, ClassBuyer, ClassQuestioner, ClassStruggler}

// Valid reports whether c is a known class.
func (c PersonalityClass) Valid() bool {
	for _, known := range Classes {
		if c == known {
			return true
		}
	}
	return false
}

// Persona is a fixed synthetic identity shown in the feed.
// The mentor is a Persona with Key MentorKey and no class.
type Persona struct {
	Key         string           `yaml:"-" json:"-"`
	DisplayName string           `yaml:"displayName" json:"displayName"`
	AvatarRef   string           `yaml:"avatarRef,omitempty" json:"avatarRef,omitempty"`
	Class       PersonalityClass `yaml:"personalityClass,omitempty" json:"personalityClass,omitempty"`
}

// Roster is the ordered persona list. Order is document order.
type Roster []Persona

// Lookup returns the persona with the given key and its roster position.
func (r Roster) Lookup(key string) (Persona, int, bool) {
	for i, p := range r {
		if p.Key == key {
			return p, i, true
		}
	}
	return Persona{}, -1, false
}

// UnmarshalYAML decodes the personas mapping while keeping document order.
func (r *Roster) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: personas must be a mapping", node.Line)
	}
	out := make(Roster, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		var p Persona
		if err := node.Content[i+1].Decode(&p); err != nil {
			return fmt.Errorf("persona %q: %w", key, err)
		}
		p.Key = key
		out = append(out, p)
	}
	*r = out
	return nil
}

// Message is one authored line of a script day.
type Message struct {
	ID           string `yaml:"id" json:"id"`
	SenderKey    string `yaml:"senderKey" json:"senderKey"`
	Content      string `yaml:"content" json:"content"`
	DelayMinutes int    `yaml:"delayMinutesFromDayStart" json:"delayMinutesFromDayStart"`
}

// Day groups the messages unlocked on one day offset, in authored order.
type Day struct {
	DayOffset int       `yaml:"dayOffset" json:"dayOffset"`
	Messages  []Message `yaml:"messages" json:"messages"`
}

// Line is an authored reply used outside the day table: welcome bursts,
// scripted replies and the fallback.
type Line struct {
	SenderKey string `yaml:"senderKey" json:"senderKey"`
	Content   string `yaml:"content" json:"content"`
	DelayMs   int    `yaml:"delayMs,omitempty" json:"delayMs,omitempty"`
}

// DefaultFallback is used when a script authors no fallback line.
var DefaultFallback = Line{
	SenderKey: MentorKey,
	Content:   "Thanks for sharing, {firstName}! Give me a moment and I'll get back to you.",
}

// Script is the complete authored document.
type Script struct {
	Mentor   Persona `yaml:"mentor" json:"mentor"`
	Personas Roster  `yaml:"personas" json:"-"`
	Days     []Day   `yaml:"days" json:"days"`
	Welcome  []Line  `yaml:"welcome,omitempty" json:"welcome,omitempty"`
	Replies  []Line  `yaml:"replies,omitempty" json:"replies,omitempty"`
	Fallback *Line   `yaml:"fallback,omitempty" json:"fallback,omitempty"`
}

// Empty returns the script used when configuration is missing or invalid.
// It reveals nothing but still resolves the mentor.
func Empty() *Script {
	return &Script{Mentor: Persona{Key: MentorKey, DisplayName: "Mentor"}}
}

// FallbackLine returns the authored fallback or DefaultFallback.
func (s *Script) FallbackLine() Line {
	if s == nil || s.Fallback == nil || s.Fallback.Content == "" {
		return DefaultFallback
	}
	return *s.Fallback
}

// MessageCount returns the number of scripted day messages.
func (s *Script) MessageCount() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, d := range s.Days {
		n += len(d.Messages)
	}
	return n
}

// Fingerprint is a stable hash of the script's revealable content.
// It changes whenever a persona, day or message changes.
func (s *Script) Fingerprint() string {
	if s == nil {
		return ident.Hash(ident.DomainScript)
	}
	parts := []string{s.Mentor.DisplayName, s.Mentor.AvatarRef}
	for _, p := range s.Personas {
		parts = append(parts, "persona", p.Key, p.DisplayName, p.AvatarRef, string(p.Class))
	}
	for _, d := range s.Days {
		parts = append(parts, "day", strconv.Itoa(d.DayOffset))
		for _, m := range d.Messages {
			parts = append(parts, m.ID, m.SenderKey, m.Content, strconv.Itoa(m.DelayMinutes))
		}
	}
	return ident.Hash(ident.DomainScript, parts...)
}
