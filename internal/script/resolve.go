package script

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/cohort/internal/ident"
)

// SenderKind classifies who a message is attributed to.
type SenderKind string

const (
	SenderMentor  SenderKind = "mentor"
	SenderPersona SenderKind = "persona"
	SenderUser    SenderKind = "user"
)

// Sender is a resolved sender key.
type Sender struct {
	Key    string
	Name   string
	Avatar string
	Kind   SenderKind
	// Position is the roster position, or -1 for the mentor and unknown keys.
	Position int
	// Known is false when the key matched neither the mentor nor a persona.
	Known bool
}

// Resolve maps a sender key to its display identity. It never fails: a key
// with no persona renders under a label derived from the key so the message
// is still shown.
func (s *Script) Resolve(key string) Sender {
	if s == nil {
		s = Empty()
	}
	if key == MentorKey {
		return Sender{
			Key:      MentorKey,
			Name:     s.Mentor.DisplayName,
			Avatar:   s.Mentor.AvatarRef,
			Kind:     SenderMentor,
			Position: -1,
			Known:    true,
		}
	}
	if p, pos, ok := s.Personas.Lookup(key); ok {
		return Sender{
			Key:      key,
			Name:     p.DisplayName,
			Avatar:   p.AvatarRef,
			Kind:     SenderPersona,
			Position: pos,
			Known:    true,
		}
	}
	return Sender{Key: key, Name: Label(key), Kind: SenderPersona, Position: -1}
}

// Label turns a sender key into a readable name: "peer_sam" -> "Peer Sam".
func Label(key string) string {
	words := strings.FieldsFunc(key, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || r == ' '
	})
	if len(words) == 0 {
		return "Member"
	}
	// Casers carry state and are not safe to share across goroutines.
	return cases.Title(language.English).String(strings.Join(words, " "))
}

// DefaultFirstName stands in when the viewing user has no first name.
const DefaultFirstName = "friend"

// Vars carries per-viewer values substituted into content.
type Vars struct {
	FirstName string
}

// Substitute replaces template placeholders in content. It is a plain string
// replacement; unknown placeholders are left untouched.
func Substitute(content string, vars Vars) string {
	name := strings.TrimSpace(vars.FirstName)
	if name == "" {
		name = DefaultFirstName
	}
	r := strings.NewReplacer("{firstName}", name)
	return ident.Normalize(r.Replace(content))
}
