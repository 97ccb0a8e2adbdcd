package engagement

import (
	"github.com/roach88/cohort/internal/ident"
)

// Kind is a reaction type.
type Kind string

const (
	KindLike  Kind = "like"
	KindHeart Kind = "heart"
)

// DefaultKinds are the reactions offered on every message.
var DefaultKinds = []Kind{KindLike, KindHeart}

// Tally is the reaction state of one message as seen by one user.
type Tally struct {
	Counts map[Kind]int `json:"counts"`
	// Choice is the kind attributed to the viewing user, or "" for none.
	Choice Kind `json:"userChoice,omitempty"`
}

func (t Tally) clone() Tally {
	counts := make(map[Kind]int, len(t.Counts))
	for k, v := range t.Counts {
		counts[k] = v
	}
	return Tally{Counts: counts, Choice: t.Choice}
}

func (t Tally) dec(k Kind) {
	if t.Counts[k] > 0 {
		t.Counts[k]--
	}
}

// Toggle applies the user selecting kind and returns the new tally.
//
//	no choice       -> choose kind, +1
//	same choice     -> clear choice, -1
//	other choice    -> -1 on the old kind, +1 on kind, choose kind
//
// The receiver is not modified.
func (t Tally) Toggle(kind Kind) Tally {
	next := t.clone()
	switch next.Choice {
	case "":
		next.Counts[kind]++
		next.Choice = kind
	case kind:
		next.dec(kind)
		next.Choice = ""
	default:
		next.dec(next.Choice)
		next.Counts[kind]++
		next.Choice = kind
	}
	return next
}

// Count returns the counter for kind.
func (t Tally) Count(kind Kind) int {
	return t.Counts[kind]
}

// SeedTally returns the baseline counts every observer sees on a message
// before the viewing user reacts. The counts are derived from the message id
// so they agree across loads and devices.
func SeedTally(messageID string, kinds []Kind) Tally {
	t := Tally{Counts: make(map[Kind]int, len(kinds))}
	for i, k := range kinds {
		// First kind is the common one (0-7), the rest are rarer (0-3).
		spread := uint64(8)
		if i > 0 {
			spread = 4
		}
		t.Counts[k] = int(ident.Uint64(ident.DomainTally, messageID, string(k)) % spread)
	}
	return t
}
