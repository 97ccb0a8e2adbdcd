package engagement

import "sort"

// Flags is the durable engagement state of one user.
type Flags struct {
	StreakCount    int   `json:"streakCount"`
	LastVisit      Date  `json:"lastVisitDate"`
	SeenMilestones []int `json:"seenMilestones"`
}

// HasSeen reports whether milestone m was already shown.
func (f Flags) HasSeen(m int) bool {
	i := sort.SearchInts(f.SeenMilestones, m)
	return i < len(f.SeenMilestones) && f.SeenMilestones[i] == m
}

// withSeen returns a copy of f with m added to the sorted set.
func (f Flags) withSeen(m int) Flags {
	if f.HasSeen(m) {
		return f
	}
	seen := make([]int, 0, len(f.SeenMilestones)+1)
	seen = append(seen, f.SeenMilestones...)
	seen = append(seen, m)
	sort.Ints(seen)
	f.SeenMilestones = seen
	return f
}

// Normalize sorts and dedups SeenMilestones and lifts a non-positive streak
// on a visited record to 1. Stores call it on read so hand-edited or legacy
// rows satisfy the invariants.
func (f Flags) Normalize() Flags {
	seen := make([]int, 0, len(f.SeenMilestones))
	seen = append(seen, f.SeenMilestones...)
	sort.Ints(seen)
	out := seen[:0]
	for i, m := range seen {
		if i == 0 || m != seen[i-1] {
			out = append(out, m)
		}
	}
	f.SeenMilestones = out
	if !f.LastVisit.IsZero() && f.StreakCount < 1 {
		f.StreakCount = 1
	}
	return f
}

// AdvanceStreak applies one session-start visit on today.
//
//	no prior visit        -> streak 1
//	same day              -> unchanged
//	exactly one day later -> streak + 1
//	any larger gap        -> streak 1
//	today before last     -> unchanged (clock skew never resets a streak)
//
// changed reports whether the result must be persisted.
func AdvanceStreak(f Flags, today Date) (next Flags, changed bool) {
	if f.LastVisit.IsZero() {
		f.StreakCount = 1
		f.LastVisit = today
		return f, true
	}
	gap := today.DaysSince(f.LastVisit)
	switch {
	case gap <= 0:
		return f, false
	case gap == 1:
		f.StreakCount = max(f.StreakCount, 0) + 1
	default:
		f.StreakCount = 1
	}
	f.LastVisit = today
	return f, true
}
