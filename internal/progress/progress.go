// Package progress computes the peer progress values shown on the cohort
// leaderboard.
//
// Persona progress is never stored. It is a pure function of the persona's
// personality class, its stable roster offset and the viewing user's elapsed
// days, so every page load, tab and device computes the same number. For a
// fixed class and offset the value never decreases as days pass, and it never
// exceeds 100.
package progress

import (
	"math"
	"sort"

	"github.com/roach88/cohort/internal/script"
)

// Rate is a personality class's progress curve.
type Rate struct {
	BasePercent int     // value at day 0
	DailyRate   float64 // percent gained per elapsed day
}

// Rates maps each class to its curve.
var Rates = map[script.PersonalityClass]Rate{
	script.ClassLeader:     {BasePercent: 35, DailyRate: 3.0},
	script.ClassBuyer:      {BasePercent: 20, DailyRate: 2.5},
	script.ClassQuestioner: {BasePercent: 12, DailyRate: 2.0},
	script.ClassStruggler:  {BasePercent: 5, DailyRate: 1.2},
}

// offsetCycle spreads personas that share a class.
var offsetCycle = []int{0, 3, -2, 5, -4}

// StableOffset returns the fixed adjustment for a roster position.
func StableOffset(position int) int {
	if position < 0 {
		return 0
	}
	return offsetCycle[position%len(offsetCycle)]
}

// rateFor falls back to the slowest curve for unknown classes; validation
// rejects those scripts, but an empty script must still render.
func rateFor(class script.PersonalityClass) Rate {
	if r, ok := Rates[class]; ok {
		return r
	}
	return Rates[script.ClassStruggler]
}

// Simulate returns round(clamp(base + offset + elapsedDays*rate, base, 100)).
// Negative elapsed days count as 0.
func Simulate(class script.PersonalityClass, elapsedDays, offset int) int {
	if elapsedDays < 0 {
		elapsedDays = 0
	}
	r := rateFor(class)
	raw := float64(r.BasePercent+offset) + float64(elapsedDays)*r.DailyRate
	raw = math.Max(raw, float64(r.BasePercent))
	raw = math.Min(raw, 100)
	return int(math.Round(raw))
}

// Simulator applies an optional day horizon on top of Simulate. The horizon
// is independent of the drip day cap.
type Simulator struct {
	// MaxDays caps elapsed days fed to the curve. 0 means unbounded.
	MaxDays int
}

func (s Simulator) days(elapsed int) int {
	if s.MaxDays > 0 && elapsed > s.MaxDays {
		return s.MaxDays
	}
	return elapsed
}

// Simulate is the package Simulate with the horizon applied.
func (s Simulator) Simulate(class script.PersonalityClass, elapsedDays, offset int) int {
	return Simulate(class, s.days(elapsedDays), offset)
}

// Record is a progress value as of a given day.
type Record struct {
	EntityID string `json:"entityId"`
	Value    int    `json:"value"`
	AsOfDay  int    `json:"asOfDay"`
}

// Records computes a record per roster persona, in roster order.
func (s Simulator) Records(roster script.Roster, elapsedDays int) []Record {
	out := make([]Record, 0, len(roster))
	for i, p := range roster {
		out = append(out, Record{
			EntityID: p.Key,
			Value:    s.Simulate(p.Class, elapsedDays, StableOffset(i)),
			AsOfDay:  elapsedDays,
		})
	}
	return out
}

// Standing is one leaderboard row.
type Standing struct {
	EntityID    string `json:"entityId"`
	DisplayName string `json:"displayName"`
	AvatarRef   string `json:"avatarRef,omitempty"`
	Value       int    `json:"value"`
	IsUser      bool   `json:"isUser"`
	Rank        int    `json:"rank"`
}

// Leaderboard ranks the roster together with the viewing user. The user's
// value comes from the course-progress source and is only clamped here.
// Rows sort by value descending, then display name, then entity id.
func (s Simulator) Leaderboard(roster script.Roster, elapsedDays int, user *Standing) []Standing {
	rows := make([]Standing, 0, len(roster)+1)
	for i, p := range roster {
		rows = append(rows, Standing{
			EntityID:    p.Key,
			DisplayName: p.DisplayName,
			AvatarRef:   p.AvatarRef,
			Value:       s.Simulate(p.Class, elapsedDays, StableOffset(i)),
		})
	}
	if user != nil {
		u := *user
		u.IsUser = true
		u.Value = min(max(u.Value, 0), 100)
		rows = append(rows, u)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Value != b.Value {
			return a.Value > b.Value
		}
		if a.DisplayName != b.DisplayName {
			return a.DisplayName < b.DisplayName
		}
		return a.EntityID < b.EntityID
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}
