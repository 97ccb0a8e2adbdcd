package engagement

import "sort"

// DefaultThresholds are the celebrated progress percents.
var DefaultThresholds = []int{25, 50, 75, 100}

// DefaultCompletion is the percent at which the course counts as complete.
const DefaultCompletion = 100

// Milestones configures milestone detection.
type Milestones struct {
	Thresholds []int
	// Completion is handled by the course-completion surface, not by a
	// milestone event: thresholds at or above it never surface here.
	Completion int
}

// DefaultMilestones returns 25/50/75/100 with completion at 100.
func DefaultMilestones() Milestones {
	return Milestones{Thresholds: DefaultThresholds, Completion: DefaultCompletion}
}

// Next evaluates the user's current percent against f.
//
// The candidate is the highest threshold at or below percent (and below
// Completion). It surfaces only if it has not been seen, and only it is
// recorded. One evaluation surfaces at most one milestone, and evaluating
// again without crossing a new threshold surfaces nothing.
func (m Milestones) Next(f Flags, percent int) (milestone int, next Flags, ok bool) {
	thresholds := make([]int, len(m.Thresholds))
	copy(thresholds, m.Thresholds)
	sort.Ints(thresholds)

	completion := m.Completion
	if completion <= 0 {
		completion = DefaultCompletion
	}

	candidate, found := 0, false
	for _, t := range thresholds {
		if t > percent || t >= completion {
			break
		}
		candidate, found = t, true
	}
	if !found || f.HasSeen(candidate) {
		return 0, f, false
	}
	return candidate, f.withSeen(candidate), true
}
