// Package engagement holds the durable per-user state behind the feed's
// celebratory moments: visit streaks, progress milestones and message
// reactions.
//
// Every transition here is a pure function from a prior state to a next
// state. Callers load the prior state from a flag store, apply a transition,
// and write the result back. Re-deriving a transition from the same prior
// state yields the same result, so a repeated write is harmless
// (last-write-wins).
//
// Invariants are structural rather than checked:
//   - SeenMilestones only grows; a recorded milestone can never surface again.
//   - Reaction counters clamp at zero and at most one kind is attributed to
//     the viewing user.
package engagement
