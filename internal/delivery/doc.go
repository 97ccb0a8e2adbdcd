// Package delivery paces replies into a user's transcript.
//
// An Orchestrator owns one viewer's live transcript. It moves through
//
//	Idle -> Composing -> Sending -> (SingleDelivery | BurstDelivery) -> Idle
//
// and guarantees that the user's own message is visible before any network
// call, that at most one reply sequence is in flight, and that burst replies
// land in authored order. Ordering comes from awaiting each step in a single
// goroutine per send, never from comparing timestamps afterwards.
//
// Every wait goes through an injected Sleeper and every random draw through an
// injected Rand, so tests replace wall-clock time entirely. Writes to the
// message store and to telemetry run as detached tasks: the sequence never
// awaits them, and Detached reports how many of each were scheduled.
//
// Close marks the orchestrator dead. A sequence suspended in a delay checks
// liveness before its next append and abandons the append if the surface is
// gone.
package delivery
