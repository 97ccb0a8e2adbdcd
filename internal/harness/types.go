package harness

// Trace event types. Most mirror delivery.EventKind; EventVisible records a
// message returned by an evaluate step and EventReaction a toggled tally.
const (
	EventAppended      = "appended"
	EventTyping        = "typing"
	EventTypingCleared = "typing-cleared"
	EventIdle          = "idle"
	EventMilestone     = "milestone"
	EventStreak        = "streak"
	EventVisible       = "visible"
	EventReaction      = "reaction"
)

// TraceEvent is one observed change, in the order the harness saw it.
type TraceEvent struct {
	Seq       int    `json:"seq"`
	Step      int    `json:"step"`
	Type      string `json:"type"`
	At        string `json:"at,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Sender    string `json:"sender,omitempty"`
	Content   string `json:"content,omitempty"`
	Source    string `json:"source,omitempty"`
	Milestone int    `json:"milestone,omitempty"`
	Streak    int    `json:"streak,omitempty"`
	Counts    string `json:"counts,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	Trace []TraceEvent `json:"trace"`

	Errors []string `json:"errors,omitempty"`

	// State is the final persisted engagement state, keyed like the
	// engagement_flags columns.
	State map[string]any `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]any),
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) add(step int, ev TraceEvent) {
	ev.Seq = len(r.Trace) + 1
	ev.Step = step
	r.Trace = append(r.Trace, ev)
}
