package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Script is the cohort script path. Empty runs against the empty script.
	Script string `yaml:"script,omitempty"`

	// Start is the fake clock's initial instant (RFC 3339).
	Start string `yaml:"start"`

	// Timezone is the schedule location. Defaults to UTC.
	Timezone string `yaml:"timezone,omitempty"`

	User UserSpec `yaml:"user"`

	// Replies selects the reply generator. Nil means scripted replies.
	Replies *ReplySpec `yaml:"replies,omitempty"`

	Steps []Step `yaml:"steps"`

	Assertions []Assertion `yaml:"assertions"`
}

// UserSpec describes the viewer.
type UserSpec struct {
	ID        string `yaml:"id"`
	FirstName string `yaml:"firstName,omitempty"`
	// Enrolled is RFC 3339. Empty means unknown.
	Enrolled string `yaml:"enrolled,omitempty"`
}

// Reply generator modes.
const (
	ReplyScripted = "scripted"
	ReplyFail     = "fail"
	ReplyStatic   = "static"
)

// ReplySpec configures the reply generator.
type ReplySpec struct {
	Mode string `yaml:"mode"`
	// Single and Burst are the static response (mode static only).
	Single *ReplyItem  `yaml:"single,omitempty"`
	Burst  []ReplyItem `yaml:"burst,omitempty"`
}

// ReplyItem is one static reply.
type ReplyItem struct {
	Responder string `yaml:"responder"`
	Content   string `yaml:"content"`
	DelayMs   int64  `yaml:"delayMs,omitempty"`
}

// Step is one action. Exactly one field must be set.
type Step struct {
	// Advance moves the fake clock by a Go duration, e.g. "24h".
	Advance string `yaml:"advance,omitempty"`
	// Session starts a session, applying the visit streak.
	Session bool `yaml:"session,omitempty"`
	// Send submits a user message and waits for the reply sequence.
	Send string `yaml:"send,omitempty"`
	// Progress reports course progress for a milestone check.
	Progress *int `yaml:"progress,omitempty"`
	// React toggles a reaction.
	React *ReactStep `yaml:"react,omitempty"`
	// Evaluate records every visible message.
	Evaluate bool `yaml:"evaluate,omitempty"`
}

// ReactStep is a reaction toggle.
type ReactStep struct {
	Message string `yaml:"message"`
	Kind    string `yaml:"kind"`
}

func (s Step) actions() int {
	n := 0
	for _, set := range []bool{s.Advance != "", s.Session, s.Send != "", s.Progress != nil, s.React != nil, s.Evaluate} {
		if set {
			n++
		}
	}
	return n
}

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type is one of trace_contains, trace_order, trace_count, final_state.
	Type string `yaml:"type"`

	// Event, Sender, Content and MessageID filter trace events
	// (trace_contains, trace_count). Empty fields match anything.
	Event     string `yaml:"event,omitempty"`
	Sender    string `yaml:"sender,omitempty"`
	Content   string `yaml:"content,omitempty"`
	MessageID string `yaml:"message_id,omitempty"`

	// Count is the exact number of matching events (trace_count).
	Count int `yaml:"count,omitempty"`

	// Contents lists appended message contents in expected order
	// (trace_order). Other messages may appear between them.
	Contents []string `yaml:"contents,omitempty"`

	// Expect is a subset of the final state (final_state).
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file. The script path is
// resolved relative to the scenario file. Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Script != "" && !filepath.IsAbs(scenario.Script) {
		scenario.Script = filepath.Join(filepath.Dir(path), scenario.Script)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if _, err := time.Parse(time.RFC3339, s.Start); err != nil {
		return fmt.Errorf("start must be RFC 3339: %w", err)
	}
	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
	}
	if s.User.ID == "" {
		return fmt.Errorf("user.id is required")
	}
	if s.User.Enrolled != "" {
		if _, err := time.Parse(time.RFC3339, s.User.Enrolled); err != nil {
			return fmt.Errorf("user.enrolled must be RFC 3339: %w", err)
		}
	}
	if s.Script != "" {
		if _, err := os.Stat(s.Script); os.IsNotExist(err) {
			return fmt.Errorf("script file not found: %s", s.Script)
		}
	}
	if err := validateReplies(s.Replies); err != nil {
		return err
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	for i, step := range s.Steps {
		if n := step.actions(); n != 1 {
			return fmt.Errorf("steps[%d]: exactly one action is required, got %d", i, n)
		}
		if step.Advance != "" {
			if _, err := time.ParseDuration(step.Advance); err != nil {
				return fmt.Errorf("steps[%d].advance: %w", i, err)
			}
		}
		if step.React != nil && (step.React.Message == "" || step.React.Kind == "") {
			return fmt.Errorf("steps[%d].react: message and kind are required", i)
		}
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateReplies(r *ReplySpec) error {
	if r == nil {
		return nil
	}
	switch r.Mode {
	case ReplyScripted, ReplyFail:
		if r.Single != nil || len(r.Burst) > 0 {
			return fmt.Errorf("replies: single and burst are only valid in static mode")
		}
	case ReplyStatic:
		if (r.Single == nil) == (len(r.Burst) == 0) {
			return fmt.Errorf("replies: static mode needs exactly one of single or burst")
		}
	default:
		return fmt.Errorf("replies: unknown mode %q", r.Mode)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Contents) == 0 {
			return fmt.Errorf("assertions[%d]: contents list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
