package harness

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			switch event.Type {
			case EventAppended, EventVisible:
				fmt.Fprintf(&buf, "  [%d] %s %s %s: %q\n", event.Seq, event.Type, event.MessageID, event.Sender, event.Content)
			default:
				fmt.Fprintf(&buf, "  [%d] %s\n", event.Seq, event.Type)
			}
		}
	}

	return buf.String()
}

// matches reports whether an event satisfies the assertion's filters.
// Empty filters match anything.
func matches(event TraceEvent, a Assertion) bool {
	if a.Event != "" && event.Type != a.Event {
		return false
	}
	if a.Sender != "" && event.Sender != a.Sender {
		return false
	}
	if a.Content != "" && event.Content != a.Content {
		return false
	}
	if a.MessageID != "" && event.MessageID != a.MessageID {
		return false
	}
	return true
}

func describeFilter(a Assertion) string {
	parts := []string{"event " + a.Event}
	if a.Sender != "" {
		parts = append(parts, "sender "+a.Sender)
	}
	if a.Content != "" {
		parts = append(parts, fmt.Sprintf("content %q", a.Content))
	}
	if a.MessageID != "" {
		parts = append(parts, "message "+a.MessageID)
	}
	return strings.Join(parts, ", ")
}

// assertTraceContains checks that at least one event matches.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if matches(event, assertion) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: describeFilter(assertion),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that appended messages with the listed contents
// appear in order. Intervening messages are allowed.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if event.Type != EventAppended {
			continue
		}
		if _, seen := positions[event.Content]; !seen {
			positions[event.Content] = i
		}
	}

	var missing []string
	for _, c := range assertion.Contents {
		if _, ok := positions[c]; !ok {
			missing = append(missing, fmt.Sprintf("%q", c))
		}
	}
	if len(missing) > 0 {
		return &AssertionError{
			Type:     AssertTraceOrder,
			Expected: fmt.Sprintf("messages in order: %q", assertion.Contents),
			Actual:   fmt.Sprintf("missing from trace: %s", strings.Join(missing, ", ")),
			Trace:    trace,
		}
	}

	for i := 1; i < len(assertion.Contents); i++ {
		prev, cur := assertion.Contents[i-1], assertion.Contents[i]
		if positions[prev] >= positions[cur] {
			actual := make([]string, len(assertion.Contents))
			copy(actual, assertion.Contents)
			sort.SliceStable(actual, func(a, b int) bool {
				return positions[actual[a]] < positions[actual[b]]
			})
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("messages in order: %q", assertion.Contents),
				Actual:   fmt.Sprintf("actual order: %q", actual),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks the exact number of matching events.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if matches(event, assertion) {
			count++
		}
	}
	if count == assertion.Count {
		return nil
	}

	return &AssertionError{
		Type:     AssertTraceCount,
		Expected: fmt.Sprintf("%d event(s) matching %s", assertion.Count, describeFilter(assertion)),
		Actual:   fmt.Sprintf("%d event(s)", count),
		Trace:    trace,
	}
}

// assertFinalState checks that every expected key is present in the final
// state with an equal value. Extra keys in the state are ignored.
func assertFinalState(state map[string]any, assertion Assertion) error {
	keys := make([]string, 0, len(assertion.Expect))
	for k := range assertion.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		expected := assertion.Expect[k]
		actual, ok := state[k]
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s = %v", k, expected),
				Actual:   fmt.Sprintf("%s not in final state", k),
			}
		}
		if !stateValuesEqual(expected, actual) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s = %v", k, expected),
				Actual:   fmt.Sprintf("%s = %v", k, actual),
			}
		}
	}
	return nil
}

// stateValuesEqual compares a YAML-decoded expectation with a state value.
// Integers compare by value regardless of width; slices compare element-wise.
func stateValuesEqual(expected, actual any) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}

	if e, ok := toInt64(expected); ok {
		a, ok := toInt64(actual)
		return ok && e == a
	}

	if e, ok := expected.([]any); ok {
		a, ok := actual.([]any)
		if !ok || len(a) != len(e) {
			return false
		}
		for i := range e {
			if !stateValuesEqual(e[i], a[i]) {
				return false
			}
		}
		return true
	}

	return reflect.DeepEqual(expected, actual)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	}
	return 0, false
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	// State is the final persisted engagement state.
	State map[string]any
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			if actx == nil || actx.State == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires captured state", i)
			} else {
				err = assertFinalState(actx.State, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
