package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/cohort/internal/engagement"
)

// marshalMilestones stores the seen set as a JSON array. nil becomes "[]".
func marshalMilestones(seen []int) (string, error) {
	if len(seen) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(seen)
	if err != nil {
		return "", fmt.Errorf("marshal milestones: %w", err)
	}
	return string(data), nil
}

func unmarshalMilestones(data string) ([]int, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var seen []int
	if err := json.Unmarshal([]byte(data), &seen); err != nil {
		return nil, fmt.Errorf("unmarshal milestones: %w", err)
	}
	return seen, nil
}

// marshalCounts stores counters as a JSON object. Go's encoder sorts map
// keys, so equal tallies produce identical TEXT. Negative counters are
// stored as zero.
func marshalCounts(counts map[engagement.Kind]int) (string, error) {
	clean := make(map[string]int, len(counts))
	for k, v := range counts {
		clean[string(k)] = max(v, 0)
	}
	data, err := json.Marshal(clean)
	if err != nil {
		return "", fmt.Errorf("marshal counts: %w", err)
	}
	return string(data), nil
}

func unmarshalCounts(data string) (map[engagement.Kind]int, error) {
	raw := map[string]int{}
	if data != "" {
		if err := json.Unmarshal([]byte(data), &raw); err != nil {
			return nil, fmt.Errorf("unmarshal counts: %w", err)
		}
	}
	counts := make(map[engagement.Kind]int, len(raw))
	for k, v := range raw {
		counts[engagement.Kind(k)] = max(v, 0)
	}
	return counts, nil
}
