package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/cohort/internal/engagement"
)

// Memory is an in-process store with the same contract as Store.
// Safe for concurrent use.
type Memory struct {
	mu       sync.Mutex
	messages map[string]Message
	flags    map[string]engagement.Flags
	tallies  map[[2]string]engagement.Tally
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		messages: make(map[string]Message),
		flags:    make(map[string]engagement.Flags),
		tallies:  make(map[[2]string]engagement.Tally),
	}
}

// SaveMessage stores m unless a message with the same id exists.
func (m *Memory) SaveMessage(_ context.Context, msg Message) error {
	if msg.ID == "" || msg.UserID == "" {
		return fmt.Errorf("save message: id and user id are required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.messages[msg.ID]; !ok {
		m.messages[msg.ID] = msg
	}
	return nil
}

// LoadMessages returns userID's messages ordered by CreatedAt, then ID.
func (m *Memory) LoadMessages(_ context.Context, userID string) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Message{}
	for _, msg := range m.messages {
		if msg.UserID == userID {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// LoadFlags returns userID's flags or ErrNotFound.
func (m *Memory) LoadFlags(_ context.Context, userID string) (engagement.Flags, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.flags[userID]
	if !ok {
		return engagement.Flags{}, ErrNotFound
	}
	return f.Normalize(), nil
}

// SaveFlags replaces userID's flags.
func (m *Memory) SaveFlags(_ context.Context, userID string, f engagement.Flags) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags[userID] = f.Normalize()
	return nil
}

// LoadTally returns a copy of the stored tally or ErrNotFound.
func (m *Memory) LoadTally(_ context.Context, userID, messageID string) (engagement.Tally, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tallies[[2]string{userID, messageID}]
	if !ok {
		return engagement.Tally{}, ErrNotFound
	}
	return copyTally(t), nil
}

// LoadTallies returns copies of every tally stored for userID.
func (m *Memory) LoadTallies(_ context.Context, userID string) (map[string]engagement.Tally, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]engagement.Tally)
	for k, t := range m.tallies {
		if k[0] == userID {
			out[k[1]] = copyTally(t)
		}
	}
	return out, nil
}

// SaveTally replaces the stored tally.
func (m *Memory) SaveTally(_ context.Context, userID, messageID string, t engagement.Tally) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tallies[[2]string{userID, messageID}] = copyTally(t)
	return nil
}

func copyTally(t engagement.Tally) engagement.Tally {
	counts := make(map[engagement.Kind]int, len(t.Counts))
	for k, v := range t.Counts {
		counts[k] = v
	}
	return engagement.Tally{Counts: counts, Choice: t.Choice}
}
