package store

import (
	"path/filepath"
	"testing"
	"time"
)

// createTestStore creates a new on-disk store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestMessage creates a message with minimal required fields.
func createTestMessage(id, userID, content string, at time.Time) Message {
	return Message{
		ID:         id,
		UserID:     userID,
		Content:    content,
		CreatedAt:  at,
		ScriptHash: "test-hash",
	}
}
