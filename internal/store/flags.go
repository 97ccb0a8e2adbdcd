package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/cohort/internal/engagement"
)

// LoadFlags returns the stored flags of userID, or ErrNotFound.
func (s *Store) LoadFlags(ctx context.Context, userID string) (engagement.Flags, error) {
	var (
		streak   int
		visit    string
		seenJSON string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT streak_count, last_visit, seen_milestones
		FROM engagement_flags
		WHERE user_id = ?
	`, userID).Scan(&streak, &visit, &seenJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return engagement.Flags{}, ErrNotFound
	}
	if err != nil {
		return engagement.Flags{}, fmt.Errorf("load flags: %w", err)
	}

	lastVisit, err := engagement.ParseDate(visit)
	if err != nil {
		return engagement.Flags{}, fmt.Errorf("load flags: %w", err)
	}
	seen, err := unmarshalMilestones(seenJSON)
	if err != nil {
		return engagement.Flags{}, fmt.Errorf("load flags: %w", err)
	}
	f := engagement.Flags{StreakCount: streak, LastVisit: lastVisit, SeenMilestones: seen}
	return f.Normalize(), nil
}

// SaveFlags replaces the stored flags of userID (last write wins).
func (s *Store) SaveFlags(ctx context.Context, userID string, f engagement.Flags) error {
	seenJSON, err := marshalMilestones(f.Normalize().SeenMilestones)
	if err != nil {
		return fmt.Errorf("save flags: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO engagement_flags (user_id, streak_count, last_visit, seen_milestones)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			streak_count = excluded.streak_count,
			last_visit = excluded.last_visit,
			seen_milestones = excluded.seen_milestones
	`, userID, max(f.StreakCount, 0), f.LastVisit.String(), seenJSON)
	if err != nil {
		return fmt.Errorf("save flags: %w", err)
	}
	return nil
}

// LoadTally returns the stored reaction snapshot, or ErrNotFound.
func (s *Store) LoadTally(ctx context.Context, userID, messageID string) (engagement.Tally, error) {
	var countsJSON, choice string
	err := s.db.QueryRowContext(ctx, `
		SELECT counts, user_choice
		FROM reaction_tallies
		WHERE user_id = ? AND message_id = ?
	`, userID, messageID).Scan(&countsJSON, &choice)
	if errors.Is(err, sql.ErrNoRows) {
		return engagement.Tally{}, ErrNotFound
	}
	if err != nil {
		return engagement.Tally{}, fmt.Errorf("load tally: %w", err)
	}
	counts, err := unmarshalCounts(countsJSON)
	if err != nil {
		return engagement.Tally{}, fmt.Errorf("load tally: %w", err)
	}
	return engagement.Tally{Counts: counts, Choice: engagement.Kind(choice)}, nil
}

// LoadTallies returns every stored reaction snapshot of userID keyed by
// message id.
func (s *Store) LoadTallies(ctx context.Context, userID string) (map[string]engagement.Tally, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, counts, user_choice
		FROM reaction_tallies
		WHERE user_id = ?
		ORDER BY message_id COLLATE BINARY ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query tallies: %w", err)
	}
	defer rows.Close()

	out := make(map[string]engagement.Tally)
	for rows.Next() {
		var id, countsJSON, choice string
		if err := rows.Scan(&id, &countsJSON, &choice); err != nil {
			return nil, fmt.Errorf("scan tally: %w", err)
		}
		counts, err := unmarshalCounts(countsJSON)
		if err != nil {
			return nil, fmt.Errorf("tally %s: %w", id, err)
		}
		out[id] = engagement.Tally{Counts: counts, Choice: engagement.Kind(choice)}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tallies: %w", err)
	}
	return out, nil
}

// SaveTally replaces the stored reaction snapshot (last write wins).
func (s *Store) SaveTally(ctx context.Context, userID, messageID string, t engagement.Tally) error {
	countsJSON, err := marshalCounts(t.Counts)
	if err != nil {
		return fmt.Errorf("save tally: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reaction_tallies (user_id, message_id, counts, user_choice)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, message_id) DO UPDATE SET
			counts = excluded.counts,
			user_choice = excluded.user_choice
	`, userID, messageID, countsJSON, string(t.Choice))
	if err != nil {
		return fmt.Errorf("save tally: %w", err)
	}
	return nil
}
