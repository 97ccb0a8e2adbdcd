package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cohort/internal/script"
)

func roster() script.Roster {
	return script.Roster{
		{Key: "sam", DisplayName: "Sam", Class: script.ClassLeader},
		{Key: "priya", DisplayName: "Priya", Class: script.ClassBuyer},
		{Key: "theo", DisplayName: "Theo", Class: script.ClassQuestioner},
		{Key: "june", DisplayName: "June", Class: script.ClassStruggler},
		{Key: "omar", DisplayName: "Omar", Class: script.ClassLeader},
	}
}

func TestSimulate_Monotonic(t *testing.T) {
	for _, class := range script.Classes {
		for pos := 0; pos < 5; pos++ {
			offset := StableOffset(pos)
			prev := Simulate(class, 0, offset)
			for d := 1; d <= 120; d++ {
				cur := Simulate(class, d, offset)
				assert.GreaterOrEqual(t, cur, prev, "class=%s offset=%d day=%d", class, offset, d)
				prev = cur
			}
		}
	}
}

func TestSimulate_DayZero(t *testing.T) {
	for _, class := range script.Classes {
		base := Rates[class].BasePercent
		assert.Equal(t, base+3, Simulate(class, 0, 3), class)
		assert.Equal(t, base, Simulate(class, 0, 0), class)
		// Negative offsets clamp up to the class base.
		assert.Equal(t, base, Simulate(class, 0, -4), class)
	}
}

func TestSimulate_Ceiling(t *testing.T) {
	for _, class := range script.Classes {
		assert.Equal(t, 100, Simulate(class, 1000, 5), class)
		assert.LessOrEqual(t, Simulate(class, 1<<30, 5), 100, class)
	}
}

func TestSimulate_Rounding(t *testing.T) {
	// struggler: 5 + 0 + 3*1.2 = 8.6
	assert.Equal(t, 9, Simulate(script.ClassStruggler, 3, 0))
	// buyer: 20 + 0 + 1*2.5 = 22.5 rounds half away from zero
	assert.Equal(t, 23, Simulate(script.ClassBuyer, 1, 0))
}

func TestSimulate_NegativeDays(t *testing.T) {
	assert.Equal(t, Simulate(script.ClassLeader, 0, 3), Simulate(script.ClassLeader, -7, 3))
}

func TestSimulate_UnknownClassUsesSlowestCurve(t *testing.T) {
	assert.Equal(t, Simulate(script.ClassStruggler, 10, 0), Simulate("wizard", 10, 0))
}

func TestStableOffset(t *testing.T) {
	assert.Equal(t, []int{0, 3, -2, 5, -4, 0}, []int{
		StableOffset(0), StableOffset(1), StableOffset(2), StableOffset(3), StableOffset(4), StableOffset(5),
	})
	assert.Equal(t, 0, StableOffset(-1))
}

func TestSimulator_MaxDays(t *testing.T) {
	s := Simulator{MaxDays: 10}
	assert.Equal(t, Simulate(script.ClassQuestioner, 10, 0), s.Simulate(script.ClassQuestioner, 25, 0))
	assert.Equal(t, Simulate(script.ClassQuestioner, 25, 0), Simulator{}.Simulate(script.ClassQuestioner, 25, 0))
}

func TestRecords(t *testing.T) {
	recs := Simulator{}.Records(roster(), 10)
	require.Len(t, recs, 5)
	assert.Equal(t, Record{EntityID: "sam", Value: 65, AsOfDay: 10}, recs[0])
	assert.Equal(t, Record{EntityID: "omar", Value: 61, AsOfDay: 10}, recs[4])
}

func TestLeaderboard_OrderAndTieBreak(t *testing.T) {
	board := Simulator{}.Leaderboard(roster(), 0, &Standing{EntityID: "user-1", DisplayName: "Ana", Value: 23})

	names := make([]string, len(board))
	for i, row := range board {
		names[i] = row.DisplayName
		assert.Equal(t, i+1, row.Rank)
	}
	assert.Equal(t, []string{"Omar", "Sam", "Ana", "Priya", "Theo", "June"}, names)
	assert.True(t, board[2].IsUser)
	assert.Equal(t, 35, board[0].Value)
}

func TestLeaderboard_ClampsUserAndDeterministic(t *testing.T) {
	user := &Standing{EntityID: "u", DisplayName: "Ana", Value: 140}
	board := Simulator{}.Leaderboard(roster(), 3, user)
	assert.Equal(t, 100, board[0].Value)
	assert.True(t, board[0].IsUser)
	assert.Equal(t, 140, user.Value, "caller's value is not mutated")

	for i := 0; i < 20; i++ {
		assert.Equal(t, board, Simulator{}.Leaderboard(roster(), 3, user))
	}
}

func TestLeaderboard_NoUser(t *testing.T) {
	board := Simulator{}.Leaderboard(roster(), 10, nil)
	require.Len(t, board, 5)
	assert.Equal(t, "Sam", board[0].DisplayName)
}
