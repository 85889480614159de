package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddItem_Validation(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		desc    string
		setup   func(r *Room)
		player  string
		text    string
		wantErr error
	}{
		{
			desc:    "submission before start",
			setup:   func(r *Room) { r.Status = StatusLobby },
			player:  "h",
			text:    "cats",
			wantErr: ErrWrongStatus,
		},
		{
			desc:    "unknown player",
			player:  "ghost",
			text:    "cats",
			wantErr: ErrPlayerNotFound,
		},
		{
			desc:    "round robin rejects out-of-turn submitter",
			player:  "p2", // turn is on h
			text:    "cats",
			wantErr: ErrNotYourTurn,
		},
		{
			desc: "host only rejects non-host",
			setup: func(r *Room) {
				r.Config.SubmissionMode = SubmissionHostOnly
				r.CurrentTurnPlayerId = "p2"
			},
			player:  "p2",
			text:    "cats",
			wantErr: ErrNotHost,
		},
		{
			desc:    "blank text",
			player:  "h",
			text:    "   ",
			wantErr: ErrEmptyItemText,
		},
		{
			desc: "case-insensitive duplicate",
			setup: func(r *Room) {
				_, err := r.AddItem("h", "Pineapple Pizza", "🍕", t0)
				require.NoError(t, err)
			},
			player:  "h",
			text:    "  pineapple pizza ",
			wantErr: ErrDuplicateItem,
		},
		{
			desc: "board full",
			setup: func(r *Room) {
				for _, text := range []string{"one", "two", "three"} {
					_, err := r.AddItem("h", text, "", t0)
					require.NoError(t, err)
				}
			},
			player:  "h",
			text:    "four",
			wantErr: ErrItemLimit,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()
			r := startedRoom(t, 3)
			if tc.setup != nil {
				tc.setup(r)
			}
			before := len(r.Items)
			_, err := r.AddItem(tc.player, tc.text, "", t0)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Len(t, r.Items, before)
		})
	}
}

func TestAddItem(t *testing.T) {
	t.Parallel()

	t.Run("trims and appends", func(t *testing.T) {
		t.Parallel()
		r := startedRoom(t, 3)
		item, err := r.AddItem("h", "  pineapple pizza  ", "🍕", t0)
		require.NoError(t, err)

		assert.Equal(t, "pineapple pizza", item.Text)
		assert.Equal(t, "🍕", item.Emoji)
		assert.Equal(t, "h", item.SubmittedByPlayerId)
		assert.Equal(t, "R1", item.RoomId)
		assert.NotEmpty(t, item.Id)
		require.Len(t, r.Items, 1)
		assert.Same(t, item, r.Items[0])
	})

	t.Run("clamps overlong text to the limit", func(t *testing.T) {
		t.Parallel()
		r := startedRoom(t, 3)
		item, err := r.AddItem("h", strings.Repeat("ä", 250), "", t0)
		require.NoError(t, err)
		assert.Len(t, []rune(item.Text), MaxItemTextLength)
	})

	t.Run("arms the ranking timer for the latest item", func(t *testing.T) {
		t.Parallel()
		r := startedRoom(t, 3)
		_, err := r.AddItem("h", "one", "", t0)
		require.NoError(t, err)
		first := r.RankingTimerEndAt
		assert.Equal(t, t0.Add(time.Duration(r.Config.RankingTimeout)*time.Second), first)

		// a second submission pushes the single deadline forward
		_, ok := r.AdvanceTurn(t0)
		require.True(t, ok)
		_, err = r.AddItem("p2", "two", "", t0.Add(5*time.Second))
		require.NoError(t, err)
		assert.Equal(t, first.Add(5*time.Second), r.RankingTimerEndAt)
	})

	t.Run("host-only mode accepts host regardless of turn", func(t *testing.T) {
		t.Parallel()
		r := startedRoom(t, 3)
		r.Config.SubmissionMode = SubmissionHostOnly
		r.CurrentTurnPlayerId = "p2"
		_, err := r.AddItem("h", "cats", "", t0)
		assert.NoError(t, err)
	})
}

func TestRankItem(t *testing.T) {
	t.Parallel()

	setup := func(t *testing.T) (*Room, *Item, *Item) {
		t.Helper()
		r := startedRoom(t, 3)
		i1, err := r.AddItem("h", "cats", "", t0)
		require.NoError(t, err)
		_, ok := r.AdvanceTurn(t0)
		require.True(t, ok)
		i2, err := r.AddItem("p2", "dogs", "", t0)
		require.NoError(t, err)
		return r, i1, i2
	}

	t.Run("writes the slot", func(t *testing.T) {
		t.Parallel()
		r, i1, _ := setup(t)
		require.NoError(t, r.RankItem("p2", i1.Id, 2, t0))
		assert.Equal(t, 2, r.Player("p2").Rankings[i1.Id])
	})

	t.Run("rejects a slot held by another item", func(t *testing.T) {
		t.Parallel()
		r, i1, i2 := setup(t)
		require.NoError(t, r.RankItem("p2", i1.Id, 2, t0))

		err := r.RankItem("p2", i2.Id, 2, t0)
		assert.ErrorIs(t, err, ErrSlotTaken)
		// no silent overwrite: state is exactly as before the conflict
		assert.Equal(t, map[string]int{i1.Id: 2}, r.Player("p2").Rankings)
	})

	t.Run("a finished board is read-only", func(t *testing.T) {
		t.Parallel()
		r, i1, _ := setup(t)
		require.NoError(t, r.RankItem("p2", i1.Id, 2, t0))
		require.NoError(t, r.EndGame(t0))

		err := r.RankItem("p2", i1.Id, 3, t0)
		assert.ErrorIs(t, err, ErrWrongStatus)
		// the archived standings were computed from this exact state
		assert.Equal(t, map[string]int{i1.Id: 2}, r.Player("p2").Rankings)
	})

	t.Run("moving an item to a free slot is allowed", func(t *testing.T) {
		t.Parallel()
		r, i1, _ := setup(t)
		require.NoError(t, r.RankItem("p2", i1.Id, 2, t0))
		require.NoError(t, r.RankItem("p2", i1.Id, 3, t0))
		assert.Equal(t, 3, r.Player("p2").Rankings[i1.Id])
	})

	t.Run("re-writing the same slot is a no-op", func(t *testing.T) {
		t.Parallel()
		r, i1, _ := setup(t)
		require.NoError(t, r.RankItem("p2", i1.Id, 2, t0))
		assert.NoError(t, r.RankItem("p2", i1.Id, 2, t0))
	})

	t.Run("slot bounds", func(t *testing.T) {
		t.Parallel()
		r, i1, _ := setup(t)
		assert.ErrorIs(t, r.RankItem("p2", i1.Id, 0, t0), ErrSlotOutOfRange)
		assert.ErrorIs(t, r.RankItem("p2", i1.Id, 4, t0), ErrSlotOutOfRange)
	})

	t.Run("unknown player and item", func(t *testing.T) {
		t.Parallel()
		r, i1, _ := setup(t)
		assert.ErrorIs(t, r.RankItem("ghost", i1.Id, 1, t0), ErrPlayerNotFound)
		assert.ErrorIs(t, r.RankItem("p2", "nope", 1, t0), ErrItemNotFound)
	})
}

func TestAutoAssignRandomRank(t *testing.T) {
	t.Parallel()

	t.Run("assigns only free slots", func(t *testing.T) {
		t.Parallel()
		r := startedRoom(t, 3)
		i1, err := r.AddItem("h", "cats", "", t0)
		require.NoError(t, err)
		_, ok := r.AdvanceTurn(t0)
		require.True(t, ok)
		i2, err := r.AddItem("p2", "dogs", "", t0)
		require.NoError(t, err)
		require.NoError(t, r.RankItem("p2", i1.Id, 2, t0))

		slot, ok := r.AutoAssignRandomRank("p2", i2.Id)
		require.True(t, ok)
		assert.Contains(t, []int{1, 3}, slot)
		assert.Equal(t, slot, r.Player("p2").Rankings[i2.Id])
	})

	t.Run("already ranked returns false", func(t *testing.T) {
		t.Parallel()
		r := startedRoom(t, 3)
		i1, err := r.AddItem("h", "cats", "", t0)
		require.NoError(t, err)
		require.NoError(t, r.RankItem("p2", i1.Id, 1, t0))

		_, ok := r.AutoAssignRandomRank("p2", i1.Id)
		assert.False(t, ok)
		assert.Equal(t, 1, r.Player("p2").Rankings[i1.Id])
	})

	t.Run("no free slot returns false", func(t *testing.T) {
		t.Parallel()
		r := startedRoom(t, 1)
		i1, err := r.AddItem("h", "cats", "", t0)
		require.NoError(t, err)
		// a stale slot can survive a snapshot restore; auto-assign must
		// not invent slots beyond the board size
		r.Player("p2").Rankings["stale-item"] = 1

		_, ok := r.AutoAssignRandomRank("p2", i1.Id)
		assert.False(t, ok)
		assert.NotContains(t, r.Player("p2").Rankings, i1.Id)
	})
}

func TestRankingTimeout(t *testing.T) {
	t.Parallel()

	t.Run("auto-ranks the latest item for everyone missing it", func(t *testing.T) {
		t.Parallel()
		r := startedRoom(t, 3)
		i1, err := r.AddItem("h", "cats", "", t0)
		require.NoError(t, err)
		require.NoError(t, r.RankItem("h", i1.Id, 1, t0))
		deadline := r.RankingTimerEndAt

		fired := r.CheckRankingTimeout(deadline.Add(time.Second))
		require.True(t, fired)

		assert.Equal(t, 1, r.Player("h").Rankings[i1.Id]) // untouched
		got := r.Player("p2").Rankings[i1.Id]
		assert.GreaterOrEqual(t, got, 1)
		assert.LessOrEqual(t, got, 3)
		assert.True(t, r.RankingTimerEndAt.IsZero())
	})

	t.Run("before the deadline nothing fires", func(t *testing.T) {
		t.Parallel()
		r := startedRoom(t, 3)
		_, err := r.AddItem("h", "cats", "", t0)
		require.NoError(t, err)
		assert.False(t, r.CheckRankingTimeout(r.RankingTimerEndAt.Add(-time.Second)))
		assert.False(t, r.RankingTimerEndAt.IsZero())
	})

	t.Run("clearing disarms", func(t *testing.T) {
		t.Parallel()
		r := startedRoom(t, 3)
		_, err := r.AddItem("h", "cats", "", t0)
		require.NoError(t, err)
		r.ClearRankingTimer()
		assert.False(t, r.CheckRankingTimeout(t0.Add(time.Hour)))
	})

	t.Run("everyone already ranked reports no assignment", func(t *testing.T) {
		t.Parallel()
		r := startedRoom(t, 3)
		i1, err := r.AddItem("h", "cats", "", t0)
		require.NoError(t, err)
		require.NoError(t, r.RankItem("h", i1.Id, 1, t0))
		require.NoError(t, r.RankItem("p2", i1.Id, 1, t0))

		assert.False(t, r.CheckRankingTimeout(r.RankingTimerEndAt))
		assert.True(t, r.RankingTimerEndAt.IsZero())
	})
}

func TestCatchUp(t *testing.T) {
	t.Parallel()

	t.Run("late joiner converges exactly once", func(t *testing.T) {
		t.Parallel()
		r := startedRoom(t, 3)
		i1, err := r.AddItem("h", "cats", "", t0)
		require.NoError(t, err)
		_, ok := r.AdvanceTurn(t0)
		require.True(t, ok)
		i2, err := r.AddItem("p2", "dogs", "", t0)
		require.NoError(t, err)

		late, err := r.AddPlayer("p3", "Late", t0)
		require.NoError(t, err)
		require.True(t, late.IsCatchingUp)
		assert.Equal(t, []*Item{r.Items[0], r.Items[1]}, r.MissedItems("p3"))
		assert.NotContains(t, r.ActivePlayers(), late)

		// still missing one item
		require.NoError(t, r.RankItem("p3", i1.Id, 1, t0))
		assert.False(t, r.CheckCaughtUp("p3"))

		require.NoError(t, r.RankItem("p3", i2.Id, 2, t0))
		assert.True(t, r.CheckCaughtUp("p3"))
		assert.False(t, late.IsCatchingUp)
		assert.Contains(t, r.ActivePlayers(), late)

		// the flip happens exactly once
		assert.False(t, r.CheckCaughtUp("p3"))
	})

	t.Run("items submitted after joining also count", func(t *testing.T) {
		t.Parallel()
		r := startedRoom(t, 3)
		i1, err := r.AddItem("h", "cats", "", t0)
		require.NoError(t, err)
		_, err = r.AddPlayer("p3", "Late", t0)
		require.NoError(t, err)
		require.NoError(t, r.RankItem("p3", i1.Id, 1, t0))

		// a new item lands before the catch-up check runs
		_, ok := r.AdvanceTurn(t0)
		require.True(t, ok)
		i2, err := r.AddItem("p2", "dogs", "", t0)
		require.NoError(t, err)

		assert.False(t, r.CheckCaughtUp("p3"))
		require.NoError(t, r.RankItem("p3", i2.Id, 2, t0))
		assert.True(t, r.CheckCaughtUp("p3"))
	})

	t.Run("never flags an on-time player", func(t *testing.T) {
		t.Parallel()
		r := startedRoom(t, 3)
		assert.False(t, r.CheckCaughtUp("p2"))
		assert.False(t, r.CheckCaughtUp("ghost"))
	})
}

func TestStandings(t *testing.T) {
	t.Parallel()
	r := startedRoom(t, 3)
	submitters := []string{"h", "p2", "h"}
	for i, text := range []string{"cats", "dogs", "rain"} {
		for r.CurrentTurnPlayerId != submitters[i] {
			_, ok := r.AdvanceTurn(t0)
			require.True(t, ok)
		}
		_, err := r.AddItem(submitters[i], text, "", t0.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
	}
	// h: cats=1 dogs=2 rain=3; p2: cats=2 dogs=1 rain=3
	require.NoError(t, r.RankItem("h", r.Items[0].Id, 1, t0))
	require.NoError(t, r.RankItem("h", r.Items[1].Id, 2, t0))
	require.NoError(t, r.RankItem("h", r.Items[2].Id, 3, t0))
	require.NoError(t, r.RankItem("p2", r.Items[0].Id, 2, t0))
	require.NoError(t, r.RankItem("p2", r.Items[1].Id, 1, t0))
	require.NoError(t, r.RankItem("p2", r.Items[2].Id, 3, t0))

	standings := r.Standings()
	require.Len(t, standings, 3)
	// cats and dogs tie on 3; cats was submitted first and stays ahead
	assert.Equal(t, "cats", standings[0].Text)
	assert.Equal(t, 3, standings[0].TotalScore)
	assert.Equal(t, "dogs", standings[1].Text)
	assert.Equal(t, 3, standings[1].TotalScore)
	assert.Equal(t, "rain", standings[2].Text)
	assert.Equal(t, 6, standings[2].TotalScore)
}
