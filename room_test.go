/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"maps"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockGame struct {
	mock.Mock
	status string
}

func (m *mockGame) GameID() string { return "mock" }

func (m *mockGame) Status() string { return m.status }

func (m *mockGame) Apply(playerID string, action Action, members []Member) ([]any, error) {
	args := m.Called(playerID, action, members)

	out, _ := args.Get(0).([]any)

	return out, args.Error(1)
}

func (m *mockGame) MembersChanged(members []Member) []any {
	args := m.Called(members)

	out, _ := args.Get(0).([]any)

	return out
}

func (m *mockGame) Rekey(oldID, newID string) {
	m.Called(oldID, newID)
}

func (m *mockGame) Scores() map[string]int {
	return m.Called().Get(0).(map[string]int)
}

func (m *mockGame) View() any { return nil }

type closeCounter struct {
	mu    sync.Mutex
	count int
}

func (c *closeCounter) onClose(*Room) {
	c.mu.Lock()
	c.count++
	c.mu.Unlock()
}

func newTestRoom(clock *fakeClock, closes *closeCounter) *Room {
	var onClose func(*Room)
	if closes != nil {
		onClose = closes.onClose
	}

	return newRoom("internal-id", "ABC123", "h", "Alice", clock.Now, onClose)
}

func TestRoomMembership(t *testing.T) {
	clock := newFakeClock()

	t.Run("creator is host", func(t *testing.T) {
		r := newTestRoom(clock, nil)

		assert.Equal(t, "h", r.HostID())
		assert.Equal(t, map[string]string{"h": "Alice"}, r.Players())
		assert.True(t, r.Active())
	})

	t.Run("add player", func(t *testing.T) {
		r := newTestRoom(clock, nil)

		require.NoError(t, r.AddPlayer("b", "Bob"))

		assert.Equal(t, map[string]string{"h": "Alice", "b": "Bob"}, r.Players())
		assert.Equal(t, "h", r.HostID())
	})

	t.Run("duplicate name is a conflict", func(t *testing.T) {
		r := newTestRoom(clock, nil)

		err := r.AddPlayer("b", "Alice")

		assert.ErrorIs(t, err, ErrConflict)
		assert.Equal(t, "conflict", errorKind(err))
		assert.Len(t, r.Players(), 1)
	})

	t.Run("duplicate id is a conflict", func(t *testing.T) {
		r := newTestRoom(clock, nil)

		assert.ErrorIs(t, r.AddPlayer("h", "Someone"), ErrConflict)
	})

	t.Run("missing fields are malformed", func(t *testing.T) {
		r := newTestRoom(clock, nil)

		assert.ErrorIs(t, r.AddPlayer("b", ""), ErrMalformed)
		assert.ErrorIs(t, r.AddPlayer("", "Bob"), ErrMalformed)
	})

	t.Run("disconnected player's name stays reserved", func(t *testing.T) {
		r := newTestRoom(clock, nil)
		require.NoError(t, r.AddPlayer("b", "Bob"))
		_, err := r.MarkDisconnected("b")
		require.NoError(t, err)

		assert.ErrorIs(t, r.AddPlayer("c", "Bob"), ErrNameTaken)
	})

	t.Run("players and scores share keys", func(t *testing.T) {
		r := newTestRoom(clock, nil)
		require.NoError(t, r.AddPlayer("b", "Bob"))
		require.NoError(t, r.AddPlayer("c", "Cat"))
		_, err := r.RemovePlayer("b")
		require.NoError(t, err)
		require.NoError(t, r.AddPlayer("d", "Dan"))

		players := slices.Sorted(maps.Keys(r.Players()))
		scores := slices.Sorted(maps.Keys(r.Scores()))

		assert.Equal(t, players, scores)
		assert.Equal(t, []string{"c", "d", "h"}, players)
	})
}

func TestRoomRemoval(t *testing.T) {
	clock := newFakeClock()

	t.Run("host removal promotes earliest joiner", func(t *testing.T) {
		r := newTestRoom(clock, nil)
		require.NoError(t, r.AddPlayer("b", "Bob"))
		require.NoError(t, r.AddPlayer("c", "Cat"))

		out, err := r.RemovePlayer("h")
		require.NoError(t, err)

		assert.True(t, out.WasHost)
		assert.True(t, out.HostChanged)
		assert.Equal(t, "b", out.NewHostID)
		assert.Equal(t, "b", r.HostID())
	})

	t.Run("non-host removal keeps host", func(t *testing.T) {
		r := newTestRoom(clock, nil)
		require.NoError(t, r.AddPlayer("b", "Bob"))

		out, err := r.RemovePlayer("b")
		require.NoError(t, err)

		assert.False(t, out.HostChanged)
		assert.Equal(t, "h", r.HostID())
	})

	t.Run("unknown player", func(t *testing.T) {
		r := newTestRoom(clock, nil)

		_, err := r.RemovePlayer("nobody")

		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("last player closes the room once", func(t *testing.T) {
		closes := &closeCounter{}
		r := newTestRoom(clock, closes)

		out, err := r.RemovePlayer("h")
		require.NoError(t, err)

		assert.True(t, out.Closed)
		assert.False(t, r.Active())
		assert.Equal(t, 1, closes.count)

		r.Close()
		assert.Equal(t, 1, closes.count)
	})

	t.Run("concurrent host removal promotes exactly once", func(t *testing.T) {
		r := newTestRoom(clock, nil)
		require.NoError(t, r.AddPlayer("b", "Bob"))
		require.NoError(t, r.AddPlayer("c", "Cat"))

		var wg sync.WaitGroup
		results := make([]Removal, 2)
		errs := make([]error, 2)
		for i := range 2 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i], errs[i] = r.RemovePlayer("h")
			}()
		}
		wg.Wait()

		succeeded := 0
		for i := range 2 {
			if errs[i] == nil {
				succeeded++
				assert.Equal(t, "b", results[i].NewHostID)
			} else {
				assert.ErrorIs(t, errs[i], ErrNotFound)
			}
		}

		assert.Equal(t, 1, succeeded)
		assert.Equal(t, "b", r.HostID())
	})
}

func TestRoomReconnection(t *testing.T) {
	clock := newFakeClock()

	t.Run("score and host carry over", func(t *testing.T) {
		r := newTestRoom(clock, nil)
		require.NoError(t, r.AddPlayer("b", "Bob"))
		r.players["h"].Score = 30

		out, err := r.MarkDisconnected("h")
		require.NoError(t, err)
		assert.Equal(t, "b", out.NewHostID)
		assert.Equal(t, "b", r.HostID())
		assert.NotContains(t, r.Players(), "h")
		assert.Equal(t, DisconnectedPlayer{Name: "Alice", DisconnectedAt: clock.Now(), WasHost: true, Score: 30}, r.Disconnected()["h"])

		require.NoError(t, r.ReconnectPlayer("h", "h2", "Alice"))

		assert.Equal(t, 30, r.Scores()["h2"])
		assert.Equal(t, "h2", r.HostID())
		assert.Empty(t, r.Disconnected())
	})

	t.Run("name must match", func(t *testing.T) {
		r := newTestRoom(clock, nil)
		require.NoError(t, r.AddPlayer("b", "Bob"))
		_, err := r.MarkDisconnected("b")
		require.NoError(t, err)

		assert.ErrorIs(t, r.ReconnectPlayer("b", "b2", "Robert"), ErrNotFound)
		assert.Contains(t, r.Disconnected(), "b")
	})

	t.Run("room with everyone away keeps running without a host", func(t *testing.T) {
		r := newTestRoom(clock, nil)

		_, err := r.MarkDisconnected("h")
		require.NoError(t, err)

		assert.True(t, r.Active())
		assert.Equal(t, "", r.HostID())

		require.NoError(t, r.AddPlayer("x", "Xena"))
		assert.Equal(t, "x", r.HostID())

		require.NoError(t, r.ReconnectPlayer("h", "h", "Alice"))
		assert.Equal(t, "h", r.HostID())
	})

	t.Run("first returning former host keeps the role", func(t *testing.T) {
		r := newTestRoom(clock, nil)
		require.NoError(t, r.AddPlayer("b", "Bob"))

		_, err := r.MarkDisconnected("h")
		require.NoError(t, err)
		_, err = r.MarkDisconnected("b")
		require.NoError(t, err)

		require.NoError(t, r.ReconnectPlayer("b", "b", "Bob"))
		require.NoError(t, r.ReconnectPlayer("h", "h", "Alice"))

		assert.Equal(t, "b", r.HostID())
		assert.Contains(t, r.Players(), "h")
	})

	t.Run("active game is rekeyed", func(t *testing.T) {
		r := newTestRoom(clock, nil)
		require.NoError(t, r.AddPlayer("b", "Bob"))

		game := &mockGame{status: StatusWaitingForAnswers}
		game.On("MembersChanged", mock.Anything).Return(nil)
		game.On("Rekey", "b", "b2").Return()

		require.NoError(t, r.StartGame("mock", game))

		_, err := r.MarkDisconnected("b")
		require.NoError(t, err)
		require.NoError(t, r.ReconnectPlayer("b", "b2", "Bob"))

		game.AssertCalled(t, "MembersChanged", []Member{{ID: "h", Name: "Alice"}})
		game.AssertExpectations(t)
	})
}

func TestRoomGames(t *testing.T) {
	clock := newFakeClock()

	t.Run("start needs two players", func(t *testing.T) {
		r := newTestRoom(clock, nil)

		assert.ErrorIs(t, r.StartGame("mock", &mockGame{status: StatusWaiting}), ErrInvalidState)
	})

	t.Run("joins are refused once a game is underway", func(t *testing.T) {
		r := newTestRoom(clock, nil)
		require.NoError(t, r.AddPlayer("b", "Bob"))
		require.NoError(t, r.AddPlayer("c", "Cat"))

		state, err := newTriviaEngine(testBank, identityPerm).Initialize(nil)
		require.NoError(t, err)
		require.NoError(t, r.StartGame(triviaGameID, state))

		err = r.AddPlayer("d", "Dan")
		assert.ErrorIs(t, err, ErrInvalidState)
		assert.Len(t, r.Players(), 3)
	})

	t.Run("end game is idempotent", func(t *testing.T) {
		r := newTestRoom(clock, nil)
		require.NoError(t, r.AddPlayer("b", "Bob"))
		require.NoError(t, r.SelectGame("h", GameInfo{ID: "mock"}))
		require.NoError(t, r.StartGame("mock", &mockGame{status: StatusWaiting}))

		r.EndGame()
		r.EndGame()

		assert.Nil(t, r.Game())
		assert.Equal(t, "", r.SelectedGame())
		require.NoError(t, r.AddPlayer("c", "Cat"))
	})

	t.Run("select game is host only", func(t *testing.T) {
		r := newTestRoom(clock, nil)
		require.NoError(t, r.AddPlayer("b", "Bob"))

		assert.ErrorIs(t, r.SelectGame("b", GameInfo{ID: "trivia"}), ErrForbidden)
		require.NoError(t, r.SelectGame("h", GameInfo{ID: "trivia"}))
		assert.Equal(t, "trivia", r.SelectedGame())
	})

	t.Run("start enforces catalog bounds", func(t *testing.T) {
		r := newTestRoom(clock, nil)
		require.NoError(t, r.AddPlayer("b", "Bob"))
		require.NoError(t, r.SelectGame("h", GameInfo{ID: drawingGameID}))

		r.mu.Lock()
		err := r.startSelectedLocked("h", testCatalog())
		r.mu.Unlock()

		assert.ErrorIs(t, err, ErrInvalidState)
		assert.Nil(t, r.Game())
	})

	t.Run("actions need a game and a member", func(t *testing.T) {
		r := newTestRoom(clock, nil)
		require.NoError(t, r.AddPlayer("b", "Bob"))

		_, err := r.ApplyAction("h", Action{Name: "answer"})
		assert.ErrorIs(t, err, ErrNoGame)

		game := &mockGame{status: StatusWaitingForAnswers}
		require.NoError(t, r.StartGame("mock", game))

		_, err = r.ApplyAction("stranger", Action{Name: "answer"})
		assert.ErrorIs(t, err, ErrForbidden)
		game.AssertNotCalled(t, "Apply", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("finished game adds to room scores", func(t *testing.T) {
		r := newTestRoom(clock, nil)
		require.NoError(t, r.AddPlayer("b", "Bob"))

		state, err := newTriviaEngine(testBank[:1], identityPerm).Initialize(r.membersLocked())
		require.NoError(t, err)
		require.NoError(t, r.StartGame(triviaGameID, state))

		_, err = r.ApplyAction("h", Action{Name: "answer", AnswerIndex: ptr(1)})
		require.NoError(t, err)
		msgs, err := r.ApplyAction("b", Action{Name: "answer", AnswerIndex: ptr(0)})
		require.NoError(t, err)

		_, over := findMessage[GameOverMessage](msgs)
		assert.True(t, over)
		assert.Equal(t, map[string]int{"h": 10, "b": 0}, r.Scores())
	})
}

func TestRoomCleanup(t *testing.T) {
	t.Run("expired players are dropped", func(t *testing.T) {
		clock := newFakeClock()
		r := newTestRoom(clock, nil)
		require.NoError(t, r.AddPlayer("b", "Bob"))
		_, err := r.MarkDisconnected("b")
		require.NoError(t, err)

		assert.Empty(t, r.CleanupDisconnected(5*time.Minute).Removed)

		last := r.LastActivity()
		clock.Advance(6 * time.Minute)

		out := r.CleanupDisconnected(5 * time.Minute)

		assert.Equal(t, []Member{{ID: "b", Name: "Bob"}}, out.Removed)
		assert.False(t, out.Closed)
		assert.Empty(t, r.Disconnected())
		assert.True(t, r.Active())
		assert.Equal(t, last, r.LastActivity())
	})

	t.Run("room closes when the last member expires", func(t *testing.T) {
		clock := newFakeClock()
		closes := &closeCounter{}
		r := newTestRoom(clock, closes)
		_, err := r.MarkDisconnected("h")
		require.NoError(t, err)

		clock.Advance(10 * time.Minute)
		out := r.CleanupDisconnected(5 * time.Minute)

		assert.True(t, out.Closed)
		assert.False(t, r.Active())
		assert.Equal(t, 1, closes.count)
	})
}

func TestRoomSnapshot(t *testing.T) {
	clock := newFakeClock()
	r := newTestRoom(clock, nil)
	require.NoError(t, r.AddPlayer("b", "Bob"))
	require.NoError(t, r.AddPlayer("c", "Cat"))
	_, err := r.MarkDisconnected("c")
	require.NoError(t, err)
	require.NoError(t, r.SelectGame("h", GameInfo{ID: triviaGameID}))

	snap := r.Snapshot()

	data, err := json.Marshal(snap)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.NotContains(t, raw, "id")
	assert.NotContains(t, string(data), "internal-id")

	var back RoomSnapshot
	require.NoError(t, json.Unmarshal(data, &back))
	if diff := cmp.Diff(snap, back); diff != "" {
		t.Errorf("snapshot changed in transit (-sent +received):\n%s", diff)
	}

	assert.Equal(t, "ABC123", back.Code)
	assert.Equal(t, map[string]string{"h": "Alice", "b": "Bob"}, back.Players)
	assert.Equal(t, []PlayerView{
		{ID: "h", Name: "Alice", IsHost: true, Score: 0, Connected: true},
		{ID: "b", Name: "Bob", Score: 0, Connected: true},
		{ID: "c", Name: "Cat", Score: 0},
	}, back.Roster)
}

func ptr[T any](v T) *T { return &v }
