package main

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdleToWaitingOnJoin(t *testing.T) {
	r := testRoom()
	assert.Equal(t, StatusIdle, r.Status)

	addHuman(t, r, "a1", "Ann", nil)
	assert.Equal(t, StatusWaiting, r.Status)
	assert.Equal(t, "a1", r.HostID, "first human becomes host")

	r.RemovePlayer("a1")
	assert.Equal(t, StatusIdle, r.Status, "empty room falls back to IDLE")
	assert.Empty(t, r.HostID)
}

func TestCountdownArmAndDisarm(t *testing.T) {
	r := testRoom()
	addHuman(t, r, "a1", "Ann", nil)
	addHuman(t, r, "b1", "Bob", nil)

	t0 := time.Now()
	r.checkAutoStart(t0)
	assert.False(t, r.CountdownDeadline.IsZero(), "two players arm the countdown")
	assert.Equal(t, StatusWaiting, r.Status)

	// Not elapsed yet: still waiting.
	r.checkAutoStart(t0.Add(time.Second))
	assert.Equal(t, StatusWaiting, r.Status)

	// Dropping below two players disarms.
	r.RemovePlayer("b1")
	assert.True(t, r.CountdownDeadline.IsZero())

	// Rejoining restarts the window from scratch.
	addHuman(t, r, "b1", "Bob", nil)
	r.checkAutoStart(t0.Add(2 * time.Second))
	assert.False(t, r.CountdownDeadline.IsZero())
	r.checkAutoStart(t0.Add(2*time.Second + CountdownSec*time.Second))
	assert.Equal(t, StatusRunning, r.Status)
}

func TestAutoStartAtCapacity(t *testing.T) {
	r := testRoom()
	for i := 0; i < MaxHumans; i++ {
		addHuman(t, r, fmt.Sprintf("h%d", i), fmt.Sprintf("H%d", i), nil)
	}
	for i := 0; i < RoomCapacity-MaxHumans; i++ {
		require.Empty(t, r.AddPlayer(NewBot(fmt.Sprintf("bot-1-%d", i), botNames[i])))
	}
	require.Equal(t, r.Capacity, r.countedCount())

	r.checkAutoStart(time.Now())
	assert.Equal(t, StatusRunning, r.Status, "a full room starts immediately")
	assert.Len(t, r.participants, r.Capacity)
	assert.Len(t, r.Food, FoodTarget)
	assertInvariants(t, r)
}

func TestCapacityRejections(t *testing.T) {
	r := testRoom()
	for i := 0; i < MaxHumans; i++ {
		addHuman(t, r, fmt.Sprintf("h%d", i), fmt.Sprintf("H%d", i), nil)
	}
	assert.Equal(t, ErrRoomFullHumans, r.AddPlayer(NewPlayer("h9", "Nia", nil)))

	for i := 0; r.countedCount() < r.Capacity; i++ {
		require.Empty(t, r.AddPlayer(NewBot(fmt.Sprintf("bot-1-%d", i), botNames[i])))
	}
	assert.Equal(t, ErrRoomFull, r.AddPlayer(NewBot("bot-1-9", "Boa")))
}

func TestHostReelection(t *testing.T) {
	r := testRoom()
	addHuman(t, r, "a1", "Ann", nil)
	addHuman(t, r, "b1", "Bob", nil)
	assert.Equal(t, "a1", r.HostID)

	r.RemovePlayer("a1")
	assert.Equal(t, "b1", r.HostID, "host passes to the next connected human")
}

func TestManualStartRules(t *testing.T) {
	r := testRoom()
	addHuman(t, r, "a1", "Ann", nil)
	addHuman(t, r, "b1", "Bob", nil)

	// Only the host may start.
	r.HandleStartRequest("b1")
	assert.Equal(t, StatusWaiting, r.Status)

	r.HandleStartRequest("a1")
	assert.Equal(t, StatusRunning, r.Status)
	assert.Len(t, r.participants, 2)
}

func TestManualStartSinglePlayerDebug(t *testing.T) {
	r := testRoom()
	addHuman(t, r, "a1", "Ann", nil)

	r.HandleStartRequest("a1")
	assert.Equal(t, StatusRunning, r.Status, "the host may start alone")
	assert.Len(t, r.participants, 1)
}

func TestBotBenchedOnHumanJoin(t *testing.T) {
	r := testRoom()
	bot1 := NewBot("bot-1-0", "Viper")
	bot2 := NewBot("bot-1-1", "Cobra")
	require.Empty(t, r.AddPlayer(bot1))
	require.Empty(t, r.AddPlayer(bot2))
	require.Equal(t, 2, r.countedCount())

	addHuman(t, r, "h1", "Ann", nil)

	assert.False(t, bot1.Benched(), "the first bot stays active")
	assert.True(t, bot2.Benched(), "surplus bots are benched")
	assert.Equal(t, 2, r.countedCount(), "benched bots do not count")
	assert.Equal(t, "h1", r.HostID, "bots never hold the host role")
}

func TestLastHumanLeavingResetsBotScores(t *testing.T) {
	r := testRoom()
	bot := NewBot("bot-1-0", "Viper")
	require.Empty(t, r.AddPlayer(bot))
	addHuman(t, r, "h1", "Ann", nil)
	bot.Score = 5

	r.RemovePlayer("h1")
	assert.Equal(t, 0, bot.Score, "bot scores reset when the room empties of humans")
}

func TestGameOverRankingAndReset(t *testing.T) {
	r := testRoom()
	sink := newSinkConn("a1")
	a := addHuman(t, r, "a1", "Ann", sink)
	b := addHuman(t, r, "b1", "Bob", nil)
	c := addHuman(t, r, "c1", "Cid", nil)

	r.Status = StatusRunning
	placeSnake(r, a, []Cell{{5, 5}, {4, 5}}, DirRight)
	a.Score = 5
	b.Score = 7
	c.Score = 2
	b.Alive = false
	c.Alive = false
	r.DeathOrder = []string{"b1", "c1"} // b died first
	r.TickID = 42

	r.endGame()

	msgs := drainMessages(t, sink)
	require.NotEmpty(t, msgs)
	over := msgs[len(msgs)-1]
	require.Equal(t, MsgGameOver, over["t"])

	// Alive first, then the dead in reverse death order.
	ranks := over["ranks"].([]any)
	require.Len(t, ranks, 3)
	first := ranks[0].(map[string]any)
	second := ranks[1].(map[string]any)
	third := ranks[2].(map[string]any)
	assert.Equal(t, "a1", first["id"])
	assert.Equal(t, "c1", second["id"])
	assert.Equal(t, "b1", third["id"])
	assert.Equal(t, float64(1), first["rank"])
	assert.Equal(t, float64(5), first["score"])

	// Highest score wins even from the grave.
	assert.Equal(t, "b1", over["winner_id"])
	assert.Equal(t, "Bob", over["winner_name"])
	assert.Equal(t, float64(42), over["ended_tick"])

	// The room is reset for the next round.
	assert.Equal(t, StatusWaiting, r.Status)
	for _, p := range r.Players {
		assert.Equal(t, 0, p.Score)
		assert.False(t, p.Alive)
	}
	assert.Empty(t, r.DeathOrder)
	assert.Empty(t, r.Occupied)
}

func TestWinnerTieBreakByName(t *testing.T) {
	r := testRoom()
	sink := newSinkConn("a1")
	a := addHuman(t, r, "a1", "Zed", sink)
	b := addHuman(t, r, "b1", "Ann", nil)

	r.Status = StatusRunning
	placeSnake(r, a, []Cell{{5, 5}, {4, 5}}, DirRight)
	placeSnake(r, b, []Cell{{5, 10}, {4, 10}}, DirRight)
	a.Score = 3
	b.Score = 3

	r.endGame()

	msgs := drainMessages(t, sink)
	over := msgs[len(msgs)-1]
	require.Equal(t, MsgGameOver, over["t"])
	assert.Equal(t, "b1", over["winner_id"], "ties break by name ascending")
}

func TestStartGamePrunesDisconnectedHumans(t *testing.T) {
	r := testRoom()
	addHuman(t, r, "a1", "Ann", nil)
	b := addHuman(t, r, "b1", "Bob", nil)
	c := addHuman(t, r, "c1", "Cid", nil)
	b.Connected = false

	r.StartGame("manual")

	assert.NotContains(t, r.Players, "b1", "ghost humans never spawn")
	assert.Contains(t, r.participants, "a1")
	assert.Contains(t, r.participants, "c1")
	assert.True(t, c.Alive)
}

func TestRoomStatsEntry(t *testing.T) {
	r := testRoom()
	bot := NewBot("bot-1-0", "Viper")
	require.Empty(t, r.AddPlayer(bot))

	// Bot-only room displays as lightly occupied.
	entry := r.StatsEntry()
	assert.Equal(t, 0, entry.ConnectedPlayers)
	assert.Equal(t, 1, entry.DisplayPlayers)
	assert.Equal(t, 1, entry.UsedSlots)
	assert.Equal(t, r.Capacity-1, entry.AvailableSlots)

	addHuman(t, r, "h1", "Ann", nil)
	entry = r.StatsEntry()
	assert.Equal(t, 1, entry.ConnectedPlayers)
	assert.Equal(t, 2, entry.DisplayPlayers)
	assert.Equal(t, 2, entry.UsedSlots)
}

func TestSchedulerTicksRooms(t *testing.T) {
	r := testRoom()
	p := addHuman(t, r, "p1", "Ann", nil)
	r.Status = StatusRunning
	placeSnake(r, p, []Cell{{5, 5}, {4, 5}}, DirRight)

	s := NewScheduler([]*Room{r}, r.log)
	s.tickAll(time.Now())
	assert.Equal(t, 1, r.TickID)
	s.tickAll(time.Now())
	assert.Equal(t, 2, r.TickID)
}
