package main

import (
	"encoding/json"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// RoomStatus is the lifecycle state of a room.
type RoomStatus string

const (
	StatusIdle     RoomStatus = "IDLE"
	StatusWaiting  RoomStatus = "WAITING"
	StatusRunning  RoomStatus = "RUNNING"
	StatusFinished RoomStatus = "FINISHED"
)

// intent is a snake's proposed move before arbitration.
type intent struct {
	nextHead   Cell
	willGrow   bool
	tailToFree *Cell // tail cell vacated this tick; nil when growing
}

// Room holds one room's full state. All fields are guarded by mu; every
// method below assumes the caller holds mu unless noted otherwise. The tick
// scheduler and the connection handlers are the only mutators.
type Room struct {
	ID       string
	Capacity int
	Status   RoomStatus
	Players  map[string]*Player
	HostID   string // empty when no human is connected

	Food     map[Cell]struct{}
	Occupied map[Cell]struct{} // union of alive snakes' body sets
	TickID   int

	DeathOrder        []string
	CountdownDeadline time.Time // zero = countdown disarmed
	PendingDeaths     map[string]struct{}

	// participants holds the ids spawned into the current round, so that
	// e.g. a disconnecting spectator never enters the death order.
	participants map[string]struct{}

	policy *Policy
	mu     sync.Mutex
	log    zerolog.Logger
}

// NewRoom creates an empty room.
func NewRoom(id string, policy *Policy, logger zerolog.Logger) *Room {
	return &Room{
		ID:            id,
		Capacity:      RoomCapacity,
		Status:        StatusIdle,
		Players:       make(map[string]*Player),
		Food:          make(map[Cell]struct{}),
		Occupied:      make(map[Cell]struct{}),
		PendingDeaths: make(map[string]struct{}),
		participants:  make(map[string]struct{}),
		policy:        policy,
		log:           logger.With().Str("room", id).Logger(),
	}
}

// Tick advances the room one scheduler step. It acquires the room lock
// itself; this is the only self-locking method on Room.
func (r *Room) Tick(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepDeadConns()
	switch r.Status {
	case StatusWaiting:
		r.checkAutoStart(now)
	case StatusRunning:
		r.step()
	}
}

// sweepDeadConns removes players whose send path failed since the last tick.
// In RUNNING rooms removal routes through PendingDeaths like any disconnect.
func (r *Room) sweepDeadConns() {
	var dead []string
	for id, p := range r.Players {
		if p.Connected && p.Conn != nil && p.Conn.Dead() {
			dead = append(dead, id)
		}
	}
	for _, id := range dead {
		r.log.Warn().Str("player", id).Msg("send path broken, dropping player")
		conn := r.Players[id].Conn
		r.RemovePlayer(id)
		conn.Close()
	}
}

// checkAutoStart applies the WAITING auto-start rules: start immediately at
// capacity, otherwise arm a countdown once two counted players are present
// and disarm it when the count drops back below two.
func (r *Room) checkAutoStart(now time.Time) {
	c := r.countedCount()
	switch {
	case c >= r.Capacity:
		r.StartGame("capacity")
	case c >= MinPlayersToStart:
		if r.CountdownDeadline.IsZero() {
			r.CountdownDeadline = now.Add(CountdownSec * time.Second)
			r.log.Info().Msg("start countdown armed")
		} else if !now.Before(r.CountdownDeadline) {
			r.StartGame("countdown")
		}
	default:
		r.CountdownDeadline = time.Time{}
	}
}

// AddPlayer admits a player, returning an error code ("" on success).
// Joining a RUNNING room admits the player as a spectator.
func (r *Room) AddPlayer(p *Player) string {
	if r.countedCount() >= r.Capacity {
		return ErrRoomFull
	}
	if !p.IsBot && r.humanCount() >= MaxHumans {
		return ErrRoomFullHumans
	}
	if r.Status == StatusRunning {
		p.Alive = false
	}
	r.Players[p.ID] = p
	if !p.IsBot {
		if r.HostID == "" {
			r.HostID = p.ID
		}
		if r.Status != StatusRunning {
			r.benchSurplusBots()
		}
	}
	if r.Status == StatusIdle && r.countedCount() > 0 {
		r.Status = StatusWaiting
	}
	r.log.Info().Str("player", p.ID).Str("name", p.Name).Bool("bot", p.IsBot).Msg("player joined")
	return ""
}

// RemovePlayer handles an EXIT, a transport close, or a dead send path.
// During RUNNING the player stays in the map and dies of "disconnect" on the
// next tick; otherwise they are removed outright. Idempotent.
func (r *Room) RemovePlayer(id string) {
	p, ok := r.Players[id]
	if !ok {
		return
	}
	p.Connected = false
	if r.Status == StatusRunning {
		p.Alive = false
		r.PendingDeaths[id] = struct{}{}
	} else {
		delete(r.Players, id)
		if r.HostID == id {
			r.electHost()
		}
		c := r.countedCount()
		if c == 0 && r.Status == StatusWaiting {
			r.Status = StatusIdle
		}
		if c < MinPlayersToStart {
			r.CountdownDeadline = time.Time{}
		}
	}
	if !p.IsBot && r.connectedHumanCount() == 0 {
		r.log.Info().Msg("last human left, resetting bot scores")
		for _, q := range r.Players {
			if q.IsBot {
				q.Score = 0
			}
		}
	}
	r.log.Info().Str("player", id).Msg("player left")
}

// HandleInput updates a player's direction from an input message. Inputs
// from dead players are ignored; reversals are rejected in ApplyInput.
func (r *Room) HandleInput(id, dir string) {
	p, ok := r.Players[id]
	if !ok || !p.Alive {
		return
	}
	p.ApplyInput(dir)
}

// HandleStartRequest is the host's manual start while WAITING. A start with
// a single player is allowed as a debug path.
func (r *Room) HandleStartRequest(id string) {
	if r.Status != StatusWaiting || r.HostID != id {
		return
	}
	if r.countedCount() >= MinPlayersToStart {
		r.StartGame("manual")
	} else {
		r.StartGame("manual_debug")
	}
}

// StartGame begins a round: prunes disconnected humans, spawns every counted
// player, resets per-round state and broadcasts game_start.
func (r *Room) StartGame(reason string) {
	r.log.Info().Str("reason", reason).Msg("round starting")

	// Prune humans that disconnected while waiting so no ghosts spawn.
	for id, p := range r.Players {
		if !p.IsBot && !p.Connected {
			delete(r.Players, id)
			if r.HostID == id {
				r.electHost()
			}
		}
	}

	r.Status = StatusRunning
	r.TickID = 0
	r.DeathOrder = nil
	r.Occupied = make(map[Cell]struct{})
	r.PendingDeaths = make(map[string]struct{})
	r.participants = make(map[string]struct{})
	r.CountdownDeadline = time.Time{}

	var spawns []SpawnInfo
	for _, p := range r.sortedPlayers() {
		if p.Benched() {
			continue
		}
		p.Eliminated = false
		p.ClearBody()
		body, ok := r.findSpawn()
		if !ok {
			// Dead on arrival; the round continues without them.
			p.Alive = false
			r.log.Warn().Str("player", p.ID).Msg("no spawn cell found")
			continue
		}
		p.Alive = true
		p.Direction = DirRight
		p.SetBody(body)
		for _, c := range body {
			r.Occupied[c] = struct{}{}
		}
		r.participants[p.ID] = struct{}{}
		spawns = append(spawns, SpawnInfo{ID: p.ID, Name: p.Name, Body: p.bodyPairs()})
	}

	r.Food = make(map[Cell]struct{})
	r.spawnFood()

	r.broadcast(GameStartMsg{
		Type:    MsgGameStart,
		TickID:  0,
		Food:    r.foodPairs(),
		Players: spawns,
	})
}

// findSpawn picks a free length-3 horizontal body pointing right, keeping
// SpawnMargin cells away from the edges. Attempt-bounded.
func (r *Room) findSpawn() ([]Cell, bool) {
	for i := 0; i < SpawnAttempts; i++ {
		sx := SpawnMargin + rand.Intn(MapWidth-2*SpawnMargin)
		sy := SpawnMargin + rand.Intn(MapHeight-2*SpawnMargin)
		body := []Cell{{sx, sy}, {sx - 1, sy}, {sx - 2, sy}}
		free := true
		for _, c := range body {
			if _, occ := r.Occupied[c]; occ {
				free = false
				break
			}
		}
		if free {
			return body, true
		}
	}
	return nil, false
}

// step runs one simulation tick: intent, arbitration, commit, death cleanup,
// food replenishment, delta broadcast. It returns the delta it broadcast,
// or nil when the round ended before moving.
func (r *Room) step() *DeltaMsg {
	if r.Status != StatusRunning {
		return nil
	}
	if r.roundShouldEnd() {
		r.endGame()
		return nil
	}
	r.TickID++
	alive := r.alivePlayers()
	moves := make([]any, 0, len(alive))

	// Phase 1: intent.
	intents := make(map[string]intent, len(alive))
	for _, p := range alive {
		if p.IsBot {
			r.updateBotDirection(p)
		}
		next := p.Head().Step(p.Direction)
		_, grow := r.Food[next]
		in := intent{nextHead: next, willGrow: grow}
		if !grow {
			t := p.Tail()
			in.tailToFree = &t
		}
		intents[p.ID] = in
	}

	// Phase 2: arbitration. A cell vacated this tick is passable for the
	// body check; head-on collisions are symmetric and dominate.
	tailsToFree := make(map[Cell]struct{}, len(alive))
	for _, in := range intents {
		if in.tailToFree != nil {
			tailsToFree[*in.tailToFree] = struct{}{}
		}
	}

	dying := make(map[string]string) // id -> reason
	for id := range r.PendingDeaths {
		dying[id] = "disconnect"
	}
	r.PendingDeaths = make(map[string]struct{})

	for _, p := range alive {
		in := intents[p.ID]
		if !in.nextHead.InBounds() {
			dying[p.ID] = "wall"
			continue
		}
		if _, occ := r.Occupied[in.nextHead]; occ {
			if _, free := tailsToFree[in.nextHead]; !free {
				dying[p.ID] = "body"
			}
		}
	}
	for i := 0; i < len(alive); i++ {
		for j := i + 1; j < len(alive); j++ {
			if intents[alive[i].ID].nextHead == intents[alive[j].ID].nextHead {
				dying[alive[i].ID] = "head-on"
				dying[alive[j].ID] = "head-on"
			}
		}
	}

	// Cells claimed by a surviving head this tick must stay in the occupied
	// set even when they double as someone's vacated tail.
	newHeads := make(map[Cell]struct{}, len(alive))
	for _, p := range alive {
		if _, dead := dying[p.ID]; !dead {
			newHeads[intents[p.ID].nextHead] = struct{}{}
		}
	}

	// Phase 3: commit survivors.
	foodEaten := false
	for _, p := range alive {
		if _, dead := dying[p.ID]; dead {
			continue
		}
		in := intents[p.ID]
		next := in.nextHead
		p.Body = append([]Cell{next}, p.Body...)
		p.BodySet[next] = struct{}{}
		r.Occupied[next] = struct{}{}

		var tailRemove *[2]int
		if in.willGrow {
			p.Score++
			delete(r.Food, next)
			foodEaten = true
		} else {
			tail := p.Body[len(p.Body)-1]
			p.Body = p.Body[:len(p.Body)-1]
			if tail != next {
				// Tail-chase: the head now occupies the popped tail cell.
				delete(p.BodySet, tail)
			}
			if _, claimed := newHeads[tail]; !claimed {
				delete(r.Occupied, tail)
			}
			pair := tail.pair()
			tailRemove = &pair
		}
		moves = append(moves, MoveStep{
			ID:         p.ID,
			HeadAdd:    next.pair(),
			TailRemove: tailRemove,
			Score:      p.Score,
			Alive:      true,
		})
	}

	// Phase 4: death cleanup, in stable id order.
	dyingIDs := make([]string, 0, len(dying))
	for id := range dying {
		dyingIDs = append(dyingIDs, id)
	}
	sort.Strings(dyingIDs)

	humanDied := false
	for _, id := range dyingIDs {
		p, ok := r.Players[id]
		if !ok {
			continue
		}
		if _, in := r.participants[id]; !in || p.Eliminated {
			continue
		}
		p.Alive = false
		p.Eliminated = true
		p.Score /= 2
		r.DeathOrder = append(r.DeathOrder, id)
		for _, c := range p.Body {
			if _, claimed := newHeads[c]; !claimed {
				delete(r.Occupied, c)
			}
		}
		p.ClearBody()
		if !p.IsBot {
			humanDied = true
		}
		moves = append(moves, MoveDead{ID: id, Dead: true, Reason: dying[id]})
		r.log.Info().Str("player", id).Str("reason", dying[id]).Int("tick", r.TickID).Msg("snake died")
	}

	if foodEaten {
		r.spawnFood()
	}

	// AI showdown handoff: the last human just died but a bot still lives
	// and a benched bot is available: revive it for an AI-vs-AI epilogue.
	if humanDied && r.humanCount() > 0 && r.aliveHumanCount() == 0 &&
		r.aliveBotCount() >= 1 && r.benchedBotCount() > 0 {
		if mv := r.reviveBenchedBot(); mv != nil {
			moves = append(moves, *mv)
		}
	}

	delta := &DeltaMsg{Type: MsgDelta, Tick: r.TickID, Moves: moves, Food: r.foodPairs()}
	r.broadcast(delta)

	if r.roundShouldEnd() {
		r.endGame()
	}
	return delta
}

// roundShouldEnd evaluates the end conditions. The AI showdown handoff
// (no humans alive, exactly one alive bot, a benched bot in reserve) keeps
// the round open so the revival can happen.
func (r *Room) roundShouldEnd() bool {
	aliveCount := 0
	for _, p := range r.Players {
		if p.Alive {
			aliveCount++
		}
	}
	if aliveCount == 0 {
		return true
	}
	if r.countedCount() >= MinPlayersToStart && aliveCount <= 1 {
		showdown := r.aliveHumanCount() == 0 && r.aliveBotCount() == 1 && r.benchedBotCount() > 0
		if !showdown {
			return true
		}
	}
	if r.humanCount() > 0 && r.aliveHumanCount() == 0 && r.aliveBotCount() == 0 {
		return true
	}
	return false
}

// endGame broadcasts the ranking and resets the room for the next round.
// Alive players rank first, then the dead in reverse death order (the most
// recently killed ranked higher). The winner is the participant with the
// highest score, ties broken by name then id.
func (r *Room) endGame() {
	r.Status = StatusFinished

	var ranked []*Player
	for _, p := range r.sortedPlayers() {
		if p.Alive {
			ranked = append(ranked, p)
		}
	}
	for i := len(r.DeathOrder) - 1; i >= 0; i-- {
		if p, ok := r.Players[r.DeathOrder[i]]; ok {
			ranked = append(ranked, p)
		}
	}

	ranks := make([]RankEntry, len(ranked))
	var winner *Player
	for i, p := range ranked {
		ranks[i] = RankEntry{ID: p.ID, Rank: i + 1, Score: p.Score}
		if winner == nil ||
			p.Score > winner.Score ||
			(p.Score == winner.Score && (p.Name < winner.Name ||
				(p.Name == winner.Name && p.ID < winner.ID))) {
			winner = p
		}
	}

	msg := GameOverMsg{Type: MsgGameOver, Ranks: ranks, EndedTick: r.TickID}
	if winner != nil {
		msg.WinnerID = winner.ID
		msg.WinnerName = winner.Name
	}
	r.broadcast(msg)
	r.log.Info().Str("winner", msg.WinnerID).Int("ended_tick", r.TickID).Msg("round over")

	// Reset per-round state.
	for _, p := range r.Players {
		p.Score = 0
		p.Alive = false
		if !p.Benched() {
			p.ClearBody()
		}
	}
	r.DeathOrder = nil
	r.Occupied = make(map[Cell]struct{})
	r.PendingDeaths = make(map[string]struct{})
	r.participants = make(map[string]struct{})
	r.CountdownDeadline = time.Time{}
	r.electHost()
	if r.countedCount() > 0 {
		r.Status = StatusWaiting
	} else {
		r.Status = StatusIdle
	}
}

// spawnFood replenishes the food set up to FoodTarget, skipping occupied
// and existing-food cells. Attempt-bounded so a crowded map cannot stall
// the tick.
func (r *Room) spawnFood() {
	for attempts := 0; len(r.Food) < FoodTarget && attempts < FoodSpawnAttempts; attempts++ {
		c := Cell{rand.Intn(MapWidth), rand.Intn(MapHeight)}
		if _, occ := r.Occupied[c]; occ {
			continue
		}
		if _, dup := r.Food[c]; dup {
			continue
		}
		r.Food[c] = struct{}{}
	}
}

// broadcast marshals once and enqueues to every connected client. Enqueue
// never blocks; a full queue marks the connection dead and the player is
// dropped at the next tick boundary.
func (r *Room) broadcast(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.log.Error().Err(err).Msg("broadcast marshal failed")
		return
	}
	for _, p := range r.Players {
		if p.Connected && p.Conn != nil {
			p.Conn.Enqueue(data)
		}
	}
}

// buildJoinOK assembles the join confirmation, with a board snapshot when
// the room is mid-round so spectators can render immediately.
func (r *Room) buildJoinOK(p *Player) JoinOKMsg {
	roster := make([]PlayerInfo, 0, len(r.Players))
	for _, q := range r.sortedPlayers() {
		if q.Benched() {
			continue
		}
		roster = append(roster, PlayerInfo{ID: q.ID, Name: q.Name})
	}
	msg := JoinOKMsg{
		Type:    MsgJoinOK,
		RoomID:  r.ID,
		Status:  string(r.Status),
		Map:     MapInfo{W: MapWidth, H: MapHeight},
		Players: roster,
		YourID:  p.ID,
	}
	if r.Status == StatusRunning {
		snakes := make(map[string]SnakeSnapshot)
		for id, q := range r.Players {
			if q.Alive {
				snakes[id] = SnakeSnapshot{Body: q.bodyPairs(), Name: q.Name, Score: q.Score, Alive: true}
			}
		}
		msg.Snapshot = &Snapshot{Snakes: snakes, Food: r.foodPairs()}
	}
	return msg
}

// StatsEntry summarizes the room for the lobby query.
func (r *Room) StatsEntry() RoomStatsEntry {
	counted := r.countedCount()
	display := counted
	if r.connectedHumanCount() == 0 {
		if r.botCount() > 0 {
			display = 1
		} else {
			display = 0
		}
	}
	return RoomStatsEntry{
		RoomID:           r.ID,
		Status:           string(r.Status),
		ConnectedPlayers: r.connectedHumanCount(),
		DisplayPlayers:   display,
		UsedSlots:        counted,
		Capacity:         r.Capacity,
		AvailableSlots:   r.Capacity - counted,
	}
}

// electHost picks the lowest-id connected human, or clears the host.
func (r *Room) electHost() {
	r.HostID = ""
	for _, p := range r.sortedPlayers() {
		if !p.IsBot && p.Connected {
			r.HostID = p.ID
			return
		}
	}
}

// --- counting helpers ---

// countedCount is the number of players held against capacity: everyone
// except benched bots.
func (r *Room) countedCount() int {
	n := 0
	for _, p := range r.Players {
		if !p.Benched() {
			n++
		}
	}
	return n
}

func (r *Room) humanCount() int {
	n := 0
	for _, p := range r.Players {
		if !p.IsBot {
			n++
		}
	}
	return n
}

func (r *Room) connectedHumanCount() int {
	n := 0
	for _, p := range r.Players {
		if !p.IsBot && p.Connected {
			n++
		}
	}
	return n
}

func (r *Room) aliveHumanCount() int {
	n := 0
	for _, p := range r.Players {
		if !p.IsBot && p.Alive {
			n++
		}
	}
	return n
}

func (r *Room) aliveBotCount() int {
	n := 0
	for _, p := range r.Players {
		if p.IsBot && p.Alive {
			n++
		}
	}
	return n
}

func (r *Room) benchedBotCount() int {
	n := 0
	for _, p := range r.Players {
		if p.Benched() {
			n++
		}
	}
	return n
}

func (r *Room) botCount() int {
	n := 0
	for _, p := range r.Players {
		if p.IsBot {
			n++
		}
	}
	return n
}

// alivePlayers returns the alive players in stable id order.
func (r *Room) alivePlayers() []*Player {
	var out []*Player
	for _, p := range r.sortedPlayers() {
		if p.Alive {
			out = append(out, p)
		}
	}
	return out
}

// sortedPlayers returns all players in id order for deterministic iteration.
func (r *Room) sortedPlayers() []*Player {
	ids := make([]string, 0, len(r.Players))
	for id := range r.Players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*Player, len(ids))
	for i, id := range ids {
		out[i] = r.Players[id]
	}
	return out
}

// foodPairs encodes the food set as sorted wire pairs.
func (r *Room) foodPairs() [][2]int {
	pairs := make([][2]int, 0, len(r.Food))
	for c := range r.Food {
		pairs = append(pairs, c.pair())
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})
	return pairs
}
