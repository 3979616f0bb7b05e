package main

import (
	"fmt"
	"math/rand"
	"sort"
)

// botNames is the pool of display names for resident AI snakes.
var botNames = []string{
	"Viper", "Cobra", "Mamba", "Python", "Anaconda",
	"Sidewinder", "Taipan", "Krait", "Adder", "Boa",
}

// newRoomBots creates the resident bots for one room. All but the first
// start benched so human lobbies see exactly one AI opponent; the bench is
// the reserve the AI showdown handoff revives from.
func newRoomBots(roomNum int) []*Player {
	bots := make([]*Player, BotsPerRoom)
	for i := range bots {
		id := fmt.Sprintf("bot-%d-%d", roomNum, i)
		b := NewBot(id, botNames[(roomNum+i)%len(botNames)])
		if i > 0 {
			benchBot(b)
		}
		bots[i] = b
	}
	return bots
}

// benchBot hides a bot from the room: it stops counting against capacity
// and does not spawn, but stays resident to be revived.
func benchBot(p *Player) {
	p.Connected = false
	p.Alive = false
	p.Eliminated = false
	p.ClearBody()
}

// benchSurplusBots benches all but one active bot so that humans see a
// single AI opponent. Never called while a round is running.
func (r *Room) benchSurplusBots() {
	active := 0
	for _, p := range r.sortedPlayers() {
		if !p.IsBot || p.Benched() {
			continue
		}
		active++
		if active > 1 {
			benchBot(p)
			r.log.Info().Str("bot", p.ID).Msg("bot benched")
		}
	}
}

// reviveBenchedBot brings one benched bot back mid-round with a fresh
// length-3 body pointing right, spawned inside the inner 60% of the map.
// Returns the wire move announcing the revival, or nil if placement failed.
func (r *Room) reviveBenchedBot() *MoveRevived {
	var benched []*Player
	for _, p := range r.sortedPlayers() {
		if p.Benched() {
			benched = append(benched, p)
		}
	}
	if len(benched) == 0 {
		return nil
	}
	bot := benched[0]

	marginX := MapWidth / 5
	marginY := MapHeight / 5
	var body []Cell
	for i := 0; i < SpawnAttempts; i++ {
		sx := marginX + rand.Intn(MapWidth-2*marginX)
		sy := marginY + rand.Intn(MapHeight-2*marginY)
		cand := []Cell{{sx, sy}, {sx - 1, sy}, {sx - 2, sy}}
		free := true
		for _, c := range cand {
			if _, occ := r.Occupied[c]; occ {
				free = false
				break
			}
			if _, f := r.Food[c]; f {
				free = false
				break
			}
		}
		if free {
			body = cand
			break
		}
	}
	if body == nil {
		return nil
	}

	bot.Connected = true
	bot.Alive = true
	bot.Eliminated = false
	bot.Direction = DirRight
	bot.SetBody(body)
	for _, c := range body {
		r.Occupied[c] = struct{}{}
	}
	r.participants[bot.ID] = struct{}{}
	r.log.Info().Str("bot", bot.ID).Msg("benched bot revived")

	return &MoveRevived{
		ID:      bot.ID,
		Revived: true,
		Body:    bot.bodyPairs(),
		Score:   bot.Score,
		Alive:   true,
	}
}

// updateBotDirection runs the policy adapter for one bot: build the feature
// vector, run inference, rotate the direction by the chosen action. Without
// a policy the bot holds its current direction.
func (r *Room) updateBotDirection(p *Player) {
	if r.policy == nil || len(p.Body) == 0 {
		return
	}
	features := r.botFeatures(p)
	action := r.policy.Predict(features)

	idx := 0
	for i, d := range clockwise {
		if d == p.Direction {
			idx = i
			break
		}
	}
	switch action {
	case 1: // right turn
		idx = (idx + 1) % 4
	case 2: // left turn
		idx = (idx + 3) % 4
	}
	p.Direction = clockwise[idx]
}

// botFeatures builds the 20-element 0/1 feature vector the policy was
// trained on:
//
//	 0-3  body occupancy at the head's R, L, U, D neighbors
//	 4-7  wall danger at the same four neighbors
//	 8-11 ray body L, R, U, D: any occupied cell strictly between the head
//	      and the map edge along that axis
//	12-15 direction one-hot L, R, U, D
//	16-19 bearing of the Manhattan-closest food: fx<hx, fx>hx, fy<hy, fy>hy
func (r *Room) botFeatures(p *Player) []float64 {
	head := p.Head()
	hx, hy := head.X, head.Y

	ptR := Cell{hx + 1, hy}
	ptL := Cell{hx - 1, hy}
	ptU := Cell{hx, hy - 1}
	ptD := Cell{hx, hy + 1}

	occ := func(c Cell) float64 {
		if _, ok := r.Occupied[c]; ok {
			return 1
		}
		return 0
	}
	wall := func(c Cell) float64 {
		if !c.InBounds() {
			return 1
		}
		return 0
	}
	rayL := r.rayHitsBody(Cell{hx - 1, hy}, DirLeft)
	rayR := r.rayHitsBody(Cell{hx + 1, hy}, DirRight)
	rayU := r.rayHitsBody(Cell{hx, hy - 1}, DirUp)
	rayD := r.rayHitsBody(Cell{hx, hy + 1}, DirDown)

	oneHot := func(d Direction) float64 {
		if p.Direction == d {
			return 1
		}
		return 0
	}

	fx, fy := r.closestFood(head)
	b := func(cond bool) float64 {
		if cond {
			return 1
		}
		return 0
	}

	return []float64{
		occ(ptR), occ(ptL), occ(ptU), occ(ptD),
		wall(ptR), wall(ptL), wall(ptU), wall(ptD),
		rayL, rayR, rayU, rayD,
		oneHot(DirLeft), oneHot(DirRight), oneHot(DirUp), oneHot(DirDown),
		b(fx < hx), b(fx > hx), b(fy < hy), b(fy > hy),
	}
}

// rayHitsBody walks from start toward the map edge and reports whether any
// cell on the way is occupied.
func (r *Room) rayHitsBody(start Cell, d Direction) float64 {
	for c := start; c.InBounds(); c = c.Step(d) {
		if _, ok := r.Occupied[c]; ok {
			return 1
		}
	}
	return 0
}

// closestFood returns the Manhattan-closest food cell to the head, or (0,0)
// when the room has no food.
func (r *Room) closestFood(head Cell) (int, int) {
	if len(r.Food) == 0 {
		return 0, 0
	}
	cells := make([]Cell, 0, len(r.Food))
	for c := range r.Food {
		cells = append(cells, c)
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].X != cells[j].X {
			return cells[i].X < cells[j].X
		}
		return cells[i].Y < cells[j].Y
	})
	best := cells[0]
	bestDist := manhattan(best, head)
	for _, c := range cells[1:] {
		if d := manhattan(c, head); d < bestDist {
			best = c
			bestDist = d
		}
	}
	return best.X, best.Y
}

func manhattan(a, b Cell) int {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}
