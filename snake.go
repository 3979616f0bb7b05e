package main

// Cell is one grid square.
type Cell struct {
	X int
	Y int
}

// InBounds reports whether the cell lies on the map.
func (c Cell) InBounds() bool {
	return c.X >= 0 && c.X < MapWidth && c.Y >= 0 && c.Y < MapHeight
}

// pair encodes the cell as the wire-format [x,y] pair.
func (c Cell) pair() [2]int {
	return [2]int{c.X, c.Y}
}

// Direction is one of the four unit vectors.
type Direction struct {
	DX int
	DY int
}

var (
	DirRight = Direction{1, 0}
	DirDown  = Direction{0, 1}
	DirLeft  = Direction{-1, 0}
	DirUp    = Direction{0, -1}
)

// clockwise is the direction ring the bot policy's turn actions rotate
// within: straight keeps the index, right turn is +1, left turn is -1.
var clockwise = [4]Direction{DirRight, DirDown, DirLeft, DirUp}

// ParseDirection maps a wire direction name to its vector.
func ParseDirection(name string) (Direction, bool) {
	switch name {
	case "up":
		return DirUp, true
	case "down":
		return DirDown, true
	case "left":
		return DirLeft, true
	case "right":
		return DirRight, true
	}
	return Direction{}, false
}

// Reverse returns the 180° opposite direction.
func (d Direction) Reverse() Direction {
	return Direction{-d.DX, -d.DY}
}

// Step returns the neighboring cell in this direction.
func (c Cell) Step(d Direction) Cell {
	return Cell{c.X + d.DX, c.Y + d.DY}
}

// Player is one room participant: a connected human, or a resident bot
// (Conn == nil). The body is kept twice: as a head-first ordered slice and
// as a mirror set for O(1) occupancy checks. Both are needed to resolve the
// tail-chase case exactly.
type Player struct {
	ID   string
	Name string
	Conn *Conn // nil for bots

	Connected  bool
	Alive      bool
	Eliminated bool
	IsBot      bool

	Score     int
	Direction Direction
	Body      []Cell // index 0 = head
	BodySet   map[Cell]struct{}
}

// NewPlayer creates a human player bound to a connection.
func NewPlayer(id, name string, conn *Conn) *Player {
	return &Player{
		ID:        id,
		Name:      truncateName(name),
		Conn:      conn,
		Connected: true,
		Direction: DirRight,
		BodySet:   make(map[Cell]struct{}),
	}
}

// NewBot creates a resident AI player. Bots have no connection and live for
// the process lifetime.
func NewBot(id, name string) *Player {
	p := NewPlayer(id, name, nil)
	p.IsBot = true
	return p
}

// Head returns the snake's head cell. Only valid while the body is non-empty.
func (p *Player) Head() Cell {
	return p.Body[0]
}

// Tail returns the snake's tail cell. Only valid while the body is non-empty.
func (p *Player) Tail() Cell {
	return p.Body[len(p.Body)-1]
}

// SetBody replaces the body and rebuilds the mirror set.
func (p *Player) SetBody(cells []Cell) {
	p.Body = append(p.Body[:0], cells...)
	p.BodySet = make(map[Cell]struct{}, len(cells))
	for _, c := range cells {
		p.BodySet[c] = struct{}{}
	}
}

// ClearBody empties both body representations.
func (p *Player) ClearBody() {
	p.Body = p.Body[:0]
	p.BodySet = make(map[Cell]struct{})
}

// ApplyInput updates the direction from a wire input. The 180° reverse of
// the current direction is rejected; repeated inputs between ticks collapse
// to the latest valid one.
func (p *Player) ApplyInput(name string) bool {
	dir, ok := ParseDirection(name)
	if !ok {
		return false
	}
	if dir == p.Direction.Reverse() {
		return false
	}
	p.Direction = dir
	return true
}

// Benched reports whether a bot is hidden from the room: it keeps residence
// but does not count against capacity and does not spawn.
func (p *Player) Benched() bool {
	return p.IsBot && !p.Connected && !p.Alive && !p.Eliminated
}

// bodyPairs encodes the body as wire-format pairs.
func (p *Player) bodyPairs() [][2]int {
	pairs := make([][2]int, len(p.Body))
	for i, c := range p.Body {
		pairs[i] = c.pair()
	}
	return pairs
}

// truncateName caps a display name at MaxNameLength runes.
func truncateName(name string) string {
	if name == "" {
		return "Guest"
	}
	runes := []rune(name)
	if len(runes) > MaxNameLength {
		runes = runes[:MaxNameLength]
	}
	return string(runes)
}
