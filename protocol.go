package main

// Protocol: every message is a JSON object with a short string tag "t"
// identifying its kind. Cells are encoded as [x,y] integer pairs.
//
//   Client → Server:
//     "join"           {"t":"join","room_id":"room-1","username":"Ann"}
//     "in"             {"t":"in","d":"up"}         (up/down/left/right)
//     "start_request"  {"t":"start_request"}        host-only manual start
//     "exit"           {"t":"exit"}                 graceful disconnect
//     "room_stats_req" {"t":"room_stats_req"}       lobby query
//   Server → Client:
//     "join_ok"    room/map/player info, plus a snapshot if mid-game
//     "game_start" initial food and spawned bodies
//     "d"          per-tick delta: moves + current food set
//     "game_over"  final ranking
//     "room_stats" per-room occupancy for lobby UIs
//     "err"        {"t":"err","code":"ROOM_FULL"}

// Message type identifiers
const (
	MsgJoin         = "join"
	MsgJoinOK       = "join_ok"
	MsgInput        = "in"
	MsgGameStart    = "game_start"
	MsgDelta        = "d"
	MsgGameOver     = "game_over"
	MsgError        = "err"
	MsgExit         = "exit"
	MsgStartRequest = "start_request"
	MsgRoomStatsReq = "room_stats_req"
	MsgRoomStats    = "room_stats"
)

// Error codes carried by MsgError
const (
	ErrRoomFull       = "ROOM_FULL"
	ErrRoomFullHumans = "ROOM_FULL_HUMANS"
	ErrRoomNotFound   = "ROOM_NOT_FOUND"
	ErrServerFull     = "SERVER_FULL"
)

// ClientMessage is the one incoming envelope; unused fields stay zero.
type ClientMessage struct {
	Type     string `json:"t"`
	RoomID   string `json:"room_id,omitempty"`
	Username string `json:"username,omitempty"`
	Dir      string `json:"d,omitempty"`
}

// MapInfo describes the grid dimensions.
type MapInfo struct {
	W int `json:"w"`
	H int `json:"h"`
}

// PlayerInfo is the roster entry sent in join_ok.
type PlayerInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SnakeSnapshot is one alive snake in the mid-game snapshot.
type SnakeSnapshot struct {
	Body  [][2]int `json:"body"`
	Name  string   `json:"name"`
	Score int      `json:"score"`
	Alive bool     `json:"alive"`
}

// Snapshot is attached to join_ok when the room is RUNNING so a spectator
// can render the board before the next delta arrives.
type Snapshot struct {
	Snakes map[string]SnakeSnapshot `json:"snakes"`
	Food   [][2]int                 `json:"food"`
}

// JoinOKMsg confirms a join.
type JoinOKMsg struct {
	Type     string       `json:"t"`
	RoomID   string       `json:"room_id"`
	Status   string       `json:"status"`
	Map      MapInfo      `json:"map"`
	Players  []PlayerInfo `json:"players"`
	YourID   string       `json:"your_id"`
	Snapshot *Snapshot    `json:"snapshot,omitempty"`
}

// SpawnInfo is one spawned snake in game_start.
type SpawnInfo struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Body [][2]int `json:"body"`
}

// GameStartMsg announces a round start.
type GameStartMsg struct {
	Type    string      `json:"t"`
	TickID  int         `json:"tick_id"`
	Food    [][2]int    `json:"food"`
	Players []SpawnInfo `json:"players"`
}

// MoveStep is the per-tick delta entry for a surviving snake.
// TailRemove is null when the snake grew this tick.
type MoveStep struct {
	ID         string  `json:"id"`
	HeadAdd    [2]int  `json:"head_add"`
	TailRemove *[2]int `json:"tail_remove"`
	Score      int     `json:"score"`
	Alive      bool    `json:"alive"`
}

// MoveDead is the delta entry for a snake eliminated this tick.
// Reason is one of "wall", "body", "head-on", "disconnect".
type MoveDead struct {
	ID     string `json:"id"`
	Dead   bool   `json:"dead"`
	Reason string `json:"reason"`
}

// MoveRevived is the delta entry for a benched bot brought back mid-round,
// carrying its freshly placed body.
type MoveRevived struct {
	ID      string   `json:"id"`
	Revived bool     `json:"revived"`
	Body    [][2]int `json:"body"`
	Score   int      `json:"score"`
	Alive   bool     `json:"alive"`
}

// DeltaMsg is the per-tick broadcast. Moves holds MoveStep, MoveDead and
// MoveRevived entries.
type DeltaMsg struct {
	Type  string   `json:"t"`
	Tick  int      `json:"tick"`
	Moves []any    `json:"moves"`
	Food  [][2]int `json:"food"`
}

// RankEntry is one row of the final ranking.
type RankEntry struct {
	ID    string `json:"id"`
	Rank  int    `json:"rank"`
	Score int    `json:"score"`
}

// GameOverMsg announces the end of a round.
type GameOverMsg struct {
	Type       string      `json:"t"`
	Ranks      []RankEntry `json:"ranks"`
	WinnerID   string      `json:"winner_id"`
	WinnerName string      `json:"winner_name"`
	EndedTick  int         `json:"ended_tick"`
}

// RoomStatsEntry is one room's occupancy for the lobby.
// DisplayPlayers reports 1 when only bots are present, regardless of bot
// count, so lobby UIs show bot-only rooms as lightly occupied.
type RoomStatsEntry struct {
	RoomID           string `json:"room_id"`
	Status           string `json:"status"`
	ConnectedPlayers int    `json:"connected_players"`
	DisplayPlayers   int    `json:"display_players"`
	UsedSlots        int    `json:"used_slots"`
	Capacity         int    `json:"capacity"`
	AvailableSlots   int    `json:"available_slots"`
}

// RoomStatsMsg answers a room_stats_req.
type RoomStatsMsg struct {
	Type  string           `json:"t"`
	Rooms []RoomStatsEntry `json:"rooms"`
}

// ErrorMsg reports a rejected request.
type ErrorMsg struct {
	Type string `json:"t"`
	Code string `json:"code"`
}
