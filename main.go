package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/alecthomas/kong"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for development; tighten in production
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// CLI is the command surface: one optional listen address plus flags.
type CLI struct {
	Addr  string `arg:"" optional:"" default:"${addr}" help:"Listen address."`
	Model string `help:"Path to policy weights JSON; bots hold direction when absent." type:"path"`
	Debug bool   `help:"Enable debug logging."`
}

// Server owns the fixed room set and the connection registry.
type Server struct {
	rooms     []*Room // in room-number order
	roomsByID map[string]*Room
	conns     *ConnManager
	log       zerolog.Logger
}

// NewServer creates all rooms and seeds each with its resident bots.
func NewServer(policy *Policy, logger zerolog.Logger) *Server {
	s := &Server{
		roomsByID: make(map[string]*Room, RoomCount),
		conns:     NewConnManager(),
		log:       logger,
	}
	for i := 1; i <= RoomCount; i++ {
		id := fmt.Sprintf("room-%d", i)
		room := NewRoom(id, policy, logger)
		for _, b := range newRoomBots(i) {
			room.AddPlayer(b)
		}
		s.rooms = append(s.rooms, room)
		s.roomsByID[id] = room
	}
	return s
}

// sendErrorAndClose sends an error message then closes the raw socket.
func sendErrorAndClose(ws *websocket.Conn, code string) {
	data, _ := json.Marshal(ErrorMsg{Type: MsgError, Code: code})
	_ = ws.WriteMessage(websocket.TextMessage, data)
	ws.Close()
}

// handleWS upgrades a connection and runs its message loop. The current
// room pointer is touched only by this goroutine; all room state mutations
// happen under the room's lock.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("ws upgrade error")
		return
	}
	if s.conns.Count() >= MaxPlayers {
		sendErrorAndClose(ws, ErrServerFull)
		return
	}

	conn := NewConn(ws, s.log)
	s.conns.Add(conn)
	playerID := conn.ID
	s.log.Info().Str("player", playerID).Msg("player connected")

	var room *Room

	handle := func(msg ClientMessage) bool {
		switch msg.Type {
		case MsgJoin:
			if room != nil {
				return true // already in a room
			}
			target, ok := s.roomsByID[msg.RoomID]
			if !ok {
				conn.Send(ErrorMsg{Type: MsgError, Code: ErrRoomNotFound})
				return true
			}
			p := NewPlayer(playerID, msg.Username, conn)
			target.mu.Lock()
			code := target.AddPlayer(p)
			var ack JoinOKMsg
			if code == "" {
				ack = target.buildJoinOK(p)
			}
			target.mu.Unlock()
			if code != "" {
				conn.Send(ErrorMsg{Type: MsgError, Code: code})
				return true
			}
			room = target
			conn.Send(ack)

		case MsgInput:
			if room != nil {
				room.mu.Lock()
				room.HandleInput(playerID, msg.Dir)
				room.mu.Unlock()
			}

		case MsgStartRequest:
			if room != nil {
				room.mu.Lock()
				room.HandleStartRequest(playerID)
				room.mu.Unlock()
			}

		case MsgRoomStatsReq:
			conn.Send(s.roomStats())

		case MsgExit:
			return false

		default:
			s.log.Debug().Str("type", msg.Type).Msg("unknown message tag")
		}
		return true
	}

	onDisconnect := func() {
		s.conns.Remove(conn.ID)
		if room != nil {
			room.mu.Lock()
			room.RemovePlayer(playerID)
			room.mu.Unlock()
		}
		s.log.Info().Str("player", playerID).Msg("connection closed")
	}

	conn.ReadLoop(handle, onDisconnect)
}

// roomStats builds the lobby answer over all rooms.
func (s *Server) roomStats() RoomStatsMsg {
	entries := make([]RoomStatsEntry, 0, len(s.rooms))
	for _, r := range s.rooms {
		r.mu.Lock()
		entries = append(entries, r.StatsEntry())
		r.mu.Unlock()
	}
	return RoomStatsMsg{Type: MsgRoomStats, Rooms: entries}
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("snake-server"),
		kong.Description("Authoritative server for real-time multiplayer snake."),
		kong.Vars{"addr": DefaultAddr},
	)

	level := zerolog.InfoLevel
	if cli.Debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	var policy *Policy
	if cli.Model != "" {
		p, err := LoadPolicy(cli.Model)
		if err != nil {
			logger.Warn().Err(err).Msg("could not load AI model, bots will hold direction")
		} else {
			policy = p
			logger.Info().Str("path", cli.Model).Msg("loaded AI model")
		}
	}

	server := NewServer(policy, logger)
	loop := NewScheduler(server.rooms, logger)
	go loop.Run()

	http.HandleFunc("/", server.handleWS)
	logger.Info().Str("addr", cli.Addr).Int("rooms", RoomCount).Msg("server listening")
	if err := http.ListenAndServe(cli.Addr, nil); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}
