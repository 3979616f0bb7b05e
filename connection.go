package main

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var (
	errConnDead      = errors.New("connection dead")
	errSendQueueFull = errors.New("send queue full")
)

// Conn manages a single WebSocket player session. All outbound traffic goes
// through a bounded queue drained by one writer goroutine, so the tick loop
// never waits on a socket: Enqueue either succeeds immediately or marks the
// connection dead.
type Conn struct {
	ID string
	ws *websocket.Conn

	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
	dead      atomic.Bool
	log       zerolog.Logger
}

// NewConn wraps an upgraded socket and starts its writer.
func NewConn(ws *websocket.Conn, logger zerolog.Logger) *Conn {
	id := uuid.New().String()[:8]
	c := &Conn{
		ID:   id,
		ws:   ws,
		out:  make(chan []byte, SendQueueSize),
		done: make(chan struct{}),
		log:  logger.With().Str("conn", id).Logger(),
	}
	go c.writeLoop()
	return c
}

// writeLoop is the sole socket writer. It drains the outbound queue and
// sends heartbeat pings; any write failure marks the connection dead.
func (c *Conn) writeLoop() {
	ping := time.NewTicker(PingIntervalSec * time.Second)
	defer ping.Stop()
	for {
		select {
		case data := <-c.out:
			c.ws.SetWriteDeadline(time.Now().Add(time.Second))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Warn().Err(err).Msg("write failed")
				c.dead.Store(true)
				return
			}
		case <-ping.C:
			c.ws.SetWriteDeadline(time.Now().Add(time.Second))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.dead.Store(true)
				return
			}
		case <-c.done:
			return
		}
	}
}

// Send marshals and enqueues a unicast message.
func (c *Conn) Send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.Enqueue(data)
}

// Enqueue hands pre-marshaled bytes to the writer without blocking. A full
// queue means the client cannot keep up with the tick rate; the connection
// is marked dead and dropped at the next tick boundary.
func (c *Conn) Enqueue(data []byte) error {
	if c.dead.Load() {
		return errConnDead
	}
	select {
	case c.out <- data:
		return nil
	default:
		c.dead.Store(true)
		c.log.Warn().Msg("send queue overflow, marking connection dead")
		return errSendQueueFull
	}
}

// Dead reports whether the send path has failed.
func (c *Conn) Dead() bool {
	return c.dead.Load()
}

// Close shuts down the writer and the socket.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.ws != nil {
			c.ws.Close()
		}
	})
}

// ReadLoop reads client messages until the connection closes or handle
// returns false (explicit exit). onDisconnect always runs once on the way
// out. Malformed messages are dropped without closing the connection.
func (c *Conn) ReadLoop(handle func(ClientMessage) bool, onDisconnect func()) {
	defer func() {
		onDisconnect()
		c.Close()
	}()

	c.ws.SetReadDeadline(time.Now().Add(PongTimeoutSec * time.Second))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(PongTimeoutSec * time.Second))
		return nil
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("read failed")
			}
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Warn().Err(err).Msg("bad message")
			continue
		}
		if !handle(msg) {
			return
		}
	}
}

// ConnManager tracks all active connections.
type ConnManager struct {
	mu    sync.RWMutex
	conns map[string]*Conn
}

// NewConnManager creates an empty connection registry.
func NewConnManager() *ConnManager {
	return &ConnManager{conns: make(map[string]*Conn)}
}

// Add registers a connection.
func (m *ConnManager) Add(c *Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns[c.ID] = c
}

// Remove unregisters a connection.
func (m *ConnManager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conns, id)
}

// Count returns the number of active connections.
func (m *ConnManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}
