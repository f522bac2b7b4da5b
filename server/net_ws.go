package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"velum/protocol"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 1 << 20 // 1MB
	sendQueueSize  = 64
)

// ClientConn is the write side of one websocket client.
type ClientConn struct {
	ws     *websocket.Conn
	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func NewClientConn(ws *websocket.Conn) *ClientConn {
	return &ClientConn{
		ws:   ws,
		send: make(chan []byte, sendQueueSize),
	}
}

// Enqueue queues b for the write pump without blocking; a full queue drops
// it so a slow client never stalls the tick.
func (c *ClientConn) Enqueue(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- b:
	default:
	}
}

// Close stops the write pump and closes the socket. Safe to call twice.
func (c *ClientConn) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()
	_ = c.ws.Close()
}

func (c *ClientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump feeds playerMove reports into the room until the socket fails.
func (c *ClientConn) readPump(room *Room, id PeerID) {
	defer c.ws.Close()
	// leave is applied on the tick goroutine
	defer room.RequestLeave(id, c)
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error { return c.ws.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				Log.Debugf("room %s: read %s: %v", room.ID, id, err)
			}
			return
		}
		env, err := protocol.DecodeEnvelope(payload)
		if err != nil {
			room.metrics.IncMalformed()
			continue
		}
		if env.T != protocol.MsgPlayerMove {
			continue
		}
		st, err := protocol.DecodePayload[protocol.PlayerState](env)
		if err == nil {
			// the relay, not the client, decides whose pose this is
			st.ID = string(id)
			err = st.Validate()
		}
		if err != nil {
			room.metrics.IncMalformed()
			continue
		}
		room.OnMove(Move{From: id, State: st})
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleWS accepts a websocket client: ?room=harbor-1&player=alice. Without
// a player id the relay assigns one.
func (m *RoomManager) HandleWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room")
	if roomID == "" {
		roomID = DefaultRoom
	}
	playerID := r.URL.Query().Get("player")
	if playerID == "" {
		playerID = uuid.NewString()
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		Log.Warnf("upgrade error: %v", err)
		return
	}

	room := m.GetOrCreateRoom(roomID)
	client := NewClientConn(ws)
	go client.writePump()
	room.RequestJoin(PeerID(playerID), client)
	go client.readPump(room, PeerID(playerID))
}

// HandleWS serves websocket clients from the default manager.
func HandleWS(w http.ResponseWriter, r *http.Request) {
	GetRoomManager().HandleWS(w, r)
}
