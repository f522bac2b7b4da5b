// Package netsync is the client end of the relay: it sends the local pose
// and turns relay messages into events the client loop applies between
// frames.
package netsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"velum/protocol"
)

const (
	defaultEventQueue = 256
	defaultSendQueue  = 64
	defaultWriteWait  = 5 * time.Second
	maxMessageSize    = 1 << 20
)

var ErrNotConnected = errors.New("not connected")

type Options struct {
	EventQueue int
	SendQueue  int
	WriteWait  time.Duration
	Dialer     *websocket.Dialer
	Logger     *zap.SugaredLogger
}

func (o *Options) withDefaults() {
	if o.EventQueue <= 0 {
		o.EventQueue = defaultEventQueue
	}
	if o.SendQueue <= 0 {
		o.SendQueue = defaultSendQueue
	}
	if o.WriteWait <= 0 {
		o.WriteWait = defaultWriteWait
	}
	if o.Dialer == nil {
		o.Dialer = websocket.DefaultDialer
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop().Sugar()
	}
}

// Channel owns one connection to the relay. Reads and writes run on their
// own goroutines; the client loop only touches the event queue and Send.
type Channel struct {
	conn      *websocket.Conn
	events    chan Event
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	writeWait time.Duration
	log       *zap.SugaredLogger

	connected atomic.Bool
	selfMu    sync.RWMutex
	self      string

	droppedMoves atomic.Int64
	droppedSends atomic.Int64
	malformed    atomic.Int64
}

// Dial connects to the relay at rawURL (ws:// or wss://).
func Dial(ctx context.Context, rawURL string, opts Options) (*Channel, error) {
	opts.withDefaults()
	conn, _, err := opts.Dialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}
	c := &Channel{
		conn:      conn,
		events:    make(chan Event, opts.EventQueue),
		send:      make(chan []byte, opts.SendQueue),
		done:      make(chan struct{}),
		writeWait: opts.WriteWait,
		log:       opts.Logger,
	}
	c.connected.Store(true)
	conn.SetReadLimit(maxMessageSize)

	go c.writeLoop()
	go c.readLoop()
	return c, nil
}

// ID is the id the relay assigned us; empty until hello arrives.
func (c *Channel) ID() string {
	c.selfMu.RLock()
	defer c.selfMu.RUnlock()
	return c.self
}

func (c *Channel) Connected() bool { return c.connected.Load() }

func (c *Channel) Events() <-chan Event { return c.events }

// Drain hands every queued event to fn without blocking and returns how
// many were applied.
func (c *Channel) Drain(fn func(Event)) int {
	n := 0
	for {
		select {
		case ev := <-c.events:
			fn(ev)
			n++
		default:
			return n
		}
	}
}

// SendPose queues a playerMove. An empty ID is filled with our own. It never
// blocks; a full queue drops the pose since the next tick sends a newer one.
func (c *Channel) SendPose(s protocol.PlayerState) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}
	if s.ID == "" {
		s.ID = c.ID()
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("send pose: %w", err)
	}
	b, err := protocol.Encode(protocol.MsgPlayerMove, s)
	if err != nil {
		return err
	}
	select {
	case c.send <- b:
	default:
		c.droppedSends.Add(1)
	}
	return nil
}

// Stats reports counters for diagnostics.
func (c *Channel) Stats() map[string]int64 {
	return map[string]int64{
		"dropped_moves": c.droppedMoves.Load(),
		"dropped_sends": c.droppedSends.Load(),
		"malformed":     c.malformed.Load(),
	}
}

// Close shuts the connection. The read loop then reports a final
// EventDisconnected unless nobody is draining.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.connected.Store(false)
		close(c.done)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = c.conn.Close()
	})
	return err
}

func (c *Channel) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Warnf("relay write: %v", err)
				_ = c.conn.Close()
				return
			}
		}
	}
}

func (c *Channel) readLoop() {
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			c.connected.Store(false)
			c.log.Infof("relay connection lost: %v", err)
			c.push(Event{Kind: EventDisconnected, Err: err})
			return
		}
		c.handle(payload)
	}
}

func (c *Channel) handle(payload []byte) {
	env, err := protocol.DecodeEnvelope(payload)
	if err != nil {
		c.malformed.Add(1)
		c.log.Warnf("drop inbound: %v", err)
		return
	}

	switch env.T {
	case protocol.MsgHello:
		h, err := protocol.DecodePayload[protocol.Hello](env)
		if err != nil {
			c.malformed.Add(1)
			c.log.Warnf("drop hello: %v", err)
			return
		}
		roster := make(map[string]protocol.PlayerState, len(h.Players))
		for id, st := range h.Players {
			if st.ID == "" {
				st.ID = id
			}
			if err := st.Validate(); err != nil {
				c.malformed.Add(1)
				c.log.Warnf("drop roster entry %q: %v", id, err)
				continue
			}
			roster[st.ID] = st
		}
		c.selfMu.Lock()
		c.self = h.Self
		c.selfMu.Unlock()
		c.push(Event{Kind: EventHello, Self: h.Self, Roster: roster})

	case protocol.MsgUserConnected, protocol.MsgPlayerMoved:
		st, err := protocol.DecodePayload[protocol.PlayerState](env)
		if err == nil {
			err = st.Validate()
		}
		if err != nil {
			c.malformed.Add(1)
			c.log.Warnf("drop %s: %v", env.T, err)
			return
		}
		if env.T == protocol.MsgUserConnected {
			c.push(Event{Kind: EventJoined, State: st})
			return
		}
		select {
		case c.events <- Event{Kind: EventMoved, State: st}:
		default:
			c.droppedMoves.Add(1)
		}

	case protocol.MsgUserDisconnected:
		id := decodeLeftID(env.P)
		if id == "" {
			c.malformed.Add(1)
			c.log.Warnf("drop %s: missing id", env.T)
			return
		}
		c.push(Event{Kind: EventLeft, ID: id})

	default:
		c.log.Debugf("ignore message type %q", env.T)
	}
}

// push delivers events that must not be lost; it waits for room unless the
// channel is closing.
func (c *Channel) push(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// decodeLeftID accepts {"id":"x"} as well as a bare "x".
func decodeLeftID(p json.RawMessage) string {
	var msg protocol.UserDisconnected
	if err := json.Unmarshal(p, &msg); err == nil && msg.ID != "" {
		return msg.ID
	}
	var id string
	if err := json.Unmarshal(p, &id); err == nil {
		return id
	}
	return ""
}
