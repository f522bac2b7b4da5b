package server

import (
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"velum/protocol"
)

// Settings are the tunables of one room. They may be changed at runtime
// through the admin endpoint.
type Settings struct {
	// MaxMovesPerTick caps accepted pose reports per peer per tick; 0 means
	// unlimited.
	MaxMovesPerTick  int     `json:"maxMovesPerTick" mapstructure:"maxMovesPerTick"`
	SimulateDropProb float64 `json:"simulateDropProb" mapstructure:"simulateDropProb"`
}

// Room relays poses between its peers. All peer state is owned by the tick
// goroutine; network goroutines only feed the channels.
type Room struct {
	ID string

	peers      map[PeerID]*Peer
	memberChan chan membership
	moveChan   chan Move
	quit       chan struct{}
	stopOnce   sync.Once

	settingsMu sync.RWMutex
	settings   Settings

	rng           *rand.Rand
	movesThisTick map[PeerID]int
	dirty         map[PeerID]struct{}

	tickSeq   atomic.Int64
	peerCount atomic.Int32
	metrics   *RoomMetrics

	tickerStarted bool
}

// NewRoom creates a room; StartTicker begins relaying.
func NewRoom(id string, settings Settings) *Room {
	return &Room{
		ID:            id,
		peers:         make(map[PeerID]*Peer),
		memberChan:    make(chan membership, 128),
		moveChan:      make(chan Move, 1024), // room for a burst of moves without stalling readers
		quit:          make(chan struct{}),
		settings:      settings,
		rng:           rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		movesThisTick: make(map[PeerID]int),
		dirty:         make(map[PeerID]struct{}),
		metrics:       NewRoomMetrics(id),
	}
}

func (r *Room) Settings() Settings {
	r.settingsMu.RLock()
	defer r.settingsMu.RUnlock()
	return r.settings
}

func (r *Room) SetSettings(s Settings) {
	r.settingsMu.Lock()
	r.settings = s
	r.settingsMu.Unlock()
}

func (r *Room) Metrics() *RoomMetrics { return r.metrics }

func (r *Room) NumPeers() int { return int(r.peerCount.Load()) }

func (r *Room) TickSeq() int64 { return r.tickSeq.Load() }

// RequestJoin queues a new connection. It blocks only if the membership
// queue is full, so joins are never lost.
func (r *Room) RequestJoin(id PeerID, conn Sender) {
	select {
	case r.memberChan <- membership{ID: id, Conn: conn}:
	case <-r.quit:
		conn.Close()
	}
}

// RequestLeave queues removal of the peer on conn.
func (r *Room) RequestLeave(id PeerID, conn Sender) {
	select {
	case r.memberChan <- membership{ID: id, Conn: conn, Leaving: true}:
	case <-r.quit:
	}
}

// OnMove records a pose report without blocking; a full queue drops it
// since a newer pose follows within one client tick.
func (r *Room) OnMove(m Move) {
	select {
	case r.moveChan <- m:
	default:
		r.metrics.IncChanFullDiscarded()
	}
}

// BeginTick resets per-tick counters.
func (r *Room) BeginTick() {
	r.tickSeq.Add(1)
	clear(r.movesThisTick)
}

// ProcessInputs drains every queued join, leave and move without blocking.
func (r *Room) ProcessInputs() {
	settings := r.Settings()
	for {
		select {
		case mb := <-r.memberChan:
			if mb.Leaving {
				r.leavePeer(mb)
			} else {
				r.joinPeer(mb)
			}
		case m := <-r.moveChan:
			r.applyMove(m, settings)
		default:
			return
		}
	}
}

// BroadcastDelta sends playerMoved for every peer that moved this tick to
// everyone but that peer.
func (r *Room) BroadcastDelta() {
	for id := range r.dirty {
		p, ok := r.peers[id]
		if !ok {
			continue
		}
		b, err := protocol.Encode(protocol.MsgPlayerMoved, p.State)
		if err != nil {
			Log.Errorf("room %s: encode move of %s: %v", r.ID, id, err)
			continue
		}
		r.sendExcept(id, b)
		r.metrics.IncRelayed()
	}
	clear(r.dirty)
}

func (r *Room) joinPeer(j membership) {
	if old, ok := r.peers[j.ID]; ok {
		// same id reconnecting: the new connection wins
		Log.Infof("room %s: %s reconnected, closing previous connection", r.ID, j.ID)
		old.Conn.Close()
		old.Conn = j.Conn
	} else {
		r.peers[j.ID] = &Peer{ID: j.ID, State: spawnState(j.ID), Conn: j.Conn}
		r.peerCount.Store(int32(len(r.peers)))
	}
	r.metrics.IncJoins()

	roster := make(map[string]protocol.PlayerState, len(r.peers))
	for id, p := range r.peers {
		if id != j.ID {
			roster[string(id)] = p.State
		}
	}
	if b, err := protocol.Encode(protocol.MsgHello, protocol.Hello{Self: string(j.ID), Players: roster}); err == nil {
		j.Conn.Enqueue(b)
	}

	if b, err := protocol.Encode(protocol.MsgUserConnected, r.peers[j.ID].State); err == nil {
		r.sendExcept(j.ID, b)
	}
	Log.Infof("room %s: %s joined (%d peers)", r.ID, j.ID, len(r.peers))
}

func (r *Room) leavePeer(l membership) {
	p, ok := r.peers[l.ID]
	if !ok || p.Conn != l.Conn {
		return
	}
	p.Conn.Close()
	delete(r.peers, l.ID)
	delete(r.dirty, l.ID)
	r.peerCount.Store(int32(len(r.peers)))
	r.metrics.IncLeaves()

	if b, err := protocol.Encode(protocol.MsgUserDisconnected, protocol.UserDisconnected{ID: string(l.ID)}); err == nil {
		r.sendExcept(l.ID, b)
	}
	Log.Infof("room %s: %s left (%d peers)", r.ID, l.ID, len(r.peers))
}

func (r *Room) applyMove(m Move, s Settings) {
	p, ok := r.peers[m.From]
	if !ok {
		return
	}
	if s.SimulateDropProb > 0 && r.rng.Float64() < s.SimulateDropProb {
		r.metrics.IncDropsSimulated()
		return
	}
	if s.MaxMovesPerTick > 0 && r.movesThisTick[m.From] >= s.MaxMovesPerTick {
		r.metrics.IncRateLimited()
		return
	}
	r.movesThisTick[m.From]++

	st := m.State
	st.ID = string(m.From)
	p.State = st
	r.dirty[m.From] = struct{}{}
	r.metrics.IncAccepted()
}

func (r *Room) sendExcept(skip PeerID, b []byte) {
	for id, p := range r.peers {
		if id != skip {
			p.Conn.Enqueue(b)
		}
	}
}

// closeAll disconnects every peer. Runs on the tick goroutine at stop.
func (r *Room) closeAll() {
	for id, p := range r.peers {
		p.Conn.Close()
		delete(r.peers, id)
	}
	r.peerCount.Store(0)
}
